package client

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
)

// Profile is the persisted identity a returning user reconnects with.
type Profile struct {
	Username    string `json:"username"`
	AvatarColor string `json:"avatarColor,omitempty"`
}

// ProfileStore reads and writes the profile file under the user's
// config directory.
type ProfileStore struct {
	path string
}

// NewProfileStore places the profile under os.UserConfigDir.
func NewProfileStore() (*ProfileStore, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return nil, err
	}
	return &ProfileStore{path: filepath.Join(dir, "parley", "profile.json")}, nil
}

// NewProfileStoreAt uses an explicit file path.
func NewProfileStoreAt(path string) *ProfileStore {
	return &ProfileStore{path: path}
}

// Load returns the saved profile. The second return is false when no
// profile has been saved yet.
func (ps *ProfileStore) Load() (Profile, bool, error) {
	data, err := os.ReadFile(ps.path)
	if errors.Is(err, fs.ErrNotExist) {
		return Profile{}, false, nil
	}
	if err != nil {
		return Profile{}, false, err
	}
	var p Profile
	if err := json.Unmarshal(data, &p); err != nil {
		return Profile{}, false, err
	}
	return p, true, nil
}

// Save writes the profile, creating the parent directory as needed.
func (ps *ProfileStore) Save(p Profile) error {
	if err := os.MkdirAll(filepath.Dir(ps.path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(ps.path, data, 0o600)
}

// Clear removes the saved profile. Missing files are fine.
func (ps *ProfileStore) Clear() error {
	err := os.Remove(ps.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}
