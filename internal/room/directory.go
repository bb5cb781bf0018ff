package room

import (
	"errors"
	"sort"
	"strings"
	"sync"
	"time"
)

var (
	// ErrNameRequired is returned when a create request has a blank name.
	ErrNameRequired = errors.New("room name is required")
	// ErrRoomExists is returned when the derived room ID is already taken.
	ErrRoomExists = errors.New("room already exists")
)

// Directory maps room IDs to rooms. Rooms are never deleted.
type Directory struct {
	mu    sync.RWMutex
	rooms map[string]*Room
}

// NewDirectory creates an empty room directory.
func NewDirectory() *Directory {
	return &Directory{rooms: make(map[string]*Room)}
}

// SeedDefaults creates the default public rooms every user is enrolled in.
func (d *Directory) SeedDefaults() {
	defaults := []struct{ id, name, description string }{
		{"general", "General", "Open discussion for everyone"},
		{"help-desk", "Help Desk", "Ask questions and get help"},
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, def := range defaults {
		d.rooms[def.id] = &Room{
			ID:          def.id,
			Name:        def.name,
			Description: def.description,
			CreatedBy:   "system",
			CreatedAt:   time.Now(),
			members:     make(map[string]struct{}),
		}
	}
}

// DefaultRoomIDs returns the IDs new users are auto-enrolled into.
func DefaultRoomIDs() []string {
	return []string{"general", "help-desk"}
}

// Ensure returns the room with the given ID, lazily creating a private
// room named after the ID when it does not exist yet.
func (d *Directory) Ensure(roomID string) Snapshot {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.ensureLocked(roomID).snapshot()
}

func (d *Directory) ensureLocked(roomID string) *Room {
	r, ok := d.rooms[roomID]
	if !ok {
		r = &Room{
			ID:          roomID,
			Name:        roomID,
			Description: "Private room",
			IsPrivate:   true,
			CreatedBy:   "system",
			CreatedAt:   time.Now(),
			members:     make(map[string]struct{}),
		}
		d.rooms[roomID] = r
	}
	return r
}

// EnsureConversation ensures a direct-conversation room exists, flags it
// private and sets its display name. Both participants become members.
func (d *Directory) EnsureConversation(roomID, name string, participants ...string) Snapshot {
	d.mu.Lock()
	defer d.mu.Unlock()
	r := d.ensureLocked(roomID)
	r.IsPrivate = true
	r.Name = name
	for _, id := range participants {
		r.members[id] = struct{}{}
	}
	return r.snapshot()
}

// Create adds a named room. The ID is derived from the trimmed name;
// a collision is rejected, not suffixed.
func (d *Directory) Create(name, description string, isPrivate bool, createdBy string) (Snapshot, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Snapshot{}, ErrNameRequired
	}
	id := Slugify(name)

	d.mu.Lock()
	defer d.mu.Unlock()
	if _, taken := d.rooms[id]; taken {
		return Snapshot{}, ErrRoomExists
	}
	description = strings.TrimSpace(description)
	if description == "" {
		description = "Custom room"
	}
	r := &Room{
		ID:          id,
		Name:        name,
		Description: description,
		IsPrivate:   isPrivate,
		CreatedBy:   createdBy,
		CreatedAt:   time.Now(),
		members:     make(map[string]struct{}),
	}
	d.rooms[id] = r
	return r.snapshot(), nil
}

// Get returns a room snapshot by ID.
func (d *Directory) Get(roomID string) (Snapshot, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	r, ok := d.rooms[roomID]
	if !ok {
		return Snapshot{}, false
	}
	return r.snapshot(), true
}

// Has reports whether the room exists.
func (d *Directory) Has(roomID string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.rooms[roomID]
	return ok
}

// AddMember ensures the room exists and adds the user to its membership.
// Idempotent; returns the resulting room snapshot.
func (d *Directory) AddMember(roomID, userID string) Snapshot {
	d.mu.Lock()
	defer d.mu.Unlock()
	r := d.ensureLocked(roomID)
	r.members[userID] = struct{}{}
	return r.snapshot()
}

// RemoveMember drops the user from the room's membership. Returns false
// if the room does not exist; removal of a non-member is a no-op.
func (d *Directory) RemoveMember(roomID, userID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	r, ok := d.rooms[roomID]
	if !ok {
		return false
	}
	delete(r.members, userID)
	return true
}

// IsMember reports whether the user is a member of the room.
func (d *Directory) IsMember(roomID, userID string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	r, ok := d.rooms[roomID]
	if !ok {
		return false
	}
	_, member := r.members[userID]
	return member
}

// MemberIDs returns the sorted member IDs of a room.
func (d *Directory) MemberIDs(roomID string) []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	r, ok := d.rooms[roomID]
	if !ok {
		return nil
	}
	return r.memberList()
}

// List returns all rooms sorted by ID.
func (d *Directory) List() []Snapshot {
	d.mu.RLock()
	defer d.mu.RUnlock()
	result := make([]Snapshot, 0, len(d.rooms))
	for _, r := range d.rooms {
		result = append(result, r.snapshot())
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}
