package user

import (
	"errors"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"
)

// ErrEmptyUsername is returned when a join carries a blank display name.
var ErrEmptyUsername = errors.New("username is required")

// avatarPalette is the set of colors assigned when a client does not
// pick one itself.
var avatarPalette = []string{"#f97316", "#16a34a", "#2563eb", "#9333ea", "#f43f5e"}

// placeholderColor is used for members with no live registry record.
const placeholderColor = "#6b7280"

// Registry maps active connections to user identities.
type Registry struct {
	mu    sync.RWMutex
	users map[string]*User // keyed by connection ID
}

// NewRegistry creates an empty connection registry.
func NewRegistry() *Registry {
	return &Registry{users: make(map[string]*User)}
}

// Join binds a user identity to the given connection. The username is
// trimmed and must be non-empty; the avatar color is drawn from the
// palette when omitted. Joining again on the same connection replaces
// the previous identity, which is what a reconnect handshake does.
func (r *Registry) Join(connID, username, avatarColor string) (Snapshot, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return Snapshot{}, ErrEmptyUsername
	}
	if avatarColor == "" {
		avatarColor = avatarPalette[rand.Intn(len(avatarPalette))]
	}
	u := &User{
		ID:          connID,
		Username:    username,
		AvatarColor: avatarColor,
		Status:      StatusOnline,
		JoinedAt:    time.Now(),
		rooms:       make(map[string]struct{}),
	}
	r.mu.Lock()
	r.users[connID] = u
	r.mu.Unlock()
	return u.snapshot(), nil
}

// Get returns the live user bound to the connection.
func (r *Registry) Get(connID string) (Snapshot, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[connID]
	if !ok {
		return Snapshot{}, false
	}
	return u.snapshot(), true
}

// Member resolves a user ID to a snapshot for membership listings.
// Offline members have no live record, so a placeholder is returned
// instead of dropping them from the list.
func (r *Registry) Member(userID string) Snapshot {
	if s, ok := r.Get(userID); ok {
		return s
	}
	return Snapshot{
		ID:          userID,
		Username:    "Unknown",
		AvatarColor: placeholderColor,
		Status:      StatusOffline,
		Rooms:       []string{},
	}
}

// Remove deletes the live record for a connection, stamping LastSeen
// and flipping the status to offline on the returned snapshot. The
// second return value is false if the connection never joined.
func (r *Registry) Remove(connID string) (Snapshot, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[connID]
	if !ok {
		return Snapshot{}, false
	}
	now := time.Now()
	u.Status = StatusOffline
	u.LastSeen = &now
	snap := u.snapshot()
	delete(r.users, connID)
	return snap, true
}

// AddRoom records room membership on the user. Returns false if the
// connection is unknown.
func (r *Registry) AddRoom(connID, roomID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[connID]
	if !ok {
		return false
	}
	u.rooms[roomID] = struct{}{}
	return true
}

// RemoveRoom drops room membership from the user.
func (r *Registry) RemoveRoom(connID, roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[connID]; ok {
		delete(u.rooms, roomID)
	}
}

// Rooms returns the sorted room IDs the user is a member of.
func (r *Registry) Rooms(connID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[connID]
	if !ok {
		return nil
	}
	return u.roomList()
}

// Online returns snapshots of every connected user, sorted by username
// for stable listings.
func (r *Registry) Online() []Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]Snapshot, 0, len(r.users))
	for _, u := range r.users {
		result = append(result, u.snapshot())
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Username != result[j].Username {
			return result[i].Username < result[j].Username
		}
		return result[i].ID < result[j].ID
	})
	return result
}

// Count returns the number of connected users.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users)
}

func (u *User) snapshot() Snapshot {
	return Snapshot{
		ID:          u.ID,
		Username:    u.Username,
		AvatarColor: u.AvatarColor,
		Status:      u.Status,
		LastSeen:    u.LastSeen,
		Rooms:       u.roomList(),
	}
}

func (u *User) roomList() []string {
	rooms := make([]string, 0, len(u.rooms))
	for id := range u.rooms {
		rooms = append(rooms, id)
	}
	sort.Strings(rooms)
	return rooms
}
