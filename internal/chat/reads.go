package chat

import (
	"sort"
	"time"

	"github.com/danakeller/parley/internal/message"
	"github.com/danakeller/parley/internal/room"
	"github.com/danakeller/parley/internal/user"
)

// Read paths shared by the live-socket handlers and the HTTP mirror, so
// both surfaces return the same results.

// Rooms lists every room.
func (s *Service) Rooms() []room.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rooms.List()
}

// Room returns a single room snapshot.
func (s *Service) Room(roomID string) (room.Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rooms.Get(roomID)
}

// HasRoom reports whether the room exists.
func (s *Service) HasRoom(roomID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rooms.Has(roomID)
}

// OnlineUsers lists every connected user.
func (s *Service) OnlineUsers() []user.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.users.Online()
}

// History returns one page of a room's message log.
func (s *Service) History(roomID string, cursor *time.Time, limit int) message.Page {
	s.mu.Lock()
	defer s.mu.Unlock()
	if limit <= 0 {
		limit = s.pageSize
	}
	return s.store.PageBefore(roomID, cursor, limit)
}

// SearchAll runs an uncapped substring search over a room's history.
func (s *Service) SearchAll(roomID, query string) []message.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Search(roomID, query, 0)
}

// TypingUsers returns the display names currently composing in a room.
func (s *Service) TypingUsers(roomID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	set := s.typing[roomID]
	names := make([]string, 0, len(set))
	for _, name := range set {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
