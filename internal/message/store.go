package message

import (
	"strings"
	"sync"
	"time"
)

// Page is one slice of a room's history, oldest first. NextCursor is the
// CreatedAt of the earliest returned message, to be fed back into
// PageBefore to walk further into the past.
type Page struct {
	Messages   []Snapshot `json:"messages"`
	NextCursor *time.Time `json:"nextCursor"`
	HasMore    bool       `json:"hasMore"`
}

// Store is the interface for message log backends.
type Store interface {
	// Append pushes a message onto the room's log, evicting from the
	// head once the log exceeds the store's capacity.
	Append(msg *Message)
	// LatestPage returns the newest n messages in ascending time order.
	LatestPage(roomID string, n int) Page
	// PageBefore returns up to n messages immediately preceding the
	// message whose CreatedAt equals cursor. A nil cursor behaves like
	// LatestPage; an unmatched cursor is treated as end of log.
	PageBefore(roomID string, cursor *time.Time, n int) Page
	// MarkRead inserts the reader into the message's read set and
	// returns the updated list. The bool is false if the message does
	// not exist.
	MarkRead(roomID, messageID, userID string) ([]string, bool)
	// ToggleReaction toggles the user on the symbol's set and returns
	// the full reaction projection for the message.
	ToggleReaction(roomID, messageID, symbol, userID string) (map[string][]string, bool)
	// Search scans the room's log for a case-insensitive substring of
	// the content. Log order is preserved; when limit > 0 only the
	// newest limit matches are kept.
	Search(roomID, query string, limit int) []Snapshot
	// Count returns the number of stored messages for a room.
	Count(roomID string) int
}

// MemStore keeps per-room bounded append logs in memory.
type MemStore struct {
	mu      sync.RWMutex
	rooms   map[string][]*Message
	maxSize int
}

// NewStore creates an in-memory store retaining up to maxSize messages
// per room.
func NewStore(maxSize int) *MemStore {
	return &MemStore{
		rooms:   make(map[string][]*Message),
		maxSize: maxSize,
	}
}

// Append adds a message to the room's log.
func (s *MemStore) Append(msg *Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msgs := append(s.rooms[msg.RoomID], msg)
	if len(msgs) > s.maxSize {
		msgs = msgs[len(msgs)-s.maxSize:]
	}
	s.rooms[msg.RoomID] = msgs
}

// LatestPage returns the newest n messages in ascending time order.
func (s *MemStore) LatestPage(roomID string, n int) Page {
	return s.PageBefore(roomID, nil, n)
}

// PageBefore walks the room history strictly backward in time.
func (s *MemStore) PageBefore(roomID string, cursor *time.Time, n int) Page {
	s.mu.RLock()
	msgs := s.rooms[roomID]
	snaps := make([]Snapshot, len(msgs))
	for i, m := range msgs {
		snaps[i] = m.Snapshot()
	}
	s.mu.RUnlock()
	return paginate(snaps, cursor, n)
}

// MarkRead inserts the reader into the message's read set.
func (s *MemStore) MarkRead(roomID, messageID, userID string) ([]string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.findLocked(roomID, messageID)
	if m == nil {
		return nil, false
	}
	return m.markRead(userID), true
}

// ToggleReaction toggles the user's reaction on a message.
func (s *MemStore) ToggleReaction(roomID, messageID, symbol, userID string) (map[string][]string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.findLocked(roomID, messageID)
	if m == nil {
		return nil, false
	}
	return m.toggleReaction(symbol, userID), true
}

// Search scans the room's log for a content substring.
func (s *MemStore) Search(roomID, query string, limit int) []Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	lower := strings.ToLower(query)
	var results []Snapshot
	for _, m := range s.rooms[roomID] {
		if strings.Contains(strings.ToLower(m.Content), lower) {
			results = append(results, m.Snapshot())
		}
	}
	return capNewest(results, limit)
}

// Count returns the number of stored messages for a room.
func (s *MemStore) Count(roomID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rooms[roomID])
}

func (s *MemStore) findLocked(roomID, messageID string) *Message {
	for _, m := range s.rooms[roomID] {
		if m.ID == messageID {
			return m
		}
	}
	return nil
}

// paginate slices an ascending log into a history page. The cursor must
// match a message's CreatedAt exactly; a miss means end of log. Ties on
// identical timestamps stay in insertion order.
func paginate(msgs []Snapshot, cursor *time.Time, n int) Page {
	end := len(msgs)
	if cursor != nil {
		end = len(msgs)
		for i, m := range msgs {
			if m.CreatedAt.Equal(*cursor) {
				end = i
				break
			}
		}
	}
	start := end - n
	if start < 0 {
		start = 0
	}
	chunk := msgs[start:end]
	page := Page{
		Messages: append([]Snapshot(nil), chunk...),
		HasMore:  start > 0,
	}
	if page.Messages == nil {
		page.Messages = []Snapshot{}
	}
	if len(chunk) > 0 {
		first := chunk[0].CreatedAt
		page.NextCursor = &first
	}
	return page
}

// capNewest keeps only the last limit entries of an ascending result set.
func capNewest(results []Snapshot, limit int) []Snapshot {
	if results == nil {
		return []Snapshot{}
	}
	if limit > 0 && len(results) > limit {
		results = results[len(results)-limit:]
	}
	return results
}
