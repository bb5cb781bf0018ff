// Package client holds the connection-side half of the protocol: a
// state reducer that applies every inbound event to a local model, a
// thin WebSocket client feeding it, and a persisted user profile.
package client

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"

	"github.com/danakeller/parley/internal/message"
	"github.com/danakeller/parley/internal/room"
	"github.com/danakeller/parley/internal/user"
	"github.com/danakeller/parley/internal/wire"
)

// notificationRingSize bounds the locally retained notification feed.
const notificationRingSize = 25

// Notifier is the external collaborator poked when a message arrives
// while the app is unfocused.
type Notifier interface {
	Notify(title, body string)
}

// State is the client's in-memory model. Every inbound event applies
// one idempotent transformation; projections copy on read so callers
// never alias internal slices.
type State struct {
	mu sync.Mutex

	self    user.Snapshot
	joined  bool
	rooms   map[string]room.Snapshot
	online  []user.Snapshot
	members map[string][]user.Snapshot

	messages   map[string][]message.Snapshot
	nextCursor map[string]*time.Time
	hasMore    map[string]bool

	typing        map[string][]string
	unread        map[string]int
	notifications []wire.Notification
	searchResults wire.SearchResults

	activeRoom string
	focused    bool

	notifier Notifier
	log      hclog.Logger
}

// NewState creates an empty reducer. notifier may be nil.
func NewState(notifier Notifier, log hclog.Logger) *State {
	if log == nil {
		log = hclog.NewNullLogger()
	}
	return &State{
		rooms:      make(map[string]room.Snapshot),
		members:    make(map[string][]user.Snapshot),
		messages:   make(map[string][]message.Snapshot),
		nextCursor: make(map[string]*time.Time),
		hasMore:    make(map[string]bool),
		typing:     make(map[string][]string),
		unread:     make(map[string]int),
		focused:    true,
		notifier:   notifier,
		log:        log,
	}
}

// Apply routes one inbound envelope through the reducer. Unknown event
// types and undecodable payloads are logged and skipped.
func (s *State) Apply(env *wire.Envelope) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var err error
	switch env.Type {
	case wire.EventInitState:
		var p wire.InitState
		if err = env.Decode(&p); err == nil {
			s.applyInit(p)
		}
	case wire.EventJoinAck:
		var p wire.JoinAck
		if err = env.Decode(&p); err == nil && p.OK && p.User != nil {
			s.self = *p.User
			s.joined = true
		}
	case wire.EventRoomList:
		var rooms []room.Snapshot
		if err = env.Decode(&rooms); err == nil {
			for _, r := range rooms {
				s.rooms[r.ID] = r
			}
		}
	case wire.EventRoomJoined:
		var p wire.RoomJoined
		if err = env.Decode(&p); err == nil {
			s.rooms[p.Room.ID] = p.Room
		}
	case wire.EventRoomUsers:
		var p wire.RoomUsers
		if err = env.Decode(&p); err == nil {
			s.members[p.RoomID] = p.Users
		}
	case wire.EventMessagesHistory:
		var p wire.MessagesHistory
		if err = env.Decode(&p); err == nil {
			s.mergeHistory(p)
		}
	case wire.EventReceiveMessage, wire.EventPrivateMessage:
		var m message.Snapshot
		if err = env.Decode(&m); err == nil {
			s.upsertMessage(m)
		}
	case wire.EventMessageAck:
		var m message.Snapshot
		if err = env.Decode(&m); err == nil {
			s.reconcile(m)
		}
	case wire.EventPrivateAck:
		var p wire.PrivateAck
		if err = env.Decode(&p); err == nil && p.OK && p.Message != nil {
			s.reconcile(*p.Message)
		}
	case wire.EventTypingUsers:
		var p wire.TypingUsers
		if err = env.Decode(&p); err == nil {
			s.typing[p.RoomID] = p.Users
		}
	case wire.EventUserList:
		var users []user.Snapshot
		if err = env.Decode(&users); err == nil {
			s.online = users
		}
	case wire.EventNotification:
		var n wire.Notification
		if err = env.Decode(&n); err == nil {
			s.pushNotification(n)
		}
	case wire.EventMessageReaction:
		var p wire.ReactionUpdate
		if err = env.Decode(&p); err == nil {
			s.patchMessage(p.RoomID, p.MessageID, func(m *message.Snapshot) {
				m.Reactions = p.Reactions
			})
		}
	case wire.EventMessageRead:
		var p wire.ReadUpdate
		if err = env.Decode(&p); err == nil {
			s.patchMessage(p.RoomID, p.MessageID, func(m *message.Snapshot) {
				m.ReadBy = p.ReadBy
			})
		}
	case wire.EventSearchResults:
		var p wire.SearchResults
		if err = env.Decode(&p); err == nil {
			s.searchResults = p
		}
	case wire.EventRoomError:
		var p wire.RoomError
		if err = env.Decode(&p); err == nil {
			s.pushNotification(wire.Notification{
				ID:        uuid.NewString(),
				Type:      wire.NoticeError,
				Message:   p.Error,
				Timestamp: time.Now(),
			})
		}
	default:
		s.log.Debug("unhandled event", "type", env.Type)
	}
	if err != nil {
		s.log.Warn("bad payload dropped", "type", env.Type, "error", err)
	}
}

// applyInit replaces identity, rooms and presence wholesale.
func (s *State) applyInit(p wire.InitState) {
	s.self = p.User
	s.joined = true
	s.rooms = make(map[string]room.Snapshot, len(p.Rooms))
	for _, r := range p.Rooms {
		s.rooms[r.ID] = r
	}
	s.online = p.OnlineUsers
	if s.activeRoom == "" && len(p.Rooms) > 0 {
		s.activeRoom = p.Rooms[0].ID
	}
}

// mergeHistory merges a page into the room's log by id, later data
// winning on conflict, and resorts ascending by creation time.
func (s *State) mergeHistory(p wire.MessagesHistory) {
	byID := make(map[string]int, len(s.messages[p.RoomID]))
	msgs := s.messages[p.RoomID]
	for i, m := range msgs {
		byID[m.ID] = i
	}
	for _, m := range p.Messages {
		if i, ok := byID[m.ID]; ok {
			msgs[i] = m
		} else {
			byID[m.ID] = len(msgs)
			msgs = append(msgs, m)
		}
	}
	sort.SliceStable(msgs, func(i, j int) bool {
		return msgs[i].CreatedAt.Before(msgs[j].CreatedAt)
	})
	s.messages[p.RoomID] = msgs
	s.nextCursor[p.RoomID] = p.NextCursor
	s.hasMore[p.RoomID] = p.HasMore
}

// upsertMessage merges a live message into the room log. A broadcast
// carrying the sender's correlation id collapses the optimistic copy
// instead of appending a duplicate.
func (s *State) upsertMessage(m message.Snapshot) {
	msgs := s.messages[m.RoomID]
	if i := s.findMessage(msgs, m.ID, m.ClientTempID); i >= 0 {
		msgs[i] = m
		s.messages[m.RoomID] = msgs
		return
	}
	s.messages[m.RoomID] = append(msgs, m)

	if m.SenderID == s.self.ID {
		return
	}
	if m.RoomID != s.activeRoom {
		s.unread[m.RoomID]++
	}
	if !s.focused && s.notifier != nil {
		s.notifier.Notify(m.SenderName, m.Content)
	}
}

// reconcile replaces the optimistic copy, matched by correlation id and
// falling back to the final id, with the confirmed message. With no
// counterpart found the confirmed message is appended.
func (s *State) reconcile(m message.Snapshot) {
	msgs := s.messages[m.RoomID]
	if i := s.findMessage(msgs, m.ID, m.ClientTempID); i >= 0 {
		msgs[i] = m
		s.messages[m.RoomID] = msgs
		return
	}
	s.messages[m.RoomID] = append(msgs, m)
}

// findMessage locates a message by final id, or by the correlation id a
// provisional copy was inserted under.
func (s *State) findMessage(msgs []message.Snapshot, id, tempID string) int {
	for i, m := range msgs {
		if m.ID == id {
			return i
		}
		if tempID != "" && (m.ID == tempID || m.ClientTempID == tempID) {
			return i
		}
	}
	return -1
}

func (s *State) patchMessage(roomID, messageID string, fn func(*message.Snapshot)) {
	msgs := s.messages[roomID]
	for i := range msgs {
		if msgs[i].ID == messageID {
			fn(&msgs[i])
			return
		}
	}
}

func (s *State) pushNotification(n wire.Notification) {
	s.notifications = append(s.notifications, n)
	if len(s.notifications) > notificationRingSize {
		s.notifications = s.notifications[len(s.notifications)-notificationRingSize:]
	}
}

// InsertOptimistic synthesizes a provisional message for an outbound
// send and inserts it immediately. The generated id doubles as the
// correlation id the acknowledgement echoes back.
func (s *State) InsertOptimistic(roomID, content string, attachments []message.Attachment) message.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.NewString()
	m := message.Snapshot{
		ID:           id,
		ClientTempID: id,
		RoomID:       roomID,
		SenderID:     s.self.ID,
		SenderName:   s.self.Username,
		AvatarColor:  s.self.AvatarColor,
		Content:      content,
		Attachments:  attachments,
		CreatedAt:    time.Now(),
		ReadBy:       []string{s.self.ID},
		Pending:      true,
	}
	s.messages[roomID] = append(s.messages[roomID], m)
	return m
}

// SetActiveRoom switches the open room and clears its unread counter.
func (s *State) SetActiveRoom(roomID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activeRoom = roomID
	delete(s.unread, roomID)
}

// SetFocused records whether the app currently has focus.
func (s *State) SetFocused(focused bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.focused = focused
}

// User returns the local identity and whether the join completed.
func (s *State) User() (user.Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.self, s.joined
}

// ActiveRoom returns the currently open room id.
func (s *State) ActiveRoom() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeRoom
}

// Rooms returns every known room, general first, then by name.
func (s *State) Rooms() []room.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]room.Snapshot, 0, len(s.rooms))
	for _, r := range s.rooms {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ID == "general" {
			return true
		}
		if out[j].ID == "general" {
			return false
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// Messages returns a copy of a room's merged message log.
func (s *State) Messages(roomID string) []message.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	msgs := s.messages[roomID]
	out := make([]message.Snapshot, len(msgs))
	copy(out, msgs)
	return out
}

// HasMore reports whether older history remains for the room, along
// with the cursor to request it.
func (s *State) HasMore(roomID string) (*time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextCursor[roomID], s.hasMore[roomID]
}

// Unread returns the room's unread counter.
func (s *State) Unread(roomID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unread[roomID]
}

// Online returns the connected-user list.
func (s *State) Online() []user.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]user.Snapshot, len(s.online))
	copy(out, s.online)
	return out
}

// RoomMembers returns the last received membership list for a room.
func (s *State) RoomMembers(roomID string) []user.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	members := s.members[roomID]
	out := make([]user.Snapshot, len(members))
	copy(out, members)
	return out
}

// Typing returns the display names composing in a room.
func (s *State) Typing(roomID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := s.typing[roomID]
	out := make([]string, len(names))
	copy(out, names)
	return out
}

// Notifications returns the bounded notification feed, oldest first.
func (s *State) Notifications() []wire.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]wire.Notification, len(s.notifications))
	copy(out, s.notifications)
	return out
}

// SearchResults returns the last search answer received.
func (s *State) SearchResults() wire.SearchResults {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.searchResults
}
