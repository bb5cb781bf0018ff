// Package chat holds the server-side room/session/message-delivery
// engine. A single Service owns the connection registry, room directory,
// message store and typing sets; every operation runs to completion
// under one lock, so handlers never observe a half-applied mutation.
package chat

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"

	"github.com/danakeller/parley/internal/message"
	"github.com/danakeller/parley/internal/room"
	"github.com/danakeller/parley/internal/user"
	"github.com/danakeller/parley/internal/wire"
)

const (
	defaultPageSize    = 25
	defaultMaxAttach   = 2 << 20 // 2 MiB
	liveSearchLimit    = 20
	generalRoomID      = "general"
	attachmentFallback = "sent an attachment"
)

// Emitter delivers already-encoded frames to connections. Broadcasts
// are fire-and-forget: a disconnected recipient simply misses them.
type Emitter interface {
	ToConn(connID string, data []byte)
	ToRoom(roomID string, data []byte)
	ToAll(data []byte)
	Subscribe(connID, roomID string)
	Unsubscribe(connID, roomID string)
}

// Config wires a Service.
type Config struct {
	Store              message.Store
	Emitter            Emitter
	Logger             hclog.Logger
	PageSize           int
	MaxAttachmentBytes int64
}

// Service is the session manager owning all live chat state.
type Service struct {
	mu sync.Mutex

	users  *user.Registry
	rooms  *room.Directory
	store  message.Store
	typing map[string]map[string]string // roomID -> userID -> username

	emitter   Emitter
	log       hclog.Logger
	pageSize  int
	maxAttach int64
}

// New creates a Service with the default public rooms seeded.
func New(cfg Config) *Service {
	if cfg.Logger == nil {
		cfg.Logger = hclog.NewNullLogger()
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = defaultPageSize
	}
	if cfg.MaxAttachmentBytes <= 0 {
		cfg.MaxAttachmentBytes = defaultMaxAttach
	}
	dir := room.NewDirectory()
	dir.SeedDefaults()
	return &Service{
		users:     user.NewRegistry(),
		rooms:     dir,
		store:     cfg.Store,
		typing:    make(map[string]map[string]string),
		emitter:   cfg.Emitter,
		log:       cfg.Logger,
		pageSize:  cfg.PageSize,
		maxAttach: cfg.MaxAttachmentBytes,
	}
}

// Join completes the join handshake for a connection: the user is
// registered, auto-enrolled into every default room, and handed the
// initial state snapshot before the acknowledgement is sent, so the
// first snapshot a client sees is never empty.
func (s *Service) Join(connID string, p wire.UserJoin) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, err := s.users.Join(connID, p.Username, p.AvatarColor)
	if err != nil {
		s.toConn(connID, wire.EventJoinAck, wire.JoinAck{OK: false, Error: "Username is required"})
		return err
	}
	s.log.Info("user joined", "conn", connID, "username", u.Username)

	for _, roomID := range room.DefaultRoomIDs() {
		s.joinRoomLocked(connID, roomID)
	}

	// Re-read so the snapshot carries the enrolled rooms.
	u, _ = s.users.Get(connID)
	s.toConn(connID, wire.EventInitState, wire.InitState{
		User:        u,
		Rooms:       s.rooms.List(),
		OnlineUsers: s.users.Online(),
	})
	s.toAll(wire.EventUserList, s.users.Online())
	s.notify(wire.NoticeUserJoined, u.Username+" joined the chat", "")
	s.toConn(connID, wire.EventJoinAck, wire.JoinAck{OK: true, User: &u})
	return nil
}

// Disconnect tears down a connection's identity: the user is removed
// from every room they were a member of, with presence and typing
// updates broadcast per room, before the live record is deleted.
func (s *Service) Disconnect(connID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users.Get(connID); !ok {
		return
	}
	for _, roomID := range s.users.Rooms(connID) {
		s.leaveRoomLocked(connID, roomID)
	}
	snap, _ := s.users.Remove(connID)
	s.log.Info("user disconnected", "conn", connID, "username", snap.Username)
	s.toAll(wire.EventUserList, s.users.Online())
	s.notify(wire.NoticeUserLeft, snap.Username+" left the chat", "")
}

// JoinRoom idempotently adds the connection's user to a room.
func (s *Service) JoinRoom(connID, roomID string) {
	if roomID == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.joinRoomLocked(connID, roomID)
}

// LeaveRoom is the idempotent inverse of JoinRoom.
func (s *Service) LeaveRoom(connID, roomID string) {
	if roomID == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.leaveRoomLocked(connID, roomID)
}

// CreateRoom creates a named room and enrolls the creator. Validation
// failures surface as room_error events, never as dropped connections.
func (s *Service) CreateRoom(connID string, p wire.CreateRoom) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users.Get(connID)
	if !ok {
		return
	}
	r, err := s.rooms.Create(p.Name, p.Description, p.IsPrivate, u.Username)
	switch err {
	case nil:
	case room.ErrNameRequired:
		s.toConn(connID, wire.EventRoomError, wire.RoomError{Error: "Room name is required"})
		return
	case room.ErrRoomExists:
		s.toConn(connID, wire.EventRoomError, wire.RoomError{Error: "Room already exists"})
		return
	default:
		s.log.Error("create room", "error", err)
		return
	}

	s.joinRoomLocked(connID, r.ID)
	s.toAll(wire.EventRoomList, s.rooms.List())
	s.notify(wire.NoticeRoomCreated, u.Username+" created #"+r.Name, r.ID)
}

// Send validates and persists an outbound message, acknowledges the
// sender and fans the message out to the room. An unknown sender is a
// no-op. The append to the store is the durability point.
func (s *Service) Send(connID string, p wire.SendMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users.Get(connID)
	if !ok {
		s.log.Debug("send from unknown connection dropped", "conn", connID)
		return
	}
	roomID := p.RoomID
	if roomID == "" {
		roomID = generalRoomID
	}
	if !s.rooms.IsMember(roomID, u.ID) {
		s.joinRoomLocked(connID, roomID)
	}

	msg := s.buildMessage(u, roomID, p.Message, p.Attachments, p.ClientTempID, false)
	s.store.Append(msg)
	dto := msg.Snapshot()

	s.toConn(connID, wire.EventMessageAck, dto)
	s.toRoom(roomID, wire.EventReceiveMessage, dto)

	text := dto.Content
	if text == "" {
		text = attachmentFallback
	}
	s.notify(wire.NoticeMessage, u.Username+": "+text, roomID)
}

// SendPrivate delivers a direct message. The recipient must be online;
// otherwise an offline error is acknowledged and nothing is created.
func (s *Service) SendPrivate(connID string, p wire.PrivateMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sender, ok := s.users.Get(connID)
	if !ok {
		return
	}
	target, ok := s.users.Get(p.To)
	if !ok {
		s.toConn(connID, wire.EventPrivateAck, wire.PrivateAck{OK: false, Error: "User offline"})
		return
	}

	roomID := room.ConversationID(sender.ID, target.ID)
	s.rooms.EnsureConversation(roomID, sender.Username+" & "+target.Username, sender.ID, target.ID)
	s.users.AddRoom(sender.ID, roomID)
	s.users.AddRoom(target.ID, roomID)
	s.joinRoomLocked(connID, roomID)
	// Subscribe the recipient's connection without touching their active
	// room selection; the broadcast below reaches both parties.
	s.emitter.Subscribe(target.ID, roomID)

	msg := s.buildMessage(sender, roomID, p.Message, p.Attachments, p.ClientTempID, true)
	s.store.Append(msg)
	dto := msg.Snapshot()

	s.toConn(connID, wire.EventPrivateAck, wire.PrivateAck{OK: true, Message: &dto, RoomID: roomID})
	s.toRoom(roomID, wire.EventPrivateMessage, dto)
}

// Typing adds or removes the user from the room's typing set. The
// broadcast always fires, including on no-op transitions; expiry is the
// sending client's responsibility, the server holds no timer.
func (s *Service) Typing(connID string, p wire.Typing) {
	if p.RoomID == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users.Get(connID)
	if !ok {
		return
	}
	set := s.typing[p.RoomID]
	if set == nil {
		set = make(map[string]string)
		s.typing[p.RoomID] = set
	}
	if p.IsTyping {
		set[u.ID] = u.Username
	} else {
		delete(set, u.ID)
	}
	s.broadcastTypingLocked(p.RoomID)
}

// LoadMessages answers a history page request on the caller's
// connection only.
func (s *Service) LoadMessages(connID string, p wire.LoadMessages) {
	if p.RoomID == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	limit := p.Limit
	if limit <= 0 {
		limit = s.pageSize
	}
	page := s.store.PageBefore(p.RoomID, p.Cursor, limit)
	s.toConn(connID, wire.EventMessagesHistory, wire.MessagesHistory{
		RoomID:     p.RoomID,
		Messages:   page.Messages,
		NextCursor: page.NextCursor,
		HasMore:    page.HasMore,
	})
}

// MarkRead inserts a read receipt and broadcasts the updated read set.
// Unknown messages are a no-op.
func (s *Service) MarkRead(connID string, p wire.MessageRead) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users.Get(connID)
	if !ok {
		return
	}
	reader := p.ReaderID
	if reader == "" {
		reader = u.ID
	}
	readBy, ok := s.store.MarkRead(p.RoomID, p.MessageID, reader)
	if !ok {
		return
	}
	s.toRoom(p.RoomID, wire.EventMessageRead, wire.ReadUpdate{
		RoomID:    p.RoomID,
		MessageID: p.MessageID,
		ReadBy:    readBy,
	})
}

// ToggleReaction toggles the user on a reaction symbol and broadcasts
// the message's full reaction projection.
func (s *Service) ToggleReaction(connID string, p wire.MessageReaction) {
	if p.RoomID == "" || p.MessageID == "" || p.Reaction == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users.Get(connID)
	if !ok {
		return
	}
	reactions, ok := s.store.ToggleReaction(p.RoomID, p.MessageID, p.Reaction, u.ID)
	if !ok {
		return
	}
	s.toRoom(p.RoomID, wire.EventMessageReaction, wire.ReactionUpdate{
		RoomID:    p.RoomID,
		MessageID: p.MessageID,
		Reactions: reactions,
	})
}

// Search answers a live substring search on the caller's connection,
// capped to the newest matches.
func (s *Service) Search(connID string, p wire.SearchMessages) {
	if p.RoomID == "" || p.Query == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	results := s.store.Search(p.RoomID, p.Query, liveSearchLimit)
	s.toConn(connID, wire.EventSearchResults, wire.SearchResults{
		RoomID:  p.RoomID,
		Query:   p.Query,
		Results: results,
	})
}

// joinRoomLocked performs the full room-join sequence: membership,
// subscription, membership broadcast, join confirmation and the latest
// history page for the joining connection.
func (s *Service) joinRoomLocked(connID, roomID string) {
	u, ok := s.users.Get(connID)
	if !ok {
		return
	}
	r := s.rooms.AddMember(roomID, u.ID)
	s.users.AddRoom(connID, roomID)
	s.emitter.Subscribe(connID, roomID)

	s.toRoom(roomID, wire.EventRoomUsers, s.roomUsersLocked(roomID))
	s.toConn(connID, wire.EventRoomJoined, wire.RoomJoined{Room: r, RoomID: roomID})

	page := s.store.LatestPage(roomID, s.pageSize)
	s.toConn(connID, wire.EventMessagesHistory, wire.MessagesHistory{
		RoomID:     roomID,
		Messages:   page.Messages,
		NextCursor: page.NextCursor,
		HasMore:    page.HasMore,
	})
}

// leaveRoomLocked removes membership, clears any typing entry and
// re-broadcasts typing and membership to the room.
func (s *Service) leaveRoomLocked(connID, roomID string) {
	u, ok := s.users.Get(connID)
	if !ok {
		return
	}
	if !s.rooms.RemoveMember(roomID, u.ID) {
		return
	}
	s.users.RemoveRoom(connID, roomID)
	if set, ok := s.typing[roomID]; ok {
		delete(set, u.ID)
	}
	s.broadcastTypingLocked(roomID)
	s.toRoom(roomID, wire.EventRoomUsers, s.roomUsersLocked(roomID))
	s.emitter.Unsubscribe(connID, roomID)
}

func (s *Service) broadcastTypingLocked(roomID string) {
	set := s.typing[roomID]
	names := make([]string, 0, len(set))
	for _, name := range set {
		names = append(names, name)
	}
	sort.Strings(names)
	s.toRoom(roomID, wire.EventTypingUsers, wire.TypingUsers{RoomID: roomID, Users: names})
}

func (s *Service) roomUsersLocked(roomID string) wire.RoomUsers {
	ids := s.rooms.MemberIDs(roomID)
	users := make([]user.Snapshot, 0, len(ids))
	for _, id := range ids {
		users = append(users, s.users.Member(id))
	}
	return wire.RoomUsers{RoomID: roomID, Users: users}
}

// buildMessage constructs a message with a denormalized sender snapshot
// and the sender pre-seeded into the read set.
func (s *Service) buildMessage(u user.Snapshot, roomID, content string, atts []message.Attachment, tempID string, private bool) *message.Message {
	now := time.Now()
	return &message.Message{
		ID:           uuid.NewString(),
		ClientTempID: tempID,
		RoomID:       roomID,
		SenderID:     u.ID,
		SenderName:   u.Username,
		AvatarColor:  u.AvatarColor,
		Content:      strings.TrimSpace(content),
		Attachments:  message.SanitizeAttachments(atts, s.maxAttach),
		CreatedAt:    now,
		DeliveredAt:  now,
		IsPrivate:    private,
		ReadBy:       map[string]struct{}{u.ID: {}},
		Reactions:    make(map[string]map[string]struct{}),
	}
}

func (s *Service) notify(noticeType, text, roomID string) {
	s.toAll(wire.EventNotification, wire.Notification{
		ID:        uuid.NewString(),
		Type:      noticeType,
		Message:   text,
		Timestamp: time.Now(),
		RoomID:    roomID,
	})
}

func (s *Service) toConn(connID, eventType string, payload any) {
	data, err := wire.Marshal(eventType, payload)
	if err != nil {
		s.log.Error("marshal event", "type", eventType, "error", err)
		return
	}
	s.emitter.ToConn(connID, data)
}

func (s *Service) toRoom(roomID, eventType string, payload any) {
	data, err := wire.Marshal(eventType, payload)
	if err != nil {
		s.log.Error("marshal event", "type", eventType, "error", err)
		return
	}
	s.emitter.ToRoom(roomID, data)
}

func (s *Service) toAll(eventType string, payload any) {
	data, err := wire.Marshal(eventType, payload)
	if err != nil {
		s.log.Error("marshal event", "type", eventType, "error", err)
		return
	}
	s.emitter.ToAll(data)
}
