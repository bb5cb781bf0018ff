// Package wire defines the event envelope and the typed payloads carried
// over the WebSocket connection. Both the server handlers and the client
// reducer speak in these types; a decode step rejects malformed frames
// before they reach any business logic.
package wire

import (
	"encoding/json"
	"time"

	"github.com/danakeller/parley/internal/message"
	"github.com/danakeller/parley/internal/room"
	"github.com/danakeller/parley/internal/user"
)

// Envelope is the JSON frame sent in both directions.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Client-to-server event types.
const (
	EventUserJoin        = "user_join"
	EventJoinRoom        = "join_room"
	EventLeaveRoom       = "leave_room"
	EventCreateRoom      = "create_room"
	EventSendMessage     = "send_message"
	EventPrivateMessage  = "private_message"
	EventTyping          = "typing"
	EventLoadMessages    = "load_messages"
	EventMessageRead     = "message_read"
	EventMessageReaction = "message_reaction"
	EventSearchMessages  = "search_messages"
)

// Server-to-client event types. EventPrivateMessage doubles as the
// broadcast type for delivered direct messages.
const (
	EventInitState       = "init_state"
	EventRoomList        = "room_list"
	EventRoomJoined      = "room_joined"
	EventRoomUsers       = "room_users"
	EventMessagesHistory = "messages_history"
	EventReceiveMessage  = "receive_message"
	EventTypingUsers     = "typing_users"
	EventUserList        = "user_list"
	EventNotification    = "notification"
	EventSearchResults   = "search_results"
	EventMessageAck      = "message_ack"
	EventJoinAck         = "join_ack"
	EventPrivateAck      = "private_ack"
	EventRoomError       = "room_error"
)

// Marshal wraps a payload in an envelope and returns the full frame.
func Marshal(eventType string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Type: eventType, Payload: data})
}

// Decode unmarshals the envelope payload into v.
func (e *Envelope) Decode(v any) error {
	return json.Unmarshal(e.Payload, v)
}

// UserJoin starts the join handshake for a connection.
type UserJoin struct {
	Username    string `json:"username"`
	AvatarColor string `json:"avatarColor,omitempty"`
}

// JoinRoom subscribes the connection to a room.
type JoinRoom struct {
	RoomID string `json:"roomId"`
}

// LeaveRoom is the idempotent inverse of JoinRoom.
type LeaveRoom struct {
	RoomID string `json:"roomId"`
}

// CreateRoom requests a new named room.
type CreateRoom struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	IsPrivate   bool   `json:"isPrivate,omitempty"`
}

// SendMessage posts a message to a room. ClientTempID correlates the
// acknowledgement with the sender's optimistic copy.
type SendMessage struct {
	RoomID       string               `json:"roomId,omitempty"`
	Message      string               `json:"message"`
	Attachments  []message.Attachment `json:"attachments,omitempty"`
	ClientTempID string               `json:"clientTempId,omitempty"`
}

// PrivateMessage posts a direct message to another user.
type PrivateMessage struct {
	To           string               `json:"to"`
	Message      string               `json:"message"`
	Attachments  []message.Attachment `json:"attachments,omitempty"`
	ClientTempID string               `json:"clientTempId,omitempty"`
}

// Typing toggles the sender's entry in a room's typing set.
type Typing struct {
	RoomID   string `json:"roomId"`
	IsTyping bool   `json:"isTyping"`
}

// LoadMessages requests the history page before the cursor.
type LoadMessages struct {
	RoomID string     `json:"roomId"`
	Cursor *time.Time `json:"cursor,omitempty"`
	Limit  int        `json:"limit,omitempty"`
}

// MessageRead records a read receipt.
type MessageRead struct {
	RoomID    string `json:"roomId"`
	MessageID string `json:"messageId"`
	ReaderID  string `json:"readerId,omitempty"`
}

// MessageReaction toggles a reaction symbol on a message.
type MessageReaction struct {
	RoomID    string `json:"roomId"`
	MessageID string `json:"messageId"`
	Reaction  string `json:"reaction"`
}

// SearchMessages requests a substring search over a room's history.
type SearchMessages struct {
	RoomID string `json:"roomId"`
	Query  string `json:"query"`
}

// InitState is the first snapshot a freshly joined connection receives.
type InitState struct {
	User        user.Snapshot   `json:"user"`
	Rooms       []room.Snapshot `json:"rooms"`
	OnlineUsers []user.Snapshot `json:"onlineUsers"`
}

// RoomJoined confirms a room join to the joining connection only.
type RoomJoined struct {
	Room   room.Snapshot `json:"room"`
	RoomID string        `json:"roomId"`
}

// RoomUsers carries a room's full membership list.
type RoomUsers struct {
	RoomID string          `json:"roomId"`
	Users  []user.Snapshot `json:"users"`
}

// MessagesHistory is one page of a room's history.
type MessagesHistory struct {
	RoomID     string             `json:"roomId"`
	Messages   []message.Snapshot `json:"messages"`
	NextCursor *time.Time         `json:"nextCursor"`
	HasMore    bool               `json:"hasMore"`
}

// TypingUsers carries the display names currently composing in a room.
type TypingUsers struct {
	RoomID string   `json:"roomId"`
	Users  []string `json:"users"`
}

// Notification is an ephemeral process-wide event broadcast to all
// connections. The server retains no notification history.
type Notification struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	RoomID    string    `json:"roomId,omitempty"`
}

// Notification types.
const (
	NoticeUserJoined  = "user_joined"
	NoticeUserLeft    = "user_left"
	NoticeRoomCreated = "room_created"
	NoticeMessage     = "message"
	NoticeError       = "error"
)

// ReactionUpdate broadcasts a message's full reaction projection.
type ReactionUpdate struct {
	RoomID    string              `json:"roomId"`
	MessageID string              `json:"messageId"`
	Reactions map[string][]string `json:"reactions"`
}

// ReadUpdate broadcasts a message's updated read set.
type ReadUpdate struct {
	RoomID    string   `json:"roomId"`
	MessageID string   `json:"messageId"`
	ReadBy    []string `json:"readBy"`
}

// SearchResults answers a SearchMessages request.
type SearchResults struct {
	RoomID  string             `json:"roomId"`
	Query   string             `json:"query"`
	Results []message.Snapshot `json:"results"`
}

// JoinAck answers a UserJoin request.
type JoinAck struct {
	OK    bool           `json:"ok"`
	User  *user.Snapshot `json:"user,omitempty"`
	Error string         `json:"error,omitempty"`
}

// PrivateAck answers a PrivateMessage request.
type PrivateAck struct {
	OK      bool              `json:"ok"`
	Message *message.Snapshot `json:"message,omitempty"`
	RoomID  string            `json:"roomId,omitempty"`
	Error   string            `json:"error,omitempty"`
}

// RoomError reports a rejected room operation.
type RoomError struct {
	Error string `json:"error"`
}
