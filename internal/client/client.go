package client

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
	"nhooyr.io/websocket"

	"github.com/danakeller/parley/internal/message"
	"github.com/danakeller/parley/internal/wire"
)

const (
	// typingIdle is how long after the last keystroke the stop-typing
	// signal fires.
	typingIdle = 1200 * time.Millisecond

	writeTimeout = 5 * time.Second
)

// ErrEmptyMessage rejects a send with no content and no attachments at
// the composer, before it reaches the wire.
var ErrEmptyMessage = errors.New("client: message needs content or an attachment")

// Config wires a Client.
type Config struct {
	URL         string
	Username    string
	AvatarColor string
	Notifier    Notifier
	Logger      hclog.Logger
	TypingIdle  time.Duration
}

// Client is a connected chat participant: it feeds inbound frames to
// its State and translates method calls into outbound events.
type Client struct {
	conn  *websocket.Conn
	state *State
	log   hclog.Logger

	writeMu sync.Mutex

	typingMu    sync.Mutex
	typingTimer *time.Timer
	typingRoom  string
	typingIdle  time.Duration

	done chan struct{}
}

// Dial connects, starts the read loop and sends the join handshake.
// The returned client is usable immediately; state fills in as the
// server answers.
func Dial(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.Logger == nil {
		cfg.Logger = hclog.NewNullLogger()
	}
	if cfg.TypingIdle <= 0 {
		cfg.TypingIdle = typingIdle
	}

	conn, _, err := websocket.Dial(ctx, cfg.URL, nil)
	if err != nil {
		return nil, err
	}

	c := &Client{
		conn:       conn,
		state:      NewState(cfg.Notifier, cfg.Logger),
		log:        cfg.Logger,
		typingIdle: cfg.TypingIdle,
		done:       make(chan struct{}),
	}
	go c.readLoop()

	if err := c.send(wire.EventUserJoin, wire.UserJoin{
		Username:    cfg.Username,
		AvatarColor: cfg.AvatarColor,
	}); err != nil {
		conn.Close(websocket.StatusInternalError, "join failed")
		return nil, err
	}
	return c, nil
}

// State exposes the reducer for projections.
func (c *Client) State() *State { return c.state }

// Done closes when the connection ends.
func (c *Client) Done() <-chan struct{} { return c.done }

// Close tears the connection down.
func (c *Client) Close() error {
	return c.conn.Close(websocket.StatusNormalClosure, "")
}

func (c *Client) readLoop() {
	defer close(c.done)
	for {
		_, data, err := c.conn.Read(context.Background())
		if err != nil {
			c.log.Debug("connection closed", "error", err)
			return
		}
		var env wire.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			c.log.Warn("malformed frame dropped", "error", err)
			continue
		}
		c.state.Apply(&env)
	}
}

// SendMessage posts to a room with an immediate optimistic insert. The
// provisional copy is reconciled when the acknowledgement arrives.
func (c *Client) SendMessage(roomID, content string, attachments []message.Attachment) error {
	if content == "" && len(attachments) == 0 {
		return ErrEmptyMessage
	}
	m := c.state.InsertOptimistic(roomID, content, attachments)
	c.stopTyping(roomID)
	return c.send(wire.EventSendMessage, wire.SendMessage{
		RoomID:       roomID,
		Message:      content,
		Attachments:  attachments,
		ClientTempID: m.ClientTempID,
	})
}

// SendPrivate posts a direct message to another user. No optimistic
// insert: the conversation room id is only known once the
// acknowledgement names it.
func (c *Client) SendPrivate(to, content string, attachments []message.Attachment) error {
	if content == "" && len(attachments) == 0 {
		return ErrEmptyMessage
	}
	return c.send(wire.EventPrivateMessage, wire.PrivateMessage{
		To:          to,
		Message:     content,
		Attachments: attachments,
	})
}

// JoinRoom subscribes to a room and makes it the active one.
func (c *Client) JoinRoom(roomID string) error {
	c.state.SetActiveRoom(roomID)
	return c.send(wire.EventJoinRoom, wire.JoinRoom{RoomID: roomID})
}

// LeaveRoom drops the membership.
func (c *Client) LeaveRoom(roomID string) error {
	return c.send(wire.EventLeaveRoom, wire.LeaveRoom{RoomID: roomID})
}

// CreateRoom requests a new room. The server answers with either an
// updated room list or a room_error notification.
func (c *Client) CreateRoom(name, description string, private bool) error {
	return c.send(wire.EventCreateRoom, wire.CreateRoom{
		Name:        name,
		Description: description,
		IsPrivate:   private,
	})
}

// LoadOlder requests the next history page for a room. It is a no-op
// once the full log is local.
func (c *Client) LoadOlder(roomID string) error {
	cursor, more := c.state.HasMore(roomID)
	if !more {
		return nil
	}
	return c.send(wire.EventLoadMessages, wire.LoadMessages{
		RoomID: roomID,
		Cursor: cursor,
	})
}

// MarkRoomRead sends a read receipt for every message in the room the
// local user has not read yet.
func (c *Client) MarkRoomRead(roomID string) error {
	self, ok := c.state.User()
	if !ok {
		return nil
	}
	for _, m := range c.state.Messages(roomID) {
		read := false
		for _, id := range m.ReadBy {
			if id == self.ID {
				read = true
				break
			}
		}
		if read || m.Pending {
			continue
		}
		err := c.send(wire.EventMessageRead, wire.MessageRead{
			RoomID:    roomID,
			MessageID: m.ID,
			ReaderID:  self.ID,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// React toggles a reaction symbol on a message.
func (c *Client) React(roomID, messageID, reaction string) error {
	return c.send(wire.EventMessageReaction, wire.MessageReaction{
		RoomID:    roomID,
		MessageID: messageID,
		Reaction:  reaction,
	})
}

// Search asks for the newest matches in a room's history. The answer
// lands in State.SearchResults.
func (c *Client) Search(roomID, query string) error {
	return c.send(wire.EventSearchMessages, wire.SearchMessages{
		RoomID: roomID,
		Query:  query,
	})
}

// Typing signals composing activity. Each call restarts the idle timer
// that sends the stop signal after the inactivity window; callers just
// invoke this per keystroke.
func (c *Client) Typing(roomID string) error {
	c.typingMu.Lock()
	if c.typingTimer != nil {
		c.typingTimer.Stop()
	}
	c.typingRoom = roomID
	c.typingTimer = time.AfterFunc(c.typingIdle, func() {
		c.stopTyping(roomID)
	})
	c.typingMu.Unlock()

	return c.send(wire.EventTyping, wire.Typing{RoomID: roomID, IsTyping: true})
}

func (c *Client) stopTyping(roomID string) {
	c.typingMu.Lock()
	if c.typingTimer != nil {
		c.typingTimer.Stop()
		c.typingTimer = nil
	}
	active := c.typingRoom == roomID
	c.typingRoom = ""
	c.typingMu.Unlock()

	if !active {
		return
	}
	if err := c.send(wire.EventTyping, wire.Typing{RoomID: roomID, IsTyping: false}); err != nil {
		c.log.Debug("stop typing", "error", err)
	}
}

func (c *Client) send(eventType string, payload any) error {
	data, err := wire.Marshal(eventType, payload)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.Write(ctx, websocket.MessageText, data)
}
