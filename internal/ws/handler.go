package ws

import (
	"context"
	"encoding/json"
	"net"
	"net/http"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"
	"nhooyr.io/websocket"

	"github.com/danakeller/parley/internal/chat"
	"github.com/danakeller/parley/internal/ratelimit"
	"github.com/danakeller/parley/internal/wire"
)

// Handler upgrades HTTP requests to WebSocket connections and runs the
// per-connection event loop. All business logic lives in the chat
// service; the handler only decodes frames and dispatches them.
type Handler struct {
	hub     *Hub
	svc     *chat.Service
	limiter *ratelimit.Limiter
	log     hclog.Logger
}

// NewHandler creates a WebSocket handler. The limiter may be nil to
// disable connection rate limiting.
func NewHandler(hub *Hub, svc *chat.Service, limiter *ratelimit.Limiter, log hclog.Logger) *Handler {
	if log == nil {
		log = hclog.NewNullLogger()
	}
	return &Handler{hub: hub, svc: svc, limiter: limiter, log: log}
}

// ServeHTTP upgrades the connection and reads frames until it closes.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.limiter != nil && !h.limiter.Allow(remoteIP(r)) {
		http.Error(w, "too many connections", http.StatusTooManyRequests)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true, // Allow all origins in dev; tighten in production.
	})
	if err != nil {
		h.log.Error("accept", "error", err)
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	client := &Client{id: uuid.NewString(), conn: conn}
	h.log.Debug("connection opened", "conn", client.id, "remote", r.RemoteAddr)

	connCtx := h.hub.add(client)
	defer func() {
		h.hub.remove(client)
		h.svc.Disconnect(client.id)
		h.log.Debug("connection closed", "conn", client.id)
	}()

	h.readLoop(r.Context(), connCtx, client)
}

// readLoop reads frames until the connection closes or the manager
// cancels connCtx. Malformed frames are dropped; nothing here is fatal
// to the process.
func (h *Handler) readLoop(ctx, connCtx context.Context, client *Client) {
	for {
		select {
		case <-connCtx.Done():
			return
		default:
		}

		_, data, err := client.conn.Read(ctx)
		if err != nil {
			return
		}

		var env wire.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			h.log.Debug("malformed frame dropped", "conn", client.id, "error", err)
			continue
		}
		h.dispatch(client.id, &env)
	}
}

// dispatch routes one decoded envelope to the service. A payload that
// fails to decode for its declared type is dropped at the boundary.
func (h *Handler) dispatch(connID string, env *wire.Envelope) {
	switch env.Type {
	case wire.EventUserJoin:
		var p wire.UserJoin
		if env.Decode(&p) == nil {
			_ = h.svc.Join(connID, p) // failure already acked to the client
		}
	case wire.EventJoinRoom:
		var p wire.JoinRoom
		if env.Decode(&p) == nil {
			h.svc.JoinRoom(connID, p.RoomID)
		}
	case wire.EventLeaveRoom:
		var p wire.LeaveRoom
		if env.Decode(&p) == nil {
			h.svc.LeaveRoom(connID, p.RoomID)
		}
	case wire.EventCreateRoom:
		var p wire.CreateRoom
		if env.Decode(&p) == nil {
			h.svc.CreateRoom(connID, p)
		}
	case wire.EventSendMessage:
		var p wire.SendMessage
		if env.Decode(&p) == nil {
			h.svc.Send(connID, p)
		}
	case wire.EventPrivateMessage:
		var p wire.PrivateMessage
		if env.Decode(&p) == nil {
			h.svc.SendPrivate(connID, p)
		}
	case wire.EventTyping:
		var p wire.Typing
		if env.Decode(&p) == nil {
			h.svc.Typing(connID, p)
		}
	case wire.EventLoadMessages:
		var p wire.LoadMessages
		if env.Decode(&p) == nil {
			h.svc.LoadMessages(connID, p)
		}
	case wire.EventMessageRead:
		var p wire.MessageRead
		if env.Decode(&p) == nil {
			h.svc.MarkRead(connID, p)
		}
	case wire.EventMessageReaction:
		var p wire.MessageReaction
		if env.Decode(&p) == nil {
			h.svc.ToggleReaction(connID, p)
		}
	case wire.EventSearchMessages:
		var p wire.SearchMessages
		if env.Decode(&p) == nil {
			h.svc.Search(connID, p)
		}
	default:
		h.log.Debug("unknown event type ignored", "conn", connID, "type", env.Type)
	}
}

func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
