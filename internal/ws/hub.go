package ws

import (
	"context"
	"sync"

	"github.com/hashicorp/go-hclog"
)

// Hub tracks live connections and their room subscriptions, and
// implements the delivery engine's Emitter contract. Room subscription
// is a transport concern, distinct from room membership: a member who
// disconnects keeps their membership but loses their subscription.
type Hub struct {
	mu    sync.RWMutex
	conns map[string]*Client            // connID -> client
	rooms map[string]map[string]*Client // roomID -> connID -> client
	mgr   *ConnManager
	log   hclog.Logger
}

// NewHub creates a Hub backed by the given connection manager.
func NewHub(mgr *ConnManager, log hclog.Logger) *Hub {
	if log == nil {
		log = hclog.NewNullLogger()
	}
	return &Hub{
		conns: make(map[string]*Client),
		rooms: make(map[string]map[string]*Client),
		mgr:   mgr,
		log:   log,
	}
}

// add registers a client and starts its write pump. A client the
// manager rejected is not tracked.
func (h *Hub) add(c *Client) context.Context {
	connCtx := h.mgr.Add(c)
	if connCtx.Err() == nil {
		h.mu.Lock()
		h.conns[c.id] = c
		h.mu.Unlock()
	}
	return connCtx
}

// remove drops the client from every room subscription and stops its
// write pump.
func (h *Hub) remove(c *Client) {
	h.mu.Lock()
	delete(h.conns, c.id)
	for roomID, subs := range h.rooms {
		delete(subs, c.id)
		if len(subs) == 0 {
			delete(h.rooms, roomID)
		}
	}
	h.mu.Unlock()
	h.mgr.Remove(c)
}

// Subscribe adds the connection to a room's broadcast set. Idempotent;
// unknown connections are ignored.
func (h *Hub) Subscribe(connID, roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c, ok := h.conns[connID]
	if !ok {
		return
	}
	subs := h.rooms[roomID]
	if subs == nil {
		subs = make(map[string]*Client)
		h.rooms[roomID] = subs
	}
	subs[connID] = c
}

// Unsubscribe removes the connection from a room's broadcast set.
func (h *Hub) Unsubscribe(connID, roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if subs, ok := h.rooms[roomID]; ok {
		delete(subs, connID)
		if len(subs) == 0 {
			delete(h.rooms, roomID)
		}
	}
}

// ToConn queues a frame for a single connection.
func (h *Hub) ToConn(connID string, data []byte) {
	h.mu.RLock()
	c, ok := h.conns[connID]
	h.mu.RUnlock()
	if ok {
		h.mgr.Send(c, data)
	}
}

// ToRoom queues a frame for every connection subscribed to the room.
func (h *Hub) ToRoom(roomID string, data []byte) {
	h.mu.RLock()
	subs := h.rooms[roomID]
	targets := make([]*Client, 0, len(subs))
	for _, c := range subs {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		h.mgr.Send(c, data)
	}
}

// ToAll queues a frame for every live connection.
func (h *Hub) ToAll(data []byte) {
	h.mu.RLock()
	targets := make([]*Client, 0, len(h.conns))
	for _, c := range h.conns {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		h.mgr.Send(c, data)
	}
}

// SubscriberCount returns the number of connections subscribed to a room.
func (h *Hub) SubscriberCount(roomID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomID])
}
