package ws

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-hclog"
	"nhooyr.io/websocket"
)

const (
	// sendBufferSize is the number of frames that can be queued per client.
	sendBufferSize = 32

	// writeTimeout is the max time to wait for a single write to complete.
	writeTimeout = 5 * time.Second
)

// Client is one WebSocket connection. The ID doubles as the user ID
// once the join handshake completes.
type Client struct {
	id   string
	conn *websocket.Conn
	send chan []byte
}

// ID returns the connection identifier.
func (c *Client) ID() string { return c.id }

// connEntry pairs a client with its write-pump cancel function.
type connEntry struct {
	cancel      context.CancelFunc
	connectedAt time.Time
}

// ConnManager owns the write side of every connection: per-client
// buffered send channels drained by a write pump, connection limits and
// graceful shutdown. Sends are fire-and-forget; a slow consumer's
// frames are dropped rather than stalling a broadcast.
type ConnManager struct {
	mu       sync.Mutex
	clients  map[*Client]*connEntry
	closed   bool
	maxConns int
	log      hclog.Logger

	rejected      atomic.Int64
	droppedFrames atomic.Int64
}

// ConnManagerOption configures a ConnManager.
type ConnManagerOption func(*ConnManager)

// WithMaxConns caps concurrent connections; 0 means unlimited.
func WithMaxConns(n int) ConnManagerOption {
	return func(cm *ConnManager) { cm.maxConns = n }
}

// NewConnManager creates a connection manager.
func NewConnManager(log hclog.Logger, opts ...ConnManagerOption) *ConnManager {
	if log == nil {
		log = hclog.NewNullLogger()
	}
	cm := &ConnManager{
		clients: make(map[*Client]*connEntry),
		log:     log,
	}
	for _, opt := range opts {
		opt(cm)
	}
	return cm
}

// Add registers a client and starts its write pump. The returned
// context is cancelled when the client is removed or the manager shuts
// down; callers select on it in their read loop. A cancelled context is
// returned immediately when the manager is closed or at capacity.
func (cm *ConnManager) Add(c *Client) context.Context {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if cm.closed {
		c.conn.Close(websocket.StatusGoingAway, "server shutting down")
		return cancelledContext()
	}
	if cm.maxConns > 0 && len(cm.clients) >= cm.maxConns {
		cm.rejected.Add(1)
		c.conn.Close(websocket.StatusTryAgainLater, "server at capacity")
		return cancelledContext()
	}

	c.send = make(chan []byte, sendBufferSize)
	ctx, cancel := context.WithCancel(context.Background())
	cm.clients[c] = &connEntry{cancel: cancel, connectedAt: time.Now()}

	go cm.writePump(ctx, c)
	return ctx
}

// Remove stops a client's write pump and cleans it up. The send
// channel is never closed; the pump exits via its cancelled context, so
// a broadcast racing a removal cannot panic.
func (cm *ConnManager) Remove(c *Client) {
	cm.mu.Lock()
	entry, ok := cm.clients[c]
	if ok {
		delete(cm.clients, c)
	}
	cm.mu.Unlock()

	if ok {
		entry.cancel()
	}
}

// Send queues a frame for delivery. Returns false if the client has
// been removed or its buffer is full.
func (cm *ConnManager) Send(c *Client, data []byte) bool {
	cm.mu.Lock()
	_, ok := cm.clients[c]
	cm.mu.Unlock()
	if !ok {
		return false
	}

	select {
	case c.send <- data:
		return true
	default:
		cm.droppedFrames.Add(1)
		cm.log.Warn("send buffer full, dropping frame", "conn", c.id)
		return false
	}
}

// Count returns the number of active connections.
func (cm *ConnManager) Count() int {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	return len(cm.clients)
}

// Shutdown closes every connection with StatusGoingAway and stops all
// write pumps. Further Adds are rejected.
func (cm *ConnManager) Shutdown() {
	cm.mu.Lock()
	cm.closed = true
	clients := make(map[*Client]*connEntry, len(cm.clients))
	for c, entry := range cm.clients {
		clients[c] = entry
	}
	cm.clients = make(map[*Client]*connEntry)
	cm.mu.Unlock()

	for c, entry := range clients {
		entry.cancel()
		c.conn.Close(websocket.StatusGoingAway, "server shutting down")
	}
}

// writePump drains the client's send channel, writing each frame to
// the WebSocket. It exits when ctx is cancelled.
func (cm *ConnManager) writePump(ctx context.Context, c *Client) {
	for {
		select {
		case <-ctx.Done():
			return
		case data := <-c.send:
			writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := c.conn.Write(writeCtx, websocket.MessageText, data)
			cancel()
			if err != nil {
				cm.log.Debug("write failed", "conn", c.id, "error", err)
				return
			}
		}
	}
}

func cancelledContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	return ctx
}
