// Package server exposes the read-only HTTP surface and mounts the
// WebSocket endpoint. Every read goes through the chat service, so the
// HTTP mirror and the live socket always agree.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/danakeller/parley/internal/chat"
	"github.com/danakeller/parley/internal/message"
	"github.com/danakeller/parley/internal/room"
	"github.com/danakeller/parley/internal/user"
)

// Server is the HTTP front of the chat service.
type Server struct {
	addr string
	mux  *http.ServeMux
	svc  *chat.Service
	log  hclog.Logger
	http *http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(log hclog.Logger) Option {
	return func(s *Server) { s.log = log }
}

// New creates a Server. wsHandler is mounted at /ws; pass nil to run
// the HTTP API without a socket endpoint.
func New(addr string, svc *chat.Service, wsHandler http.Handler, opts ...Option) *Server {
	s := &Server{
		addr: addr,
		mux:  http.NewServeMux(),
		svc:  svc,
		log:  hclog.NewNullLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes(wsHandler)
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Run starts the HTTP server and blocks until it stops.
func (s *Server) Run() error {
	s.log.Info("listening", "addr", s.addr)
	err := s.http.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown stops the HTTP server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) routes(wsHandler http.Handler) {
	s.mux.HandleFunc("GET /api/health", s.handleHealth)
	s.mux.HandleFunc("GET /api/rooms", s.handleListRooms)
	s.mux.HandleFunc("GET /api/rooms/{roomID}/messages", s.handleRoomMessages)
	s.mux.HandleFunc("GET /api/users/online", s.handleOnlineUsers)
	s.mux.HandleFunc("GET /api/search", s.handleSearch)
	if wsHandler != nil {
		s.mux.Handle("/ws", wsHandler)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC(),
	})
}

func (s *Server) handleListRooms(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]room.Snapshot{
		"rooms": s.svc.Rooms(),
	})
}

func (s *Server) handleRoomMessages(w http.ResponseWriter, r *http.Request) {
	roomID := r.PathValue("roomID")
	if !s.svc.HasRoom(roomID) {
		writeError(w, http.StatusNotFound, "room not found")
		return
	}

	var cursor *time.Time
	if raw := r.URL.Query().Get("cursor"); raw != "" {
		ts, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "cursor must be an RFC 3339 timestamp")
			return
		}
		cursor = &ts
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	page := s.svc.History(roomID, cursor, limit)
	writeJSON(w, http.StatusOK, map[string]any{
		"roomId":     roomID,
		"messages":   page.Messages,
		"nextCursor": page.NextCursor,
		"hasMore":    page.HasMore,
	})
}

func (s *Server) handleOnlineUsers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]user.Snapshot{
		"users": s.svc.OnlineUsers(),
	})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	roomID := r.URL.Query().Get("roomId")
	query := r.URL.Query().Get("query")
	if roomID == "" || query == "" {
		writeError(w, http.StatusBadRequest, "roomId and query are required")
		return
	}

	results := s.svc.SearchAll(roomID, query)
	if results == nil {
		results = []message.Snapshot{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"roomId":  roomID,
		"total":   len(results),
		"results": results,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
