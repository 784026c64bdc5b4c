// Package overlayws provides a display.Sink that broadcasts suggestions to
// overlay clients over WebSocket.
//
// The Sink doubles as an http.Handler: mount it on a mux and point the
// overlay UI at it. Every event is a JSON object with a "type" field
// ("suggestion", "clear", "show", "hide"); suggestion events carry the
// display.Suggestion under "suggestion". Newly connected clients immediately
// receive the current state so a restarted overlay catches up.
package overlayws

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/sotto-ai/sotto/pkg/display"
)

// writeTimeout bounds each per-client send so one stuck overlay cannot stall
// the broadcast loop.
const writeTimeout = 5 * time.Second

// Ensure Sink implements display.Sink and http.Handler at compile time.
var (
	_ display.Sink = (*Sink)(nil)
	_ http.Handler = (*Sink)(nil)
)

// event is the wire format sent to overlay clients.
type event struct {
	Type       string              `json:"type"`
	Suggestion *display.Suggestion `json:"suggestion,omitempty"`
}

// Sink broadcasts display events to all connected WebSocket clients.
type Sink struct {
	logger *slog.Logger

	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}
	current *display.Suggestion
	visible bool
	closed  bool
}

// Option is a functional option for Sink.
type Option func(*Sink)

// WithLogger sets the logger used for connection lifecycle messages.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Sink) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New creates a Sink with no connected clients. The overlay starts visible.
func New(opts ...Option) *Sink {
	s := &Sink{
		logger:  slog.Default(),
		clients: make(map[*websocket.Conn]struct{}),
		visible: true,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// ServeHTTP upgrades the request to a WebSocket connection and registers it
// for broadcasts. The connection is write-only from the server's point of
// view; anything the client sends is discarded.
func (s *Sink) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true, // local overlay clients have no fixed origin
	})
	if err != nil {
		s.logger.Warn("overlay client handshake failed", "error", err, "remote", r.RemoteAddr)
		return
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		conn.Close(websocket.StatusGoingAway, "sink closed")
		return
	}
	s.clients[conn] = struct{}{}
	current := s.current
	visible := s.visible
	s.mu.Unlock()

	s.logger.Info("overlay client connected", "remote", r.RemoteAddr)

	// Replay current state so the client does not start blank.
	ctx := r.Context()
	if !visible {
		s.send(ctx, conn, event{Type: "hide"})
	}
	if current != nil {
		s.send(ctx, conn, event{Type: "suggestion", Suggestion: current})
	}

	// CloseRead discards inbound messages and returns a context that ends
	// when the connection dies.
	readCtx := conn.CloseRead(context.Background())
	<-readCtx.Done()

	s.mu.Lock()
	delete(s.clients, conn)
	s.mu.Unlock()
	conn.Close(websocket.StatusNormalClosure, "")
	s.logger.Info("overlay client disconnected", "remote", r.RemoteAddr)
}

// ShowSuggestion implements display.Sink.
func (s *Sink) ShowSuggestion(ctx context.Context, sugg display.Suggestion) error {
	s.mu.Lock()
	s.current = &sugg
	s.mu.Unlock()
	return s.broadcast(ctx, event{Type: "suggestion", Suggestion: &sugg})
}

// Clear implements display.Sink.
func (s *Sink) Clear(ctx context.Context) error {
	s.mu.Lock()
	s.current = nil
	s.mu.Unlock()
	return s.broadcast(ctx, event{Type: "clear"})
}

// Show implements display.Sink.
func (s *Sink) Show(ctx context.Context) error {
	s.mu.Lock()
	s.visible = true
	s.mu.Unlock()
	return s.broadcast(ctx, event{Type: "show"})
}

// Hide implements display.Sink.
func (s *Sink) Hide(ctx context.Context) error {
	s.mu.Lock()
	s.visible = false
	s.mu.Unlock()
	return s.broadcast(ctx, event{Type: "hide"})
}

// Close disconnects all clients and rejects future connections.
func (s *Sink) Close() error {
	s.mu.Lock()
	s.closed = true
	conns := make([]*websocket.Conn, 0, len(s.clients))
	for c := range s.clients {
		conns = append(conns, c)
	}
	s.clients = make(map[*websocket.Conn]struct{})
	s.mu.Unlock()

	for _, c := range conns {
		c.Close(websocket.StatusGoingAway, "sink closed")
	}
	return nil
}

// ClientCount returns the number of connected overlay clients.
func (s *Sink) ClientCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// broadcast sends ev to every connected client. Clients whose send fails are
// dropped; the first marshal error aborts the whole broadcast.
func (s *Sink) broadcast(ctx context.Context, ev event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("overlayws: marshal event: %w", err)
	}

	s.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(s.clients))
	for c := range s.clients {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	for _, conn := range conns {
		if err := s.write(ctx, conn, data); err != nil {
			s.logger.Warn("dropping unresponsive overlay client", "error", err)
			s.mu.Lock()
			delete(s.clients, conn)
			s.mu.Unlock()
			conn.Close(websocket.StatusPolicyViolation, "write failed")
		}
	}
	return nil
}

// send marshals and writes a single event to one client, logging failures.
func (s *Sink) send(ctx context.Context, conn *websocket.Conn, ev event) {
	data, err := json.Marshal(ev)
	if err != nil {
		s.logger.Error("overlayws: marshal replay event", "error", err)
		return
	}
	if err := s.write(ctx, conn, data); err != nil {
		s.logger.Warn("overlayws: replay to new client failed", "error", err)
	}
}

func (s *Sink) write(ctx context.Context, conn *websocket.Conn, data []byte) error {
	wctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return conn.Write(wctx, websocket.MessageText, data)
}
