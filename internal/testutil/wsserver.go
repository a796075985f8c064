// Package testutil holds helpers shared by tests across packages.
package testutil

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gorilla/websocket"
)

// WSServer is an httptest server that upgrades every request to a
// WebSocket and lets the test push frames to, or drop, the connected
// clients.
type WSServer struct {
	t        *testing.T
	srv      *httptest.Server
	upgrader websocket.Upgrader

	mu      sync.Mutex
	conns   []*websocket.Conn
	accepts int
	joined  chan struct{}
}

// NewWSServer starts a server. It is closed by t.Cleanup.
func NewWSServer(t *testing.T) *WSServer {
	t.Helper()
	s := &WSServer{
		t: t,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
		joined: make(chan struct{}, 16),
	}
	s.srv = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(s.Close)
	return s
}

func (s *WSServer) handle(w http.ResponseWriter, r *http.Request) {
	c, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	s.mu.Lock()
	s.conns = append(s.conns, c)
	s.accepts++
	s.mu.Unlock()

	select {
	case s.joined <- struct{}{}:
	default:
	}

	// Drain so close frames from the client are processed.
	go func() {
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// URL returns the ws:// address of the server.
func (s *WSServer) URL() string {
	return "ws" + strings.TrimPrefix(s.srv.URL, "http")
}

// Joined signals once per accepted connection.
func (s *WSServer) Joined() <-chan struct{} {
	return s.joined
}

// Accepts returns how many connections were upgraded.
func (s *WSServer) Accepts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accepts
}

// Send writes a text frame to every connected client.
func (s *WSServer) Send(data string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.conns {
		if err := c.WriteMessage(websocket.TextMessage, []byte(data)); err != nil {
			s.t.Logf("ws send: %v", err)
		}
	}
}

// DropAll closes every client connection from the server side.
func (s *WSServer) DropAll() {
	s.mu.Lock()
	conns := s.conns
	s.conns = nil
	s.mu.Unlock()

	for _, c := range conns {
		c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "bye"))
		c.Close()
	}
}

// Close drops all clients and stops the server.
func (s *WSServer) Close() {
	s.DropAll()
	s.srv.Close()
}
