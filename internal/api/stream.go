package api

import (
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/claimsentry/backend/internal/events"
)

// Streamer fans bus events out to websocket clients for live dashboards.
// Slow clients are disconnected rather than allowed to stall the hub.
type Streamer struct {
	bus        *events.Bus
	feed       chan *events.CloudEvent
	clients    map[*websocket.Conn]bool
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	done       chan struct{}
	stopOnce   sync.Once
	upgrader   websocket.Upgrader
}

// NewStreamer subscribes to every event type on the bus.
func NewStreamer(bus *events.Bus) *Streamer {
	return &Streamer{
		bus:        bus,
		feed:       bus.Subscribe(),
		clients:    make(map[*websocket.Conn]bool),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		done:       make(chan struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // origin policy is enforced at the gateway
			},
		},
	}
}

// Run drives the hub until Stop. Single goroutine owns the client set, so
// no locking is needed around it.
func (s *Streamer) Run() {
	for {
		select {
		case <-s.done:
			for client := range s.clients {
				client.Close()
			}
			return

		case client := <-s.register:
			s.clients[client] = true
			slog.Debug("stream client connected", "total", len(s.clients))

		case client := <-s.unregister:
			if _, ok := s.clients[client]; ok {
				delete(s.clients, client)
				client.Close()
			}
			slog.Debug("stream client disconnected", "total", len(s.clients))

		case event, ok := <-s.feed:
			if !ok {
				return
			}
			for client := range s.clients {
				if err := client.WriteJSON(event); err != nil {
					slog.Debug("stream write failed, dropping client", "error", err)
					client.Close()
					delete(s.clients, client)
				}
			}
		}
	}
}

// Stop shuts the hub down and unsubscribes from the bus.
func (s *Streamer) Stop() {
	s.stopOnce.Do(func() {
		close(s.done)
		s.bus.Unsubscribe(s.feed)
	})
}

// HandleWebSocket upgrades the connection and parks a reader that detects
// client disconnects.
func (s *Streamer) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "error", err)
		return
	}

	s.register <- conn

	go func() {
		defer func() { s.unregister <- conn }()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
