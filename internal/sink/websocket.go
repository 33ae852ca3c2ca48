package sink

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/kb9irk/ook433decode/internal/events"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 8192,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// WebsocketSink broadcasts every decoded event as JSON to connected
// dashboard clients. A slow client whose send buffer is full misses that
// event, and a client whose write fails is disconnected, rather than either
// blocking delivery to the rest — event sinks are non-fatal on failure,
// unlike the raw-sample file sink.
type WebsocketSink struct {
	server *http.Server

	mu      sync.Mutex
	clients map[*websocket.Conn]chan []byte
}

// NewWebsocketSink starts an HTTP server on addr serving a single
// "/events" WebSocket endpoint that streams decoded events.
func NewWebsocketSink(addr string) *WebsocketSink {
	s := &WebsocketSink{clients: make(map[*websocket.Conn]chan []byte)}

	mux := http.NewServeMux()
	mux.HandleFunc("/events", s.handleConn)
	s.server = &http.Server{Addr: addr, Handler: mux}

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("sink: websocket: WARNING: endpoint %s failed: %v", addr, err)
		}
	}()

	return s
}

func (s *WebsocketSink) handleConn(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("sink: websocket: upgrade failed: %v", err)
		return
	}

	out := make(chan []byte, 32)
	s.mu.Lock()
	s.clients[conn] = out
	s.mu.Unlock()

	go func() {
		defer func() {
			s.mu.Lock()
			delete(s.clients, conn)
			s.mu.Unlock()
			conn.Close()
		}()
		for msg := range out {
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		}
	}()
}

// Deliver broadcasts d to every connected client. Clients whose send
// buffer is full are skipped for this event rather than blocking the
// decode pipeline.
func (s *WebsocketSink) Deliver(d events.Decoded) {
	payload, err := json.Marshal(d)
	if err != nil {
		log.Printf("sink: websocket: marshal error: %v", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for conn, ch := range s.clients {
		select {
		case ch <- payload:
		default:
			log.Printf("sink: websocket: dropping event for slow client %s", conn.RemoteAddr())
		}
	}
}

// Close shuts down the HTTP server and every client connection's send
// channel.
func (s *WebsocketSink) Close() error {
	s.mu.Lock()
	for conn, ch := range s.clients {
		close(ch)
		conn.Close()
	}
	s.clients = nil
	s.mu.Unlock()

	return s.server.Close()
}
