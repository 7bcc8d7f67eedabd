package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	maxStreamConns = 64
	streamQueue    = 32
	writeTimeout   = 5 * time.Second
)

// Event types pushed to stream clients.
const (
	EventProgress = "progress"
	EventComplete = "complete"
	EventFailed   = "failed"
)

// Event is one message on /api/v1/stream.
type Event struct {
	Type    string  `json:"type"`
	Job     string  `json:"job"`
	Done    int     `json:"done,omitempty"`
	Players int     `json:"players,omitempty"`
	GPA     float64 `json:"gpa,omitempty"` // last result's GPA, or the run mean on complete
	RunID   string  `json:"run_id,omitempty"`
	Error   string  `json:"error,omitempty"`
}

// Hub fans job events out to websocket clients. Slow clients drop events
// rather than stall the run.
type Hub struct {
	mu      sync.Mutex
	clients map[chan []byte]struct{}
	max     int

	upgrader websocket.Upgrader
}

// NewHub creates a hub accepting at most limit concurrent clients.
func NewHub(limit int) *Hub {
	return &Hub{
		clients: make(map[chan []byte]struct{}),
		max:     limit,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // read-only feed
		},
	}
}

// Conns returns the number of connected clients.
func (h *Hub) Conns() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Broadcast queues ev for every client.
func (h *Hub) Broadcast(ev Event) {
	b, err := json.Marshal(ev)
	if err != nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for out := range h.clients {
		select {
		case out <- b:
		default:
		}
	}
}

func (h *Hub) join() (chan []byte, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.clients) >= h.max {
		return nil, false
	}
	out := make(chan []byte, streamQueue)
	h.clients[out] = struct{}{}
	return out, true
}

func (h *Hub) leave(out chan []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, out)
}

// ServeWS upgrades the request and streams events until the client goes away.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	out, ok := h.join()
	if !ok {
		http.Error(w, "too many stream clients", http.StatusServiceUnavailable)
		return
	}
	defer h.leave(out)

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Debug("stream upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case b := <-out:
				_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
				if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
					cancel()
					return
				}
			}
		}
	}()

	// Clients only listen; reading surfaces the close.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
