package api

import (
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"prosimgo/pkg/logging"
	"prosimgo/pkg/prosim"
)

const (
	sendBuffer = 64
	writeWait  = 5 * time.Second
	pingPeriod = 30 * time.Second
)

// StreamMessage is one change pushed to a websocket subscriber.
type StreamMessage struct {
	ID    string    `json:"id"`
	Name  string    `json:"name"`
	Value any       `json:"value"`
	Time  time.Time `json:"time"`
}

type subscriber struct {
	id    uuid.UUID
	names map[string]bool // empty = every dataref
	send  chan StreamMessage
}

func (s *subscriber) wants(name string) bool {
	return len(s.names) == 0 || s.names[name]
}

// Hub fans dataref changes out to websocket subscribers.
// Broadcast is meant to be registered as a prosim change observer.
type Hub struct {
	mu       sync.RWMutex
	subs     map[uuid.UUID]*subscriber
	closed   bool
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{
		subs: make(map[uuid.UUID]*subscriber),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Local bridge; scripts connect from anywhere on the cockpit network.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger: slog.Default().With("component", "stream"),
	}
}

// Broadcast queues ch for every interested subscriber. Slow subscribers
// lose changes rather than stall the simulator callback.
func (h *Hub) Broadcast(ch prosim.Change) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, s := range h.subs {
		if !s.wants(ch.Name) {
			continue
		}
		msg := StreamMessage{ID: s.id.String(), Name: ch.Name, Value: ch.Value, Time: ch.Time}
		select {
		case s.send <- msg:
		default:
			logging.Trace(h.logger, "Dropped change for slow subscriber", "id", s.id, "name", ch.Name)
		}
	}
}

// Len returns the number of connected subscribers.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Close disconnects every subscriber and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for id, s := range h.subs {
		close(s.send)
		delete(h.subs, id)
	}
}

func (h *Hub) subscribe(names []string) *subscriber {
	s := &subscriber{
		id:    uuid.New(),
		names: make(map[string]bool, len(names)),
		send:  make(chan StreamMessage, sendBuffer),
	}
	for _, n := range names {
		s.names[n] = true
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.subs[s.id] = s
	return s
}

func (h *Hub) unsubscribe(s *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[s.id]; ok {
		delete(h.subs, s.id)
		close(s.send)
	}
}

// HandleStream upgrades to a websocket and streams changes.
// ?names=a,b limits the stream to those datarefs.
func (h *Hub) HandleStream(w http.ResponseWriter, r *http.Request) {
	names := parseNames(r.URL.Query().Get("names"))

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade to WebSocket", "remote_addr", r.RemoteAddr, "error", err)
		return
	}
	defer conn.Close()

	s := h.subscribe(names)
	if s == nil {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
			time.Now().Add(writeWait))
		return
	}
	h.logger.Info("Stream subscriber connected", "id", s.id, "remote_addr", r.RemoteAddr, "names", len(names))

	// Reader: only control frames are expected; a read error means the peer left.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	h.writeLoop(conn, s, gone)
	h.unsubscribe(s)
	h.logger.Info("Stream subscriber disconnected", "id", s.id)
}

func (h *Hub) writeLoop(conn *websocket.Conn, s *subscriber, gone <-chan struct{}) {
	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-gone:
			return
		case msg, ok := <-s.send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
				return
			}
			if err := conn.WriteJSON(msg); err != nil {
				h.logger.Debug("Stream write failed", "id", s.id, "error", err)
				return
			}
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func parseNames(raw string) []string {
	var out []string
	for _, n := range strings.Split(raw, ",") {
		if n = strings.TrimSpace(n); n != "" {
			out = append(out, n)
		}
	}
	return out
}
