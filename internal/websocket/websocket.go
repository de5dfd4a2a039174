package websocket

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	ws "github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait  = 5 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
	queueSize  = 16
)

// Event is the payload broadcast to every connected dashboard.
type Event struct {
	Type   string `json:"type"`
	ID     any    `json:"id"`
	Action string `json:"action"`
	Data   any    `json:"data,omitempty"`
}

// subscriber is one dashboard connection. Frames are queued on out and
// written by a single goroutine, so the connection never sees concurrent
// writers.
type subscriber struct {
	conn *ws.Conn
	out  chan []byte
}

// Hub fans change events out to connected dashboards.
type Hub struct {
	log  *zap.Logger
	mu   sync.RWMutex
	subs map[*subscriber]struct{}
}

func NewHub(log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{log: log, subs: make(map[*subscriber]struct{})}
}

// Clients reports how many dashboards are connected.
func (h *Hub) Clients() int {
	if h == nil {
		return 0
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

func (h *Hub) add(s *subscriber) {
	h.mu.Lock()
	h.subs[s] = struct{}{}
	h.mu.Unlock()
}

// drop removes s and closes its queue; the writer then closes the socket.
func (h *Hub) drop(s *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[s]; ok {
		delete(h.subs, s)
		close(s.out)
	}
}

// Broadcast queues evt for every subscriber. A subscriber whose queue is
// full is disconnected. A nil hub is a no-op.
func (h *Hub) Broadcast(evt Event) {
	if h == nil {
		return
	}
	frame, err := json.Marshal(evt)
	if err != nil {
		h.log.Error("ws: marshal event", zap.String("type", evt.Type), zap.Error(err))
		return
	}

	var slow []*subscriber
	h.mu.RLock()
	for s := range h.subs {
		select {
		case s.out <- frame:
		default:
			slow = append(slow, s)
		}
	}
	h.mu.RUnlock()

	for _, s := range slow {
		h.log.Debug("ws: dropping slow client")
		h.drop(s)
	}
}

// BroadcastChange announces that a record changed, e.g. ("job", "update",
// "J-1") becomes a "job_updated" event.
func (h *Hub) BroadcastChange(resourceType, action string, id any) {
	h.Broadcast(Event{
		Type:   resourceType + "_" + pastTense(action),
		ID:     id,
		Action: action,
	})
}

func pastTense(action string) string {
	switch action {
	case "create", "update", "delete", "link", "import", "refresh":
		if action[len(action)-1] == 'e' {
			return action + "d"
		}
		return action + "ed"
	}
	return action
}

// Upgrader accepts any origin; the CORS middleware governs browsers.
var Upgrader = ws.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeHTTP upgrades the connection and holds it until the client goes
// away. Inbound messages are read and discarded.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := Upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("ws: upgrade failed", zap.Error(err))
		return
	}

	s := &subscriber{conn: conn, out: make(chan []byte, queueSize)}
	h.add(s)
	h.log.Info("ws: client connected", zap.Int("clients", h.Clients()))
	go s.writeLoop()

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	h.drop(s)
	h.log.Info("ws: client disconnected", zap.Int("clients", h.Clients()))
}

func (s *subscriber) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()
	for {
		select {
		case frame, ok := <-s.out:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				s.conn.WriteMessage(ws.CloseMessage, nil)
				return
			}
			if err := s.conn.WriteMessage(ws.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(ws.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
