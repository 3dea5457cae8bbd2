// Package websocket streams session changes and render progress to the
// clients watching a session.
package websocket

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"

	"github.com/luzdodia/api/internal/model"
)

const (
	sendBuffer   = 256
	pingInterval = 30 * time.Second
	snapshotTTL  = time.Hour
)

// Watcher is one connection following a session
type Watcher struct {
	SessionID string
	Conn      *websocket.Conn
	Send      chan []byte
}

type event struct {
	sessionID string
	data      []byte
	// snapshot events replace the session's last known state
	snapshot bool
}

type snapshot struct {
	data []byte
	at   time.Time
}

// Hub fans session events out to watchers. The last session-state event of
// each session is kept for an hour and replayed to watchers that join late.
type Hub struct {
	mu        sync.RWMutex
	watchers  map[string]map[*Watcher]struct{}
	snapshots map[string]snapshot

	join   chan *Watcher
	leave  chan *Watcher
	events chan event

	now func() time.Time
}

func NewHub() *Hub {
	return &Hub{
		watchers:  make(map[string]map[*Watcher]struct{}),
		snapshots: make(map[string]snapshot),
		join:      make(chan *Watcher),
		leave:     make(chan *Watcher),
		events:    make(chan event, sendBuffer),
		now:       time.Now,
	}
}

// Run serves joins, leaves and events until the process exits.
func (h *Hub) Run() {
	prune := time.NewTicker(snapshotTTL / 4)
	defer prune.Stop()

	for {
		select {
		case w := <-h.join:
			h.add(w)

		case w := <-h.leave:
			h.mu.Lock()
			h.drop(w)
			h.mu.Unlock()
			slog.Debug("watcher left", "session", w.SessionID)

		case ev := <-h.events:
			h.deliver(ev)

		case <-prune.C:
			h.pruneSnapshots()
		}
	}
}

func (h *Hub) add(w *Watcher) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set := h.watchers[w.SessionID]
	if set == nil {
		set = make(map[*Watcher]struct{})
		h.watchers[w.SessionID] = set
	}
	set[w] = struct{}{}

	if snap, ok := h.snapshots[w.SessionID]; ok {
		select {
		case w.Send <- snap.data:
		default:
		}
	}
	slog.Debug("watcher joined", "session", w.SessionID, "watchers", len(set))
}

func (h *Hub) deliver(ev event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if ev.snapshot {
		h.snapshots[ev.sessionID] = snapshot{data: ev.data, at: h.now()}
	}
	for w := range h.watchers[ev.sessionID] {
		select {
		case w.Send <- ev.data:
		default:
			slog.Warn("dropping slow watcher", "session", ev.sessionID)
			h.drop(w)
		}
	}
}

func (h *Hub) pruneSnapshots() {
	cutoff := h.now().Add(-snapshotTTL)
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, snap := range h.snapshots {
		if snap.at.Before(cutoff) {
			delete(h.snapshots, id)
		}
	}
}

// drop must be called with mu held.
func (h *Hub) drop(w *Watcher) {
	set := h.watchers[w.SessionID]
	if _, ok := set[w]; !ok {
		return
	}
	delete(set, w)
	close(w.Send)
	if len(set) == 0 {
		delete(h.watchers, w.SessionID)
	}
}

func (h *Hub) Register(w *Watcher)   { h.join <- w }
func (h *Hub) Unregister(w *Watcher) { h.leave <- w }

// Watchers returns the number of connections following a session.
func (h *Hub) Watchers(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.watchers[sessionID])
}

func (h *Hub) publish(sessionID string, v any, snapshot bool) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Error("encode session event", "session", sessionID, "error", err)
		return
	}

	select {
	case h.events <- event{sessionID: sessionID, data: data, snapshot: snapshot}:
	default:
		slog.Warn("event queue full, dropping event", "session", sessionID)
	}
}

// BroadcastSession announces a saved session and records it as the
// session's latest state.
func (h *Hub) BroadcastSession(msg model.WSSessionMessage) {
	h.publish(msg.SessionID, msg, true)
}

func (h *Hub) BroadcastProgress(msg model.WSProgressMessage) {
	h.publish(msg.SessionID, msg, false)
}

func (h *Hub) BroadcastComplete(msg model.WSCompleteMessage) {
	h.publish(msg.SessionID, msg, false)
}

func (h *Hub) BroadcastError(msg model.WSErrorMessage) {
	h.publish(msg.SessionID, msg, false)
}

// HandleConnection serves one watcher until it disconnects. Clients may send
// {"type":"ping"} and get a pong back; everything else they send is ignored.
func (h *Hub) HandleConnection(c *websocket.Conn, sessionID string) {
	w := &Watcher{SessionID: sessionID, Conn: c, Send: make(chan []byte, sendBuffer)}
	h.Register(w)
	defer h.Unregister(w)

	pongs := make(chan []byte, 1)
	done := make(chan struct{})
	defer close(done)

	go h.writeLoop(c, w, pongs, done)

	for {
		_, raw, err := c.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Warn("watcher read failed", "session", sessionID, "error", err)
			}
			return
		}

		var msg model.WSMessage
		if json.Unmarshal(raw, &msg) != nil || msg.Type != model.WSMessageTypePing {
			continue
		}
		pong, _ := json.Marshal(model.WSMessage{Type: model.WSMessageTypePong})
		select {
		case pongs <- pong:
		default:
		}
	}
}

func (h *Hub) writeLoop(c *websocket.Conn, w *Watcher, pongs <-chan []byte, done <-chan struct{}) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		var err error
		select {
		case data, ok := <-w.Send:
			if !ok {
				_ = c.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			err = c.WriteMessage(websocket.TextMessage, data)
		case pong := <-pongs:
			err = c.WriteMessage(websocket.TextMessage, pong)
		case <-ticker.C:
			err = c.WriteMessage(websocket.PingMessage, nil)
		case <-done:
			return
		}
		if err != nil {
			return
		}
	}
}
