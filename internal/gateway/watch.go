package gateway

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/coursewright/coursewright/internal/hooks"
	"github.com/coursewright/coursewright/internal/logging"
)

// Event is a session lifecycle notification delivered to watchers.
type Event struct {
	Type      string         `json:"type"`
	SessionID string         `json:"session_id"`
	Timestamp time.Time      `json:"ts"`
	Data      map[string]any `json:"data,omitempty"`
}

const (
	watchSendBuffer = 32
	watchWriteWait  = 10 * time.Second
	watchPingPeriod = 30 * time.Second
)

// Hub fans session events out to WebSocket watchers, keyed by session id.
type Hub struct {
	mu       sync.RWMutex
	watchers map[string]map[*watcher]struct{}
	log      *logging.Logger
}

type watcher struct {
	conn      *websocket.Conn
	send      chan Event
	closeOnce sync.Once
}

func (w *watcher) close() {
	w.closeOnce.Do(func() {
		close(w.send)
	})
}

// NewHub returns an empty watcher hub.
func NewHub(log *logging.Logger) *Hub {
	return &Hub{
		watchers: make(map[string]map[*watcher]struct{}),
		log:      log,
	}
}

// Subscribe registers a connection as a watcher of the given session and
// starts its write pump.
func (h *Hub) Subscribe(sessionID string, conn *websocket.Conn) *watcher {
	w := &watcher{
		conn: conn,
		send: make(chan Event, watchSendBuffer),
	}

	h.mu.Lock()
	if h.watchers[sessionID] == nil {
		h.watchers[sessionID] = make(map[*watcher]struct{})
	}
	h.watchers[sessionID][w] = struct{}{}
	h.mu.Unlock()

	go w.writePump()
	return w
}

// Unsubscribe removes a watcher and closes its send channel.
func (h *Hub) Unsubscribe(sessionID string, w *watcher) {
	h.mu.Lock()
	if set, ok := h.watchers[sessionID]; ok {
		delete(set, w)
		if len(set) == 0 {
			delete(h.watchers, sessionID)
		}
	}
	h.mu.Unlock()
	w.close()
}

// Broadcast delivers an event to all watchers of its session. Slow
// watchers get dropped rather than blocking the caller.
func (h *Hub) Broadcast(evt Event) {
	h.mu.RLock()
	set := h.watchers[evt.SessionID]
	targets := make([]*watcher, 0, len(set))
	for w := range set {
		targets = append(targets, w)
	}
	h.mu.RUnlock()

	for _, w := range targets {
		select {
		case w.send <- evt:
		default:
			h.log.Warn().Str("sessionId", evt.SessionID).Msg("dropping slow watcher")
			h.Unsubscribe(evt.SessionID, w)
		}
	}
}

// WatcherCount reports the number of active watchers for a session.
func (h *Hub) WatcherCount(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.watchers[sessionID])
}

// CloseAll disconnects every watcher. Used during shutdown.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	for id, set := range h.watchers {
		for w := range set {
			w.close()
		}
		delete(h.watchers, id)
	}
	h.mu.Unlock()
}

// writePump serializes events to the connection and keeps it alive with
// pings. Exits when the send channel closes or a write fails.
func (w *watcher) writePump() {
	ticker := time.NewTicker(watchPingPeriod)
	defer func() {
		ticker.Stop()
		w.conn.Close()
	}()

	for {
		select {
		case evt, ok := <-w.send:
			w.conn.SetWriteDeadline(time.Now().Add(watchWriteWait))
			if !ok {
				w.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := w.conn.WriteJSON(evt); err != nil {
				return
			}
		case <-ticker.C:
			w.conn.SetWriteDeadline(time.Now().Add(watchWriteWait))
			if err := w.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// hookEvents maps watcher event types to hook event names.
var hookEvents = map[string]string{
	"created":             hooks.EventSessionCreated,
	"message_added":       hooks.EventMessageAdded,
	"state_changed":       hooks.EventStateChanged,
	"checkpoint_created":  hooks.EventCheckpointCreated,
	"checkpoint_restored": hooks.EventCheckpointRestored,
	"paused":              hooks.EventSessionPaused,
	"resumed":             hooks.EventSessionResumed,
	"completed":           hooks.EventSessionCompleted,
	"abandoned":           hooks.EventSessionAbandoned,
	"saved":               hooks.EventSessionSaved,
	"deleted":             hooks.EventSessionDeleted,
}

// broadcast emits a session event to watchers and lifecycle hooks.
func (s *Server) broadcast(eventType, sessionID string, data map[string]any) {
	s.hub.Broadcast(Event{
		Type:      eventType,
		SessionID: sessionID,
		Timestamp: time.Now().UTC(),
		Data:      data,
	})
	if s.hooks != nil {
		if name, ok := hookEvents[eventType]; ok {
			s.hooks.EmitAsync(context.Background(), hooks.Payload{
				Event:     name,
				SessionID: sessionID,
				Data:      data,
			})
		}
	}
}
