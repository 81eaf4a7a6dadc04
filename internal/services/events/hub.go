// Package events streams refresh cycle events to WebSocket subscribers.
package events

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/bobmcallan/folio/internal/common"
	"github.com/bobmcallan/folio/internal/interfaces"
	"github.com/bobmcallan/folio/internal/models"
)

const (
	writeWait   = 10 * time.Second
	pongWait    = 60 * time.Second
	pingPeriod  = 30 * time.Second
	sendBuffer  = 32
	eventBuffer = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Hub fans refresh events out to connected subscribers. New subscribers
// receive the most recent event first.
type Hub struct {
	subscribers map[*subscriber]struct{}
	events      chan models.RefreshEvent
	register    chan *subscriber
	unregister  chan *subscriber
	done        chan struct{}
	stopOnce    sync.Once

	mu     sync.RWMutex
	last   []byte
	logger *common.Logger
}

type subscriber struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// NewHub creates a hub. Run must be started before events are delivered.
func NewHub(logger *common.Logger) *Hub {
	return &Hub{
		subscribers: make(map[*subscriber]struct{}),
		events:      make(chan models.RefreshEvent, eventBuffer),
		register:    make(chan *subscriber),
		unregister:  make(chan *subscriber),
		done:        make(chan struct{}),
		logger:      logger,
	}
}

// Run is the hub's event loop. Call it on its own goroutine.
func (h *Hub) Run() {
	for {
		select {
		case <-h.done:
			h.mu.Lock()
			for s := range h.subscribers {
				delete(h.subscribers, s)
				close(s.send)
			}
			h.mu.Unlock()
			return

		case s := <-h.register:
			h.mu.Lock()
			h.subscribers[s] = struct{}{}
			if h.last != nil {
				s.send <- h.last
			}
			n := len(h.subscribers)
			h.mu.Unlock()
			h.logger.Debug().Int("subscribers", n).Msg("Refresh event subscriber connected")

		case s := <-h.unregister:
			h.drop(s)

		case event := <-h.events:
			data, err := json.Marshal(event)
			if err != nil {
				h.logger.Warn().Err(err).Msg("Failed to marshal refresh event")
				continue
			}
			h.publish(data)
		}
	}
}

func (h *Hub) publish(data []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.last = data
	for s := range h.subscribers {
		select {
		case s.send <- data:
		default:
			// subscriber is not keeping up
			delete(h.subscribers, s)
			close(s.send)
		}
	}
}

func (h *Hub) drop(s *subscriber) {
	h.mu.Lock()
	_, ok := h.subscribers[s]
	if ok {
		delete(h.subscribers, s)
		close(s.send)
	}
	n := len(h.subscribers)
	h.mu.Unlock()

	if ok {
		h.logger.Debug().Int("subscribers", n).Msg("Refresh event subscriber disconnected")
	}
}

// Stop ends the event loop and closes every subscriber. Safe to call twice.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

// Notify queues an event for broadcast. It never blocks the caller; when the
// queue is full the event is dropped.
func (h *Hub) Notify(event models.RefreshEvent) {
	select {
	case h.events <- event:
	default:
		h.logger.Warn().Str("outcome", event.Outcome).Msg("Refresh event queue full, dropping event")
	}
}

// Subscribers returns the number of connected subscribers
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// ServeWS upgrades the request and subscribes the connection
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	s := &subscriber{
		hub:  h,
		conn: conn,
		send: make(chan []byte, sendBuffer),
	}

	select {
	case h.register <- s:
	case <-h.done:
		conn.Close()
		return
	}

	go s.writeLoop()
	go s.readLoop()
}

func (s *subscriber) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}

		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readLoop only watches for the peer going away; subscribers send nothing.
func (s *subscriber) readLoop() {
	defer func() {
		select {
		case s.hub.unregister <- s:
		case <-s.hub.done:
		}
		s.conn.Close()
	}()

	s.conn.SetReadLimit(512)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			return
		}
	}
}

var _ interfaces.RefreshNotifier = (*Hub)(nil)
