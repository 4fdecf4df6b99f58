package broadcast

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// ErrHubClosed is returned by Publish after the hub stopped running.
var ErrHubClosed = errors.New("broadcast hub closed")

// clientBuffer is the number of queued messages per client before the
// client is considered too slow and dropped.
const clientBuffer = 64

type outbound struct {
	event   string
	payload []byte
}

// reply is a message for a single client.
type reply struct {
	client  *Client
	payload []byte
}

// Hub fans published events out to every connected websocket client.
// Client membership is owned by the Run goroutine.
type Hub struct {
	clients    map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	broadcast  chan outbound
	reply      chan reply
	done       chan struct{}

	mu    sync.RWMutex // guards count
	count int

	upgrader websocket.Upgrader
	logger   *slog.Logger
	now      func() time.Time
}

// NewHub creates a hub. checkOrigin may be nil to accept any origin.
func NewHub(logger *slog.Logger, checkOrigin func(*http.Request) bool) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}
	return &Hub{
		clients:    make(map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan outbound, 256),
		reply:      make(chan reply),
		done:       make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
		logger: logger,
		now:    time.Now,
	}
}

// Run owns the client set until ctx is cancelled, then disconnects every
// client.
func (h *Hub) Run(ctx context.Context) {
	defer func() {
		close(h.done)
		for c := range h.clients {
			h.drop(c)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case c := <-h.register:
			h.clients[c] = struct{}{}
			h.setCount(len(h.clients))
			h.logger.Info("ws client connected", "client_id", c.id, "clients", len(h.clients))

		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				h.drop(c)
				h.logger.Info("ws client disconnected", "client_id", c.id, "clients", len(h.clients))
			}

		case r := <-h.reply:
			if _, ok := h.clients[r.client]; ok {
				select {
				case r.client.send <- r.payload:
				default:
				}
			}

		case msg := <-h.broadcast:
			for c := range h.clients {
				if !c.IsSubscribed(msg.event) {
					continue
				}
				select {
				case c.send <- msg.payload:
				default:
					h.drop(c)
					h.logger.Warn("ws client too slow, dropped", "client_id", c.id)
				}
			}
		}
	}
}

// drop removes c and closes its send channel. Only Run calls it.
func (h *Hub) drop(c *Client) {
	delete(h.clients, c)
	close(c.send)
	h.setCount(len(h.clients))
}

func (h *Hub) setCount(n int) {
	h.mu.Lock()
	h.count = n
	h.mu.Unlock()
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.count
}

// Publish queues event for every subscribed client. It does not wait for
// delivery.
func (h *Hub) Publish(ctx context.Context, event string, data any) error {
	payload, err := encode(event, data, h.now())
	if err != nil {
		return err
	}
	select {
	case h.broadcast <- outbound{event: event, payload: payload}:
		return nil
	case <-h.done:
		return ErrHubClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ServeHTTP upgrades the request to a websocket and attaches the client.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", "error", err)
		return
	}

	c := newClient(h, conn, uuid.New().String())
	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	}

	go c.writePump()
	go c.readPump()
}
