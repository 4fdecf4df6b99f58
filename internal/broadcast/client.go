package broadcast

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

// EventSubscribed acknowledges a subscribe or unsubscribe request.
const EventSubscribed = "subscribed"

// controlRequest is what clients send to pick channels.
type controlRequest struct {
	Op       string   `json:"op"`
	Channels []string `json:"channels"`
}

// Client is one websocket connection. A new client receives every event
// until it sends its first subscribe request.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
	id   string

	subsMu sync.RWMutex
	subs   map[string]bool // nil means all events
}

func newClient(h *Hub, conn *websocket.Conn, id string) *Client {
	return &Client{
		hub:  h,
		conn: conn,
		send: make(chan []byte, clientBuffer),
		id:   id,
	}
}

// IsSubscribed reports whether the client wants event.
func (c *Client) IsSubscribed(event string) bool {
	if event == EventSubscribed {
		return false
	}
	c.subsMu.RLock()
	defer c.subsMu.RUnlock()
	return c.subs == nil || c.subs[event]
}

func (c *Client) subscribe(channels []string) []string {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()
	if c.subs == nil {
		c.subs = make(map[string]bool)
	}
	for _, ch := range channels {
		c.subs[ch] = true
	}
	return c.channelsLocked()
}

func (c *Client) unsubscribe(channels []string) []string {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()
	if c.subs == nil {
		c.subs = make(map[string]bool)
	}
	for _, ch := range channels {
		delete(c.subs, ch)
	}
	return c.channelsLocked()
}

func (c *Client) channelsLocked() []string {
	out := make([]string, 0, len(c.subs))
	for ch := range c.subs {
		out = append(out, ch)
	}
	return out
}

// readPump handles control requests until the connection fails, then
// unregisters the client.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("ws read error", "client_id", c.id, "error", err)
			}
			return
		}

		var req controlRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			c.hub.logger.Debug("ws invalid message", "client_id", c.id, "error", err)
			continue
		}

		var channels []string
		switch req.Op {
		case "subscribe":
			channels = c.subscribe(req.Channels)
		case "unsubscribe":
			channels = c.unsubscribe(req.Channels)
		default:
			c.hub.logger.Debug("ws unknown op", "client_id", c.id, "op", req.Op)
			continue
		}

		ack, err := encode(EventSubscribed, map[string][]string{"channels": channels}, c.hub.now())
		if err != nil {
			continue
		}
		select {
		case c.hub.reply <- reply{client: c, payload: ack}:
		case <-c.hub.done:
			return
		}
	}
}

// writePump writes one frame per message and pings on pingPeriod.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
