package stream

import (
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"

	"PriceFusion/pkg/logger"
)

const (
	writeWait      = 2 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	sendBuffer     = 256
)

// Client is one websocket connection. send and filter are only touched by
// the hub goroutine.
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan Message
	filter map[string]struct{}
}

func newClient(h *Hub, conn *websocket.Conn) *Client {
	return &Client{hub: h, conn: conn, send: make(chan Message, sendBuffer)}
}

func (c *Client) setFilter(keys []string) {
	if len(keys) == 0 {
		c.filter = nil
		return
	}
	c.filter = make(map[string]struct{}, len(keys))
	for _, k := range keys {
		c.filter[k] = struct{}{}
	}
}

func (c *Client) wants(productKey string) bool {
	if c.filter == nil {
		return true
	}
	_, ok := c.filter[productKey]
	return ok
}

func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Debug("websocket read failed", logger.Error(err))
			}
			return
		}
		var cmd Command
		if err := json.Unmarshal(raw, &cmd); err != nil {
			c.hub.log.Debug("invalid websocket command", logger.Error(err))
			continue
		}
		if cmd.Command == "subscribe" {
			select {
			case c.hub.subscribe <- subscription{client: c, keys: cmd.ProductKeys}:
			case <-c.hub.done:
				return
			}
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				c.hub.log.Debug("websocket write failed", logger.Error(err))
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
