package stream

import (
	"context"
	"net/http"
	"sync/atomic"

	"github.com/gorilla/websocket"

	"PriceFusion/internal/domain/models"
	domrepo "PriceFusion/internal/domain/repository"
	"PriceFusion/pkg/logger"
)

var _ domrepo.FusionPublisher = (*Hub)(nil)

// Message types sent to websocket clients.
const (
	TypePrice      = "price"
	TypeSnapshot   = "snapshot"
	TypeSubscribed = "subscribed"
)

// Message is the envelope written to every client.
type Message struct {
	Type        string              `json:"type"`
	Price       *models.FusedPrice  `json:"price,omitempty"`
	Prices      []models.FusedPrice `json:"prices,omitempty"`
	ProductKeys []string            `json:"product_keys,omitempty"`
}

// Command is what clients send. Only "subscribe" is understood; an empty
// ProductKeys list means every product.
type Command struct {
	Command     string   `json:"command"`
	ProductKeys []string `json:"product_keys"`
}

type subscription struct {
	client *Client
	keys   []string
}

// Hub fans fused prices out to websocket clients. All client state is owned
// by the Run goroutine; clients whose buffer is full are dropped.
type Hub struct {
	register   chan *Client
	unregister chan *Client
	subscribe  chan subscription
	broadcast  chan models.FusedPrice
	done       chan struct{}

	clients map[*Client]struct{}
	latest  map[string]models.FusedPrice
	count   atomic.Int64

	upgrader websocket.Upgrader
	log      *logger.Logger
}

func NewHub(log *logger.Logger) *Hub {
	if log == nil {
		log = logger.Nop()
	}
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		subscribe:  make(chan subscription),
		broadcast:  make(chan models.FusedPrice, 256),
		done:       make(chan struct{}),
		clients:    make(map[*Client]struct{}),
		latest:     make(map[string]models.FusedPrice),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		log: log.With("stream"),
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int { return int(h.count.Load()) }

// Run serves the hub until ctx is cancelled, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			for c := range h.clients {
				h.drop(c)
			}
			return
		case c := <-h.register:
			h.clients[c] = struct{}{}
			h.count.Add(1)
		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				h.drop(c)
			}
		case sub := <-h.subscribe:
			if _, ok := h.clients[sub.client]; !ok {
				continue
			}
			sub.client.setFilter(sub.keys)
			if !h.deliver(sub.client, Message{Type: TypeSubscribed, ProductKeys: sub.keys}) {
				continue
			}
			if snap := h.snapshot(sub.client); len(snap) > 0 {
				h.deliver(sub.client, Message{Type: TypeSnapshot, Prices: snap})
			}
		case fp := <-h.broadcast:
			h.latest[fp.ProductKey] = fp
			for c := range h.clients {
				if !c.wants(fp.ProductKey) {
					continue
				}
				p := fp.Clone()
				h.deliver(c, Message{Type: TypePrice, Price: &p})
			}
		}
	}
}

// PublishFused queues fp for broadcast.
func (h *Hub) PublishFused(ctx context.Context, fp models.FusedPrice) error {
	select {
	case h.broadcast <- fp.Clone():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-h.done:
		return nil
	}
}

// ServeWS upgrades the request and attaches a new client.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	c := newClient(h, conn)
	select {
	case h.register <- c:
	case <-h.done:
		_ = conn.Close()
		return nil
	}
	go c.writePump()
	go c.readPump()
	return nil
}

// deliver reports false when c was dropped; its send channel is closed then.
func (h *Hub) deliver(c *Client, m Message) bool {
	select {
	case c.send <- m:
		return true
	default:
		h.log.Warn("dropping slow websocket client")
		h.drop(c)
		return false
	}
}

func (h *Hub) drop(c *Client) {
	delete(h.clients, c)
	close(c.send)
	h.count.Add(-1)
}

func (h *Hub) snapshot(c *Client) []models.FusedPrice {
	var out []models.FusedPrice
	for key, fp := range h.latest {
		if c.wants(key) {
			out = append(out, fp.Clone())
		}
	}
	return out
}
