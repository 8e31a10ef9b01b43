package websocket

import (
	"context"
	"sync/atomic"

	"github.com/DEEKSHA240406/stress-management-sub001/internal/models"
	"github.com/rs/zerolog/log"
)

// ClientObserver is told how many clients are connected after every change.
type ClientObserver interface {
	SetClients(n int)
}

// Hub maintains the set of active clients and broadcasts messages to them.
type Hub struct {
	// Registered clients. Owned by the Run goroutine.
	clients map[*Client]bool

	// Outbound messages for every client.
	broadcast chan []byte

	// Register requests from the clients.
	register chan *Client

	// Unregister requests from clients.
	unregister chan *Client

	// done is closed when Run returns.
	done chan struct{}

	count    atomic.Int64
	observer ClientObserver
}

// NewHub creates a new Hub. observer may be nil.
func NewHub(observer ClientObserver) *Hub {
	return &Hub{
		broadcast:  make(chan []byte, 64),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
		done:       make(chan struct{}),
		observer:   observer,
	}
}

// Run starts the Hub's message processing loop. It returns when ctx is
// cancelled, closing every client's send channel.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				h.drop(client)
			}
			return
		case client := <-h.register:
			h.clients[client] = true
			h.changed()
			log.Info().Int("total_clients", len(h.clients)).Msg("Event stream client connected")
		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				h.drop(client)
				log.Info().Int("total_clients", len(h.clients)).Msg("Event stream client disconnected")
			}
		case message := <-h.broadcast:
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					// Slow consumer.
					h.drop(client)
				}
			}
		}
	}
}

func (h *Hub) drop(client *Client) {
	delete(h.clients, client)
	close(client.send)
	h.changed()
}

func (h *Hub) changed() {
	h.count.Store(int64(len(h.clients)))
	if h.observer != nil {
		h.observer.SetClients(len(h.clients))
	}
}

// Register adds client to the hub. It reports false if the hub has stopped.
func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

// Unregister removes client from the hub.
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Publish queues event for every connected client. It never blocks; if the
// queue is full the event is dropped from the live stream.
func (h *Hub) Publish(event models.Event) {
	data := encode(Message{Action: ActionAuthEvent, Payload: event})
	if data == nil {
		return
	}
	select {
	case h.broadcast <- data:
	default:
		log.Warn().Str("event_type", event.Type).Msg("Event stream queue full, dropping event")
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	return int(h.count.Load())
}

// Done is closed once Run has returned.
func (h *Hub) Done() <-chan struct{} {
	return h.done
}
