package ws

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"github.com/google/uuid"
)

// Event types pushed to a shop's counter screens.
const (
	EventDraftSaved   = "draft.saved"
	EventOrderCreated = "order.created"
	EventOrderDeleted = "order.deleted"
	EventPresetAdded  = "preset.created"
)

// Event is one message sent to every client of a shop.
type Event struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type shopEvent struct {
	ShopID uuid.UUID
	Event  Event
}

// Hub keeps one room of clients per shop and fans events out to them.
type Hub struct {
	rooms map[uuid.UUID]map[*Client]bool

	register   chan *Client
	unregister chan *Client
	broadcast  chan *shopEvent
	done       chan struct{}

	mu sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		rooms:      make(map[uuid.UUID]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *shopEvent, 256),
		done:       make(chan struct{}),
	}
}

// Run processes registrations and broadcasts until ctx is cancelled, then
// closes every client.
func (h *Hub) Run(ctx context.Context) {
	defer func() {
		h.mu.Lock()
		for shopID, clients := range h.rooms {
			for client := range clients {
				close(client.send)
			}
			delete(h.rooms, shopID)
		}
		h.mu.Unlock()
		close(h.done)
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.register:
			h.mu.Lock()
			if h.rooms[client.shopID] == nil {
				h.rooms[client.shopID] = make(map[*Client]bool)
			}
			h.rooms[client.shopID][client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			h.dropLocked(client)
			h.mu.Unlock()

		case ev := <-h.broadcast:
			message, err := json.Marshal(ev.Event)
			if err != nil {
				log.Printf("ERROR: marshal %s event: %v", ev.Event.Type, err)
				continue
			}
			h.mu.Lock()
			for client := range h.rooms[ev.ShopID] {
				select {
				case client.send <- message:
				default:
					// Slow consumer.
					h.dropLocked(client)
				}
			}
			h.mu.Unlock()
		}
	}
}

func (h *Hub) dropLocked(client *Client) {
	clients, ok := h.rooms[client.shopID]
	if !ok {
		return
	}
	if _, exists := clients[client]; !exists {
		return
	}
	delete(clients, client)
	close(client.send)
	if len(clients) == 0 {
		delete(h.rooms, client.shopID)
	}
}

// BroadcastToShop queues event for every client of shopID. It is a no-op
// once the hub has stopped.
func (h *Hub) BroadcastToShop(shopID uuid.UUID, event Event) {
	select {
	case h.broadcast <- &shopEvent{ShopID: shopID, Event: event}:
	case <-h.done:
	}
}

// Publish marshals payload and broadcasts it as an event of type typ.
func (h *Hub) Publish(shopID uuid.UUID, typ string, payload any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		log.Printf("ERROR: marshal %s payload: %v", typ, err)
		return
	}
	h.BroadcastToShop(shopID, Event{Type: typ, Payload: raw})
}

// Clients returns the number of connected clients for shopID.
func (h *Hub) Clients(shopID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[shopID])
}
