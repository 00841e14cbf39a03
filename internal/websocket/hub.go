package websocket

import (
	"context"
	"log"
	"sync"
	"time"
)

// MessageToSend defines the structure for sending a message to a specific user.
type MessageToSend struct {
	TargetUserID string
	Payload      []byte
}

// Hub maintains the set of active clients and routes payloads to them by user.
type Hub struct {
	// Registered clients. Maps user ID to a set of active client connections.
	Clients map[string]map[*Client]bool

	// Channel for sending messages to specific users.
	SendDirect chan *MessageToSend

	// Register requests from the clients.
	Register chan *Client

	// Unregister requests from clients.
	Unregister chan *Client

	// Mutex to protect concurrent access to the clients map.
	mu sync.RWMutex

	// Closed when Run returns.
	done chan struct{}
}

func NewHub() *Hub {
	return &Hub{
		SendDirect: make(chan *MessageToSend, 64),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		Clients:    make(map[string]map[*Client]bool),
		done:       make(chan struct{}),
	}
}

// Run processes registrations and deliveries until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	log.Println("WebSocket Hub started.")
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			log.Println("WebSocket Hub stopped.")
			return

		case client := <-h.Register:
			h.mu.Lock()
			if _, ok := h.Clients[client.UserID]; !ok {
				h.Clients[client.UserID] = make(map[*Client]bool)
			}
			h.Clients[client.UserID][client] = true
			log.Printf("WebSocket Client registered for User %s. Total connections for user: %d", client.UserID, len(h.Clients[client.UserID]))
			h.mu.Unlock()

		case client := <-h.Unregister:
			h.mu.Lock()
			if userClients, ok := h.Clients[client.UserID]; ok {
				if _, clientOk := userClients[client]; clientOk {
					delete(userClients, client)
					close(client.Send)
					if len(userClients) == 0 {
						delete(h.Clients, client.UserID)
					}
					log.Printf("WebSocket Client unregistered for User %s. Remaining connections: %d", client.UserID, len(userClients))
				}
			}
			h.mu.Unlock()

		case directMessage := <-h.SendDirect:
			h.mu.RLock()
			for client := range h.Clients[directMessage.TargetUserID] {
				select {
				case client.Send <- directMessage.Payload:
				default:
					log.Printf("Send channel full for client of User %s. Message dropped for this client.", client.UserID)
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Done is closed once the hub has stopped.
func (h *Hub) Done() <-chan struct{} {
	return h.done
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for userID, userClients := range h.Clients {
		for client := range userClients {
			close(client.Send)
		}
		delete(h.Clients, userID)
	}
}

// ConnectionCount returns the number of open connections of a user.
func (h *Hub) ConnectionCount(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.Clients[userID])
}

// SendToUser queues a payload for every connection of targetUserID.
// Users without connections are skipped silently.
func (h *Hub) SendToUser(targetUserID string, payload []byte) {
	message := &MessageToSend{
		TargetUserID: targetUserID,
		Payload:      payload,
	}
	select {
	case h.SendDirect <- message:
	case <-time.After(1 * time.Second):
		log.Printf("Timeout queuing message in hub's SendDirect channel for User %s. Hub might be busy or blocked.", targetUserID)
	}
}
