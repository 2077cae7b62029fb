package websocket

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/loganrenz/openclaw-mattermost-toolchainposter/pkg/logger"
)

// Hub maintains the set of active clients and fans activity out to them.
//
// A client with no subscriptions receives every frame. Once it subscribes to
// one or more sessions it only receives frames for those sessions plus
// frames that carry no session.
type Hub struct {
	// Registered clients.
	clients map[*Client]bool

	// Session to clients mapping for targeted broadcasts.
	sessions map[string]map[*Client]bool

	register   chan *Client
	unregister chan *Client
	broadcast  chan *BroadcastMessage
	done       chan struct{}

	mu sync.RWMutex
}

// NewHub creates a new Hub.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		sessions:   make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *BroadcastMessage, 256),
		done:       make(chan struct{}),
	}
}

// Run starts the hub's main loop. It returns when ctx is cancelled, closing
// every client's send channel on the way out.
func (h *Hub) Run(ctx context.Context) {
	defer func() {
		close(h.done)
		h.mu.Lock()
		for client := range h.clients {
			delete(h.clients, client)
			close(client.send)
		}
		h.sessions = make(map[string]map[*Client]bool)
		h.mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			logger.Info().Str("client_id", client.id).Msg("activity client connected")

		case client := <-h.unregister:
			h.remove(client)
			logger.Info().Str("client_id", client.id).Msg("activity client disconnected")

		case msg := <-h.broadcast:
			h.deliver(msg)
		}
	}
}

func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	close(client.send)

	for session := range client.sessions {
		if clients, ok := h.sessions[session]; ok {
			delete(clients, client)
			if len(clients) == 0 {
				delete(h.sessions, session)
			}
		}
	}
}

func (h *Hub) deliver(msg *BroadcastMessage) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients {
		if msg.Session != "" && len(client.sessions) > 0 && !client.sessions[msg.Session] {
			continue
		}
		select {
		case client.send <- msg.Data:
		default:
			// Slow client; drop rather than stall the hub.
		}
	}
}

// Register adds a client to the hub.
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
	}
}

// Unregister removes a client from the hub.
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Subscribe narrows a client to a session's frames.
func (h *Hub) Subscribe(client *Client, session string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	client.sessions[session] = true
	if h.sessions[session] == nil {
		h.sessions[session] = make(map[*Client]bool)
	}
	h.sessions[session][client] = true

	logger.Debug().
		Str("client_id", client.id).
		Str("session", session).
		Msg("client subscribed to session")
}

// Unsubscribe removes a client from a session's subscriber list.
func (h *Hub) Unsubscribe(client *Client, session string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(client.sessions, session)
	if clients, ok := h.sessions[session]; ok {
		delete(clients, client)
		if len(clients) == 0 {
			delete(h.sessions, session)
		}
	}

	logger.Debug().
		Str("client_id", client.id).
		Str("session", session).
		Msg("client unsubscribed from session")
}

// Broadcast queues raw data for a session. It never blocks; when the queue
// is full the frame is dropped and false is returned.
func (h *Hub) Broadcast(session string, data []byte) bool {
	select {
	case h.broadcast <- &BroadcastMessage{Session: session, Data: data}:
		return true
	default:
		logger.Warn().Str("session", session).Msg("activity broadcast queue full, dropping frame")
		return false
	}
}

// BroadcastTyped wraps payload in a {"type","session","data"} frame and queues it.
func (h *Hub) BroadcastTyped(messageType, session string, payload any) error {
	data, err := json.Marshal(WSMessage{Type: messageType, Session: session, Data: payload})
	if err != nil {
		logger.Error().Err(err).Str("type", messageType).Msg("failed to marshal broadcast message")
		return err
	}
	h.Broadcast(session, data)
	return nil
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// SessionCount returns the number of sessions with at least one subscriber.
func (h *Hub) SessionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}
