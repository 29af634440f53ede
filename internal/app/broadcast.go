package app

import (
	"log/slog"
	"sync"

	"veil/internal/domain"
)

const eventQueueSize = 256

// ClientConnection represents a connected client
type ClientConnection interface {
	Send(message interface{}) error
	GetPlayerID() string
	Close() error
}

// Router fans room events out to the live connections of a room's members.
// Events are delivered in the order they were published.
type Router struct {
	clients   map[string]ClientConnection // playerID -> client
	clientsMu sync.RWMutex
	logger    *slog.Logger

	events    chan *domain.RoomEvent
	done      chan struct{}
	closeOnce sync.Once
}

// NewRouter creates a router and starts its delivery loop
func NewRouter(logger *slog.Logger) *Router {
	r := &Router{
		clients: make(map[string]ClientConnection),
		logger:  logger,
		events:  make(chan *domain.RoomEvent, eventQueueSize),
		done:    make(chan struct{}),
	}

	go r.eventLoop()

	return r
}

// Register maps a player to a connection and returns the one it replaced
func (r *Router) Register(playerID string, client ClientConnection) ClientConnection {
	r.clientsMu.Lock()
	defer r.clientsMu.Unlock()

	prev := r.clients[playerID]
	r.clients[playerID] = client
	if prev == client {
		return nil
	}
	return prev
}

// Unregister removes the player's connection. When client is non-nil the
// mapping is only removed if it still points at that connection.
func (r *Router) Unregister(playerID string, client ClientConnection) bool {
	r.clientsMu.Lock()
	defer r.clientsMu.Unlock()

	current, ok := r.clients[playerID]
	if !ok || (client != nil && current != client) {
		return false
	}
	delete(r.clients, playerID)
	return true
}

// ConnectedCount returns the number of live connections
func (r *Router) ConnectedCount() int {
	r.clientsMu.RLock()
	defer r.clientsMu.RUnlock()
	return len(r.clients)
}

// Publish adds an event to the delivery queue. A full queue makes the
// caller wait for the delivery loop; nothing is dropped until Close.
func (r *Router) Publish(event *domain.RoomEvent) {
	select {
	case <-r.done:
		return
	default:
	}

	select {
	case r.events <- event:
	case <-r.done:
	}
}

// eventLoop processes events and delivers them to clients
func (r *Router) eventLoop() {
	for {
		select {
		case <-r.done:
			return
		case event := <-r.events:
			r.deliver(event)
		}
	}
}

// deliver sends an event to the appropriate clients. A failed send is
// logged and skipped.
func (r *Router) deliver(event *domain.RoomEvent) {
	r.clientsMu.RLock()
	defer r.clientsMu.RUnlock()

	// If player-specific, send only to that player
	if event.PlayerID != "" {
		if client, ok := r.clients[event.PlayerID]; ok {
			if err := client.Send(event); err != nil {
				r.logger.Debug("failed to send to client", "playerID", event.PlayerID, "error", err)
			}
		}
		return
	}

	for playerID, client := range r.clients {
		if err := client.Send(event); err != nil {
			r.logger.Debug("failed to send to client", "playerID", playerID, "error", err)
		}
	}
}

// Close stops delivery and closes every registered connection
func (r *Router) Close() {
	r.closeOnce.Do(func() {
		close(r.done)
	})

	r.clientsMu.Lock()
	clients := r.clients
	r.clients = make(map[string]ClientConnection)
	r.clientsMu.Unlock()

	for _, client := range clients {
		client.Close()
	}
}
