package app

import (
	"log/slog"
	"sync"
	"time"

	"veil/internal/domain"
)

// DefaultReconnectGrace is how long a dropped player keeps their seat
const DefaultReconnectGrace = 5 * time.Second

// Binding ties a connection to the player it authenticated as
type Binding struct {
	RoomCode string
	PlayerID string
}

// binding is a Binding plus the session it was made against. Room codes
// can be reused once a room is gone, so the session is what identifies it.
type binding struct {
	Binding
	session *RoomSession
}

// graceTimer is compared by identity so a stale timer cannot remove a
// player whose newer timer is pending
type graceTimer struct {
	timer *time.Timer
}

// Registry tracks which player each live connection speaks for and holds
// the reconnect timers of players whose connection dropped.
type Registry struct {
	dir    *Directory
	grace  time.Duration
	logger *slog.Logger

	mu       sync.Mutex
	bindings map[ClientConnection]binding
	pending  map[string]*graceTimer // playerID -> removal timer
	closed   bool
}

// NewRegistry creates a session registry on top of a room directory
func NewRegistry(dir *Directory, grace time.Duration, logger *slog.Logger) *Registry {
	if grace <= 0 {
		grace = DefaultReconnectGrace
	}

	r := &Registry{
		dir:      dir,
		grace:    grace,
		logger:   logger,
		bindings: make(map[ClientConnection]binding),
		pending:  make(map[string]*graceTimer),
	}

	dir.OnRelease(r.releaseRoom)

	return r
}

// Authenticate binds a connection to a member of a room. Any pending
// removal of that player is cancelled.
func (r *Registry) Authenticate(client ClientConnection, roomCode, playerID string) (*RoomSession, *domain.RoomSnapshot, error) {
	roomCode = NormalizeRoomCode(roomCode)
	if roomCode == "" || playerID == "" {
		return nil, nil, domain.ErrUnauthorized
	}

	// Re-authenticating a connection releases the identity it held before
	r.mu.Lock()
	prev, bound := r.bindings[client]
	r.mu.Unlock()
	if bound && prev.Binding != (Binding{RoomCode: roomCode, PlayerID: playerID}) {
		r.Disconnect(client)
	}

	session, err := r.dir.Lookup(roomCode)
	if err != nil {
		return nil, nil, domain.ErrUnauthorized
	}

	snapshot, err := session.Attach(playerID, client)
	if err != nil {
		return nil, nil, err
	}

	r.mu.Lock()
	if g, ok := r.pending[playerID]; ok {
		g.timer.Stop()
		delete(r.pending, playerID)
	}
	r.bindings[client] = binding{
		Binding: Binding{RoomCode: roomCode, PlayerID: playerID},
		session: session,
	}
	r.mu.Unlock()

	r.logger.Info("player authenticated", "roomCode", roomCode, "playerID", playerID)

	return session, snapshot, nil
}

// Resolve returns the binding and room of an authenticated connection
func (r *Registry) Resolve(client ClientConnection) (Binding, *RoomSession, error) {
	r.mu.Lock()
	b, ok := r.bindings[client]
	r.mu.Unlock()

	if !ok {
		return Binding{}, nil, domain.ErrUnauthorized
	}

	return b.Binding, b.session, nil
}

// Disconnect handles a closed connection. The player stays in the room,
// marked disconnected, until the grace period runs out.
func (r *Registry) Disconnect(client ClientConnection) {
	r.mu.Lock()
	b, ok := r.bindings[client]
	delete(r.bindings, client)
	r.mu.Unlock()

	if !ok {
		return
	}

	// Already replaced by a newer connection, or the room is gone
	if !b.session.Detach(b.PlayerID, client) {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}

	if g, ok := r.pending[b.PlayerID]; ok {
		g.timer.Stop()
	}

	g := &graceTimer{}
	g.timer = time.AfterFunc(r.grace, func() {
		r.expire(b.Binding, g)
	})
	r.pending[b.PlayerID] = g

	r.logger.Debug("player disconnected", "roomCode", b.RoomCode, "playerID", b.PlayerID)
}

// Leave removes the connection's player from its room right away
func (r *Registry) Leave(client ClientConnection) error {
	r.mu.Lock()
	b, ok := r.bindings[client]
	delete(r.bindings, client)
	if g, pending := r.pending[b.PlayerID]; ok && pending {
		g.timer.Stop()
		delete(r.pending, b.PlayerID)
	}
	r.mu.Unlock()

	if !ok {
		return domain.ErrUnauthorized
	}

	return r.dir.Leave(b.RoomCode, b.PlayerID)
}

// expire runs when a grace timer fires
func (r *Registry) expire(b Binding, g *graceTimer) {
	r.mu.Lock()
	if r.closed || r.pending[b.PlayerID] != g {
		r.mu.Unlock()
		return
	}
	delete(r.pending, b.PlayerID)
	r.mu.Unlock()

	r.dir.Expire(b.RoomCode, b.PlayerID)
}

// releaseRoom forgets every binding and timer of a destroyed room
func (r *Registry) releaseRoom(session *RoomSession, playerIDs []string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, pid := range playerIDs {
		if g, ok := r.pending[pid]; ok {
			g.timer.Stop()
			delete(r.pending, pid)
		}
	}

	for client, b := range r.bindings {
		if b.session == session {
			delete(r.bindings, client)
		}
	}
}

// PendingCount returns the number of players waiting out a grace period
func (r *Registry) PendingCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

// Close stops all grace timers
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.closed = true
	for pid, g := range r.pending {
		g.timer.Stop()
		delete(r.pending, pid)
	}
}
