package app

import (
	"crypto/rand"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"veil/internal/domain"
)

const (
	// DefaultRoomCodeLength is the default length for room codes
	DefaultRoomCodeLength = 6

	// DefaultMaxPlayers is the default room capacity
	DefaultMaxPlayers = 8

	// DefaultIdleTimeout is how long before an inactive room is swept
	DefaultIdleTimeout = 30 * time.Minute

	// DefaultSweepInterval is how often idle rooms are looked for
	DefaultSweepInterval = 5 * time.Minute
)

// RoomCodeChars are characters used for room codes (no ambiguous chars).
// Its length divides 256, so reducing a random byte modulo it is unbiased.
const RoomCodeChars = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// DirectoryConfig holds room lifecycle settings
type DirectoryConfig struct {
	MaxPlayers     int
	RoomCodeLength int
	IdleTimeout    time.Duration
	SweepInterval  time.Duration
}

// RoomStats is the public summary of one room
type RoomStats struct {
	RoomCode   string       `json:"roomCode"`
	Players    int          `json:"players"`
	Connected  int          `json:"connected"`
	Phase      domain.Phase `json:"phase"`
	AgeSeconds int64        `json:"ageSeconds"`
}

// ReleaseFunc is called after a room is destroyed with the members it had.
// The session is passed rather than its code, which a new room may already
// have taken.
type ReleaseFunc func(session *RoomSession, playerIDs []string)

// Directory manages all active rooms. State lives in memory only and starts
// empty on every boot.
type Directory struct {
	sessions map[string]*RoomSession
	mu       sync.RWMutex
	cfg      DirectoryConfig
	tallier  Tallier
	logger   *slog.Logger

	releaseMu sync.RWMutex
	release   []ReleaseFunc

	done      chan struct{}
	closeOnce sync.Once
}

// NewDirectory creates a new room directory and starts the idle sweep
func NewDirectory(cfg DirectoryConfig, tallier Tallier, logger *slog.Logger) *Directory {
	if cfg.MaxPlayers < domain.MinPlayers {
		cfg.MaxPlayers = DefaultMaxPlayers
	}
	if cfg.RoomCodeLength <= 0 {
		cfg.RoomCodeLength = DefaultRoomCodeLength
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = DefaultSweepInterval
	}

	d := &Directory{
		sessions: make(map[string]*RoomSession),
		cfg:      cfg,
		tallier:  tallier,
		logger:   logger,
		done:     make(chan struct{}),
	}

	// Start cleanup goroutine
	go d.cleanupLoop()

	return d
}

// OnRelease registers a callback run whenever a room is destroyed
func (d *Directory) OnRelease(fn ReleaseFunc) {
	d.releaseMu.Lock()
	defer d.releaseMu.Unlock()
	d.release = append(d.release, fn)
}

// NormalizeRoomCode makes user-typed codes comparable
func NormalizeRoomCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Create creates a new room with a fresh host and returns its session
func (d *Directory) Create() (*RoomSession, string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	// Generate unique room code
	var roomCode string
	for attempts := 0; attempts < 10; attempts++ {
		code, err := d.generateRoomCode()
		if err != nil {
			return nil, "", err
		}
		if _, exists := d.sessions[code]; !exists {
			roomCode = code
			break
		}
	}

	if roomCode == "" {
		return nil, "", fmt.Errorf("failed to generate unique room code")
	}

	hostID := uuid.New().String()
	room := domain.NewRoom(roomCode, hostID, d.cfg.MaxPlayers)
	session := NewRoomSession(room, d.tallier, d.logger)
	d.sessions[roomCode] = session

	d.logger.Info("room created", "roomCode", roomCode)

	return session, hostID, nil
}

// Join adds a new player to a room and returns the player's token
func (d *Directory) Join(roomCode string) (*RoomSession, string, *domain.RoomSnapshot, error) {
	session, err := d.Lookup(roomCode)
	if err != nil {
		return nil, "", nil, err
	}

	playerID := uuid.New().String()
	snapshot, err := session.Join(playerID)
	if err != nil {
		return nil, "", nil, err
	}

	d.logger.Info("player joined", "roomCode", session.GetRoomCode(), "players", snapshot.PlayerCount)

	return session, playerID, snapshot, nil
}

// Lookup returns a room session by code
func (d *Directory) Lookup(roomCode string) (*RoomSession, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	session, ok := d.sessions[NormalizeRoomCode(roomCode)]
	if !ok {
		return nil, domain.ErrRoomNotFound
	}

	return session, nil
}

// Leave removes a player and destroys the room once it is empty
func (d *Directory) Leave(roomCode, playerID string) error {
	session, err := d.Lookup(roomCode)
	if err != nil {
		return err
	}

	out, err := session.Leave(playerID)
	if err != nil {
		return err
	}

	if out.Empty {
		d.remove(session)
	}

	return nil
}

// Expire removes a player whose reconnect grace period ran out. A room
// that is already gone is not an error.
func (d *Directory) Expire(roomCode, playerID string) {
	session, err := d.Lookup(roomCode)
	if err != nil {
		return
	}

	out, removed := session.ExpirePlayer(playerID)
	if !removed {
		return
	}

	d.logger.Info("player removed after grace period", "roomCode", session.GetRoomCode())

	if out.Empty {
		d.remove(session)
	}
}

// remove deletes a room session and releases its members
func (d *Directory) remove(session *RoomSession) {
	code := session.GetRoomCode()

	d.mu.Lock()
	if d.sessions[code] == session {
		delete(d.sessions, code)
	}
	d.mu.Unlock()

	d.destroy(session, "room deleted")
}

func (d *Directory) destroy(session *RoomSession, reason string) {
	playerIDs := session.GetPlayerIDs()
	session.Close()

	d.releaseMu.RLock()
	hooks := d.release
	d.releaseMu.RUnlock()

	for _, fn := range hooks {
		fn(session, playerIDs)
	}

	d.logger.Info(reason, "roomCode", session.GetRoomCode(), "players", len(playerIDs))
}

// GetSessionCount returns the number of active rooms
func (d *Directory) GetSessionCount() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.sessions)
}

// GetTotalPlayerCount returns the total number of players across all rooms
func (d *Directory) GetTotalPlayerCount() int {
	d.mu.RLock()
	defer d.mu.RUnlock()

	total := 0
	for _, session := range d.sessions {
		total += session.GetPlayerCount()
	}
	return total
}

// Stats returns a summary of every active room
func (d *Directory) Stats() []RoomStats {
	d.mu.RLock()
	defer d.mu.RUnlock()

	now := time.Now()
	stats := make([]RoomStats, 0, len(d.sessions))
	for code, session := range d.sessions {
		stats = append(stats, RoomStats{
			RoomCode:   code,
			Players:    session.GetPlayerCount(),
			Connected:  session.GetConnectedCount(),
			Phase:      session.GetPhase(),
			AgeSeconds: int64(now.Sub(session.GetCreatedAt()).Seconds()),
		})
	}
	return stats
}

// Close shuts down the directory and all rooms
func (d *Directory) Close() {
	d.closeOnce.Do(func() {
		close(d.done)
	})

	d.mu.Lock()
	sessions := d.sessions
	d.sessions = make(map[string]*RoomSession)
	d.mu.Unlock()

	for _, session := range sessions {
		session.Close()
	}
}

// generateRoomCode generates a random room code
func (d *Directory) generateRoomCode() (string, error) {
	b := make([]byte, d.cfg.RoomCodeLength)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}

	code := make([]byte, d.cfg.RoomCodeLength)
	for i := range code {
		code[i] = RoomCodeChars[int(b[i])%len(RoomCodeChars)]
	}

	return string(code), nil
}

// cleanupLoop periodically sweeps idle rooms
func (d *Directory) cleanupLoop() {
	ticker := time.NewTicker(d.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-d.done:
			return
		case now := <-ticker.C:
			d.sweepIdle(now)
		}
	}
}

// sweepIdle removes rooms that have been inactive for too long
func (d *Directory) sweepIdle(now time.Time) int {
	d.mu.Lock()
	stale := make([]*RoomSession, 0)
	for roomCode, session := range d.sessions {
		if session.IsIdle(now, d.cfg.IdleTimeout) {
			stale = append(stale, session)
			delete(d.sessions, roomCode)
		}
	}
	d.mu.Unlock()

	for _, session := range stale {
		d.destroy(session, "idle room cleaned up")
	}

	if len(stale) > 0 {
		d.logger.Info("idle sweep complete", "removed", len(stale))
	}

	return len(stale)
}
