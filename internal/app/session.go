package app

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"veil/internal/domain"
)

// Tallier computes the result of a completed vote
type Tallier interface {
	Run(ctx context.Context, ballots []domain.Ballot) (*domain.TallyResult, error)
}

// RoomSession wraps a room with concurrency control and client management.
// Every mutation of the room happens under mu; the tally runs outside it.
type RoomSession struct {
	room    *domain.Room
	mu      sync.Mutex
	closed  bool
	router  *Router
	tallier Tallier
	logger  *slog.Logger

	// Cancels in-flight tallies when the room is destroyed
	ctx     context.Context
	cancel  context.CancelFunc
	tallies sync.WaitGroup
}

// NewRoomSession creates a new room session
func NewRoomSession(room *domain.Room, tallier Tallier, logger *slog.Logger) *RoomSession {
	ctx, cancel := context.WithCancel(context.Background())
	return &RoomSession{
		room:    room,
		router:  NewRouter(logger),
		tallier: tallier,
		logger:  logger.With("roomCode", room.Code),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// GetRoomCode returns the room code
func (s *RoomSession) GetRoomCode() string {
	return s.room.Code
}

// GetCreatedAt returns when the room was created
func (s *RoomSession) GetCreatedAt() time.Time {
	return s.room.CreatedAt
}

// GetPlayerCount returns the number of players
func (s *RoomSession) GetPlayerCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.room.Players)
}

// GetPlayerIDs returns the members in join order
func (s *RoomSession) GetPlayerIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.room.GetPlayerIDs()
}

// GetConnectedCount returns how many members have a live connection
func (s *RoomSession) GetConnectedCount() int {
	return s.router.ConnectedCount()
}

// GetPhase returns the current room phase
func (s *RoomSession) GetPhase() domain.Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.room.Phase
}

// Snapshot returns the public room state
func (s *RoomSession) Snapshot() *domain.RoomSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.room.Snapshot()
}

// CanJoin checks if a new player can join the room
func (s *RoomSession) CanJoin() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.closed && s.room.Phase == domain.PhaseLobby && len(s.room.Players) < s.room.MaxPlayers
}

// IsIdle reports whether the room has been inactive for longer than timeout
func (s *RoomSession) IsIdle(now time.Time, timeout time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.room.IsIdle(now, timeout)
}

// Join adds a player to the room
func (s *RoomSession) Join(playerID string) (*domain.RoomSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, domain.ErrRoomNotFound
	}

	if _, err := s.room.Join(playerID); err != nil {
		return nil, err
	}

	return s.publishState(), nil
}

// Attach binds a live connection to a member. A connection previously bound
// to the same player is closed.
func (s *RoomSession) Attach(playerID string, client ClientConnection) (*domain.RoomSnapshot, error) {
	s.mu.Lock()

	if s.closed || !s.room.IsMember(playerID) {
		s.mu.Unlock()
		return nil, domain.ErrUnauthorized
	}

	s.room.SetConnected(playerID, true)
	prev := s.router.Register(playerID, client)
	snapshot := s.publishState()
	s.mu.Unlock()

	if prev != nil {
		prev.Close()
	}

	return snapshot, nil
}

// Detach unbinds a closed connection and marks the player disconnected.
// It returns false when the connection had already been replaced.
func (s *RoomSession) Detach(playerID string, client ClientConnection) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.router.Unregister(playerID, client) || s.closed {
		return false
	}

	if err := s.room.SetConnected(playerID, false); err != nil {
		return false
	}
	s.publishState()

	return true
}

// StartVoting starts a voting round (host only)
func (s *RoomSession) StartVoting(playerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return domain.ErrRoomNotFound
	}

	if err := s.room.StartVoting(playerID); err != nil {
		return err
	}

	s.logger.Info("voting started", "round", s.room.Round)
	s.publishState()

	return nil
}

// CastVote records a secret vote and starts the tally once everyone voted
func (s *RoomSession) CastVote(playerID string, vote domain.SecretVote) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return domain.ErrRoomNotFound
	}

	progress, ballots, err := s.room.CastVote(playerID, vote)
	if err != nil {
		return err
	}

	// Broadcast vote progress (without revealing who voted)
	s.router.Publish(domain.NewEvent(domain.EventVoteCount, s.room.Code, progress))

	if ballots != nil {
		s.beginTally(ballots)
	}

	return nil
}

// Reset returns a finished room to the lobby (host only)
func (s *RoomSession) Reset(playerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return domain.ErrRoomNotFound
	}

	if err := s.room.Reset(playerID); err != nil {
		return err
	}

	s.publishState()

	return nil
}

// Leave removes a player from the room
func (s *RoomSession) Leave(playerID string) (domain.LeaveOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return domain.LeaveOutcome{}, domain.ErrRoomNotFound
	}

	return s.leaveLocked(playerID)
}

// ExpirePlayer removes a player whose reconnect window ran out. It does
// nothing when the player has reconnected or is already gone.
func (s *RoomSession) ExpirePlayer(playerID string) (domain.LeaveOutcome, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return domain.LeaveOutcome{}, false
	}

	player, err := s.room.GetPlayer(playerID)
	if err != nil || player.Connected {
		return domain.LeaveOutcome{}, false
	}

	out, err := s.leaveLocked(playerID)
	return out, err == nil
}

func (s *RoomSession) leaveLocked(playerID string) (domain.LeaveOutcome, error) {
	out, err := s.room.Leave(playerID)
	if err != nil {
		return out, err
	}

	s.router.Unregister(playerID, nil)

	if out.Empty {
		s.closed = true
		return out, nil
	}

	if out.NewHostID != "" {
		s.logger.Info("host transferred")
	}

	if out.Ballots != nil {
		s.beginTally(out.Ballots)
	} else {
		s.publishState()
	}

	return out, nil
}

// beginTally announces Processing and runs the tally without holding the
// lock (caller must hold lock)
func (s *RoomSession) beginTally(ballots []domain.Ballot) {
	round := s.room.Round
	s.publishState()

	s.logger.Info("all votes in, tally started", "round", round, "ballots", len(ballots))

	s.tallies.Add(1)
	go func() {
		defer s.tallies.Done()
		result, err := s.tallier.Run(s.ctx, ballots)
		s.finishTally(round, result, err)
	}()
}

// finishTally applies the tally outcome if the round is still current
func (s *RoomSession) finishTally(round int, result *domain.TallyResult, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	if err != nil {
		if s.room.FailTally(round) != nil {
			return
		}
		s.logger.Error("tally failed", "round", round, "error", err)
		s.router.Publish(domain.NewEvent(domain.EventError, s.room.Code, &domain.ErrorPayload{
			Code:    domain.CodeComputationFailed,
			Message: "Computation failed",
		}))
		s.publishState()
		return
	}

	if s.room.CompleteTally(round, result) != nil {
		return
	}

	s.logger.Info("tally complete", "round", round, "communityCorrect", result.CommunityCorrect)

	// Send each player their own view of the result
	for _, pid := range s.room.GetPlayerIDs() {
		s.router.Publish(domain.NewPlayerEvent(domain.EventResult, s.room.Code, pid,
			domain.NewResultPayload(result, pid)))
	}
	s.publishState()
}

// publishState queues a ROOM_STATE broadcast (caller must hold lock)
func (s *RoomSession) publishState() *domain.RoomSnapshot {
	snapshot := s.room.Snapshot()
	s.router.Publish(domain.NewEvent(domain.EventRoomState, s.room.Code, snapshot))
	return snapshot
}

// Close shuts down the session
func (s *RoomSession) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	s.router.Close()
}
