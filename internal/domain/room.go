package domain

import (
	"slices"
	"time"
)

// MinPlayers is the smallest room that can start a vote
const MinPlayers = 2

// Room represents one game instance. It is not safe for concurrent use;
// callers serialize access (see app.RoomSession).
type Room struct {
	Code           string
	Players        []*Player // join order
	Phase          Phase
	Votes          map[string]SecretVote
	Result         *TallyResult
	Round          int
	MaxPlayers     int
	CreatedAt      time.Time
	LastActivityAt time.Time
}

// VoteProgress counts collected votes against room size
type VoteProgress struct {
	Received int `json:"received"`
	Total    int `json:"total"`
}

// LeaveOutcome describes the side effects of a player leaving
type LeaveOutcome struct {
	Empty     bool     // room has no players left and must be destroyed
	NewHostID string   // set when the host role moved
	Ballots   []Ballot // set when the departure completed the vote
}

// NewRoom creates a room in the lobby with its host as the only player
func NewRoom(code, hostID string, maxPlayers int) *Room {
	now := time.Now()
	return &Room{
		Code:           code,
		Players:        []*Player{NewPlayer(hostID, true)},
		Phase:          PhaseLobby,
		Votes:          make(map[string]SecretVote),
		MaxPlayers:     maxPlayers,
		CreatedAt:      now,
		LastActivityAt: now,
	}
}

// Join appends a new non-host player
func (r *Room) Join(playerID string) (*Player, error) {
	if r.Phase != PhaseLobby {
		return nil, ErrRoomNotJoinable
	}

	if len(r.Players) >= r.MaxPlayers {
		return nil, ErrRoomFull
	}

	if p, err := r.GetPlayer(playerID); err == nil {
		return p, nil
	}

	player := NewPlayer(playerID, len(r.Players) == 0)
	r.Players = append(r.Players, player)
	r.touch()

	return player, nil
}

// StartVoting moves the room from the lobby into a fresh voting round
func (r *Room) StartVoting(actorID string) error {
	if !r.IsHost(actorID) {
		return ErrNotHost
	}

	if r.Phase != PhaseLobby {
		return ErrInvalidPhase
	}

	if len(r.Players) < MinPlayers {
		return ErrInsufficientPlayers
	}

	r.Votes = make(map[string]SecretVote)
	r.Result = nil
	r.Round++
	r.setPhase(PhaseVoting)
	r.touch()

	return nil
}

// CastVote records (or overwrites) the actor's vote. When the vote completes
// the room, the phase moves to Processing and the captured ballots are
// returned; that happens at most once per round because every later call
// fails the phase guard.
func (r *Room) CastVote(actorID string, vote SecretVote) (VoteProgress, []Ballot, error) {
	if r.Phase != PhaseVoting {
		return VoteProgress{}, nil, ErrInvalidPhase
	}

	if !r.IsMember(actorID) {
		return VoteProgress{}, nil, ErrNotInRoom
	}

	r.Votes[actorID] = vote
	r.touch()

	progress := r.GetVoteProgress()
	return progress, r.beginProcessingIfComplete(), nil
}

// CompleteTally stores the result of the given round
func (r *Room) CompleteTally(round int, result *TallyResult) error {
	if r.Phase != PhaseProcessing || r.Round != round {
		return ErrInvalidTransition
	}

	r.Result = result
	r.Votes = make(map[string]SecretVote)
	r.setPhase(PhaseResult)
	r.touch()

	return nil
}

// FailTally discards the round's votes and returns to the lobby
func (r *Room) FailTally(round int) error {
	if r.Phase != PhaseProcessing || r.Round != round {
		return ErrInvalidTransition
	}

	r.Votes = make(map[string]SecretVote)
	r.setPhase(PhaseLobby)
	r.touch()

	return nil
}

// Reset clears the result and returns to the lobby
func (r *Room) Reset(actorID string) error {
	if !r.IsHost(actorID) {
		return ErrNotHost
	}

	if r.Phase != PhaseResult {
		return ErrInvalidPhase
	}

	r.Result = nil
	r.setPhase(PhaseLobby)
	r.touch()

	return nil
}

// Leave removes a player regardless of phase
func (r *Room) Leave(playerID string) (LeaveOutcome, error) {
	idx := r.indexOf(playerID)
	if idx < 0 {
		return LeaveOutcome{}, ErrPlayerNotFound
	}

	wasHost := r.Players[idx].IsHost
	r.Players = slices.Delete(r.Players, idx, idx+1)
	delete(r.Votes, playerID)
	r.touch()

	var out LeaveOutcome
	if len(r.Players) == 0 {
		out.Empty = true
		return out, nil
	}

	// Oldest remaining member takes over
	if wasHost {
		r.Players[0].IsHost = true
		out.NewHostID = r.Players[0].ID
	}

	if r.Phase == PhaseVoting {
		if len(r.Players) < MinPlayers {
			r.Votes = make(map[string]SecretVote)
			r.setPhase(PhaseLobby)
		} else {
			out.Ballots = r.beginProcessingIfComplete()
		}
	}

	return out, nil
}

// SetConnected toggles a player's connection flag
func (r *Room) SetConnected(playerID string, connected bool) error {
	player, err := r.GetPlayer(playerID)
	if err != nil {
		return err
	}

	if connected {
		player.Reconnect()
	} else {
		player.Disconnect()
	}
	r.touch()

	return nil
}

// GetPlayer returns a player by ID
func (r *Room) GetPlayer(playerID string) (*Player, error) {
	idx := r.indexOf(playerID)
	if idx < 0 {
		return nil, ErrPlayerNotFound
	}
	return r.Players[idx], nil
}

// GetPlayerIDs returns player IDs in join order
func (r *Room) GetPlayerIDs() []string {
	ids := make([]string, 0, len(r.Players))
	for _, p := range r.Players {
		ids = append(ids, p.ID)
	}
	return ids
}

// IsMember checks if the given player belongs to the room
func (r *Room) IsMember(playerID string) bool {
	return r.indexOf(playerID) >= 0
}

// IsHost checks if the given player is the host
func (r *Room) IsHost(playerID string) bool {
	p, err := r.GetPlayer(playerID)
	return err == nil && p.IsHost
}

// HostID returns the current host, or "" for an empty room
func (r *Room) HostID() string {
	for _, p := range r.Players {
		if p.IsHost {
			return p.ID
		}
	}
	return ""
}

// GetVoteProgress returns how many votes are in
func (r *Room) GetVoteProgress() VoteProgress {
	return VoteProgress{
		Received: len(r.Votes),
		Total:    len(r.Players),
	}
}

// IsIdle reports whether the room saw no activity for longer than timeout
func (r *Room) IsIdle(now time.Time, timeout time.Duration) bool {
	return now.Sub(r.LastActivityAt) > timeout
}

// Snapshot returns the public state of the room
func (r *Room) Snapshot() *RoomSnapshot {
	players := make([]PlayerInfo, 0, len(r.Players))
	for _, p := range r.Players {
		players = append(players, p.ToInfo())
	}

	return &RoomSnapshot{
		RoomCode:      r.Code,
		Players:       players,
		PlayerCount:   len(r.Players),
		MaxPlayers:    r.MaxPlayers,
		Phase:         r.Phase,
		VotesReceived: len(r.Votes),
		Result:        r.Result,
	}
}

func (r *Room) beginProcessingIfComplete() []Ballot {
	if r.Phase != PhaseVoting || len(r.Votes) < len(r.Players) {
		return nil
	}

	r.setPhase(PhaseProcessing)

	ballots := make([]Ballot, 0, len(r.Votes))
	for _, p := range r.Players {
		if vote, ok := r.Votes[p.ID]; ok {
			ballots = append(ballots, Ballot{PlayerID: p.ID, Vote: vote})
		}
	}
	return ballots
}

func (r *Room) setPhase(target Phase) {
	if r.Phase.CanTransitionTo(target) {
		r.Phase = target
	}
}

func (r *Room) indexOf(playerID string) int {
	return slices.IndexFunc(r.Players, func(p *Player) bool {
		return p.ID == playerID
	})
}

func (r *Room) touch() {
	r.LastActivityAt = time.Now()
}
