package domain

// Phase represents the current phase of a room
type Phase string

const (
	PhaseLobby      Phase = "LOBBY"      // Waiting for players to join
	PhaseVoting     Phase = "VOTING"     // Collecting secret votes
	PhaseProcessing Phase = "PROCESSING" // Tally in flight, no votes accepted
	PhaseResult     Phase = "RESULT"     // Result revealed
)

// String returns the string representation of the phase
func (p Phase) String() string {
	return string(p)
}

// CanTransitionTo checks if a transition from current phase to target phase is valid
func (p Phase) CanTransitionTo(target Phase) bool {
	validTransitions := map[Phase][]Phase{
		PhaseLobby:      {PhaseVoting},
		PhaseVoting:     {PhaseProcessing, PhaseLobby}, // Lobby when too few players remain
		PhaseProcessing: {PhaseResult, PhaseLobby},     // Lobby when the tally fails
		PhaseResult:     {PhaseLobby},
	}

	allowed, ok := validTransitions[p]
	if !ok {
		return false
	}

	for _, phase := range allowed {
		if phase == target {
			return true
		}
	}
	return false
}
