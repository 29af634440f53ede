package tally

import (
	"veil/internal/domain"
)

// Revealed is a plaintext vote. Values of this type only exist while a tally
// is running.
type Revealed struct {
	PlayerID string
	Choice   domain.Choice
}

// Compute derives the round outcome from revealed votes in join order and the
// index of the saboteur. It has no other inputs and no side effects.
func Compute(votes []Revealed, saboteur int) (*domain.TallyResult, error) {
	if len(votes) < domain.MinPlayers {
		return nil, domain.ErrInsufficientVotes
	}
	if saboteur < 0 || saboteur >= len(votes) {
		return nil, domain.ErrComputationFailed
	}

	var countA, countB int
	var first domain.Choice
	for i, v := range votes {
		if i == saboteur {
			continue
		}
		if first == "" {
			first = v.Choice
		}
		switch v.Choice {
		case domain.ChoiceA:
			countA++
		case domain.ChoiceB:
			countB++
		}
	}

	majority := first
	switch {
	case countA > countB:
		majority = domain.ChoiceA
	case countB > countA:
		majority = domain.ChoiceB
	}

	saboteurChoice := votes[saboteur].Choice
	result := &domain.TallyResult{
		SaboteurID:       votes[saboteur].PlayerID,
		SaboteurChoice:   saboteurChoice,
		MajorityChoice:   majority,
		CommunityCorrect: majority != saboteurChoice,
		PerPlayer:        make([]domain.PlayerOutcome, 0, len(votes)),
	}

	for i, v := range votes {
		isSaboteur := i == saboteur
		wasCorrect := v.Choice == majority
		if isSaboteur {
			wasCorrect = !wasCorrect
		}
		result.PerPlayer = append(result.PerPlayer, domain.PlayerOutcome{
			PlayerID:   v.PlayerID,
			WasCorrect: wasCorrect,
			IsSaboteur: isSaboteur,
		})
	}

	return result, nil
}
