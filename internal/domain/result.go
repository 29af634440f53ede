package domain

// PlayerOutcome is a single player's line in a tally result
type PlayerOutcome struct {
	PlayerID   string `json:"playerId"`
	WasCorrect bool   `json:"wasCorrect"`
	IsSaboteur bool   `json:"isSaboteur"`
}

// TallyResult is the revealed outcome of one voting round
type TallyResult struct {
	SaboteurID       string          `json:"saboteurId"`
	SaboteurChoice   Choice          `json:"saboteurChoice"`
	MajorityChoice   Choice          `json:"majorityChoice"`
	CommunityCorrect bool            `json:"communityCorrect"`
	PerPlayer        []PlayerOutcome `json:"perPlayer"`
}

// Outcome returns the outcome recorded for a player
func (r *TallyResult) Outcome(playerID string) (PlayerOutcome, bool) {
	for _, o := range r.PerPlayer {
		if o.PlayerID == playerID {
			return o, true
		}
	}
	return PlayerOutcome{}, false
}
