package domain

import "time"

// Player represents a member of a room. The ID doubles as the player's
// bearer token: whoever holds it may act as the player.
type Player struct {
	ID        string    `json:"playerId"`
	IsHost    bool      `json:"isHost"`
	Connected bool      `json:"connected"`
	JoinedAt  time.Time `json:"joinedAt"`
}

// NewPlayer creates a new connected player with the given ID
func NewPlayer(id string, isHost bool) *Player {
	return &Player{
		ID:        id,
		IsHost:    isHost,
		Connected: true,
		JoinedAt:  time.Now(),
	}
}

// Disconnect marks the player as disconnected
func (p *Player) Disconnect() {
	p.Connected = false
}

// Reconnect marks the player as connected
func (p *Player) Reconnect() {
	p.Connected = true
}

// PlayerInfo is the public view of a player
type PlayerInfo struct {
	ID        string `json:"playerId"`
	IsHost    bool   `json:"isHost"`
	Connected bool   `json:"connected"`
}

// ToInfo converts a Player to PlayerInfo
func (p *Player) ToInfo() PlayerInfo {
	return PlayerInfo{
		ID:        p.ID,
		IsHost:    p.IsHost,
		Connected: p.Connected,
	}
}
