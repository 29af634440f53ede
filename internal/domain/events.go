package domain

import "time"

// EventType represents the type of room event
type EventType string

const (
	EventRoomState EventType = "ROOM_STATE"
	EventVoteCount EventType = "VOTE_COUNT"
	EventResult    EventType = "RESULT"
	EventError     EventType = "ERROR"
)

// RoomEvent represents an event that occurred in a room
type RoomEvent struct {
	Type      EventType   `json:"type"`
	RoomCode  string      `json:"roomCode"`
	PlayerID  string      `json:"-"` // If event is player-specific
	Payload   interface{} `json:"payload,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// NewEvent creates a new room-wide event
func NewEvent(eventType EventType, roomCode string, payload interface{}) *RoomEvent {
	return &RoomEvent{
		Type:      eventType,
		RoomCode:  roomCode,
		Payload:   payload,
		Timestamp: time.Now(),
	}
}

// NewPlayerEvent creates a new player-specific room event
func NewPlayerEvent(eventType EventType, roomCode, playerID string, payload interface{}) *RoomEvent {
	return &RoomEvent{
		Type:      eventType,
		RoomCode:  roomCode,
		PlayerID:  playerID,
		Payload:   payload,
		Timestamp: time.Now(),
	}
}

// Payload types for different events

// RoomSnapshot is the public state of a room. It never carries votes.
type RoomSnapshot struct {
	RoomCode      string       `json:"roomCode"`
	Players       []PlayerInfo `json:"players"`
	PlayerCount   int          `json:"playerCount"`
	MaxPlayers    int          `json:"maxPlayers"`
	Phase         Phase        `json:"phase"`
	VotesReceived int          `json:"votesReceived"`
	Result        *TallyResult `json:"result"`
}

// ResultPayload is sent to each player once the tally completes
type ResultPayload struct {
	CommunityCorrect bool   `json:"communityCorrect"`
	SaboteurID       string `json:"saboteurId"`
	SaboteurChoice   Choice `json:"saboteurChoice"`
	MajorityChoice   Choice `json:"majorityChoice"`
	YourVoteCorrect  bool   `json:"yourVoteCorrect"`
	IsSaboteur       bool   `json:"isSaboteur"`
}

// NewResultPayload tailors a tally result to one recipient
func NewResultPayload(result *TallyResult, playerID string) *ResultPayload {
	outcome, _ := result.Outcome(playerID)
	return &ResultPayload{
		CommunityCorrect: result.CommunityCorrect,
		SaboteurID:       result.SaboteurID,
		SaboteurChoice:   result.SaboteurChoice,
		MajorityChoice:   result.MajorityChoice,
		YourVoteCorrect:  outcome.WasCorrect,
		IsSaboteur:       outcome.IsSaboteur,
	}
}

// ErrorPayload is sent when an error occurs
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
