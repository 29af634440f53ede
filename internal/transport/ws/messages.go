package ws

import (
	"encoding/json"
	"time"

	"veil/internal/domain"
)

// MessageType represents the type of WebSocket message
type MessageType string

// Client → Server message types
const (
	MsgAuth      MessageType = "AUTH"
	MsgStartVote MessageType = "START_VOTE"
	MsgVote      MessageType = "VOTE"
	MsgReset     MessageType = "RESET"
	MsgLeave     MessageType = "LEAVE"
	MsgPing      MessageType = "PING"
)

// Server → Client message types
const (
	MsgKey       MessageType = "KEY"
	MsgRoomState MessageType = MessageType(domain.EventRoomState)
	MsgVoteCount MessageType = MessageType(domain.EventVoteCount)
	MsgResult    MessageType = MessageType(domain.EventResult)
	MsgError     MessageType = MessageType(domain.EventError)
	MsgPong      MessageType = "PONG"
)

// ClientMessage represents a message from client to server. The payload is
// decoded once the type is known.
type ClientMessage struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// ServerMessage represents a message from server to client
type ServerMessage struct {
	Type      MessageType `json:"type"`
	Payload   interface{} `json:"payload,omitempty"`
	Timestamp string      `json:"timestamp"`
}

// NewServerMessage creates a new server message with current timestamp
func NewServerMessage(msgType MessageType, payload interface{}) *ServerMessage {
	return &ServerMessage{
		Type:      msgType,
		Payload:   payload,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

// fromEvent converts a room event into its wire form
func fromEvent(event *domain.RoomEvent) *ServerMessage {
	return &ServerMessage{
		Type:      MessageType(event.Type),
		Payload:   event.Payload,
		Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
	}
}

// Client message payloads

// AuthPayload is the payload for AUTH
type AuthPayload struct {
	PlayerID string `json:"playerId"`
	RoomCode string `json:"roomCode"`
}

// VotePayload is the payload for VOTE. Byte fields travel as base64.
type VotePayload struct {
	EncryptedVote   []byte `json:"encryptedVote"`
	ClientPublicKey []byte `json:"clientPublicKey"`
	Nonce           []byte `json:"nonce"`
}

// SecretVote returns the sealed vote carried by the payload
func (p VotePayload) SecretVote() domain.SecretVote {
	return domain.SecretVote{
		Ciphertext:      p.EncryptedVote,
		ClientPublicKey: p.ClientPublicKey,
		Nonce:           p.Nonce,
	}
}

// Server message payloads

// KeyPayload announces the server's vote-sealing public key
type KeyPayload struct {
	PublicKey []byte `json:"publicKey"`
}

// decodePayload unmarshals a message payload, treating a missing payload as
// malformed
func decodePayload(raw json.RawMessage, target interface{}) error {
	if len(raw) == 0 {
		return domain.ErrMalformedMessage
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return domain.ErrMalformedMessage
	}
	return nil
}
