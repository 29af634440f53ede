package domain

import "errors"

// Domain errors
var (
	ErrRoomNotFound        = errors.New("room not found")
	ErrRoomNotJoinable     = errors.New("room is not accepting players")
	ErrRoomFull            = errors.New("room is full")
	ErrNotHost             = errors.New("only host can perform this action")
	ErrInvalidPhase        = errors.New("invalid action for current phase")
	ErrInsufficientPlayers = errors.New("need at least 2 players")
	ErrNotInRoom           = errors.New("player is not in this room")
	ErrInsufficientVotes   = errors.New("need at least 2 votes")
	ErrComputationFailed   = errors.New("computation failed")
	ErrUnauthorized        = errors.New("not authorized for this room")
	ErrMalformedMessage    = errors.New("malformed message")
	ErrPlayerNotFound      = errors.New("player not found")
	ErrInvalidTransition   = errors.New("invalid phase transition")
)

// Wire error codes
const (
	CodeRoomNotFound        = "ROOM_NOT_FOUND"
	CodeRoomNotJoinable     = "ROOM_NOT_JOINABLE"
	CodeRoomFull            = "ROOM_FULL"
	CodeNotHost             = "NOT_HOST"
	CodeInvalidPhase        = "INVALID_PHASE"
	CodeInsufficientPlayers = "INSUFFICIENT_PLAYERS"
	CodeNotInRoom           = "NOT_IN_ROOM"
	CodeInsufficientVotes   = "INSUFFICIENT_VOTES"
	CodeComputationFailed   = "COMPUTATION_FAILED"
	CodeUnauthorized        = "UNAUTHORIZED"
	CodeMalformedMessage    = "MALFORMED_MESSAGE"
	CodeInternalError       = "INTERNAL_ERROR"
)

var errorCodes = []struct {
	err  error
	code string
}{
	{ErrRoomNotFound, CodeRoomNotFound},
	{ErrRoomNotJoinable, CodeRoomNotJoinable},
	{ErrRoomFull, CodeRoomFull},
	{ErrNotHost, CodeNotHost},
	{ErrInvalidPhase, CodeInvalidPhase},
	{ErrInsufficientPlayers, CodeInsufficientPlayers},
	{ErrNotInRoom, CodeNotInRoom},
	{ErrInsufficientVotes, CodeInsufficientVotes},
	{ErrComputationFailed, CodeComputationFailed},
	{ErrUnauthorized, CodeUnauthorized},
	{ErrMalformedMessage, CodeMalformedMessage},
	{ErrPlayerNotFound, CodeNotInRoom},
}

// ErrorCode maps an error to its wire code
func ErrorCode(err error) string {
	for _, e := range errorCodes {
		if errors.Is(err, e.err) {
			return e.code
		}
	}
	return CodeInternalError
}
