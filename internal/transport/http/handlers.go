package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"veil/internal/app"
	"veil/internal/domain"
)

// Response is a standard API response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *ErrorInfo  `json:"error,omitempty"`
}

// ErrorInfo contains error details
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// RoomTicketResponse is returned to whoever creates or joins a room. The
// player id is the bearer token used to AUTH over the websocket.
type RoomTicketResponse struct {
	RoomCode   string               `json:"roomCode"`
	PlayerID   string               `json:"playerId"`
	InviteLink string               `json:"inviteLink,omitempty"`
	Room       *domain.RoomSnapshot `json:"room"`
}

// GetRoomResponse is the response for getting room info
type GetRoomResponse struct {
	*domain.RoomSnapshot
	CanJoin bool `json:"canJoin"`
}

// RoomExistsResponse is the response for checking if room exists
type RoomExistsResponse struct {
	Exists bool `json:"exists"`
}

// HealthResponse is the response for health check
type HealthResponse struct {
	Status string `json:"status"`
}

// StatsResponse is the response for stats endpoint
type StatsResponse struct {
	ActiveRooms    int             `json:"activeRooms"`
	TotalPlayers   int             `json:"totalPlayers"`
	PendingRejoins int             `json:"pendingRejoins"`
	Rooms          []app.RoomStats `json:"rooms"`
}

// handleCreateRoom handles POST /api/rooms
func (s *Server) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	session, hostID, err := s.dir.Create()
	if err != nil {
		s.logger.Error("room creation failed", "error", err)
		s.sendError(w, http.StatusInternalServerError, "CREATION_FAILED", "Failed to create room")
		return
	}

	// The invite link resolves to the room lookup a guest checks before joining
	scheme := "http"
	if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
		scheme = "https"
	}
	inviteLink := scheme + "://" + r.Host + "/api/rooms/" + session.GetRoomCode()

	s.sendSuccess(w, &RoomTicketResponse{
		RoomCode:   session.GetRoomCode(),
		PlayerID:   hostID,
		InviteLink: inviteLink,
		Room:       session.Snapshot(),
	})
}

// handleJoinRoom handles POST /api/rooms/{roomCode}/join
func (s *Server) handleJoinRoom(w http.ResponseWriter, r *http.Request) {
	session, playerID, snapshot, err := s.dir.Join(r.PathValue("roomCode"))
	if err != nil {
		s.sendDomainError(w, err)
		return
	}

	s.sendSuccess(w, &RoomTicketResponse{
		RoomCode: session.GetRoomCode(),
		PlayerID: playerID,
		Room:     snapshot,
	})
}

// handleGetRoom handles GET /api/rooms/{roomCode}
func (s *Server) handleGetRoom(w http.ResponseWriter, r *http.Request) {
	session, err := s.dir.Lookup(r.PathValue("roomCode"))
	if err != nil {
		s.sendDomainError(w, err)
		return
	}

	s.sendSuccess(w, &GetRoomResponse{
		RoomSnapshot: session.Snapshot(),
		CanJoin:      session.CanJoin(),
	})
}

// handleRoomExists handles GET /api/rooms/{roomCode}/exists
func (s *Server) handleRoomExists(w http.ResponseWriter, r *http.Request) {
	_, err := s.dir.Lookup(r.PathValue("roomCode"))

	s.sendSuccess(w, &RoomExistsResponse{
		Exists: err == nil,
	})
}

// handleHealth handles GET /api/health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.sendSuccess(w, &HealthResponse{
		Status: "ok",
	})
}

// handleStats handles GET /api/stats
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	s.sendSuccess(w, &StatsResponse{
		ActiveRooms:    s.dir.GetSessionCount(),
		TotalPlayers:   s.dir.GetTotalPlayerCount(),
		PendingRejoins: s.registry.PendingCount(),
		Rooms:          s.dir.Stats(),
	})
}

// sendDomainError maps a domain error to an HTTP status
func (s *Server) sendDomainError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrRoomNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrRoomFull), errors.Is(err, domain.ErrRoomNotJoinable):
		status = http.StatusConflict
	}

	code := domain.ErrorCode(err)
	message := err.Error()
	if code == domain.CodeInternalError {
		s.logger.Error("request failed", "error", err)
		message = "Internal server error"
	}

	s.sendError(w, status, code, message)
}

// sendSuccess sends a successful JSON response
func (s *Server) sendSuccess(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(&Response{
		Success: true,
		Data:    data,
	})
}

// sendError sends an error JSON response
func (s *Server) sendError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(&Response{
		Success: false,
		Error: &ErrorInfo{
			Code:    code,
			Message: message,
		},
	})
}
