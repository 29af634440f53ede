package ws

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"veil/internal/app"
)

// Handler handles WebSocket connections
type Handler struct {
	registry  *app.Registry
	serverKey []byte
	upgrader  websocket.Upgrader
	logger    *slog.Logger
}

// NewHandler creates a new WebSocket handler. serverKey is announced to
// every connection so clients can seal their votes.
func NewHandler(registry *app.Registry, serverKey []byte, logger *slog.Logger) *Handler {
	return &Handler{
		registry:  registry,
		serverKey: serverKey,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				// Identity is the player token sent in AUTH, not a cookie
				return true
			},
		},
		logger: logger,
	}
}

// ServeHTTP handles WebSocket upgrade requests. Authentication happens over
// the socket with an AUTH message.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	h.logger.Debug("websocket connected", "remoteAddr", r.RemoteAddr)

	client := NewClient(conn, h.registry, h.serverKey, h.logger)
	client.Run()
}
