package http

import (
	"bufio"
	"context"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"veil/internal/app"
	"veil/internal/config"
	"veil/internal/transport/ws"
)

// Server represents the HTTP server
type Server struct {
	server    *http.Server
	dir       *app.Directory
	registry  *app.Registry
	serverKey []byte
	config    *config.Config
	logger    *slog.Logger
	tracer    trace.Tracer
}

// NewServer creates a new HTTP server
func NewServer(cfg *config.Config, dir *app.Directory, registry *app.Registry, serverKey []byte, logger *slog.Logger) *Server {
	s := &Server{
		dir:       dir,
		registry:  registry,
		serverKey: serverKey,
		config:    cfg,
		logger:    logger,
		tracer:    otel.Tracer("veil/internal/transport/http"),
	}

	// Set up routes
	mux := http.NewServeMux()
	s.setupRoutes(mux)

	s.server = &http.Server{
		Addr:         cfg.GetAddr(),
		Handler:      s.middleware(mux),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Handler returns the root handler with middleware applied
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes(mux *http.ServeMux) {
	// API routes
	mux.HandleFunc("POST /api/rooms", s.handleCreateRoom)
	mux.HandleFunc("POST /api/rooms/{roomCode}/join", s.handleJoinRoom)
	mux.HandleFunc("GET /api/rooms/{roomCode}", s.handleGetRoom)
	mux.HandleFunc("GET /api/rooms/{roomCode}/exists", s.handleRoomExists)
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/stats", s.handleStats)

	// WebSocket
	wsHandler := ws.NewHandler(s.registry, s.serverKey, s.logger)
	mux.Handle("GET /ws", wsHandler)
}

// middleware applies CORS, records a span per API request and logs it
func (s *Server) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		rec := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

		// A websocket request lives as long as the connection; no span
		if isUpgrade(r) {
			next.ServeHTTP(rec, r)
			return
		}

		ctx, span := s.tracer.Start(r.Context(), "http "+r.Method,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.request.method", r.Method),
				attribute.String("url.path", r.URL.Path),
			))
		next.ServeHTTP(rec, r.WithContext(ctx))

		span.SetAttributes(attribute.Int("http.response.status_code", rec.statusCode))
		if rec.statusCode >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(rec.statusCode))
		}
		span.End()

		// Health checks are noise outside development
		if s.config.IsDevelopment() || r.URL.Path != "/api/health" {
			s.logger.Info("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", rec.statusCode,
				"duration", time.Since(start),
			)
		}
	})
}

func isUpgrade(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get("Upgrade"), "websocket")
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("server starting", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server shutting down")
	return s.server.Shutdown(ctx)
}

// statusRecorder keeps the status code for logs and spans
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (rw *statusRecorder) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Hijack implements http.Hijacker for WebSocket support
func (rw *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if hijacker, ok := rw.ResponseWriter.(http.Hijacker); ok {
		return hijacker.Hijack()
	}
	return nil, nil, http.ErrNotSupported
}

// Flush implements http.Flusher
func (rw *statusRecorder) Flush() {
	if flusher, ok := rw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}
