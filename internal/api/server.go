// Package api serves the dashboard HTTP API and WebSocket endpoint.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/goodtune/playwarden/internal/agent"
	"github.com/goodtune/playwarden/internal/api/ws"
	"github.com/goodtune/playwarden/internal/backend"
	"github.com/goodtune/playwarden/internal/storage"
	"github.com/goodtune/playwarden/internal/timeline"
)

// Config holds the API server configuration.
type Config struct {
	ListenAddr     string
	AllowedOrigins []string
}

// Server is the dashboard API server. Read endpoints answer from the
// agent's in-memory view; mutating endpoints go straight to the monitor
// service so the next poll reflects the change.
type Server struct {
	config   Config
	agent    *agent.Agent
	backend  backend.Client
	store    storage.Store
	hub      *ws.Hub
	clock    timeline.Clock
	router   *mux.Router
	server   *http.Server
	listener net.Listener
	logger   zerolog.Logger
}

// NewServer creates the API server and registers its routes.
func NewServer(cfg Config, a *agent.Agent, client backend.Client, store storage.Store, hub *ws.Hub, logger zerolog.Logger) *Server {
	s := &Server{
		config:  cfg,
		agent:   a,
		backend: client,
		store:   store,
		hub:     hub,
		clock:   timeline.RealClock{},
		router:  mux.NewRouter(),
		logger:  logger.With().Str("component", "api").Logger(),
	}

	s.setupRoutes()

	s.server = &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// SetClock overrides the server clock. Tests only.
func (s *Server) SetClock(clock timeline.Clock) {
	s.clock = clock
}

// SetListener sets a pre-created listener (from systemd socket
// activation) to use instead of creating a new one.
func (s *Server) SetListener(l net.Listener) {
	s.listener = l
}

func (s *Server) setupRoutes() {
	s.router.Use(LoggingMiddleware(s.logger))
	s.router.Use(CORSMiddleware(s.config.AllowedOrigins))

	// OPTIONS is routed alongside the real method so the CORS middleware
	// sees preflight requests.
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET", "OPTIONS")

	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/budget", s.handleBudget).Methods("GET", "OPTIONS")
	api.HandleFunc("/budget/adjust", s.handleBudgetAdjust).Methods("POST", "OPTIONS")
	api.HandleFunc("/sessions/current", s.handleCurrentSessions).Methods("GET", "OPTIONS")
	api.HandleFunc("/sessions/recent", s.handleRecentSessions).Methods("GET", "OPTIONS")
	api.HandleFunc("/alerts", s.handleAlerts).Methods("GET", "OPTIONS")
	api.HandleFunc("/activities", s.handleActivities).Methods("POST", "OPTIONS")
	api.HandleFunc("/games/close", s.handleCloseGames).Methods("POST", "OPTIONS")

	wsHandler := ws.NewHandler(s.hub, s.checkOrigin, s.logger)
	s.router.Handle("/ws", wsHandler).Methods("GET")
}

// checkOrigin applies the CORS allow-list to WebSocket upgrades.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range s.config.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

// Start starts the API server.
func (s *Server) Start() error {
	if s.listener != nil {
		s.logger.Info().Str("addr", s.listener.Addr().String()).Msg("Starting API server on systemd socket")
		go func() {
			if err := s.server.Serve(s.listener); err != nil && err != http.ErrServerClosed {
				s.logger.Error().Err(err).Msg("API server error")
			}
		}()
		return nil
	}

	listener, err := net.Listen("tcp", s.config.ListenAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.ListenAddr, err)
	}
	s.listener = listener

	s.logger.Info().Str("addr", s.config.ListenAddr).Msg("Starting API server")
	go func() {
		if err := s.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("API server error")
		}
	}()

	return nil
}

// Stop gracefully stops the API server.
func (s *Server) Stop() error {
	s.logger.Info().Msg("Stopping API server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return s.server.Shutdown(ctx)
}

// ErrorResponse represents an API error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code"`
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(data); err != nil {
		http.Error(w, `{"error":"Internal Server Error","message":"Failed to encode response"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_, _ = w.Write(buf.Bytes())
}

// writeError writes an error response.
func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
		Code:    statusCode,
	})
}
