package gateway

import (
	"context"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/connectfour/go/internal/connectfour/events"
	"github.com/mcdev12/connectfour/go/internal/connectfour/metrics"
	"github.com/mcdev12/connectfour/go/internal/connectfour/room"
)

// Service is the game gateway: WebSocket termination, the room registry and the HTTP views over it
type Service struct {
	connectionManager *ConnectionManager
	registry          *room.Registry
	handler           *Handler
	wsHandler         *WebSocketHandler
	stateHandler      *StateHandler
	eventStats        func() events.Stats
}

// Config holds configuration for the gateway service
type Config struct {
	ConnectionConfig ConnectionConfig
	Room             room.Config
}

// DefaultConfig returns default configuration for the gateway
func DefaultConfig() Config {
	return Config{
		ConnectionConfig: DefaultConnectionConfig(),
		Room:             room.DefaultConfig(),
	}
}

// NewService wires the connection manager and the registry to each other: rooms
// notify players through the manager, and the manager dispatches frames to rooms.
func NewService(config Config, m metrics.Collector, roomOpts ...room.Option) *Service {
	if m == nil {
		m = metrics.NoOp{}
	}

	cm := NewConnectionManager(config.ConnectionConfig, m)
	opts := append([]room.Option{room.WithMetrics(m)}, roomOpts...)
	registry := room.NewRegistry(config.Room, cm, opts...)
	handler := NewHandler(registry, cm)
	cm.SetDispatcher(handler)

	return &Service{
		connectionManager: cm,
		registry:          registry,
		handler:           handler,
		wsHandler:         NewWebSocketHandler(cm, registry),
		stateHandler:      NewStateHandler(registry),
	}
}

// SetEventStats exposes outbox counters on /health.
func (s *Service) SetEventStats(fn func() events.Stats) {
	s.eventStats = fn
}

func (s *Service) Registry() *room.Registry {
	return s.registry
}

// Start blocks until ctx is done, then tears down rooms and connections.
func (s *Service) Start(ctx context.Context) error {
	log.Info().Msg("starting game gateway service")
	<-ctx.Done()
	log.Info().Msg("game gateway service shutting down")
	return s.Stop()
}

func (s *Service) Stop() error {
	s.registry.CloseAll()
	s.connectionManager.CloseAll()
	log.Info().Msg("game gateway service stopped")
	return nil
}

// RegisterRoutes registers the WebSocket and state HTTP routes
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	s.wsHandler.RegisterRoutes(mux)
	s.stateHandler.RegisterStateRoutes(mux)
	mux.HandleFunc("GET /health", s.HandleHealth)
	log.Info().Msg("game gateway routes registered")
}

type healthResponse struct {
	Status      string        `json:"status"`
	Rooms       int           `json:"rooms"`
	Connections int           `json:"connections"`
	Events      *events.Stats `json:"events,omitempty"`
}

// HandleHealth handles GET /health
func (s *Service) HandleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:      "ok",
		Rooms:       s.registry.Len(),
		Connections: s.connectionManager.GetConnectionStats().TotalConnections,
	}
	if s.eventStats != nil {
		stats := s.eventStats()
		resp.Events = &stats
	}
	writeJSON(w, http.StatusOK, resp)
}
