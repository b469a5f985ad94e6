package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/nerrad567/flashlight-core/internal/bridges/upstream"
	"github.com/nerrad567/flashlight-core/internal/broadcast"
	"github.com/nerrad567/flashlight-core/internal/device"
	"github.com/nerrad567/flashlight-core/internal/infrastructure/config"
	"github.com/nerrad567/flashlight-core/internal/infrastructure/logging"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// StateSource returns the current device state.
type StateSource interface {
	Snapshot() device.Snapshot
}

// UpstreamStatus reports the health and counters of the command reader.
type UpstreamStatus interface {
	HealthCheck(ctx context.Context) error
	Stats() upstream.Stats
}

// ConnectionStatus reports whether an optional integration is connected.
type ConnectionStatus interface {
	IsConnected() bool
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config      config.APIConfig
	WS          config.WebSocketConfig
	Broadcast   config.BroadcastConfig
	Logger      *logging.Logger
	State       StateSource
	Broadcaster *broadcast.Broadcaster
	Upstream    UpstreamStatus
	History     device.HistoryRepository // optional
	MQTT        ConnectionStatus         // optional
	Telemetry   ConnectionStatus         // optional
	PanelDir    string                   // serve UI assets from disk when set
	Version     string
}

// Server is the HTTP API server for the flashlight.
//
// It serves the UI, the current state, the history, health and metrics, and
// accepts WebSocket observers which it registers with the broadcaster.
type Server struct {
	cfg         config.APIConfig
	wsCfg       config.WebSocketConfig
	bcastCfg    config.BroadcastConfig
	logger      *logging.Logger
	state       StateSource
	broadcaster *broadcast.Broadcaster
	upstream    UpstreamStatus
	history     device.HistoryRepository
	mqtt        ConnectionStatus
	telemetry   ConnectionStatus
	panelDir    string
	version     string
	startTime   time.Time

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
	done     chan struct{}
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
//
// Parameters:
//   - deps: Required dependencies (logger, state, broadcaster, upstream)
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing or the broadcast config is invalid
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.State == nil {
		return nil, fmt.Errorf("state source is required")
	}
	if deps.Broadcaster == nil {
		return nil, fmt.Errorf("broadcaster is required")
	}
	if deps.Upstream == nil {
		return nil, fmt.Errorf("upstream status is required")
	}
	if deps.Broadcast.Mode == config.BroadcastModeQueued {
		if _, err := broadcast.ParseOverflowPolicy(deps.Broadcast.OverflowPolicy); err != nil {
			return nil, err
		}
	}

	return &Server{
		cfg:         deps.Config,
		wsCfg:       deps.WS,
		bcastCfg:    deps.Broadcast,
		logger:      deps.Logger,
		state:       deps.State,
		broadcaster: deps.Broadcaster,
		upstream:    deps.Upstream,
		history:     deps.History,
		mqtt:        deps.MQTT,
		telemetry:   deps.Telemetry,
		panelDir:    deps.PanelDir,
		version:     deps.Version,
		startTime:   time.Now(),
	}, nil
}

// Handler returns the fully wired router. Start uses it; tests can mount it
// on an httptest.Server.
func (s *Server) Handler() http.Handler {
	return s.buildRouter()
}

// Start binds the listener and serves HTTP in a background goroutine.
//
// Binding happens before Start returns, so a port conflict is reported
// here rather than logged later.
//
// Returns:
//   - error: If the address cannot be bound or the server was already started
func (s *Server) Start(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server != nil {
		return fmt.Errorf("api server already started")
	}

	addr := net.JoinHostPort(s.cfg.Host, fmt.Sprintf("%d", s.cfg.Port))
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("binding API server to %s: %w", addr, err)
	}

	s.server = &http.Server{
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}
	s.listener = listener
	s.done = make(chan struct{})

	s.logger.Info("API server starting", "address", listener.Addr().String())

	go func(srv *http.Server, done chan struct{}) {
		defer close(done)
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}(s.server, s.done)

	return nil
}

// Addr returns the bound listen address, or "" before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections. WebSocket observers are
// hijacked connections and are closed by their own handlers once the
// broadcaster or the peer ends them.
//
// Returns:
//   - error: If shutdown encounters an error
func (s *Server) Close() error {
	s.mu.Lock()
	srv, done := s.server, s.done
	s.mu.Unlock()

	if srv == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	<-done
	return nil
}

// HealthCheck verifies the API server is running.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//
// Returns:
//   - error: nil if healthy, error describing the issue otherwise
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.server == nil {
		return fmt.Errorf("api server not started")
	}
	return nil
}
