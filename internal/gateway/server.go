// Package gateway is the sidecar HTTP API an out-of-process agent host uses
// to forward lifecycle events and chat commands to the bridge.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"github.com/loganrenz/openclaw-mattermost-toolchainposter/internal/commands"
	"github.com/loganrenz/openclaw-mattermost-toolchainposter/internal/config"
	"github.com/loganrenz/openclaw-mattermost-toolchainposter/internal/gateway/handlers"
	"github.com/loganrenz/openclaw-mattermost-toolchainposter/internal/gateway/middleware"
	"github.com/loganrenz/openclaw-mattermost-toolchainposter/internal/gateway/websocket"
	"github.com/loganrenz/openclaw-mattermost-toolchainposter/internal/hooks"
	"github.com/loganrenz/openclaw-mattermost-toolchainposter/pkg/logger"
)

// Deps are the components the gateway exposes. Any of them may be nil; the
// matching endpoints then degrade to no-ops or 404s.
type Deps struct {
	Hooks    *hooks.Manager
	Commands *commands.Registry
	Hub      *websocket.Hub
	// Stats returns the bridge snapshot reported by /health.
	Stats   func() any
	Version string
}

// Server represents the gateway HTTP server.
type Server struct {
	httpServer  *http.Server
	router      *mux.Router
	deps        Deps
	addr        string
	rateLimiter *middleware.RateLimiter

	mu       sync.Mutex
	listener net.Listener
}

// NewServer creates a new gateway server.
func NewServer(cfg config.GatewayConfig, deps Deps) *Server {
	router := mux.NewRouter()

	rlConfig := middleware.DefaultRateLimiterConfig()
	rlConfig.RequestsPerMinute = cfg.CommandRateLimit
	rlConfig.Burst = max(1, cfg.CommandRateLimit/6)
	rlConfig.Enabled = cfg.CommandRateLimit > 0

	s := &Server{
		router:      router,
		deps:        deps,
		addr:        cfg.Addr(),
		rateLimiter: middleware.NewRateLimiter(rlConfig),
	}
	s.setupRoutes()

	s.httpServer = &http.Server{
		Handler:           middleware.Recovery(middleware.Logging(router)),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// setupRoutes configures the server routes.
func (s *Server) setupRoutes() {
	var clients func() int
	if s.deps.Hub != nil {
		clients = s.deps.Hub.ClientCount
	}
	s.router.HandleFunc("/health", handlers.HealthHandler(s.deps.Version, handlers.HealthSource{
		Bridge:  s.deps.Stats,
		Clients: clients,
	})).Methods(http.MethodGet)

	v1 := s.router.PathPrefix("/v1").Subrouter()
	v1.HandleFunc("/hooks/{type}", handlers.HooksHandler(s.deps.Hooks)).Methods(http.MethodPost)

	cmds := v1.PathPrefix("/commands").Subrouter()
	cmds.Use(s.rateLimiter.RateLimit)
	cmds.HandleFunc("", handlers.CommandListHandler(s.deps.Commands)).Methods(http.MethodGet)
	cmds.HandleFunc("/{name}", handlers.CommandHandler(s.deps.Commands)).Methods(http.MethodPost)

	if s.deps.Hub != nil {
		v1.HandleFunc("/events", func(w http.ResponseWriter, r *http.Request) {
			websocket.ServeWs(s.deps.Hub, w, r)
		}).Methods(http.MethodGet)
	}

	// Each subrouter needs its own handler or a method mismatch becomes a 404.
	methodNotAllowed := http.HandlerFunc(handlers.MethodNotAllowed)
	for _, r := range []*mux.Router{s.router, v1, cmds} {
		r.MethodNotAllowedHandler = methodNotAllowed
	}
	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlers.SendError(w, http.StatusNotFound, handlers.ErrCodeNotFound, "no route for "+r.URL.Path)
	})
}

// Start binds the listener and serves until Shutdown. The activity hub runs
// until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	handlers.InitStartTime()

	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.addr, err)
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	if s.deps.Hub != nil {
		go s.deps.Hub.Run(ctx)
	}
	if s.deps.Hooks != nil {
		if _, err := s.deps.Hooks.TriggerGatewayStart(ctx); err != nil {
			logger.Warn().Err(err).Msg("gateway_start hook failed")
		}
	}

	logger.Info().
		Str("addr", ln.Addr().String()).
		Msg("Starting gateway server")

	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	logger.Info().Msg("Shutting down gateway server")

	if s.deps.Hooks != nil {
		if _, err := s.deps.Hooks.TriggerGatewayStop(ctx); err != nil {
			logger.Warn().Err(err).Msg("gateway_stop hook failed")
		}
	}
	s.rateLimiter.Stop()

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}
	return nil
}

// Addr returns the bound address once Start has listened, else the configured one.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// IsReady reports whether the listener is bound.
func (s *Server) IsReady() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listener != nil
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Router returns the underlying router.
func (s *Server) Router() *mux.Router {
	return s.router
}
