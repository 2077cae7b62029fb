// Package server assembles the bridge process: hook manager, command registry,
// Mattermost clients and listeners, the bridge itself, the sidecar gateway and
// the config watcher.
package server

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/loganrenz/openclaw-mattermost-toolchainposter/internal/accounts"
	"github.com/loganrenz/openclaw-mattermost-toolchainposter/internal/bridge"
	"github.com/loganrenz/openclaw-mattermost-toolchainposter/internal/commands"
	"github.com/loganrenz/openclaw-mattermost-toolchainposter/internal/config"
	"github.com/loganrenz/openclaw-mattermost-toolchainposter/internal/gateway"
	"github.com/loganrenz/openclaw-mattermost-toolchainposter/internal/gateway/websocket"
	"github.com/loganrenz/openclaw-mattermost-toolchainposter/internal/hooks"
	hooksbuiltin "github.com/loganrenz/openclaw-mattermost-toolchainposter/internal/hooks/builtin"
	"github.com/loganrenz/openclaw-mattermost-toolchainposter/internal/mattermost"
	"github.com/loganrenz/openclaw-mattermost-toolchainposter/pkg/logger"
)

const readyTimeout = 10 * time.Second

// Server runs every component of the bridge process.
type Server struct {
	cfg        *config.Config
	configPath string
	logger     zerolog.Logger
	version    string
	watch      bool

	manager   *hooks.Manager
	commands  *commands.Registry
	accounts  *accounts.Registry
	pool      *mattermost.Pool
	bridge    *bridge.Bridge
	hub       *websocket.Hub
	gateway   *gateway.Server
	watcher   *config.Watcher
	hookStats *hooksbuiltin.LoggingHook

	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.RWMutex
	running   bool
	startedAt time.Time
	errChan   chan error
}

// ServerConfig holds what the server is built from.
type ServerConfig struct {
	Config     *config.Config
	ConfigPath string
	// Logger defaults to the "server" component logger.
	Logger  *zerolog.Logger
	Version string
	// Watch reloads notify settings when the config file changes.
	Watch bool
}

// NewServer builds the components. Nothing touches the network until Start.
//
// A configuration without any Mattermost destination is not an error: the
// server still runs the gateway so the host keeps working, but no bridge
// handlers are registered.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Config == nil {
		return nil, fmt.Errorf("server: config is required")
	}

	// Webhook-only setups have no bot accounts; the bridge decides whether
	// that leaves anything to post to.
	registry, err := accounts.Build(cfg.Config.Mattermost)
	if err != nil && !errors.Is(err, accounts.ErrNoCredentials) {
		return nil, fmt.Errorf("build accounts: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		cfg:        cfg.Config,
		configPath: cfg.ConfigPath,
		logger:     logger.Component("server"),
		version:    cfg.Version,
		watch:      cfg.Watch,
		manager:    hooks.NewManager(),
		commands:   commands.NewRegistry(),
		accounts:   registry,
		pool:       mattermost.NewPool(cfg.Config.Mattermost),
		hub:        websocket.NewHub(),
		ctx:        ctx,
		cancel:     cancel,
		errChan:    make(chan error, 1),
	}

	bridgeOpts := []bridge.Option{bridge.WithObserver(gateway.ActivityObserver(s.hub))}
	hookCfg := hooksbuiltin.LoggingConfig{Level: zerolog.DebugLevel}
	if cfg.Logger != nil {
		s.logger = *cfg.Logger
		bl := cfg.Logger.With().Str("component", "bridge").Logger()
		hl := cfg.Logger.With().Str("component", "hooks").Logger()
		bridgeOpts = append(bridgeOpts, bridge.WithLogger(bl))
		hookCfg.Logger = &hl
	}

	if s.cfg.Log.Level == "debug" || s.cfg.Log.Level == "trace" {
		s.hookStats, err = hooksbuiltin.RegisterLoggingHooks(s.manager, hookCfg)
		if err != nil {
			cancel()
			return nil, err
		}
	}

	b, err := bridge.New(s.cfg, registry, s.posterFor, bridgeOpts...)
	switch {
	case errors.Is(err, bridge.ErrConfigurationMissing):
		s.logger.Warn().Msg("no Mattermost webhook or bot account configured, tool calls will not be posted")
	case err != nil:
		cancel()
		return nil, fmt.Errorf("build bridge: %w", err)
	default:
		if err := b.Register(s.manager, s.commands); err != nil {
			cancel()
			return nil, fmt.Errorf("register bridge: %w", err)
		}
		s.bridge = b
	}

	if s.cfg.Gateway.Enabled {
		deps := gateway.Deps{
			Hooks:    s.manager,
			Commands: s.commands,
			Hub:      s.hub,
			Version:  s.version,
		}
		if s.bridge != nil {
			deps.Stats = func() any { return s.bridge.Stats() }
		}
		s.gateway = gateway.NewServer(s.cfg.Gateway, deps)
	}
	return s, nil
}

func (s *Server) posterFor(acct accounts.Account, ok bool) bridge.Poster {
	if !ok {
		return s.pool.Shared()
	}
	return s.pool.For(acct)
}

// ErrorChan reports fatal runtime errors such as the gateway failing to serve.
func (s *Server) ErrorChan() <-chan error {
	return s.errChan
}

// Start launches all components and waits until the gateway is listening.
func (s *Server) Start() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = true
	s.startedAt = time.Now()
	s.mu.Unlock()

	if s.bridge != nil {
		if err := s.bridge.Start(s.ctx); err != nil {
			return fmt.Errorf("start bridge: %w", err)
		}
	}

	s.startListeners()

	if s.watch && s.configPath != "" {
		if err := s.startWatcher(); err != nil {
			s.logger.Warn().Err(err).Str("path", s.configPath).Msg("config watcher disabled")
		}
	}

	if s.gateway == nil {
		go s.hub.Run(s.ctx)
		s.logger.Info().Msg("gateway disabled, serving in-process hooks only")
		return nil
	}

	go func() {
		if err := s.gateway.Start(s.ctx); err != nil {
			select {
			case s.errChan <- err:
			default:
			}
		}
	}()

	timeout := time.After(readyTimeout)
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-timeout:
			return fmt.Errorf("server start timeout")
		case err := <-s.errChan:
			return fmt.Errorf("server start failed: %w", err)
		case <-ticker.C:
			if s.gateway.IsReady() {
				return nil
			}
		}
	}
}

// startListeners follows the event stream of every account with a token.
func (s *Server) startListeners() {
	if !s.cfg.Mattermost.Listen {
		return
	}
	for _, acct := range s.accounts.All() {
		client := s.pool.For(acct)
		if !client.HasDirectAPI() {
			continue
		}
		l := mattermost.NewListener(client, acct.Key, s.manager, s.commands)
		s.wg.Add(1)
		go func(key string) {
			defer s.wg.Done()
			if err := l.Run(s.ctx); err != nil && !errors.Is(err, context.Canceled) {
				s.logger.Warn().Err(err).Str("account", key).Msg("mattermost listener stopped")
			}
		}(acct.Key)
	}
}

func (s *Server) startWatcher() error {
	w, err := config.NewWatcher(s.configPath, s.applyConfig)
	if err != nil {
		return err
	}
	if err := w.Start(s.ctx); err != nil {
		_ = w.Stop()
		return err
	}
	s.watcher = w
	return nil
}

// applyConfig hands reloaded notify settings to the running bridge.
func (s *Server) applyConfig(cfg *config.Config) {
	if s.bridge == nil {
		return
	}
	s.bridge.ApplyNotify(cfg.Notify)
	s.logger.Info().
		Bool("include_results", cfg.Notify.IncludeResults).
		Int("truncate_length", cfg.Notify.TruncateLength).
		Strs("excluded_tools", cfg.Notify.ExcludedTools).
		Msg("notify settings applied")
}

// Stop shuts everything down, draining queued result posts.
func (s *Server) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	s.logger.Info().Msg("Stopping server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var errs []error
	if s.gateway != nil {
		if err := s.gateway.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if s.watcher != nil {
		if err := s.watcher.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("stop watcher: %w", err))
		}
	}
	if s.bridge != nil {
		s.bridge.Stop(ctx)
	}

	s.cancel()
	s.wg.Wait()

	if err := s.manager.Close(); err != nil {
		errs = append(errs, err)
	}

	s.logger.Info().Msg("Server stopped")
	return errors.Join(errs...)
}

// IsRunning returns whether the server is running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// StartedAt returns when Start was last called.
func (s *Server) StartedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.startedAt
}

// Addr returns the gateway address, or "" when the gateway is disabled.
func (s *Server) Addr() string {
	if s.gateway == nil {
		return ""
	}
	return s.gateway.Addr()
}

// Bridge returns the bridge, or nil when no destination is configured.
func (s *Server) Bridge() *bridge.Bridge { return s.bridge }

// Hooks returns the hook manager in-process hosts trigger events on.
func (s *Server) Hooks() *hooks.Manager { return s.manager }

// HookStats returns the hook tracing counters, or nil unless debug logging is on.
func (s *Server) HookStats() *hooksbuiltin.LoggingStats {
	if s.hookStats == nil {
		return nil
	}
	return s.hookStats.Stats()
}

// Commands returns the command registry.
func (s *Server) Commands() *commands.Registry { return s.commands }
