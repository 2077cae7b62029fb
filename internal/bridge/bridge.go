// Package bridge routes agent lifecycle events to Mattermost. It records who
// talks to the agent, resolves who should hear about each tool call, gates
// tool execution on the halt state and posts summaries.
package bridge

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/loganrenz/openclaw-mattermost-toolchainposter/internal/accounts"
	"github.com/loganrenz/openclaw-mattermost-toolchainposter/internal/config"
	"github.com/loganrenz/openclaw-mattermost-toolchainposter/internal/halt"
	"github.com/loganrenz/openclaw-mattermost-toolchainposter/internal/sender"
	"github.com/loganrenz/openclaw-mattermost-toolchainposter/pkg/logger"
)

// Poster is the chat backend the bridge posts through.
type Poster interface {
	PostDirectMessage(ctx context.Context, recipientID, text string) (string, error)
	PostToChannel(ctx context.Context, text, channelOverride string) (string, error)
	HasDirectAPI() bool
}

// PosterFunc returns the poster for an account. ok is false when no account
// could be resolved, in which case only the shared channel is usable.
type PosterFunc func(acct accounts.Account, ok bool) Poster

// Option configures a Bridge.
type Option func(*Bridge)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(b *Bridge) { b.now = now }
}

// WithObserver reports bridge activity to o.
func WithObserver(o Observer) Option {
	return func(b *Bridge) { b.observer = o }
}

// WithLogger replaces the component logger.
func WithLogger(l zerolog.Logger) Option {
	return func(b *Bridge) { b.log = l }
}

// lastSeen is the session context of the most recent before_tool_call.
// tool_result_persist carries no session of its own.
type lastSeen struct {
	SessionKey string
	AgentID    string
}

// Bridge owns all routing state for one activation.
type Bridge struct {
	accounts   *accounts.Registry
	resolver   *sender.Resolver
	gate       *halt.Gate
	haltOn     bool
	posters    PosterFunc
	pending    *PendingTable
	pendingTTL time.Duration
	schedule   string
	dispatcher *Dispatcher
	janitor    *cron.Cron
	observer   Observer
	now        func() time.Time
	log        zerolog.Logger

	mu       sync.RWMutex
	notify   config.NotifyConfig
	excluded map[string]struct{}
	last     lastSeen
}

// New builds a bridge. It returns ErrConfigurationMissing when the registry
// is empty and no webhook is configured.
func New(cfg *config.Config, registry *accounts.Registry, posters PosterFunc, opts ...Option) (*Bridge, error) {
	if registry == nil {
		registry = accounts.NewRegistry()
	}
	if registry.Count() == 0 && cfg.Mattermost.WebhookURL == "" {
		return nil, ErrConfigurationMissing
	}
	if posters == nil {
		return nil, fmt.Errorf("bridge: poster factory is required")
	}

	b := &Bridge{
		accounts: registry,
		resolver: sender.NewResolver(sender.Options{
			FallbackWindow:   cfg.Resolver.FallbackWindow,
			ExclusionMarkers: cfg.Resolver.ExclusionMarkers,
			DefaultAgent:     cfg.Resolver.DefaultAgent,
		}),
		gate:       halt.NewGate(cfg.Halt.HaltCommand, cfg.Halt.ResumeCommand),
		haltOn:     cfg.Halt.Enabled,
		posters:    posters,
		pending:    NewPendingTable(),
		pendingTTL: cfg.Pending.TTL,
		schedule:   cfg.Pending.PruneSchedule,
		now:        time.Now,
		log:        logger.Component("bridge"),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.ApplyNotify(cfg.Notify)
	b.dispatcher = NewDispatcher(cfg.Notify.QueueSize, cfg.Notify.Workers, b.log)
	return b, nil
}

// Start launches the result workers and the pending-call janitor.
func (b *Bridge) Start(ctx context.Context) error {
	b.dispatcher.Start(ctx)

	if b.pendingTTL > 0 && b.schedule != "" {
		c := cron.New()
		if _, err := c.AddFunc(b.schedule, b.prunePending); err != nil {
			return fmt.Errorf("schedule pending janitor %q: %w", b.schedule, err)
		}
		c.Start()
		b.mu.Lock()
		b.janitor = c
		b.mu.Unlock()
	}

	b.log.Info().
		Int("accounts", b.accounts.Count()).
		Bool("halt_enabled", b.haltOn).
		Msg("bridge started")
	return nil
}

// Stop stops the janitor and drains queued posts until ctx is done.
func (b *Bridge) Stop(ctx context.Context) {
	b.mu.Lock()
	janitor := b.janitor
	b.janitor = nil
	b.mu.Unlock()

	if janitor != nil {
		<-janitor.Stop().Done()
	}
	b.dispatcher.Stop(ctx)
	b.log.Info().Msg("bridge stopped")
}

func (b *Bridge) prunePending() {
	if n := b.pending.Prune(b.now().Add(-b.pendingTTL)); n > 0 {
		b.log.Debug().Int("pruned", n).Msg("pruned stale pending tool calls")
	}
}

// ApplyNotify swaps the posting settings of a running bridge.
func (b *Bridge) ApplyNotify(n config.NotifyConfig) {
	excluded := make(map[string]struct{}, len(n.ExcludedTools))
	for _, tool := range n.ExcludedTools {
		if tool = strings.ToLower(strings.TrimSpace(tool)); tool != "" {
			excluded[tool] = struct{}{}
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.notify = n
	b.excluded = excluded
}

func (b *Bridge) settings() config.NotifyConfig {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.notify
}

// IsExcluded reports whether posts for toolName are suppressed.
func (b *Bridge) IsExcluded(toolName string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.excluded[strings.ToLower(strings.TrimSpace(toolName))]
	return ok
}

func (b *Bridge) setLastSeen(sessionKey, agentID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.last = lastSeen{SessionKey: sessionKey, AgentID: agentID}
}

func (b *Bridge) lastSeen() lastSeen {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.last
}

// Resolver exposes the sender resolver.
func (b *Bridge) Resolver() *sender.Resolver { return b.resolver }

// Gate exposes the halt gate.
func (b *Bridge) Gate() *halt.Gate { return b.gate }

// Pending exposes the pending tool-call table.
func (b *Bridge) Pending() *PendingTable { return b.pending }

// Stats is a snapshot of bridge state for health reporting.
type Stats struct {
	Accounts    int      `json:"accounts"`
	Links       int      `json:"links"`
	Halted      []string `json:"halted"`
	Pending     int      `json:"pending"`
	Queued      int      `json:"queued"`
	HaltEnabled bool     `json:"halt_enabled"`
}

// Stats returns a snapshot of bridge state.
func (b *Bridge) Stats() Stats {
	return Stats{
		Accounts:    b.accounts.Count(),
		Links:       b.resolver.Len(),
		Halted:      b.gate.Halted(),
		Pending:     b.pending.Len(),
		Queued:      b.dispatcher.Pending(),
		HaltEnabled: b.haltOn,
	}
}

func (b *Bridge) observe(a Activity) {
	if b.observer == nil {
		return
	}
	if a.At.IsZero() {
		a.At = b.now()
	}
	b.observer.Observe(a)
}
