// Package builtin provides hook handlers that ship with the bridge itself.
package builtin

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/loganrenz/openclaw-mattermost-toolchainposter/internal/hooks"
	"github.com/loganrenz/openclaw-mattermost-toolchainposter/pkg/logger"
)

// LoggingHook traces every hook event at a fixed level.
type LoggingHook struct {
	logger zerolog.Logger
	level  zerolog.Level
	stats  *LoggingStats
}

// LoggingConfig configures the logging hook.
type LoggingConfig struct {
	// Level is the log level to use (default: debug)
	Level zerolog.Level
	// Logger is an optional custom logger (default: the "hooks" component logger)
	Logger *zerolog.Logger
}

// NewLoggingHook creates a new logging hook with the given configuration.
func NewLoggingHook(cfg LoggingConfig) *LoggingHook {
	l := logger.Component("hooks")
	if cfg.Logger != nil {
		l = *cfg.Logger
	}
	return &LoggingHook{
		logger: l,
		level:  cfg.Level,
		stats:  NewLoggingStats(),
	}
}

// Stats returns the counters collected so far.
func (h *LoggingHook) Stats() *LoggingStats {
	return h.stats
}

// Handler returns a hook handler that logs events.
func (h *LoggingHook) Handler(id string) *hooks.Handler {
	return &hooks.Handler{
		ID:          id,
		Priority:    100,
		Source:      "_builtin",
		Description: "Logs hook events",
		Enabled:     true,
		Handler:     h.handle,
	}
}

func (h *LoggingHook) handle(_ context.Context, hookCtx *hooks.Context) (*hooks.Result, error) {
	h.stats.record(hookCtx.Type, hookCtx.Timestamp)

	event := h.logger.WithLevel(h.level).
		Str("hook_type", string(hookCtx.Type)).
		Time("timestamp", hookCtx.Timestamp)

	if s := hookCtx.Session; s != nil {
		event = event.
			Str("session_key", s.Key).
			Str("account_id", s.AccountID)
	}

	switch hookCtx.Type {
	case hooks.HookMessageReceived:
		if m := hookCtx.Message; m != nil {
			event = event.
				Str("sender_id", m.SenderID()).
				Int("content_length", len(m.Content))
		}

	case hooks.HookBeforeToolCall, hooks.HookAfterToolCall:
		if tc := hookCtx.ToolCall; tc != nil {
			event = event.
				Str("tool_id", tc.ID).
				Str("tool_name", tc.ToolName).
				Int("param_count", len(tc.Params))
			if hookCtx.Type == hooks.HookAfterToolCall {
				event = event.
					Dur("duration", tc.Duration).
					Bool("has_error", tc.Error != "")
			}
		}

	case hooks.HookToolResultPersist:
		if r := hookCtx.ToolResult; r != nil {
			event = event.
				Str("tool_name", r.ToolName).
				Str("status", r.Status).
				Int64("duration_ms", r.DurationMs).
				Bool("is_error", r.IsError)
		}

	case hooks.HookGatewayStart:
		event = event.Str("event", "startup")

	case hooks.HookGatewayStop:
		event = event.Str("event", "shutdown")
	}

	event.Msg("hook triggered")

	return hooks.ContinueResult(), nil
}

// RegisterLoggingHooks registers the logging hook for all hook types and
// returns it so callers can read its stats.
func RegisterLoggingHooks(manager *hooks.Manager, cfg LoggingConfig) (*LoggingHook, error) {
	hook := NewLoggingHook(cfg)

	for _, hookType := range hooks.AllHookTypes() {
		id := fmt.Sprintf("builtin:logging:%s", hookType)
		if err := manager.Register(hookType, hook.Handler(id)); err != nil {
			return nil, fmt.Errorf("failed to register logging hook for %s: %w", hookType, err)
		}
	}

	return hook, nil
}

// LoggingStats tracks logging statistics.
type LoggingStats struct {
	mu           sync.Mutex
	eventCount   int64
	lastEventAt  time.Time
	eventsByType map[hooks.HookType]int64
}

// NewLoggingStats creates a new stats tracker.
func NewLoggingStats() *LoggingStats {
	return &LoggingStats{
		eventsByType: make(map[hooks.HookType]int64),
	}
}

func (s *LoggingStats) record(t hooks.HookType, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.eventCount++
	s.lastEventAt = at
	s.eventsByType[t]++
}

// EventCount returns the total number of events seen.
func (s *LoggingStats) EventCount() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.eventCount
}

// LastEventAt returns when the most recent event fired.
func (s *LoggingStats) LastEventAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastEventAt
}

// ByType returns a snapshot of per-type counts.
func (s *LoggingStats) ByType() map[hooks.HookType]int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[hooks.HookType]int64, len(s.eventsByType))
	for k, v := range s.eventsByType {
		out[k] = v
	}
	return out
}
