package config

import (
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for environment overrides, e.g. TOOLCHAINPOSTER_LOG_LEVEL.
const EnvPrefix = "TOOLCHAINPOSTER"

// Resolver defaults. The window and markers are heuristics kept configurable.
const (
	DefaultFallbackWindow = 30 * time.Minute
	DefaultAgent          = "main"
)

// DefaultExclusionMarkers identify background sessions (sub-agents, scheduled jobs).
var DefaultExclusionMarkers = []string{"subagent", "cron"}

// DefaultExcludedTools skips the agent's own chat-send tool so posts don't echo.
var DefaultExcludedTools = []string{"message"}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.file", "")

	v.SetDefault("gateway.enabled", true)
	v.SetDefault("gateway.host", "127.0.0.1")
	v.SetDefault("gateway.port", 18790)
	v.SetDefault("gateway.command_rate_limit", 30)

	v.SetDefault("mattermost.display_name", "Toolchain")
	v.SetDefault("mattermost.listen", false)
	v.SetDefault("mattermost.timeout", 15*time.Second)
	v.SetDefault("mattermost.rate_limit.requests_per_second", 5.0)
	v.SetDefault("mattermost.rate_limit.burst", 10)

	v.SetDefault("notify.include_results", true)
	v.SetDefault("notify.truncate_length", 1800)
	v.SetDefault("notify.excluded_tools", DefaultExcludedTools)
	v.SetDefault("notify.post_to_conversation", false)
	v.SetDefault("notify.queue_size", 256)
	v.SetDefault("notify.workers", 2)

	v.SetDefault("resolver.fallback_window", DefaultFallbackWindow)
	v.SetDefault("resolver.exclusion_markers", DefaultExclusionMarkers)
	v.SetDefault("resolver.default_agent", DefaultAgent)

	v.SetDefault("halt.enabled", false)
	v.SetDefault("halt.halt_command", "halt")
	v.SetDefault("halt.resume_command", "unhalt")

	v.SetDefault("pending.ttl", time.Hour)
	v.SetDefault("pending.prune_schedule", "@every 10m")
}

// Default returns the configuration produced by defaults alone.
func Default() *Config {
	v := viper.New()
	SetDefaults(v)
	var cfg Config
	_ = v.Unmarshal(&cfg)
	return &cfg
}
