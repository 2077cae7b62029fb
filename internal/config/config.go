// Package config loads the bridge configuration from YAML, environment and defaults.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration.
type Config struct {
	Log        LogConfig        `mapstructure:"log" yaml:"log"`
	Gateway    GatewayConfig    `mapstructure:"gateway" yaml:"gateway"`
	Mattermost MattermostConfig `mapstructure:"mattermost" yaml:"mattermost"`
	Notify     NotifyConfig     `mapstructure:"notify" yaml:"notify"`
	Resolver   ResolverConfig   `mapstructure:"resolver" yaml:"resolver"`
	Halt       HaltConfig       `mapstructure:"halt" yaml:"halt"`
	Pending    PendingConfig    `mapstructure:"pending" yaml:"pending"`
}

// LogConfig controls the zerolog setup.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
	File   string `mapstructure:"file" yaml:"file"`
}

// GatewayConfig is the sidecar HTTP listener the host forwards lifecycle events to.
type GatewayConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Host    string `mapstructure:"host" yaml:"host"`
	Port    int    `mapstructure:"port" yaml:"port"`

	// CommandRateLimit caps /v1/commands requests per client per minute; 0 disables it.
	CommandRateLimit int `mapstructure:"command_rate_limit" yaml:"command_rate_limit"`
}

// Addr returns host:port.
func (c GatewayConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// MattermostConfig holds chat backend credentials and posting options.
// BaseURL + BotToken form the "default" account; Accounts adds named ones.
type MattermostConfig struct {
	WebhookURL  string                   `mapstructure:"webhook_url" yaml:"webhook_url"`
	BaseURL     string                   `mapstructure:"base_url" yaml:"base_url"`
	BotToken    string                   `mapstructure:"bot_token" yaml:"bot_token"`
	ChannelID   string                   `mapstructure:"channel_id" yaml:"channel_id"`
	DisplayName string                   `mapstructure:"display_name" yaml:"display_name"`
	IconURL     string                   `mapstructure:"icon_url" yaml:"icon_url"`
	Accounts    map[string]AccountConfig `mapstructure:"accounts" yaml:"accounts,omitempty"`
	Listen      bool                     `mapstructure:"listen" yaml:"listen"`
	Timeout     time.Duration            `mapstructure:"timeout" yaml:"timeout"`
	RateLimit   RateLimitConfig          `mapstructure:"rate_limit" yaml:"rate_limit"`
}

// AccountConfig is one named bot credential set. Name is an optional alias
// the account can also be resolved by.
type AccountConfig struct {
	BotToken string `mapstructure:"bot_token" yaml:"bot_token"`
	BaseURL  string `mapstructure:"base_url" yaml:"base_url,omitempty"`
	Name     string `mapstructure:"name" yaml:"name,omitempty"`
}

// RateLimitConfig bounds outbound posts per account.
type RateLimitConfig struct {
	RequestsPerSecond float64 `mapstructure:"requests_per_second" yaml:"requests_per_second"`
	Burst             int     `mapstructure:"burst" yaml:"burst"`
}

// NotifyConfig controls what gets posted. These are the only settings the
// config watcher applies to a running bridge.
type NotifyConfig struct {
	IncludeResults     bool     `mapstructure:"include_results" yaml:"include_results"`
	TruncateLength     int      `mapstructure:"truncate_length" yaml:"truncate_length"`
	ExcludedTools      []string `mapstructure:"excluded_tools" yaml:"excluded_tools"`
	PostToConversation bool     `mapstructure:"post_to_conversation" yaml:"post_to_conversation"`
	QueueSize          int      `mapstructure:"queue_size" yaml:"queue_size"`
	Workers            int      `mapstructure:"workers" yaml:"workers"`
}

// ResolverConfig tunes sender resolution.
type ResolverConfig struct {
	FallbackWindow   time.Duration `mapstructure:"fallback_window" yaml:"fallback_window"`
	ExclusionMarkers []string      `mapstructure:"exclusion_markers" yaml:"exclusion_markers"`
	DefaultAgent     string        `mapstructure:"default_agent" yaml:"default_agent"`
}

// HaltConfig enables the halt/unhalt commands.
type HaltConfig struct {
	Enabled       bool   `mapstructure:"enabled" yaml:"enabled"`
	HaltCommand   string `mapstructure:"halt_command" yaml:"halt_command"`
	ResumeCommand string `mapstructure:"resume_command" yaml:"resume_command"`
}

// PendingConfig controls pruning of pending tool-call records.
type PendingConfig struct {
	TTL           time.Duration `mapstructure:"ttl" yaml:"ttl"`
	PruneSchedule string        `mapstructure:"prune_schedule" yaml:"prune_schedule"`
}

// HasCredentials reports whether any posting destination is configured.
func (c *MattermostConfig) HasCredentials() bool {
	if c.WebhookURL != "" || c.BotToken != "" {
		return true
	}
	for _, acct := range c.Accounts {
		if acct.BotToken != "" {
			return true
		}
	}
	return false
}

// AccountKeys returns the named account keys in sorted order.
func (c *MattermostConfig) AccountKeys() []string {
	keys := make([]string, 0, len(c.Accounts))
	for k := range c.Accounts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Validate checks values the bridge cannot run with.
func (c *Config) Validate() error {
	var errs []error

	for name, raw := range map[string]string{
		"mattermost.webhook_url": c.Mattermost.WebhookURL,
		"mattermost.base_url":    c.Mattermost.BaseURL,
	} {
		if raw == "" {
			continue
		}
		if err := validateURL(raw); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	for _, key := range c.Mattermost.AccountKeys() {
		acct := c.Mattermost.Accounts[key]
		if acct.BotToken == "" {
			errs = append(errs, fmt.Errorf("mattermost.accounts.%s: bot_token is required", key))
		}
		if acct.BaseURL == "" && c.Mattermost.BaseURL == "" {
			errs = append(errs, fmt.Errorf("mattermost.accounts.%s: base_url is required when mattermost.base_url is unset", key))
		}
		if acct.BaseURL != "" {
			if err := validateURL(acct.BaseURL); err != nil {
				errs = append(errs, fmt.Errorf("mattermost.accounts.%s.base_url: %w", key, err))
			}
		}
	}
	if c.Mattermost.BotToken != "" && c.Mattermost.BaseURL == "" {
		errs = append(errs, errors.New("mattermost.bot_token is set but mattermost.base_url is empty"))
	}
	if c.Notify.TruncateLength <= 0 {
		errs = append(errs, fmt.Errorf("notify.truncate_length must be positive, got %d", c.Notify.TruncateLength))
	}
	if c.Resolver.FallbackWindow <= 0 {
		errs = append(errs, fmt.Errorf("resolver.fallback_window must be positive, got %s", c.Resolver.FallbackWindow))
	}
	if c.Halt.Enabled {
		h, r := normalizeCommand(c.Halt.HaltCommand), normalizeCommand(c.Halt.ResumeCommand)
		if h == "" || r == "" {
			errs = append(errs, errors.New("halt.halt_command and halt.resume_command are required when halt is enabled"))
		} else if h == r {
			errs = append(errs, fmt.Errorf("halt.halt_command and halt.resume_command must differ, both are %q", h))
		}
	}
	if c.Gateway.Enabled && (c.Gateway.Port <= 0 || c.Gateway.Port > 65535) {
		errs = append(errs, fmt.Errorf("gateway.port out of range: %d", c.Gateway.Port))
	}
	if c.Gateway.CommandRateLimit < 0 {
		errs = append(errs, fmt.Errorf("gateway.command_rate_limit must not be negative"))
	}

	return errors.Join(errs...)
}

func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("missing host")
	}
	return nil
}

func normalizeCommand(name string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(name), "/"))
}

var (
	globalConfig *Config
	configPath   string
	mu           sync.RWMutex
)

// newViper builds a viper instance with defaults and env bindings applied.
// Precedence: ENV > config file > defaults.
func newViper() *viper.Viper {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Unprefixed variables used by existing deployments.
	_ = v.BindEnv("mattermost.base_url", EnvPrefix+"_MATTERMOST_BASE_URL", "MATTERMOST_URL")
	_ = v.BindEnv("mattermost.bot_token", EnvPrefix+"_MATTERMOST_BOT_TOKEN", "MATTERMOST_BOT_TOKEN")
	_ = v.BindEnv("mattermost.webhook_url", EnvPrefix+"_MATTERMOST_WEBHOOK_URL", "MATTERMOST_WEBHOOK_URL")

	return v
}

// Load reads the configuration at path (missing files are tolerated) and
// makes it the current configuration.
func Load(path string) (*Config, error) {
	mu.Lock()
	defer mu.Unlock()

	v := newViper()

	if path != "" {
		expandedPath, err := ExpandPath(path)
		if err != nil {
			return nil, err
		}
		configPath = expandedPath

		v.SetConfigFile(expandedPath)
		if err := v.ReadInConfig(); err != nil {
			var pathErr *os.PathError
			if !errors.As(err, &pathErr) && !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config %s: %w", expandedPath, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	globalConfig = &cfg
	return &cfg, nil
}

// GetConfig returns the most recently loaded configuration.
func GetConfig() *Config {
	mu.RLock()
	defer mu.RUnlock()
	return globalConfig
}

// Path returns the path the current configuration was loaded from.
func Path() string {
	mu.RLock()
	defer mu.RUnlock()
	return configPath
}

// SaveTo writes cfg to path as YAML. The file may hold bot tokens, so it is 0600.
func SaveTo(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0600)
}

// Redacted returns a copy of cfg with tokens masked, for display.
func (c *Config) Redacted() *Config {
	out := *c
	out.Mattermost.BotToken = mask(c.Mattermost.BotToken)
	out.Mattermost.WebhookURL = mask(c.Mattermost.WebhookURL)
	if len(c.Mattermost.Accounts) > 0 {
		out.Mattermost.Accounts = make(map[string]AccountConfig, len(c.Mattermost.Accounts))
		for k, a := range c.Mattermost.Accounts {
			a.BotToken = mask(a.BotToken)
			out.Mattermost.Accounts[k] = a
		}
	}
	return &out
}

func mask(secret string) string {
	if secret == "" {
		return ""
	}
	if len(secret) <= 8 {
		return "****"
	}
	return secret[:4] + "****"
}

// Reset clears the loaded configuration (used by tests).
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	globalConfig = nil
	configPath = ""
}
