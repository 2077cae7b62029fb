package cli

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/loganrenz/openclaw-mattermost-toolchainposter/internal/config"
	"github.com/loganrenz/openclaw-mattermost-toolchainposter/pkg/logger"
)

// CLIContext carries loaded configuration to subcommands.
type CLIContext struct {
	Config     *config.Config
	ConfigPath string
	Logger     *zerolog.Logger
	Verbose    bool
	Quiet      bool
}

// NewCLIContext creates a CLI context.
func NewCLIContext(cfg *config.Config, configPath string, log *zerolog.Logger, verbose, quiet bool) *CLIContext {
	return &CLIContext{
		Config:     cfg,
		ConfigPath: configPath,
		Logger:     log,
		Verbose:    verbose,
		Quiet:      quiet,
	}
}

// Close flushes the log file, if any.
func (c *CLIContext) Close() error {
	return logger.Close()
}

// Log returns the logger.
func (c *CLIContext) Log() *zerolog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return logger.Get()
}

func requireContext(c *CLIContext) error {
	if c == nil {
		return fmt.Errorf("CLI context not initialized")
	}
	return nil
}
