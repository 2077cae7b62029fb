package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/spf13/cobra"

	"github.com/loganrenz/openclaw-mattermost-toolchainposter/internal/server"
)

// NewServeCmd creates the serve command.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the bridge",
		Long: `Run the bridge.

This command starts:
- the sidecar gateway the agent host forwards hook events and commands to
- the Mattermost listeners (when mattermost.listen is set)
- the config watcher for live notify settings

The gateway listens on the configured host and port (default: 127.0.0.1:18790).`,
		Example: `  # Start with the default configuration
  toolchainposter serve

  # Start on another port with debug logging
  toolchainposter serve --port 9000 --verbose`,
		RunE: runServe,
	}

	cmd.Flags().IntP("port", "p", 0, "port to listen on (overrides config)")
	cmd.Flags().String("host", "", "host to bind to (overrides config)")
	cmd.Flags().Bool("no-watch", false, "do not reload notify settings when the config file changes")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	cliCtx := GetCLIContext(cmd)
	if err := requireContext(cliCtx); err != nil {
		return err
	}

	cfg := cliCtx.Config
	log := cliCtx.Log()

	if port, _ := cmd.Flags().GetInt("port"); port > 0 {
		cfg.Gateway.Port = port
	}
	if host, _ := cmd.Flags().GetString("host"); host != "" {
		cfg.Gateway.Host = host
	}
	noWatch, _ := cmd.Flags().GetBool("no-watch")

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	log.Info().Str("version", Version).Msg("Starting toolchainposter...")

	srv, err := server.NewServer(server.ServerConfig{
		Config:     cfg,
		ConfigPath: cliCtx.ConfigPath,
		Logger:     log,
		Version:    Version,
		Watch:      !noWatch,
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	if err := srv.Start(); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}

	if addr := srv.Addr(); addr != "" {
		log.Info().Str("address", "http://"+addr).Msg("Gateway listening")
	}
	notifySystemd(cliCtx, daemon.SdNotifyReady)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	var runErr error
	select {
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("Shutting down...")
	case runErr = <-srv.ErrorChan():
		log.Error().Err(runErr).Msg("Server error")
	}

	notifySystemd(cliCtx, daemon.SdNotifyStopping)
	if err := srv.Stop(); err != nil {
		log.Error().Err(err).Msg("Error during shutdown")
		if runErr == nil {
			runErr = err
		}
	}
	return runErr
}

// notifySystemd reports state to systemd when running under a Type=notify unit.
func notifySystemd(cliCtx *CLIContext, state string) {
	sent, err := daemon.SdNotify(false, state)
	if err != nil {
		cliCtx.Log().Debug().Err(err).Str("state", state).Msg("sd_notify failed")
		return
	}
	if sent {
		cliCtx.Log().Debug().Str("state", state).Msg("sd_notify sent")
	}
}
