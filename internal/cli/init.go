package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/loganrenz/openclaw-mattermost-toolchainposter/internal/config"
)

// InitOptions are the init command's flags.
type InitOptions struct {
	Force      bool
	WebhookURL string
	BaseURL    string
	BotToken   string
	ChannelID  string
	EnableHalt bool
}

// NewInitCmd creates the init command.
func NewInitCmd() *cobra.Command {
	opts := &InitOptions{}

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a starter configuration file",
		Long: `Write a configuration file with default settings.

Pass a webhook URL, or a server URL and bot token, to have a working setup
right away; everything else can be edited in the file later.`,
		Example: `  toolchainposter init --webhook-url https://chat.example.com/hooks/xyz
  toolchainposter init --base-url https://chat.example.com --bot-token $TOKEN --halt`,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := RunInit(globalFlags.ConfigPath, opts)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Configuration written to %s\n", path)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&opts.Force, "force", "f", false, "overwrite existing configuration")
	cmd.Flags().StringVar(&opts.WebhookURL, "webhook-url", "", "Mattermost incoming webhook URL")
	cmd.Flags().StringVar(&opts.BaseURL, "base-url", "", "Mattermost server URL")
	cmd.Flags().StringVar(&opts.BotToken, "bot-token", "", "bot access token for direct messages")
	cmd.Flags().StringVar(&opts.ChannelID, "channel-id", "", "shared channel id for REST posting")
	cmd.Flags().BoolVar(&opts.EnableHalt, "halt", false, "enable the halt and unhalt commands")

	return cmd
}

// RunInit writes the starter configuration to path (the default path when
// empty) and returns where it was written.
func RunInit(path string, opts *InitOptions) (string, error) {
	if path == "" {
		var err error
		path, err = config.DefaultConfigPath()
		if err != nil {
			return "", fmt.Errorf("get config path: %w", err)
		}
	}
	expanded, err := config.ExpandPath(path)
	if err != nil {
		return "", err
	}

	if _, err := os.Stat(expanded); err == nil && !opts.Force {
		return "", fmt.Errorf("configuration already exists at %s (use --force to overwrite)", expanded)
	}

	cfg := config.Default()
	cfg.Mattermost.WebhookURL = opts.WebhookURL
	cfg.Mattermost.BaseURL = opts.BaseURL
	cfg.Mattermost.BotToken = opts.BotToken
	cfg.Mattermost.ChannelID = opts.ChannelID
	cfg.Halt.Enabled = opts.EnableHalt

	if err := cfg.Validate(); err != nil {
		return "", fmt.Errorf("invalid settings: %w", err)
	}
	if err := config.SaveTo(cfg, expanded); err != nil {
		return "", err
	}
	return expanded, nil
}
