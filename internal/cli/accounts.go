package cli

import (
	"context"
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/loganrenz/openclaw-mattermost-toolchainposter/internal/accounts"
	"github.com/loganrenz/openclaw-mattermost-toolchainposter/internal/mattermost"
)

// NewAccountsCmd creates the accounts command.
func NewAccountsCmd() *cobra.Command {
	var check bool

	cmd := &cobra.Command{
		Use:   "accounts",
		Short: "List configured bot accounts",
		Long: `List the bot accounts tool calls can be posted from. With --check, each
account's token is verified against the server.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx := GetCLIContext(cmd)
			if err := requireContext(cliCtx); err != nil {
				return err
			}
			return runAccounts(cmd, cliCtx, check)
		},
	}

	cmd.Flags().BoolVar(&check, "check", false, "verify each token with the server")
	return cmd
}

func runAccounts(cmd *cobra.Command, cliCtx *CLIContext, check bool) error {
	cfg := cliCtx.Config
	out := cmd.OutOrStdout()

	registry, err := accounts.Build(cfg.Mattermost)
	if errors.Is(err, accounts.ErrNoCredentials) {
		if cfg.Mattermost.WebhookURL != "" {
			fmt.Fprintln(out, "No bot accounts; posting to the webhook only.")
		} else {
			fmt.Fprintln(out, "No bot accounts and no webhook configured.")
		}
		return nil
	}
	if err != nil {
		return err
	}

	pool := mattermost.NewPool(cfg.Mattermost)
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	header := "KEY\tALIAS\tSERVER"
	if check {
		header += "\tSTATUS"
	}
	fmt.Fprintln(tw, header)

	var failed int
	for _, acct := range registry.All() {
		line := fmt.Sprintf("%s\t%s\t%s", acct.Key, dash(acct.Alias), dash(acct.BaseURL))
		if check {
			status := checkAccount(cmd.Context(), pool, acct)
			if status != "ok" {
				failed++
			}
			line += "\t" + status
		}
		fmt.Fprintln(tw, line)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if failed > 0 {
		return fmt.Errorf("%d account(s) failed the check", failed)
	}
	return nil
}

func checkAccount(ctx context.Context, pool *mattermost.Pool, acct accounts.Account) string {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	id, err := pool.For(acct).BotUserID(ctx)
	if err != nil {
		return "error: " + err.Error()
	}
	if id == "" {
		return "error: empty user id"
	}
	return "ok"
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
