package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"runtime"
	"time"

	"github.com/spf13/cobra"

	"github.com/loganrenz/openclaw-mattermost-toolchainposter/internal/accounts"
	"github.com/loganrenz/openclaw-mattermost-toolchainposter/internal/config"
	"github.com/loganrenz/openclaw-mattermost-toolchainposter/internal/mattermost"
)

// NewDoctorCmd creates the doctor command.
func NewDoctorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Diagnose the setup",
		Long: `Run diagnostic checks on your installation.

This command checks:
- Configuration validity
- Posting destinations (webhook, bot accounts)
- Bot token validity against the Mattermost server
- Whether the gateway is running`,
		RunE: runDoctor,
	}

	return cmd
}

const (
	statusOK      = "ok"
	statusWarning = "warning"
	statusError   = "error"
)

type checkResult struct {
	name    string
	status  string
	message string
}

func runDoctor(cmd *cobra.Command, args []string) error {
	cliCtx := GetCLIContext(cmd)
	if err := requireContext(cliCtx); err != nil {
		return err
	}
	cfg := cliCtx.Config
	out := cmd.OutOrStdout()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	results := []checkResult{
		checkSystemInfo(),
		checkConfig(cliCtx.ConfigPath, cfg),
		checkDestinations(cfg),
	}
	results = append(results, checkAccounts(ctx, cfg)...)
	results = append(results, checkGateway(ctx, cfg.Gateway))

	fmt.Fprintln(out, "toolchainposter doctor")
	fmt.Fprintln(out)

	hasErrors, hasWarnings := false, false
	for _, r := range results {
		icon := "✓"
		switch r.status {
		case statusWarning:
			icon = "!"
			hasWarnings = true
		case statusError:
			icon = "✗"
			hasErrors = true
		}
		fmt.Fprintf(out, "%s %s: %s\n", icon, r.name, r.message)
	}

	fmt.Fprintln(out)
	switch {
	case hasErrors:
		return errors.New("some checks failed")
	case hasWarnings:
		fmt.Fprintln(out, "Some warnings detected. The bridge should work but may miss posts.")
	default:
		fmt.Fprintln(out, "All checks passed.")
	}
	return nil
}

func checkSystemInfo() checkResult {
	return checkResult{
		name:    "System",
		status:  statusOK,
		message: fmt.Sprintf("%s, Go %s on %s/%s", Version, runtime.Version(), runtime.GOOS, runtime.GOARCH),
	}
}

func checkConfig(path string, cfg *config.Config) checkResult {
	if err := cfg.Validate(); err != nil {
		return checkResult{name: "Config", status: statusError, message: err.Error()}
	}
	return checkResult{name: "Config", status: statusOK, message: path}
}

func checkDestinations(cfg *config.Config) checkResult {
	mm := cfg.Mattermost
	switch {
	case !mm.HasCredentials():
		return checkResult{
			name:    "Destinations",
			status:  statusError,
			message: "no webhook_url or bot_token configured",
		}
	case mm.WebhookURL == "" && mm.ChannelID == "":
		return checkResult{
			name:    "Destinations",
			status:  statusWarning,
			message: "no shared channel: posts for unresolved senders are dropped",
		}
	default:
		return checkResult{name: "Destinations", status: statusOK, message: "shared channel configured"}
	}
}

func checkAccounts(ctx context.Context, cfg *config.Config) []checkResult {
	registry, err := accounts.Build(cfg.Mattermost)
	if errors.Is(err, accounts.ErrNoCredentials) {
		return []checkResult{{name: "Accounts", status: statusWarning, message: "none; direct messages disabled"}}
	}
	if err != nil {
		return []checkResult{{name: "Accounts", status: statusError, message: err.Error()}}
	}

	pool := mattermost.NewPool(cfg.Mattermost)
	var results []checkResult
	for _, acct := range registry.All() {
		name := "Account " + acct.Key
		if status := checkAccount(ctx, pool, acct); status != statusOK {
			results = append(results, checkResult{name: name, status: statusError, message: status})
			continue
		}
		results = append(results, checkResult{name: name, status: statusOK, message: "token accepted by " + acct.BaseURL})
	}
	return results
}

func checkGateway(ctx context.Context, gw config.GatewayConfig) checkResult {
	if !gw.Enabled {
		return checkResult{name: "Gateway", status: statusOK, message: "disabled"}
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	url := fmt.Sprintf("http://%s/health", gw.Addr())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return checkResult{name: "Gateway", status: statusError, message: err.Error()}
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return checkResult{
			name:    "Gateway",
			status:  statusWarning,
			message: fmt.Sprintf("not running on %s. Start with: toolchainposter serve", gw.Addr()),
		}
	}
	defer resp.Body.Close()

	var health struct {
		Status  string `json:"status"`
		Version string `json:"version"`
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode != http.StatusOK || json.Unmarshal(body, &health) != nil {
		return checkResult{name: "Gateway", status: statusWarning, message: fmt.Sprintf("unexpected response from %s (HTTP %d)", url, resp.StatusCode)}
	}

	status := statusOK
	if health.Status != "ok" {
		status = statusWarning
	}
	return checkResult{
		name:    "Gateway",
		status:  status,
		message: fmt.Sprintf("running on %s (%s, %s)", gw.Addr(), health.Status, health.Version),
	}
}
