package cli

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loganrenz/openclaw-mattermost-toolchainposter/internal/config"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	config.Reset()
	t.Cleanup(config.Reset)

	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestVersionJSON(t *testing.T) {
	out, err := execute(t, "version", "--json")
	require.NoError(t, err)

	var info BuildInfo
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Equal(t, Version, info.Version)
	assert.NotEmpty(t, info.GoVersion)
}

func TestInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.yaml")

	out, err := execute(t, "init", "--config", path, "--webhook-url", "https://chat.example.com/hooks/abc", "--halt")
	require.NoError(t, err)
	assert.Contains(t, out, path)

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://chat.example.com/hooks/abc", cfg.Mattermost.WebhookURL)
	assert.True(t, cfg.Halt.Enabled)

	_, err = execute(t, "init", "--config", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	_, err = execute(t, "init", "--config", path, "--force")
	assert.NoError(t, err)
}

func TestInit_RejectsInvalidSettings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	_, err := execute(t, "init", "--config", path, "--bot-token", "tok")
	require.Error(t, err)
	assert.NoFileExists(t, path)
}

func TestConfigShowMasksTokens(t *testing.T) {
	path := writeConfig(t, `
mattermost:
  base_url: https://chat.example.com
  bot_token: abcdefghijklmnop
`)

	out, err := execute(t, "config", "show", "--config", path, "-q")
	require.NoError(t, err)
	assert.Contains(t, out, "abcd****")
	assert.NotContains(t, out, "abcdefghijklmnop")

	out, err = execute(t, "config", "show", "--reveal", "--config", path, "-q")
	require.NoError(t, err)
	assert.Contains(t, out, "abcdefghijklmnop")
}

func TestConfigValidate(t *testing.T) {
	good := writeConfig(t, "mattermost:\n  webhook_url: https://chat.example.com/hooks/abc\n")
	out, err := execute(t, "config", "validate", "--config", good, "-q")
	require.NoError(t, err)
	assert.Contains(t, out, "OK")
	assert.NotContains(t, out, "warning")

	empty := writeConfig(t, "log:\n  level: info\n")
	out, err = execute(t, "config", "validate", "--config", empty, "-q")
	require.NoError(t, err)
	assert.Contains(t, out, "warning")

	bad := writeConfig(t, "notify:\n  truncate_length: 0\n")
	_, err = execute(t, "config", "validate", "--config", bad, "-q")
	assert.Error(t, err)
}

func fakeMattermost(t *testing.T, goodToken string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v4/users/me" {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("Authorization") != "Bearer "+goodToken {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"message":"invalid token"}`))
			return
		}
		_, _ = w.Write([]byte(`{"id":"bot-1","username":"toolbot"}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestAccounts(t *testing.T) {
	mm := fakeMattermost(t, "good")
	path := writeConfig(t, `
mattermost:
  base_url: `+mm.URL+`
  bot_token: good
  accounts:
    ops:
      bot_token: bad
      name: Operations
`)

	out, err := execute(t, "accounts", "--config", path, "-q")
	require.NoError(t, err)
	assert.Contains(t, out, "default")
	assert.Contains(t, out, "Operations")

	out, err = execute(t, "accounts", "--check", "--config", path, "-q")
	require.Error(t, err)
	lines := strings.Split(out, "\n")
	var defaultLine, opsLine string
	for _, l := range lines {
		switch {
		case strings.HasPrefix(l, "default"):
			defaultLine = l
		case strings.HasPrefix(l, "ops"):
			opsLine = l
		}
	}
	assert.Contains(t, defaultLine, "ok")
	assert.Contains(t, opsLine, "error")
}

func TestAccounts_WebhookOnly(t *testing.T) {
	path := writeConfig(t, "mattermost:\n  webhook_url: https://chat.example.com/hooks/abc\n")

	out, err := execute(t, "accounts", "--config", path, "-q")
	require.NoError(t, err)
	assert.Contains(t, out, "webhook only")
}
