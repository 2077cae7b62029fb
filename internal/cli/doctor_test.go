package cli

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loganrenz/openclaw-mattermost-toolchainposter/internal/config"
)

func TestCheckDestinations(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.MattermostConfig)
		want   string
	}{
		{"nothing", func(*config.MattermostConfig) {}, statusError},
		{"token only", func(m *config.MattermostConfig) { m.BotToken = "t" }, statusWarning},
		{"token and channel", func(m *config.MattermostConfig) {
			m.BotToken = "t"
			m.ChannelID = "c"
		}, statusOK},
		{"webhook", func(m *config.MattermostConfig) { m.WebhookURL = "https://x/hooks/y" }, statusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(&cfg.Mattermost)
			assert.Equal(t, tt.want, checkDestinations(cfg).status)
		})
	}
}

func gatewayConfigFor(t *testing.T, rawURL string) config.GatewayConfig {
	t.Helper()
	host, portStr, err := net.SplitHostPort(rawURL[len("http://"):])
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)
	return config.GatewayConfig{Enabled: true, Host: host, Port: port}
}

func TestCheckGateway(t *testing.T) {
	t.Run("running", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"status":"ok","version":"v1"}`))
		}))
		defer srv.Close()

		r := checkGateway(context.Background(), gatewayConfigFor(t, srv.URL))
		assert.Equal(t, statusOK, r.status)
		assert.Contains(t, r.message, "v1")
	})

	t.Run("degraded", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"status":"degraded","version":"v1"}`))
		}))
		defer srv.Close()

		assert.Equal(t, statusWarning, checkGateway(context.Background(), gatewayConfigFor(t, srv.URL)).status)
	})

	t.Run("not running", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		gw := gatewayConfigFor(t, srv.URL)
		srv.Close()

		assert.Equal(t, statusWarning, checkGateway(context.Background(), gw).status)
	})

	t.Run("disabled", func(t *testing.T) {
		assert.Equal(t, statusOK, checkGateway(context.Background(), config.GatewayConfig{}).status)
	})
}

func TestDoctor_FailsWithoutDestinations(t *testing.T) {
	path := writeConfig(t, "gateway:\n  enabled: false\n")

	out, err := execute(t, "doctor", "--config", path, "-q")
	require.Error(t, err)
	assert.Contains(t, out, "Destinations")
}
