package accounts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loganrenz/openclaw-mattermost-toolchainposter/internal/config"
)

func TestBuild_DefaultAndNamed(t *testing.T) {
	r, err := Build(config.MattermostConfig{
		BaseURL:  "https://chat.example.com/",
		BotToken: "tokenA",
		Accounts: map[string]config.AccountConfig{
			"ops": {BotToken: "tokenB", Name: "Operations"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, r.Count())

	acct, ok := r.Resolve("ops")
	require.True(t, ok)
	assert.Equal(t, "ops", acct.Key)
	assert.Equal(t, "tokenB", acct.Token)
	assert.Equal(t, "https://chat.example.com", acct.BaseURL, "named accounts inherit the global base url")

	acct, ok = r.Resolve("unknown-agent")
	require.True(t, ok)
	assert.Equal(t, DefaultKey, acct.Key)
	assert.Equal(t, "tokenA", acct.Token)
}

func TestResolve_ByAlias(t *testing.T) {
	r, err := Build(config.MattermostConfig{
		BaseURL: "https://chat.example.com",
		Accounts: map[string]config.AccountConfig{
			"ops": {BotToken: "tokenB", Name: "Operations"},
		},
	})
	require.NoError(t, err)

	acct, ok := r.Resolve("operations")
	require.True(t, ok)
	assert.Equal(t, "ops", acct.Key)

	acct, ok = r.Get("Operations")
	require.True(t, ok)
	assert.Equal(t, "ops", acct.Key)
}

func TestGet_KeyIgnoresCase(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(Account{Key: "ops", Token: "b"}))

	acct, ok := r.Get("OPS")
	require.True(t, ok)
	assert.Equal(t, "ops", acct.Key)

	_, ok = r.Get("opsx")
	assert.False(t, ok)
}

func TestResolve_FirstInsertedWithoutDefault(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(Account{Key: "beta", Token: "b"}))
	require.NoError(t, r.Register(Account{Key: "alpha", Token: "a"}))

	acct, ok := r.Resolve("missing")
	require.True(t, ok)
	assert.Equal(t, "beta", acct.Key)

	acct, ok = r.Resolve("")
	require.True(t, ok)
	assert.Equal(t, "beta", acct.Key)
}

func TestResolve_Empty(t *testing.T) {
	_, ok := NewRegistry().Resolve("anything")
	assert.False(t, ok)
}

func TestRegister_OverwriteKeepsOrder(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(Account{Key: "one", Token: "t1", Alias: "first"}))
	require.NoError(t, r.Register(Account{Key: "two", Token: "t2"}))
	require.NoError(t, r.Register(Account{Key: "one", Token: "t1b", Alias: "uno"}))

	all := r.All()
	require.Len(t, all, 2)
	assert.Equal(t, "one", all[0].Key)
	assert.Equal(t, "t1b", all[0].Token)

	_, ok := r.Get("first")
	assert.False(t, ok, "stale alias must be dropped")
	acct, ok := r.Get("uno")
	require.True(t, ok)
	assert.Equal(t, "one", acct.Key)
}

func TestRegister_Invalid(t *testing.T) {
	r := NewRegistry()
	assert.ErrorIs(t, r.Register(Account{Token: "x"}), ErrInvalidAccount)
	assert.ErrorIs(t, r.Register(Account{Key: "x"}), ErrInvalidAccount)
}

func TestResolve_ReturnsCopies(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(Account{Key: DefaultKey, Token: "secret"}))

	acct, _ := r.Resolve(DefaultKey)
	acct.Token = "mutated"

	again, _ := r.Resolve(DefaultKey)
	assert.Equal(t, "secret", again.Token)
}

func TestBuild_NoCredentials(t *testing.T) {
	r, err := Build(config.MattermostConfig{WebhookURL: "https://chat.example.com/hooks/x"})
	assert.ErrorIs(t, err, ErrNoCredentials)
	assert.Equal(t, 0, r.Count())
}

func TestResolve_Idempotent(t *testing.T) {
	r, err := Build(config.MattermostConfig{BaseURL: "https://c", BotToken: "a"})
	require.NoError(t, err)

	first, ok1 := r.Resolve("agent-x")
	second, ok2 := r.Resolve("agent-x")
	assert.Equal(t, ok1, ok2)
	assert.Equal(t, first, second)
}
