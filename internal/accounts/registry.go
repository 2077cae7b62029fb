// Package accounts resolves which Mattermost bot credential set serves a given
// agent or account hint.
package accounts

import (
	"fmt"
	"strings"
	"sync"

	"github.com/loganrenz/openclaw-mattermost-toolchainposter/internal/config"
)

// DefaultKey is the reserved key of the account built from global settings.
const DefaultKey = "default"

// Account is one bot credential set. Values handed out by the registry are
// copies; registered accounts never change.
type Account struct {
	Key     string `json:"key"`
	Token   string `json:"-"`
	BaseURL string `json:"base_url,omitempty"`
	Alias   string `json:"alias,omitempty"`
}

// Registry maps account keys and aliases to accounts.
type Registry struct {
	accounts map[string]Account
	aliases  map[string]string // lowercased alias -> key
	folded   map[string]string // lowercased key -> key
	order    []string
	mu       sync.RWMutex
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		accounts: make(map[string]Account),
		aliases:  make(map[string]string),
		folded:   make(map[string]string),
	}
}

// Build assembles a registry from configuration. Sources, lowest precedence
// first: the default account from mattermost.base_url/bot_token, then named
// accounts (a named "default" replaces the global one), then aliases.
func Build(cfg config.MattermostConfig) (*Registry, error) {
	r := NewRegistry()

	if cfg.BotToken != "" {
		if err := r.Register(Account{Key: DefaultKey, Token: cfg.BotToken, BaseURL: cfg.BaseURL}); err != nil {
			return nil, err
		}
	}

	for _, key := range cfg.AccountKeys() {
		ac := cfg.Accounts[key]
		if ac.BotToken == "" {
			continue
		}
		baseURL := ac.BaseURL
		if baseURL == "" {
			baseURL = cfg.BaseURL
		}
		if err := r.Register(Account{Key: key, Token: ac.BotToken, BaseURL: baseURL, Alias: ac.Name}); err != nil {
			return nil, fmt.Errorf("account %s: %w", key, err)
		}
	}

	if r.Count() == 0 {
		return r, ErrNoCredentials
	}
	return r, nil
}

// Register adds an account. Registering an existing key overwrites it in place.
func (r *Registry) Register(acct Account) error {
	acct.Key = strings.TrimSpace(acct.Key)
	if acct.Key == "" {
		return fmt.Errorf("%w: key is required", ErrInvalidAccount)
	}
	if acct.Token == "" {
		return fmt.Errorf("%w: token is required for %s", ErrInvalidAccount, acct.Key)
	}
	acct.BaseURL = strings.TrimRight(acct.BaseURL, "/")

	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, exists := r.accounts[acct.Key]; exists {
		if prev.Alias != "" {
			delete(r.aliases, strings.ToLower(prev.Alias))
		}
	} else {
		r.order = append(r.order, acct.Key)
	}
	r.accounts[acct.Key] = acct
	r.folded[strings.ToLower(acct.Key)] = acct.Key
	if acct.Alias != "" {
		r.aliases[strings.ToLower(acct.Alias)] = acct.Key
	}
	return nil
}

// Get returns the account registered under key or alias, without fallback.
// Keys and aliases match case-insensitively when there is no exact key.
func (r *Registry) Get(hint string) (Account, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lookupLocked(hint)
}

// Resolve picks the account for hint: an exact key or alias match, else the
// "default" account, else the first registered account.
func (r *Registry) Resolve(hint string) (Account, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if acct, ok := r.lookupLocked(hint); ok {
		return acct, true
	}
	if acct, ok := r.accounts[DefaultKey]; ok {
		return acct, true
	}
	if len(r.order) > 0 {
		return r.accounts[r.order[0]], true
	}
	return Account{}, false
}

func (r *Registry) lookupLocked(hint string) (Account, bool) {
	hint = strings.TrimSpace(hint)
	if hint == "" {
		return Account{}, false
	}
	if acct, ok := r.accounts[hint]; ok {
		return acct, true
	}
	lower := strings.ToLower(hint)
	if key, ok := r.folded[lower]; ok {
		return r.accounts[key], true
	}
	if key, ok := r.aliases[lower]; ok {
		return r.accounts[key], true
	}
	return Account{}, false
}

// All returns the registered accounts in insertion order.
func (r *Registry) All() []Account {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Account, 0, len(r.order))
	for _, key := range r.order {
		result = append(result, r.accounts[key])
	}
	return result
}

// Count returns the number of registered accounts.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.accounts)
}
