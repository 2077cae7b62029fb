package mattermost

import (
	"sync"

	"github.com/loganrenz/openclaw-mattermost-toolchainposter/internal/accounts"
	"github.com/loganrenz/openclaw-mattermost-toolchainposter/internal/config"
)

// Pool hands out one Client per account, all sharing the webhook, shared
// channel, display settings and rate limit of the configuration.
type Pool struct {
	base    Options
	clients map[string]*Client
	shared  *Client
	mu      sync.Mutex
}

// NewPool creates a pool from configuration.
func NewPool(cfg config.MattermostConfig) *Pool {
	return &Pool{
		base: Options{
			BaseURL:           cfg.BaseURL,
			WebhookURL:        cfg.WebhookURL,
			ChannelID:         cfg.ChannelID,
			DisplayName:       cfg.DisplayName,
			IconURL:           cfg.IconURL,
			Timeout:           cfg.Timeout,
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
		},
		clients: make(map[string]*Client),
	}
}

// For returns the client for acct, creating it on first use.
func (p *Pool) For(acct accounts.Account) *Client {
	p.mu.Lock()
	defer p.mu.Unlock()

	if c, ok := p.clients[acct.Key]; ok {
		return c
	}
	opts := p.base
	opts.Token = acct.Token
	if acct.BaseURL != "" {
		opts.BaseURL = acct.BaseURL
	}
	c := NewClient(opts)
	p.clients[acct.Key] = c
	return c
}

// Shared returns a token-less client that can only use the webhook.
func (p *Pool) Shared() *Client {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.shared == nil {
		opts := p.base
		opts.Token = ""
		p.shared = NewClient(opts)
	}
	return p.shared
}
