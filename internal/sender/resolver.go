// Package sender maps tool-call events, which only carry a session or agent
// identifier, back to the chat user who should receive them.
package sender

import (
	"strings"
	"sync"
	"time"
)

// Source tells where a resolved link came from.
type Source string

const (
	SourceNone    Source = ""
	SourceSession Source = "session"
	SourceAccount Source = "account"
)

// Link ties a session or account key to the last user seen on it.
type Link struct {
	Key            string    `json:"key"`
	RecipientID    string    `json:"recipient_id"`
	ConversationID string    `json:"conversation_id,omitempty"`
	RecordedAt     time.Time `json:"recorded_at"`
}

// Options configures a Resolver. Zero values fall back to the defaults.
type Options struct {
	// FallbackWindow bounds how old an account-level link may be.
	FallbackWindow time.Duration
	// ExclusionMarkers are substrings of session keys that never use the
	// account-level fallback (sub-agents, scheduled jobs).
	ExclusionMarkers []string
	// DefaultAgent forms the canonical session key prefix "agent:<DefaultAgent>:".
	DefaultAgent string
}

const (
	defaultWindow = 30 * time.Minute
	defaultAgent  = "main"
	agentPrefix   = "agent:"
)

var defaultMarkers = []string{"subagent", "cron"}

// Resolver holds sender links for the process lifetime. Links are only ever
// superseded by newer ones for the same key.
type Resolver struct {
	sessions map[string]Link
	accounts map[string]Link
	window   time.Duration
	markers  []string
	prefix   string
	mu       sync.RWMutex
}

// NewResolver creates a resolver.
func NewResolver(opts Options) *Resolver {
	if opts.FallbackWindow <= 0 {
		opts.FallbackWindow = defaultWindow
	}
	if opts.ExclusionMarkers == nil {
		opts.ExclusionMarkers = defaultMarkers
	}
	if opts.DefaultAgent == "" {
		opts.DefaultAgent = defaultAgent
	}

	markers := make([]string, 0, len(opts.ExclusionMarkers))
	for _, m := range opts.ExclusionMarkers {
		if m = strings.ToLower(strings.TrimSpace(m)); m != "" {
			markers = append(markers, m)
		}
	}

	return &Resolver{
		sessions: make(map[string]Link),
		accounts: make(map[string]Link),
		window:   opts.FallbackWindow,
		markers:  markers,
		prefix:   agentPrefix + opts.DefaultAgent + ":",
	}
}

// NormalizeSessionKey ensures the canonical "agent:" prefix so "direct:u1"
// and "agent:main:direct:u1" collide.
func (r *Resolver) NormalizeSessionKey(key string) string {
	key = strings.TrimSpace(key)
	if key == "" || strings.HasPrefix(key, agentPrefix) {
		return key
	}
	return r.prefix + key
}

// IsBackgroundSession reports whether key carries an exclusion marker.
func (r *Resolver) IsBackgroundSession(key string) bool {
	lower := strings.ToLower(key)
	for _, m := range r.markers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

// Record stores recipientID under the literal session key, its normalized
// form and the account key.
func (r *Resolver) Record(sessionKey, accountKey, recipientID, conversationID string, now time.Time) {
	if recipientID == "" {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if sessionKey != "" {
		r.sessions[sessionKey] = Link{Key: sessionKey, RecipientID: recipientID, ConversationID: conversationID, RecordedAt: now}
		if norm := r.NormalizeSessionKey(sessionKey); norm != sessionKey {
			r.sessions[norm] = Link{Key: norm, RecipientID: recipientID, ConversationID: conversationID, RecordedAt: now}
		}
	}
	if accountKey != "" {
		r.accounts[accountKey] = Link{Key: accountKey, RecipientID: recipientID, ConversationID: conversationID, RecordedAt: now}
	}
}

// Resolve returns the recipient for a tool call in sessionKey on accountKey.
func (r *Resolver) Resolve(sessionKey, accountKey string, now time.Time) (string, bool) {
	link, src := r.ResolveLink(sessionKey, accountKey, now)
	if src == SourceNone {
		return "", false
	}
	return link.RecipientID, true
}

// ResolveLink is Resolve returning the whole link and its source.
//
// A session-exact link always wins regardless of age. Otherwise the account
// link is used only when younger than the fallback window and the session is
// not a background one; a miss means "post to the shared channel".
func (r *Resolver) ResolveLink(sessionKey, accountKey string, now time.Time) (Link, Source) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if sessionKey != "" {
		if link, ok := r.sessions[sessionKey]; ok {
			return link, SourceSession
		}
		if link, ok := r.sessions[r.NormalizeSessionKey(sessionKey)]; ok {
			return link, SourceSession
		}
	}

	if accountKey == "" {
		return Link{}, SourceNone
	}
	link, ok := r.accounts[accountKey]
	if !ok {
		return Link{}, SourceNone
	}
	if now.Sub(link.RecordedAt) >= r.window {
		return Link{}, SourceNone
	}
	if r.IsBackgroundSession(sessionKey) {
		return Link{}, SourceNone
	}
	return link, SourceAccount
}

// Len returns the number of stored session and account links.
func (r *Resolver) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions) + len(r.accounts)
}
