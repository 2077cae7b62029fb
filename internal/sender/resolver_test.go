package sender

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestResolve_SessionExactWinsRegardlessOfAge(t *testing.T) {
	r := NewResolver(Options{})
	r.Record("agent:main:mattermost:direct:u1", "default", "u1", "", t0)

	for _, age := range []time.Duration{0, time.Minute, 29 * time.Minute, 31 * time.Minute, 48 * time.Hour} {
		got, ok := r.Resolve("agent:main:mattermost:direct:u1", "default", t0.Add(age))
		require.True(t, ok, "age %s", age)
		assert.Equal(t, "u1", got)
	}
}

func TestResolve_NormalizedSessionKey(t *testing.T) {
	r := NewResolver(Options{})
	r.Record("mattermost:direct:u1", "", "u1", "", t0)

	got, ok := r.Resolve("agent:main:mattermost:direct:u1", "", t0.Add(2*time.Hour))
	require.True(t, ok)
	assert.Equal(t, "u1", got)
}

func TestResolve_AccountFallbackWindow(t *testing.T) {
	tests := []struct {
		name    string
		session string
		age     time.Duration
		want    bool
	}{
		{"fresh interactive", "agent:main:other", 10 * time.Minute, true},
		{"just inside window", "agent:main:other", 30*time.Minute - time.Second, true},
		{"at window", "agent:main:other", 30 * time.Minute, false},
		{"stale", "agent:main:other", 2 * time.Hour, false},
		{"subagent marker", "agent:main:subagent:123", time.Minute, false},
		{"cron marker", "agent:main:cron:nightly", time.Minute, false},
		{"marker is case-insensitive", "agent:main:CRON:nightly", time.Minute, false},
		{"empty session", "", time.Minute, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewResolver(Options{})
			r.Record("agent:main:mattermost:direct:u1", "ops", "u1", "", t0)

			got, ok := r.Resolve(tt.session, "ops", t0.Add(tt.age))
			assert.Equal(t, tt.want, ok)
			if tt.want {
				assert.Equal(t, "u1", got)
			} else {
				assert.Empty(t, got)
			}
		})
	}
}

func TestResolve_SessionLinkBeatsBackgroundMarker(t *testing.T) {
	r := NewResolver(Options{})
	r.Record("agent:main:cron:nightly", "ops", "owner", "", t0)

	got, ok := r.Resolve("agent:main:cron:nightly", "ops", t0.Add(5*time.Hour))
	require.True(t, ok)
	assert.Equal(t, "owner", got)
}

func TestResolve_UnknownAccount(t *testing.T) {
	r := NewResolver(Options{})
	r.Record("s1", "ops", "u1", "", t0)

	_, ok := r.Resolve("s2", "other", t0)
	assert.False(t, ok)
	_, ok = r.Resolve("s2", "", t0)
	assert.False(t, ok)
}

func TestRecord_LastWriteWins(t *testing.T) {
	r := NewResolver(Options{})
	r.Record("s1", "ops", "u1", "c1", t0)
	r.Record("s1", "ops", "u2", "c2", t0.Add(time.Minute))

	link, src := r.ResolveLink("s1", "ops", t0.Add(2*time.Minute))
	assert.Equal(t, SourceSession, src)
	assert.Equal(t, "u2", link.RecipientID)
	assert.Equal(t, "c2", link.ConversationID)

	link, src = r.ResolveLink("unrelated", "ops", t0.Add(2*time.Minute))
	assert.Equal(t, SourceAccount, src)
	assert.Equal(t, "u2", link.RecipientID)
}

func TestRecord_IgnoresEmptyRecipient(t *testing.T) {
	r := NewResolver(Options{})
	r.Record("s1", "ops", "", "", t0)
	assert.Equal(t, 0, r.Len())
}

func TestRecord_TriplesIndex(t *testing.T) {
	r := NewResolver(Options{})
	r.Record("direct:u1", "ops", "u1", "", t0)
	assert.Equal(t, 3, r.Len())

	r.Record("agent:main:direct:u2", "ops", "u2", "", t0)
	assert.Equal(t, 4, r.Len(), "already-canonical keys are stored once")
}

func TestResolve_Idempotent(t *testing.T) {
	r := NewResolver(Options{})
	r.Record("s1", "ops", "u1", "", t0)

	for i, sess := range []string{"s1", "s2", "agent:main:subagent:x"} {
		first, ok1 := r.Resolve(sess, "ops", t0.Add(time.Duration(i)*time.Minute))
		second, ok2 := r.Resolve(sess, "ops", t0.Add(time.Duration(i)*time.Minute))
		assert.Equal(t, ok1, ok2, sess)
		assert.Equal(t, first, second, sess)
	}
}

func TestCustomOptions(t *testing.T) {
	r := NewResolver(Options{
		FallbackWindow:   5 * time.Minute,
		ExclusionMarkers: []string{" Batch "},
		DefaultAgent:     "ops",
	})

	assert.Equal(t, "agent:ops:direct:u1", r.NormalizeSessionKey("direct:u1"))
	assert.Equal(t, "agent:x:y", r.NormalizeSessionKey("agent:x:y"))
	assert.True(t, r.IsBackgroundSession("agent:ops:batch:1"))
	assert.False(t, r.IsBackgroundSession("agent:ops:cron:1"))

	r.Record("s1", "acct", "u1", "", t0)
	_, ok := r.Resolve("s2", "acct", t0.Add(6*time.Minute))
	assert.False(t, ok)
}

func TestConcurrentRecordAndResolve(t *testing.T) {
	r := NewResolver(Options{})
	done := make(chan struct{})

	for w := 0; w < 4; w++ {
		go func(w int) {
			defer func() { done <- struct{}{} }()
			for i := 0; i < 200; i++ {
				key := fmt.Sprintf("s%d", i%10)
				r.Record(key, "ops", fmt.Sprintf("u%d", w), "", t0)
				_, _ = r.Resolve(key, "ops", t0)
			}
		}(w)
	}
	for w := 0; w < 4; w++ {
		<-done
	}

	_, ok := r.Resolve("s3", "ops", t0)
	assert.True(t, ok)
}
