package bridge

import (
	"sync"
	"time"
)

// PendingToolCall correlates a posted tool call with its post.
type PendingToolCall struct {
	ToolCallID string    `json:"tool_call_id"`
	PostID     string    `json:"post_id,omitempty"`
	ToolName   string    `json:"tool_name"`
	StartedAt  time.Time `json:"started_at"`
}

// PendingTable holds tool calls posted but not yet finished.
type PendingTable struct {
	calls map[string]PendingToolCall
	mu    sync.RWMutex
}

// NewPendingTable creates an empty table.
func NewPendingTable() *PendingTable {
	return &PendingTable{calls: make(map[string]PendingToolCall)}
}

// Add records call, replacing an earlier record with the same id.
func (t *PendingTable) Add(call PendingToolCall) {
	if call.ToolCallID == "" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls[call.ToolCallID] = call
}

// Get returns the record for id.
func (t *PendingTable) Get(id string) (PendingToolCall, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	call, ok := t.calls[id]
	return call, ok
}

// Complete removes and returns the record for id.
func (t *PendingTable) Complete(id string) (PendingToolCall, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	call, ok := t.calls[id]
	if ok {
		delete(t.calls, id)
	}
	return call, ok
}

// Prune drops records started before cutoff and returns how many were dropped.
func (t *PendingTable) Prune(cutoff time.Time) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := 0
	for id, call := range t.calls {
		if call.StartedAt.Before(cutoff) {
			delete(t.calls, id)
			n++
		}
	}
	return n
}

// Len returns the number of records.
func (t *PendingTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.calls)
}
