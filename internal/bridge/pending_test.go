package bridge

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPendingTable(t *testing.T) {
	table := NewPendingTable()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	table.Add(PendingToolCall{ToolCallID: "a", ToolName: "read", StartedAt: base})
	table.Add(PendingToolCall{ToolCallID: "b", ToolName: "exec", StartedAt: base.Add(time.Hour)})
	table.Add(PendingToolCall{ToolName: "no-id"})
	assert.Equal(t, 2, table.Len())

	call, ok := table.Complete("a")
	assert.True(t, ok)
	assert.Equal(t, "read", call.ToolName)
	_, ok = table.Complete("a")
	assert.False(t, ok)

	table.Add(PendingToolCall{ToolCallID: "c", StartedAt: base})
	assert.Equal(t, 1, table.Prune(base.Add(30*time.Minute)))

	_, ok = table.Get("b")
	assert.True(t, ok)
	assert.Equal(t, 1, table.Len())
}
