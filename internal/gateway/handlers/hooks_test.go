package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loganrenz/openclaw-mattermost-toolchainposter/internal/hooks"
)

func serveHook(t *testing.T, m *hooks.Manager, hookType, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/v1/hooks/"+hookType, strings.NewReader(body))
	req = mux.SetURLVars(req, map[string]string{"type": hookType})
	w := httptest.NewRecorder()
	HooksHandler(m).ServeHTTP(w, req)
	return w
}

func capture(t *testing.T, m *hooks.Manager, hookType hooks.HookType, result *hooks.Result) <-chan *hooks.Context {
	t.Helper()
	got := make(chan *hooks.Context, 1)
	require.NoError(t, m.Register(hookType, &hooks.Handler{
		ID:      "capture",
		Enabled: true,
		Handler: func(_ context.Context, hc *hooks.Context) (*hooks.Result, error) {
			got <- hc
			return result, nil
		},
	}))
	return got
}

func TestHooksHandler_BeforeToolCallBlock(t *testing.T) {
	m := hooks.NewManager()
	got := capture(t, m, hooks.HookBeforeToolCall, hooks.BlockResult("halted"))

	w := serveHook(t, m, "before_tool_call",
		`{"event":{"toolName":"exec","params":{"command":"ls"}},"context":{"sessionKey":"agent:main:main","agentId":"ops"}}`)

	require.Equal(t, http.StatusOK, w.Code)
	var resp HookResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Block)
	assert.Equal(t, "halted", resp.BlockReason)
	assert.False(t, resp.Continue)

	hc := <-got
	require.NotNil(t, hc.ToolCall)
	assert.Equal(t, "exec", hc.ToolCall.ToolName)
	assert.Equal(t, "ls", hc.ToolCall.Params["command"])
	assert.Equal(t, "agent:main:main", hc.Session.Key)
	assert.Equal(t, "ops", hc.Session.AgentID)
}

func TestHooksHandler_MessageReceived(t *testing.T) {
	m := hooks.NewManager()
	got := capture(t, m, hooks.HookMessageReceived, hooks.ContinueResult())

	w := serveHook(t, m, "message_received",
		`{"event":{"from":"u1","content":"hello","metadata":{"senderId":"u1"}},"context":{"channelId":"mattermost","accountId":"ops","conversationId":"c9"}}`)

	require.Equal(t, http.StatusOK, w.Code)
	var resp HookResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Continue)
	assert.False(t, resp.Block)

	hc := <-got
	assert.Equal(t, "u1", hc.Message.SenderID())
	assert.Equal(t, "hello", hc.Message.Content)
	assert.Equal(t, "ops", hc.Session.AccountID)
	assert.Equal(t, "c9", hc.Session.ConversationID)
	assert.Equal(t, "mattermost", hc.Session.ChannelID)
}

func TestHooksHandler_ToolResultPersist(t *testing.T) {
	m := hooks.NewManager()
	got := capture(t, m, hooks.HookToolResultPersist, hooks.ContinueResult())

	w := serveHook(t, m, "tool_result_persist",
		`{"event":{"toolName":"exec","toolCallId":"call-1","message":{"content":[{"type":"text","text":"ok"}],"details":{"status":"completed","durationMs":1500,"aggregated":"ok"},"isError":true}}}`)

	assert.Equal(t, http.StatusAccepted, w.Code)

	select {
	case hc := <-got:
		res := hc.ToolResult
		require.NotNil(t, res)
		assert.Equal(t, "call-1", res.ToolCallID)
		assert.Equal(t, "completed", res.Status)
		assert.Equal(t, int64(1500), res.DurationMs)
		assert.Equal(t, "ok", res.Aggregated)
		assert.True(t, res.IsError)
		assert.Len(t, res.Content, 1)
	case <-time.After(time.Second):
		t.Fatal("handler not triggered")
	}
}

func TestHooksHandler_AfterToolCallDuration(t *testing.T) {
	m := hooks.NewManager()
	got := capture(t, m, hooks.HookAfterToolCall, nil)

	w := serveHook(t, m, "after_tool_call", `{"event":{"toolName":"read","durationMs":250,"error":"boom"}}`)
	require.Equal(t, http.StatusOK, w.Code)

	hc := <-got
	assert.Equal(t, 250*time.Millisecond, hc.ToolCall.Duration)
	assert.Equal(t, "boom", hc.ToolCall.Error)
}

func TestHooksHandler_Errors(t *testing.T) {
	m := hooks.NewManager()

	tests := []struct {
		name     string
		hookType string
		body     string
		want     int
	}{
		{"unknown type", "before_everything", `{}`, http.StatusNotFound},
		{"bad json", "before_tool_call", `{"event":`, http.StatusBadRequest},
		{"missing tool name", "before_tool_call", `{"event":{}}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serveHook(t, m, tt.hookType, tt.body)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestHooksHandler_NoManagerContinues(t *testing.T) {
	w := serveHook(t, nil, "before_tool_call", `{"event":{"toolName":"exec"}}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp HookResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Continue)
	assert.False(t, resp.Block)
}
