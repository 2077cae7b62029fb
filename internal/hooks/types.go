// Package hooks is the agent runtime's lifecycle surface. The runtime (or the
// gateway acting for an out-of-process runtime) triggers hooks; plugins such
// as the Mattermost bridge register handlers on them.
package hooks

import (
	"context"
	"time"
)

// HookType represents the type of hook event.
type HookType string

// Hook type constants.
const (
	// Inbound chat message, fired before the agent sees it.
	HookMessageReceived HookType = "message_received"

	// Tool call lifecycle
	HookBeforeToolCall    HookType = "before_tool_call"
	HookAfterToolCall     HookType = "after_tool_call"
	HookToolResultPersist HookType = "tool_result_persist"

	// Session lifecycle
	HookSessionStart HookType = "session_start"
	HookSessionEnd   HookType = "session_end"

	// Gateway lifecycle
	HookGatewayStart HookType = "gateway_start"
	HookGatewayStop  HookType = "gateway_stop"
)

// AllHookTypes returns all supported hook types.
func AllHookTypes() []HookType {
	return []HookType{
		HookMessageReceived,
		HookBeforeToolCall,
		HookAfterToolCall,
		HookToolResultPersist,
		HookSessionStart,
		HookSessionEnd,
		HookGatewayStart,
		HookGatewayStop,
	}
}

// IsValidHookType checks if the given type is a valid hook type.
func IsValidHookType(t HookType) bool {
	for _, ht := range AllHookTypes() {
		if ht == t {
			return true
		}
	}
	return false
}

// HandlerFunc is the function signature for hook handlers.
type HandlerFunc func(ctx context.Context, hookCtx *Context) (*Result, error)

// Handler represents a registered hook handler.
type Handler struct {
	ID          string      `json:"id"`
	Priority    int         `json:"priority"`              // Higher = earlier execution, default 0
	Source      string      `json:"source"`                // "_builtin" | plugin id
	Handler     HandlerFunc `json:"-"`                     // The actual handler function
	Description string      `json:"description,omitempty"` // Human-readable description
	Enabled     bool        `json:"enabled"`               // Whether the handler is enabled
	Async       bool        `json:"async,omitempty"`       // Run detached; result is ignored
}

// Context is passed to hook handlers. Which sub-context is set depends on Type.
type Context struct {
	Type      HookType  `json:"type"`
	Timestamp time.Time `json:"timestamp"`

	Session    *SessionContext    `json:"session,omitempty"`
	Message    *MessageContext    `json:"message,omitempty"`
	ToolCall   *ToolCallContext   `json:"tool_call,omitempty"`
	ToolResult *ToolResultContext `json:"tool_result,omitempty"`

	// Custom data passing between handlers
	Data map[string]any `json:"data,omitempty"`
}

// SessionContext identifies where an event happened.
type SessionContext struct {
	Key            string `json:"session_key,omitempty"`
	AgentID        string `json:"agent_id,omitempty"`
	AccountID      string `json:"account_id,omitempty"`
	ConversationID string `json:"conversation_id,omitempty"`
	ChannelID      string `json:"channel_id,omitempty"` // chat provider, e.g. "mattermost"
}

// MessageContext is an inbound chat message.
type MessageContext struct {
	From     string         `json:"from,omitempty"`
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Well-known message metadata keys.
const (
	MetaSenderID   = "senderId"
	MetaSessionKey = "sessionKey"
)

// SenderID returns metadata.senderId, falling back to From.
func (m *MessageContext) SenderID() string {
	if id := m.metaString(MetaSenderID); id != "" {
		return id
	}
	return m.From
}

// SessionKey returns metadata.sessionKey if present.
func (m *MessageContext) SessionKey() string {
	return m.metaString(MetaSessionKey)
}

func (m *MessageContext) metaString(key string) string {
	if m == nil || m.Metadata == nil {
		return ""
	}
	s, _ := m.Metadata[key].(string)
	return s
}

// ToolCallContext describes a tool call about to run (or that just ran).
type ToolCallContext struct {
	ID       string         `json:"id,omitempty"`
	ToolName string         `json:"tool_name"`
	Params   map[string]any `json:"params,omitempty"`
	Error    string         `json:"error,omitempty"`
	Duration time.Duration  `json:"duration,omitempty"`
}

// ToolResultContext is a tool result about to be written to the transcript.
// Content is either a string or a list of content blocks.
type ToolResultContext struct {
	ToolCallID string `json:"tool_call_id,omitempty"`
	ToolName   string `json:"tool_name"`
	Content    any    `json:"content,omitempty"`
	Status     string `json:"status,omitempty"`
	DurationMs int64  `json:"duration_ms,omitempty"`
	Aggregated string `json:"aggregated,omitempty"`
	IsError    bool   `json:"is_error,omitempty"`
}

// Result represents the result returned by a hook handler.
type Result struct {
	Continue    bool           `json:"continue"`               // Whether to run subsequent handlers
	Modified    bool           `json:"modified"`               // Whether the context was modified
	Block       bool           `json:"block,omitempty"`        // Ask the runtime not to run the tool call
	BlockReason string         `json:"block_reason,omitempty"` // User-facing reason for Block
	Data        map[string]any `json:"data,omitempty"`         // Modified data
	Error       error          `json:"-"`                      // Error information (not serialized)
}

// ContinueResult creates a result that allows the chain to continue.
func ContinueResult() *Result {
	return &Result{
		Continue: true,
		Modified: false,
	}
}

// StopResult creates a result that stops the chain execution.
func StopResult() *Result {
	return &Result{
		Continue: false,
		Modified: false,
	}
}

// BlockResult stops the chain and tells the runtime to block the tool call.
func BlockResult(reason string) *Result {
	return &Result{
		Continue:    false,
		Block:       true,
		BlockReason: reason,
	}
}

// ModifiedResult creates a result with modified data that allows continuation.
func ModifiedResult(data map[string]any) *Result {
	return &Result{
		Continue: true,
		Modified: true,
		Data:     data,
	}
}

// ErrorResult creates a result with an error that stops the chain.
func ErrorResult(err error) *Result {
	return &Result{
		Continue: false,
		Modified: false,
		Error:    err,
	}
}

// NewContext creates a new hook context with the given type.
func NewContext(hookType HookType) *Context {
	return &Context{
		Type:      hookType,
		Timestamp: time.Now(),
		Data:      make(map[string]any),
	}
}

// WithSession adds session context to the hook context.
func (c *Context) WithSession(session *SessionContext) *Context {
	c.Session = session
	return c
}

// WithMessage adds message context to the hook context.
func (c *Context) WithMessage(message *MessageContext) *Context {
	c.Message = message
	return c
}

// WithToolCall adds tool call context to the hook context.
func (c *Context) WithToolCall(toolCall *ToolCallContext) *Context {
	c.ToolCall = toolCall
	return c
}

// WithToolResult adds tool result context to the hook context.
func (c *Context) WithToolResult(res *ToolResultContext) *Context {
	c.ToolResult = res
	return c
}

// SetData sets a custom data value in the context.
func (c *Context) SetData(key string, value any) {
	if c.Data == nil {
		c.Data = make(map[string]any)
	}
	c.Data[key] = value
}

// GetData retrieves a custom data value from the context.
func (c *Context) GetData(key string) (any, bool) {
	if c.Data == nil {
		return nil, false
	}
	v, ok := c.Data[key]
	return v, ok
}
