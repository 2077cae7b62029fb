package hooks

import (
	"context"

	"github.com/rs/zerolog/log"
)

// Manager manages hook registration and execution.
type Manager struct {
	registry *Registry
	executor *Executor
}

// NewManager creates a new hook manager.
func NewManager() *Manager {
	return &Manager{
		registry: NewRegistry(),
		executor: NewExecutor(),
	}
}

// ManagerOption configures the manager.
type ManagerOption func(*Manager)

// WithRegistry sets a custom registry.
func WithRegistry(r *Registry) ManagerOption {
	return func(m *Manager) {
		m.registry = r
	}
}

// WithExecutor sets a custom executor.
func WithExecutor(e *Executor) ManagerOption {
	return func(m *Manager) {
		m.executor = e
	}
}

// NewManagerWithOptions creates a new hook manager with options.
func NewManagerWithOptions(opts ...ManagerOption) *Manager {
	m := NewManager()
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Register registers a handler for the given hook type.
func (m *Manager) Register(hookType HookType, handler *Handler) error {
	return m.registry.Register(hookType, handler)
}

// Unregister removes a handler from the given hook type.
func (m *Manager) Unregister(hookType HookType, handlerID string) error {
	return m.registry.Unregister(hookType, handlerID)
}

// Trigger runs the handlers registered for hookCtx.Type.
func (m *Manager) Trigger(ctx context.Context, hookCtx *Context) (*Result, error) {
	if hookCtx == nil || !IsValidHookType(hookCtx.Type) {
		return nil, ErrHookTypeInvalid
	}

	handlers := m.registry.GetHandlers(hookCtx.Type)
	if len(handlers) == 0 {
		return ContinueResult(), nil
	}

	log.Debug().
		Str("hook_type", string(hookCtx.Type)).
		Int("handler_count", len(handlers)).
		Msg("triggering hook")

	return m.executor.Execute(ctx, handlers, hookCtx), nil
}

// TriggerMessageReceived triggers message_received for an inbound chat message.
func (m *Manager) TriggerMessageReceived(ctx context.Context, msg *MessageContext, session *SessionContext) (*Result, error) {
	return m.Trigger(ctx, NewContext(HookMessageReceived).WithMessage(msg).WithSession(session))
}

// TriggerBeforeToolCall triggers before_tool_call. A Block result means the
// runtime must not execute the call.
func (m *Manager) TriggerBeforeToolCall(ctx context.Context, call *ToolCallContext, session *SessionContext) (*Result, error) {
	return m.Trigger(ctx, NewContext(HookBeforeToolCall).WithToolCall(call).WithSession(session))
}

// TriggerAfterToolCall triggers after_tool_call.
func (m *Manager) TriggerAfterToolCall(ctx context.Context, call *ToolCallContext, session *SessionContext) (*Result, error) {
	return m.Trigger(ctx, NewContext(HookAfterToolCall).WithToolCall(call).WithSession(session))
}

// TriggerToolResultPersist triggers tool_result_persist. The event carries no
// session context.
func (m *Manager) TriggerToolResultPersist(ctx context.Context, res *ToolResultContext) (*Result, error) {
	return m.Trigger(ctx, NewContext(HookToolResultPersist).WithToolResult(res))
}

// TriggerSessionStart triggers session_start.
func (m *Manager) TriggerSessionStart(ctx context.Context, session *SessionContext) (*Result, error) {
	return m.Trigger(ctx, NewContext(HookSessionStart).WithSession(session))
}

// TriggerSessionEnd triggers session_end.
func (m *Manager) TriggerSessionEnd(ctx context.Context, session *SessionContext) (*Result, error) {
	return m.Trigger(ctx, NewContext(HookSessionEnd).WithSession(session))
}

// TriggerGatewayStart triggers gateway_start.
func (m *Manager) TriggerGatewayStart(ctx context.Context) (*Result, error) {
	return m.Trigger(ctx, NewContext(HookGatewayStart))
}

// TriggerGatewayStop triggers gateway_stop.
func (m *Manager) TriggerGatewayStop(ctx context.Context) (*Result, error) {
	return m.Trigger(ctx, NewContext(HookGatewayStop))
}

// ListHandlers returns all handlers for the given hook type.
func (m *Manager) ListHandlers(hookType HookType) []*Handler {
	return m.registry.GetHandlers(hookType)
}

// HasHandlers returns true if there are any handlers for the given hook type.
func (m *Manager) HasHandlers(hookType HookType) bool {
	return m.registry.HasHandlers(hookType)
}

// Close releases resources.
func (m *Manager) Close() error {
	m.registry.Clear()
	return nil
}
