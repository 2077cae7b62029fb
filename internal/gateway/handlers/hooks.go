package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/loganrenz/openclaw-mattermost-toolchainposter/internal/hooks"
	"github.com/loganrenz/openclaw-mattermost-toolchainposter/pkg/logger"
)

// HookRequest is the body of POST /v1/hooks/{type}, in the host's shapes.
type HookRequest struct {
	Event   HookEvent   `json:"event"`
	Context HookSession `json:"context"`
}

// HookEvent carries the fields of every supported event. Which ones are
// meaningful depends on the hook type.
type HookEvent struct {
	// message_received
	From     string         `json:"from,omitempty"`
	Content  string         `json:"content,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`

	// before_tool_call, after_tool_call, tool_result_persist
	ToolName   string         `json:"toolName,omitempty"`
	ToolCallID string         `json:"toolCallId,omitempty"`
	Params     map[string]any `json:"params,omitempty"`
	Error      string         `json:"error,omitempty"`
	DurationMs int64          `json:"durationMs,omitempty"`

	// tool_result_persist
	Message *ToolMessage `json:"message,omitempty"`
}

// ToolMessage is the tool result message about to be persisted.
type ToolMessage struct {
	Content any         `json:"content,omitempty"`
	Details ToolDetails `json:"details"`
	IsError bool        `json:"isError,omitempty"`
}

// ToolDetails is the optional execution summary attached to a tool result.
type ToolDetails struct {
	Status     string `json:"status,omitempty"`
	DurationMs int64  `json:"durationMs,omitempty"`
	Aggregated string `json:"aggregated,omitempty"`
}

// HookSession is the event's context object.
type HookSession struct {
	SessionKey     string `json:"sessionKey,omitempty"`
	AgentID        string `json:"agentId,omitempty"`
	AccountID      string `json:"accountId,omitempty"`
	ConversationID string `json:"conversationId,omitempty"`
	ChannelID      string `json:"channelId,omitempty"`
}

// HookResponse is returned for synchronous hooks.
type HookResponse struct {
	Continue    bool           `json:"continue"`
	Block       bool           `json:"block"`
	BlockReason string         `json:"blockReason,omitempty"`
	Data        map[string]any `json:"data,omitempty"`
}

// ToHookContext converts a request into the context handed to hook handlers.
func (req *HookRequest) ToHookContext(hookType hooks.HookType) *hooks.Context {
	hc := hooks.NewContext(hookType)
	hc.Session = &hooks.SessionContext{
		Key:            req.Context.SessionKey,
		AgentID:        req.Context.AgentID,
		AccountID:      req.Context.AccountID,
		ConversationID: req.Context.ConversationID,
		ChannelID:      req.Context.ChannelID,
	}

	ev := req.Event
	switch hookType {
	case hooks.HookMessageReceived:
		hc.Message = &hooks.MessageContext{From: ev.From, Content: ev.Content, Metadata: ev.Metadata}

	case hooks.HookBeforeToolCall, hooks.HookAfterToolCall:
		hc.ToolCall = &hooks.ToolCallContext{
			ID:       ev.ToolCallID,
			ToolName: ev.ToolName,
			Params:   ev.Params,
			Error:    ev.Error,
			Duration: time.Duration(ev.DurationMs) * time.Millisecond,
		}

	case hooks.HookToolResultPersist:
		res := &hooks.ToolResultContext{ToolCallID: ev.ToolCallID, ToolName: ev.ToolName}
		if m := ev.Message; m != nil {
			res.Content = m.Content
			res.Status = m.Details.Status
			res.DurationMs = m.Details.DurationMs
			res.Aggregated = m.Details.Aggregated
			res.IsError = m.IsError
		}
		hc.ToolResult = res
	}
	return hc
}

// HooksHandler forwards host lifecycle events to the hook manager.
// tool_result_persist is answered with 202 since its handlers only queue work.
func HooksHandler(manager *hooks.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		hookType := hooks.HookType(mux.Vars(r)["type"])
		if !hooks.IsValidHookType(hookType) {
			SendError(w, http.StatusNotFound, ErrCodeNotFound, "unknown hook type: "+string(hookType))
			return
		}
		if manager == nil {
			SendJSON(w, http.StatusOK, HookResponse{Continue: true})
			return
		}

		var req HookRequest
		if err := decodeBody(r, &req); err != nil {
			SendError(w, http.StatusBadRequest, ErrCodeInvalidRequest, err.Error())
			return
		}
		if needsToolName(hookType) && req.Event.ToolName == "" {
			SendError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "event.toolName is required")
			return
		}

		result, err := manager.Trigger(r.Context(), req.ToHookContext(hookType))
		if err != nil {
			logger.Warn().Err(err).Str("hook_type", string(hookType)).Msg("hook trigger failed")
			SendError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
			return
		}

		if hookType == hooks.HookToolResultPersist {
			SendJSON(w, http.StatusAccepted, HookResponse{Continue: true})
			return
		}

		resp := HookResponse{Continue: true}
		if result != nil {
			resp.Continue = result.Continue
			resp.Block = result.Block
			resp.BlockReason = result.BlockReason
			if result.Modified {
				resp.Data = result.Data
			}
		}
		SendJSON(w, http.StatusOK, resp)
	}
}

func needsToolName(t hooks.HookType) bool {
	switch t {
	case hooks.HookBeforeToolCall, hooks.HookAfterToolCall, hooks.HookToolResultPersist:
		return true
	}
	return false
}
