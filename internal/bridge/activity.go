package bridge

import "time"

// Activity types reported to an Observer.
const (
	ActivityToolCallPosted   = "tool_call_posted"
	ActivityToolResultPosted = "tool_result_posted"
	ActivityPostFailed       = "post_failed"
	ActivityToolCallBlocked  = "tool_call_blocked"
	ActivityHalted           = "halted"
	ActivityResumed          = "resumed"
)

// Activity describes something the bridge did.
type Activity struct {
	Type       string    `json:"type"`
	At         time.Time `json:"at"`
	ToolName   string    `json:"tool_name,omitempty"`
	ToolCallID string    `json:"tool_call_id,omitempty"`
	SessionKey string    `json:"session_key,omitempty"`
	Account    string    `json:"account,omitempty"`
	Recipient  string    `json:"recipient,omitempty"`
	Target     string    `json:"target,omitempty"`
	PostID     string    `json:"post_id,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	Error      string    `json:"error,omitempty"`
}

// Observer receives bridge activity. Observe must not block.
type Observer interface {
	Observe(Activity)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Activity)

// Observe calls f(a).
func (f ObserverFunc) Observe(a Activity) { f(a) }
