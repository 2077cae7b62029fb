// Package websocket streams bridge activity to connected clients.
package websocket

// WSMessage is the envelope for client and server frames.
type WSMessage struct {
	Type    string `json:"type"`
	Session string `json:"session,omitempty"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// BroadcastMessage wraps a frame with the session it concerns.
// An empty Session reaches every client.
type BroadcastMessage struct {
	Session string
	Data    []byte
}

// Message types.
const (
	TypeSubscribe   = "subscribe"
	TypeUnsubscribe = "unsubscribe"
	TypePing        = "ping"
	TypePong        = "pong"
	TypeActivity    = "activity"
	TypeError       = "error"
)
