package mattermost

import (
	"errors"
	"fmt"
)

var (
	// ErrNoDirectAPI is returned for REST operations on a client without base URL and token.
	ErrNoDirectAPI = errors.New("mattermost: REST API not configured")
	// ErrNoSharedChannel is returned when neither a channel id nor a webhook is configured.
	ErrNoSharedChannel = errors.New("mattermost: no shared channel or webhook configured")
	// ErrEmptyRecipient is returned when a direct message has no recipient.
	ErrEmptyRecipient = errors.New("mattermost: empty recipient")
)

// APIError is a non-2xx response from Mattermost.
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("mattermost %s %s: %d %s", e.Method, e.Path, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("mattermost %s %s: HTTP %d", e.Method, e.Path, e.StatusCode)
}
