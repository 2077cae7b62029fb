package bridge

import "errors"

var (
	// ErrConfigurationMissing means there is nowhere to post: no webhook and no bot accounts.
	ErrConfigurationMissing = errors.New("bridge: no mattermost webhook or bot account configured")
	// ErrQueueFull is returned when the result queue cannot take another post.
	ErrQueueFull = errors.New("bridge: post queue full")
	// ErrDispatcherStopped is returned when submitting to a stopped dispatcher.
	ErrDispatcherStopped = errors.New("bridge: dispatcher stopped")
)
