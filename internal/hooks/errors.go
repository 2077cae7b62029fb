package hooks

import "errors"

// Hook system errors.
var (
	// ErrHandlerNotFound is returned when a handler cannot be found by ID.
	ErrHandlerNotFound = errors.New("handler not found")

	// ErrHandlerExists is returned when trying to register a handler with an existing ID.
	ErrHandlerExists = errors.New("handler already registered")

	// ErrHookTypeInvalid is returned when an invalid hook type is provided.
	ErrHookTypeInvalid = errors.New("invalid hook type")

	// ErrHandlerPanic is returned when a handler panics during execution.
	ErrHandlerPanic = errors.New("handler panic")
)
