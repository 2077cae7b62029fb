package commands

import "errors"

var (
	// ErrCommandNotFound is returned when no command is registered under a name.
	ErrCommandNotFound = errors.New("command not found")
	// ErrCommandExists is returned when registering a name twice.
	ErrCommandExists = errors.New("command already registered")
	// ErrInvalidCommand is returned for a command without a name or handler.
	ErrInvalidCommand = errors.New("invalid command")
	// ErrUnauthorized is returned when a command requires an authorized sender.
	ErrUnauthorized = errors.New("sender not authorized")
	// ErrUnexpectedArgs is returned when arguments are passed to a command that takes none.
	ErrUnexpectedArgs = errors.New("command takes no arguments")
)
