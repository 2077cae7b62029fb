package accounts

import "errors"

var (
	// ErrNoCredentials is returned by Build when neither a default nor a named account is configured.
	ErrNoCredentials = errors.New("no bot credentials configured")

	// ErrInvalidAccount is returned when registering an account without a key or token.
	ErrInvalidAccount = errors.New("invalid account")
)
