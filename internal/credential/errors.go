package credential

import "errors"

var (
	// ErrInvalidInput is returned for malformed, caller-fixable requests.
	ErrInvalidInput = errors.New("invalid input")
	// ErrMissingInput means neither a password nor a token was supplied.
	ErrMissingInput = errors.New("password or token required")
	// ErrNotFound means no credential matched the supplied code.
	ErrNotFound = errors.New("credential not found")
	// ErrAlreadyConsumed means the credential reached a terminal state,
	// typically because another guard confirmed it first.
	ErrAlreadyConsumed = errors.New("credential already consumed")
	// ErrExpired means the credential's deadline has passed.
	ErrExpired = errors.New("credential expired")
	// ErrGenerationConflict means password/token generation kept colliding
	// with existing credentials and the retry budget ran out.
	ErrGenerationConflict = errors.New("credential generation exhausted retries")
)
