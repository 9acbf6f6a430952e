package store

import "errors"

var (
	// ErrNotFound is returned when no account matches the lookup key.
	ErrNotFound = errors.New("not found")

	// ErrDuplicate is returned when an insert violates the email or
	// authenticator uniqueness constraint.
	ErrDuplicate = errors.New("duplicate account")

	// ErrStaleToken is returned when a token update would move
	// login_token_time backwards.
	ErrStaleToken = errors.New("login token time would move backwards")
)
