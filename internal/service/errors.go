package service

import "errors"

// Outcomes of the lookup operations. Operational causes are wrapped around
// these and matched with errors.Is.
var (
	ErrNotFound         = errors.New("account not found")
	ErrBadUserName      = errors.New("bad user name")
	ErrBadPassword      = errors.New("bad password")
	ErrBadToken         = errors.New("bad token")
	ErrTokenExpired     = errors.New("token timed out")
	ErrStoreUnavailable = errors.New("database unavailable")
	ErrCreationFailed   = errors.New("user record creation failed")
)
