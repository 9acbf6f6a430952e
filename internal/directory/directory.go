// Package directory delegates authentication to an external LDAP directory
// and provisions local accounts for directory users on first login.
package directory

import (
	"context"
	"errors"
)

var (
	// ErrRejected means the directory refused the credentials or could not
	// be asked. Callers must treat it as an authentication failure.
	ErrRejected = errors.New("directory rejected credentials")

	// ErrCreation means a local account could not be created for an
	// authenticated directory user.
	ErrCreation = errors.New("user record creation failed")
)

// Identity is what the directory knows about an authenticated user.
type Identity struct {
	UID   string
	Name  string
	Email string
}

// Directory authenticates a uid/password pair against an external identity
// service.
type Directory interface {
	Authenticate(ctx context.Context, uid, password string) (*Identity, error)
}

// EmailString returns the local email-equivalent key of a directory user.
// It contains no '@' so it can never collide with a real address.
func EmailString(uid string) string {
	return "ldap_uid:" + uid
}
