package model

import (
	"strings"
	"time"
)

// Account is the durable identity record resolved by the lookup RPCs.
// Timestamps are unix seconds so every supported driver stores and compares
// them the same way.
type Account struct {
	ID             int64  `json:"id" db:"id"`
	CreateTime     int64  `json:"create_time" db:"create_time"`
	EmailAddr      string `json:"email_addr" db:"email_addr"`
	Name           string `json:"name" db:"name"`
	Authenticator  string `json:"-" db:"authenticator"` // long-lived secret, never expose
	PasswdHash     string `json:"-" db:"passwd_hash"`
	LoginToken     string `json:"-" db:"login_token"`
	LoginTokenTime int64  `json:"login_token_time" db:"login_token_time"`
}

// HasPasswdHash reports whether the password hash has been bootstrapped.
func (a *Account) HasPasswdHash() bool {
	return a.PasswdHash != ""
}

// LoginTokenIssuedAt returns the issue time of the current login token.
func (a *Account) LoginTokenIssuedAt() time.Time {
	return time.Unix(a.LoginTokenTime, 0).UTC()
}

// EmailKey returns the normalized form of an email address used as the
// case-insensitive unique key.
func EmailKey(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
