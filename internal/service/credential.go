package service

import (
	"crypto/md5"
	"crypto/subtle"
	"encoding/hex"

	"github.com/faucetdb/acctd/internal/model"
)

// AuthHash is the authenticator-derived password hash of an account:
// md5(authenticator + email_addr), hex encoded. It is what an unset
// password hash is bootstrapped to and it stays a valid credential after
// the stored hash changes.
func AuthHash(acct *model.Account) string {
	return md5hex(acct.Authenticator + acct.EmailAddr)
}

// CredentialAccepted reports whether submitted is a valid password hash for
// acct. Two values are accepted: the stored password hash (when set) and
// the authenticator-derived AuthHash. Both comparisons always run.
func CredentialAccepted(submitted string, acct *model.Account) bool {
	if submitted == "" {
		return false
	}
	stored := acct.HasPasswdHash() && equal(submitted, acct.PasswdHash)
	derived := equal(submitted, AuthHash(acct))
	return stored || derived
}

func equal(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func md5hex(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}
