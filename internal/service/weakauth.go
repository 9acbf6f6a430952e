package service

import (
	"strconv"

	"github.com/faucetdb/acctd/internal/model"
)

// WeakAuth derives the weak authentication value of an account from its
// stored secret state: "<id>_" followed by md5(authenticator + passwd_hash).
// It changes when the password hash changes and never equals the
// authenticator.
func WeakAuth(acct *model.Account) string {
	return strconv.FormatInt(acct.ID, 10) + "_" + md5hex(acct.Authenticator+acct.PasswdHash)
}
