package config

import (
	"net/url"
	"regexp"
	"strings"

	mysqldriver "github.com/go-sql-driver/mysql"
)

const redacted = "xxxxx"

var keywordPassword = regexp.MustCompile(`(?i)(password\s*=\s*)('[^']*'|[^\s;]*)`)

// Redacted returns a copy of c with passwords masked, for display.
func (c Config) Redacted() Config {
	c.Store.DSN = RedactDSN(c.Store.Driver, c.Store.DSN)
	if c.Directory.BindPassword != "" {
		c.Directory.BindPassword = redacted
	}
	return c
}

// RedactDSN masks the password in a data source name. URL-style DSNs,
// MySQL DSNs and keyword/value DSNs are understood.
func RedactDSN(driver, dsn string) string {
	if dsn == "" {
		return dsn
	}

	if strings.Contains(dsn, "://") {
		if u, err := url.Parse(dsn); err == nil {
			if _, ok := u.User.Password(); ok {
				u.User = url.UserPassword(u.User.Username(), redacted)
			}
			q := u.Query()
			for key := range q {
				if strings.EqualFold(key, "password") {
					q.Set(key, redacted)
				}
			}
			u.RawQuery = q.Encode()
			return u.String()
		}
	}

	if strings.EqualFold(driver, "mysql") {
		if cfg, err := mysqldriver.ParseDSN(dsn); err == nil {
			if cfg.Passwd != "" {
				cfg.Passwd = redacted
			}
			return cfg.FormatDSN()
		}
	}

	return keywordPassword.ReplaceAllString(dsn, "${1}"+redacted)
}
