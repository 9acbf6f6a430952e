package directory

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/url"
	"time"

	"github.com/go-ldap/ldap/v3"
)

// LDAPConfig holds the connection and lookup settings of an LDAP directory.
type LDAPConfig struct {
	URL                string // ldap:// or ldaps://
	StartTLS           bool
	InsecureSkipVerify bool
	BindDN             string // service account; empty means anonymous search
	BindPassword       string
	BaseDN             string
	UIDAttribute       string // default "uid"
	NameAttribute      string // default "cn"
	Timeout            time.Duration
}

// session is the subset of *ldap.Conn the authenticator needs.
type session interface {
	StartTLS(config *tls.Config) error
	Bind(username, password string) error
	Search(req *ldap.SearchRequest) (*ldap.SearchResult, error)
	Close()
}

type ldapSession struct {
	*ldap.Conn
}

func (s ldapSession) Close() {
	s.Conn.Close()
}

// LDAP authenticates users with a search-then-bind against an LDAP server.
type LDAP struct {
	cfg  LDAPConfig
	dial func(ctx context.Context) (session, error)
}

// NewLDAP returns an LDAP directory for cfg.
func NewLDAP(cfg LDAPConfig) (*LDAP, error) {
	if cfg.URL == "" {
		return nil, errors.New("ldap url is required")
	}
	if cfg.BaseDN == "" {
		return nil, errors.New("ldap base dn is required")
	}
	if cfg.UIDAttribute == "" {
		cfg.UIDAttribute = "uid"
	}
	if cfg.NameAttribute == "" {
		cfg.NameAttribute = "cn"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	d := &LDAP{cfg: cfg}
	d.dial = d.dialURL
	return d, nil
}

func (d *LDAP) dialURL(ctx context.Context) (session, error) {
	conn, err := ldap.DialURL(d.cfg.URL,
		ldap.DialWithDialer(&net.Dialer{Timeout: d.cfg.Timeout}),
		ldap.DialWithTLSConfig(d.tlsConfig()),
	)
	if err != nil {
		return nil, err
	}
	conn.SetTimeout(d.cfg.Timeout)
	return ldapSession{conn}, nil
}

func (d *LDAP) tlsConfig() *tls.Config {
	cfg := &tls.Config{
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: d.cfg.InsecureSkipVerify,
	}
	if u, err := url.Parse(d.cfg.URL); err == nil {
		cfg.ServerName = u.Hostname()
	}
	return cfg
}

// Authenticate looks uid up under the base DN and binds as the entry found
// with the given password. Unknown users, ambiguous matches and refused
// binds all yield ErrRejected.
func (d *LDAP) Authenticate(ctx context.Context, uid, password string) (*Identity, error) {
	// An empty password turns the user bind into an unauthenticated bind,
	// which most servers accept.
	if uid == "" || password == "" {
		return nil, ErrRejected
	}

	conn, err := d.dial(ctx)
	if err != nil {
		return nil, fmt.Errorf("connect to directory: %w", err)
	}
	defer conn.Close()

	if d.cfg.StartTLS {
		if err := conn.StartTLS(d.tlsConfig()); err != nil {
			return nil, fmt.Errorf("start tls: %w", err)
		}
	}

	if d.cfg.BindDN != "" {
		if err := conn.Bind(d.cfg.BindDN, d.cfg.BindPassword); err != nil {
			return nil, fmt.Errorf("service bind: %w", err)
		}
	}

	req := ldap.NewSearchRequest(
		d.cfg.BaseDN,
		ldap.ScopeWholeSubtree, ldap.NeverDerefAliases,
		2, int(d.cfg.Timeout/time.Second), false,
		fmt.Sprintf("(%s=%s)", d.cfg.UIDAttribute, ldap.EscapeFilter(uid)),
		[]string{d.cfg.NameAttribute, "mail"},
		nil,
	)
	res, err := conn.Search(req)
	if err != nil {
		if ldap.IsErrorWithCode(err, ldap.LDAPResultNoSuchObject) {
			return nil, ErrRejected
		}
		return nil, fmt.Errorf("search directory: %w", err)
	}
	if len(res.Entries) != 1 {
		return nil, ErrRejected
	}
	entry := res.Entries[0]

	if err := conn.Bind(entry.DN, password); err != nil {
		if ldap.IsErrorWithCode(err, ldap.LDAPResultInvalidCredentials) {
			return nil, ErrRejected
		}
		return nil, fmt.Errorf("user bind: %w", err)
	}

	return &Identity{
		UID:   uid,
		Name:  entry.GetAttributeValue(d.cfg.NameAttribute),
		Email: entry.GetAttributeValue("mail"),
	}, nil
}
