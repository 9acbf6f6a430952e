package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/faucetdb/acctd/internal/directory"
	"github.com/faucetdb/acctd/internal/model"
	"github.com/faucetdb/acctd/internal/store"
)

// AccountStore is the part of the account store the lookups read and write.
type AccountStore interface {
	AccountByEmail(ctx context.Context, email string) (*model.Account, error)
	AccountByID(ctx context.Context, id int64) (*model.Account, error)
	BootstrapPasswdHash(ctx context.Context, id int64, hash string) (bool, error)
}

// Provisioner resolves directory credentials to a local account.
type Provisioner interface {
	Resolve(ctx context.Context, uid, password string) (*model.Account, error)
}

// AccountQuery asks for an account by email, optionally with a password hash.
// Without a hash the lookup is an existence probe.
type AccountQuery struct {
	Email      string
	PasswdHash string
}

// DirectoryQuery asks for an account by directory credentials.
type DirectoryQuery struct {
	UID      string
	Password string
}

// TokenQuery asks for the weak identity of an account holding a login token.
type TokenQuery struct {
	AccountID int64
	Token     string
}

// LookupResult is a successful account lookup. Authenticator is empty for
// an existence probe.
type LookupResult struct {
	AccountID     int64
	Authenticator string
}

// TokenResult is a successful login token lookup.
type TokenResult struct {
	AccountID int64
	WeakAuth  string
	UserName  string
}

type AccountService struct {
	store       AccountStore
	provisioner Provisioner
	now         func() time.Time
}

type Option func(*AccountService)

// WithClock replaces the clock used for token freshness.
func WithClock(now func() time.Time) Option {
	return func(s *AccountService) {
		s.now = now
	}
}

// NewAccountService returns an AccountService. provisioner may be nil when
// directory authentication is not configured.
func NewAccountService(st AccountStore, provisioner Provisioner, opts ...Option) *AccountService {
	s := &AccountService{
		store:       st,
		provisioner: provisioner,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// LookupAccount resolves an account by email. With a password hash it
// verifies the credential, bootstrapping an unset stored hash first, and
// returns the authenticator.
func (s *AccountService) LookupAccount(ctx context.Context, q AccountQuery) (*LookupResult, error) {
	acct, err := s.store.AccountByEmail(ctx, q.Email)
	if err != nil {
		return nil, storeError(err)
	}

	if q.PasswdHash == "" {
		return &LookupResult{AccountID: acct.ID}, nil
	}

	if !acct.HasPasswdHash() {
		acct, err = s.bootstrap(ctx, acct)
		if err != nil {
			return nil, err
		}
	}

	if !CredentialAccepted(q.PasswdHash, acct) {
		return nil, ErrBadPassword
	}
	return &LookupResult{AccountID: acct.ID, Authenticator: acct.Authenticator}, nil
}

// bootstrap sets the unset password hash of acct to its AuthHash. When a
// concurrent request set it first, the account is re-read so the winner's
// value is the one compared against.
func (s *AccountService) bootstrap(ctx context.Context, acct *model.Account) (*model.Account, error) {
	hash := AuthHash(acct)
	won, err := s.store.BootstrapPasswdHash(ctx, acct.ID, hash)
	if err != nil {
		return nil, storeError(err)
	}
	if won {
		acct.PasswdHash = hash
		return acct, nil
	}

	acct, err = s.store.AccountByID(ctx, acct.ID)
	if err != nil {
		return nil, storeError(err)
	}
	return acct, nil
}

// LookupDirectory authenticates against the directory, provisioning the
// local account on first login, and returns the authenticator.
func (s *AccountService) LookupDirectory(ctx context.Context, q DirectoryQuery) (*LookupResult, error) {
	if s.provisioner == nil {
		return nil, fmt.Errorf("%w: directory authentication is not configured", ErrBadUserName)
	}

	acct, err := s.provisioner.Resolve(ctx, q.UID, q.Password)
	if err != nil {
		switch {
		case errors.Is(err, directory.ErrRejected):
			return nil, fmt.Errorf("%w: %v", ErrBadUserName, err)
		case errors.Is(err, directory.ErrCreation):
			return nil, fmt.Errorf("%w: %v", ErrCreationFailed, err)
		default:
			return nil, storeError(err)
		}
	}
	return &LookupResult{AccountID: acct.ID, Authenticator: acct.Authenticator}, nil
}

// LookupLoginToken verifies a login token and returns the account's display
// name and weak authentication value. A token is valid while its age is at
// most window.
func (s *AccountService) LookupLoginToken(ctx context.Context, q TokenQuery, window time.Duration) (*TokenResult, error) {
	acct, err := s.store.AccountByID(ctx, q.AccountID)
	if err != nil {
		return nil, storeError(err)
	}

	if acct.LoginToken == "" || !equal(q.Token, acct.LoginToken) {
		return nil, ErrBadToken
	}

	age := s.now().Unix() - acct.LoginTokenTime
	if age > int64(window/time.Second) {
		return nil, ErrTokenExpired
	}

	return &TokenResult{
		AccountID: acct.ID,
		WeakAuth:  WeakAuth(acct),
		UserName:  acct.Name,
	}, nil
}

func storeError(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return ErrNotFound
	}
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}
