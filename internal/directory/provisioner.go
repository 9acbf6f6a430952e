package directory

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/faucetdb/acctd/internal/model"
	"github.com/faucetdb/acctd/internal/store"
)

// AccountStore is the part of the account store the provisioner uses.
type AccountStore interface {
	AccountByEmail(ctx context.Context, email string) (*model.Account, error)
	CreateAccount(ctx context.Context, acct *model.Account) error
}

// Provisioner maps authenticated directory users onto local accounts,
// creating the account on first login.
type Provisioner struct {
	dir    Directory
	store  AccountStore
	logger *slog.Logger

	newAuthenticator func() (string, error)
	now              func() time.Time
}

// NewProvisioner returns a Provisioner backed by dir and st.
func NewProvisioner(dir Directory, st AccountStore, logger *slog.Logger) *Provisioner {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Provisioner{
		dir:              dir,
		store:            st,
		logger:           logger,
		newAuthenticator: NewAuthenticator,
		now:              time.Now,
	}
}

// Resolve authenticates uid against the directory and returns its local
// account. Directory failures of any kind are reported as ErrRejected.
// A concurrent creation of the same account is reported as ErrCreation
// rather than retried. Other errors come from the account store.
func (p *Provisioner) Resolve(ctx context.Context, uid, password string) (*model.Account, error) {
	ident, err := p.dir.Authenticate(ctx, uid, password)
	if err != nil {
		if errors.Is(err, ErrRejected) {
			return nil, err
		}
		p.logger.Warn("directory authentication failed", "uid", uid, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrRejected, err)
	}

	email := EmailString(uid)
	acct, err := p.store.AccountByEmail(ctx, email)
	if err == nil {
		return acct, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("look up directory account: %w", err)
	}

	auth, err := p.newAuthenticator()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCreation, err)
	}

	acct = &model.Account{
		CreateTime:    p.now().Unix(),
		EmailAddr:     email,
		Name:          displayName(ident),
		Authenticator: auth,
	}
	if err := p.store.CreateAccount(ctx, acct); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, fmt.Errorf("%w: %v", ErrCreation, err)
		}
		return nil, fmt.Errorf("create directory account: %w", err)
	}

	p.logger.Info("provisioned directory account", "uid", uid, "account_id", acct.ID)
	return acct, nil
}

func displayName(ident *Identity) string {
	switch {
	case ident.Name != "":
		return ident.Name
	case ident.Email != "":
		return ident.Email
	default:
		return ident.UID
	}
}

// NewAuthenticator returns a fresh random account authenticator.
func NewAuthenticator() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate authenticator: %w", err)
	}
	return hex.EncodeToString(b), nil
}
