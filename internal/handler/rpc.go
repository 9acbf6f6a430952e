package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/faucetdb/acctd/internal/model"
	"github.com/faucetdb/acctd/internal/server/middleware"
	"github.com/faucetdb/acctd/internal/service"
)

// Config is the explicit configuration of the lookup RPCs.
type Config struct {
	DirectoryAuthEnabled bool
	TokenFreshnessWindow time.Duration
	FailureDelay         time.Duration
}

// DefaultConfig returns the production defaults: directory mode off, a 24h
// token window and a 5s failure delay.
func DefaultConfig() Config {
	return Config{
		TokenFreshnessWindow: 24 * time.Hour,
		FailureDelay:         5 * time.Second,
	}
}

// Lookups is the account service as seen by the RPC handlers.
type Lookups interface {
	LookupAccount(ctx context.Context, q service.AccountQuery) (*service.LookupResult, error)
	LookupDirectory(ctx context.Context, q service.DirectoryQuery) (*service.LookupResult, error)
	LookupLoginToken(ctx context.Context, q service.TokenQuery, window time.Duration) (*service.TokenResult, error)
}

// AccountHandler serves lookup_account and login_token_lookup.
type AccountHandler struct {
	cfg    Config
	svc    Lookups
	delay  DelayFunc
	logger *slog.Logger
}

type Option func(*AccountHandler)

// WithDelay replaces the failure delay.
func WithDelay(fn DelayFunc) Option {
	return func(h *AccountHandler) {
		h.delay = fn
	}
}

// WithLogger sets the logger used for operational failures.
func WithLogger(logger *slog.Logger) Option {
	return func(h *AccountHandler) {
		h.logger = logger
	}
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(svc Lookups, cfg Config, opts ...Option) *AccountHandler {
	h := &AccountHandler{
		cfg:    cfg,
		svc:    svc,
		delay:  SleepDelay,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// LookupAccount resolves an account by email or by directory credentials.
// GET|POST /lookup_account
func (h *AccountHandler) LookupAccount(w http.ResponseWriter, r *http.Request) {
	if h.cfg.DirectoryAuthEnabled && formFlag(r, "directory_auth", "ldap_auth") {
		h.lookupDirectory(w, r)
		return
	}

	email := strings.TrimSpace(formString(r, "email_addr"))
	if email == "" {
		h.badParam(w, r, "email_addr")
		return
	}
	passwdHash := strings.TrimSpace(formString(r, "passwd_hash"))

	res, err := h.svc.LookupAccount(r.Context(), service.AccountQuery{
		Email:      email,
		PasswdHash: passwdHash,
	})
	if err != nil {
		h.fail(w, r, "lookup_account", err)
		return
	}

	middleware.Annotate(r.Context(), "account_id", res.AccountID)
	if passwdHash == "" {
		writeAccountID(w, res.AccountID)
		return
	}
	writeAuthenticator(w, res.Authenticator)
}

func (h *AccountHandler) lookupDirectory(w http.ResponseWriter, r *http.Request) {
	uid := strings.TrimSpace(formString(r, "directory_uid", "ldap_uid"))
	if uid == "" {
		h.badParam(w, r, "directory_uid")
		return
	}
	password := formString(r, "password", "passwd")
	if password == "" {
		h.badParam(w, r, "password")
		return
	}

	res, err := h.svc.LookupDirectory(r.Context(), service.DirectoryQuery{
		UID:      uid,
		Password: password,
	})
	if err != nil {
		h.fail(w, r, "lookup_account", err)
		return
	}

	middleware.Annotate(r.Context(), "account_id", res.AccountID)
	writeAuthenticator(w, res.Authenticator)
}

// LoginTokenLookup exchanges a login token for the account's weak
// authenticator and display name.
// GET|POST /login_token_lookup
func (h *AccountHandler) LoginTokenLookup(w http.ResponseWriter, r *http.Request) {
	rawID := strings.TrimSpace(formString(r, "user_id"))
	if rawID == "" {
		h.badParam(w, r, "user_id")
		return
	}
	token := formString(r, "token")
	if token == "" {
		h.badParam(w, r, "token")
		return
	}

	// An id that cannot name an account is reported like an unknown one.
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil || id <= 0 {
		h.fail(w, r, "login_token_lookup", service.ErrNotFound)
		return
	}

	res, err := h.svc.LookupLoginToken(r.Context(), service.TokenQuery{
		AccountID: id,
		Token:     token,
	}, h.cfg.TokenFreshnessWindow)
	if err != nil {
		h.fail(w, r, "login_token_lookup", err)
		return
	}

	middleware.Annotate(r.Context(), "account_id", res.AccountID)
	writeLoginToken(w, res.WeakAuth, res.UserName)
}

func (h *AccountHandler) badParam(w http.ResponseWriter, r *http.Request, name string) {
	middleware.Annotate(r.Context(), "error_num", model.ErrNumGeneric)
	writeRPCError(w, model.ErrNumGeneric, "missing or bad parameter: "+name)
}

// fail writes the error reply for err. Credential failures of lookup_account
// are held for the failure delay first.
func (h *AccountHandler) fail(w http.ResponseWriter, r *http.Request, rpc string, err error) {
	ctx := r.Context()
	num, msg := errorReply(err)
	middleware.Annotate(ctx, "error_num", num)

	switch {
	case errors.Is(err, service.ErrStoreUnavailable), errors.Is(err, service.ErrCreationFailed):
		h.logger.ErrorContext(ctx, "lookup failed",
			"rpc", rpc,
			"error", err,
			"request_id", middleware.GetRequestID(ctx),
		)
	case rpc == "lookup_account" && isCredentialFailure(err):
		h.delay(ctx, h.cfg.FailureDelay)
	}

	writeRPCError(w, num, msg)
}

func isCredentialFailure(err error) bool {
	return errors.Is(err, service.ErrNotFound) ||
		errors.Is(err, service.ErrBadPassword) ||
		errors.Is(err, service.ErrBadUserName)
}
