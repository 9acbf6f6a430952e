package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/faucetdb/acctd/internal/model"
)

// Options configures a Store.
type Options struct {
	Driver          string // sqlite, postgres, mysql, sqlserver
	DSN             string // empty with the sqlite driver means in-memory
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	Logger          *slog.Logger
}

// Store is the account store. It is the only component that touches the
// accounts table and every query it issues is parameterized.
type Store struct {
	db      *sqlx.DB
	dialect dialect
	logger  *slog.Logger
}

// New opens the account store and applies pending migrations.
func New(ctx context.Context, opts Options) (*Store, error) {
	d, err := dialectFor(opts.Driver)
	if err != nil {
		return nil, err
	}

	dsn := opts.DSN
	if dsn == "" {
		if d.name != "sqlite" {
			return nil, fmt.Errorf("%s driver requires a dsn", d.name)
		}
		dsn = ":memory:"
	}

	db, err := sqlx.ConnectContext(ctx, d.driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open account database: %w", err)
	}

	if d.singleConn {
		// An in-memory database lives exactly as long as its one connection.
		db.SetMaxOpenConns(1)
	} else {
		if opts.MaxOpenConns > 0 {
			db.SetMaxOpenConns(opts.MaxOpenConns)
		}
		if opts.MaxIdleConns > 0 {
			db.SetMaxIdleConns(opts.MaxIdleConns)
		}
		if opts.ConnMaxLifetime > 0 {
			db.SetConnMaxLifetime(opts.ConnMaxLifetime)
		}
	}

	s := newWithDB(db, d, opts.Logger)
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate account database: %w", err)
	}
	return s, nil
}

func newWithDB(db *sqlx.DB, d dialect, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Store{db: db, dialect: d, logger: logger}
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Driver returns the dialect name the store was opened with.
func (s *Store) Driver() string {
	return s.dialect.name
}

const accountColumns = `id, create_time, email_addr, name, authenticator, passwd_hash, login_token, login_token_time`

// AccountByEmail looks an account up by email address, ignoring case and
// surrounding whitespace.
func (s *Store) AccountByEmail(ctx context.Context, email string) (*model.Account, error) {
	q := s.db.Rebind(`SELECT ` + accountColumns + ` FROM accounts WHERE email_key = ?`)

	var acct model.Account
	if err := s.db.GetContext(ctx, &acct, q, model.EmailKey(email)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get account by email: %w", err)
	}
	return &acct, nil
}

// AccountByID looks an account up by its numeric id.
func (s *Store) AccountByID(ctx context.Context, id int64) (*model.Account, error) {
	q := s.db.Rebind(`SELECT ` + accountColumns + ` FROM accounts WHERE id = ?`)

	var acct model.Account
	if err := s.db.GetContext(ctx, &acct, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get account by id: %w", err)
	}
	return &acct, nil
}

// BootstrapPasswdHash sets the password hash of an account whose hash is
// still unset. It reports false when a concurrent writer set the hash first;
// the caller must re-read the account in that case.
func (s *Store) BootstrapPasswdHash(ctx context.Context, id int64, hash string) (bool, error) {
	if hash == "" {
		return false, errors.New("bootstrap password hash: empty hash")
	}

	q := s.db.Rebind(`UPDATE accounts SET passwd_hash = ? WHERE id = ? AND passwd_hash = ''`)
	result, err := s.db.ExecContext(ctx, q, hash, id)
	if err != nil {
		return false, fmt.Errorf("bootstrap password hash: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("bootstrap password hash rows affected: %w", err)
	}
	if n > 0 {
		return true, nil
	}

	if _, err := s.AccountByID(ctx, id); err != nil {
		return false, err
	}
	return false, nil
}

// CreateAccount inserts a new account. ID is populated after a successful
// insert. A uniqueness violation on the email key or the authenticator is
// reported as ErrDuplicate.
func (s *Store) CreateAccount(ctx context.Context, acct *model.Account) error {
	if acct.EmailAddr == "" {
		return errors.New("create account: empty email address")
	}
	if acct.Authenticator == "" {
		return errors.New("create account: empty authenticator")
	}
	if acct.CreateTime == 0 {
		acct.CreateTime = time.Now().Unix()
	}

	q := s.db.Rebind(`INSERT INTO accounts
		(create_time, email_addr, email_key, name, authenticator, passwd_hash, login_token, login_token_time)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)

	_, err := s.db.ExecContext(ctx, q,
		acct.CreateTime, acct.EmailAddr, model.EmailKey(acct.EmailAddr), acct.Name,
		acct.Authenticator, acct.PasswdHash, acct.LoginToken, acct.LoginTokenTime)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", ErrDuplicate, acct.EmailAddr)
		}
		return fmt.Errorf("insert account: %w", err)
	}

	// LastInsertId is not available on every driver; the email key is unique.
	created, err := s.AccountByEmail(ctx, acct.EmailAddr)
	if err != nil {
		return fmt.Errorf("reload created account: %w", err)
	}
	acct.ID = created.ID
	return nil
}

// SetLoginToken stores a freshly issued login token. The issue time may not
// move backwards; an older issuedAt yields ErrStaleToken.
func (s *Store) SetLoginToken(ctx context.Context, id int64, token string, issuedAt time.Time) error {
	ts := issuedAt.Unix()
	q := s.db.Rebind(`UPDATE accounts SET login_token = ?, login_token_time = ?
		WHERE id = ? AND login_token_time <= ?`)

	result, err := s.db.ExecContext(ctx, q, token, ts, id, ts)
	if err != nil {
		return fmt.Errorf("set login token: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("set login token rows affected: %w", err)
	}
	if n > 0 {
		return nil
	}

	if _, err := s.AccountByID(ctx, id); err != nil {
		return err
	}
	return ErrStaleToken
}
