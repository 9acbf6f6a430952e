package directory

import (
	"context"
	"crypto/tls"
	"errors"
	"sync"
	"testing"

	"github.com/go-ldap/ldap/v3"
	"github.com/stretchr/testify/require"

	"github.com/faucetdb/acctd/internal/model"
	"github.com/faucetdb/acctd/internal/store"
)

// fakeDirectory accepts a fixed set of uid/password pairs.
type fakeDirectory struct {
	users map[string]string
	names map[string]string
	err   error

	mu    sync.Mutex
	calls int
}

func (f *fakeDirectory) Authenticate(ctx context.Context, uid, password string) (*Identity, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	if f.err != nil {
		return nil, f.err
	}
	if pw, ok := f.users[uid]; !ok || pw != password {
		return nil, ErrRejected
	}
	return &Identity{UID: uid, Name: f.names[uid]}, nil
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.New(context.Background(), store.Options{Driver: "sqlite"})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestEmailString(t *testing.T) {
	require.Equal(t, "ldap_uid:jdoe", EmailString("jdoe"))
	require.NotContains(t, EmailString("jdoe"), "@")
}

func TestResolveProvisionsNewAccount(t *testing.T) {
	st := newTestStore(t)
	dir := &fakeDirectory{
		users: map[string]string{"jdoe": "pw"},
		names: map[string]string{"jdoe": "John Doe"},
	}
	p := NewProvisioner(dir, st, nil)

	acct, err := p.Resolve(context.Background(), "jdoe", "pw")
	require.NoError(t, err)
	require.NotZero(t, acct.ID)
	require.Equal(t, "ldap_uid:jdoe", acct.EmailAddr)
	require.Equal(t, "John Doe", acct.Name)
	require.Len(t, acct.Authenticator, 64)

	stored, err := st.AccountByEmail(context.Background(), "ldap_uid:jdoe")
	require.NoError(t, err)
	require.Equal(t, acct.ID, stored.ID)
	require.Equal(t, acct.Authenticator, stored.Authenticator)
}

func TestResolveReturnsExistingAccount(t *testing.T) {
	st := newTestStore(t)
	existing := &model.Account{EmailAddr: "ldap_uid:jdoe", Name: "J", Authenticator: "known-auth"}
	require.NoError(t, st.CreateAccount(context.Background(), existing))

	p := NewProvisioner(&fakeDirectory{users: map[string]string{"jdoe": "pw"}}, st, nil)

	acct, err := p.Resolve(context.Background(), "jdoe", "pw")
	require.NoError(t, err)
	require.Equal(t, existing.ID, acct.ID)
	require.Equal(t, "known-auth", acct.Authenticator)
}

func TestResolveRejected(t *testing.T) {
	st := newTestStore(t)
	p := NewProvisioner(&fakeDirectory{users: map[string]string{"jdoe": "pw"}}, st, nil)

	_, err := p.Resolve(context.Background(), "jdoe", "wrong")
	require.ErrorIs(t, err, ErrRejected)

	// No account is created for a rejected user.
	_, err = st.AccountByEmail(context.Background(), "ldap_uid:jdoe")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestResolveDirectoryUnavailable(t *testing.T) {
	st := newTestStore(t)
	p := NewProvisioner(&fakeDirectory{err: errors.New("connection refused")}, st, nil)

	_, err := p.Resolve(context.Background(), "jdoe", "pw")
	require.ErrorIs(t, err, ErrRejected)
	require.Contains(t, err.Error(), "connection refused")
}

// raceStore simulates a concurrent provisioner winning the insert.
type raceStore struct {
	createErr error
}

func (r *raceStore) AccountByEmail(ctx context.Context, email string) (*model.Account, error) {
	return nil, store.ErrNotFound
}

func (r *raceStore) CreateAccount(ctx context.Context, acct *model.Account) error {
	return r.createErr
}

func TestResolveCreationRace(t *testing.T) {
	dir := &fakeDirectory{users: map[string]string{"jdoe": "pw"}}
	p := NewProvisioner(dir, &raceStore{createErr: store.ErrDuplicate}, nil)

	_, err := p.Resolve(context.Background(), "jdoe", "pw")
	require.ErrorIs(t, err, ErrCreation)
}

func TestResolveStoreFailurePropagates(t *testing.T) {
	dir := &fakeDirectory{users: map[string]string{"jdoe": "pw"}}
	storeErr := errors.New("disk full")
	p := NewProvisioner(dir, &raceStore{createErr: storeErr}, nil)

	_, err := p.Resolve(context.Background(), "jdoe", "pw")
	require.ErrorIs(t, err, storeErr)
	require.NotErrorIs(t, err, ErrCreation)
	require.NotErrorIs(t, err, ErrRejected)
}

func TestResolveAuthenticatorFailure(t *testing.T) {
	st := newTestStore(t)
	p := NewProvisioner(&fakeDirectory{users: map[string]string{"jdoe": "pw"}}, st, nil)
	p.newAuthenticator = func() (string, error) { return "", errors.New("entropy exhausted") }

	_, err := p.Resolve(context.Background(), "jdoe", "pw")
	require.ErrorIs(t, err, ErrCreation)
}

func TestConcurrentResolveCreatesOneAccount(t *testing.T) {
	st := newTestStore(t)
	p := NewProvisioner(&fakeDirectory{users: map[string]string{"jdoe": "pw"}}, st, nil)

	const n = 8
	var wg sync.WaitGroup
	ids := make(chan int64, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			acct, err := p.Resolve(context.Background(), "jdoe", "pw")
			if err != nil {
				if !errors.Is(err, ErrCreation) {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			ids <- acct.ID
		}()
	}
	wg.Wait()
	close(ids)

	var first int64
	for id := range ids {
		if first == 0 {
			first = id
		}
		require.Equal(t, first, id)
	}
	require.NotZero(t, first)
}

func TestNewAuthenticatorIsRandom(t *testing.T) {
	a, err := NewAuthenticator()
	require.NoError(t, err)
	b, err := NewAuthenticator()
	require.NoError(t, err)
	require.Len(t, a, 64)
	require.NotEqual(t, a, b)
}

// fakeSession records the LDAP operations issued by Authenticate.
type fakeSession struct {
	binds    [][2]string
	filter   string
	entries  []*ldap.Entry
	userErr  error
	startTLS bool
	closed   bool
}

func (f *fakeSession) StartTLS(config *tls.Config) error {
	f.startTLS = true
	return nil
}

func (f *fakeSession) Bind(username, password string) error {
	f.binds = append(f.binds, [2]string{username, password})
	if username != "cn=svc,dc=example,dc=org" {
		return f.userErr
	}
	return nil
}

func (f *fakeSession) Search(req *ldap.SearchRequest) (*ldap.SearchResult, error) {
	f.filter = req.Filter
	return &ldap.SearchResult{Entries: f.entries}, nil
}

func (f *fakeSession) Close() {
	f.closed = true
}

func newTestLDAP(t *testing.T, sess *fakeSession) *LDAP {
	t.Helper()
	d, err := NewLDAP(LDAPConfig{
		URL:          "ldap://ldap.example.org",
		StartTLS:     true,
		BindDN:       "cn=svc,dc=example,dc=org",
		BindPassword: "svc-pw",
		BaseDN:       "dc=example,dc=org",
	})
	require.NoError(t, err)
	d.dial = func(ctx context.Context) (session, error) { return sess, nil }
	return d
}

func TestLDAPAuthenticate(t *testing.T) {
	entry := ldap.NewEntry("uid=jdoe,ou=people,dc=example,dc=org", map[string][]string{
		"cn":   {"John Doe"},
		"mail": {"jdoe@example.org"},
	})
	sess := &fakeSession{entries: []*ldap.Entry{entry}}
	d := newTestLDAP(t, sess)

	ident, err := d.Authenticate(context.Background(), "jdoe", "pw")
	require.NoError(t, err)
	require.Equal(t, "jdoe", ident.UID)
	require.Equal(t, "John Doe", ident.Name)
	require.Equal(t, "jdoe@example.org", ident.Email)

	require.True(t, sess.startTLS)
	require.True(t, sess.closed)
	require.Equal(t, "(uid=jdoe)", sess.filter)
	require.Equal(t, [][2]string{
		{"cn=svc,dc=example,dc=org", "svc-pw"},
		{"uid=jdoe,ou=people,dc=example,dc=org", "pw"},
	}, sess.binds)
}

func TestLDAPEscapesFilter(t *testing.T) {
	sess := &fakeSession{}
	d := newTestLDAP(t, sess)

	_, err := d.Authenticate(context.Background(), "*)(uid=*", "pw")
	require.ErrorIs(t, err, ErrRejected)
	require.Equal(t, `(uid=\2a\29\28uid=\2a)`, sess.filter)
}

func TestLDAPRejectsBadPassword(t *testing.T) {
	entry := ldap.NewEntry("uid=jdoe,dc=example,dc=org", nil)
	sess := &fakeSession{
		entries: []*ldap.Entry{entry},
		userErr: ldap.NewError(ldap.LDAPResultInvalidCredentials, errors.New("invalid credentials")),
	}
	d := newTestLDAP(t, sess)

	_, err := d.Authenticate(context.Background(), "jdoe", "wrong")
	require.ErrorIs(t, err, ErrRejected)
}

func TestLDAPRejectsAmbiguousUID(t *testing.T) {
	sess := &fakeSession{entries: []*ldap.Entry{
		ldap.NewEntry("uid=jdoe,ou=a,dc=example,dc=org", nil),
		ldap.NewEntry("uid=jdoe,ou=b,dc=example,dc=org", nil),
	}}
	d := newTestLDAP(t, sess)

	_, err := d.Authenticate(context.Background(), "jdoe", "pw")
	require.ErrorIs(t, err, ErrRejected)
}

func TestLDAPRejectsEmptyPassword(t *testing.T) {
	sess := &fakeSession{}
	d := newTestLDAP(t, sess)

	_, err := d.Authenticate(context.Background(), "jdoe", "")
	require.ErrorIs(t, err, ErrRejected)
	require.Empty(t, sess.binds)
}

func TestNewLDAPValidation(t *testing.T) {
	_, err := NewLDAP(LDAPConfig{BaseDN: "dc=example,dc=org"})
	require.Error(t, err)

	_, err = NewLDAP(LDAPConfig{URL: "ldap://localhost"})
	require.Error(t, err)

	d, err := NewLDAP(LDAPConfig{URL: "ldaps://ldap.example.org:636", BaseDN: "dc=example,dc=org"})
	require.NoError(t, err)
	require.Equal(t, "uid", d.cfg.UIDAttribute)
	require.Equal(t, "cn", d.cfg.NameAttribute)
	require.Equal(t, "ldap.example.org", d.tlsConfig().ServerName)
}
