package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/faucetdb/acctd/internal/handler"
	"github.com/faucetdb/acctd/internal/model"
	"github.com/faucetdb/acctd/internal/service"
	"github.com/faucetdb/acctd/internal/store"
)

// ---------------------------------------------------------------------------
// Test helpers
// ---------------------------------------------------------------------------

// testEnv holds all the shared state for integration tests.
type testEnv struct {
	server *Server
	store  *store.Store
}

// newTestEnv creates a fresh test environment with an in-memory account
// store and a fully wired Server. The failure delay is disabled.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	st, err := store.New(context.Background(), store.Options{Driver: "sqlite"}) // in-memory
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := service.NewAccountService(st, nil)
	rpc := handler.NewAccountHandler(svc, handler.DefaultConfig(),
		handler.WithDelay(func(context.Context, time.Duration) {}),
		handler.WithLogger(logger),
	)

	return &testEnv{
		server: New(DefaultConfig(), st, rpc, logger),
		store:  st,
	}
}

func (e *testEnv) do(t *testing.T, method, path string, body io.Reader, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	e.server.ServeHTTP(rr, req)
	return rr
}

func assertStatus(t *testing.T, rr *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rr.Code != want {
		t.Errorf("status: got %d, want %d; body: %s", rr.Code, want, rr.Body.String())
	}
}

func assertContentType(t *testing.T, rr *httptest.ResponseRecorder, want string) {
	t.Helper()
	got := rr.Header().Get("Content-Type")
	if !strings.HasPrefix(got, want) {
		t.Errorf("Content-Type: got %q, want prefix %q", got, want)
	}
}

func decodeJSON(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(rr.Body).Decode(v); err != nil {
		t.Fatalf("decodeJSON: %v (body: %s)", err, rr.Body.String())
	}
}

// ---------------------------------------------------------------------------
// Health checks
// ---------------------------------------------------------------------------

func TestHealthz(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, "GET", "/healthz", nil, nil)
	assertStatus(t, rr, http.StatusOK)
	assertContentType(t, rr, "application/json")

	var resp map[string]string
	decodeJSON(t, rr, &resp)
	if resp["status"] != "ok" {
		t.Errorf("status: got %q, want %q", resp["status"], "ok")
	}
}

func TestReadyz(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, "GET", "/readyz", nil, nil)
	assertStatus(t, rr, http.StatusOK)

	var resp struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	decodeJSON(t, rr, &resp)
	if resp.Status != "ok" || resp.Checks["store"] != "ok" {
		t.Errorf("got %+v, want ok", resp)
	}
}

type downStore struct{}

func (downStore) Ping(ctx context.Context) error {
	return errors.New("dial tcp 10.0.0.5:5432: connection refused")
}

func TestReadyzStoreDown(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	rpc := handler.NewAccountHandler(service.NewAccountService(nil, nil), handler.DefaultConfig())
	srv := New(DefaultConfig(), downStore{}, rpc, logger)

	rr := httptest.NewRecorder()
	srv.ServeHTTP(rr, httptest.NewRequest("GET", "/readyz", nil))
	assertStatus(t, rr, http.StatusServiceUnavailable)

	if strings.Contains(rr.Body.String(), "10.0.0.5") {
		t.Error("readiness body leaks the store address")
	}
}

// ---------------------------------------------------------------------------
// RPC routes
// ---------------------------------------------------------------------------

func TestRPCRoutes(t *testing.T) {
	env := newTestEnv(t)
	acct := &model.Account{
		EmailAddr:      "a@x.com",
		Name:           "Alice",
		Authenticator:  "SECRET",
		LoginToken:     "tok123",
		LoginTokenTime: time.Now().Unix(),
	}
	if err := env.store.CreateAccount(context.Background(), acct); err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}

	lookup := url.Values{"email_addr": {"a@x.com"}}.Encode()
	token := url.Values{"user_id": {fmt.Sprint(acct.ID)}, "token": {"tok123"}}.Encode()

	tests := []struct {
		method string
		path   string
		query  string
		want   string
	}{
		{"GET", "/lookup_account", lookup, "<success/>"},
		{"GET", "/lookup_account.php", lookup, "<success/>"},
		{"POST", "/lookup_account", lookup, "<success/>"},
		{"POST", "/lookup_account.php", lookup, "<success/>"},
		{"GET", "/login_token_lookup", token, "<user_name>Alice</user_name>"},
		{"GET", "/login_token_lookup.php", token, "<user_name>Alice</user_name>"},
		{"POST", "/login_token_lookup", token, "<user_name>Alice</user_name>"},
		{"POST", "/login_token_lookup.php", token, "<user_name>Alice</user_name>"},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			var rr *httptest.ResponseRecorder
			if tt.method == "GET" {
				rr = env.do(t, "GET", tt.path+"?"+tt.query, nil, nil)
			} else {
				rr = env.do(t, "POST", tt.path, strings.NewReader(tt.query), nil)
			}
			assertStatus(t, rr, http.StatusOK)
			assertContentType(t, rr, "text/xml")
			if !strings.Contains(rr.Body.String(), tt.want) {
				t.Errorf("body %q does not contain %q", rr.Body.String(), tt.want)
			}
		})
	}
}

func TestRPCErrorsAreHTTP200(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, "GET", "/lookup_account?email_addr=nobody@x.com", nil, nil)
	assertStatus(t, rr, http.StatusOK)
	if !strings.Contains(rr.Body.String(), "<error_num>-136</error_num>") {
		t.Errorf("expected not found error, got %s", rr.Body.String())
	}
}

func TestRequestIDHeader(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, "GET", "/healthz", nil, map[string]string{"X-Request-ID": "trace-abc"})
	if got := rr.Header().Get("X-Request-ID"); got != "trace-abc" {
		t.Errorf("got X-Request-ID %q, want %q", got, "trace-abc")
	}
}

func TestOpenAPISpec(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, "GET", "/openapi.json", nil, nil)
	assertStatus(t, rr, http.StatusOK)
	assertContentType(t, rr, "application/json")

	var spec map[string]interface{}
	decodeJSON(t, rr, &spec)
	if spec["openapi"] != "3.1.0" {
		t.Errorf("openapi: got %v, want 3.1.0", spec["openapi"])
	}
}

func TestUnknownRoute(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, "GET", "/api/v1/system/admin", nil, nil)
	assertStatus(t, rr, http.StatusNotFound)
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, "OPTIONS", "/lookup_account", nil, map[string]string{
		"Origin":                        "https://example.org",
		"Access-Control-Request-Method": "POST",
	})
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got == "" {
		t.Error("expected Access-Control-Allow-Origin on preflight")
	}
}
