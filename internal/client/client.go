// Package client calls the lookup_account and login_token_lookup RPCs of an
// acctd server.
package client

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/faucetdb/acctd/internal/model"
)

const maxReplySize = 1 << 20

// RPCError is an <error> reply from the server.
type RPCError struct {
	Num int
	Msg string
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Num, e.Msg)
}

// Client talks to one acctd server.
type Client struct {
	baseURL    string
	httpClient *http.Client
	userAgent  string
}

type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithUserAgent sets the User-Agent header sent with every call.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// New returns a client for the server at baseURL, e.g. http://localhost:8080.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		userAgent:  "acctd-client",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// PasswdHash computes the password hash clients submit as passwd_hash.
func PasswdHash(password, email string) string {
	sum := md5.Sum([]byte(password + strings.ToLower(email)))
	return hex.EncodeToString(sum[:])
}

// LookupAccount resolves an account by email. An empty passwdHash probes for
// the account id; otherwise the reply carries the authenticator.
func (c *Client) LookupAccount(ctx context.Context, email, passwdHash string) (*model.AccountOut, error) {
	form := url.Values{"email_addr": {email}}
	if passwdHash != "" {
		form.Set("passwd_hash", passwdHash)
	}
	var out model.AccountOut
	if err := c.call(ctx, "/lookup_account", form, "account_out", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// LookupDirectory authenticates against the server's directory and returns
// the authenticator of the account bound to uid.
func (c *Client) LookupDirectory(ctx context.Context, uid, password string) (*model.AccountOut, error) {
	form := url.Values{
		"directory_auth": {"1"},
		"directory_uid":  {uid},
		"password":       {password},
	}
	var out model.AccountOut
	if err := c.call(ctx, "/lookup_account", form, "account_out", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// LoginTokenLookup exchanges a login token for the weak authenticator.
func (c *Client) LoginTokenLookup(ctx context.Context, accountID int64, token string) (*model.LoginTokenReply, error) {
	form := url.Values{
		"user_id": {strconv.FormatInt(accountID, 10)},
		"token":   {token},
	}
	var out model.LoginTokenReply
	if err := c.call(ctx, "/login_token_lookup", form, "login_token_reply", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// call posts form to path. Credentials travel in the body, never the URL.
func (c *Client) call(ctx context.Context, path string, form url.Values, root string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "text/xml")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("call %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxReplySize))
		return fmt.Errorf("call %s: unexpected status %s", path, resp.Status)
	}
	return decodeReply(io.LimitReader(resp.Body, maxReplySize), root, v)
}

// decodeReply decodes the document in r into v when its root element is
// root, and into an *RPCError when it is <error>.
func decodeReply(r io.Reader, root string, v any) error {
	dec := xml.NewDecoder(r)
	for {
		tok, err := dec.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return errors.New("decode reply: empty document")
			}
			return fmt.Errorf("decode reply: %w", err)
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}

		switch start.Name.Local {
		case "error":
			var reply model.ErrorReply
			if err := dec.DecodeElement(&reply, &start); err != nil {
				return fmt.Errorf("decode error reply: %w", err)
			}
			return &RPCError{Num: reply.Num, Msg: reply.Msg}
		case root:
			if err := dec.DecodeElement(v, &start); err != nil {
				return fmt.Errorf("decode %s: %w", root, err)
			}
			return nil
		default:
			return fmt.Errorf("decode reply: unexpected element <%s>", start.Name.Local)
		}
	}
}
