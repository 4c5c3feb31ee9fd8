package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/zxckotee/novels-sub001/session"
	"github.com/zxckotee/novels-sub001/token"
)

const (
	// DefaultBaseURL is the API root used when Options.BaseURL is empty.
	DefaultBaseURL = "http://localhost:8080/api/v1"
	// DefaultTimeout bounds every HTTP exchange.
	DefaultTimeout = 30 * time.Second

	refreshPath  = "/auth/refresh"
	logoutPath   = "/auth/logout"
	maxErrorBody = 64 << 10
)

// Session is the part of the session store the client reads and mutates.
type Session interface {
	Snapshot() session.Snapshot
	SetAccessToken(token string)
	Login(user session.User, token string)
	Logout()
}

// Hooks observe refresh outcomes. Nil fields are skipped.
type Hooks struct {
	OnRefresh            func(ok bool)
	OnUnauthorizedLogout func()
}

// Options configures a Client.
type Options struct {
	BaseURL string
	Timeout time.Duration
	// HTTPClient overrides the transport. A cookie jar is installed when it
	// has none.
	HTTPClient *http.Client
	Logger     *zap.Logger
	// RefreshLeeway is how close to expiry a JWT access token may be before
	// it is refreshed ahead of the request. Zero uses token.DefaultLeeway;
	// a negative value disables proactive refresh.
	RefreshLeeway time.Duration
	Hooks         Hooks
	// Now is the clock used for token expiry. Defaults to time.Now.
	Now func() time.Time
}

// Client is safe for concurrent use.
type Client struct {
	base    *url.URL
	http    *http.Client
	session Session
	logger  *zap.Logger
	leeway  time.Duration
	hooks   Hooks
	now     func() time.Time

	refreshMu sync.Mutex
	inflight  *refreshCall
}

type refreshCall struct {
	done  chan struct{}
	token string
	err   error
}

// New returns a Client bound to s.
func New(s Session, opts Options) (*Client, error) {
	if s == nil {
		return nil, fmt.Errorf("%w: session is nil", ErrInvalidConfig)
	}

	raw := opts.BaseURL
	if raw == "" {
		raw = DefaultBaseURL
	}
	base, err := url.Parse(strings.TrimRight(raw, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("%w: base url %q", ErrInvalidConfig, raw)
	}

	hc := opts.HTTPClient
	if hc == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		hc = &http.Client{Timeout: timeout}
	} else {
		cp := *hc
		hc = &cp
	}
	if hc.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("%w: cookie jar: %v", ErrInvalidConfig, err)
		}
		hc.Jar = jar
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	leeway := opts.RefreshLeeway
	if leeway == 0 {
		leeway = token.DefaultLeeway
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &Client{
		base:    base,
		http:    hc,
		session: s,
		logger:  logger.Named("apiclient"),
		leeway:  leeway,
		hooks:   opts.Hooks,
		now:     now,
	}, nil
}

// BaseURL returns the API root.
func (c *Client) BaseURL() string {
	return c.base.String()
}

// Get performs GET path and decodes the data field into out.
func (c *Client) Get(ctx context.Context, path string, out any) (*Meta, error) {
	return c.Do(ctx, http.MethodGet, path, nil, out)
}

// Post performs POST path with body encoded as JSON.
func (c *Client) Post(ctx context.Context, path string, body, out any) (*Meta, error) {
	return c.Do(ctx, http.MethodPost, path, body, out)
}

// Put performs PUT path with body encoded as JSON.
func (c *Client) Put(ctx context.Context, path string, body, out any) (*Meta, error) {
	return c.Do(ctx, http.MethodPut, path, body, out)
}

// Patch performs PATCH path with body encoded as JSON.
func (c *Client) Patch(ctx context.Context, path string, body, out any) (*Meta, error) {
	return c.Do(ctx, http.MethodPatch, path, body, out)
}

// Delete performs DELETE path.
func (c *Client) Delete(ctx context.Context, path string, out any) (*Meta, error) {
	return c.Do(ctx, http.MethodDelete, path, nil, out)
}

// Do sends one API request. body, when non-nil, is encoded as JSON. out,
// when non-nil, receives the envelope's data field.
func (c *Client) Do(ctx context.Context, method, path string, body, out any) (*Meta, error) {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
	}

	bearer, _ := c.session.Snapshot().AuthorizationToken()
	refreshable := !exemptFromRefresh(path)

	if refreshable && bearer != "" && c.leeway > 0 && token.Stale(bearer, c.now(), c.leeway) {
		c.logger.Debug("access token stale, refreshing before request", zap.String("path", path))
		fresh, err := c.refresh(ctx, bearer)
		if err != nil {
			return nil, c.refreshFailed(ctx, err)
		}
		bearer = fresh
	}

	resp, err := c.send(ctx, method, path, payload, bearer)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusUnauthorized && refreshable {
		drain(resp)
		c.logger.Debug("unauthorized, refreshing", zap.String("method", method), zap.String("path", path))

		fresh, err := c.refresh(ctx, bearer)
		if err != nil {
			return nil, c.refreshFailed(ctx, err)
		}
		resp, err = c.send(ctx, method, path, payload, fresh)
		if err != nil {
			return nil, err
		}
	}

	return decodeResponse(resp, out)
}

// Refresh exchanges the refresh cookie for a new access token and stores it.
func (c *Client) Refresh(ctx context.Context) (string, error) {
	bearer, _ := c.session.Snapshot().AuthorizationToken()
	return c.refresh(ctx, bearer)
}

// Login signs in and marks the session authenticated.
func (c *Client) Login(ctx context.Context, email, password string) (*session.User, error) {
	return c.authenticate(ctx, "/auth/login", LoginRequest{Email: email, Password: password})
}

// Register creates an account and signs in.
func (c *Client) Register(ctx context.Context, req RegisterRequest) (*session.User, error) {
	return c.authenticate(ctx, "/auth/register", req)
}

// Logout ends the server session and always clears the local session, even
// when the API call fails. The API error, if any, is returned. A 401 means
// the server session is already gone and counts as success.
func (c *Client) Logout(ctx context.Context) error {
	_, err := c.Post(ctx, logoutPath, nil, nil)
	if IsStatus(err, http.StatusUnauthorized) {
		err = nil
	}
	c.session.Logout()
	if err != nil {
		c.logger.Warn("logout request failed; local session cleared", zap.Error(err))
	}
	return err
}

// Me returns the user the API associates with the current token.
func (c *Client) Me(ctx context.Context) (*session.User, error) {
	var u User
	if _, err := c.Get(ctx, "/auth/me", &u); err != nil {
		return nil, err
	}
	if u.ID == "" {
		return nil, fmt.Errorf("%w: user without id", ErrMalformedResponse)
	}
	su := u.SessionUser()
	return &su, nil
}

func (c *Client) authenticate(ctx context.Context, path string, body any) (*session.User, error) {
	var res AuthResponse
	if _, err := c.Post(ctx, path, body, &res); err != nil {
		return nil, err
	}
	if res.User.ID == "" || res.AccessToken == "" {
		return nil, fmt.Errorf("%w: auth response without user or token", ErrMalformedResponse)
	}

	user := res.User.SessionUser()
	c.session.Login(user, res.AccessToken)
	c.logger.Info("signed in", zap.String("user_id", user.ID))
	return &user, nil
}

// refresh runs at most one refresh at a time; concurrent callers share the
// result of the call in flight. The exchange itself runs detached from ctx so
// a caller that gives up neither fails the refresh for the others nor
// discards a token the API already issued.
func (c *Client) refresh(ctx context.Context, stale string) (string, error) {
	c.refreshMu.Lock()
	call := c.inflight
	if call == nil {
		// Another caller may have refreshed since this one read its token.
		if current, ok := c.session.Snapshot().AuthorizationToken(); ok && stale != "" && current != stale {
			c.refreshMu.Unlock()
			return current, nil
		}
		call = &refreshCall{done: make(chan struct{})}
		c.inflight = call
		go c.runRefresh(context.WithoutCancel(ctx), call)
	}
	c.refreshMu.Unlock()

	select {
	case <-call.done:
		return call.token, call.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (c *Client) runRefresh(ctx context.Context, call *refreshCall) {
	timeout := c.http.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	call.token, call.err = c.exchangeRefresh(ctx)
	if call.err == nil {
		c.session.SetAccessToken(call.token)
	}
	if c.hooks.OnRefresh != nil {
		c.hooks.OnRefresh(call.err == nil)
	}

	c.refreshMu.Lock()
	c.inflight = nil
	c.refreshMu.Unlock()
	close(call.done)
}

func (c *Client) exchangeRefresh(ctx context.Context) (string, error) {
	resp, err := c.send(ctx, http.MethodPost, refreshPath, []byte("{}"), "")
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrRefreshFailed, err)
	}

	var out refreshResponse
	if _, err := decodeResponse(resp, &out); err != nil {
		return "", fmt.Errorf("%w: %v", ErrRefreshFailed, err)
	}
	if out.token() == "" {
		return "", fmt.Errorf("%w: empty token", ErrRefreshFailed)
	}
	return out.token(), nil
}

// refreshFailed decides what a failed refresh means for the session. A caller
// that cancelled or timed out gets its context error back and the session is
// kept; anything else ends the session.
func (c *Client) refreshFailed(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		c.logger.Debug("request abandoned during refresh; session kept", zap.Error(err))
		return err
	}
	return c.expire(err)
}

func (c *Client) expire(cause error) error {
	c.logger.Warn("refresh failed, logging out", zap.Error(cause))
	c.session.Logout()
	if c.hooks.OnUnauthorizedLogout != nil {
		c.hooks.OnUnauthorizedLogout()
	}
	return fmt.Errorf("%w: %v", ErrSessionExpired, cause)
}

func (c *Client) send(ctx context.Context, method, path string, payload []byte, bearer string) (*http.Response, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.resolve(path), body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	return resp, nil
}

func (c *Client) resolve(path string) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return c.base.String() + path
}

func decodeResponse(resp *http.Response, out any) (*Meta, error) {
	defer drain(resp)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, decodeError(resp)
	}
	if resp.StatusCode == http.StatusNoContent {
		return nil, nil
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if out != nil && len(env.Data) > 0 && string(env.Data) != "null" {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
		}
	}
	return env.Meta, nil
}

func decodeError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	var env errorEnvelope
	if json.Unmarshal(raw, &env) == nil && env.Error != nil {
		apiErr.Code = env.Error.Code
		apiErr.Message = env.Error.Message
		apiErr.Details = env.Error.Details
	}
	return apiErr
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
	_ = resp.Body.Close()
}

func exemptFromRefresh(path string) bool {
	p := path
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	p = "/" + strings.Trim(p, "/")
	switch p {
	case refreshPath, logoutPath, "/auth/login", "/auth/register":
		return true
	}
	return false
}
