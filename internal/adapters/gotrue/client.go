package gotrue

// Package gotrue implements ports.AuthClient against the Supabase GoTrue REST API.
// One Client is bound to one browser's storage namespace, which plays the role of
// the browser's localStorage: the session is persisted there as JSON.

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"

	domainauth "github.com/scolay/storefront/internal/domain/auth"
	"github.com/scolay/storefront/internal/ports"
)

const (
	defaultStorageKey = "scolay-auth-token"
	defaultTimeout    = 30 * time.Second
	// expiryMargin refreshes tokens that are about to expire.
	expiryMargin = 30 * time.Second
	// listenerTimeout bounds storage reads done on behalf of a new subscriber.
	listenerTimeout = 5 * time.Second
)

// Config holds settings shared by every browser's client.
type Config struct {
	// URL is the Supabase project URL; the auth API lives under /auth/v1.
	URL     string
	AnonKey string

	// StorageKey names the storage entry holding the session. Defaults to "scolay-auth-token".
	StorageKey string

	// Verifier, when set, checks stored access tokens before they are trusted.
	Verifier TokenVerifier

	// HTTPClient is used for all API calls. Defaults to a client with a 30s timeout.
	HTTPClient *http.Client

	Now    func() time.Time
	Logger *slog.Logger
}

// Validate checks required fields.
func (c Config) Validate() error {
	if strings.TrimSpace(c.URL) == "" {
		return errors.New("supabase url is required")
	}
	if _, err := url.Parse(c.URL); err != nil {
		return fmt.Errorf("invalid supabase url: %w", err)
	}
	if strings.TrimSpace(c.AnonKey) == "" {
		return errors.New("supabase anon key is required")
	}
	return nil
}

// Factory builds per-browser clients sharing one HTTP client.
type Factory struct {
	cfg     Config
	baseURL string
	http    *http.Client
}

// NewFactory validates cfg and returns a Factory.
func NewFactory(cfg Config) (*Factory, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.StorageKey == "" {
		cfg.StorageKey = defaultStorageKey
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	base := cfg.HTTPClient
	if base == nil {
		base = &http.Client{Timeout: defaultTimeout}
	}
	transport := base.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	hc := *base
	hc.Transport = &apiKeyTransport{apiKey: cfg.AnonKey, base: transport}

	return &Factory{
		cfg:     cfg,
		baseURL: strings.TrimRight(cfg.URL, "/") + "/auth/v1",
		http:    &hc,
	}, nil
}

// ForBrowser returns a client whose session lives in storage.
func (f *Factory) ForBrowser(storage ports.LocalStorage) ports.AuthClient {
	return f.NewClient(storage)
}

// NewClient is ForBrowser with a concrete return type.
func (f *Factory) NewClient(storage ports.LocalStorage) *Client {
	return &Client{
		cfg:       f.cfg,
		baseURL:   f.baseURL,
		http:      f.http,
		storage:   storage,
		logger:    f.cfg.Logger.With("component", "gotrue"),
		listeners: make(map[int]ports.AuthListener),
	}
}

// Client is the GoTrue API as seen by one browser.
type Client struct {
	cfg     Config
	baseURL string
	http    *http.Client
	storage ports.LocalStorage
	logger  *slog.Logger

	mu        sync.RWMutex
	listeners map[int]ports.AuthListener
	nextID    int
}

var _ ports.AuthClient = (*Client)(nil)

// GetSession loads the persisted session, refreshing it when expired.
func (c *Client) GetSession(ctx context.Context) (*domainauth.Session, error) {
	sess, err := c.loadSession(ctx)
	if err != nil || sess == nil {
		return nil, err
	}
	if !sess.Expired(c.cfg.Now(), expiryMargin) {
		if err := c.verify(ctx, sess); err != nil {
			c.logger.WarnContext(ctx, "discarding stored session", "error", err)
			c.removeSession(ctx)
			return nil, err
		}
		return sess, nil
	}
	return c.refresh(ctx, sess.RefreshToken)
}

// OnAuthStateChange registers listener and immediately delivers INITIAL_SESSION
// with the stored session, if it is unexpired and passes verification.
func (c *Client) OnAuthStateChange(listener ports.AuthListener) ports.Subscription {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = listener
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), listenerTimeout)
	defer cancel()
	sess, err := c.loadSession(ctx)
	if err != nil || (sess != nil && sess.Expired(c.cfg.Now(), expiryMargin)) {
		sess = nil
	}
	if sess != nil {
		if verr := c.verify(ctx, sess); verr != nil {
			c.logger.WarnContext(ctx, "withholding unverified stored session", "error", verr)
			sess = nil
		}
	}
	listener(ctx, domainauth.EventInitialSession, sess)

	return &subscription{client: c, id: id}
}

// SignOut revokes the session on the server and clears storage. A server
// that no longer knows the session is not an error.
func (c *Client) SignOut(ctx context.Context) error {
	sess, err := c.loadSession(ctx)
	if err != nil {
		return err
	}
	if sess != nil && sess.AccessToken != "" {
		err := c.doUser(ctx, sess.Token(), http.MethodPost, "/logout", nil, nil)
		var apiErr *APIError
		if err != nil && !(errors.As(err, &apiErr) && apiErr.SessionMissing()) {
			return fmt.Errorf("sign out: %w", err)
		}
	}
	if err := c.storage.RemoveItem(ctx, c.cfg.StorageKey); err != nil {
		return fmt.Errorf("clear stored session: %w", err)
	}
	c.notify(ctx, domainauth.EventSignedOut, nil)
	return nil
}

// SetSession installs a session from a token pair. An expired access token is
// exchanged through the refresh token; otherwise the user is fetched with it.
func (c *Client) SetSession(ctx context.Context, pair domainauth.TokenPair) (*domainauth.Session, error) {
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		return nil, domainauth.ErrIncompleteToken
	}

	claims, err := c.claims(ctx, pair.AccessToken)
	if err != nil {
		return nil, err
	}
	if claims.ExpiresAt.IsZero() || !c.cfg.Now().Add(expiryMargin).Before(claims.ExpiresAt) {
		return c.refresh(ctx, pair.RefreshToken)
	}

	sess := &domainauth.Session{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    "bearer",
		ExpiresAt:    claims.ExpiresAt.Unix(),
	}
	var user domainauth.User
	if err := c.doUser(ctx, sess.Token(), http.MethodGet, "/user", nil, &user); err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	sess.User = &user
	sess.ExpiresIn = int64(claims.ExpiresAt.Sub(c.cfg.Now()).Seconds())

	if err := c.saveSession(ctx, sess); err != nil {
		return nil, err
	}
	c.notify(ctx, domainauth.EventSignedIn, sess)
	return sess, nil
}

// SignInWithPassword exchanges email and password for a session.
func (c *Client) SignInWithPassword(ctx context.Context, creds ports.Credentials) (*domainauth.Session, error) {
	body := map[string]string{"email": creds.Email, "password": creds.Password}
	var sess domainauth.Session
	if err := c.doAnon(ctx, http.MethodPost, "/token?grant_type=password", body, &sess); err != nil {
		return nil, err
	}
	if err := c.saveSession(ctx, &sess); err != nil {
		return nil, err
	}
	c.notify(ctx, domainauth.EventSignedIn, &sess)
	return &sess, nil
}

// SignUp registers an account. The session is nil while email confirmation is pending.
func (c *Client) SignUp(ctx context.Context, creds ports.Credentials) (*domainauth.Session, error) {
	body := map[string]any{
		"email":    creds.Email,
		"password": creds.Password,
	}
	if creds.FullName != "" {
		body["data"] = map[string]string{"full_name": creds.FullName}
	}

	// With autoconfirm the response is a session; otherwise it is the bare user.
	var resp struct {
		domainauth.Session
		ID string `json:"id"`
	}
	if err := c.doAnon(ctx, http.MethodPost, "/signup", body, &resp); err != nil {
		return nil, err
	}
	if resp.AccessToken == "" {
		c.logger.InfoContext(ctx, "sign up pending confirmation", "user_id", resp.ID)
		return nil, nil
	}
	sess := resp.Session
	if err := c.saveSession(ctx, &sess); err != nil {
		return nil, err
	}
	c.notify(ctx, domainauth.EventSignedIn, &sess)
	return &sess, nil
}

func (c *Client) refresh(ctx context.Context, refreshToken string) (*domainauth.Session, error) {
	if refreshToken == "" {
		c.removeSession(ctx)
		return nil, errors.New("refresh token missing")
	}
	var sess domainauth.Session
	err := c.doAnon(ctx, http.MethodPost, "/token?grant_type=refresh_token",
		map[string]string{"refresh_token": refreshToken}, &sess)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Status >= 400 && apiErr.Status < 500 {
			c.removeSession(ctx)
			c.notify(ctx, domainauth.EventSignedOut, nil)
		}
		return nil, fmt.Errorf("refresh session: %w", err)
	}
	if err := c.saveSession(ctx, &sess); err != nil {
		return nil, err
	}
	c.notify(ctx, domainauth.EventTokenRefreshed, &sess)
	return &sess, nil
}

func (c *Client) claims(ctx context.Context, accessToken string) (Claims, error) {
	if c.cfg.Verifier == nil {
		return unverifiedClaims(accessToken)
	}
	return c.cfg.Verifier.Verify(ctx, accessToken)
}

func (c *Client) verify(ctx context.Context, sess *domainauth.Session) error {
	if c.cfg.Verifier == nil {
		return nil
	}
	claims, err := c.cfg.Verifier.Verify(ctx, sess.AccessToken)
	if err != nil {
		return err
	}
	if sess.User != nil && claims.Subject != sess.User.ID {
		return fmt.Errorf("%w: subject does not match stored user", ErrInvalidToken)
	}
	return nil
}

func (c *Client) loadSession(ctx context.Context) (*domainauth.Session, error) {
	raw, ok, err := c.storage.GetItem(ctx, c.cfg.StorageKey)
	if err != nil {
		return nil, fmt.Errorf("read stored session: %w", err)
	}
	if !ok || raw == "" {
		return nil, nil
	}
	var sess domainauth.Session
	if err := json.Unmarshal([]byte(raw), &sess); err != nil || sess.AccessToken == "" {
		c.logger.WarnContext(ctx, "removing unreadable stored session", "error", err)
		c.removeSession(ctx)
		return nil, nil
	}
	return &sess, nil
}

func (c *Client) saveSession(ctx context.Context, sess *domainauth.Session) error {
	now := c.cfg.Now()
	sess.ReceivedAt = now
	if sess.ExpiresAt == 0 && sess.ExpiresIn > 0 {
		sess.ExpiresAt = now.Add(time.Duration(sess.ExpiresIn) * time.Second).Unix()
	}
	raw, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := c.storage.SetItem(ctx, c.cfg.StorageKey, string(raw)); err != nil {
		return fmt.Errorf("persist session: %w", err)
	}
	return nil
}

func (c *Client) removeSession(ctx context.Context) {
	if err := c.storage.RemoveItem(ctx, c.cfg.StorageKey); err != nil {
		c.logger.WarnContext(ctx, "failed to remove stored session", "error", err)
	}
}

func (c *Client) notify(ctx context.Context, event domainauth.Event, sess *domainauth.Session) {
	c.mu.RLock()
	listeners := make([]ports.AuthListener, 0, len(c.listeners))
	for _, l := range c.listeners {
		listeners = append(listeners, l)
	}
	c.mu.RUnlock()

	for _, l := range listeners {
		l(ctx, event, sess)
	}
}

// doAnon calls the API with the anon key as bearer.
func (c *Client) doAnon(ctx context.Context, method, path string, in, out any) error {
	return c.do(ctx, c.http, method, path, "Bearer "+c.cfg.AnonKey, in, out)
}

// doUser calls the API as the session's user.
func (c *Client) doUser(ctx context.Context, tok *oauth2.Token, method, path string, in, out any) error {
	hc := oauth2.NewClient(context.WithValue(ctx, oauth2.HTTPClient, c.http), oauth2.StaticTokenSource(tok))
	return c.do(ctx, hc, method, path, "", in, out)
}

func (c *Client) do(ctx context.Context, hc *http.Client, method, path, authz string, in, out any) error {
	var body *bytes.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	} else {
		body = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authz != "" {
		req.Header.Set("Authorization", authz)
	}

	resp, err := hc.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return parseAPIError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

type subscription struct {
	client *Client
	id     int
	once   sync.Once
}

func (s *subscription) Unsubscribe() {
	s.once.Do(func() {
		s.client.mu.Lock()
		delete(s.client.listeners, s.id)
		s.client.mu.Unlock()
	})
}

// apiKeyTransport adds the project's anon key to every request.
type apiKeyTransport struct {
	apiKey string
	base   http.RoundTripper
}

func (t *apiKeyTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	r := req.Clone(req.Context())
	r.Header.Set("apikey", t.apiKey)
	return t.base.RoundTrip(r)
}
