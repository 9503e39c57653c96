package devauth

// Package devauth provides a config-driven, in-process auth client for local
// development. It issues its own HS256 tokens and never talks to a provider.

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	domainauth "github.com/scolay/storefront/internal/domain/auth"
	"github.com/scolay/storefront/internal/ports"
)

var (
	// ErrInvalidCredentials is returned for an unknown email or wrong password.
	ErrInvalidCredentials = errors.New("invalid login credentials")
	// ErrUserExists is returned when signing up with a registered email.
	ErrUserExists = errors.New("user already registered")
	// ErrInvalidRefreshToken is returned when a refresh token was never issued or was revoked.
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
)

// userNamespace derives stable ids for users created through SignUp.
var userNamespace = uuid.MustParse("5f0c8f9e-7c63-4c1a-9e55-3d2f4d0a7b11")

// UserIDFor returns the id SignUp assigns to email.
func UserIDFor(email string) string {
	return uuid.NewSHA1(userNamespace, []byte(strings.ToLower(strings.TrimSpace(email)))).String()
}

// Config controls the dev identity.
// UserID, Email and Password are required.
type Config struct {
	UserID     string
	Email      string
	Password   string
	StorageKey string        // default "scolay-auth-token"
	TokenTTL   time.Duration // default 1h when zero
	Now        func() time.Time
	Logger     *slog.Logger
}

type account struct {
	user     domainauth.User
	password string
}

// Factory owns the accounts and signing key shared by every browser's client.
type Factory struct {
	cfg    Config
	secret []byte
	logger *slog.Logger

	mu       sync.Mutex
	accounts map[string]*account // by lower-cased email
	refresh  map[string]string   // refresh token -> user id
}

// NewFactory constructs a dev auth factory from Config.
func NewFactory(cfg Config) (*Factory, error) {
	if cfg.UserID == "" {
		return nil, errors.New("dev auth: UserID is required")
	}
	if _, err := uuid.Parse(cfg.UserID); err != nil {
		return nil, fmt.Errorf("dev auth: UserID must be a uuid: %w", err)
	}
	if cfg.Email == "" {
		return nil, errors.New("dev auth: Email is required")
	}
	if cfg.Password == "" {
		return nil, errors.New("dev auth: Password is required")
	}
	if cfg.StorageKey == "" {
		cfg.StorageKey = "scolay-auth-token"
	}
	if cfg.TokenTTL == 0 {
		cfg.TokenTTL = time.Hour
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("generate signing key: %w", err)
	}

	f := &Factory{
		cfg:      cfg,
		secret:   secret,
		logger:   logger.With("component", "devauth"),
		accounts: make(map[string]*account),
		refresh:  make(map[string]string),
	}
	f.accounts[strings.ToLower(cfg.Email)] = &account{
		user:     domainauth.User{ID: cfg.UserID, Email: cfg.Email, Role: "authenticated"},
		password: cfg.Password,
	}
	return f, nil
}

// ForBrowser returns a client whose session lives in storage.
func (f *Factory) ForBrowser(storage ports.LocalStorage) ports.AuthClient {
	return &Client{factory: f, storage: storage, listeners: make(map[int]ports.AuthListener)}
}

func (f *Factory) authenticate(email, password string) (domainauth.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	acct, ok := f.accounts[strings.ToLower(strings.TrimSpace(email))]
	if !ok || acct.password != password {
		return domainauth.User{}, ErrInvalidCredentials
	}
	return acct.user, nil
}

func (f *Factory) register(creds ports.Credentials) (domainauth.User, error) {
	email := strings.ToLower(strings.TrimSpace(creds.Email))
	if email == "" || creds.Password == "" {
		return domainauth.User{}, ErrInvalidCredentials
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.accounts[email]; ok {
		return domainauth.User{}, ErrUserExists
	}
	user := domainauth.User{
		ID:        UserIDFor(email),
		Email:     email,
		Role:      "authenticated",
		CreatedAt: f.cfg.Now().UTC(),
	}
	if creds.FullName != "" {
		user.UserMetadata = map[string]any{"full_name": creds.FullName}
	}
	f.accounts[email] = &account{user: user, password: creds.Password}
	return user, nil
}

func (f *Factory) userByID(id string) (domainauth.User, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, acct := range f.accounts {
		if acct.user.ID == id {
			return acct.user, true
		}
	}
	return domainauth.User{}, false
}

// issue mints a session for user and records its refresh token.
func (f *Factory) issue(user domainauth.User) (*domainauth.Session, error) {
	now := f.cfg.Now()
	exp := now.Add(f.cfg.TokenTTL)
	access, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   user.ID,
		"email": user.Email,
		"role":  "authenticated",
		"iat":   now.Unix(),
		"exp":   exp.Unix(),
	}).SignedString(f.secret)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}
	refresh := uuid.NewString()

	f.mu.Lock()
	f.refresh[refresh] = user.ID
	f.mu.Unlock()

	u := user
	return &domainauth.Session{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "bearer",
		ExpiresIn:    int64(f.cfg.TokenTTL.Seconds()),
		ExpiresAt:    exp.Unix(),
		User:         &u,
		ReceivedAt:   now,
	}, nil
}

// exchange rotates a refresh token into a new session.
func (f *Factory) exchange(refreshToken string) (*domainauth.Session, error) {
	f.mu.Lock()
	userID, ok := f.refresh[refreshToken]
	delete(f.refresh, refreshToken)
	f.mu.Unlock()
	if !ok {
		return nil, ErrInvalidRefreshToken
	}
	user, ok := f.userByID(userID)
	if !ok {
		return nil, ErrInvalidRefreshToken
	}
	return f.issue(user)
}

func (f *Factory) revoke(refreshToken string) {
	f.mu.Lock()
	delete(f.refresh, refreshToken)
	f.mu.Unlock()
}

// subject validates an access token and returns its subject. Expired tokens
// report expired=true with a nil error.
func (f *Factory) subject(accessToken string) (sub string, expired bool, err error) {
	var claims jwt.RegisteredClaims
	_, err = jwt.ParseWithClaims(accessToken, &claims, func(*jwt.Token) (any, error) {
		return f.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(f.cfg.Now))
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return claims.Subject, true, nil
	case err != nil:
		return "", false, fmt.Errorf("invalid access token: %w", err)
	}
	return claims.Subject, false, nil
}

// Client implements ports.AuthClient for one browser.
type Client struct {
	factory *Factory
	storage ports.LocalStorage

	mu        sync.RWMutex
	listeners map[int]ports.AuthListener
	nextID    int
}

func (c *Client) GetSession(ctx context.Context) (*domainauth.Session, error) {
	sess, err := c.load(ctx)
	if err != nil || sess == nil {
		return nil, err
	}
	_, expired, err := c.factory.subject(sess.AccessToken)
	if err != nil {
		// Tokens signed by a previous process are unreadable after a restart.
		c.remove(ctx)
		return nil, nil
	}
	if !expired {
		return sess, nil
	}
	refreshed, err := c.factory.exchange(sess.RefreshToken)
	if err != nil {
		c.remove(ctx)
		c.notify(ctx, domainauth.EventSignedOut, nil)
		return nil, err
	}
	return c.install(ctx, domainauth.EventTokenRefreshed, refreshed)
}

func (c *Client) OnAuthStateChange(listener ports.AuthListener) ports.Subscription {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = listener
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	sess, _ := c.load(ctx)
	if sess != nil {
		if _, expired, err := c.factory.subject(sess.AccessToken); err != nil || expired {
			sess = nil
		}
	}
	listener(ctx, domainauth.EventInitialSession, sess)
	return &subscription{client: c, id: id}
}

func (c *Client) SignOut(ctx context.Context) error {
	if sess, _ := c.load(ctx); sess != nil {
		c.factory.revoke(sess.RefreshToken)
	}
	if err := c.storage.RemoveItem(ctx, c.factory.cfg.StorageKey); err != nil {
		return fmt.Errorf("clear stored session: %w", err)
	}
	c.notify(ctx, domainauth.EventSignedOut, nil)
	return nil
}

func (c *Client) SetSession(ctx context.Context, pair domainauth.TokenPair) (*domainauth.Session, error) {
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		return nil, domainauth.ErrIncompleteToken
	}
	sub, expired, err := c.factory.subject(pair.AccessToken)
	if err != nil {
		return nil, err
	}
	if expired {
		sess, err := c.factory.exchange(pair.RefreshToken)
		if err != nil {
			return nil, err
		}
		return c.install(ctx, domainauth.EventTokenRefreshed, sess)
	}
	user, ok := c.factory.userByID(sub)
	if !ok {
		return nil, ErrInvalidCredentials
	}
	sess := &domainauth.Session{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    "bearer",
		User:         &user,
		ReceivedAt:   c.factory.cfg.Now(),
	}
	return c.install(ctx, domainauth.EventSignedIn, sess)
}

func (c *Client) SignInWithPassword(ctx context.Context, creds ports.Credentials) (*domainauth.Session, error) {
	user, err := c.factory.authenticate(creds.Email, creds.Password)
	if err != nil {
		return nil, err
	}
	sess, err := c.factory.issue(user)
	if err != nil {
		return nil, err
	}
	return c.install(ctx, domainauth.EventSignedIn, sess)
}

// SignUp registers an account and signs it in immediately; dev mode has no email confirmation.
func (c *Client) SignUp(ctx context.Context, creds ports.Credentials) (*domainauth.Session, error) {
	user, err := c.factory.register(creds)
	if err != nil {
		return nil, err
	}
	c.factory.logger.InfoContext(ctx, "registered dev user", "user_id", user.ID, "email", user.Email)
	sess, err := c.factory.issue(user)
	if err != nil {
		return nil, err
	}
	return c.install(ctx, domainauth.EventSignedIn, sess)
}

func (c *Client) install(ctx context.Context, event domainauth.Event, sess *domainauth.Session) (*domainauth.Session, error) {
	raw, err := json.Marshal(sess)
	if err != nil {
		return nil, fmt.Errorf("encode session: %w", err)
	}
	if err := c.storage.SetItem(ctx, c.factory.cfg.StorageKey, string(raw)); err != nil {
		return nil, fmt.Errorf("persist session: %w", err)
	}
	c.notify(ctx, event, sess)
	return sess, nil
}

func (c *Client) load(ctx context.Context) (*domainauth.Session, error) {
	raw, ok, err := c.storage.GetItem(ctx, c.factory.cfg.StorageKey)
	if err != nil {
		return nil, fmt.Errorf("read stored session: %w", err)
	}
	if !ok || raw == "" {
		return nil, nil
	}
	var sess domainauth.Session
	if err := json.Unmarshal([]byte(raw), &sess); err != nil {
		c.remove(ctx)
		return nil, nil
	}
	return &sess, nil
}

func (c *Client) remove(ctx context.Context) {
	if err := c.storage.RemoveItem(ctx, c.factory.cfg.StorageKey); err != nil {
		c.factory.logger.WarnContext(ctx, "failed to remove stored session", "error", err)
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
