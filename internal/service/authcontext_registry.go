package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/scolay/storefront/internal/ports"
)

// ErrRegistryClosed is returned by Acquire after Close.
var ErrRegistryClosed = errors.New("auth context registry closed")

// ErrBrowserIDRequired is returned by Acquire for an empty browser id.
var ErrBrowserIDRequired = errors.New("browser id is required")

const (
	defaultIdleTTL     = 30 * time.Minute
	defaultInitTimeout = 10 * time.Second
)

// RegistryConfig tunes AuthContextRegistry lifetimes.
type RegistryConfig struct {
	StorageKey    string
	IdleTTL       time.Duration
	SweepInterval time.Duration
	InitTimeout   time.Duration
	Now           func() time.Time
}

// AuthContextRegistryOptions groups dependencies for AuthContextRegistry.
type AuthContextRegistryOptions struct {
	Clients  ports.AuthClientFactory    // Required
	Profiles ports.ProfileStore         // Required
	Storage  ports.LocalStorageProvider // Required
	Config   RegistryConfig
	Logger   *slog.Logger
}

type registryEntry struct {
	ctx      *AuthContext
	lastUsed time.Time
}

// AuthContextRegistry owns one AuthContext per browser id and tears them down
// when they go idle or the registry is closed.
type AuthContextRegistry struct {
	clients  ports.AuthClientFactory
	profiles ports.ProfileStore
	storage  ports.LocalStorageProvider
	cfg      RegistryConfig
	logger   *slog.Logger

	mu      sync.Mutex
	entries map[string]*registryEntry
	closed  bool
	wg      sync.WaitGroup
}

// NewAuthContextRegistry constructs a registry. It panics if a required dependency is nil.
func NewAuthContextRegistry(opts AuthContextRegistryOptions) *AuthContextRegistry {
	if opts.Clients == nil || opts.Profiles == nil || opts.Storage == nil {
		panic("auth context registry requires Clients, Profiles and Storage")
	}
	cfg := opts.Config
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = defaultIdleTTL
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = time.Minute
	}
	if cfg.InitTimeout <= 0 {
		cfg.InitTimeout = defaultInitTimeout
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthContextRegistry{
		clients:  opts.Clients,
		profiles: opts.Profiles,
		storage:  opts.Storage,
		cfg:      cfg,
		logger:   logger,
		entries:  make(map[string]*registryEntry),
	}
}

// Acquire returns the browser's AuthContext, creating it on first use. A new
// context resolves its initial session in the background; callers observe
// progress through Loading and Ready.
func (r *AuthContextRegistry) Acquire(ctx context.Context, browserID string) (*AuthContext, error) {
	if browserID == "" {
		return nil, ErrBrowserIDRequired
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, ErrRegistryClosed
	}
	now := r.cfg.Now()
	if e, ok := r.entries[browserID]; ok {
		e.lastUsed = now
		r.mu.Unlock()
		return e.ctx, nil
	}

	storage := r.storage.ForBrowser(browserID)
	actx := NewAuthContext(AuthContextOptions{
		Client:   r.clients.ForBrowser(storage),
		Profiles: r.profiles,
		Token:    TokenStorage{Storage: storage, Key: r.cfg.StorageKey},
		Logger:   r.logger.With("browser_id", browserID),
	})
	r.entries[browserID] = &registryEntry{ctx: actx, lastUsed: now}
	r.wg.Add(1)
	r.mu.Unlock()

	startCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.cfg.InitTimeout)
	go func() {
		defer r.wg.Done()
		defer cancel()
		actx.Start(startCtx)
	}()
	return actx, nil
}

// Len returns the number of live contexts.
func (r *AuthContextRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Sweep closes contexts idle for longer than the configured TTL and returns how many were evicted.
func (r *AuthContextRegistry) Sweep() int {
	cutoff := r.cfg.Now().Add(-r.cfg.IdleTTL)

	r.mu.Lock()
	var evicted []*AuthContext
	for id, e := range r.entries {
		if e.lastUsed.Before(cutoff) {
			evicted = append(evicted, e.ctx)
			delete(r.entries, id)
		}
	}
	r.mu.Unlock()

	for _, c := range evicted {
		c.Close()
	}
	if len(evicted) > 0 {
		r.logger.Debug("evicted idle auth contexts", "count", len(evicted))
	}
	return len(evicted)
}

// Run sweeps on an interval until ctx is done, then closes the registry.
func (r *AuthContextRegistry) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			r.Close()
			return nil
		case <-ticker.C:
			r.Sweep()
		}
	}
}

// Close tears down every context and waits for in-flight initial resolutions.
func (r *AuthContextRegistry) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	entries := r.entries
	r.entries = make(map[string]*registryEntry)
	r.mu.Unlock()

	for _, e := range entries {
		e.ctx.Close()
	}
	r.wg.Wait()
}
