package redis

// Package redis provides Redis-based adapters for the storefront.

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/scolay/storefront/internal/ports"
)

// DefaultBrowserStorageTTL bounds how long an idle browser's storage survives.
const DefaultBrowserStorageTTL = 30 * 24 * time.Hour

// BrowserStorage keeps each browser's key/value storage in a Redis hash.
// Every write refreshes the hash TTL.
type BrowserStorage struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// BrowserStorageOptions configures a BrowserStorage.
type BrowserStorageOptions struct {
	Prefix string
	TTL    time.Duration
}

// NewBrowserStorage creates a Redis-backed browser storage provider.
func NewBrowserStorage(client redis.UniversalClient, opts BrowserStorageOptions) *BrowserStorage {
	prefix := opts.Prefix
	if prefix == "" {
		prefix = "browser:"
	}
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = DefaultBrowserStorageTTL
	}
	return &BrowserStorage{client: client, prefix: prefix, ttl: ttl}
}

var _ ports.LocalStorageProvider = (*BrowserStorage)(nil)

// ForBrowser returns the storage namespace for browserID.
func (s *BrowserStorage) ForBrowser(browserID string) ports.LocalStorage {
	return &browserNamespace{store: s, browserID: browserID, key: s.prefix + browserID + ":storage"}
}

// ErrEmptyBrowserID is returned when a namespace is used without a browser id.
var ErrEmptyBrowserID = errors.New("browser id cannot be empty")

type browserNamespace struct {
	store     *BrowserStorage
	browserID string
	key       string
}

func (n *browserNamespace) valid() error {
	if n.browserID == "" {
		return ErrEmptyBrowserID
	}
	return nil
}

func (n *browserNamespace) GetItem(ctx context.Context, key string) (string, bool, error) {
	if err := n.valid(); err != nil {
		return "", false, err
	}
	val, err := n.store.client.HGet(ctx, n.key, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("redis hget %s: %w", key, err)
	}
	return val, true, nil
}

func (n *browserNamespace) SetItem(ctx context.Context, key, value string) error {
	if err := n.valid(); err != nil {
		return err
	}
	pipe := n.store.client.TxPipeline()
	pipe.HSet(ctx, n.key, key, value)
	pipe.Expire(ctx, n.key, n.store.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis hset %s: %w", key, err)
	}
	return nil
}

func (n *browserNamespace) RemoveItem(ctx context.Context, key string) error {
	if err := n.valid(); err != nil {
		return err
	}
	if err := n.store.client.HDel(ctx, n.key, key).Err(); err != nil {
		return fmt.Errorf("redis hdel %s: %w", key, err)
	}
	return nil
}
