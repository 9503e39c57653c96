package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/scolay/storefront/internal/ports"
)

// CartStore keeps a browser's cart as a Redis hash of product id to quantity.
type CartStore struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewCartStore creates a Redis-backed cart store. A non-positive ttl uses DefaultBrowserStorageTTL.
func NewCartStore(client redis.UniversalClient, ttl time.Duration) *CartStore {
	if ttl <= 0 {
		ttl = DefaultBrowserStorageTTL
	}
	return &CartStore{client: client, prefix: "cart:", ttl: ttl}
}

var _ ports.CartCounter = (*CartStore)(nil)

// ErrInvalidQuantity is returned by Add for non-positive quantities.
var ErrInvalidQuantity = errors.New("quantity must be positive")

func (s *CartStore) key(browserID string) (string, error) {
	if browserID == "" {
		return "", ErrEmptyBrowserID
	}
	return s.prefix + browserID, nil
}

// ItemCount returns the total quantity across all cart lines.
func (s *CartStore) ItemCount(ctx context.Context, browserID string) (int, error) {
	key, err := s.key(browserID)
	if err != nil {
		return 0, err
	}
	vals, err := s.client.HVals(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("redis hvals: %w", err)
	}
	total := 0
	for _, v := range vals {
		n, convErr := strconv.Atoi(v)
		if convErr != nil {
			return 0, fmt.Errorf("parse cart quantity %q: %w", v, convErr)
		}
		total += n
	}
	return total, nil
}

// Add increments the quantity of productID and returns the new line quantity.
func (s *CartStore) Add(ctx context.Context, browserID, productID string, qty int) (int, error) {
	key, err := s.key(browserID)
	if err != nil {
		return 0, err
	}
	if productID == "" {
		return 0, errors.New("product id cannot be empty")
	}
	if qty <= 0 {
		return 0, ErrInvalidQuantity
	}
	pipe := s.client.TxPipeline()
	incr := pipe.HIncrBy(ctx, key, productID, int64(qty))
	pipe.Expire(ctx, key, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("redis hincrby: %w", err)
	}
	return int(incr.Val()), nil
}

// Clear empties the cart.
func (s *CartStore) Clear(ctx context.Context, browserID string) error {
	key, err := s.key(browserID)
	if err != nil {
		return err
	}
	return s.client.Del(ctx, key).Err()
}
