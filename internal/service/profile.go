package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	domainauth "github.com/scolay/storefront/internal/domain/auth"
	"github.com/scolay/storefront/internal/ports"
)

// profileLookupTimeout bounds a shared store lookup, which outlives any single caller.
const profileLookupTimeout = 10 * time.Second

// profileCache is the minimal byte cache used to front the profile store.
type profileCache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) (bool, error)
}

// ProfileCacheConfig enables read-through caching of profiles.
type ProfileCacheConfig struct {
	Repo profileCache
	TTL  time.Duration
}

// ProfileServiceOptions groups dependencies for ProfileService.
type ProfileServiceOptions struct {
	Store  ports.ProfileStore // Required
	Cache  ProfileCacheConfig // Optional; disabled when Repo is nil or TTL <= 0
	Logger *slog.Logger
}

// ProfileService looks up profiles by user id, deduplicating concurrent lookups
// for the same user and caching hits.
type ProfileService struct {
	store  ports.ProfileStore
	cache  ProfileCacheConfig
	group  singleflight.Group
	logger *slog.Logger
}

var _ ports.ProfileStore = (*ProfileService)(nil)

// NewProfileService constructs a ProfileService. It panics if Store is nil.
func NewProfileService(opts ProfileServiceOptions) *ProfileService {
	if opts.Store == nil {
		panic("ProfileStore is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &ProfileService{
		store:  opts.Store,
		cache:  opts.Cache,
		logger: logger.With("component", "profile_service"),
	}
}

func profileCacheKey(userID string) string { return "profile:" + userID }

func (s *ProfileService) cacheEnabled() bool {
	return s.cache.Repo != nil && s.cache.TTL > 0
}

// GetByUserID returns the profile for userID or ports.ErrProfileNotFound.
func (s *ProfileService) GetByUserID(ctx context.Context, userID string) (*domainauth.Profile, error) {
	if userID == "" {
		return nil, ports.ErrProfileNotFound
	}
	if p := s.fromCache(ctx, userID); p != nil {
		return p, nil
	}

	ch := s.group.DoChan(userID, func() (any, error) {
		// Merged callers must not inherit the first caller's cancellation.
		lookupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), profileLookupTimeout)
		defer cancel()
		p, err := s.store.GetByUserID(lookupCtx, userID)
		if err != nil {
			return nil, err
		}
		if p == nil {
			return nil, ports.ErrProfileNotFound
		}
		s.toCache(lookupCtx, p)
		return p, nil
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("get profile %s: %w", userID, ctx.Err())
	case res = <-ch:
	}
	if res.Err != nil {
		if errors.Is(res.Err, ports.ErrProfileNotFound) {
			return nil, res.Err
		}
		return nil, fmt.Errorf("get profile %s: %w", userID, res.Err)
	}
	// Callers sharing a flight must not alias the same record.
	p := *res.Val.(*domainauth.Profile)
	return &p, nil
}

// Invalidate drops any cached copy of the user's profile.
func (s *ProfileService) Invalidate(ctx context.Context, userID string) error {
	if !s.cacheEnabled() {
		return nil
	}
	if _, err := s.cache.Repo.Delete(ctx, profileCacheKey(userID)); err != nil {
		return fmt.Errorf("invalidate profile cache: %w", err)
	}
	return nil
}

func (s *ProfileService) fromCache(ctx context.Context, userID string) *domainauth.Profile {
	if !s.cacheEnabled() {
		return nil
	}
	raw, err := s.cache.Repo.Get(ctx, profileCacheKey(userID))
	if err != nil {
		s.logger.WarnContext(ctx, "profile cache read failed", "user_id", userID, "error", err)
		return nil
	}
	if raw == nil {
		return nil
	}
	var p domainauth.Profile
	if err := json.Unmarshal(raw, &p); err != nil {
		s.logger.WarnContext(ctx, "discarding undecodable cached profile", "user_id", userID, "error", err)
		return nil
	}
	return &p
}

func (s *ProfileService) toCache(ctx context.Context, p *domainauth.Profile) {
	if !s.cacheEnabled() {
		return
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return
	}
	if err := s.cache.Repo.Set(ctx, profileCacheKey(p.ID), raw, s.cache.TTL); err != nil {
		s.logger.WarnContext(ctx, "profile cache write failed", "user_id", p.ID, "error", err)
	}
}
