// Package redis provides a Redis-backed profile cache.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/bissquit/business-cards/internal/directory"
	"github.com/bissquit/business-cards/internal/domain"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "profile:"

// DefaultTTL is used when the cache is created with a non-positive TTL.
const DefaultTTL = 5 * time.Minute

// ProfileCache implements directory.ProfileCache on top of Redis.
type ProfileCache struct {
	client redis.Cmdable
	ttl    time.Duration
}

// NewProfileCache creates a cache whose entries expire after ttl.
func NewProfileCache(client redis.Cmdable, ttl time.Duration) *ProfileCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &ProfileCache{client: client, ttl: ttl}
}

// Get returns the cached profile or directory.ErrCacheMiss.
func (c *ProfileCache) Get(ctx context.Context, id string) (*domain.PublicProfile, error) {
	data, err := c.client.Get(ctx, key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, directory.ErrCacheMiss
		}
		return nil, fmt.Errorf("get cached profile: %w", err)
	}

	var profile domain.PublicProfile
	if err := json.Unmarshal(data, &profile); err != nil {
		return nil, fmt.Errorf("decode cached profile: %w", err)
	}
	return &profile, nil
}

// Set stores profile under its employee ID.
func (c *ProfileCache) Set(ctx context.Context, profile *domain.PublicProfile) error {
	data, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("encode profile: %w", err)
	}
	if err := c.client.Set(ctx, key(profile.ID), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache profile: %w", err)
	}
	return nil
}

// Delete drops the cached profile.
func (c *ProfileCache) Delete(ctx context.Context, id string) error {
	if err := c.client.Del(ctx, key(id)).Err(); err != nil {
		return fmt.Errorf("invalidate profile: %w", err)
	}
	return nil
}

func key(id string) string {
	return keyPrefix + id
}
