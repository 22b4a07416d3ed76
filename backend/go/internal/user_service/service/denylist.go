package service

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
)

// TokenDenylist remembers revoked token IDs until the tokens expire on
// their own.
type TokenDenylist interface {
	Deny(ctx context.Context, jti string, ttl time.Duration) error
	IsDenied(ctx context.Context, jti string) (bool, error)
}

const denylistKeyPrefix = "auth:denylist:"

// RedisDenylist implements TokenDenylist on Redis. Entries carry a TTL equal
// to the remaining token lifetime, so the denylist never outgrows the set of
// live tokens.
type RedisDenylist struct {
	client *redis.Client
}

var _ TokenDenylist = (*RedisDenylist)(nil)

// NewRedisDenylist creates a denylist over the given Redis client.
func NewRedisDenylist(client *redis.Client) *RedisDenylist {
	return &RedisDenylist{client: client}
}

// Deny marks a token ID as revoked for the given duration.
func (d *RedisDenylist) Deny(ctx context.Context, jti string, ttl time.Duration) error {
	return d.client.Set(ctx, denylistKeyPrefix+jti, "1", ttl).Err()
}

// IsDenied reports whether a token ID has been revoked.
func (d *RedisDenylist) IsDenied(ctx context.Context, jti string) (bool, error) {
	n, err := d.client.Exists(ctx, denylistKeyPrefix+jti).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
