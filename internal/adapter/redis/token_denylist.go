package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

type TokenDenylist struct {
	rdb goredis.Cmdable
}

func NewTokenDenylist(rdb goredis.Cmdable) *TokenDenylist {
	return &TokenDenylist{rdb: rdb}
}

// Revoke records the token ID until ttl elapses. A token that has already
// expired needs no entry.
func (d *TokenDenylist) Revoke(ctx context.Context, tokenID string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}

	args := goredis.SetArgs{TTL: ttl, Mode: "NX"}
	err := d.rdb.SetArgs(ctx, denylistKey(tokenID), "1", args).Err()
	if err != nil && !errors.Is(err, goredis.Nil) {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	return nil
}

func (d *TokenDenylist) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := d.rdb.Exists(ctx, denylistKey(tokenID)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check token denylist: %w", err)
	}
	return n > 0, nil
}

func denylistKey(tokenID string) string {
	return "auth:revoked:" + tokenID
}
