package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenDenylist_RevokeAndCheck(t *testing.T) {
	client := setupTestClient(t)
	denylist := NewTokenDenylist(client)
	ctx := context.Background()

	revoked, err := denylist.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, denylist.Revoke(ctx, "jti-1", time.Minute))
	require.NoError(t, denylist.Revoke(ctx, "jti-1", time.Minute), "second revoke is a no-op")

	revoked, err = denylist.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)

	ttl := client.TTL(ctx, denylistKey("jti-1")).Val()
	assert.Greater(t, ttl, time.Duration(0))
	assert.LessOrEqual(t, ttl, time.Minute)
}

func TestTokenDenylist_ExpiredTokenNotStored(t *testing.T) {
	client := setupTestClient(t)
	denylist := NewTokenDenylist(client)
	ctx := context.Background()

	require.NoError(t, denylist.Revoke(ctx, "jti-old", -time.Second))

	n, err := client.Exists(ctx, denylistKey("jti-old")).Result()
	require.NoError(t, err)
	assert.Zero(t, n)
}
