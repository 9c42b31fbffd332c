package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

// releaseLockScript deletes the lock only if it still holds the caller's token.
var releaseLockScript = goredis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
	return redis.call('DEL', KEYS[1])
end
return 0
`)

// refreshLockScript extends the lock only if it still holds the caller's token.
// ARGV: [1]=token, [2]=ttl_ms
var refreshLockScript = goredis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
	return redis.call('PEXPIRE', KEYS[1], ARGV[2])
end
return 0
`)

type BlastLock struct {
	rdb goredis.Cmdable
}

func NewBlastLock(rdb goredis.Cmdable) *BlastLock {
	return &BlastLock{rdb: rdb}
}

func (l *BlastLock) Acquire(ctx context.Context, blastID uuid.UUID, ttl time.Duration) (string, bool, error) {
	token := uuid.NewString()

	args := goredis.SetArgs{TTL: ttl, Mode: "NX"}
	err := l.rdb.SetArgs(ctx, lockKey(blastID), token, args).Err()
	if errors.Is(err, goredis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to acquire blast lock: %w", err)
	}
	return token, true, nil
}

func (l *BlastLock) Refresh(ctx context.Context, blastID uuid.UUID, token string, ttl time.Duration) (bool, error) {
	n, err := refreshLockScript.Run(ctx, l.rdb, []string{lockKey(blastID)}, token, ttl.Milliseconds()).Int()
	if err != nil {
		return false, fmt.Errorf("failed to refresh blast lock: %w", err)
	}
	return n == 1, nil
}

func (l *BlastLock) Release(ctx context.Context, blastID uuid.UUID, token string) error {
	if err := releaseLockScript.Run(ctx, l.rdb, []string{lockKey(blastID)}, token).Err(); err != nil {
		return fmt.Errorf("failed to release blast lock: %w", err)
	}
	return nil
}

func lockKey(blastID uuid.UUID) string {
	return "blast:lock:" + blastID.String()
}
