package scheduler

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the lease only if this instance still holds it, so a
// slow sweep whose lease expired cannot delete a successor's lease.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0`)

// SweepLock is a best-effort cross-instance lease over the sweep, backed by a
// Redis SETNX key with a TTL. It covers the brief overlap during deploys when
// two scheduler instances are alive; correctness does not depend on it (the
// per-booking compare-and-set does that), it just avoids duplicate work.
type SweepLock struct {
	client *redis.Client
	key    string
	ttl    time.Duration
	token  string
}

func NewSweepLock(client *redis.Client, key string, ttl time.Duration) *SweepLock {
	return &SweepLock{client: client, key: key, ttl: ttl}
}

func (l *SweepLock) Acquire(ctx context.Context) (bool, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return false, err
	}
	if ok {
		l.token = token
	}
	return ok, nil
}

func (l *SweepLock) Release(ctx context.Context) {
	if l.token == "" {
		return
	}
	releaseScript.Run(ctx, l.client, []string{l.key}, l.token)
	l.token = ""
}
