package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"punch.service/pkg/platform/sentinel"
)

const lockKeyPrefix = "punch:lock:"

// Delete the key only if we still own it.
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker is a per-key lock shared by every API replica. A holder that dies
// loses the lock after TTL; the store's versioned append still rejects any write
// made by a holder whose lock expired.
type RedisLocker struct {
	client redis.UniversalClient
	ttl    time.Duration
	poll   time.Duration
}

type Option func(*RedisLocker)

func WithTTL(ttl time.Duration) Option {
	return func(l *RedisLocker) { l.ttl = ttl }
}

func WithPollInterval(d time.Duration) Option {
	return func(l *RedisLocker) { l.poll = d }
}

func NewRedisLocker(client redis.UniversalClient, opts ...Option) *RedisLocker {
	l := &RedisLocker{client: client, ttl: 5 * time.Second, poll: 10 * time.Millisecond}
	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}
	return l
}

// Lock waits until key is acquired or ctx is done.
func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	redisKey := lockKeyPrefix + key
	token := uuid.NewString()

	for {
		ok, err := l.client.SetNX(ctx, redisKey, token, l.ttl).Result()
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("acquire lock %s: %w: %w", key, sentinel.ErrUnavailable, err)
		}
		if ok {
			return func() { l.unlock(redisKey, token) }, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.poll):
		}
	}
}

func (l *RedisLocker) unlock(redisKey, token string) {
	// the caller's context may already be cancelled
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := unlockScript.Run(ctx, l.client, []string{redisKey}, token).Err(); err != nil {
		log.Warn().Err(err).Str("key", redisKey).Msg("Failed to release punch lock, it will expire")
	}
}
