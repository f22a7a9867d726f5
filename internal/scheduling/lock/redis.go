package lock

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "dunning:booking-lock:"

// releaseScript deletes the key only while it still holds our token, so a
// lock that expired and was taken by someone else is left alone.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Redis is a lock shared by every replica: SET NX PX with a random token.
// The TTL bounds how long a crashed holder blocks the calendar.
type Redis struct {
	client redis.UniversalClient
	ttl    time.Duration
	wait   time.Duration
	retry  time.Duration
	logger *slog.Logger
}

type RedisOption func(*Redis)

// WithWait bounds how long Acquire retries when the context has no deadline.
func WithWait(d time.Duration) RedisOption {
	return func(r *Redis) { r.wait = d }
}

// WithRetryInterval sets the pause between SET NX attempts.
func WithRetryInterval(d time.Duration) RedisOption {
	return func(r *Redis) { r.retry = d }
}

func WithLogger(l *slog.Logger) RedisOption {
	return func(r *Redis) { r.logger = l }
}

func NewRedis(client redis.UniversalClient, ttl time.Duration, opts ...RedisOption) *Redis {
	r := &Redis{
		client: client,
		ttl:    ttl,
		wait:   defaultWait,
		retry:  50 * time.Millisecond,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Redis) Acquire(ctx context.Context, key string) (func(), error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.wait)
		defer cancel()
	}

	redisKey := keyPrefix + key
	token := uuid.NewString()
	ticker := time.NewTicker(r.retry)
	defer ticker.Stop()
	for {
		ok, err := r.client.SetNX(ctx, redisKey, token, r.ttl).Result()
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return nil, ErrNotAcquired
			}
			return nil, err
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			if ctx.Err() == context.DeadlineExceeded {
				return nil, ErrNotAcquired
			}
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}

	var once sync.Once
	release := func() {
		once.Do(func() {
			// the caller's context may already be cancelled
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			if err := releaseScript.Run(ctx, r.client, []string{redisKey}, token).Err(); err != nil {
				r.logger.Warn("failed to release booking lock", "key", key, "error", err)
			}
		})
	}
	return release, nil
}
