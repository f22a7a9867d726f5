package lock

import (
	"context"
	"hash/fnv"
	"sync"
	"time"
)

const numShards = 64

const defaultWait = 5 * time.Second

// Local is an in-process sharded mutex for single-replica deployments.
// Keys hashing to the same shard serialize with each other.
type Local struct {
	shards [numShards]chan struct{}
	wait   time.Duration
}

// NewLocal builds a Local lock. wait bounds how long Acquire blocks when the
// context has no deadline; zero uses five seconds.
func NewLocal(wait time.Duration) *Local {
	if wait <= 0 {
		wait = defaultWait
	}
	l := &Local{wait: wait}
	for i := range l.shards {
		l.shards[i] = make(chan struct{}, 1)
	}
	return l
}

func (l *Local) Acquire(ctx context.Context, key string) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.wait)
		defer cancel()
	}

	shard := l.shards[hashKey(key)%numShards]
	select {
	case shard <- struct{}{}:
	case <-ctx.Done():
		if ctx.Err() == context.DeadlineExceeded {
			return nil, ErrNotAcquired
		}
		return nil, ctx.Err()
	}
	var once sync.Once
	return func() { once.Do(func() { <-shard }) }, nil
}

func hashKey(s string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s))
	return h.Sum32()
}
