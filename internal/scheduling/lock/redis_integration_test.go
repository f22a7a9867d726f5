//go:build integration

package lock_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dunning/internal/scheduling/lock"
	"dunning/pkg/testutil/containers"
)

func TestRedisLock_AgainstRedis(t *testing.T) {
	rc := containers.GetManager().GetRedis(t)
	ctx := context.Background()
	require.NoError(t, rc.FlushAll(ctx))

	first := lock.NewRedis(rc.Client, time.Minute, lock.WithWait(200*time.Millisecond), lock.WithRetryInterval(20*time.Millisecond))
	second := lock.NewRedis(rc.Client, time.Minute, lock.WithWait(200*time.Millisecond), lock.WithRetryInterval(20*time.Millisecond))

	release, err := first.Acquire(ctx, "primary")
	require.NoError(t, err)

	_, err = second.Acquire(ctx, "primary")
	assert.ErrorIs(t, err, lock.ErrNotAcquired)

	release()
	again, err := second.Acquire(ctx, "primary")
	require.NoError(t, err)
	again()
}
