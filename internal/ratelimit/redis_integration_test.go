//go:build integration

package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	platformredis "recaudo/internal/platform/redis"
	"recaudo/pkg/testutil/containers"
)

func TestRedisLimiter(t *testing.T) {
	url := containers.StartRedis(t)
	client, err := platformredis.New(url)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	limiter := NewRedis(client.Client, 2, time.Minute)
	ctx := context.Background()

	ok, err := limiter.Allow(ctx, "1.2.3.4")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = limiter.Allow(ctx, "1.2.3.4")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = limiter.Allow(ctx, "1.2.3.4")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = limiter.Allow(ctx, "5.6.7.8")
	require.NoError(t, err)
	assert.True(t, ok)
}
