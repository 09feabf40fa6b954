package api

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/genetic-risk-server/internal/config"
)

func TestClientLimiters_PerClientBuckets(t *testing.T) {
	limiters := newClientLimiters(config.RateLimitConfig{RequestsPerSecond: 1, Burst: 1})

	// Each client gets its own bucket; exhausting one does not affect
	// another
	require.True(t, limiters.get("10.0.0.1").Allow())
	assert.False(t, limiters.get("10.0.0.1").Allow())
	assert.True(t, limiters.get("10.0.0.2").Allow())
}

func TestClientLimiters_SameClientSameBucket(t *testing.T) {
	limiters := newClientLimiters(config.RateLimitConfig{RequestsPerSecond: 1, Burst: 2})

	first := limiters.get("10.0.0.1")
	second := limiters.get("10.0.0.1")
	assert.Same(t, first, second)
}

func TestClientLimiters_Bounded(t *testing.T) {
	limiters := newClientLimiters(config.RateLimitConfig{RequestsPerSecond: 10, Burst: 10})

	// Twice the cache capacity of distinct clients must not grow the
	// tracked set past the cap
	for i := 0; i < limiterCacheSize*2; i++ {
		limiters.get(fmt.Sprintf("10.%d.%d.%d", i>>16&0xff, i>>8&0xff, i&0xff))
	}

	assert.LessOrEqual(t, limiters.limiters.Len(), limiterCacheSize)
}
