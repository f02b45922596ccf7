package ratelimit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMultiLimiter_UnknownName(t *testing.T) {
	m := NewMultiLimiter()
	assert.False(t, m.Allow("missing"))
	require.Error(t, m.Wait(context.Background(), "missing"))
}

func TestMultiLimiter_BurstThenDeny(t *testing.T) {
	m := NewMultiLimiter()
	m.AddLimiter("svc", 0.001, 2)

	assert.True(t, m.Allow("svc"))
	assert.True(t, m.Allow("svc"))
	assert.False(t, m.Allow("svc"))
}

func TestUnlimited_NeverBlocks(t *testing.T) {
	m := Unlimited()
	for i := 0; i < 100; i++ {
		require.NoError(t, m.Wait(context.Background(), LimiterTwitter))
	}
}
