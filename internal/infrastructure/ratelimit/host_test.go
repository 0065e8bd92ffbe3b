package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWaitSpacesSameHost(t *testing.T) {
	limiter := NewHostLimiter(50 * time.Millisecond)
	ctx := context.Background()

	start := time.Now()
	require.NoError(t, limiter.Wait(ctx, "https://arxiv.org/rss/cs.AI"))
	require.NoError(t, limiter.Wait(ctx, "https://arxiv.org/rss/cs.LG"))
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
}

func TestWaitIndependentHosts(t *testing.T) {
	limiter := NewHostLimiter(time.Hour)
	ctx := context.Background()

	require.NoError(t, limiter.Wait(ctx, "https://a.example.com/feed"))

	done := make(chan error, 1)
	go func() { done <- limiter.Wait(ctx, "https://b.example.com/feed") }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("second host was throttled")
	}
}

func TestWaitRespectsContext(t *testing.T) {
	limiter := NewHostLimiter(time.Hour)
	require.NoError(t, limiter.Wait(context.Background(), "https://a.example.com"))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.Error(t, limiter.Wait(ctx, "https://a.example.com"))
}

func TestWaitRejectsBadURLs(t *testing.T) {
	limiter := NewHostLimiter(time.Millisecond)
	assert.Error(t, limiter.Wait(context.Background(), "/relative/path"))

	var disabled *HostLimiter
	assert.NoError(t, disabled.Wait(context.Background(), "::bad"))
}
