package history

import (
	"context"
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiterSpacing(t *testing.T) {
	r := NewRateLimiter(50) // 20ms apart
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 3; i++ {
		require.NoError(t, r.Wait(ctx))
	}
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
}

func TestRateLimiterHeaders(t *testing.T) {
	r := NewRateLimiter(0)
	assert.Equal(t, -1, r.Remaining())

	h := http.Header{}
	h.Set("X-RateLimit-Remaining", "2")
	h.Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(time.Hour).Unix(), 10))
	r.UpdateFromHeaders(h)
	assert.Equal(t, 2, r.Remaining())

	require.NoError(t, r.Wait(context.Background()))
	assert.Equal(t, 1, r.Remaining())
}

func TestRateLimiterExhaustedHonoursContext(t *testing.T) {
	r := NewRateLimiter(0)
	h := http.Header{}
	h.Set("X-RateLimit-Remaining", "0")
	h.Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(time.Hour).Unix(), 10))
	r.UpdateFromHeaders(h)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, r.Wait(ctx), context.DeadlineExceeded)
}
