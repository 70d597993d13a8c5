package ratelimit

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddleware(t *testing.T) {
	rl := New(Config{MaxRequestsPerMinute: 1, Burst: 2})
	defer rl.Stop()

	app := fiber.New()
	app.Use(rl.Middleware())
	app.Get("/ping", func(c *fiber.Ctx) error { return c.SendString("pong") })

	do := func(user string) int {
		req := httptest.NewRequest("GET", "/ping", nil)
		if user != "" {
			req.Header.Set("X-User-ID", user)
		}
		resp, err := app.Test(req)
		require.NoError(t, err)
		return resp.StatusCode
	}

	assert.Equal(t, fiber.StatusOK, do("alice"))
	assert.Equal(t, fiber.StatusOK, do("alice"))
	assert.Equal(t, fiber.StatusTooManyRequests, do("alice"))

	assert.Equal(t, fiber.StatusOK, do("bob"), "buckets are per user")
}

func TestEvictIdle(t *testing.T) {
	rl := New(Config{IdleTTL: time.Minute, CleanupInterval: time.Hour})
	defer rl.Stop()

	rl.Allow("a")
	rl.Allow("b")
	require.Equal(t, 2, rl.Len())

	rl.evictIdle(time.Now())
	assert.Equal(t, 2, rl.Len())

	rl.evictIdle(time.Now().Add(2 * time.Minute))
	assert.Zero(t, rl.Len())
}

func TestStopIsIdempotent(t *testing.T) {
	rl := New(Config{})
	rl.Stop()
	assert.NotPanics(t, rl.Stop)
}
