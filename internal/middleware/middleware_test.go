package middleware

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luzdodia/api/internal/auth"
)

const secret = "test-secret"

func newApp(mw ...fiber.Handler) *fiber.App {
	app := fiber.New()
	handlers := append(mw, func(c *fiber.Ctx) error {
		return c.SendString(GetUserID(c))
	})
	app.Get("/", handlers...)
	return app
}

func TestAuthenticate(t *testing.T) {
	app := newApp(NewAuthMiddleware(nil, secret).Authenticate())

	req := httptest.NewRequest("GET", "/", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	token, err := auth.IssueLegacyToken("user-1", "ana@example.com", secret, time.Hour)
	require.NoError(t, err)
	req = httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	req = httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestGatewayAuth(t *testing.T) {
	app := newApp(GatewayAuthMiddleware())

	resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("X-User-Id", "user-9")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestRateLimit(t *testing.T) {
	limiter := NewRateLimiter(NewMemoryCounter())
	app := newApp(GatewayAuthMiddleware(), limiter.RenderLimit(2))

	call := func(user string) int {
		req := httptest.NewRequest("GET", "/", nil)
		req.Header.Set("X-User-Id", user)
		resp, err := app.Test(req)
		require.NoError(t, err)
		return resp.StatusCode
	}

	assert.Equal(t, fiber.StatusOK, call("a"))
	assert.Equal(t, fiber.StatusOK, call("a"))
	assert.Equal(t, fiber.StatusTooManyRequests, call("a"))
	assert.Equal(t, fiber.StatusOK, call("b"))
}

func TestMemoryCounterWindow(t *testing.T) {
	now := time.Date(2025, 3, 10, 6, 0, 0, 0, time.UTC)
	c := NewMemoryCounter()
	c.now = func() time.Time { return now }

	n, ttl, err := c.Hit(context.Background(), "k", time.Minute)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	assert.Equal(t, time.Minute, ttl)

	now = now.Add(30 * time.Second)
	n, ttl, _ = c.Hit(context.Background(), "k", time.Minute)
	assert.EqualValues(t, 2, n)
	assert.Equal(t, 30*time.Second, ttl)

	now = now.Add(time.Minute)
	n, _, _ = c.Hit(context.Background(), "k", time.Minute)
	assert.EqualValues(t, 1, n)
}
