package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func status(t *testing.T, app *fiber.App, req *http.Request) int {
	t.Helper()
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp.StatusCode
}

func TestGatewayAuthMiddleware(t *testing.T) {
	app := fiber.New()
	app.Use(GatewayAuthMiddleware("tok"))
	app.Get("/", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusNoContent) })

	cases := map[string]int{
		"":           fiber.StatusUnauthorized,
		"Bearer bad": fiber.StatusUnauthorized,
		"Bearer tok": fiber.StatusNoContent,
		"tok":        fiber.StatusNoContent,
	}
	for header, want := range cases {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		assert.Equal(t, want, status(t, app, req), "header %q", header)
	}
}

func TestUserContextMiddleware(t *testing.T) {
	app := fiber.New()
	app.Get("/me", UserContextMiddleware(), func(c *fiber.Ctx) error {
		return c.SendString(Address(c))
	})

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	assert.Equal(t, fiber.StatusUnauthorized, status(t, app, req))

	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set(AddressHeader, strings.Repeat("x", 129))
	assert.Equal(t, fiber.StatusBadRequest, status(t, app, req))

	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set(AddressHeader, "  tg:77 ")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	body := make([]byte, 16)
	n, _ := resp.Body.Read(body)
	assert.Equal(t, "tg:77", string(body[:n]))
}

func TestAdminSecretMiddleware(t *testing.T) {
	ok := func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) }

	disabled := fiber.New()
	disabled.Post("/admin/reset", AdminSecretMiddleware(""), ok)
	req := httptest.NewRequest(http.MethodPost, "/admin/reset", nil)
	assert.Equal(t, fiber.StatusNotFound, status(t, disabled, req))

	app := fiber.New()
	app.Post("/admin/reset", AdminSecretMiddleware("s3cret"), ok)
	req = httptest.NewRequest(http.MethodPost, "/admin/reset", nil)
	req.Header.Set("X-Admin-Secret", "nope")
	assert.Equal(t, fiber.StatusForbidden, status(t, app, req))

	req = httptest.NewRequest(http.MethodPost, "/admin/reset", nil)
	req.Header.Set("X-Admin-Secret", "s3cret")
	assert.Equal(t, fiber.StatusOK, status(t, app, req))
}

func TestRequestMetricsSetsRequestID(t *testing.T) {
	app := fiber.New()
	app.Use(RequestMetrics())
	app.Get("/ping", func(c *fiber.Ctx) error { return c.SendString("pong") })

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/ping", nil), -1)
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Header.Get(fiber.HeaderXRequestID))

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(fiber.HeaderXRequestID, "abc-123")
	resp, err = app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, "abc-123", resp.Header.Get(fiber.HeaderXRequestID))
}
