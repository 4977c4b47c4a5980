package shared

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
)

func TestServiceJWT(t *testing.T) {
	secret := []byte("test-secret")

	t.Run("round trip keeps the service name", func(t *testing.T) {
		token, err := GenerateJWTForService("catalog-gateway", secret, time.Minute)
		require.NoError(t, err)

		claims, parsed, err := ValidateJWTForService(token, secret)
		require.NoError(t, err)
		require.True(t, parsed.Valid)
		require.Equal(t, "catalog-gateway", claims.Service)
	})

	t.Run("wrong secret is rejected", func(t *testing.T) {
		token, err := GenerateJWTForService("catalog-gateway", secret, time.Minute)
		require.NoError(t, err)

		_, _, err = ValidateJWTForService(token, []byte("other"))
		require.Error(t, err)
	})

	t.Run("expired token is rejected", func(t *testing.T) {
		token, err := GenerateJWTForService("catalog-gateway", secret, -time.Minute)
		require.NoError(t, err)

		_, _, err = ValidateJWTForService(token, secret)
		require.Error(t, err)
	})
}

func TestJWTServiceMiddleware(t *testing.T) {
	secret := []byte("test-secret")
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	app.Post("/guarded", NewJWTServiceMiddleware(secret), func(c *fiber.Ctx) error {
		return c.SendString(c.Locals("service").(string))
	})

	req := httptest.NewRequest(fiber.MethodPost, "/guarded", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	token, err := GenerateJWTForService("tester", secret, time.Minute)
	require.NoError(t, err)
	req = httptest.NewRequest(fiber.MethodPost, "/guarded", nil)
	req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	resp, err = app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestDevOnlyMiddleware(t *testing.T) {
	for env, want := range map[string]int{"development": fiber.StatusOK, "production": fiber.StatusServiceUnavailable} {
		app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
		app.Get("/dev", DevOnlyMiddleware(env), func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })

		resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/dev", nil), -1)
		require.NoError(t, err)
		require.Equal(t, want, resp.StatusCode, env)
	}
}
