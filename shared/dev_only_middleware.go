package shared

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"
)

func DevOnlyMiddleware(appEnv string) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		if isDev := appEnv != "production"; !isDev {
			slog.Error("Trying request to dev endpoint in production")
			return fiber.NewError(fiber.StatusServiceUnavailable, "dev endpoint is unavailable")
		}

		return ctx.Next()
	}
}
