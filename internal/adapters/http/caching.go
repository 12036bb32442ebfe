package http

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

// CachingMiddleware sets Cache-Control headers on GET responses based on endpoint.
// Handlers that set their own header win.
func CachingMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := c.Next()

		if c.Method() != fiber.MethodGet {
			return err
		}

		if existing := c.GetRespHeader(fiber.HeaderCacheControl); existing != "" {
			return err
		}

		path := c.Path()
		var ttl string

		switch {
		case path == "/v1/health" || path == "/v1/ready":
			ttl = "no-cache"

		case path == "/metrics":
			ttl = "no-cache" // Metrics are real-time

		case path == "/docs" || path == "/docs/openapi.yaml":
			ttl = "public, max-age=3600"

		// Lots carry no availability state.
		case strings.HasPrefix(path, "/v1/lots") && !strings.HasSuffix(path, "/spots"):
			ttl = "public, max-age=60"

		// Availability and reservations change on every booking.
		case strings.HasPrefix(path, "/v1/spots"), strings.HasPrefix(path, "/v1/reservations"):
			ttl = "no-store"

		case strings.HasPrefix(path, "/v1/"):
			ttl = "no-cache"
		}

		if ttl != "" {
			c.Set(fiber.HeaderCacheControl, ttl)
		}

		return err
	}
}
