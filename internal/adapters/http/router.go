package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/fiber/v2/middleware/timeout"
	"github.com/gofiber/websocket/v2"

	"github.com/samirrijal/bilbopark/internal/pkg/metrics"
)

const requestTimeout = 15 * time.Second

// LegacySunset is when the unversioned routes stop being served.
var LegacySunset = time.Date(2027, time.June, 30, 0, 0, 0, 0, time.UTC)

// route binds a handler to a method and a path relative to the API root.
type route struct {
	method  string
	path    string
	handler func(*Dependencies) fiber.Handler
}

// apiRoutes are served under /v1. Static segments must precede :id
// siblings so /spots/search is not captured by /spots/:id.
var apiRoutes = []route{
	{fiber.MethodPost, "/lots", CreateLotHandler},
	{fiber.MethodGet, "/lots", ListLotsHandler},
	{fiber.MethodGet, "/lots/:id", GetLotHandler},
	{fiber.MethodPost, "/lots/:id/spots", CreateSpotHandler},
	{fiber.MethodGet, "/spots", ListSpotsHandler},
	{fiber.MethodGet, "/spots/search", SearchSpotsHandler},
	{fiber.MethodGet, "/spots/:id", GetSpotHandler},
	{fiber.MethodPost, "/spots/:id/release", ReleaseSpotHandler},
	{fiber.MethodGet, "/spots/:id/reservations", SpotReservationsHandler},
	{fiber.MethodPost, "/reservations", CreateReservationHandler},
	{fiber.MethodGet, "/reservations/:id", GetReservationHandler},
	{fiber.MethodPost, "/reservations/:id/end", EndReservationHandler},
}

// legacyPaths are the unversioned paths that earlier clients used.
// Only the paths are kept; bodies use the /v1 shapes.
var legacyPaths = map[string]bool{
	"/lots":                 true,
	"/lots/:id/spots":       true,
	"/spots":                true,
	"/spots/search":         true,
	"/spots/:id/release":    true,
	"/reservations":         true,
	"/reservations/:id/end": true,
}

// legacyDeprecations lists every legacy path with its /v1 successor.
func legacyDeprecations() []DeprecatedRoute {
	out := []DeprecatedRoute{{Path: "/health", SunsetDate: LegacySunset, Alternative: "/v1/health"}}
	for _, r := range apiRoutes {
		if !legacyPaths[r.path] {
			continue
		}
		out = append(out, DeprecatedRoute{Path: r.path, SunsetDate: LegacySunset, Alternative: "/v1" + r.path})
	}
	return out
}

// SetupRoutes registers all REST, GraphQL, and WebSocket routes.
func SetupRoutes(app *fiber.App, deps *Dependencies) {
	// Prometheus metrics
	app.Use(metrics.Middleware())
	app.Get("/metrics", metrics.Handler(deps.PoolStat))

	// Response compression (gzip)
	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed, // Balance speed vs compression ratio
	}))

	// Request ID
	app.Use(requestid.New())

	// Propagate request ID into slog context
	app.Use(RequestIDLogMiddleware())

	// Access logs (structured HTTP request logging)
	app.Use(AccessLogMiddleware())

	// Rate limiting: 120 requests per minute per IP
	app.Use(limiter.New(limiter.Config{
		Max:        120,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return newError(c, fiber.StatusTooManyRequests, "rate_limited", "too many requests, please try again later")
		},
	}))

	// Security headers + API version
	app.Use(func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("X-XSS-Protection", "1; mode=block")
		c.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Set("X-API-Version", "1.0.0")
		return c.Next()
	})

	// ETag for conditional caching
	app.Use(ETagMiddleware())

	// Default Cache-Control headers
	app.Use(CachingMiddleware())

	// Deprecation headers on the unversioned routes
	app.Use(DeprecationMiddleware(legacyDeprecations()))

	// Health & readiness (no timeout, fast internal checks)
	app.Get("/v1/health", HealthHandler())
	app.Get("/v1/ready", ReadyHandler(deps))
	app.Get("/health", HealthHandler())

	// REST API v1, 15s per-request timeout
	v1 := app.Group("/v1")
	for _, r := range apiRoutes {
		v1.Add(r.method, r.path, timeout.NewWithContext(r.handler(deps), requestTimeout))
	}

	// Unversioned aliases
	for _, r := range apiRoutes {
		if legacyPaths[r.path] {
			app.Add(r.method, r.path, timeout.NewWithContext(r.handler(deps), requestTimeout))
		}
	}

	// GraphQL
	app.Post("/graphql", GraphQLHandler(deps))

	// API documentation (Swagger UI)
	SetupDocs(app)

	// WebSocket relay needs an event stream
	if deps.Events == nil {
		return
	}
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws", websocket.New(WebSocketHandler(deps.Events)))
}
