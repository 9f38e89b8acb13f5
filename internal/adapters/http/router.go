package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/fiber/v2/middleware/timeout"
	"github.com/gofiber/websocket/v2"

	"github.com/urbanbuzz/explorer/internal/pkg/metrics"
)

const lookupTimeout = 15 * time.Second

// SetupRoutes registers all REST, GraphQL, and WebSocket routes.
func SetupRoutes(app *fiber.App, deps *Dependencies) {
	app.Use(recover.New())

	// Prometheus metrics
	app.Use(metrics.Middleware())
	app.Get("/metrics", metrics.Handler())

	app.Use(cors.New())

	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))

	app.Use(requestid.New())
	app.Use(RequestIDLogMiddleware())
	app.Use(AccessLogMiddleware())

	// Explorations fan out to several upstream calls each, so the budget is per IP.
	app.Use(limiter.New(limiter.Config{
		Max:        60,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		Next: func(c *fiber.Ctx) bool {
			return c.Path() == "/v1/health" || c.Path() == "/v1/ready" || c.Path() == "/metrics"
		},
		LimitReached: func(c *fiber.Ctx) error {
			return newError(c, fiber.StatusTooManyRequests, "rate_limited", "too many requests, please try again later")
		},
	}))

	// Security headers + API version
	app.Use(func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Set("X-API-Version", "1.0.0")
		return c.Next()
	})

	app.Use(ETagMiddleware())
	app.Use(CachingMiddleware())

	// Health & readiness (no timeout, fast internal checks)
	app.Get("/v1/health", HealthHandler(deps))
	app.Get("/v1/ready", ReadyHandler(deps))

	v1 := app.Group("/v1")

	// Explorations
	v1.Post("/explorations", timeout.NewWithContext(CreateExplorationHandler(deps), deps.ExploreTimeout))
	v1.Get("/explorations/recent", timeout.NewWithContext(RecentExplorationsHandler(deps), lookupTimeout))

	// Map lookups
	v1.Get("/geocode", timeout.NewWithContext(GeocodeHandler(deps), lookupTimeout))
	v1.Get("/reverse-geocode", timeout.NewWithContext(ReverseGeocodeHandler(deps), lookupTimeout))
	v1.Get("/directions", timeout.NewWithContext(DirectionsHandler(deps), lookupTimeout))
	v1.Post("/stations/nearest", timeout.NewWithContext(NearestStationHandler(deps), lookupTimeout))
	v1.Post("/places/nearby", timeout.NewWithContext(NearbyPlacesHandler(deps), lookupTimeout))
	v1.Post("/map-image", MapImageHandler(deps))

	// Vision analysis
	v1.Post("/images/analyze", timeout.NewWithContext(AnalyzeImageHandler(deps), 45*time.Second))
	v1.Post("/safety-analyses", timeout.NewWithContext(SafetyAnalysisHandler(deps), 45*time.Second))
	v1.Post("/route-analyses", timeout.NewWithContext(StartRouteAnalysisHandler(deps), lookupTimeout))
	v1.Get("/route-analyses/:id", timeout.NewWithContext(GetRouteAnalysisHandler(deps), lookupTimeout))

	// GraphQL
	app.Post("/graphql", timeout.NewWithContext(GraphQLHandler(deps), deps.ExploreTimeout))

	// API documentation (Swagger UI)
	SetupDocs(app)

	// WebSocket progress stream
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/explorations", websocket.New(ExplorationStreamHandler(deps)))
}
