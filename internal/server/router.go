// Package server assembles the Fiber application: middleware, routes and
// the error handler shared by every endpoint.
package server

import (
	"errors"
	"io"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lessonforge/api/internal/config"
	"github.com/lessonforge/api/internal/handler"
	"github.com/lessonforge/api/internal/middleware"
	ws "github.com/lessonforge/api/internal/websocket"
	"github.com/lessonforge/api/pkg/response"
)

type Handlers struct {
	Auth       *handler.AuthHandler
	Manifest   *handler.ManifestHandler
	Generation *handler.GenerationHandler
	Report     *handler.ReportHandler
	Library    *handler.LibraryHandler
}

type Options struct {
	Handlers Handlers
	// Auth guards everything under /api.
	Auth    fiber.Handler
	Limiter *middleware.RateLimiter
	Limits  config.RateLimitConfig
	Hub     *ws.Hub
	// Services reports which external dependencies are configured.
	Services func() fiber.Map
	// RequestLog receives one line per request; nil disables request logging.
	RequestLog io.Writer
	Debug      bool
}

// New builds the application with every route registered.
func New(opts Options) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: errorHandler,
		BodyLimit:    5 * 1024 * 1024,
	})

	app.Use(recover.New())
	if opts.RequestLog != nil {
		format := "[${time}] ${status} - ${latency} ${method} ${path}\n"
		if opts.Debug {
			format = "[${time}] ${status} - ${latency} ${method} ${path} ${queryParams} ${body} ${reqHeaders}\n"
		}
		app.Use(logger.New(logger.Config{
			Format: format,
			Output: opts.RequestLog,
		}))
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))

	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"timestamp": time.Now().Unix(),
		})
	})

	app.Get("/health", func(c *fiber.Ctx) error {
		services := fiber.Map{}
		if opts.Services != nil {
			services = opts.Services()
		}
		return c.JSON(fiber.Map{
			"status":   "ok",
			"services": services,
		})
	})

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	// ForwardAuth verification endpoint (internal, called by Traefik)
	app.Get("/auth/verify", opts.Handlers.Auth.Verify)

	h := opts.Handlers
	api := app.Group("/api", opts.Auth)

	manifests := api.Group("/manifests", opts.Limiter.ValidateLimit(opts.Limits.ValidatePerMin))
	manifests.Post("/validate", h.Manifest.Validate)
	manifests.Post("/analyze", h.Manifest.Analyze)

	library := api.Group("/library")
	library.Get("/", h.Library.List)
	library.Get("/:name", h.Library.Get)

	generations := api.Group("/generations")
	generations.Post("/start", opts.Limiter.GenerateLimit(opts.Limits.GeneratePerHour), h.Generation.Start)
	generations.Get("/status/:jobId", h.Generation.Status)
	generations.Get("/result/:jobId", h.Generation.Result)
	generations.Post("/cancel/:jobId", h.Generation.Cancel)

	reports := api.Group("/reports", opts.Limiter.ReportsLimit(opts.Limits.ReportsPerMin))
	reports.Get("/summary", h.Report.Summary)

	if opts.Hub != nil {
		app.Use("/ws", func(c *fiber.Ctx) error {
			if websocket.IsWebSocketUpgrade(c) {
				return c.Next()
			}
			return fiber.ErrUpgradeRequired
		})

		app.Get("/ws/jobs/:jobId", websocket.New(func(c *websocket.Conn) {
			opts.Hub.HandleConnection(c, c.Params("jobId"))
		}))
	}

	return app
}

func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	var e *fiber.Error
	if errors.As(err, &e) {
		code = e.Code
		message = e.Message
	}

	switch code {
	case fiber.StatusNotFound:
		return response.NotFound(c, message)
	case fiber.StatusRequestEntityTooLarge:
		return response.ValidationError(c, message, nil)
	default:
		return response.Error(c, code, response.CodeServiceError, message, nil)
	}
}
