// Package api wires the fiber application for the monitoring control
// surface. Camera and enrollment CRUD lives in a separate service; this API
// only starts, stops and observes monitors.
package api

import (
	"fmt"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/requestid"

	"github.com/saturnino-fabrica-de-software/presenca/internal/api/handler"
	"github.com/saturnino-fabrica-de-software/presenca/internal/api/middleware"
	"github.com/saturnino-fabrica-de-software/presenca/internal/monitor"
	"github.com/saturnino-fabrica-de-software/presenca/internal/stream"
)

type Dependencies struct {
	Cameras  handler.CameraStore
	Monitors *monitor.Registry
	Streams  *stream.Registry
	DB       handler.Pinger
}

type Router struct {
	app    *fiber.App
	logger *slog.Logger
	deps   *Dependencies
}

func NewRouter(logger *slog.Logger, deps *Dependencies) *Router {
	app := fiber.New(fiber.Config{
		ErrorHandler: middleware.ErrorHandler(logger),
		AppName:      "Presenca Monitor",
	})

	return &Router{
		app:    app,
		logger: logger,
		deps:   deps,
	}
}

func (r *Router) Setup() {
	r.app.Use(requestid.New())
	r.app.Use(middleware.Recover(r.logger))
	r.app.Use(middleware.Logger(r.logger))
	r.app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))

	healthHandler := handler.NewHealthHandler(r.deps.DB)
	r.app.Get("/health", healthHandler.Health)
	r.app.Get("/ready", healthHandler.Ready)

	v1 := r.app.Group("/v1")

	monitoringHandler := handler.NewMonitoringHandler(r.deps.Monitors, r.deps.Cameras, r.logger)
	monitoring := v1.Group("/monitoring")
	monitoring.Post("/cameras/:id/start", monitoringHandler.Start)
	monitoring.Post("/cameras/:id/stop", monitoringHandler.Stop)
	monitoring.Post("/start-all", monitoringHandler.StartAll)
	monitoring.Post("/reload-catalog", monitoringHandler.ReloadCatalog)
	monitoring.Get("/status", monitoringHandler.Status)

	streamHandler := handler.NewStreamHandler(r.deps.Streams, r.deps.Cameras)
	v1.Get("/cameras/:id/preview", streamHandler.Preview)
}

func (r *Router) Listen(port int) error {
	return r.app.Listen(fmt.Sprintf(":%d", port))
}

func (r *Router) Shutdown() error {
	r.deps.Monitors.StopAll()
	r.deps.Streams.StopAll()
	return r.app.Shutdown()
}

// App exposes the fiber app for tests.
func (r *Router) App() *fiber.App {
	return r.app
}
