// Package httpserver provides HTTP server and routing.
package httpserver

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"go.uber.org/zap"

	"stream-resolver/internal/app/service"
	"stream-resolver/internal/transport/httpserver/handler"
	"stream-resolver/internal/transport/httpserver/middleware"
	"stream-resolver/internal/validator"
)

// ServerConfig holds server configuration.
type ServerConfig struct {
	Name      string
	Port      int
	BodyLimit int
}

// Server wraps Fiber app with handlers.
type Server struct {
	App    *fiber.App
	Logger *zap.Logger
}

// NewServer creates a new HTTP server with all routes configured.
// ready checks gate /readyz; with none the service is always ready.
func NewServer(
	cfg ServerConfig,
	resolveSvc *service.ResolveService,
	v *validator.Validator,
	logger *zap.Logger,
	ready ...middleware.ReadinessCheck,
) *Server {
	name := cfg.Name
	if name == "" {
		name = "stream-resolver"
	}

	app := fiber.New(fiber.Config{
		AppName:               name,
		BodyLimit:             cfg.BodyLimit,
		ErrorHandler:          errorHandler(logger),
		UnescapePath:          true,
		DisableStartupMessage: true,
	})

	// Health checks first so probes answer even when later middleware misbehaves.
	app.Use(middleware.NewHealthCheck(ready...))

	app.Use(requestid.New())
	app.Use(middleware.Recover(logger))
	app.Use(middleware.Logger(logger))
	app.Use(middleware.CORS())
	app.Use(compress.New())

	streamHandler := handler.NewStreamHandler(resolveSvc, v, logger)
	adminHandler := handler.NewAdminHandler(resolveSvc, v, logger)

	registerRoutes(app, streamHandler, adminHandler)

	return &Server{
		App:    app,
		Logger: logger,
	}
}

// registerRoutes sets up all API routes.
func registerRoutes(
	app *fiber.App,
	streamHandler *handler.StreamHandler,
	adminHandler *handler.AdminHandler,
) {
	// Health checks are handled by middleware (/livez, /readyz)

	v1 := app.Group("/api/v1")

	v1.Get("/streams/:type/:id", streamHandler.Streams)

	admin := v1.Group("/admin")
	admin.Get("/providers", adminHandler.GetProviders)
	admin.Post("/refresh/:type/:id", adminHandler.Refresh)
	admin.Get("/diagnose/:type/:id", adminHandler.Diagnose)
}

// errorHandler returns a custom error handler that logs based on HTTP status code.
// 404s are logged at DEBUG level, 4xx at WARN, 5xx at ERROR.
func errorHandler(logger *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		errCode := "INTERNAL_ERROR"

		if e, ok := err.(*fiber.Error); ok {
			code = e.Code
		}

		switch {
		case code == fiber.StatusNotFound:
			errCode = "NOT_FOUND"
			logger.Debug("resource not found",
				zap.String("path", c.Path()),
				zap.String("method", c.Method()),
			)
		case code >= 500:
			logger.Error("server error",
				zap.Error(err),
				zap.Int("status", code),
				zap.String("path", c.Path()),
			)
		case code >= 400:
			errCode = "CLIENT_ERROR"
			logger.Warn("client error",
				zap.Error(err),
				zap.Int("status", code),
				zap.String("path", c.Path()),
			)
		}

		return c.Status(code).JSON(fiber.Map{
			"error": err.Error(),
			"code":  errCode,
		})
	}
}

// Start starts the HTTP server.
func (s *Server) Start(port int) error {
	s.Logger.Info("starting HTTP server", zap.Int("port", port))

	return s.App.Listen(fmt.Sprintf(":%d", port))
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown() error {
	s.Logger.Info("shutting down HTTP server")

	return s.App.Shutdown()
}
