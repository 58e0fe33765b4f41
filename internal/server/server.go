package server

import (
	"rag-pipeline-console/internal/config"
	"rag-pipeline-console/internal/handler"
	"rag-pipeline-console/internal/pkg/logger"
	"rag-pipeline-console/internal/pkg/serverutils"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
)

type Server struct {
	app    *fiber.App
	cfg    *config.Config
	logger logger.ILogger
}

func New(cfg *config.Config, backend *handler.BackendHandler, log logger.ILogger) *Server {
	app := fiber.New(fiber.Config{
		BodyLimit:             1 * 1024 * 1024,
		DisableStartupMessage: true,
		ErrorHandler:          serverutils.ErrorHandler(log),
	})

	// Middleware
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.Backend.CorsAllowedOrigins,
		AllowHeaders: "Origin, Content-Type, Accept",
		AllowMethods: "GET, OPTIONS",
	}))

	// OpenTelemetry tracing middleware (traces all HTTP requests)
	app.Use(otelfiber.Middleware())
	app.Use(serverutils.RequestLogger(log))

	// Routes
	backend.RegisterRoutes(app)

	return &Server{
		app:    app,
		cfg:    cfg,
		logger: log,
	}
}

func (s *Server) GetApp() *fiber.App {
	return s.app
}

func (s *Server) Run() error {
	s.logger.Info("Server", "Placeholder service listening", map[string]interface{}{"addr": "http://localhost:" + s.cfg.Backend.Port})
	return s.app.Listen(":" + s.cfg.Backend.Port)
}

func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
