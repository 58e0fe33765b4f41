package serverutils

import (
	"time"

	"rag-pipeline-console/internal/pkg/logger"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// RequireUpgrade rejects plain HTTP requests on websocket routes.
func RequireUpgrade(ctx *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(ctx) {
		ctx.Locals("allowed", true)
		return ctx.Next()
	}
	return fiber.ErrUpgradeRequired
}

// RequestLogger logs each request at debug level once it has been served.
func RequestLogger(log logger.ILogger) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		start := time.Now()
		err := ctx.Next()
		log.Debug("Server", "Request served", map[string]interface{}{
			"method":   ctx.Method(),
			"path":     ctx.Path(),
			"status":   ctx.Response().StatusCode(),
			"duration": time.Since(start).String(),
		})
		return err
	}
}
