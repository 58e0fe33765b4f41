package handler

import (
	"regexp"

	"rag-pipeline-console/internal/pkg/logger"
	"rag-pipeline-console/internal/pkg/serverutils"
	internalWS "rag-pipeline-console/internal/websocket"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

var clientIDPattern = regexp.MustCompile(`^[A-Za-z0-9_.:-]{1,128}$`)

// StatusProvider reports the service health shown on /api/system/status.
type StatusProvider interface {
	Status() map[string]interface{}
}

type BackendHandler struct {
	hub    *internalWS.Hub
	status StatusProvider
	logger logger.ILogger
}

func NewBackendHandler(hub *internalWS.Hub, status StatusProvider, log logger.ILogger) *BackendHandler {
	return &BackendHandler{
		hub:    hub,
		status: status,
		logger: log,
	}
}

func (h *BackendHandler) RegisterRoutes(app fiber.Router) {
	app.Get("/health", h.Health)
	app.Get("/api/system/status", h.SystemStatus)
	app.Use("/ws", serverutils.RequireUpgrade)
	app.Get("/ws/:client_id", h.ServeWs)
}

// ServeWs upgrades the request and attaches the connection to the hub under
// the client id from the path.
func (h *BackendHandler) ServeWs(c *fiber.Ctx) error {
	clientID := c.Params("client_id")
	if !clientIDPattern.MatchString(clientID) {
		return c.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(fiber.StatusBadRequest, "invalid client id"))
	}

	return websocket.New(func(conn *websocket.Conn) {
		h.logger.Info("BackendHandler", "Starting WebSocket session", map[string]interface{}{"client_id": clientID})
		internalWS.ServeWs(h.hub, conn, clientID)
		h.logger.Info("BackendHandler", "WebSocket session ended", map[string]interface{}{"client_id": clientID})
	})(c)
}

func (h *BackendHandler) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "ok",
		"clients": h.hub.Count(),
	})
}

func (h *BackendHandler) SystemStatus(c *fiber.Ctx) error {
	return c.JSON(serverutils.SuccessResponse("System status", h.status.Status()))
}
