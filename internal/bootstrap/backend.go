package bootstrap

import (
	"context"

	"rag-pipeline-console/internal/config"
	"rag-pipeline-console/internal/handler"
	"rag-pipeline-console/internal/pkg/logger"
	"rag-pipeline-console/internal/placeholder"
	"rag-pipeline-console/internal/progress"
	"rag-pipeline-console/internal/repository/memory"
	"rag-pipeline-console/internal/server"
	"rag-pipeline-console/internal/websocket"
)

// BackendContainer wires the placeholder service that stands in for the
// remote pipeline backend.
type BackendContainer struct {
	Logger      *logger.ZapLogger
	Hub         *websocket.Hub
	Placeholder *placeholder.Service
	Server      *server.Server
}

func NewBackendContainer(ctx context.Context, cfg *config.Config) *BackendContainer {
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")

	// WebSocket Hub
	wsLogger := logger.NewIsolatedLogger(cfg.App.FrameLogFilePath)
	wsHub := websocket.NewHub(wsLogger)

	svc := placeholder.NewService(ctx, wsHub, progress.RealClock{}, cadence(cfg.Simulation),
		memory.NewCredentialRepository(cfg.Storage.CredentialTTL), sysLogger)
	svc.SetAnswerDelay(cfg.Backend.AnswerDelay)
	wsHub.OnMessage(svc.Handle)
	go wsHub.Run()

	backendHandler := handler.NewBackendHandler(wsHub, svc, sysLogger)

	return &BackendContainer{
		Logger:      sysLogger,
		Hub:         wsHub,
		Placeholder: svc,
		Server:      server.New(cfg, backendHandler, sysLogger),
	}
}
