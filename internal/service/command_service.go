package service

import (
	"context"
	"fmt"

	"rag-pipeline-console/internal/pkg/logger"
	"rag-pipeline-console/pkg/events"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Sender writes one encoded frame to the remote service.
// Implemented by *transport.Transport.
type Sender interface {
	Send(payload []byte) error
}

// ICommandService turns user intents into outbound {action, data} frames.
// Every method fails with transport.ErrNotConnected while the channel is not open.
type ICommandService interface {
	RunAIAgent(ctx context.Context, req events.AIAgentRequest) error
	DownloadDocument(ctx context.Context, req events.DownloadDocumentRequest) error
	RunPipelineStage2(ctx context.Context, req events.PipelineStage2Request) error
	ProcessLocalFiles(ctx context.Context, req events.ProcessLocalFilesRequest) error
	SystemConfig(ctx context.Context, req events.SystemConfigRequest) error
	GetStatus(ctx context.Context) error
	TestLLMConnection(ctx context.Context, req events.TestLLMConnectionRequest) error
	CheckDocumentUpdates(ctx context.Context) error
	DiscoverDocuments(ctx context.Context, req events.DocumentDiscoveryRequest) error
	RunPipelineStage1(ctx context.Context, req events.PipelineStage1Request) error
	SearchDocuments(ctx context.Context, req events.DocumentSearchRequest) error
	AdvancedSearch(ctx context.Context, req events.AdvancedSearchRequest) error
	GetSearchHistory(ctx context.Context) error
	GetSavedSearches(ctx context.Context) error
}

type commandService struct {
	sender   Sender
	validate *validator.Validate
	tracer   trace.Tracer
	logger   logger.ILogger
}

func NewCommandService(sender Sender, tracer trace.Tracer, log logger.ILogger) ICommandService {
	return &commandService{
		sender:   sender,
		validate: validator.New(),
		tracer:   tracer,
		logger:   log,
	}
}

func (s *commandService) RunAIAgent(ctx context.Context, req events.AIAgentRequest) error {
	return s.send(ctx, events.ActionAIAgent, req)
}

func (s *commandService) DownloadDocument(ctx context.Context, req events.DownloadDocumentRequest) error {
	return s.send(ctx, events.ActionDownloadDocument, req)
}

func (s *commandService) RunPipelineStage2(ctx context.Context, req events.PipelineStage2Request) error {
	return s.send(ctx, events.ActionPipelineStage2, req)
}

func (s *commandService) ProcessLocalFiles(ctx context.Context, req events.ProcessLocalFilesRequest) error {
	return s.send(ctx, events.ActionProcessLocalFiles, req)
}

func (s *commandService) SystemConfig(ctx context.Context, req events.SystemConfigRequest) error {
	return s.send(ctx, events.ActionSystemConfig, req)
}

func (s *commandService) GetStatus(ctx context.Context) error {
	return s.send(ctx, events.ActionGetStatus, nil)
}

func (s *commandService) TestLLMConnection(ctx context.Context, req events.TestLLMConnectionRequest) error {
	return s.send(ctx, events.ActionTestLLMConnection, req)
}

func (s *commandService) CheckDocumentUpdates(ctx context.Context) error {
	return s.send(ctx, events.ActionCheckDocumentUpdates, nil)
}

func (s *commandService) DiscoverDocuments(ctx context.Context, req events.DocumentDiscoveryRequest) error {
	return s.send(ctx, events.ActionDocumentDiscovery, req)
}

func (s *commandService) RunPipelineStage1(ctx context.Context, req events.PipelineStage1Request) error {
	if req.Config == nil {
		req.Config = map[string]interface{}{}
	}
	return s.send(ctx, events.ActionPipelineStage1, req)
}

func (s *commandService) SearchDocuments(ctx context.Context, req events.DocumentSearchRequest) error {
	return s.send(ctx, events.ActionDocumentSearch, req)
}

func (s *commandService) AdvancedSearch(ctx context.Context, req events.AdvancedSearchRequest) error {
	if req.SortBy == "" {
		req.SortBy = "relevance"
	}
	return s.send(ctx, events.ActionAdvancedSearch, req)
}

func (s *commandService) GetSearchHistory(ctx context.Context) error {
	return s.send(ctx, events.ActionGetSearchHistory, nil)
}

func (s *commandService) GetSavedSearches(ctx context.Context) error {
	return s.send(ctx, events.ActionGetSavedSearches, nil)
}

func (s *commandService) send(ctx context.Context, action string, data interface{}) error {
	ctx, span := s.tracer.Start(ctx, "command."+action,
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(attribute.String("command.action", action)),
	)
	defer span.End()

	fail := func(err error) error {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.logger.Warn("CommandService", "Command not sent", map[string]interface{}{"action": action, "error": err.Error()})
		return err
	}

	if data != nil {
		if err := s.validate.StructCtx(ctx, data); err != nil {
			return fail(fmt.Errorf("invalid %s command: %w", action, err))
		}
	}

	payload, err := events.Command{Action: action, Data: data}.Encode()
	if err != nil {
		return fail(err)
	}
	span.SetAttributes(attribute.Int("command.bytes", len(payload)))

	if err := s.sender.Send(payload); err != nil {
		return fail(fmt.Errorf("send %s: %w", action, err))
	}

	s.logger.Debug("CommandService", "Command sent", map[string]interface{}{"action": action})
	return nil
}
