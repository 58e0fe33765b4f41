package progress

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"rag-pipeline-console/internal/pkg/logger"
	"rag-pipeline-console/pkg/events"
	"rag-pipeline-console/pkg/pipeline"
	"rag-pipeline-console/pkg/projection"
	"rag-pipeline-console/pkg/router"
)

// Commands is the slice of the command service the remote source needs.
type Commands interface {
	RunAIAgent(ctx context.Context, req events.AIAgentRequest) error
	DownloadDocument(ctx context.Context, req events.DownloadDocumentRequest) error
	RunPipelineStage2(ctx context.Context, req events.PipelineStage2Request) error
	ProcessLocalFiles(ctx context.Context, req events.ProcessLocalFilesRequest) error
	DiscoverDocuments(ctx context.Context, req events.DocumentDiscoveryRequest) error
	RunPipelineStage1(ctx context.Context, req events.PipelineStage1Request) error
}

const (
	agentErrorPrefix  = "AI Agent error"
	stage2ErrorPrefix = "Pipeline Stage 2 error"
	discoveryPrefix   = "Discovery error"
	stage1ErrorPrefix = "Pipeline Stage 1 error"
	defaultCertLevel  = "all"
	defaultMaxResults = 4
)

// Remote drives runs through the remote service. Progress arrives as pushed
// frames and is applied to the current run; the service does not echo run
// ids. Enhancement phases have no remote action and go to the fallback.
type Remote struct {
	ctx      context.Context
	commands Commands
	fallback pipeline.Source
	logger   logger.ILogger

	mu      sync.RWMutex
	sink    pipeline.Sink
	onError func(message string)
}

var _ pipeline.Source = (*Remote)(nil)

func NewRemote(ctx context.Context, commands Commands, fallback pipeline.Source, log logger.ILogger) *Remote {
	return &Remote{
		ctx:      ctx,
		commands: commands,
		fallback: fallback,
		logger:   log,
	}
}

// Bind sets the sink that pushed frames are applied to. Starting a run binds
// its sink as well.
func (r *Remote) Bind(sink pipeline.Sink) {
	r.mu.Lock()
	r.sink = sink
	r.mu.Unlock()
}

// OnError sets a listener that sees every error frame. The router keeps one
// handler per type, so this is how other projections learn about them.
func (r *Remote) OnError(fn func(message string)) {
	r.mu.Lock()
	r.onError = fn
	r.mu.Unlock()
}

func (r *Remote) currentSink() pipeline.Sink {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sink
}

// Attach registers the frame handlers on rt. The returned function removes
// them again.
func (r *Remote) Attach(rt *router.Router) router.Unregister {
	disposers := []router.Unregister{
		rt.Register(events.TypeAIAgentUpdate, r.handleAgentUpdate),
		rt.Register(events.TypeDiscoveryUpdate, r.handleDiscoveryUpdate),
		rt.Register(events.TypePipelineStage1Update, r.handleStage1Update),
		rt.Register(events.TypePipelineStage2Update, r.handleStage2Update),
		rt.Register(events.TypeDocumentDownloadUpdate, r.handleDownloadUpdate),
		rt.Register(events.TypeLocalFilesUpdate, r.handleLocalFilesUpdate),
		rt.Register(events.TypeError, r.handleError),
	}
	return func() {
		for _, d := range disposers {
			d()
		}
	}
}

func (r *Remote) StartDiscovery(run uint64, req pipeline.DiscoveryRequest, sink pipeline.Sink) error {
	r.Bind(sink)
	cert := req.CertificationLevel
	if cert == "" {
		cert = defaultCertLevel
	}
	maxDocs := req.MaxDocuments
	if maxDocs <= 0 {
		maxDocs = defaultMaxResults
	}
	switch req.Method {
	case "", pipeline.DiscoveryViaAgent:
		return r.commands.RunAIAgent(r.ctx, events.AIAgentRequest{
			Query:              req.Query,
			CertificationLevel: cert,
			MaxDocuments:       maxDocs,
		})
	case pipeline.DiscoveryViaSources:
		return r.commands.DiscoverDocuments(r.ctx, events.DocumentDiscoveryRequest{
			Topic:              req.Query,
			CertificationLevel: cert,
			MaxDocuments:       maxDocs,
			Sources:            req.Sources,
		})
	case pipeline.DiscoveryViaStage1:
		return r.commands.RunPipelineStage1(r.ctx, events.PipelineStage1Request{
			Topic:  req.Query,
			Config: map[string]interface{}{"max_documents": maxDocs},
		})
	default:
		return fmt.Errorf("%w: %q", pipeline.ErrUnknownMethod, req.Method)
	}
}

func (r *Remote) StartFactory(run uint64, req pipeline.FactoryRequest, sink pipeline.Sink) error {
	r.Bind(sink)
	files := make([]string, 0, len(req.Documents))
	for _, d := range req.Documents {
		files = append(files, d.Title)
	}
	return r.commands.RunPipelineStage2(r.ctx, events.PipelineStage2Request{
		PDFFiles:    files,
		OutputPhase: req.OutputPhase,
		Config:      map[string]interface{}{},
	})
}

func (r *Remote) StartPhase(phase int, run uint64, sink pipeline.Sink) error {
	return r.fallback.StartPhase(phase, run, sink)
}

func (r *Remote) StartDownload(doc projection.Document, sink pipeline.Sink) error {
	r.Bind(sink)
	return r.commands.DownloadDocument(r.ctx, events.DownloadDocumentRequest{
		DocumentID: doc.ID,
		Document:   doc.ToPayload(),
	})
}

func (r *Remote) StartUploads(files []projection.UploadedFile, sink pipeline.Sink) error {
	r.Bind(sink)
	req := events.ProcessLocalFilesRequest{Files: make([]events.LocalFile, 0, len(files))}
	for _, f := range files {
		req.Files = append(req.Files, events.LocalFile{Name: f.Name, Size: f.Size})
	}
	return r.commands.ProcessLocalFiles(r.ctx, req)
}

func (r *Remote) decode(msg events.Message, v interface{}) (pipeline.Sink, bool) {
	sink := r.currentSink()
	if sink == nil {
		return nil, false
	}
	if err := msg.Decode(v); err != nil {
		r.logger.Warn("RemoteSource", "Dropping undecodable frame", map[string]interface{}{
			"type":  msg.Type,
			"error": err.Error(),
		})
		return nil, false
	}
	return sink, true
}

func (r *Remote) handleAgentUpdate(msg events.Message) {
	var u events.AIAgentUpdate
	sink, ok := r.decode(msg, &u)
	if !ok {
		return
	}

	update := pipeline.DiscoveryUpdate{
		StageUpdate: pipeline.StageUpdate{
			Progress:    pipeline.Ptr(u.OverallProgress),
			CurrentStep: pipeline.Ptr(u.CurrentStep),
		},
	}
	if st := pipeline.Status(u.Status); st == pipeline.StatusCompleted || st == pipeline.StatusError {
		update.Status = &st
	}
	if u.Error != "" {
		update.Error = pipeline.Ptr(u.Error)
	}
	if u.Results != nil && (len(*u.Results) > 0 || update.Status != nil) {
		docs := make([]projection.Document, 0, len(*u.Results))
		for _, p := range *u.Results {
			docs = append(docs, projection.DocumentFromPayload(p))
		}
		update.Results = &docs
	}
	sink.ApplyDiscovery(0, update)
}

func terminalStatus(status string) *pipeline.Status {
	if st := pipeline.Status(status); st == pipeline.StatusCompleted || st == pipeline.StatusError {
		return &st
	}
	return nil
}

func (r *Remote) handleDiscoveryUpdate(msg events.Message) {
	var u events.DiscoveryUpdate
	sink, ok := r.decode(msg, &u)
	if !ok {
		return
	}

	update := pipeline.DiscoveryUpdate{
		StageUpdate: pipeline.StageUpdate{
			Progress:    pipeline.Ptr(u.Progress),
			CurrentStep: pipeline.Ptr(u.Message),
			Status:      terminalStatus(u.Status),
		},
	}
	if u.Count > 0 {
		update.DocumentsFound = pipeline.Ptr(u.Count)
	}
	if u.Documents != nil {
		docs := make([]projection.Document, 0, len(*u.Documents))
		for _, p := range *u.Documents {
			docs = append(docs, projection.DocumentFromPayload(p))
		}
		update.Results = &docs
	}
	sink.ApplyDiscovery(0, update)
}

// handleStage1Update reports the collection pipeline as discovery. Its
// completed frame only names the PDFs it stored, so they become documents
// that are already downloaded.
func (r *Remote) handleStage1Update(msg events.Message) {
	var u events.PipelineStage1Update
	sink, ok := r.decode(msg, &u)
	if !ok {
		return
	}

	update := pipeline.DiscoveryUpdate{
		StageUpdate: pipeline.StageUpdate{
			Progress:    pipeline.Ptr(u.Progress),
			CurrentStep: pipeline.Ptr(u.CurrentStep),
			Status:      terminalStatus(u.Status),
		},
		DocumentsFound: pipeline.Ptr(u.DocumentsFound),
	}
	if update.Status != nil && *update.Status == pipeline.StatusCompleted {
		docs := make([]projection.Document, 0, len(u.DiscoveredPDFs))
		for i, name := range u.DiscoveredPDFs {
			docs = append(docs, projection.Document{
				ID:               fmt.Sprintf("stage1_%d", i+1),
				Title:            name,
				Type:             "PDF",
				Relevance:        1,
				DownloadStatus:   projection.DownloadCompleted,
				DownloadProgress: pipeline.Ptr(100.0),
			})
		}
		update.Results = &docs
	}
	sink.ApplyDiscovery(0, update)
}

func (r *Remote) handleStage2Update(msg events.Message) {
	var u events.PipelineStage2Update
	sink, ok := r.decode(msg, &u)
	if !ok {
		return
	}

	update := pipeline.FactoryUpdate{
		StageUpdate: pipeline.StageUpdate{
			Progress:    pipeline.Ptr(u.Progress),
			CurrentStep: pipeline.Ptr(u.CurrentStep),
		},
		SyntheticExamples: pipeline.Ptr(u.SyntheticExamples),
		ProcessedFiles:    pipeline.Ptr(u.ProcessedFiles),
	}
	if u.TotalFiles > 0 {
		update.TotalFiles = pipeline.Ptr(u.TotalFiles)
	}
	if st := pipeline.Status(u.Status); st == pipeline.StatusCompleted || st == pipeline.StatusError {
		update.Status = &st
	}
	sink.ApplyFactory(0, update)
}

func (r *Remote) handleDownloadUpdate(msg events.Message) {
	var u events.DocumentDownloadUpdate
	sink, ok := r.decode(msg, &u)
	if !ok {
		return
	}

	update := projection.DocumentUpdate{ID: u.DocumentID, Progress: u.Progress}
	if st := projection.DownloadStatus(u.Status); st.Valid() {
		update.Status = &st
	}
	if u.Error != "" {
		update.Error = pipeline.Ptr(u.Error)
	}
	sink.ApplyDocument(update)
}

func (r *Remote) handleLocalFilesUpdate(msg events.Message) {
	var u events.LocalFilesUpdate
	sink, ok := r.decode(msg, &u)
	if !ok {
		return
	}

	update := projection.UploadUpdate{Name: u.FileName, Progress: u.Progress}
	if st := projection.UploadStatus(u.Status); st.Valid() {
		update.Status = &st
	}
	sink.ApplyUpload(update)
}

// handleError maps a generic error frame onto the stage it names. Errors
// that name no stage are left to other listeners.
func (r *Remote) handleError(msg events.Message) {
	var u events.ErrorMessage
	if err := msg.Decode(&u); err != nil {
		return
	}

	r.mu.RLock()
	listener := r.onError
	sink := r.sink
	r.mu.RUnlock()

	if listener != nil {
		listener(u.Message)
	}
	if sink == nil {
		return
	}

	failed := pipeline.Ptr(pipeline.StatusError)
	switch {
	case strings.HasPrefix(u.Message, agentErrorPrefix),
		strings.HasPrefix(u.Message, discoveryPrefix),
		strings.HasPrefix(u.Message, stage1ErrorPrefix):
		sink.ApplyDiscovery(0, pipeline.DiscoveryUpdate{
			StageUpdate: pipeline.StageUpdate{Status: failed, Error: pipeline.Ptr(u.Message), CurrentStep: pipeline.Ptr("Error: " + u.Message)},
		})
	case strings.HasPrefix(u.Message, stage2ErrorPrefix):
		sink.ApplyFactory(0, pipeline.FactoryUpdate{
			StageUpdate: pipeline.StageUpdate{Status: failed, Error: pipeline.Ptr(u.Message), CurrentStep: pipeline.Ptr("Error: " + u.Message)},
		})
	default:
		r.logger.Warn("RemoteSource", "Remote error", map[string]interface{}{"message": u.Message})
	}
}
