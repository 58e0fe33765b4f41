package placeholder

import (
	"fmt"

	"rag-pipeline-console/pkg/events"
	"rag-pipeline-console/pkg/pipeline"
	"rag-pipeline-console/pkg/projection"
)

// agentMarks is the overall progress reported when each agent step starts.
var agentMarks = [...]float64{20, 40, 60, 80, 90}

func (s *Service) runAgent(clientID string, req events.AIAgentRequest) {
	steps := make([]events.AgentStep, len(pipeline.DiscoverySteps))
	for i, def := range pipeline.DiscoverySteps {
		steps[i] = events.AgentStep{ID: def.ID, Name: def.Name, Status: "pending"}
	}
	snapshot := func() []events.AgentStep {
		return append([]events.AgentStep(nil), steps...)
	}
	empty := []events.DocumentPayload{}

	for i, def := range pipeline.DiscoverySteps {
		steps[i].Status = "running"
		steps[i].Progress = 50
		s.emit(clientID, events.TypeAIAgentUpdate, events.AIAgentUpdate{
			Steps:           snapshot(),
			OverallProgress: agentMarks[i],
			CurrentStep:     def.Label,
			Results:         &empty,
			Status:          "running",
		})
		if !s.sleep(s.cadence.DiscoveryStep) {
			return
		}
		steps[i].Status = "completed"
		steps[i].Progress = 100
	}

	docs := pipeline.SampleResults(req.Query, req.CertificationLevel, req.MaxDocuments)
	results := make([]events.DocumentPayload, 0, len(docs))
	for _, d := range docs {
		p := d.ToPayload()
		p.DownloadStatus = string(projection.DownloadPending)
		p.IsNew = true
		results = append(results, p)
	}
	steps[len(steps)-1].Details = fmt.Sprintf("%d new documents ready", len(results))

	s.emit(clientID, events.TypeAIAgentUpdate, events.AIAgentUpdate{
		Steps:           snapshot(),
		OverallProgress: 100,
		CurrentStep:     fmt.Sprintf("AI Agent completed: %d new documents found for enhanced RAG training", len(results)),
		Results:         &results,
		Status:          "completed",
	})
}

func (s *Service) runDownload(clientID string, req events.DownloadDocumentRequest) {
	if req.DocumentID == "" || req.Document.ID == "" {
		s.emit(clientID, events.TypeDocumentDownloadUpdate, events.DocumentDownloadUpdate{
			DocumentID: req.DocumentID,
			Status:     string(projection.DownloadFailed),
			Error:      "Missing document_id or document data",
		})
		return
	}

	send := func(status projection.DownloadStatus, p float64) {
		s.emit(clientID, events.TypeDocumentDownloadUpdate, events.DocumentDownloadUpdate{
			DocumentID: req.DocumentID,
			Status:     string(status),
			Progress:   pipeline.Ptr(p),
		})
	}

	send(projection.DownloadDownloading, 0)
	for p := 10.0; p < 100; p += 10 {
		if !s.sleep(s.cadence.DownloadTick) {
			return
		}
		send(projection.DownloadDownloading, p)
	}
	if !s.sleep(s.cadence.DownloadTick) {
		return
	}
	send(projection.DownloadCompleted, 100)
}

func (s *Service) runStage2(clientID string, req events.PipelineStage2Request) {
	files := req.PDFFiles
	if len(files) == 0 {
		s.sendError(clientID, "Pipeline Stage 2 error: No PDF files provided for Stage 2")
		return
	}

	phase := req.OutputPhase
	if !pipeline.ValidOutputPhase(phase) {
		phase = pipeline.MinOutputPhase
	}
	steps := pipeline.StepsForPhase(phase)
	total := len(steps) * len(files)
	done := 0

	for fileIndex, file := range files {
		for stepIndex, label := range steps {
			if !s.sleep(s.cadence.FactoryStep) {
				return
			}
			done++

			if len(files) > 1 {
				label = fmt.Sprintf("[File %d/%d: %s] %s", fileIndex+1, len(files), file, label)
			}
			status := pipeline.StatusRunning
			if done == total {
				status = pipeline.StatusCompleted
			}
			processed := fileIndex
			if stepIndex == len(steps)-1 {
				processed = fileIndex + 1
			}

			s.emit(clientID, events.TypePipelineStage2Update, events.PipelineStage2Update{
				Stage:             2,
				Status:            string(status),
				Progress:          pipeline.FactoryProgress(done, len(files), len(steps)),
				CurrentStep:       label,
				SyntheticExamples: pipeline.SyntheticExamples(stepIndex, fileIndex, len(files), 0),
				OutputPhase:       phase,
				ProcessedFiles:    processed,
				TotalFiles:        len(files),
			})
		}
	}
}

func (s *Service) runLocalFiles(clientID string, req events.ProcessLocalFilesRequest) {
	if len(req.Files) == 0 {
		s.sendError(clientID, "Local file processing error: No files provided")
		return
	}
	s.emit(clientID, events.TypeLocalFilesStatus, events.StatusNotice{Status: "starting", Message: "Starting local file processing..."})

	for p := 10.0; p <= 100; p += 10 {
		if !s.sleep(s.cadence.UploadTick) {
			return
		}
		status := projection.UploadProcessing
		if p >= 100 {
			status = projection.UploadCompleted
		}
		for _, f := range req.Files {
			s.emit(clientID, events.TypeLocalFilesUpdate, events.LocalFilesUpdate{
				FileName: f.Name,
				Status:   string(status),
				Progress: pipeline.Ptr(p),
			})
		}
	}
}
