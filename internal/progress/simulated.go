package progress

import (
	"context"
	"fmt"
	"sync"
	"time"

	"rag-pipeline-console/internal/pkg/logger"
	"rag-pipeline-console/pkg/pipeline"
	"rag-pipeline-console/pkg/projection"
)

// Cadence is the delay between simulated progress steps.
type Cadence struct {
	DiscoveryStep time.Duration
	FactoryStep   time.Duration
	PhaseStep     time.Duration
	DownloadTick  time.Duration
	UploadTick    time.Duration
}

func DefaultCadence() Cadence {
	return Cadence{
		DiscoveryStep: time.Second,
		FactoryStep:   2500 * time.Millisecond,
		PhaseStep:     2 * time.Second,
		DownloadTick:  200 * time.Millisecond,
		UploadTick:    500 * time.Millisecond,
	}
}

const (
	downloadStep = 10.0
	uploadStep   = 10.0
)

// Simulated advances runs locally on a clock. It stands in for the remote
// service and is what the machine tests and offline console use.
type Simulated struct {
	ctx     context.Context
	clock   Clock
	cadence Cadence
	logger  logger.ILogger
	wg      sync.WaitGroup
}

var _ pipeline.Source = (*Simulated)(nil)

func NewSimulated(ctx context.Context, clock Clock, cadence Cadence, log logger.ILogger) *Simulated {
	return &Simulated{
		ctx:     ctx,
		clock:   clock,
		cadence: cadence,
		logger:  log,
	}
}

// Wait blocks until every simulation goroutine has returned.
func (s *Simulated) Wait() {
	s.wg.Wait()
}

func (s *Simulated) spawn(name string, fn func()) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		fn()
		s.logger.Debug("Simulation", "Run finished", map[string]interface{}{"run": name})
	}()
}

// sleep returns false when the simulation context is done.
func (s *Simulated) sleep(d time.Duration) bool {
	select {
	case <-s.clock.After(d):
		return true
	case <-s.ctx.Done():
		return false
	}
}

func (s *Simulated) StartDiscovery(run uint64, req pipeline.DiscoveryRequest, sink pipeline.Sink) error {
	if err := s.ctx.Err(); err != nil {
		return err
	}
	s.spawn("discovery", func() {
		steps := pipeline.DiscoverySteps
		share := 100.0 / float64(len(steps))
		for i, step := range steps {
			sink.ApplyDiscovery(run, pipeline.DiscoveryUpdate{
				StageUpdate: pipeline.StageUpdate{CurrentStep: pipeline.Ptr(step.Label)},
			})
			if !s.sleep(s.cadence.DiscoveryStep) {
				return
			}
			if i < len(steps)-1 {
				sink.ApplyDiscovery(run, pipeline.DiscoveryUpdate{
					StageUpdate: pipeline.StageUpdate{Progress: pipeline.Ptr(float64(i+1) * share)},
				})
			}
		}

		docs := pipeline.SampleResults(req.Query, req.CertificationLevel, req.MaxDocuments)
		sink.ApplyDiscovery(run, pipeline.DiscoveryUpdate{
			StageUpdate: pipeline.StageUpdate{
				Status:      pipeline.Ptr(pipeline.StatusCompleted),
				Progress:    pipeline.Ptr(100.0),
				CurrentStep: pipeline.Ptr(fmt.Sprintf("AI Agent completed: %d new documents found for enhanced RAG training", len(docs))),
			},
			Results: &docs,
		})
	})
	return nil
}

func (s *Simulated) StartFactory(run uint64, req pipeline.FactoryRequest, sink pipeline.Sink) error {
	if err := s.ctx.Err(); err != nil {
		return err
	}
	s.spawn("factory", func() {
		steps := pipeline.StepsForPhase(req.OutputPhase)
		items := len(req.Documents)
		completed := 0

		for file, doc := range req.Documents {
			jitter := pipeline.FileJitter(req.JitterSeed, file)
			for step, label := range steps {
				if !s.sleep(s.cadence.FactoryStep) {
					return
				}
				completed++

				if items > 1 {
					label = fmt.Sprintf("[File %d/%d: %s] %s", file+1, items, doc.Title, label)
				}
				processed := file
				if step == len(steps)-1 {
					processed = file + 1
				}

				sink.ApplyFactory(run, pipeline.FactoryUpdate{
					StageUpdate: pipeline.StageUpdate{
						Progress:    pipeline.Ptr(pipeline.FactoryProgress(completed, items, len(steps))),
						CurrentStep: pipeline.Ptr(label),
					},
					SyntheticExamples: pipeline.Ptr(pipeline.SyntheticExamples(step, file, items, jitter)),
					ProcessedFiles:    pipeline.Ptr(processed),
				})
			}
		}

		sink.ApplyFactory(run, pipeline.FactoryUpdate{
			StageUpdate: pipeline.StageUpdate{
				Status:      pipeline.Ptr(pipeline.StatusCompleted),
				CurrentStep: pipeline.Ptr(fmt.Sprintf("PHASE %d complete for %d file(s)", req.OutputPhase, items)),
			},
		})
	})
	return nil
}

func (s *Simulated) StartPhase(phase int, run uint64, sink pipeline.Sink) error {
	if !pipeline.ValidPhase(phase) {
		return fmt.Errorf("%w: enhancement phase %d", pipeline.ErrInvalidPhase, phase)
	}
	if err := s.ctx.Err(); err != nil {
		return err
	}
	def := pipeline.EnhancementPhases[phase-1]
	s.spawn(fmt.Sprintf("phase-%d", phase), func() {
		for i, label := range def.Steps {
			sink.ApplyPhase(phase, run, pipeline.PhaseUpdate{
				StageUpdate: pipeline.StageUpdate{CurrentStep: pipeline.Ptr(label)},
			})
			if !s.sleep(s.cadence.PhaseStep) {
				return
			}
			sink.ApplyPhase(phase, run, pipeline.PhaseUpdate{Substep: pipeline.Ptr(i + 1)})
		}
		sink.ApplyPhase(phase, run, pipeline.PhaseUpdate{
			StageUpdate: pipeline.StageUpdate{
				Status:      pipeline.Ptr(pipeline.StatusCompleted),
				CurrentStep: pipeline.Ptr(def.Name + " complete"),
			},
		})
	})
	return nil
}

func (s *Simulated) StartDownload(doc projection.Document, sink pipeline.Sink) error {
	if err := s.ctx.Err(); err != nil {
		return err
	}
	s.spawn("download-"+doc.ID, func() {
		for p := downloadStep; p <= 100; p += downloadStep {
			if !s.sleep(s.cadence.DownloadTick) {
				return
			}
			u := projection.DocumentUpdate{ID: doc.ID, Progress: pipeline.Ptr(p)}
			if p >= 100 {
				status := projection.DownloadCompleted
				u.Status = &status
			}
			sink.ApplyDocument(u)
		}
	})
	return nil
}

func (s *Simulated) StartUploads(files []projection.UploadedFile, sink pipeline.Sink) error {
	if err := s.ctx.Err(); err != nil {
		return err
	}
	names := make([]string, len(files))
	for i, f := range files {
		names[i] = f.Name
	}
	s.spawn("uploads", func() {
		for p := uploadStep; p <= 100; p += uploadStep {
			if !s.sleep(s.cadence.UploadTick) {
				return
			}
			for _, name := range names {
				u := projection.UploadUpdate{Name: name, Progress: pipeline.Ptr(p)}
				if p >= 100 {
					status := projection.UploadCompleted
					u.Status = &status
				}
				sink.ApplyUpload(u)
			}
		}
	})
	return nil
}
