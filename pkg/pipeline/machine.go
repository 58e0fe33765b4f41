package pipeline

import (
	"context"
	"fmt"
	"sync"

	"rag-pipeline-console/internal/pkg/logger"
	"rag-pipeline-console/pkg/projection"
)

// Snapshot is an immutable copy of the machine state. Version grows by one
// on every committed change.
type Snapshot struct {
	Version   uint64                    `json:"version"`
	Status    PipelineStatus            `json:"status"`
	Documents []projection.Document     `json:"documents"`
	Selected  []string                  `json:"selected"`
	Uploads   []projection.UploadedFile `json:"uploads"`
	Sequence  bool                      `json:"sequence"`
}

// Observer receives snapshots after each change. Deliveries can come from
// several goroutines, so a consumer that cares about ordering should wrap
// itself with LatestOnly. Observers must not call back into the machine
// synchronously.
type Observer func(Snapshot)

// LatestOnly drops snapshots older than the newest one already delivered and
// serializes deliveries.
func LatestOnly(obs Observer) Observer {
	var mu sync.Mutex
	var last uint64
	return func(s Snapshot) {
		mu.Lock()
		defer mu.Unlock()
		if s.Version <= last {
			return
		}
		last = s.Version
		obs(s)
	}
}

type Option func(*Machine)

// WithJitterSeed turns on the seeded jitter term for synthetic example counts.
func WithJitterSeed(seed int64) Option {
	return func(m *Machine) {
		m.jitterSeed = &seed
	}
}

type observerEntry struct {
	id  uint64
	obs Observer
}

// Machine owns the pipeline state tree. Every change goes through a reducer
// merge under the lock and is then published to observers.
type Machine struct {
	mu       sync.Mutex
	status   PipelineStatus
	docs     []projection.Document
	selected map[string]struct{}
	uploads  []projection.UploadedFile
	version  uint64

	discoveryRun uint64
	factoryRun   uint64
	phaseRuns    [EnhancementPhaseCount]uint64
	phaseDone    [EnhancementPhaseCount]chan struct{}
	sequence     bool

	source     Source
	jitterSeed *int64

	obsMu     sync.RWMutex
	observers []observerEntry
	nextObs   uint64

	logger logger.ILogger
}

var _ Sink = (*Machine)(nil)

// NewMachine returns a Machine in the initial status that starts runs through
// source. Options are applied in order.
func NewMachine(source Source, log logger.ILogger, opts ...Option) *Machine {
	m := &Machine{
		status:   InitialStatus(),
		selected: make(map[string]struct{}),
		source:   source,
		logger:   log,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Subscribe registers obs and returns a function that removes it.
func (m *Machine) Subscribe(obs Observer) func() {
	m.obsMu.Lock()
	m.nextObs++
	id := m.nextObs
	m.observers = append(m.observers, observerEntry{id: id, obs: obs})
	m.obsMu.Unlock()

	return func() {
		m.obsMu.Lock()
		defer m.obsMu.Unlock()
		for i, e := range m.observers {
			if e.id == id {
				m.observers = append(m.observers[:i], m.observers[i+1:]...)
				return
			}
		}
	}
}

func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

// mutate runs fn under the lock. When fn reports a change the version is
// bumped and observers are notified after the lock is released.
func (m *Machine) mutate(fn func() (bool, error)) error {
	m.mu.Lock()
	changed, err := fn()
	var snap Snapshot
	if changed {
		m.version++
		snap = m.snapshotLocked()
	}
	m.mu.Unlock()

	if changed {
		m.notify(snap)
	}
	return err
}

func (m *Machine) notify(s Snapshot) {
	m.obsMu.RLock()
	entries := make([]observerEntry, len(m.observers))
	copy(entries, m.observers)
	m.obsMu.RUnlock()

	for _, e := range entries {
		e.obs(s)
	}
}

func (m *Machine) snapshotLocked() Snapshot {
	return Snapshot{
		Version:   m.version,
		Status:    m.status,
		Documents: projection.CloneDocuments(m.docs),
		Selected:  m.selectedIDsLocked(),
		Uploads:   projection.CloneUploads(m.uploads),
		Sequence:  m.sequence,
	}
}

func (m *Machine) selectedIDsLocked() []string {
	ids := make([]string, 0, len(m.selected))
	for _, d := range m.docs {
		if _, ok := m.selected[d.ID]; ok {
			ids = append(ids, d.ID)
		}
	}
	return ids
}

func (m *Machine) selectionLocked() []projection.Document {
	var out []projection.Document
	for _, d := range m.docs {
		if _, ok := m.selected[d.ID]; ok {
			out = append(out, d)
		}
	}
	return out
}

func currentRun(run, cur uint64) bool {
	return run == 0 || run == cur
}

// Discovery

func (m *Machine) StartDiscovery(req DiscoveryRequest) error {
	if !req.Method.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownMethod, req.Method)
	}
	var run uint64
	var prev DiscoveryStage

	err := m.mutate(func() (bool, error) {
		switch m.status.Discovery.Status {
		case StatusRunning:
			return false, ErrStageRunning
		case StatusCompleted, StatusError:
			return false, ErrStageNotIdle
		}
		prev = m.status.Discovery
		m.discoveryRun++
		run = m.discoveryRun
		m.status.Discovery = ReduceDiscovery(prev, DiscoveryUpdate{
			StageUpdate: StageUpdate{
				Status:      Ptr(StatusRunning),
				Progress:    Ptr(0.0),
				CurrentStep: Ptr(DiscoverySteps[0].Label),
			},
			DocumentsFound: Ptr(0),
		})
		return true, nil
	})
	if err != nil {
		return err
	}

	m.logger.Info("Pipeline", "Discovery started", map[string]interface{}{"run": run, "query": req.Query})

	if err := m.source.StartDiscovery(run, req, m); err != nil {
		_ = m.mutate(func() (bool, error) {
			if m.discoveryRun != run || m.status.Discovery.Status != StatusRunning {
				return false, nil
			}
			m.status.Discovery = prev
			return true, nil
		})
		m.logger.Warn("Pipeline", "Discovery could not start", map[string]interface{}{"error": err.Error()})
		return fmt.Errorf("start discovery: %w", err)
	}
	return nil
}

func (m *Machine) ApplyDiscovery(run uint64, u DiscoveryUpdate) {
	_ = m.mutate(func() (bool, error) {
		if !currentRun(run, m.discoveryRun) || m.status.Discovery.Status != StatusRunning {
			return false, nil
		}
		next := ReduceDiscovery(m.status.Discovery, u)
		if u.Results != nil {
			m.docs = projection.ReplaceResults(*u.Results)
			m.selected = make(map[string]struct{})
			if u.DocumentsFound == nil {
				next.DocumentsFound = len(m.docs)
			}
		}
		m.status.Discovery = next
		if next.Status.Terminal() {
			m.logger.Info("Pipeline", "Discovery finished", map[string]interface{}{
				"status":          next.Status,
				"documents_found": next.DocumentsFound,
			})
		}
		return true, nil
	})
}

// ApplySearchResults replaces the document collection with catalog search
// hits. The selection keeps only documents that are still present. Results are
// dropped while discovery runs, since its own results would replace them.
func (m *Machine) ApplySearchResults(docs []projection.Document) bool {
	applied := false
	_ = m.mutate(func() (bool, error) {
		if m.status.Discovery.Status == StatusRunning || m.anyDownloadingLocked() {
			return false, nil
		}
		m.docs = projection.ReplaceResults(docs)
		for id := range m.selected {
			if _, ok := projection.FindDocument(m.docs, id); !ok {
				delete(m.selected, id)
			}
		}
		applied = true
		return true, nil
	})
	if !applied {
		m.logger.Warn("Pipeline", "Search results dropped while discovery or a download runs", map[string]interface{}{"results": len(docs)})
	}
	return applied
}

// Selection

func (m *Machine) SelectDocument(id string) error {
	return m.mutate(func() (bool, error) {
		if _, ok := projection.FindDocument(m.docs, id); !ok {
			return false, fmt.Errorf("%w: %s", ErrUnknownDocument, id)
		}
		if _, ok := m.selected[id]; ok {
			return false, nil
		}
		m.selected[id] = struct{}{}
		return true, nil
	})
}

func (m *Machine) DeselectDocument(id string) {
	_ = m.mutate(func() (bool, error) {
		if _, ok := m.selected[id]; !ok {
			return false, nil
		}
		delete(m.selected, id)
		return true, nil
	})
}

func (m *Machine) SelectAll() {
	_ = m.mutate(func() (bool, error) {
		changed := false
		for _, d := range m.docs {
			if _, ok := m.selected[d.ID]; !ok {
				m.selected[d.ID] = struct{}{}
				changed = true
			}
		}
		return changed, nil
	})
}

func (m *Machine) ClearSelection() {
	_ = m.mutate(func() (bool, error) {
		if len(m.selected) == 0 {
			return false, nil
		}
		m.selected = make(map[string]struct{})
		return true, nil
	})
}

// Factory

func (m *Machine) StartFactory(outputPhase int) error {
	var run uint64
	var prev FactoryStage
	var req FactoryRequest

	err := m.mutate(func() (bool, error) {
		f := m.status.Factory
		if f.Status == StatusRunning {
			return false, ErrStageRunning
		}
		if f.Status.Terminal() {
			return false, ErrStageNotIdle
		}
		if !ValidOutputPhase(outputPhase) {
			return false, fmt.Errorf("%w: output phase %d", ErrInvalidPhase, outputPhase)
		}
		if m.status.Discovery.Status != StatusCompleted {
			return false, ErrDiscoveryNotCompleted
		}
		selection := m.selectionLocked()
		if len(selection) == 0 {
			return false, ErrNoSelection
		}

		prev = f
		m.factoryRun++
		run = m.factoryRun

		plural := ""
		if len(selection) > 1 {
			plural = "s"
		}
		next := ReduceFactory(f, FactoryUpdate{
			StageUpdate: StageUpdate{
				Status:      Ptr(StatusRunning),
				Progress:    Ptr(0.0),
				CurrentStep: Ptr(fmt.Sprintf("Initializing PHASE %d processing for %d file%s...", outputPhase, len(selection), plural)),
			},
			TotalFiles: Ptr(len(selection)),
		})
		next.OutputPhase = outputPhase
		m.status.Factory = next

		req = FactoryRequest{
			OutputPhase: outputPhase,
			Documents:   selection,
			JitterSeed:  m.jitterSeed,
		}
		return true, nil
	})
	if err != nil {
		return err
	}

	m.logger.Info("Pipeline", "Factory started", map[string]interface{}{
		"run":          run,
		"output_phase": outputPhase,
		"files":        len(req.Documents),
	})

	if err := m.source.StartFactory(run, req, m); err != nil {
		_ = m.mutate(func() (bool, error) {
			if m.factoryRun != run || m.status.Factory.Status != StatusRunning {
				return false, nil
			}
			m.status.Factory = prev
			return true, nil
		})
		m.logger.Warn("Pipeline", "Factory could not start", map[string]interface{}{"error": err.Error()})
		return fmt.Errorf("start factory: %w", err)
	}
	return nil
}

func (m *Machine) ApplyFactory(run uint64, u FactoryUpdate) {
	_ = m.mutate(func() (bool, error) {
		if !currentRun(run, m.factoryRun) || m.status.Factory.Status != StatusRunning {
			return false, nil
		}
		next := ReduceFactory(m.status.Factory, u)
		if ceiling := SyntheticCeiling(next.TotalFiles); next.TotalFiles > 0 && next.SyntheticExamples > ceiling {
			next.SyntheticExamples = ceiling
		}
		m.status.Factory = next
		return true, nil
	})
}

// Enhancement phases

func (m *Machine) StartPhase(phase int) error {
	_, err := m.startPhase(phase, false)
	return err
}

func (m *Machine) startPhase(phase int, fromSequence bool) (<-chan struct{}, error) {
	if !ValidPhase(phase) {
		return nil, fmt.Errorf("%w: enhancement phase %d", ErrInvalidPhase, phase)
	}
	idx := phase - 1

	var run uint64
	var prev EnhancementPhase
	var done chan struct{}

	err := m.mutate(func() (bool, error) {
		if m.sequence && !fromSequence {
			return false, ErrSequenceActive
		}
		p := m.status.Enhancements[idx]
		if p.Status == StatusRunning {
			return false, ErrStageRunning
		}
		if p.Status.Terminal() {
			return false, ErrStageNotIdle
		}
		prev = p
		m.phaseRuns[idx]++
		run = m.phaseRuns[idx]
		done = make(chan struct{})
		m.phaseDone[idx] = done
		m.status.Enhancements[idx] = ReducePhase(p, PhaseUpdate{
			StageUpdate: StageUpdate{
				Status:      Ptr(StatusRunning),
				Progress:    Ptr(0.0),
				CurrentStep: Ptr(EnhancementPhases[idx].Steps[0]),
			},
			Substep: Ptr(0),
		})
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	m.logger.Info("Pipeline", "Enhancement phase started", map[string]interface{}{"phase": phase, "run": run})

	if err := m.source.StartPhase(phase, run, m); err != nil {
		_ = m.mutate(func() (bool, error) {
			if m.phaseRuns[idx] != run || m.status.Enhancements[idx].Status != StatusRunning {
				return false, nil
			}
			m.status.Enhancements[idx] = prev
			m.closePhaseDoneLocked(idx)
			return true, nil
		})
		return nil, fmt.Errorf("start enhancement phase %d: %w", phase, err)
	}
	return done, nil
}

func (m *Machine) ApplyPhase(phase int, run uint64, u PhaseUpdate) {
	if !ValidPhase(phase) {
		return
	}
	idx := phase - 1
	_ = m.mutate(func() (bool, error) {
		if !currentRun(run, m.phaseRuns[idx]) || m.status.Enhancements[idx].Status != StatusRunning {
			return false, nil
		}
		next := ReducePhase(m.status.Enhancements[idx], u)
		m.status.Enhancements[idx] = next
		if next.Status.Terminal() {
			m.closePhaseDoneLocked(idx)
		}
		return true, nil
	})
}

func (m *Machine) closePhaseDoneLocked(idx int) {
	if m.phaseDone[idx] != nil {
		close(m.phaseDone[idx])
		m.phaseDone[idx] = nil
	}
}

// RunAllEnhancements runs phases 1 through 4 one after another. Completed
// phases are skipped; the sequence stops at the first phase that ends in
// error. The returned channel yields the outcome once and is then closed.
func (m *Machine) RunAllEnhancements(ctx context.Context) (<-chan error, error) {
	err := m.mutate(func() (bool, error) {
		if m.sequence {
			return false, ErrSequenceActive
		}
		if m.status.AnyPhaseRunning() {
			return false, ErrStageRunning
		}
		m.sequence = true
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	result := make(chan error, 1)
	go func() {
		defer close(result)
		err := m.runSequence(ctx)
		_ = m.mutate(func() (bool, error) {
			m.sequence = false
			return true, nil
		})
		if err != nil {
			m.logger.Warn("Pipeline", "Enhancement sequence stopped", map[string]interface{}{"error": err.Error()})
		}
		result <- err
	}()
	return result, nil
}

func (m *Machine) runSequence(ctx context.Context) error {
	for phase := 1; phase <= EnhancementPhaseCount; phase++ {
		switch m.Snapshot().Status.Enhancements[phase-1].Status {
		case StatusCompleted:
			continue
		case StatusError:
			return fmt.Errorf("%w: phase %d", ErrPhaseFailed, phase)
		}

		done, err := m.startPhase(phase, true)
		if err != nil {
			return err
		}

		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}

		if m.Snapshot().Status.Enhancements[phase-1].Status == StatusError {
			return fmt.Errorf("%w: phase %d", ErrPhaseFailed, phase)
		}
	}
	return nil
}

// Downloads

func (m *Machine) RequestDownload(id string) error {
	var before, doc projection.Document

	err := m.mutate(func() (bool, error) {
		d, ok := projection.FindDocument(m.docs, id)
		if !ok {
			return false, fmt.Errorf("%w: %s", ErrUnknownDocument, id)
		}
		switch d.DownloadStatus {
		case projection.DownloadDownloading:
			return false, ErrDownloadActive
		case projection.DownloadCompleted:
			return false, ErrAlreadyDownloaded
		}
		before = d
		status := projection.DownloadDownloading
		m.docs, _ = projection.ApplyDocumentUpdate(m.docs, projection.DocumentUpdate{
			ID:       id,
			Status:   &status,
			Progress: Ptr(0.0),
			Error:    Ptr(""),
		})
		doc, _ = projection.FindDocument(m.docs, id)
		return true, nil
	})
	if err != nil {
		return err
	}

	if err := m.source.StartDownload(doc, m); err != nil {
		_ = m.mutate(func() (bool, error) {
			m.docs = projection.RestoreDocument(m.docs, before)
			return true, nil
		})
		return fmt.Errorf("start download %s: %w", id, err)
	}
	return nil
}

func (m *Machine) ApplyDocument(u projection.DocumentUpdate) {
	_ = m.mutate(func() (bool, error) {
		next, ok := projection.ApplyDocumentUpdate(m.docs, u)
		if !ok {
			return false, nil
		}
		m.docs = next
		return true, nil
	})
}

// Uploads

func (m *Machine) AddUploads(files ...projection.UploadedFile) {
	_ = m.mutate(func() (bool, error) {
		next := projection.AddUploads(m.uploads, files...)
		if len(next) == len(m.uploads) {
			return false, nil
		}
		m.uploads = next
		return true, nil
	})
}

func (m *Machine) RemoveUpload(name string) error {
	return m.mutate(func() (bool, error) {
		next, err := projection.RemoveUpload(m.uploads, name)
		if err != nil {
			return false, err
		}
		m.uploads = next
		return true, nil
	})
}

func (m *Machine) ProcessUploads() error {
	var pending []projection.UploadedFile

	err := m.mutate(func() (bool, error) {
		pending = projection.PendingUploads(m.uploads)
		if len(pending) == 0 {
			return false, ErrNothingToProcess
		}
		status := projection.UploadProcessing
		for _, f := range pending {
			m.uploads, _ = projection.ApplyUploadUpdate(m.uploads, projection.UploadUpdate{
				Name:     f.Name,
				Status:   &status,
				Progress: Ptr(0.0),
			})
		}
		return true, nil
	})
	if err != nil {
		return err
	}

	if err := m.source.StartUploads(pending, m); err != nil {
		_ = m.mutate(func() (bool, error) {
			status := projection.UploadPending
			for _, f := range pending {
				m.uploads, _ = projection.ApplyUploadUpdate(m.uploads, projection.UploadUpdate{
					Name:     f.Name,
					Status:   &status,
					Progress: Ptr(0.0),
				})
			}
			return true, nil
		})
		return fmt.Errorf("start uploads: %w", err)
	}
	return nil
}

func (m *Machine) ApplyUpload(u projection.UploadUpdate) {
	_ = m.mutate(func() (bool, error) {
		next, ok := projection.ApplyUploadUpdate(m.uploads, u)
		if !ok {
			return false, nil
		}
		m.uploads = next
		return true, nil
	})
}

// Resets

func (m *Machine) anyDownloadingLocked() bool {
	for _, d := range m.docs {
		if d.DownloadStatus == projection.DownloadDownloading {
			return true
		}
	}
	return false
}

// ResetDiscovery clears discovery, its results and the selection.
func (m *Machine) ResetDiscovery() error {
	return m.mutate(func() (bool, error) {
		if m.status.Discovery.Status == StatusRunning || m.status.Factory.Status == StatusRunning || m.anyDownloadingLocked() {
			return false, ErrResetBlocked
		}
		m.discoveryRun++
		m.status.Discovery = InitialDiscovery()
		m.docs = nil
		m.selected = make(map[string]struct{})
		return true, nil
	})
}

func (m *Machine) ResetFactory() error {
	return m.mutate(func() (bool, error) {
		if m.status.Factory.Status == StatusRunning {
			return false, ErrResetBlocked
		}
		m.factoryRun++
		m.status.Factory = InitialFactory()
		return true, nil
	})
}

func (m *Machine) ResetEnhancements() error {
	return m.mutate(func() (bool, error) {
		if m.sequence || m.status.AnyPhaseRunning() {
			return false, ErrResetBlocked
		}
		for i := range m.status.Enhancements {
			m.phaseRuns[i]++
			m.status.Enhancements[i] = InitialPhase(i + 1)
		}
		return true, nil
	})
}

func (m *Machine) ResetUploads() error {
	return m.mutate(func() (bool, error) {
		if projection.AnyProcessing(m.uploads) {
			return false, ErrResetBlocked
		}
		m.uploads = nil
		return true, nil
	})
}

// Reset returns the whole tree to its initial idle state.
func (m *Machine) Reset() error {
	return m.mutate(func() (bool, error) {
		if m.sequence || m.status.AnyRunning() || m.anyDownloadingLocked() || projection.AnyProcessing(m.uploads) {
			return false, ErrResetBlocked
		}
		m.discoveryRun++
		m.factoryRun++
		for i := range m.phaseRuns {
			m.phaseRuns[i]++
		}
		m.status = InitialStatus()
		m.docs = nil
		m.selected = make(map[string]struct{})
		m.uploads = nil
		m.logger.Info("Pipeline", "Pipeline reset to initial state", nil)
		return true, nil
	})
}
