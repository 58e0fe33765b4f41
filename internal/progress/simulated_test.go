package progress

import (
	"context"
	"sync"
	"testing"
	"time"

	"rag-pipeline-console/internal/pkg/logger"
	"rag-pipeline-console/pkg/pipeline"
	"rag-pipeline-console/pkg/projection"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSimulatedMachine(t *testing.T, clock Clock) (*pipeline.Machine, *Simulated) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	sim := NewSimulated(ctx, clock, DefaultCadence(), logger.NewNopLogger())
	return pipeline.NewMachine(sim, logger.NewNopLogger()), sim
}

func discover(t *testing.T, m *pipeline.Machine, sim *Simulated, maxDocs int) {
	t.Helper()
	require.NoError(t, m.StartDiscovery(pipeline.DiscoveryRequest{
		Query:              "BGP",
		CertificationLevel: "ccnp",
		MaxDocuments:       maxDocs,
	}))
	sim.Wait()
}

func TestSimulatedDiscoveryCompletesWithResults(t *testing.T) {
	m, sim := newSimulatedMachine(t, ImmediateClock{})
	discover(t, m, sim, 3)

	snap := m.Snapshot()
	d := snap.Status.Discovery
	assert.Equal(t, pipeline.StatusCompleted, d.Status)
	assert.Equal(t, 100.0, d.Progress)
	assert.Len(t, snap.Documents, 6)
	assert.Equal(t, 6, d.DocumentsFound)
	assert.Contains(t, d.CurrentStep, "6 new documents")
	for _, doc := range snap.Documents {
		assert.Equal(t, projection.DownloadPending, doc.DownloadStatus)
	}
}

func TestSimulatedDiscoveryStepsOnManualClock(t *testing.T) {
	clock := NewManualClock()
	m, sim := newSimulatedMachine(t, clock)
	require.NoError(t, m.StartDiscovery(pipeline.DiscoveryRequest{Query: "OSPF", MaxDocuments: 2}))

	require.Eventually(t, func() bool { return clock.Pending() == 1 }, time.Second, time.Millisecond)
	d := m.Snapshot().Status.Discovery
	assert.Equal(t, pipeline.StatusRunning, d.Status)
	assert.Equal(t, 0.0, d.Progress)
	assert.Equal(t, pipeline.DiscoverySteps[0].Label, d.CurrentStep)

	clock.Tick()
	require.Eventually(t, func() bool { return clock.Pending() == 1 }, time.Second, time.Millisecond)
	d = m.Snapshot().Status.Discovery
	assert.Equal(t, 20.0, d.Progress)
	assert.Equal(t, pipeline.DiscoverySteps[1].Label, d.CurrentStep)

	for clock.Pending() > 0 || m.Snapshot().Status.Discovery.Status == pipeline.StatusRunning {
		clock.Tick()
		time.Sleep(time.Millisecond)
	}
	sim.Wait()
	assert.Equal(t, pipeline.StatusCompleted, m.Snapshot().Status.Discovery.Status)
}

func TestSimulatedFactoryTwoDocumentsPhaseOne(t *testing.T) {
	m, sim := newSimulatedMachine(t, ImmediateClock{})
	discover(t, m, sim, 3)

	docs := m.Snapshot().Documents
	require.NoError(t, m.SelectDocument(docs[0].ID))
	require.NoError(t, m.SelectDocument(docs[1].ID))

	var mu sync.Mutex
	var progress []float64
	unsubscribe := m.Subscribe(pipeline.LatestOnly(func(s pipeline.Snapshot) {
		mu.Lock()
		progress = append(progress, s.Status.Factory.Progress)
		mu.Unlock()
	}))
	defer unsubscribe()

	require.NoError(t, m.StartFactory(1))
	sim.Wait()

	f := m.Snapshot().Status.Factory
	assert.Equal(t, pipeline.StatusCompleted, f.Status)
	assert.Equal(t, 30000, f.SyntheticExamples)
	assert.Equal(t, 2, f.ProcessedFiles)
	assert.Equal(t, 2, f.TotalFiles)
	assert.Equal(t, 1, f.OutputPhase)

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, progress)
	for i := 1; i < len(progress); i++ {
		assert.GreaterOrEqual(t, progress[i], progress[i-1])
	}
}

func TestSimulatedFactoryLabelsFilesWhenSeveral(t *testing.T) {
	clock := NewManualClock()
	m, sim := newSimulatedMachine(t, clock)

	stop := make(chan struct{})
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		for {
			select {
			case <-stop:
				return
			default:
			}
			clock.Tick()
			time.Sleep(time.Millisecond)
		}
	}()
	discover(t, m, sim, 2)
	close(stop)
	<-stopped

	m.SelectAll()
	require.NoError(t, m.StartFactory(4))
	require.Eventually(t, func() bool { return clock.Pending() == 1 }, time.Second, time.Millisecond)
	clock.Tick()
	require.Eventually(t, func() bool { return m.Snapshot().Status.Factory.Progress > 0 }, time.Second, time.Millisecond)

	snap := m.Snapshot()
	assert.Contains(t, snap.Status.Factory.CurrentStep, "[File 1/4: ")
	assert.Contains(t, snap.Status.Factory.CurrentStep, pipeline.StepsForPhase(4)[0])
}

func TestSimulatedRunAllEnhancements(t *testing.T) {
	m, sim := newSimulatedMachine(t, ImmediateClock{})

	done, err := m.RunAllEnhancements(context.Background())
	require.NoError(t, err)
	require.NoError(t, <-done)
	sim.Wait()

	for i, p := range m.Snapshot().Status.Enhancements {
		assert.Equal(t, pipeline.StatusCompleted, p.Status, "phase %d", i+1)
		assert.Equal(t, pipeline.EnhancementStepCount, p.Substep)
		assert.Equal(t, 100.0, p.Progress)
	}
}

func TestSimulatedDownloadAndUploads(t *testing.T) {
	m, sim := newSimulatedMachine(t, ImmediateClock{})
	discover(t, m, sim, 1)

	id := m.Snapshot().Documents[0].ID
	require.NoError(t, m.RequestDownload(id))
	m.AddUploads(projection.UploadedFile{Name: "a.pdf"}, projection.UploadedFile{Name: "b.pdf"})
	require.NoError(t, m.ProcessUploads())
	sim.Wait()

	snap := m.Snapshot()
	doc, ok := projection.FindDocument(snap.Documents, id)
	require.True(t, ok)
	assert.Equal(t, projection.DownloadCompleted, doc.DownloadStatus)
	require.NotNil(t, doc.DownloadProgress)
	assert.Equal(t, 100.0, *doc.DownloadProgress)

	for _, f := range snap.Uploads {
		assert.Equal(t, projection.UploadCompleted, f.Status)
		assert.Equal(t, 100.0, f.Progress)
	}
}

func TestSimulatedRefusesAfterShutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	sim := NewSimulated(ctx, ImmediateClock{}, DefaultCadence(), logger.NewNopLogger())
	m := pipeline.NewMachine(sim, logger.NewNopLogger())
	cancel()

	err := m.StartDiscovery(pipeline.DiscoveryRequest{Query: "BGP"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, pipeline.InitialDiscovery(), m.Snapshot().Status.Discovery)

	assert.ErrorIs(t, sim.StartPhase(7, 1, m), pipeline.ErrInvalidPhase)
}
