package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReduceStage(t *testing.T) {
	running := Stage{Status: StatusRunning, Progress: 40, CurrentStep: "searching"}

	tests := []struct {
		name     string
		in       Stage
		update   StageUpdate
		expected Stage
	}{
		{
			name:     "idle to running resets progress and error",
			in:       Stage{Status: StatusIdle, Progress: 70, Error: "old"},
			update:   StageUpdate{Status: Ptr(StatusRunning)},
			expected: Stage{Status: StatusRunning},
		},
		{
			name:     "progress moves forward",
			in:       running,
			update:   StageUpdate{Progress: Ptr(60.0)},
			expected: Stage{Status: StatusRunning, Progress: 60, CurrentStep: "searching"},
		},
		{
			name:     "progress never moves backwards while running",
			in:       running,
			update:   StageUpdate{Progress: Ptr(20.0), CurrentStep: Ptr("refining")},
			expected: Stage{Status: StatusRunning, Progress: 40, CurrentStep: "refining"},
		},
		{
			name:     "progress is clamped",
			in:       running,
			update:   StageUpdate{Progress: Ptr(250.0)},
			expected: Stage{Status: StatusRunning, Progress: 100, CurrentStep: "searching"},
		},
		{
			name:     "completed forces full progress",
			in:       running,
			update:   StageUpdate{Status: Ptr(StatusCompleted)},
			expected: Stage{Status: StatusCompleted, Progress: 100, CurrentStep: "searching"},
		},
		{
			name:     "error keeps progress and records message",
			in:       running,
			update:   StageUpdate{Status: Ptr(StatusError), Error: Ptr("boom")},
			expected: Stage{Status: StatusError, Progress: 40, CurrentStep: "searching", Error: "boom"},
		},
		{
			name:     "completed does not go back to running",
			in:       Stage{Status: StatusCompleted, Progress: 100},
			update:   StageUpdate{Status: Ptr(StatusRunning)},
			expected: Stage{Status: StatusCompleted, Progress: 100},
		},
		{
			name:     "running does not go back to idle",
			in:       running,
			update:   StageUpdate{Status: Ptr(StatusIdle)},
			expected: running,
		},
		{
			name:     "unknown status is ignored",
			in:       running,
			update:   StageUpdate{Status: Ptr(Status("paused"))},
			expected: running,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ReduceStage(tt.in, tt.update))
		})
	}
}

func TestReduceFactorySyntheticCountOnlyGrows(t *testing.T) {
	f := InitialFactory()
	f = ReduceFactory(f, FactoryUpdate{StageUpdate: StageUpdate{Status: Ptr(StatusRunning)}, TotalFiles: Ptr(2)})

	f = ReduceFactory(f, FactoryUpdate{SyntheticExamples: Ptr(1000)})
	assert.Equal(t, 1000, f.SyntheticExamples)

	f = ReduceFactory(f, FactoryUpdate{SyntheticExamples: Ptr(500)})
	assert.Equal(t, 1000, f.SyntheticExamples)

	f = ReduceFactory(f, FactoryUpdate{ProcessedFiles: Ptr(1)})
	f = ReduceFactory(f, FactoryUpdate{ProcessedFiles: Ptr(0)})
	assert.Equal(t, 1, f.ProcessedFiles)
	assert.Equal(t, 2, f.TotalFiles)
}

func TestReduceFactoryStartClearsCounters(t *testing.T) {
	f := InitialFactory()
	f.SyntheticExamples = 900
	f.ProcessedFiles = 3

	f = ReduceFactory(f, FactoryUpdate{StageUpdate: StageUpdate{Status: Ptr(StatusRunning)}})
	assert.Equal(t, 0, f.SyntheticExamples)
	assert.Equal(t, 0, f.ProcessedFiles)
	assert.Equal(t, MinOutputPhase, f.OutputPhase)
}

func TestReducePhaseDerivesProgressFromSubstep(t *testing.T) {
	p := InitialPhase(2)
	p = ReducePhase(p, PhaseUpdate{StageUpdate: StageUpdate{Status: Ptr(StatusRunning)}})

	p = ReducePhase(p, PhaseUpdate{Substep: Ptr(2)})
	assert.Equal(t, 2, p.Substep)
	assert.InDelta(t, 40.0, p.Progress, 0.0001)

	p = ReducePhase(p, PhaseUpdate{Substep: Ptr(1)})
	assert.Equal(t, 2, p.Substep)
	assert.InDelta(t, 40.0, p.Progress, 0.0001)

	p = ReducePhase(p, PhaseUpdate{Substep: Ptr(9)})
	assert.Equal(t, EnhancementStepCount, p.Substep)

	p = ReducePhase(p, PhaseUpdate{StageUpdate: StageUpdate{Status: Ptr(StatusCompleted)}})
	assert.Equal(t, StatusCompleted, p.Status)
	assert.Equal(t, 100.0, p.Progress)
	assert.Equal(t, "Graph RAG", p.Name)
}
