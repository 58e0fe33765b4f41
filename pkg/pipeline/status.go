package pipeline

type Status string

const (
	StatusIdle      Status = "idle"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusError     Status = "error"
)

func (s Status) Valid() bool {
	switch s {
	case StatusIdle, StatusRunning, StatusCompleted, StatusError:
		return true
	}
	return false
}

// Terminal reports whether the stage needs a reset before it can run again.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusError
}

const (
	EnhancementPhaseCount = 4
	EnhancementStepCount  = 5
	MinOutputPhase        = 1
	MaxOutputPhase        = 5
)

// Stage is the state every stage and phase shares.
type Stage struct {
	Status      Status  `json:"status"`
	Progress    float64 `json:"progress"`
	CurrentStep string  `json:"currentStep"`
	Error       string  `json:"error,omitempty"`
}

type DiscoveryStage struct {
	Stage
	DocumentsFound int `json:"documentsFound"`
}

type FactoryStage struct {
	Stage
	SyntheticExamples int `json:"syntheticExamples"`
	OutputPhase       int `json:"outputPhase"`
	ProcessedFiles    int `json:"processedFiles"`
	TotalFiles        int `json:"totalFiles"`
}

type EnhancementPhase struct {
	Stage
	Name    string `json:"name"`
	Substep int    `json:"substep"`
}

// PipelineStatus is the root aggregate. It is a plain value: copying it
// copies every stage.
type PipelineStatus struct {
	Discovery    DiscoveryStage                          `json:"discovery"`
	Factory      FactoryStage                            `json:"factory"`
	Enhancements [EnhancementPhaseCount]EnhancementPhase `json:"enhancements"`
}

func InitialDiscovery() DiscoveryStage {
	return DiscoveryStage{
		Stage: Stage{Status: StatusIdle, CurrentStep: "Ready to start document discovery"},
	}
}

func InitialFactory() FactoryStage {
	return FactoryStage{
		Stage:       Stage{Status: StatusIdle, CurrentStep: "Waiting for discovery completion"},
		OutputPhase: MinOutputPhase,
	}
}

func InitialPhase(phase int) EnhancementPhase {
	return EnhancementPhase{
		Stage: Stage{Status: StatusIdle, CurrentStep: "Ready"},
		Name:  EnhancementPhases[phase-1].Name,
	}
}

func InitialStatus() PipelineStatus {
	s := PipelineStatus{
		Discovery: InitialDiscovery(),
		Factory:   InitialFactory(),
	}
	for i := range s.Enhancements {
		s.Enhancements[i] = InitialPhase(i + 1)
	}
	return s
}

// AnyRunning reports whether any stage or phase is running.
func (p PipelineStatus) AnyRunning() bool {
	if p.Discovery.Status == StatusRunning || p.Factory.Status == StatusRunning {
		return true
	}
	return p.AnyPhaseRunning()
}

func (p PipelineStatus) AnyPhaseRunning() bool {
	for _, ph := range p.Enhancements {
		if ph.Status == StatusRunning {
			return true
		}
	}
	return false
}

// RunningPhases counts phases currently running.
func (p PipelineStatus) RunningPhases() int {
	n := 0
	for _, ph := range p.Enhancements {
		if ph.Status == StatusRunning {
			n++
		}
	}
	return n
}
