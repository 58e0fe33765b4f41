package pipeline

import "rag-pipeline-console/pkg/projection"

// Ptr returns a pointer to v. Handy for building partial updates.
func Ptr[T any](v T) *T {
	return &v
}

// StageUpdate is a partial update; nil fields are left untouched.
type StageUpdate struct {
	Status      *Status
	Progress    *float64
	CurrentStep *string
	Error       *string
}

type DiscoveryUpdate struct {
	StageUpdate
	DocumentsFound *int
	// Results, when non-nil, supersedes the whole result set.
	Results *[]projection.Document
}

type FactoryUpdate struct {
	StageUpdate
	SyntheticExamples *int
	ProcessedFiles    *int
	TotalFiles        *int
}

type PhaseUpdate struct {
	StageUpdate
	Substep *int
}

func canTransition(from, to Status) bool {
	switch from {
	case StatusIdle:
		return to == StatusIdle || to == StatusRunning
	case StatusRunning:
		return to == StatusRunning || to == StatusCompleted || to == StatusError
	}
	// completed and error only leave through a reset
	return from == to
}

// ReduceStage merges u into s. Status changes outside the automaton are
// dropped and progress never moves backwards while a run is in flight.
func ReduceStage(s Stage, u StageUpdate) Stage {
	wasRunning := s.Status == StatusRunning

	if u.Status != nil && u.Status.Valid() && canTransition(s.Status, *u.Status) {
		if s.Status == StatusIdle && *u.Status == StatusRunning {
			s.Progress = 0
			s.Error = ""
			wasRunning = false
		}
		s.Status = *u.Status
	}

	if u.Progress != nil {
		p := clampPercent(*u.Progress)
		if !wasRunning || p >= s.Progress {
			s.Progress = p
		}
	}
	if u.CurrentStep != nil {
		s.CurrentStep = *u.CurrentStep
	}
	if u.Error != nil {
		s.Error = *u.Error
	}
	if s.Status == StatusCompleted {
		s.Progress = 100
	}
	return s
}

func ReduceDiscovery(d DiscoveryStage, u DiscoveryUpdate) DiscoveryStage {
	d.Stage = ReduceStage(d.Stage, u.StageUpdate)
	if u.DocumentsFound != nil {
		d.DocumentsFound = nonNegative(*u.DocumentsFound)
	}
	return d
}

// ReduceFactory merges u into f. The synthetic example count only grows
// within a run; the output phase is fixed at start and not touched here.
func ReduceFactory(f FactoryStage, u FactoryUpdate) FactoryStage {
	starting := f.Status == StatusIdle && u.Status != nil && *u.Status == StatusRunning
	f.Stage = ReduceStage(f.Stage, u.StageUpdate)
	if starting {
		f.SyntheticExamples = 0
		f.ProcessedFiles = 0
	}
	if u.SyntheticExamples != nil {
		if n := nonNegative(*u.SyntheticExamples); n > f.SyntheticExamples || starting {
			f.SyntheticExamples = n
		}
	}
	if u.ProcessedFiles != nil && *u.ProcessedFiles >= f.ProcessedFiles {
		f.ProcessedFiles = *u.ProcessedFiles
	}
	if u.TotalFiles != nil {
		f.TotalFiles = nonNegative(*u.TotalFiles)
	}
	return f
}

// ReducePhase merges u into p. Substep moves forward only; when it is given
// without an explicit progress, progress is derived as substep/5*100.
func ReducePhase(p EnhancementPhase, u PhaseUpdate) EnhancementPhase {
	starting := p.Status == StatusIdle && u.Status != nil && *u.Status == StatusRunning
	p.Stage = ReduceStage(p.Stage, u.StageUpdate)
	if starting {
		p.Substep = 0
	}
	if u.Substep != nil {
		sub := *u.Substep
		if sub < 0 {
			sub = 0
		}
		if sub > EnhancementStepCount {
			sub = EnhancementStepCount
		}
		if sub > p.Substep {
			p.Substep = sub
		}
		if u.Progress == nil {
			derived := float64(p.Substep) / EnhancementStepCount * 100
			if derived > p.Progress {
				p.Progress = derived
			}
		}
	}
	if p.Status == StatusCompleted {
		p.Substep = EnhancementStepCount
	}
	return p
}

func clampPercent(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func nonNegative(n int) int {
	if n < 0 {
		return 0
	}
	return n
}
