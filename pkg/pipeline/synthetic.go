package pipeline

import "math/rand"

const (
	// SyntheticCeilingPerItem caps synthetic examples per selected document.
	// Every output phase shares it.
	SyntheticCeilingPerItem = 15000
	syntheticBase           = 250
	syntheticWarmupSteps    = 2
	maxJitter               = 500
)

func SyntheticCeiling(items int) int {
	return SyntheticCeilingPerItem * nonNegative(items)
}

// SyntheticExamples is the synthetic example count reported after step
// stepIndex of file fileIndex (both 0-based) when items documents are
// processed. The first steps of every file only prepare input and yield none.
func SyntheticExamples(stepIndex, fileIndex, items, jitter int) int {
	if stepIndex < syntheticWarmupSteps || items <= 0 {
		return 0
	}
	shift := stepIndex
	if shift > 16 {
		shift = 16
	}
	base := (1<<shift)*syntheticBase + jitter
	n := base * (fileIndex + 1)
	if ceiling := SyntheticCeiling(items); n > ceiling {
		return ceiling
	}
	return n
}

// FileJitter returns the optional jitter term for a file. Without a seed it is
// always zero; with a seed it is deterministic per (seed, fileIndex).
func FileJitter(seed *int64, fileIndex int) int {
	if seed == nil {
		return 0
	}
	r := rand.New(rand.NewSource(*seed + int64(fileIndex)))
	return r.Intn(maxJitter)
}

// FactoryProgress is the share of completed step-units.
func FactoryProgress(completedUnits, items, stepsPerItem int) float64 {
	total := items * stepsPerItem
	if total <= 0 {
		return 0
	}
	return clampPercent(float64(completedUnits) / float64(total) * 100)
}
