package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSyntheticExamples(t *testing.T) {
	tests := []struct {
		name                    string
		step, file, items, jitt int
		expected                int
	}{
		{name: "warmup step yields nothing", step: 1, file: 0, items: 1, expected: 0},
		{name: "third step of first file", step: 2, file: 0, items: 1, expected: 1000},
		{name: "second file doubles", step: 3, file: 1, items: 2, expected: 4000},
		{name: "jitter is added per file", step: 2, file: 0, items: 1, jitt: 100, expected: 1100},
		{name: "single item ceiling", step: 9, file: 0, items: 1, expected: 15000},
		{name: "two item ceiling", step: 9, file: 1, items: 2, expected: 30000},
		{name: "no items", step: 5, file: 0, items: 0, expected: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, SyntheticExamples(tt.step, tt.file, tt.items, tt.jitt))
		})
	}
}

func TestFileJitter(t *testing.T) {
	assert.Zero(t, FileJitter(nil, 3))

	seed := int64(42)
	first := FileJitter(&seed, 1)
	assert.Equal(t, first, FileJitter(&seed, 1))
	assert.GreaterOrEqual(t, first, 0)
	assert.Less(t, first, maxJitter)
}

func TestFactoryProgress(t *testing.T) {
	assert.Zero(t, FactoryProgress(3, 0, 10))
	assert.InDelta(t, 50.0, FactoryProgress(10, 2, 10), 0.0001)
	assert.Equal(t, 100.0, FactoryProgress(40, 2, 10))
}

func TestSampleResultsIsDeterministic(t *testing.T) {
	a := SampleResults("BGP routing", "ccnp", 3)
	b := SampleResults("BGP routing", "ccnp", 3)

	assert.Equal(t, a, b)
	assert.Len(t, a, 6)
	for i := 1; i < len(a); i++ {
		assert.GreaterOrEqual(t, a[i-1].Relevance, a[i].Relevance)
	}
	assert.LessOrEqual(t, len(SampleResults("OSPF", "all", 50)), maxSampleResults)
}
