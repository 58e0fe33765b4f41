package tracer

import (
	"context"
	"testing"

	"rag-pipeline-console/internal/config"

	"github.com/stretchr/testify/assert"
)

func TestInitTracerDisabled(t *testing.T) {
	shutdown := InitTracer(config.TracingConfig{Enabled: false})
	assert.NoError(t, shutdown(context.Background()))
}
