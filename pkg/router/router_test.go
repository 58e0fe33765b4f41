package router

import (
	"testing"

	"rag-pipeline-console/internal/pkg/logger"
	"rag-pipeline-console/pkg/events"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter() *Router {
	return New(logger.NewNopLogger())
}

func TestDispatchInvokesRegisteredHandler(t *testing.T) {
	r := newTestRouter()

	var got []events.Message
	r.Register("ai_agent_update", func(msg events.Message) {
		got = append(got, msg)
	})

	require.NoError(t, r.Dispatch([]byte(`{"type":"ai_agent_update","overallProgress":40}`)))
	require.Len(t, got, 1)
	assert.Equal(t, "ai_agent_update", got[0].Type)

	var payload events.AIAgentUpdate
	require.NoError(t, got[0].Decode(&payload))
	assert.Equal(t, 40.0, payload.OverallProgress)
}

func TestReRegisterReplacesHandler(t *testing.T) {
	r := newTestRouter()

	oldCalls, newCalls := 0, 0
	r.Register("system_status", func(events.Message) { oldCalls++ })
	r.Register("system_status", func(events.Message) { newCalls++ })

	for i := 0; i < 3; i++ {
		require.NoError(t, r.Dispatch([]byte(`{"type":"system_status"}`)))
	}

	assert.Equal(t, 0, oldCalls)
	assert.Equal(t, 3, newCalls)
}

func TestStaleUnregisterKeepsNewerHandler(t *testing.T) {
	r := newTestRouter()

	calls := 0
	unregisterOld := r.Register("config_updated", func(events.Message) {})
	r.Register("config_updated", func(events.Message) { calls++ })

	unregisterOld()

	assert.True(t, r.Registered("config_updated"))
	require.NoError(t, r.Dispatch([]byte(`{"type":"config_updated"}`)))
	assert.Equal(t, 1, calls)
}

func TestUnregisterRemovesCurrentHandler(t *testing.T) {
	r := newTestRouter()

	calls := 0
	unregister := r.Register("llm_test_progress", func(events.Message) { calls++ })
	unregister()
	unregister()

	assert.False(t, r.Registered("llm_test_progress"))
	require.NoError(t, r.Dispatch([]byte(`{"type":"llm_test_progress","current_index":1}`)))
	assert.Equal(t, 0, calls)

	last, ok := r.LastMessage()
	require.True(t, ok)
	assert.Equal(t, "llm_test_progress", last.Type)
}

func TestMalformedFramesAreReportedAndDropped(t *testing.T) {
	tests := []struct {
		name  string
		frame string
		want  error
	}{
		{name: "not json", frame: `{{nope`, want: events.ErrMalformedFrame},
		{name: "missing type", frame: `{"status":"running"}`, want: events.ErrMissingType},
		{name: "empty type", frame: `{"type":""}`, want: events.ErrMissingType},
		{name: "array", frame: `[1,2]`, want: events.ErrMalformedFrame},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRouter()
			called := false
			r.Register("error", func(events.Message) { called = true })

			err := r.Dispatch([]byte(tt.frame))
			assert.ErrorIs(t, err, tt.want)
			assert.ErrorIs(t, r.LastError(), tt.want)
			assert.False(t, called)

			_, ok := r.LastMessage()
			assert.False(t, ok)

			select {
			case got := <-r.Errors():
				assert.ErrorIs(t, got, tt.want)
			default:
				t.Fatal("expected error on channel")
			}
		})
	}
}

func TestMessagesBeforeRegistrationAreNotReplayed(t *testing.T) {
	r := newTestRouter()

	require.NoError(t, r.Dispatch([]byte(`{"type":"llm_test_results","results":[]}`)))

	calls := 0
	r.Register("llm_test_results", func(events.Message) { calls++ })
	assert.Equal(t, 0, calls)

	last, ok := r.LastMessage()
	require.True(t, ok)
	assert.Equal(t, "llm_test_results", last.Type)
}

func TestErrorChannelDoesNotBlockWhenFull(t *testing.T) {
	r := newTestRouter()
	for i := 0; i < errorBuffer+5; i++ {
		assert.Error(t, r.Dispatch([]byte(`nope`)))
	}
	assert.Len(t, r.Errors(), errorBuffer)
}
