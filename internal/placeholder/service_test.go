package placeholder

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"rag-pipeline-console/internal/pkg/logger"
	"rag-pipeline-console/internal/progress"
	"rag-pipeline-console/internal/repository/memory"
	"rag-pipeline-console/pkg/events"
	"rag-pipeline-console/pkg/pipeline"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingEmitter struct {
	mu     sync.Mutex
	frames []map[string]interface{}
}

func (e *recordingEmitter) Send(_ string, frame map[string]interface{}) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.frames = append(e.frames, frame)
}

func (e *recordingEmitter) ofType(msgType string) []map[string]interface{} {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []map[string]interface{}
	for _, f := range e.frames {
		if f["type"] == msgType {
			out = append(out, f)
		}
	}
	return out
}

func newTestService(t *testing.T) (*Service, *recordingEmitter) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	emitter := &recordingEmitter{}
	svc := NewService(ctx, emitter, progress.ImmediateClock{}, progress.DefaultCadence(),
		memory.NewCredentialRepository(0), logger.NewNopLogger())
	return svc, emitter
}

func handle(t *testing.T, svc *Service, raw string) {
	t.Helper()
	svc.Handle("client-1", []byte(raw))
	svc.Wait()
}

func TestAgentRunEndsWithResults(t *testing.T) {
	svc, emitter := newTestService(t)
	handle(t, svc, `{"action":"ai_agent","data":{"query":"BGP","certification_level":"CCNP","max_documents":3}}`)

	updates := emitter.ofType(events.TypeAIAgentUpdate)
	require.Len(t, updates, len(pipeline.DiscoverySteps)+1)
	assert.Equal(t, 20.0, updates[0]["overallProgress"])

	last := updates[len(updates)-1]
	assert.Equal(t, "completed", last["status"])
	assert.Equal(t, 100.0, last["overallProgress"])
	want := pipeline.SampleResults("BGP", "CCNP", 3)
	results, ok := last["results"].([]interface{})
	require.True(t, ok)
	assert.Len(t, results, len(want))
	assert.Contains(t, last["currentStep"], fmt.Sprintf("%d new documents", len(want)))
	first := results[0].(map[string]interface{})
	assert.Equal(t, want[0].ID, first["id"])
	assert.Equal(t, "pending", first["downloadStatus"])
}

func TestDownloadStreamsTicks(t *testing.T) {
	svc, emitter := newTestService(t)
	handle(t, svc, `{"action":"download_document","data":{"document_id":"ai_1","document":{"id":"ai_1","title":"BGP"}}}`)

	updates := emitter.ofType(events.TypeDocumentDownloadUpdate)
	require.Len(t, updates, 11)
	assert.Equal(t, "downloading", updates[0]["status"])
	assert.Equal(t, "completed", updates[10]["status"])
	assert.Equal(t, 100.0, updates[10]["progress"])
}

func TestDownloadWithoutDocumentFails(t *testing.T) {
	svc, emitter := newTestService(t)
	handle(t, svc, `{"action":"download_document","data":{"document_id":"ai_1"}}`)

	updates := emitter.ofType(events.TypeDocumentDownloadUpdate)
	require.Len(t, updates, 1)
	assert.Equal(t, "failed", updates[0]["status"])
	assert.Equal(t, "Missing document_id or document data", updates[0]["error"])
}

func TestStage2CoversEveryFile(t *testing.T) {
	svc, emitter := newTestService(t)
	handle(t, svc, `{"action":"pipeline_stage2","data":{"pdf_files":["a.pdf","b.pdf"],"output_phase":2}}`)

	steps := pipeline.StepsForPhase(2)
	updates := emitter.ofType(events.TypePipelineStage2Update)
	require.Len(t, updates, 2*len(steps))

	first := updates[0]
	assert.Contains(t, first["current_step"], "[File 1/2: a.pdf]")
	assert.Equal(t, "running", first["status"])

	last := updates[len(updates)-1]
	assert.Equal(t, "completed", last["status"])
	assert.Equal(t, 100.0, last["progress"])
	assert.Equal(t, 2.0, last["processed_files"])
	assert.Equal(t, 2.0, last["total_files"])
}

func TestStage2WithoutFilesReportsError(t *testing.T) {
	svc, emitter := newTestService(t)
	handle(t, svc, `{"action":"pipeline_stage2","data":{"pdf_files":[]}}`)

	errs := emitter.ofType(events.TypeError)
	require.Len(t, errs, 1)
	assert.Equal(t, "Pipeline Stage 2 error: No PDF files provided for Stage 2", errs[0]["message"])
	assert.Empty(t, emitter.ofType(events.TypePipelineStage2Update))
}

func TestLocalFilesCompleteTogether(t *testing.T) {
	svc, emitter := newTestService(t)
	handle(t, svc, `{"action":"process_local_files","data":{"files":[{"name":"a.pdf"},{"name":"b.pdf"}]}}`)

	updates := emitter.ofType(events.TypeLocalFilesUpdate)
	require.Len(t, updates, 20)
	assert.Equal(t, "processing", updates[0]["status"])
	assert.Equal(t, "completed", updates[18]["status"])
	assert.Equal(t, "completed", updates[19]["status"])
}

func TestUnknownActionAndBadJSON(t *testing.T) {
	svc, emitter := newTestService(t)
	handle(t, svc, `{"action":"launch_rockets"}`)
	handle(t, svc, `not json`)

	errs := emitter.ofType(events.TypeError)
	require.Len(t, errs, 2)
	assert.Equal(t, "Unknown action: launch_rockets", errs[0]["message"])
	assert.Contains(t, errs[1]["message"], "Invalid message")
}

func TestStatusStaysWithinBounds(t *testing.T) {
	svc, _ := newTestService(t)
	for i := 0; i < 200; i++ {
		status := svc.Status()
		r := status["resources"].(events.Resources)
		assert.GreaterOrEqual(t, r.CPU.Usage, 10.0)
		assert.LessOrEqual(t, r.CPU.Usage, 95.0)
		assert.GreaterOrEqual(t, r.VRAM.Percentage, 10.0)
		assert.LessOrEqual(t, r.VRAM.Percentage, 95.0)
	}
}

func TestGetStatusEmitsSystemStatus(t *testing.T) {
	svc, emitter := newTestService(t)
	handle(t, svc, `{"action":"get_status"}`)

	frames := emitter.ofType(events.TypeSystemStatus)
	require.Len(t, frames, 1)
	status := frames[0]["status"].(map[string]interface{})
	assert.Equal(t, "healthy", status["status"])
}

func TestUpdateConfigMergesFields(t *testing.T) {
	svc, emitter := newTestService(t)
	handle(t, svc, `{"action":"system_config","data":{"request":"update_config","operation_mode":"offline","llm_config":{"provider":"ollama"}}}`)

	frames := emitter.ofType(events.TypeConfigUpdated)
	require.Len(t, frames, 1)
	result := frames[0]["result"].(map[string]interface{})
	assert.Equal(t, "Configuration updated successfully", result["message"])
	config := result["config"].(map[string]interface{})
	assert.Equal(t, "offline", config["operation_mode"])
	assert.Equal(t, "sqlite", config["database_type"])
	llm := config["llm_config"].(map[string]interface{})
	assert.Equal(t, "ollama", llm["provider"])
	assert.Contains(t, llm, "ollama_config")
}

func TestAPIKeyLifecycle(t *testing.T) {
	svc, emitter := newTestService(t)
	handle(t, svc, `{"action":"system_config","data":{"request":"save_api_key","key_data":{"id":"9b2c7a52-2f43-4d8e-9b4c-0f5b4d6a1a01","provider":"groq","name":"main","key":"gsk_abcdefgh1234"}}}`)
	handle(t, svc, `{"action":"system_config","data":{"request":"save_api_key","key_data":{"id":"9b2c7a52-2f43-4d8e-9b4c-0f5b4d6a1a02","provider":"groq","name":"spare","key":"gsk_zzzzzzzz5678"}}}`)

	keys := func() map[string]map[string]interface{} {
		frames := emitter.ofType(events.TypeConfigUpdated)
		require.NotEmpty(t, frames)
		result := frames[len(frames)-1]["result"].(map[string]interface{})
		out := map[string]map[string]interface{}{}
		for _, k := range result["api_keys"].([]interface{}) {
			key := k.(map[string]interface{})
			out[key["name"].(string)] = key
		}
		return out
	}

	got := keys()
	require.Len(t, got, 2)
	assert.Equal(t, true, got["main"]["active"])
	assert.Equal(t, false, got["spare"]["active"])
	assert.Equal(t, "********1234", got["main"]["masked"])

	handle(t, svc, `{"action":"system_config","data":{"request":"set_active_api_key","key_id":"9b2c7a52-2f43-4d8e-9b4c-0f5b4d6a1a02"}}`)
	got = keys()
	assert.Equal(t, false, got["main"]["active"])
	assert.Equal(t, true, got["spare"]["active"])

	handle(t, svc, `{"action":"system_config","data":{"request":"delete_api_key","key_id":"9b2c7a52-2f43-4d8e-9b4c-0f5b4d6a1a01"}}`)
	got = keys()
	assert.Len(t, got, 1)
	assert.Contains(t, got, "spare")

	handle(t, svc, `{"action":"system_config","data":{"request":"delete_api_key","key_id":"9b2c7a52-2f43-4d8e-9b4c-0f5b4d6a1a01"}}`)
	errs := emitter.ofType(events.TypeError)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0]["message"], "Config error:")
}

func TestLLMTestRunsBattery(t *testing.T) {
	svc, emitter := newTestService(t)
	svc.answerDelay = time.Millisecond
	handle(t, svc, `{"action":"test_llm_connection","data":{"provider":"groq","questions":["What is 2 + 2?","Why?"]}}`)

	progressFrames := emitter.ofType(events.TypeLLMTestProgress)
	require.Len(t, progressFrames, 2)
	assert.Equal(t, 1.0, progressFrames[1]["current_index"])

	frames := emitter.ofType(events.TypeLLMTestResults)
	require.Len(t, frames, 1)
	results := frames[0]["results"].([]interface{})
	require.Len(t, results, 2)
	assert.Equal(t, "2 + 2 equals 4.", results[0].(map[string]interface{})["response"])
	assert.Equal(t, fallbackAnswer, results[1].(map[string]interface{})["response"])
}

func TestCheckDocumentUpdates(t *testing.T) {
	svc, emitter := newTestService(t)
	handle(t, svc, `{"action":"check_document_updates"}`)

	frames := emitter.ofType(events.TypeDocumentUpdatesChecked)
	require.Len(t, frames, 1)
	result := frames[0]["result"].(map[string]interface{})
	assert.Equal(t, "success", result["status"])
}

func TestCancelledContextStopsActions(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	emitter := &recordingEmitter{}
	clock := progress.NewManualClock()
	svc := NewService(ctx, emitter, clock, progress.DefaultCadence(),
		memory.NewCredentialRepository(0), logger.NewNopLogger())

	svc.Handle("client-1", []byte(`{"action":"download_document","data":{"document_id":"ai_1","document":{"id":"ai_1"}}}`))
	require.Eventually(t, func() bool { return clock.Pending() == 1 }, time.Second, time.Millisecond)
	cancel()
	svc.Wait()

	assert.Len(t, emitter.ofType(events.TypeDocumentDownloadUpdate), 1)
}
