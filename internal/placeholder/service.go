// Package placeholder is a stand-in for the remote pipeline service. It speaks
// the same websocket protocol and produces plausible progress, which is enough
// to drive the console end to end without the real search and inference stack.
package placeholder

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"rag-pipeline-console/internal/pkg/logger"
	"rag-pipeline-console/internal/progress"
	"rag-pipeline-console/internal/repository/contract"
	"rag-pipeline-console/pkg/events"
)

// Emitter delivers a frame to one client. Implemented by *websocket.Hub.
type Emitter interface {
	Send(clientID string, frame map[string]interface{})
}

const defaultAnswerDelay = 1500 * time.Millisecond

type Service struct {
	ctx         context.Context
	emitter     Emitter
	clock       progress.Clock
	cadence     progress.Cadence
	answerDelay time.Duration
	keys        contract.ICredentialRepository
	logger      logger.ILogger
	wg          sync.WaitGroup

	mu        sync.Mutex
	config    map[string]interface{}
	resources events.Resources
	rng       *rand.Rand
	history   []events.SearchHistoryEntry
}

func NewService(ctx context.Context, emitter Emitter, clock progress.Clock, cadence progress.Cadence, keys contract.ICredentialRepository, log logger.ILogger) *Service {
	return &Service{
		ctx:         ctx,
		emitter:     emitter,
		clock:       clock,
		cadence:     cadence,
		answerDelay: defaultAnswerDelay,
		keys:        keys,
		logger:      log,
		config:      defaultConfig(),
		resources:   defaultResources(),
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func defaultConfig() map[string]interface{} {
	return map[string]interface{}{
		"database_type":  "sqlite",
		"operation_mode": "online",
		"api_keys":       map[string]interface{}{},
		"llm_config": map[string]interface{}{
			"provider": "groq",
			"ollama_config": map[string]interface{}{
				"endpoint": "http://localhost:11434",
				"model":    "llama2",
			},
		},
	}
}

func defaultResources() events.Resources {
	return events.Resources{
		CPU:  events.ResourceUsage{Usage: 45, Temperature: 62},
		RAM:  events.ResourceUsage{Used: 6.2, Total: 16, Percentage: 38.75},
		GPU:  events.ResourceUsage{Usage: 78, Temperature: 71, Model: "NVIDIA RTX 4080"},
		VRAM: events.ResourceUsage{Used: 8.5, Total: 12, Percentage: 70.8},
	}
}

// SetAnswerDelay changes how long each LLM test question takes.
func (s *Service) SetAnswerDelay(d time.Duration) {
	if d > 0 {
		s.answerDelay = d
	}
}

// Wait blocks until every running action has finished.
func (s *Service) Wait() {
	s.wg.Wait()
}

func (s *Service) spawn(fn func()) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		fn()
	}()
}

// sleep returns false once the service is shutting down.
func (s *Service) sleep(d time.Duration) bool {
	select {
	case <-s.clock.After(d):
		return true
	case <-s.ctx.Done():
		return false
	}
}

// frame flattens payload into a {type, ...payload} object.
func frame(msgType string, payload interface{}) map[string]interface{} {
	out := map[string]interface{}{}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err == nil {
			_ = json.Unmarshal(raw, &out)
		}
	}
	out["type"] = msgType
	return out
}

func (s *Service) emit(clientID, msgType string, payload interface{}) {
	s.emitter.Send(clientID, frame(msgType, payload))
}

func (s *Service) sendError(clientID, message string) {
	s.logger.Warn("Placeholder", "Action failed", map[string]interface{}{"client_id": clientID, "message": message})
	s.emit(clientID, events.TypeError, events.ErrorMessage{Message: message})
}

type command struct {
	Action string          `json:"action"`
	Data   json.RawMessage `json:"data"`
}

func (c command) decode(v interface{}) error {
	if len(c.Data) == 0 || string(c.Data) == "null" {
		return nil
	}
	return json.Unmarshal(c.Data, v)
}

// Handle routes one inbound {action, data} frame. Long-running actions stream
// their progress from a goroutine.
func (s *Service) Handle(clientID string, raw []byte) {
	var cmd command
	if err := json.Unmarshal(raw, &cmd); err != nil {
		s.sendError(clientID, fmt.Sprintf("Invalid message: %v", err))
		return
	}
	s.logger.Debug("Placeholder", "Action received", map[string]interface{}{"client_id": clientID, "action": cmd.Action})

	switch cmd.Action {
	case events.ActionAIAgent:
		var req events.AIAgentRequest
		if err := cmd.decode(&req); err != nil {
			s.sendError(clientID, "AI Agent error: "+err.Error())
			return
		}
		s.spawn(func() { s.runAgent(clientID, req) })

	case events.ActionDocumentDiscovery:
		var req events.DocumentDiscoveryRequest
		if err := cmd.decode(&req); err != nil {
			s.sendError(clientID, "Discovery error: "+err.Error())
			return
		}
		s.spawn(func() { s.runDiscovery(clientID, req) })

	case events.ActionPipelineStage1:
		var req events.PipelineStage1Request
		if err := cmd.decode(&req); err != nil {
			s.sendError(clientID, "Pipeline Stage 1 error: "+err.Error())
			return
		}
		s.spawn(func() { s.runStage1(clientID, req) })

	case events.ActionDocumentSearch:
		var req events.DocumentSearchRequest
		if err := cmd.decode(&req); err != nil {
			s.sendError(clientID, "Search error: "+err.Error())
			return
		}
		s.spawn(func() { s.runSearch(clientID, req) })

	case events.ActionAdvancedSearch:
		var req events.AdvancedSearchRequest
		if err := cmd.decode(&req); err != nil {
			s.sendError(clientID, "Advanced search error: "+err.Error())
			return
		}
		s.runAdvancedSearch(clientID, req)

	case events.ActionGetSearchHistory:
		s.emit(clientID, events.TypeSearchHistory, s.searchHistory())

	case events.ActionGetSavedSearches:
		s.emit(clientID, events.TypeSavedSearches, s.savedSearches())

	case events.ActionDownloadDocument:
		var req events.DownloadDocumentRequest
		if err := cmd.decode(&req); err != nil {
			s.sendError(clientID, "Download error: "+err.Error())
			return
		}
		s.spawn(func() { s.runDownload(clientID, req) })

	case events.ActionPipelineStage2:
		var req events.PipelineStage2Request
		if err := cmd.decode(&req); err != nil {
			s.sendError(clientID, "Pipeline Stage 2 error: "+err.Error())
			return
		}
		s.spawn(func() { s.runStage2(clientID, req) })

	case events.ActionProcessLocalFiles:
		var req events.ProcessLocalFilesRequest
		if err := cmd.decode(&req); err != nil {
			s.sendError(clientID, "Local file processing error: "+err.Error())
			return
		}
		s.spawn(func() { s.runLocalFiles(clientID, req) })

	case events.ActionSystemConfig:
		var req events.SystemConfigRequest
		if err := cmd.decode(&req); err != nil {
			s.sendError(clientID, "Config error: "+err.Error())
			return
		}
		s.handleSystemConfig(clientID, req)

	case events.ActionGetStatus:
		s.emit(clientID, events.TypeSystemStatus, map[string]interface{}{"status": s.Status()})

	case events.ActionTestLLMConnection:
		var req events.TestLLMConnectionRequest
		if err := cmd.decode(&req); err != nil {
			s.sendError(clientID, "LLM test error: "+err.Error())
			return
		}
		s.spawn(func() { s.runLLMTest(clientID, req) })

	case events.ActionCheckDocumentUpdates:
		s.emit(clientID, events.TypeDocumentUpdatesChecked, map[string]interface{}{"result": s.checkUpdates()})

	default:
		s.sendError(clientID, fmt.Sprintf("Unknown action: %s", cmd.Action))
	}
}
