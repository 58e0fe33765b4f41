package placeholder

import (
	"errors"
	"fmt"
	"math"
	"time"

	"rag-pipeline-console/internal/entity"
	"rag-pipeline-console/internal/mapper"
	"rag-pipeline-console/pkg/events"

	"github.com/google/uuid"
)

// DefaultQuestions is the LLM connection test battery.
var DefaultQuestions = []string{
	"What is the capital city of France?",
	"What is 2 + 2?",
	"Name one planet in our solar system.",
	"What color do you get when you mix red and blue?",
}

var cannedAnswers = map[string]string{
	"What is the capital city of France?":               "The capital city of France is Paris.",
	"What is 2 + 2?":                                    "2 + 2 equals 4.",
	"Name one planet in our solar system.":              "Earth is a planet in our solar system.",
	"What color do you get when you mix red and blue?": "When you mix red and blue, you get purple.",
}

const fallbackAnswer = "I understand your question and I'm processing it."

func (s *Service) handleSystemConfig(clientID string, req events.SystemConfigRequest) {
	ctx := s.ctx
	var (
		result map[string]interface{}
		err    error
	)

	switch req.Request {
	case events.ConfigRequestGetAPIKeys:
		result, err = s.keyResult("API keys loaded")

	case events.ConfigRequestSaveAPIKey:
		if req.KeyData == nil || req.KeyData.Provider == "" || req.KeyData.Key == "" {
			err = errors.New("missing key_data")
			break
		}
		id, parseErr := uuid.Parse(req.KeyData.ID)
		if parseErr != nil {
			id = uuid.New()
		}
		var existing []*entity.Credential
		existing, err = s.keys.List(ctx)
		if err != nil {
			break
		}
		active := true
		for _, c := range existing {
			if c.Provider == req.KeyData.Provider && c.Active && c.Id != id {
				active = false
			}
		}
		now := time.Now()
		err = s.keys.Set(ctx, &entity.Credential{
			Id:        id,
			Provider:  req.KeyData.Provider,
			Name:      req.KeyData.Name,
			Key:       req.KeyData.Key,
			Active:    active,
			CreatedAt: now,
			UpdatedAt: now,
		})
		if err == nil {
			result, err = s.keyResult("API key saved")
		}

	case events.ConfigRequestDeleteAPIKey:
		var id uuid.UUID
		if id, err = s.parseKeyID(req.KeyID); err != nil {
			break
		}
		if err = s.keys.Delete(ctx, id); err == nil {
			result, err = s.keyResult("API key deleted")
		}

	case events.ConfigRequestSetActiveKey:
		var id uuid.UUID
		if id, err = s.parseKeyID(req.KeyID); err != nil {
			break
		}
		if err = s.activate(id); err == nil {
			result, err = s.keyResult("Active API key updated")
		}

	default:
		// update_config, and anything unrecognised, updates the configuration
		result = s.updateConfig(req)
	}

	if err != nil {
		s.sendError(clientID, "Config error: "+err.Error())
		return
	}
	s.emit(clientID, events.TypeConfigUpdated, map[string]interface{}{"result": result})
}

func (s *Service) parseKeyID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid key_id %q", raw)
	}
	return id, nil
}

func (s *Service) activate(id uuid.UUID) error {
	target, err := s.keys.Get(s.ctx, id)
	if err != nil {
		return err
	}
	all, err := s.keys.List(s.ctx)
	if err != nil {
		return err
	}
	for _, c := range all {
		if c.Provider != target.Provider || c.Active == (c.Id == id) {
			continue
		}
		c.Active = c.Id == id
		c.UpdatedAt = time.Now()
		if err := s.keys.Set(s.ctx, c); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) keyResult(message string) (map[string]interface{}, error) {
	all, err := s.keys.List(s.ctx)
	if err != nil {
		return nil, err
	}
	m := mapper.NewCredentialMapper()
	keys := make([]events.APIKey, 0, len(all))
	for _, c := range all {
		keys = append(keys, m.ToWire(c))
	}
	return map[string]interface{}{
		"status":   "success",
		"message":  message,
		"api_keys": keys,
	}, nil
}

func (s *Service) updateConfig(req events.SystemConfigRequest) map[string]interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()

	if req.DatabaseType != "" {
		s.config["database_type"] = req.DatabaseType
	}
	if req.OperationMode != "" {
		s.config["operation_mode"] = req.OperationMode
	}
	if len(req.APIKeys) > 0 {
		keys, _ := s.config["api_keys"].(map[string]interface{})
		if keys == nil {
			keys = map[string]interface{}{}
		}
		for name := range req.APIKeys {
			// keys are acknowledged, never echoed back
			keys[name] = "configured"
		}
		s.config["api_keys"] = keys
	}
	if len(req.LLMConfig) > 0 {
		llm, _ := s.config["llm_config"].(map[string]interface{})
		if llm == nil {
			llm = map[string]interface{}{}
		}
		for k, v := range req.LLMConfig {
			llm[k] = v
		}
		s.config["llm_config"] = llm
	}

	return map[string]interface{}{
		"status":    "success",
		"message":   "Configuration updated successfully",
		"config":    copyMap(s.config),
		"timestamp": time.Now().Format(time.RFC3339),
	}
}

func copyMap(in map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(in))
	for k, v := range in {
		if nested, ok := v.(map[string]interface{}); ok {
			v = copyMap(nested)
		}
		out[k] = v
	}
	return out
}

// Status reports the service health with slowly drifting resource figures.
func (s *Service) Status() map[string]interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := &s.resources
	r.CPU.Usage = s.drift(r.CPU.Usage, 5, 10, 95)
	r.RAM.Percentage = s.drift(r.RAM.Percentage, 2, 15, 90)
	r.GPU.Usage = s.drift(r.GPU.Usage, 10, 5, 100)
	r.VRAM.Percentage = s.drift(r.VRAM.Percentage, 3, 10, 95)

	database := "disconnected"
	if s.config["database_type"] != "" {
		database = "connected"
	}

	return map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
		"config":    copyMap(s.config),
		"resources": *r,
		"services": map[string]string{
			"document_discovery": "active",
			"document_search":    "active",
			"ai_agent":           "active",
			"pipeline_manager":   "active",
			"database":           database,
		},
	}
}

func (s *Service) drift(v, spread, lo, hi float64) float64 {
	v += (s.rng.Float64()*2 - 1) * spread
	v = math.Max(lo, math.Min(hi, v))
	return math.Round(v*100) / 100
}

func (s *Service) runLLMTest(clientID string, req events.TestLLMConnectionRequest) {
	questions := req.Questions
	if len(questions) == 0 {
		questions = DefaultQuestions
	}

	results := make([]events.LLMTestResult, 0, len(questions))
	for i, q := range questions {
		s.emit(clientID, events.TypeLLMTestProgress, events.LLMTestProgress{CurrentIndex: i})
		if !s.sleep(s.answerDelay) {
			return
		}
		answer, ok := cannedAnswers[q]
		if !ok {
			answer = fallbackAnswer
		}
		results = append(results, events.LLMTestResult{
			Question:  q,
			Response:  answer,
			Status:    "success",
			Timestamp: time.Now().Format("15:04:05"),
		})
	}

	s.emit(clientID, events.TypeLLMTestResults, events.LLMTestResults{Results: results})
}

func (s *Service) checkUpdates() map[string]interface{} {
	s.mu.Lock()
	updates := s.rng.Intn(4)
	s.mu.Unlock()

	return map[string]interface{}{
		"status":            "success",
		"documents_checked": 128,
		"updates_available": updates,
		"checked_at":        time.Now().Format(time.RFC3339),
	}
}
