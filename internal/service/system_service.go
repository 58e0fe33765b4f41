package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"rag-pipeline-console/internal/entity"
	"rag-pipeline-console/internal/mapper"
	"rag-pipeline-console/internal/pkg/logger"
	"rag-pipeline-console/internal/repository/contract"
	"rag-pipeline-console/pkg/events"
	"rag-pipeline-console/pkg/projection"
	"rag-pipeline-console/pkg/router"

	"github.com/google/uuid"
)

var ErrLLMTestRunning = errors.New("llm test already running")

// SystemSnapshot is what the console knows about the remote service besides
// the pipeline itself.
type SystemSnapshot struct {
	Version        uint64
	Status         string
	Resources      events.Resources
	Services       map[string]string
	Config         map[string]interface{}
	APIKeys        []events.APIKey
	ConfigMessage  string
	LLMTestRunning bool
	LLMTestIndex   int
	LLMTestResults []events.LLMTestResult
	UpdateCheck    map[string]interface{}
	Search         SearchState
	SearchHistory  []events.SearchHistoryEntry
	SavedSearches  []events.SavedSearch
	// Notice is the latest start announcement for discovery or local files.
	Notice         string
	LastError      string
	UpdatedAt      time.Time
}

type SystemService struct {
	commands    ICommandService
	credentials contract.ICredentialRepository
	mapper      *mapper.CredentialMapper
	logger      logger.ILogger

	mu        sync.Mutex
	snapshot  SystemSnapshot
	listeners map[int]func(SystemSnapshot)
	nextID    int
	onResults func([]projection.Document)
}

func NewSystemService(commands ICommandService, credentials contract.ICredentialRepository, log logger.ILogger) *SystemService {
	return &SystemService{
		commands:    commands,
		credentials: credentials,
		mapper:      mapper.NewCredentialMapper(),
		logger:      log,
		listeners:   make(map[int]func(SystemSnapshot)),
		snapshot:    SystemSnapshot{Search: SearchState{Status: SearchIdle}},
	}
}

// Attach registers the system message handlers. Error frames are delivered
// through HandleError so the pipeline source can see them too.
func (s *SystemService) Attach(rt *router.Router) router.Unregister {
	offs := []router.Unregister{
		rt.Register(events.TypeSystemStatus, s.handleSystemStatus),
		rt.Register(events.TypeConfigUpdated, s.handleConfigUpdated),
		rt.Register(events.TypeLLMTestProgress, s.handleLLMTestProgress),
		rt.Register(events.TypeLLMTestResults, s.handleLLMTestResults),
		rt.Register(events.TypeDocumentUpdatesChecked, s.handleUpdatesChecked),
		rt.Register(events.TypeSearchStatus, s.handleSearchStatus),
		rt.Register(events.TypeDiscoveryStatus, s.handleNotice),
		rt.Register(events.TypeLocalFilesStatus, s.handleNotice),
		rt.Register(events.TypeSearchResults, s.handleSearchResults),
		rt.Register(events.TypeAdvancedSearchResults, s.handleAdvancedSearchResults),
		rt.Register(events.TypeSearchHistory, s.handleSearchHistory),
		rt.Register(events.TypeSavedSearches, s.handleSavedSearches),
	}
	return func() {
		for _, off := range offs {
			off()
		}
	}
}

// Subscribe calls fn with every new snapshot. fn runs on the dispatching
// goroutine.
func (s *SystemService) Subscribe(fn func(SystemSnapshot)) func() {
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.listeners[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

func (s *SystemService) Snapshot() SystemSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.copyLocked()
}

func (s *SystemService) copyLocked() SystemSnapshot {
	out := s.snapshot
	out.APIKeys = append([]events.APIKey(nil), s.snapshot.APIKeys...)
	out.LLMTestResults = append([]events.LLMTestResult(nil), s.snapshot.LLMTestResults...)
	out.Search.Results = append([]events.SearchResult(nil), s.snapshot.Search.Results...)
	out.SearchHistory = append([]events.SearchHistoryEntry(nil), s.snapshot.SearchHistory...)
	out.SavedSearches = append([]events.SavedSearch(nil), s.snapshot.SavedSearches...)
	return out
}

func (s *SystemService) update(fn func(*SystemSnapshot)) {
	s.mu.Lock()
	fn(&s.snapshot)
	s.snapshot.Version++
	s.snapshot.UpdatedAt = time.Now()
	snap := s.copyLocked()
	listeners := make([]func(SystemSnapshot), 0, len(s.listeners))
	for _, l := range s.listeners {
		listeners = append(listeners, l)
	}
	s.mu.Unlock()

	for _, l := range listeners {
		l(snap)
	}
}

func (s *SystemService) RefreshStatus(ctx context.Context) error {
	return s.commands.GetStatus(ctx)
}

func (s *SystemService) CheckDocumentUpdates(ctx context.Context) error {
	return s.commands.CheckDocumentUpdates(ctx)
}

// TestLLM starts the connection test battery. Progress and results arrive as
// llm_test_progress and llm_test_results frames.
func (s *SystemService) TestLLM(ctx context.Context, provider string) error {
	s.mu.Lock()
	if s.snapshot.LLMTestRunning {
		s.mu.Unlock()
		return ErrLLMTestRunning
	}
	s.mu.Unlock()

	if err := s.commands.TestLLMConnection(ctx, events.TestLLMConnectionRequest{Provider: provider}); err != nil {
		return err
	}
	s.update(func(snap *SystemSnapshot) {
		snap.LLMTestRunning = true
		snap.LLMTestIndex = 0
		snap.LLMTestResults = nil
	})
	return nil
}

func (s *SystemService) UpdateConfig(ctx context.Context, databaseType, operationMode string, llmConfig map[string]interface{}) error {
	return s.commands.SystemConfig(ctx, events.SystemConfigRequest{
		Request:       events.ConfigRequestUpdate,
		DatabaseType:  databaseType,
		OperationMode: operationMode,
		LLMConfig:     llmConfig,
	})
}

// SaveAPIKey stores the key locally and forwards it to the service. The first
// key of a provider becomes its active key.
func (s *SystemService) SaveAPIKey(ctx context.Context, provider, name, key string) (*entity.Credential, error) {
	existing, err := s.credentials.List(ctx)
	if err != nil {
		return nil, err
	}
	active := true
	for _, c := range existing {
		if c.Provider == provider && c.Active {
			active = false
			break
		}
	}

	now := time.Now()
	credential := &entity.Credential{
		Id:        uuid.New(),
		Provider:  provider,
		Name:      name,
		Key:       key,
		Active:    active,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err = s.commands.SystemConfig(ctx, events.SystemConfigRequest{
		Request: events.ConfigRequestSaveAPIKey,
		KeyData: &events.APIKeyData{
			ID:       credential.Id.String(),
			Provider: provider,
			Name:     name,
			Key:      key,
		},
	})
	if err != nil {
		return nil, err
	}

	if err := s.credentials.Set(ctx, credential); err != nil {
		return nil, fmt.Errorf("store api key: %w", err)
	}
	s.logger.Info("SystemService", "API key saved", map[string]interface{}{"provider": provider, "key": credential.Masked()})
	s.refreshKeys(ctx)
	return credential, nil
}

func (s *SystemService) DeleteAPIKey(ctx context.Context, id uuid.UUID) error {
	if _, err := s.credentials.Get(ctx, id); err != nil {
		return err
	}
	err := s.commands.SystemConfig(ctx, events.SystemConfigRequest{
		Request: events.ConfigRequestDeleteAPIKey,
		KeyID:   id.String(),
	})
	if err != nil {
		return err
	}
	if err := s.credentials.Delete(ctx, id); err != nil {
		return err
	}
	s.refreshKeys(ctx)
	return nil
}

// SetActiveKey makes id the only active key of its provider.
func (s *SystemService) SetActiveKey(ctx context.Context, id uuid.UUID) error {
	target, err := s.credentials.Get(ctx, id)
	if err != nil {
		return err
	}
	err = s.commands.SystemConfig(ctx, events.SystemConfigRequest{
		Request: events.ConfigRequestSetActiveKey,
		KeyID:   id.String(),
	})
	if err != nil {
		return err
	}

	all, err := s.credentials.List(ctx)
	if err != nil {
		return err
	}
	now := time.Now()
	for _, c := range all {
		if c.Provider != target.Provider {
			continue
		}
		want := c.Id == id
		if c.Active == want {
			continue
		}
		c.Active = want
		c.UpdatedAt = now
		if err := s.credentials.Set(ctx, c); err != nil {
			return fmt.Errorf("store api key: %w", err)
		}
	}
	s.refreshKeys(ctx)
	return nil
}

// ListAPIKeys returns the locally stored keys, masked.
func (s *SystemService) ListAPIKeys(ctx context.Context) ([]events.APIKey, error) {
	all, err := s.credentials.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]events.APIKey, 0, len(all))
	for _, c := range all {
		out = append(out, s.mapper.ToWire(c))
	}
	return out, nil
}

// SyncAPIKeys asks the service for its key list.
func (s *SystemService) SyncAPIKeys(ctx context.Context) error {
	return s.commands.SystemConfig(ctx, events.SystemConfigRequest{Request: events.ConfigRequestGetAPIKeys})
}

func (s *SystemService) refreshKeys(ctx context.Context) {
	keys, err := s.ListAPIKeys(ctx)
	if err != nil {
		s.logger.Warn("SystemService", "Failed to list api keys", map[string]interface{}{"error": err.Error()})
		return
	}
	s.update(func(snap *SystemSnapshot) { snap.APIKeys = keys })
}

// HandleError records a remote error message.
func (s *SystemService) HandleError(message string) {
	s.update(func(snap *SystemSnapshot) {
		snap.LastError = message
		snap.LLMTestRunning = false
		if snap.Search.Status == SearchRunning && isSearchError(message) {
			snap.Search.Status = SearchFailed
			snap.Search.Message = message
		}
	})
}

// HandleErrorFrame is the router handler used when no pipeline source
// listens for error frames.
func (s *SystemService) HandleErrorFrame(msg events.Message) {
	var u events.ErrorMessage
	if err := msg.Decode(&u); err != nil {
		s.logger.Warn("SystemService", "Bad error frame", map[string]interface{}{"error": err.Error()})
		return
	}
	s.HandleError(u.Message)
}

func (s *SystemService) decode(msg events.Message, v interface{}) bool {
	if err := msg.Decode(v); err != nil {
		s.logger.Warn("SystemService", "Dropping undecodable frame", map[string]interface{}{"type": msg.Type, "error": err.Error()})
		return false
	}
	return true
}

func (s *SystemService) handleSystemStatus(msg events.Message) {
	var u events.SystemStatus
	if !s.decode(msg, &u) {
		return
	}
	s.update(func(snap *SystemSnapshot) {
		snap.Status = u.Status.Status
		snap.Resources = u.Status.Resources
		snap.Services = u.Status.Services
	})
}

func (s *SystemService) handleConfigUpdated(msg events.Message) {
	var u events.ConfigUpdated
	if !s.decode(msg, &u) {
		return
	}
	s.update(func(snap *SystemSnapshot) {
		snap.ConfigMessage = u.Result.Message
		if u.Result.Config != nil {
			snap.Config = u.Result.Config
		}
		if u.Result.APIKeys != nil {
			snap.APIKeys = u.Result.APIKeys
		}
	})
}

func (s *SystemService) handleLLMTestProgress(msg events.Message) {
	var u events.LLMTestProgress
	if !s.decode(msg, &u) {
		return
	}
	s.update(func(snap *SystemSnapshot) {
		snap.LLMTestRunning = true
		if u.CurrentIndex > snap.LLMTestIndex {
			snap.LLMTestIndex = u.CurrentIndex
		}
	})
}

func (s *SystemService) handleLLMTestResults(msg events.Message) {
	var u events.LLMTestResults
	if !s.decode(msg, &u) {
		return
	}
	s.update(func(snap *SystemSnapshot) {
		snap.LLMTestRunning = false
		snap.LLMTestIndex = len(u.Results)
		snap.LLMTestResults = u.Results
	})
}

func (s *SystemService) handleUpdatesChecked(msg events.Message) {
	var u events.DocumentUpdatesChecked
	if !s.decode(msg, &u) {
		return
	}
	s.update(func(snap *SystemSnapshot) { snap.UpdateCheck = u.Result })
}
