package events

// Outbound actions understood by the remote service.
const (
	ActionAIAgent              = "ai_agent"
	ActionDownloadDocument     = "download_document"
	ActionSystemConfig         = "system_config"
	ActionGetStatus            = "get_status"
	ActionTestLLMConnection    = "test_llm_connection"
	ActionCheckDocumentUpdates = "check_document_updates"
	ActionPipelineStage2       = "pipeline_stage2"
	ActionProcessLocalFiles    = "process_local_files"
	ActionDocumentDiscovery    = "document_discovery"
	ActionPipelineStage1       = "pipeline_stage1"
	ActionDocumentSearch       = "document_search"
	ActionAdvancedSearch       = "advanced_search"
	ActionGetSearchHistory     = "get_search_history"
	ActionGetSavedSearches     = "get_saved_searches"
)

// Inbound message types.
const (
	TypeAIAgentUpdate          = "ai_agent_update"
	TypeDocumentDownloadUpdate = "document_download_update"
	TypeSystemStatus           = "system_status"
	TypeConfigUpdated          = "config_updated"
	TypeLLMTestResults         = "llm_test_results"
	TypeLLMTestProgress        = "llm_test_progress"
	TypePipelineStage2Update   = "pipeline_stage2_update"
	TypeLocalFilesUpdate       = "local_files_update"
	TypeDocumentUpdatesChecked = "document_updates_checked"
	TypeDiscoveryStatus        = "discovery_status"
	TypeDiscoveryUpdate        = "discovery_update"
	TypePipelineStage1Update   = "pipeline_stage1_update"
	TypeLocalFilesStatus       = "local_files_status"
	TypeSearchStatus           = "search_status"
	TypeSearchResults          = "search_results"
	TypeAdvancedSearchResults  = "advanced_search_results"
	TypeSearchHistory          = "search_history"
	TypeSavedSearches          = "saved_searches"
	TypeError                  = "error"
)

// system_config request kinds.
const (
	ConfigRequestUpdate       = "update_config"
	ConfigRequestGetAPIKeys   = "get_api_keys"
	ConfigRequestSaveAPIKey   = "save_api_key"
	ConfigRequestDeleteAPIKey = "delete_api_key"
	ConfigRequestSetActiveKey = "set_active_api_key"
)

// Outbound payloads.

type AIAgentRequest struct {
	Query              string `json:"query" validate:"required"`
	CertificationLevel string `json:"certification_level" validate:"required"`
	MaxDocuments       int    `json:"max_documents" validate:"min=1,max=50"`
}

type DownloadDocumentRequest struct {
	DocumentID string          `json:"document_id" validate:"required"`
	Document   DocumentPayload `json:"document"`
}

type PipelineStage2Request struct {
	PDFFiles    []string               `json:"pdf_files" validate:"min=1,dive,required"`
	OutputPhase int                    `json:"output_phase" validate:"min=1,max=5"`
	Config      map[string]interface{} `json:"config"`
}

type APIKeyData struct {
	ID       string `json:"id,omitempty"`
	Provider string `json:"provider" validate:"required"`
	Name     string `json:"name"`
	Key      string `json:"key" validate:"required"`
}

type SystemConfigRequest struct {
	Request       string                 `json:"request" validate:"required,oneof=update_config get_api_keys save_api_key delete_api_key set_active_api_key"`
	DatabaseType  string                 `json:"database_type,omitempty"`
	OperationMode string                 `json:"operation_mode,omitempty"`
	APIKeys       map[string]string      `json:"api_keys,omitempty"`
	LLMConfig     map[string]interface{} `json:"llm_config,omitempty"`
	KeyData       *APIKeyData            `json:"key_data,omitempty"`
	KeyID         string                 `json:"key_id,omitempty"`
}

type TestLLMConnectionRequest struct {
	Provider  string   `json:"provider" validate:"required"`
	Questions []string `json:"questions,omitempty"`
}

type LocalFile struct {
	Name string `json:"name" validate:"required"`
	Size int64  `json:"size,omitempty"`
}

type ProcessLocalFilesRequest struct {
	Files []LocalFile `json:"files" validate:"min=1,dive"`
}

type DocumentDiscoveryRequest struct {
	Topic              string   `json:"topic" validate:"required"`
	CertificationLevel string   `json:"certification_level" validate:"required"`
	MaxDocuments       int      `json:"max_documents" validate:"min=1,max=50"`
	Sources            []string `json:"sources,omitempty" validate:"dive,hostname"`
	UseAIAgent         bool     `json:"use_ai_agent"`
}

type PipelineStage1Request struct {
	Topic  string                 `json:"topic" validate:"required"`
	Config map[string]interface{} `json:"config"`
}

type DocumentSearchRequest struct {
	Query              string `json:"query" validate:"required"`
	RelevanceThreshold int    `json:"relevance_threshold" validate:"min=0,max=100"`
	CertLevel          string `json:"cert_level" validate:"required"`
	DocType            string `json:"doc_type" validate:"required"`
	SoftwareType       string `json:"software_type" validate:"required"`
	UseAIAgent         bool   `json:"use_ai_agent"`
}

type DateRange struct {
	From string `json:"from,omitempty" validate:"omitempty,datetime=2006-01-02"`
	To   string `json:"to,omitempty" validate:"omitempty,datetime=2006-01-02"`
}

type AdvancedSearchRequest struct {
	Query     string              `json:"query" validate:"required"`
	Facets    map[string][]string `json:"facets,omitempty"`
	DateRange *DateRange          `json:"date_range,omitempty"`
	SortBy    string              `json:"sort_by" validate:"oneof=relevance date title"`
}

// Inbound payloads.

// DocumentPayload is a discovered document as it travels on the wire.
type DocumentPayload struct {
	ID               string   `json:"id"`
	Title            string   `json:"title"`
	URL              string   `json:"url,omitempty"`
	Source           string   `json:"source"`
	Type             string   `json:"type"`
	Size             string   `json:"size,omitempty"`
	Relevance        float64  `json:"relevance"`
	Summary          string   `json:"summary,omitempty"`
	DownloadStatus   string   `json:"downloadStatus,omitempty"`
	DownloadProgress *float64 `json:"downloadProgress,omitempty"`
	IsNew            bool     `json:"isNew,omitempty"`
}

type AgentStep struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Status   string  `json:"status"`
	Progress float64 `json:"progress"`
	Details  string  `json:"details,omitempty"`
}

type AIAgentUpdate struct {
	Steps           []AgentStep        `json:"steps"`
	OverallProgress float64            `json:"overallProgress"`
	CurrentStep     string             `json:"currentStep"`
	Results         *[]DocumentPayload `json:"results,omitempty"`
	Status          string             `json:"status,omitempty"`
	Error           string             `json:"error,omitempty"`
}

type DocumentDownloadUpdate struct {
	DocumentID string   `json:"document_id"`
	Status     string   `json:"status"`
	Progress   *float64 `json:"progress,omitempty"`
	Error      string   `json:"error,omitempty"`
}

type PipelineStage2Update struct {
	Stage             int     `json:"stage"`
	Status            string  `json:"status"`
	Progress          float64 `json:"progress"`
	CurrentStep       string  `json:"current_step"`
	SyntheticExamples int     `json:"synthetic_examples"`
	OutputPhase       int     `json:"output_phase"`
	ProcessedFiles    int     `json:"processed_files"`
	TotalFiles        int     `json:"total_files"`
}

type LocalFilesUpdate struct {
	FileName string   `json:"file_name"`
	Status   string   `json:"status"`
	Progress *float64 `json:"progress,omitempty"`
}

type ResourceUsage struct {
	Usage       float64 `json:"usage,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`
	Used        float64 `json:"used,omitempty"`
	Total       float64 `json:"total,omitempty"`
	Percentage  float64 `json:"percentage,omitempty"`
	Model       string  `json:"model,omitempty"`
}

type Resources struct {
	CPU  ResourceUsage `json:"cpu"`
	RAM  ResourceUsage `json:"ram"`
	GPU  ResourceUsage `json:"gpu"`
	VRAM ResourceUsage `json:"vram"`
}

type SystemStatus struct {
	Status struct {
		Status    string            `json:"status"`
		Resources Resources         `json:"resources"`
		Services  map[string]string `json:"services,omitempty"`
	} `json:"status"`
}

type APIKey struct {
	ID       string `json:"id"`
	Provider string `json:"provider"`
	Name     string `json:"name"`
	Masked   string `json:"masked"`
	Active   bool   `json:"active"`
}

type ConfigUpdated struct {
	Result struct {
		Status  string                 `json:"status"`
		Message string                 `json:"message,omitempty"`
		Config  map[string]interface{} `json:"config,omitempty"`
		APIKeys []APIKey               `json:"api_keys,omitempty"`
	} `json:"result"`
}

type LLMTestResult struct {
	Question  string `json:"question"`
	Response  string `json:"response"`
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

type LLMTestResults struct {
	Results []LLMTestResult `json:"results"`
}

type LLMTestProgress struct {
	CurrentIndex int `json:"current_index"`
}

type DocumentUpdatesChecked struct {
	Result map[string]interface{} `json:"result"`
}

// StatusNotice is the {status, message} announcement sent before discovery,
// search and local file processing start.
type StatusNotice struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type DiscoveryUpdate struct {
	Step      string             `json:"step"`
	Progress  float64            `json:"progress"`
	Message   string             `json:"message"`
	Status    string             `json:"status"`
	Documents *[]DocumentPayload `json:"documents,omitempty"`
	Count     int                `json:"count,omitempty"`
}

type PipelineStage1Update struct {
	Stage          int      `json:"stage"`
	Status         string   `json:"status"`
	Progress       float64  `json:"progress"`
	CurrentStep    string   `json:"current_step"`
	DocumentsFound int      `json:"documents_found"`
	DiscoveredPDFs []string `json:"discovered_pdfs"`
}

// SearchResult is a catalog hit. Its field names differ from DocumentPayload.
type SearchResult struct {
	ID                 string   `json:"id"`
	Title              string   `json:"title"`
	Source             string   `json:"source"`
	RelevanceScore     float64  `json:"relevanceScore"`
	DocumentType       string   `json:"documentType"`
	CertificationLevel []string `json:"certificationLevel"`
	Summary            string   `json:"summary"`
	LocalPath          string   `json:"localPath,omitempty"`
	PageReferences     []int    `json:"pageReferences,omitempty"`
	DateAdded          string   `json:"dateAdded,omitempty"`
	SoftwareType       string   `json:"softwareType,omitempty"`
}

type SearchResults struct {
	Results []SearchResult `json:"results"`
}

type AdvancedSearchResult struct {
	Query   string                    `json:"query"`
	Results []SearchResult            `json:"results"`
	Facets  map[string]map[string]int `json:"facets"`
	Total   int                       `json:"total"`
	SortBy  string                    `json:"sort_by"`
}

type AdvancedSearchResults struct {
	Result AdvancedSearchResult `json:"result"`
}

type SearchHistoryEntry struct {
	Query      string `json:"query"`
	Kind       string `json:"kind"`
	Results    int    `json:"results"`
	SearchedAt string `json:"searched_at"`
}

type SearchHistory struct {
	Result struct {
		Status  string               `json:"status"`
		History []SearchHistoryEntry `json:"history"`
	} `json:"result"`
}

type SavedSearch struct {
	ID      string            `json:"id"`
	Name    string            `json:"name"`
	Query   string            `json:"query"`
	Filters map[string]string `json:"filters,omitempty"`
}

type SavedSearches struct {
	Result struct {
		Status   string        `json:"status"`
		Searches []SavedSearch `json:"searches"`
	} `json:"result"`
}

type ErrorMessage struct {
	Message string `json:"message"`
}
