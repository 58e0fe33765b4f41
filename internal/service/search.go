package service

import (
	"context"
	"errors"
	"strings"

	"rag-pipeline-console/pkg/events"
	"rag-pipeline-console/pkg/projection"
)

var ErrSearchRunning = errors.New("search already running")

type SearchStatus string

const (
	SearchIdle      SearchStatus = "idle"
	SearchRunning   SearchStatus = "searching"
	SearchCompleted SearchStatus = "completed"
	SearchFailed    SearchStatus = "failed"
)

// SearchState is the last catalog search and its hits. Facets and SortBy are
// only set by an advanced search.
type SearchState struct {
	Status   SearchStatus
	Message  string
	Query    string
	Advanced bool
	Results  []events.SearchResult
	Total    int
	Facets   map[string]map[string]int
	SortBy   string
}

const (
	searchErrorPrefix   = "Search error"
	advancedErrorPrefix = "Advanced search error"
)

func isSearchError(message string) bool {
	return strings.HasPrefix(message, searchErrorPrefix) || strings.HasPrefix(message, advancedErrorPrefix)
}

// OnSearchResults sets a hook that receives every result set as documents.
// It runs on the dispatching goroutine after the snapshot is updated.
func (s *SystemService) OnSearchResults(fn func([]projection.Document)) {
	s.mu.Lock()
	s.onResults = fn
	s.mu.Unlock()
}

func (s *SystemService) searchIdle() error {
	s.mu.Lock()
	running := s.snapshot.Search.Status == SearchRunning
	s.mu.Unlock()
	if running {
		return ErrSearchRunning
	}
	return nil
}

func (s *SystemService) markSearching(query string, advanced bool) {
	s.update(func(snap *SystemSnapshot) {
		snap.Search = SearchState{Status: SearchRunning, Query: query, Advanced: advanced}
	})
}

// Search runs a catalog search. Results arrive as a search_results frame.
func (s *SystemService) Search(ctx context.Context, req events.DocumentSearchRequest) error {
	if err := s.searchIdle(); err != nil {
		return err
	}
	if err := s.commands.SearchDocuments(ctx, req); err != nil {
		return err
	}
	s.markSearching(req.Query, false)
	return nil
}

// AdvancedSearch runs a faceted search. Results arrive as an
// advanced_search_results frame.
func (s *SystemService) AdvancedSearch(ctx context.Context, req events.AdvancedSearchRequest) error {
	if err := s.searchIdle(); err != nil {
		return err
	}
	if err := s.commands.AdvancedSearch(ctx, req); err != nil {
		return err
	}
	s.markSearching(req.Query, true)
	return nil
}

func (s *SystemService) RequestSearchHistory(ctx context.Context) error {
	return s.commands.GetSearchHistory(ctx)
}

func (s *SystemService) RequestSavedSearches(ctx context.Context) error {
	return s.commands.GetSavedSearches(ctx)
}

func (s *SystemService) handleSearchStatus(msg events.Message) {
	var u events.StatusNotice
	if !s.decode(msg, &u) {
		return
	}
	s.update(func(snap *SystemSnapshot) { snap.Search.Message = u.Message })
}

func (s *SystemService) handleNotice(msg events.Message) {
	var u events.StatusNotice
	if !s.decode(msg, &u) {
		return
	}
	s.update(func(snap *SystemSnapshot) { snap.Notice = u.Message })
}

func (s *SystemService) handleSearchResults(msg events.Message) {
	var u events.SearchResults
	if !s.decode(msg, &u) {
		return
	}
	s.update(func(snap *SystemSnapshot) {
		snap.Search.Status = SearchCompleted
		snap.Search.Results = u.Results
		snap.Search.Total = len(u.Results)
		snap.Search.Message = ""
	})
	s.deliverResults(u.Results)
}

func (s *SystemService) handleAdvancedSearchResults(msg events.Message) {
	var u events.AdvancedSearchResults
	if !s.decode(msg, &u) {
		return
	}
	s.update(func(snap *SystemSnapshot) {
		snap.Search.Status = SearchCompleted
		snap.Search.Advanced = true
		if u.Result.Query != "" {
			snap.Search.Query = u.Result.Query
		}
		snap.Search.Results = u.Result.Results
		snap.Search.Total = u.Result.Total
		snap.Search.Facets = u.Result.Facets
		snap.Search.SortBy = u.Result.SortBy
		snap.Search.Message = ""
	})
	s.deliverResults(u.Result.Results)
}

func (s *SystemService) deliverResults(results []events.SearchResult) {
	s.mu.Lock()
	hook := s.onResults
	s.mu.Unlock()
	if hook == nil {
		return
	}
	docs := make([]projection.Document, 0, len(results))
	for _, r := range results {
		docs = append(docs, projection.DocumentFromSearchResult(r))
	}
	hook(docs)
}

func (s *SystemService) handleSearchHistory(msg events.Message) {
	var u events.SearchHistory
	if !s.decode(msg, &u) {
		return
	}
	s.update(func(snap *SystemSnapshot) { snap.SearchHistory = u.Result.History })
}

func (s *SystemService) handleSavedSearches(msg events.Message) {
	var u events.SavedSearches
	if !s.decode(msg, &u) {
		return
	}
	s.update(func(snap *SystemSnapshot) { snap.SavedSearches = u.Result.Searches })
}
