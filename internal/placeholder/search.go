package placeholder

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"rag-pipeline-console/pkg/events"
)

const (
	defaultThreshold = 70
	maxHistory       = 20
)

// catalog is the stored document index searches run against.
var catalog = []events.SearchResult{
	{
		ID:                 "1",
		Title:              "BGP Configuration and Troubleshooting Guide - ASR 1000 Series",
		Source:             "cisco.com",
		RelevanceScore:     0.97,
		DocumentType:       "troubleshooting",
		CertificationLevel: []string{"CCNP", "CCIE"},
		Summary:            "Comprehensive guide covering BGP implementation on ASR 1000 series routers, including configuration examples, troubleshooting common issues, and best practices for enterprise deployments.",
		LocalPath:          "/documents/bgp_asr1000_guide.pdf",
		PageReferences:     []int{23, 45, 67, 89},
		DateAdded:          "2023-11-15",
		SoftwareType:       "Cisco IOS",
	},
	{
		ID:                 "2",
		Title:              "OSPF Design and Implementation Guide",
		Source:             "ciscopress.com",
		RelevanceScore:     0.85,
		DocumentType:       "configuration",
		CertificationLevel: []string{"CCNA", "CCNP"},
		Summary:            "Detailed guide on OSPF protocol design considerations, implementation strategies, and optimization techniques for various network topologies.",
		LocalPath:          "/documents/ospf_design_guide.pdf",
		PageReferences:     []int{12, 34, 56},
		DateAdded:          "2023-10-22",
		SoftwareType:       "Cisco IOS",
	},
	{
		ID:                 "3",
		Title:              "Advanced MPLS Concepts and Configurations",
		Source:             "ine.com",
		RelevanceScore:     0.78,
		DocumentType:       "study",
		CertificationLevel: []string{"CCIE"},
		Summary:            "In-depth exploration of MPLS technologies including MPLS VPN, Traffic Engineering, and QoS implementation strategies for service provider networks.",
		LocalPath:          "/documents/advanced_mpls.pdf",
		PageReferences:     []int{45, 67, 89, 120},
		DateAdded:          "2023-09-05",
		SoftwareType:       "Cisco IOS XR",
	},
	{
		ID:                 "4",
		Title:              "Cisco ASA Firewall Configuration Guide",
		Source:             "cisco.com",
		RelevanceScore:     0.92,
		DocumentType:       "configuration",
		CertificationLevel: []string{"CCNA Security", "CCNP Security"},
		Summary:            "Complete guide for ASA firewall configuration including security policies, VPN setup, and advanced threat protection features.",
		LocalPath:          "/documents/asa_firewall_guide.pdf",
		PageReferences:     []int{15, 28, 42, 67},
		DateAdded:          "2023-12-01",
		SoftwareType:       "Cisco ASA",
	},
}

var savedSearches = []events.SavedSearch{
	{ID: "saved_1", Name: "CCNP routing", Query: "BGP OSPF", Filters: map[string]string{"cert_level": "CCNP"}},
	{ID: "saved_2", Name: "Firewall configuration", Query: "ASA firewall", Filters: map[string]string{"doc_type": "configuration"}},
}

func cloneResult(r events.SearchResult) events.SearchResult {
	r.CertificationLevel = append([]string(nil), r.CertificationLevel...)
	r.PageReferences = append([]int(nil), r.PageReferences...)
	return r
}

func hasCertification(r events.SearchResult, level string) bool {
	want := strings.ToUpper(level)
	for _, c := range r.CertificationLevel {
		if strings.ToUpper(c) == want {
			return true
		}
	}
	return false
}

func matchesFilters(r events.SearchResult, req events.DocumentSearchRequest) bool {
	if r.RelevanceScore*100 < float64(req.RelevanceThreshold) {
		return false
	}
	if req.CertLevel != "all" && !hasCertification(r, req.CertLevel) {
		return false
	}
	if req.DocType != "all" && r.DocumentType != req.DocType {
		return false
	}
	if req.SoftwareType != "all" && !strings.Contains(strings.ToLower(r.SoftwareType), strings.ToLower(req.SoftwareType)) {
		return false
	}
	return true
}

func countMatches(words, text []string) int {
	n := 0
	for _, w := range words {
		for _, t := range text {
			if strings.Contains(t, w) {
				n++
				break
			}
		}
	}
	return n
}

// score boosts the stored relevance by how many query words the title and
// summary contain. It also reports whether any word matched at all.
func score(r events.SearchResult, query string) (float64, bool) {
	words := strings.Fields(strings.ToLower(query))
	if len(words) == 0 {
		return r.RelevanceScore, false
	}
	title := countMatches(words, strings.Fields(strings.ToLower(r.Title)))
	summary := countMatches(words, strings.Fields(strings.ToLower(r.Summary)))
	n := float64(len(words))
	boosted := r.RelevanceScore + float64(title)/n*0.3 + float64(summary)/n*0.1
	return math.Min(boosted, 1), title+summary > 0
}

func sortByRelevance(results []events.SearchResult) {
	sort.SliceStable(results, func(i, j int) bool { return results[i].RelevanceScore > results[j].RelevanceScore })
}

// SearchCatalog filters the catalog and ranks what is left. Filters set to
// "all" match everything; the software type matches as a substring.
func SearchCatalog(req events.DocumentSearchRequest) []events.SearchResult {
	if req.RelevanceThreshold == 0 {
		req.RelevanceThreshold = defaultThreshold
	}
	for _, f := range []*string{&req.CertLevel, &req.DocType, &req.SoftwareType} {
		if *f == "" {
			*f = "all"
		}
	}

	out := []events.SearchResult{}
	for _, r := range catalog {
		if !matchesFilters(r, req) {
			continue
		}
		r = cloneResult(r)
		r.RelevanceScore, _ = score(r, req.Query)
		out = append(out, r)
	}
	sortByRelevance(out)
	return out
}

func facetValues(r events.SearchResult, facet string) []string {
	switch facet {
	case "documentType":
		return []string{r.DocumentType}
	case "certificationLevel":
		return r.CertificationLevel
	case "source":
		return []string{r.Source}
	case "softwareType":
		return []string{r.SoftwareType}
	}
	return nil
}

var facetNames = []string{"documentType", "certificationLevel", "source", "softwareType"}

func matchesFacets(r events.SearchResult, facets map[string][]string) bool {
	for facet, wanted := range facets {
		if len(wanted) == 0 {
			continue
		}
		ok := false
		for _, have := range facetValues(r, facet) {
			for _, w := range wanted {
				if strings.EqualFold(have, w) {
					ok = true
				}
			}
		}
		if !ok {
			return false
		}
	}
	return true
}

func inDateRange(r events.SearchResult, dr *events.DateRange) bool {
	if dr == nil {
		return true
	}
	// dates are ISO formatted, so they compare as strings
	if dr.From != "" && r.DateAdded < dr.From {
		return false
	}
	if dr.To != "" && r.DateAdded > dr.To {
		return false
	}
	return true
}

// FacetedSearch keeps catalog entries that mention a query word, fall in the
// date range and match every requested facet. Facet counts cover all query
// matches so the caller can see what narrowing would leave.
func FacetedSearch(req events.AdvancedSearchRequest) events.AdvancedSearchResult {
	sortBy := req.SortBy
	if sortBy == "" {
		sortBy = "relevance"
	}
	counts := make(map[string]map[string]int, len(facetNames))
	for _, f := range facetNames {
		counts[f] = map[string]int{}
	}

	results := []events.SearchResult{}
	for _, r := range catalog {
		scored, matched := score(r, req.Query)
		if !matched || !inDateRange(r, req.DateRange) {
			continue
		}
		for _, f := range facetNames {
			for _, v := range facetValues(r, f) {
				counts[f][v]++
			}
		}
		if !matchesFacets(r, req.Facets) {
			continue
		}
		r = cloneResult(r)
		r.RelevanceScore = scored
		results = append(results, r)
	}

	switch sortBy {
	case "date":
		sort.SliceStable(results, func(i, j int) bool { return results[i].DateAdded > results[j].DateAdded })
	case "title":
		sort.SliceStable(results, func(i, j int) bool {
			return strings.ToLower(results[i].Title) < strings.ToLower(results[j].Title)
		})
	default:
		sortByRelevance(results)
	}

	return events.AdvancedSearchResult{
		Query:   req.Query,
		Results: results,
		Facets:  counts,
		Total:   len(results),
		SortBy:  sortBy,
	}
}

func (s *Service) remember(query, kind string, results int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry := events.SearchHistoryEntry{
		Query:      query,
		Kind:       kind,
		Results:    results,
		SearchedAt: time.Now().UTC().Format(time.RFC3339),
	}
	s.history = append([]events.SearchHistoryEntry{entry}, s.history...)
	if len(s.history) > maxHistory {
		s.history = s.history[:maxHistory]
	}
}

func (s *Service) runSearch(clientID string, req events.DocumentSearchRequest) {
	if strings.TrimSpace(req.Query) == "" {
		s.sendError(clientID, "Search error: query is required")
		return
	}
	s.emit(clientID, events.TypeSearchStatus, events.StatusNotice{
		Status:  "starting",
		Message: fmt.Sprintf("Searching for: %s", req.Query),
	})
	if !s.sleep(s.answerDelay) {
		return
	}
	results := SearchCatalog(req)
	s.remember(req.Query, "basic", len(results))
	s.emit(clientID, events.TypeSearchResults, events.SearchResults{Results: results})
}

func (s *Service) runAdvancedSearch(clientID string, req events.AdvancedSearchRequest) {
	if strings.TrimSpace(req.Query) == "" {
		s.sendError(clientID, "Advanced search error: query is required")
		return
	}
	result := FacetedSearch(req)
	s.remember(req.Query, "advanced", result.Total)
	s.emit(clientID, events.TypeAdvancedSearchResults, events.AdvancedSearchResults{Result: result})
}

func (s *Service) searchHistory() events.SearchHistory {
	s.mu.Lock()
	defer s.mu.Unlock()
	var h events.SearchHistory
	h.Result.Status = "success"
	h.Result.History = append([]events.SearchHistoryEntry{}, s.history...)
	return h
}

func (s *Service) savedSearches() events.SavedSearches {
	var out events.SavedSearches
	out.Result.Status = "success"
	out.Result.Searches = append([]events.SavedSearch(nil), savedSearches...)
	return out
}
