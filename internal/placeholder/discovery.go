package placeholder

import (
	"fmt"
	"hash/fnv"
	"sort"
	"strings"

	"rag-pipeline-console/pkg/events"
	"rag-pipeline-console/pkg/projection"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// TrustedSources are searched when a discovery names no sources.
var TrustedSources = []string{
	"cisco.com", "ciscopress.com", "ine.com", "cbtnuggets.com",
	"udemy.com", "pluralsight.com", "google.com", "google.co.za", "youtube.com",
}

const maxDiscoveryQueries = 8

type libraryEntry struct {
	topic   string
	slug    string
	title   string
	summary string
	size    string
}

// library is what each source holds for a known topic.
var library = []libraryEntry{
	{"bgp", "bgp-configuration-guide", "BGP Configuration Guide", "Comprehensive guide for BGP configuration and troubleshooting on Cisco devices.", "2.4 MB"},
	{"bgp", "bgp-security-best-practices", "BGP Security Best Practices", "Advanced BGP security configurations and threat mitigation strategies.", "1.8 MB"},
	{"ospf", "ospf-implementation-guide", "OSPF Implementation Guide", "Detailed OSPF implementation and design considerations for enterprise networks.", "3.1 MB"},
	{"ospf", "ospf-troubleshooting", "OSPF Troubleshooting Handbook", "Common OSPF issues and systematic troubleshooting approaches.", "2.7 MB"},
	{"mpls", "mpls-vpn-configuration", "MPLS VPN Configuration", "Advanced MPLS VPN configuration and troubleshooting techniques.", "4.2 MB"},
}

// stage1Steps are the collection pipeline's steps in order.
var stage1Steps = []string{
	"Initializing document discovery...",
	"Searching for Cisco documentation...",
	"Validating PDF links...",
	"Downloading documents...",
	"Organizing files...",
	"Discovery completed",
}

var stage1PDFs = []string{
	"BGP_Configuration_Guide.pdf",
	"OSPF_Implementation_Best_Practices.pdf",
	"ASR_1000_Troubleshooting_Guide.pdf",
	"CCNP_Enterprise_Core_Study_Guide.pdf",
}

func discoveryQueries(topic, certLevel string) []string {
	queries := []string{
		topic + " cisco configuration guide",
		topic + " cisco troubleshooting",
		topic + " cisco best practices",
		topic + " cisco implementation examples",
		topic + " cisco security configuration",
	}
	if certLevel != "" && certLevel != "all" {
		queries = append(queries,
			fmt.Sprintf("%s %s study guide", topic, certLevel),
			fmt.Sprintf("%s %s configuration", topic, certLevel),
			fmt.Sprintf("%s %s troubleshooting", topic, certLevel),
		)
	}
	if len(queries) > maxDiscoveryQueries {
		queries = queries[:maxDiscoveryQueries]
	}
	return queries
}

func fnvPercent(s string, mod uint32) float64 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s))
	return float64(h.Sum32()%mod) / 100
}

func documentID(url string) string {
	return uuid.NewMD5(uuid.NameSpaceURL, []byte(url)).String()[:8]
}

// siteDocuments is what one site returns for one query.
func siteDocuments(query, site string) []events.DocumentPayload {
	lower := strings.ToLower(query)
	var docs []events.DocumentPayload
	for _, e := range library {
		if !strings.Contains(lower, e.topic) {
			continue
		}
		url := fmt.Sprintf("https://%s/%s.pdf", site, e.slug)
		title := fmt.Sprintf("%s - %s", e.title, site)
		docs = append(docs, events.DocumentPayload{
			ID:             documentID(url),
			Title:          title,
			URL:            url,
			Source:         site,
			Type:           "PDF",
			Size:           e.size,
			Summary:        e.summary,
			Relevance:      0.85 + fnvPercent(title, 15),
			DownloadStatus: string(projection.DownloadPending),
		})
	}
	if len(docs) > 0 {
		return docs
	}

	url := fmt.Sprintf("https://%s/%s-guide.pdf", site, strings.ReplaceAll(lower, " ", "-"))
	return []events.DocumentPayload{{
		ID:             documentID(url),
		Title:          fmt.Sprintf("%s Configuration Guide - %s", cases.Title(language.English).String(query), site),
		URL:            url,
		Source:         site,
		Type:           "PDF",
		Size:           fmt.Sprintf("%.1f MB", 2.0+fnvPercent(query, 30)*10),
		Summary:        fmt.Sprintf("Comprehensive documentation and configuration examples for %s.", query),
		Relevance:      0.75 + fnvPercent(query, 20),
		DownloadStatus: string(projection.DownloadPending),
	}}
}

// organize drops repeated urls, ranks by relevance and keeps the best limit.
func organize(docs []events.DocumentPayload, limit int) []events.DocumentPayload {
	seen := make(map[string]struct{}, len(docs))
	out := make([]events.DocumentPayload, 0, len(docs))
	for _, d := range docs {
		if _, dup := seen[d.URL]; dup {
			continue
		}
		seen[d.URL] = struct{}{}
		out = append(out, d)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Relevance > out[j].Relevance })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (s *Service) runDiscovery(clientID string, req events.DocumentDiscoveryRequest) {
	if strings.TrimSpace(req.Topic) == "" {
		s.sendError(clientID, "Discovery error: topic is required")
		return
	}
	sources := req.Sources
	if len(sources) == 0 {
		sources = TrustedSources
	}
	step := func(name string, progress float64, message string) bool {
		s.emit(clientID, events.TypeDiscoveryUpdate, events.DiscoveryUpdate{
			Step:     name,
			Progress: progress,
			Message:  message,
			Status:   "running",
		})
		return s.sleep(s.cadence.DiscoveryStep)
	}

	s.emit(clientID, events.TypeDiscoveryStatus, events.StatusNotice{Status: "starting", Message: "Starting document discovery..."})
	if !step("initialize", 0, "Initializing document discovery...") {
		return
	}
	if !step("generate_queries", 20, "Generating search queries...") {
		return
	}
	queries := discoveryQueries(req.Topic, req.CertificationLevel)
	if !step("search_sources", 40, "Searching trusted sources...") {
		return
	}

	var found []events.DocumentPayload
	for i, q := range queries {
		for _, site := range sources {
			found = append(found, siteDocuments(q, site)...)
		}
		progress := 40 + float64(i+1)/float64(len(queries))*30
		msg := fmt.Sprintf("Searched %d/%d queries - Found %d documents", i+1, len(queries), len(found))
		if !step("search_sources", progress, msg) {
			return
		}
	}
	if !step("validate", 70, "Validating documents...") {
		return
	}
	if !step("download", 90, "Organizing documents...") {
		return
	}

	docs := organize(found, req.MaxDocuments)
	s.emit(clientID, events.TypeDiscoveryUpdate, events.DiscoveryUpdate{
		Step:      "completed",
		Progress:  100,
		Message:   fmt.Sprintf("Discovery completed - %d documents found", len(docs)),
		Status:    "completed",
		Documents: &docs,
		Count:     len(docs),
	})
}

func (s *Service) runStage1(clientID string, req events.PipelineStage1Request) {
	if strings.TrimSpace(req.Topic) == "" {
		s.sendError(clientID, "Pipeline Stage 1 error: topic is required")
		return
	}
	last := len(stage1Steps) - 1
	for i, label := range stage1Steps {
		if !s.sleep(s.cadence.DiscoveryStep) {
			return
		}
		u := events.PipelineStage1Update{
			Stage:          1,
			Status:         "running",
			Progress:       float64(i+1) / float64(len(stage1Steps)) * 100,
			CurrentStep:    label,
			DiscoveredPDFs: []string{},
		}
		if i == last {
			u.Status = "completed"
			u.DocumentsFound = len(stage1PDFs)
			u.DiscoveredPDFs = append([]string(nil), stage1PDFs...)
		}
		s.emit(clientID, events.TypePipelineStage1Update, u)
	}
}
