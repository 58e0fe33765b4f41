package pipeline

import (
	"fmt"
	"hash/fnv"
	"sort"
	"strings"

	"rag-pipeline-console/pkg/projection"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const maxSampleResults = 12

// SearchQueries expands a topic into the agent's search queries.
func SearchQueries(topic, certLevel string) []string {
	queries := []string{
		fmt.Sprintf("%s cisco configuration guide", topic),
		fmt.Sprintf("%s cisco troubleshooting best practices", topic),
		fmt.Sprintf("%s cisco implementation examples", topic),
		fmt.Sprintf("%s cisco security considerations", topic),
		fmt.Sprintf("%s cisco performance optimization", topic),
	}
	if certLevel != "" && certLevel != "all" {
		queries = append(queries,
			fmt.Sprintf("%s %s study guide", topic, certLevel),
			fmt.Sprintf("%s %s lab exercises", topic, certLevel),
			fmt.Sprintf("%s %s exam preparation", topic, certLevel),
		)
	}
	if len(queries) > 8 {
		queries = queries[:8]
	}
	return queries
}

// SampleResults produces a deterministic result set for a discovery request.
// Both the simulated source and the placeholder service use it, so a
// simulated run and a placeholder run agree on what gets discovered.
func SampleResults(topic, certLevel string, maxDocuments int) []projection.Document {
	if maxDocuments <= 0 {
		maxDocuments = 1
	}

	var all []projection.Document
	seen := make(map[string]struct{})
	for _, q := range SearchQueries(topic, certLevel) {
		for _, d := range sampleForQuery(q) {
			_, dupURL := seen[d.URL]
			_, dupID := seen[d.ID]
			if dupURL || dupID {
				continue
			}
			seen[d.URL] = struct{}{}
			seen[d.ID] = struct{}{}
			all = append(all, d)
		}
	}

	sort.SliceStable(all, func(i, j int) bool {
		return all[i].Relevance > all[j].Relevance
	})

	limit := maxDocuments * 2
	if limit > maxSampleResults {
		limit = maxSampleResults
	}
	if limit > len(all) {
		limit = len(all)
	}
	return projection.ReplaceResults(all[:limit])
}

func sampleForQuery(q string) []projection.Document {
	h := hashString(q)
	slug := strings.ToLower(strings.ReplaceAll(q, " ", "-"))
	title := cases.Title(language.English).String(q)

	refine := func(v float64) float64 {
		if v < 0.8 {
			return 0.8
		}
		return v
	}

	return []projection.Document{
		{
			ID:             fmt.Sprintf("ai_%d", h%1000),
			Title:          title + " - Comprehensive Guide",
			URL:            fmt.Sprintf("https://cisco.com/%s-guide.pdf", slug),
			Source:         "cisco.com",
			Type:           "PDF",
			Size:           "2.5 MB",
			Relevance:      refine(0.85 + float64(h%15)/100),
			Summary:        fmt.Sprintf("Detailed guide covering %s implementation and best practices.", q),
			DownloadStatus: projection.DownloadPending,
			IsNew:          true,
		},
		{
			ID:             fmt.Sprintf("ai_%d", hashString(q+"alt")%1000),
			Title:          title + " - Troubleshooting Manual",
			URL:            fmt.Sprintf("https://ciscopress.com/%s-troubleshooting.pdf", slug),
			Source:         "ciscopress.com",
			Type:           "PDF",
			Size:           "1.8 MB",
			Relevance:      refine(0.78 + float64(h%20)/100),
			Summary:        fmt.Sprintf("Common issues and solutions for %s configurations.", q),
			DownloadStatus: projection.DownloadPending,
			IsNew:          true,
		},
	}
}

func hashString(s string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s))
	return h.Sum32()
}
