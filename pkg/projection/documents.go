// Package projection holds per-entity progress records and the reducers that
// merge keyed updates into them.
package projection

import "rag-pipeline-console/pkg/events"

type DownloadStatus string

const (
	DownloadPending     DownloadStatus = "pending"
	DownloadDownloading DownloadStatus = "downloading"
	DownloadCompleted   DownloadStatus = "completed"
	DownloadFailed      DownloadStatus = "failed"
)

func (s DownloadStatus) Valid() bool {
	switch s {
	case DownloadPending, DownloadDownloading, DownloadCompleted, DownloadFailed:
		return true
	}
	return false
}

type Document struct {
	ID               string         `json:"id"`
	Title            string         `json:"title"`
	URL              string         `json:"url,omitempty"`
	Source           string         `json:"source"`
	Type             string         `json:"type"`
	Size             string         `json:"size,omitempty"`
	Relevance        float64        `json:"relevance"`
	Summary          string         `json:"summary,omitempty"`
	DownloadStatus   DownloadStatus `json:"downloadStatus"`
	DownloadProgress *float64       `json:"downloadProgress,omitempty"`
	DownloadError    string         `json:"downloadError,omitempty"`
	IsNew            bool           `json:"isNew,omitempty"`
}

// DocumentUpdate is a partial update keyed by ID. Nil fields are left untouched.
type DocumentUpdate struct {
	ID       string
	Status   *DownloadStatus
	Progress *float64
	Error    *string
}

// ApplyDocumentUpdate returns a new collection with u merged into the document
// whose ID matches. Unknown IDs leave the collection unchanged; updates never
// create documents. Progress does not move backwards while a download stays
// in flight.
func ApplyDocumentUpdate(docs []Document, u DocumentUpdate) ([]Document, bool) {
	idx := indexOfDocument(docs, u.ID)
	if idx < 0 {
		return docs, false
	}

	out := CloneDocuments(docs)
	doc := out[idx]
	wasDownloading := doc.DownloadStatus == DownloadDownloading
	if u.Status != nil && u.Status.Valid() {
		doc.DownloadStatus = *u.Status
	}
	if u.Progress != nil {
		p := clampPercent(*u.Progress)
		regress := wasDownloading && doc.DownloadStatus == DownloadDownloading &&
			doc.DownloadProgress != nil && p < *doc.DownloadProgress
		if !regress {
			doc.DownloadProgress = &p
		}
	}
	if u.Error != nil {
		doc.DownloadError = *u.Error
	}
	out[idx] = doc
	return out, true
}

// ReplaceResults supersedes the whole collection with a fresh result set.
// Documents without a download status start as pending; relevance is clamped to [0,1].
func ReplaceResults(results []Document) []Document {
	out := make([]Document, 0, len(results))
	seen := make(map[string]struct{}, len(results))
	for _, d := range results {
		if d.ID == "" {
			continue
		}
		if _, dup := seen[d.ID]; dup {
			continue
		}
		seen[d.ID] = struct{}{}
		if !d.DownloadStatus.Valid() {
			d.DownloadStatus = DownloadPending
		}
		d.Relevance = clampUnit(d.Relevance)
		d.DownloadProgress = copyFloat(d.DownloadProgress)
		out = append(out, d)
	}
	return out
}

// FindDocument returns the document with the given ID.
func FindDocument(docs []Document, id string) (Document, bool) {
	idx := indexOfDocument(docs, id)
	if idx < 0 {
		return Document{}, false
	}
	return docs[idx], true
}

// CloneDocuments deep-copies the collection so callers can mutate freely.
func CloneDocuments(docs []Document) []Document {
	if docs == nil {
		return nil
	}
	out := make([]Document, len(docs))
	for i, d := range docs {
		d.DownloadProgress = copyFloat(d.DownloadProgress)
		out[i] = d
	}
	return out
}

// DocumentFromPayload converts a wire document.
func DocumentFromPayload(p events.DocumentPayload) Document {
	return Document{
		ID:               p.ID,
		Title:            p.Title,
		URL:              p.URL,
		Source:           p.Source,
		Type:             p.Type,
		Size:             p.Size,
		Relevance:        p.Relevance,
		Summary:          p.Summary,
		DownloadStatus:   DownloadStatus(p.DownloadStatus),
		DownloadProgress: copyFloat(p.DownloadProgress),
		IsNew:            p.IsNew,
	}
}

// DocumentFromSearchResult converts a catalog hit. Hits with a local path are
// already on disk and start completed.
func DocumentFromSearchResult(r events.SearchResult) Document {
	d := Document{
		ID:             r.ID,
		Title:          r.Title,
		Source:         r.Source,
		Type:           r.DocumentType,
		Relevance:      r.RelevanceScore,
		Summary:        r.Summary,
		DownloadStatus: DownloadPending,
	}
	if r.LocalPath != "" {
		done := 100.0
		d.URL = r.LocalPath
		d.DownloadStatus = DownloadCompleted
		d.DownloadProgress = &done
	}
	return d
}

// ToPayload converts back to the wire shape.
func (d Document) ToPayload() events.DocumentPayload {
	return events.DocumentPayload{
		ID:               d.ID,
		Title:            d.Title,
		URL:              d.URL,
		Source:           d.Source,
		Type:             d.Type,
		Size:             d.Size,
		Relevance:        d.Relevance,
		Summary:          d.Summary,
		DownloadStatus:   string(d.DownloadStatus),
		DownloadProgress: copyFloat(d.DownloadProgress),
		IsNew:            d.IsNew,
	}
}

func indexOfDocument(docs []Document, id string) int {
	for i := range docs {
		if docs[i].ID == id {
			return i
		}
	}
	return -1
}

func copyFloat(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func clampPercent(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// RestoreDocument puts d back in place of the entry with the same ID.
func RestoreDocument(docs []Document, d Document) []Document {
	idx := indexOfDocument(docs, d.ID)
	if idx < 0 {
		return docs
	}
	out := CloneDocuments(docs)
	d.DownloadProgress = copyFloat(d.DownloadProgress)
	out[idx] = d
	return out
}
