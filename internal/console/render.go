// Package console renders pipeline and system state for a terminal and runs
// the interactive shell that drives the state machine.
package console

import (
	"fmt"
	"sort"
	"strings"

	"rag-pipeline-console/internal/service"
	"rag-pipeline-console/pkg/pipeline"
	"rag-pipeline-console/pkg/projection"

	"github.com/charmbracelet/lipgloss"
)

const barWidth = 20

type styles struct {
	title      lipgloss.Style
	running    lipgloss.Style
	done       lipgloss.Style
	failed     lipgloss.Style
	muted      lipgloss.Style
	label      lipgloss.Style
	barBracket lipgloss.Style
	barFill    lipgloss.Style
	barEmpty   lipgloss.Style
}

func newStyles() styles {
	return styles{
		title:      lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")),
		running:    lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		done:       lipgloss.NewStyle().Foreground(lipgloss.Color("78")),
		failed:     lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("203")),
		muted:      lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		label:      lipgloss.NewStyle().Foreground(lipgloss.Color("252")).Width(26),
		barBracket: lipgloss.NewStyle().Foreground(lipgloss.Color("244")),
		barFill:    lipgloss.NewStyle().Foreground(lipgloss.Color("159")),
		barEmpty:   lipgloss.NewStyle().Foreground(lipgloss.Color("238")),
	}
}

// Renderer turns snapshots into styled text. lipgloss drops the colors when
// the output is not a terminal.
type Renderer struct {
	styles styles
}

func NewRenderer() *Renderer {
	return &Renderer{styles: newStyles()}
}

func (r *Renderer) title(s string) string   { return r.styles.title.Render(s) }
func (r *Renderer) running(s string) string { return r.styles.running.Render(s) }
func (r *Renderer) done(s string) string    { return r.styles.done.Render(s) }
func (r *Renderer) failed(s string) string  { return r.styles.failed.Render(s) }
func (r *Renderer) muted(s string) string   { return r.styles.muted.Render(s) }

func (r *Renderer) status(s pipeline.Status) string {
	label := fmt.Sprintf("%-9s", s)
	switch s {
	case pipeline.StatusRunning:
		return r.running(label)
	case pipeline.StatusCompleted:
		return r.done(label)
	case pipeline.StatusError:
		return r.failed(label)
	default:
		return r.muted(label)
	}
}

func barFilled(p float64) int {
	filled := int(p / 100 * barWidth)
	if filled > barWidth {
		filled = barWidth
	}
	if filled < 0 {
		filled = 0
	}
	return filled
}

func (r *Renderer) bar(p float64) string {
	filled := barFilled(p)
	return lipgloss.JoinHorizontal(
		lipgloss.Top,
		r.styles.barBracket.Render("["),
		r.styles.barFill.Render(strings.Repeat("#", filled)),
		r.styles.barEmpty.Render(strings.Repeat(".", barWidth-filled)),
		r.styles.barBracket.Render("]"),
	)
}

func (r *Renderer) stageLine(name string, st pipeline.Stage, extra string) string {
	line := fmt.Sprintf("  %s %s %s %5.1f%%  %s", r.styles.label.Render(name), r.status(st.Status), r.bar(st.Progress), st.Progress, st.CurrentStep)
	if extra != "" {
		line += r.muted("  " + extra)
	}
	if st.Error != "" {
		line += "\n    " + r.failed("error: "+st.Error)
	}
	return line
}

// Pipeline renders the full stage tree.
func (r *Renderer) Pipeline(s pipeline.Snapshot) string {
	var b strings.Builder
	st := s.Status

	fmt.Fprintln(&b, r.title(fmt.Sprintf("Pipeline (v%d)", s.Version)))
	fmt.Fprintln(&b, r.stageLine("Document discovery", st.Discovery.Stage,
		fmt.Sprintf("%d found", st.Discovery.DocumentsFound)))
	fmt.Fprintln(&b, r.stageLine("Dataset factory", st.Factory.Stage,
		fmt.Sprintf("phase %d, %d/%d files, %d examples",
			st.Factory.OutputPhase, st.Factory.ProcessedFiles, st.Factory.TotalFiles, st.Factory.SyntheticExamples)))
	for i, ph := range st.Enhancements {
		extra := ""
		if ph.Substep > 0 {
			extra = fmt.Sprintf("substep %d", ph.Substep)
		}
		fmt.Fprintln(&b, r.stageLine(fmt.Sprintf("%d. %s", i+1, ph.Name), ph.Stage, extra))
	}
	if s.Sequence {
		fmt.Fprintln(&b, r.running("  enhancement sequence in progress"))
	}
	return strings.TrimRight(b.String(), "\n")
}

// Documents renders the discovered documents with their selection and
// download state.
func (r *Renderer) Documents(s pipeline.Snapshot) string {
	if len(s.Documents) == 0 {
		return r.muted("No documents discovered yet.")
	}
	selected := make(map[string]bool, len(s.Selected))
	for _, id := range s.Selected {
		selected[id] = true
	}

	var b strings.Builder
	fmt.Fprintln(&b, r.title(fmt.Sprintf("Documents (%d, %d selected)", len(s.Documents), len(s.Selected))))
	for _, d := range s.Documents {
		mark := " "
		if selected[d.ID] {
			mark = "*"
		}
		fmt.Fprintf(&b, "  %s %-10s %3.0f%%  %-14s %s\n", mark, d.ID, d.Relevance*100, r.download(d), d.Title)
		if d.DownloadError != "" {
			fmt.Fprintf(&b, "      %s\n", r.failed(d.DownloadError))
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func (r *Renderer) download(d projection.Document) string {
	label := string(d.DownloadStatus)
	if d.DownloadStatus == projection.DownloadDownloading && d.DownloadProgress != nil {
		label = fmt.Sprintf("%s %.0f%%", label, *d.DownloadProgress)
	}
	label = fmt.Sprintf("%-14s", label)
	switch d.DownloadStatus {
	case projection.DownloadCompleted:
		return r.done(label)
	case projection.DownloadFailed:
		return r.failed(label)
	case projection.DownloadDownloading:
		return r.running(label)
	default:
		return r.muted(label)
	}
}

// Uploads renders the upload queue.
func (r *Renderer) Uploads(s pipeline.Snapshot) string {
	if len(s.Uploads) == 0 {
		return r.muted("Upload queue is empty.")
	}
	var b strings.Builder
	fmt.Fprintln(&b, r.title(fmt.Sprintf("Uploads (%d)", len(s.Uploads))))
	for _, f := range s.Uploads {
		status := fmt.Sprintf("%-10s", f.Status)
		switch f.Status {
		case projection.UploadCompleted:
			status = r.done(status)
		case projection.UploadProcessing:
			status = r.running(status)
		}
		fmt.Fprintf(&b, "  %s %s %5.1f%%  %s\n", status, r.bar(f.Progress), f.Progress, f.Name)
	}
	return strings.TrimRight(b.String(), "\n")
}

// System renders what is known about the remote service.
func (r *Renderer) System(s service.SystemSnapshot) string {
	var b strings.Builder
	status := s.Status
	if status == "" {
		status = "unknown"
	}
	fmt.Fprintln(&b, r.title("System")+" "+status)

	res := s.Resources
	fmt.Fprintf(&b, "  CPU  %5.1f%%  %.0f°C\n", res.CPU.Usage, res.CPU.Temperature)
	fmt.Fprintf(&b, "  RAM  %5.1f%%  %.1f/%.1f GB\n", res.RAM.Percentage, res.RAM.Used, res.RAM.Total)
	fmt.Fprintf(&b, "  GPU  %5.1f%%  %.0f°C  %s\n", res.GPU.Usage, res.GPU.Temperature, res.GPU.Model)
	fmt.Fprintf(&b, "  VRAM %5.1f%%  %.1f/%.1f GB\n", res.VRAM.Percentage, res.VRAM.Used, res.VRAM.Total)

	if len(s.Services) > 0 {
		names := make([]string, 0, len(s.Services))
		for name := range s.Services {
			names = append(names, name)
		}
		sort.Strings(names)
		parts := make([]string, 0, len(names))
		for _, name := range names {
			parts = append(parts, name+"="+s.Services[name])
		}
		fmt.Fprintf(&b, "  services: %s\n", strings.Join(parts, " "))
	}
	if s.ConfigMessage != "" {
		fmt.Fprintf(&b, "  config: %s\n", s.ConfigMessage)
	}
	if s.LLMTestRunning {
		fmt.Fprintln(&b, r.running(fmt.Sprintf("  LLM test running: question %d", s.LLMTestIndex+1)))
	}
	for _, res := range s.LLMTestResults {
		fmt.Fprintf(&b, "  [%s] %s -> %s\n", res.Timestamp, res.Question, res.Response)
	}
	if s.UpdateCheck != nil {
		fmt.Fprintf(&b, "  update check: %v\n", s.UpdateCheck["updates_available"])
	}
	if s.LastError != "" {
		fmt.Fprintln(&b, r.failed("  last error: "+s.LastError))
	}
	return strings.TrimRight(b.String(), "\n")
}

// Keys renders the masked API key listing.
func (r *Renderer) Keys(s service.SystemSnapshot) string {
	if len(s.APIKeys) == 0 {
		return r.muted("No API keys stored.")
	}
	var b strings.Builder
	for _, k := range s.APIKeys {
		active := " "
		if k.Active {
			active = r.done("*")
		}
		fmt.Fprintf(&b, "  %s %-10s %-16s %s  %s\n", active, k.Provider, k.Name, k.Masked, r.muted(k.ID))
	}
	return strings.TrimRight(b.String(), "\n")
}

// Search renders the last catalog search.
func (r *Renderer) Search(s service.SearchState) string {
	switch s.Status {
	case service.SearchIdle, "":
		return r.muted("No search run yet.")
	case service.SearchRunning:
		msg := s.Message
		if msg == "" {
			msg = "searching for: " + s.Query
		}
		return r.running(msg)
	case service.SearchFailed:
		return r.failed(s.Message)
	}

	var b strings.Builder
	head := fmt.Sprintf("Search %q (%d results", s.Query, s.Total)
	if s.Advanced {
		head += ", by " + s.SortBy
	}
	fmt.Fprintln(&b, r.title(head+")"))
	for _, res := range s.Results {
		fmt.Fprintf(&b, "  %-4s %3.0f%%  %-16s %s\n", res.ID, res.RelevanceScore*100, res.DocumentType, res.Title)
	}
	if len(s.Facets) > 0 {
		names := make([]string, 0, len(s.Facets))
		for name := range s.Facets {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			values := make([]string, 0, len(s.Facets[name]))
			for v, n := range s.Facets[name] {
				values = append(values, fmt.Sprintf("%s=%d", v, n))
			}
			sort.Strings(values)
			fmt.Fprintln(&b, r.muted(fmt.Sprintf("  %s: %s", name, strings.Join(values, " "))))
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// History renders the service's search history, newest first.
func (r *Renderer) History(s service.SystemSnapshot) string {
	if len(s.SearchHistory) == 0 {
		return r.muted("No searches recorded.")
	}
	var b strings.Builder
	for _, h := range s.SearchHistory {
		fmt.Fprintf(&b, "  %s  %-8s %3d  %s\n", r.muted(h.SearchedAt), h.Kind, h.Results, h.Query)
	}
	return strings.TrimRight(b.String(), "\n")
}

// Saved renders the saved searches.
func (r *Renderer) Saved(s service.SystemSnapshot) string {
	if len(s.SavedSearches) == 0 {
		return r.muted("No saved searches.")
	}
	var b strings.Builder
	for _, saved := range s.SavedSearches {
		keys := make([]string, 0, len(saved.Filters))
		for k := range saved.Filters {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		filters := make([]string, 0, len(keys))
		for _, k := range keys {
			filters = append(filters, k+"="+saved.Filters[k])
		}
		fmt.Fprintf(&b, "  %-8s %-24s %q %s\n", saved.ID, saved.Name, saved.Query, r.muted(strings.Join(filters, " ")))
	}
	return strings.TrimRight(b.String(), "\n")
}

// Summary is the single line printed after each pipeline change.
func (r *Renderer) Summary(s pipeline.Snapshot) string {
	st := s.Status
	parts := []string{
		fmt.Sprintf("discovery %s %.0f%%", st.Discovery.Status, st.Discovery.Progress),
		fmt.Sprintf("factory %s %.0f%%", st.Factory.Status, st.Factory.Progress),
	}
	for i, ph := range st.Enhancements {
		if ph.Status != pipeline.StatusIdle {
			parts = append(parts, fmt.Sprintf("p%d %s %.0f%%", i+1, ph.Status, ph.Progress))
		}
	}
	return r.muted(fmt.Sprintf("[v%d] ", s.Version)) + strings.Join(parts, " | ")
}
