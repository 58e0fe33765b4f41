package console

import (
	"context"
	"errors"
	"fmt"
	"io"

	"rag-pipeline-console/pkg/pipeline"
	"rag-pipeline-console/pkg/projection"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var ErrUnexpectedLiveModel = errors.New("unexpected final live model type")

type snapshotMsg pipeline.Snapshot

type liveModel struct {
	renderer    *Renderer
	spinner     spinner.Model
	snap        pipeline.Snapshot
	untilIdle   bool
	interactive bool
	quitting    bool
}

func newLiveModel(r *Renderer, initial pipeline.Snapshot, untilIdle, interactive bool) liveModel {
	s := spinner.New(
		spinner.WithSpinner(spinner.Dot),
		spinner.WithStyle(r.styles.running),
	)
	return liveModel{
		renderer:    r,
		spinner:     s,
		snap:        initial,
		untilIdle:   untilIdle,
		interactive: interactive,
	}
}

func (m liveModel) Init() tea.Cmd {
	if m.untilIdle && !Running(m.snap) {
		return tea.Quit
	}
	return m.spinner.Tick
}

func (m liveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}
		return m, nil
	case snapshotMsg:
		// senders are not ordered, so older snapshots can arrive late
		if msg.Version < m.snap.Version {
			return m, nil
		}
		m.snap = pipeline.Snapshot(msg)
		if m.untilIdle && !Running(m.snap) {
			m.quitting = true
			return m, tea.Quit
		}
		return m, nil
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	default:
		return m, nil
	}
}

func (m liveModel) View() string {
	lines := []string{m.renderer.Pipeline(m.snap)}
	if len(m.snap.Uploads) > 0 {
		lines = append(lines, m.renderer.Uploads(m.snap))
	}
	if !m.quitting {
		indicator := " "
		if Running(m.snap) {
			indicator = m.spinner.View()
		}
		hint := "waiting for the pipeline to go idle"
		if m.interactive {
			hint = "q to quit"
		}
		lines = append(lines, fmt.Sprintf("%s %s", indicator, m.renderer.muted(hint)))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

// Running reports whether any stage, download or upload is in flight.
func Running(s pipeline.Snapshot) bool {
	st := s.Status
	if st.Discovery.Status == pipeline.StatusRunning || st.Factory.Status == pipeline.StatusRunning || s.Sequence {
		return true
	}
	for _, ph := range st.Enhancements {
		if ph.Status == pipeline.StatusRunning {
			return true
		}
	}
	for _, d := range s.Documents {
		if d.DownloadStatus == projection.DownloadDownloading {
			return true
		}
	}
	for _, f := range s.Uploads {
		if f.Status == projection.UploadProcessing {
			return true
		}
	}
	return false
}

// LiveOptions configures a Live view.
type LiveOptions struct {
	// Input carries key presses. Nil disables them; the view then ends with
	// its context or, with UntilIdle, once nothing is running.
	Input     io.Reader
	Output    io.Writer
	UntilIdle bool
}

// Live redraws the pipeline in place as snapshots arrive.
type Live struct {
	program *tea.Program
}

func NewLive(ctx context.Context, initial pipeline.Snapshot, opts LiveOptions) *Live {
	model := newLiveModel(NewRenderer(), initial, opts.UntilIdle, opts.Input != nil)
	return &Live{
		program: tea.NewProgram(
			model,
			tea.WithInput(opts.Input),
			tea.WithOutput(opts.Output),
			tea.WithContext(ctx),
		),
	}
}

// Show queues s for display. It never blocks the caller.
func (l *Live) Show(s pipeline.Snapshot) {
	go l.program.Send(snapshotMsg(s))
}

// Run draws until the user quits, the view goes idle, or the context ends.
// It returns the last snapshot shown.
func (l *Live) Run() (pipeline.Snapshot, error) {
	final, err := l.program.Run()
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return pipeline.Snapshot{}, err
	}
	m, ok := final.(liveModel)
	if !ok {
		return pipeline.Snapshot{}, ErrUnexpectedLiveModel
	}
	return m.snap, nil
}
