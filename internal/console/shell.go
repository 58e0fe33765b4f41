package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"

	"rag-pipeline-console/internal/pkg/logger"
	"rag-pipeline-console/internal/service"
	"rag-pipeline-console/internal/transport"
	"rag-pipeline-console/pkg/events"
	"rag-pipeline-console/pkg/pipeline"
	"rag-pipeline-console/pkg/projection"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// Connection is the part of the transport the shell controls. Nil when the
// console runs in simulated mode.
type Connection interface {
	Connect()
	Disconnect()
	State() transport.State
	LastError() error
	URL() string
}

// LogReader reads back the structured log file.
type LogReader interface {
	GetLogs(q logger.LogQuery) ([]logger.LogEntry, error)
}

var errExit = errors.New("exit")

// Shell is a line-oriented command interpreter over the pipeline machine and
// the system service. Each line is parsed by a fresh cobra command tree.
type Shell struct {
	ctx      context.Context
	machine  *pipeline.Machine
	system   *service.SystemService
	conn     Connection
	logs     LogReader
	renderer *Renderer
	warnf    func(format string, a ...interface{}) string
	okf      func(format string, a ...interface{}) string

	outMu      sync.Mutex
	out        io.Writer
	follow     bool
	lastSystem service.SystemSnapshot
}

func NewShell(ctx context.Context, machine *pipeline.Machine, system *service.SystemService, conn Connection, logs LogReader, out io.Writer) *Shell {
	return &Shell{
		ctx:      ctx,
		machine:  machine,
		system:   system,
		conn:     conn,
		logs:     logs,
		renderer: NewRenderer(),
		warnf:    color.New(color.FgRed).SprintfFunc(),
		okf:      color.New(color.FgGreen).SprintfFunc(),
		out:      out,
		follow:   true,
	}
}

func (s *Shell) Write(p []byte) (int, error) {
	s.outMu.Lock()
	defer s.outMu.Unlock()
	return s.out.Write(p)
}

func (s *Shell) println(a ...interface{}) {
	fmt.Fprintln(s, a...)
}

// Notify prints a one-line summary for each pipeline change while follow
// mode is on.
func (s *Shell) Notify(snap pipeline.Snapshot) {
	s.outMu.Lock()
	follow := s.follow
	s.outMu.Unlock()
	if follow {
		s.println(s.renderer.Summary(snap))
	}
}

// NotifySystem prints remote errors, start notices and finished LLM tests or
// searches as they arrive.
func (s *Shell) NotifySystem(cur service.SystemSnapshot) {
	s.outMu.Lock()
	prev := s.lastSystem
	if cur.Version <= prev.Version {
		s.outMu.Unlock()
		return
	}
	s.lastSystem = cur
	s.outMu.Unlock()

	if cur.LastError != "" && cur.LastError != prev.LastError {
		s.println(s.warnf("remote error: %s", cur.LastError))
	}
	if prev.LLMTestRunning && !cur.LLMTestRunning && len(cur.LLMTestResults) > 0 {
		s.println(s.okf("LLM test finished: %d answers", len(cur.LLMTestResults)))
	}
	if prev.Search.Status == service.SearchRunning && cur.Search.Status == service.SearchCompleted {
		s.println(s.okf("search %q finished: %d results", cur.Search.Query, cur.Search.Total))
	}
	if cur.Notice != "" && cur.Notice != prev.Notice {
		s.println(s.renderer.muted(cur.Notice))
	}
}

// Run reads commands from in until EOF or exit.
func (s *Shell) Run(in io.Reader) error {
	scanner := bufio.NewScanner(in)
	fmt.Fprint(s, "> ")
	for scanner.Scan() {
		err := s.Execute(scanner.Text())
		if errors.Is(err, errExit) {
			return nil
		}
		if err != nil {
			s.println(s.warnf("error: %v", err))
		}
		fmt.Fprint(s, "> ")
	}
	return scanner.Err()
}

// Execute runs one command line.
func (s *Shell) Execute(line string) error {
	args, err := SplitArgs(line)
	if err != nil {
		return err
	}
	if len(args) == 0 {
		return nil
	}
	root := s.newRootCmd()
	root.SetArgs(args)
	root.SetOut(s)
	root.SetErr(s)
	return root.ExecuteContext(s.ctx)
}

// SplitArgs splits a line on whitespace, keeping double-quoted runs together.
func SplitArgs(line string) ([]string, error) {
	var (
		args    []string
		cur     strings.Builder
		inQuote bool
		started bool
	)
	for _, r := range line {
		switch {
		case r == '"':
			inQuote = !inQuote
			started = true
		case (r == ' ' || r == '\t') && !inQuote:
			if started {
				args = append(args, cur.String())
				cur.Reset()
				started = false
			}
		default:
			cur.WriteRune(r)
			started = true
		}
	}
	if inQuote {
		return nil, errors.New("unterminated quote")
	}
	if started {
		args = append(args, cur.String())
	}
	return args, nil
}

func (s *Shell) newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "console",
		Short:         "Drive the RAG pipeline",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.CompletionOptions.DisableDefaultCmd = true

	root.AddCommand(
		s.newStatusCmd(),
		s.newDiscoverCmd(),
		s.newDocsCmd(),
		s.newSearchCmd(),
		s.newResultsCmd(),
		s.newHistoryCmd(),
		s.newSavedCmd(),
		s.newSelectCmd(),
		s.newDeselectCmd(),
		s.newDownloadCmd(),
		s.newFactoryCmd(),
		s.newPhaseCmd(),
		s.newEnhanceCmd(),
		s.newUploadCmd(),
		s.newResetCmd(),
		s.newSystemCmd(),
		s.newKeysCmd(),
		s.newConnectionCmd(),
		s.newFollowCmd(),
		s.newMonitorCmd(),
		s.newLogsCmd(),
		&cobra.Command{
			Use:     "exit",
			Aliases: []string{"quit"},
			Short:   "Leave the console",
			RunE: func(*cobra.Command, []string) error {
				return errExit
			},
		},
	)
	return root
}

func (s *Shell) newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show every stage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s.println(s.renderer.Pipeline(s.machine.Snapshot()))
			return nil
		},
	}
}

func (s *Shell) newDiscoverCmd() *cobra.Command {
	var (
		level   string
		maxDocs int
		via     string
		sources []string
	)
	cmd := &cobra.Command{
		Use:   "discover <query...>",
		Short: "Start document discovery",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			err := s.machine.StartDiscovery(pipeline.DiscoveryRequest{
				Query:              strings.Join(args, " "),
				CertificationLevel: level,
				MaxDocuments:       maxDocs,
				Method:             pipeline.DiscoveryMethod(via),
				Sources:            sources,
			})
			if err != nil {
				return fmt.Errorf("start discovery: %w", err)
			}
			s.println("Discovery started.")
			return nil
		},
	}
	cmd.Flags().StringVar(&level, "level", "all", "certification level")
	cmd.Flags().IntVar(&maxDocs, "max", 4, "maximum documents")
	cmd.Flags().StringVar(&via, "via", string(pipeline.DiscoveryViaAgent), "agent, sources or stage1")
	cmd.Flags().StringSliceVar(&sources, "source", nil, "sites to search with --via sources")
	return cmd
}

// parseFacets turns repeated key=value flags into facet filters.
func parseFacets(raw []string) (map[string][]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	out := make(map[string][]string, len(raw))
	for _, kv := range raw {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || key == "" || value == "" {
			return nil, fmt.Errorf("invalid facet %q, want key=value", kv)
		}
		out[key] = append(out[key], value)
	}
	return out, nil
}

func (s *Shell) newSearchCmd() *cobra.Command {
	var (
		threshold int
		cert      string
		docType   string
		software  string
		facets    []string
		sortBy    string
		from, to  string
	)
	cmd := &cobra.Command{
		Use:   "search <query...>",
		Short: "Search the document catalog",
		Long: "Search the document catalog. Any of --facet, --sort, --from or --to " +
			"turns it into a faceted search.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			advanced := len(facets) > 0 || sortBy != "" || from != "" || to != ""
			if !advanced {
				err := s.system.Search(cmd.Context(), events.DocumentSearchRequest{
					Query:              query,
					RelevanceThreshold: threshold,
					CertLevel:          cert,
					DocType:            docType,
					SoftwareType:       software,
				})
				if err != nil {
					return fmt.Errorf("search: %w", err)
				}
				s.println("Search started.")
				return nil
			}

			parsed, err := parseFacets(facets)
			if err != nil {
				return err
			}
			req := events.AdvancedSearchRequest{Query: query, Facets: parsed, SortBy: sortBy}
			if from != "" || to != "" {
				req.DateRange = &events.DateRange{From: from, To: to}
			}
			if err := s.system.AdvancedSearch(cmd.Context(), req); err != nil {
				return fmt.Errorf("search: %w", err)
			}
			s.println("Faceted search started.")
			return nil
		},
	}
	f := cmd.Flags()
	f.IntVar(&threshold, "threshold", 70, "minimum relevance in percent")
	f.StringVar(&cert, "cert", "all", "certification level")
	f.StringVar(&docType, "type", "all", "document type")
	f.StringVar(&software, "software", "all", "software type")
	f.StringArrayVar(&facets, "facet", nil, "facet filter as key=value, repeatable")
	f.StringVar(&sortBy, "sort", "", "relevance, date or title")
	f.StringVar(&from, "from", "", "earliest date added, YYYY-MM-DD")
	f.StringVar(&to, "to", "", "latest date added, YYYY-MM-DD")
	return cmd
}

func (s *Shell) newResultsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "results",
		Short: "Show the last search",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s.println(s.renderer.Search(s.system.Snapshot().Search))
			return nil
		},
	}
}

func (s *Shell) newHistoryCmd() *cobra.Command {
	var refresh bool
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show the search history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if refresh {
				return s.system.RequestSearchHistory(cmd.Context())
			}
			s.println(s.renderer.History(s.system.Snapshot()))
			return nil
		},
	}
	cmd.Flags().BoolVar(&refresh, "refresh", false, "ask the service for its history")
	return cmd
}

func (s *Shell) newSavedCmd() *cobra.Command {
	var refresh bool
	cmd := &cobra.Command{
		Use:   "saved",
		Short: "Show saved searches",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if refresh {
				return s.system.RequestSavedSearches(cmd.Context())
			}
			s.println(s.renderer.Saved(s.system.Snapshot()))
			return nil
		},
	}
	cmd.Flags().BoolVar(&refresh, "refresh", false, "ask the service for its saved searches")
	return cmd
}

func (s *Shell) newDocsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "docs",
		Short: "List discovered documents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s.println(s.renderer.Documents(s.machine.Snapshot()))
			return nil
		},
	}
}

func (s *Shell) newSelectCmd() *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "select [id...]",
		Short: "Select documents for the factory",
		RunE: func(cmd *cobra.Command, args []string) error {
			if all {
				s.machine.SelectAll()
				return nil
			}
			if len(args) == 0 {
				return errors.New("pass document ids or --all")
			}
			for _, id := range args {
				if err := s.machine.SelectDocument(id); err != nil {
					return fmt.Errorf("select %s: %w", id, err)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "select every document")
	return cmd
}

func (s *Shell) newDeselectCmd() *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "deselect [id...]",
		Short: "Remove documents from the selection",
		RunE: func(cmd *cobra.Command, args []string) error {
			if all {
				s.machine.ClearSelection()
				return nil
			}
			for _, id := range args {
				s.machine.DeselectDocument(id)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "clear the selection")
	return cmd
}

func (s *Shell) newDownloadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "download <id...>",
		Short: "Download discovered documents",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, id := range args {
				if err := s.machine.RequestDownload(id); err != nil {
					return fmt.Errorf("download %s: %w", id, err)
				}
			}
			return nil
		},
	}
}

func (s *Shell) newFactoryCmd() *cobra.Command {
	var phase int
	cmd := &cobra.Command{
		Use:   "factory",
		Short: "Run the dataset factory over the selection",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := s.machine.StartFactory(phase); err != nil {
				return fmt.Errorf("start factory: %w", err)
			}
			s.println("Factory started.")
			return nil
		},
	}
	cmd.Flags().IntVar(&phase, "phase", pipeline.MinOutputPhase, "output phase")
	return cmd
}

func (s *Shell) newPhaseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "phase <n>",
		Short: "Run one enhancement phase",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("phase must be a number: %w", pipeline.ErrInvalidPhase)
			}
			if err := s.machine.StartPhase(n); err != nil {
				return fmt.Errorf("start phase %d: %w", n, err)
			}
			return nil
		},
	}
}

func (s *Shell) newEnhanceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "enhance",
		Short: "Run every enhancement phase in order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			done, err := s.machine.RunAllEnhancements(s.ctx)
			if err != nil {
				return fmt.Errorf("start enhancements: %w", err)
			}
			s.println("Enhancement sequence started.")
			go func() {
				if err := <-done; err != nil {
					s.println(s.warnf("enhancement sequence stopped: %v", err))
					return
				}
				s.println(s.okf("Enhancement sequence completed."))
			}()
			return nil
		},
	}
}

func (s *Shell) newUploadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "upload",
		Short: "Manage the local upload queue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s.println(s.renderer.Uploads(s.machine.Snapshot()))
			return nil
		},
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "add <file...>",
			Short: "Queue files",
			Args:  cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				files := make([]projection.UploadedFile, 0, len(args))
				for _, name := range args {
					f := projection.UploadedFile{Name: name}
					if info, err := os.Stat(name); err == nil {
						f.Size = info.Size()
					}
					files = append(files, f)
				}
				s.machine.AddUploads(files...)
				return nil
			},
		},
		&cobra.Command{
			Use:     "rm <file>",
			Aliases: []string{"remove"},
			Short:   "Remove a queued file",
			Args:    cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return s.machine.RemoveUpload(args[0])
			},
		},
		&cobra.Command{
			Use:   "process",
			Short: "Process every pending file",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				if err := s.machine.ProcessUploads(); err != nil {
					return fmt.Errorf("process uploads: %w", err)
				}
				return nil
			},
		},
	)
	return cmd
}

func (s *Shell) newResetCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "reset [discovery|factory|enhancements|uploads]",
		Short:     "Reset one stage, or everything",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"discovery", "factory", "enhancements", "uploads"},
		RunE: func(cmd *cobra.Command, args []string) error {
			target := "all"
			if len(args) == 1 {
				target = args[0]
			}
			var err error
			switch target {
			case "all":
				err = s.machine.Reset()
			case "discovery":
				err = s.machine.ResetDiscovery()
			case "factory":
				err = s.machine.ResetFactory()
			case "enhancements":
				err = s.machine.ResetEnhancements()
			case "uploads":
				err = s.machine.ResetUploads()
			default:
				return fmt.Errorf("unknown reset target %q", target)
			}
			if err != nil {
				return fmt.Errorf("reset %s: %w", target, err)
			}
			return nil
		},
	}
}

func (s *Shell) newSystemCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "system",
		Short: "Show the remote service state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s.println(s.renderer.System(s.system.Snapshot()))
			return nil
		},
	}

	var provider string
	testCmd := &cobra.Command{
		Use:   "test-llm",
		Short: "Run the LLM connection test",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return s.system.TestLLM(cmd.Context(), provider)
		},
	}
	testCmd.Flags().StringVar(&provider, "provider", "groq", "LLM provider")

	var dbType, mode, llmProvider string
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Update the service configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var llm map[string]interface{}
			if llmProvider != "" {
				llm = map[string]interface{}{"provider": llmProvider}
			}
			return s.system.UpdateConfig(cmd.Context(), dbType, mode, llm)
		},
	}
	configCmd.Flags().StringVar(&dbType, "database-type", "", "database type")
	configCmd.Flags().StringVar(&mode, "operation-mode", "", "online or offline")
	configCmd.Flags().StringVar(&llmProvider, "llm-provider", "", "LLM provider")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "refresh",
			Short: "Request a status report",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return s.system.RefreshStatus(cmd.Context())
			},
		},
		&cobra.Command{
			Use:   "check-updates",
			Short: "Ask the service to check documents for updates",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return s.system.CheckDocumentUpdates(cmd.Context())
			},
		},
		testCmd,
		configCmd,
	)
	return cmd
}

func (s *Shell) newKeysCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "List stored API keys",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			keys, err := s.system.ListAPIKeys(cmd.Context())
			if err != nil {
				return err
			}
			s.println(s.renderer.Keys(service.SystemSnapshot{APIKeys: keys}))
			return nil
		},
	}

	parseID := func(raw string) (uuid.UUID, error) {
		id, err := uuid.Parse(raw)
		if err != nil {
			return uuid.Nil, fmt.Errorf("invalid key id %q", raw)
		}
		return id, nil
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "add <provider> <name> <key>",
			Short: "Store an API key",
			Args:  cobra.ExactArgs(3),
			RunE: func(cmd *cobra.Command, args []string) error {
				c, err := s.system.SaveAPIKey(cmd.Context(), args[0], args[1], args[2])
				if err != nil {
					return fmt.Errorf("save api key: %w", err)
				}
				s.println(fmt.Sprintf("Saved %s key %s (%s)", c.Provider, c.Masked(), c.Id))
				return nil
			},
		},
		&cobra.Command{
			Use:     "rm <id>",
			Aliases: []string{"delete"},
			Short:   "Delete an API key",
			Args:    cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := parseID(args[0])
				if err != nil {
					return err
				}
				return s.system.DeleteAPIKey(cmd.Context(), id)
			},
		},
		&cobra.Command{
			Use:   "activate <id>",
			Short: "Make a key the active one for its provider",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := parseID(args[0])
				if err != nil {
					return err
				}
				return s.system.SetActiveKey(cmd.Context(), id)
			},
		},
		&cobra.Command{
			Use:   "sync",
			Short: "Ask the service for its key list",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return s.system.SyncAPIKeys(cmd.Context())
			},
		},
	)
	return cmd
}

func (s *Shell) newConnectionCmd() *cobra.Command {
	requireConn := func() error {
		if s.conn == nil {
			return errors.New("running in simulated mode, there is no connection")
		}
		return nil
	}

	cmd := &cobra.Command{
		Use:   "conn",
		Short: "Show the connection state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := requireConn(); err != nil {
				return err
			}
			line := fmt.Sprintf("%s %s", s.conn.URL(), s.conn.State())
			if err := s.conn.LastError(); err != nil {
				line += s.warnf(" (last error: %v)", err)
			}
			s.println(line)
			return nil
		},
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "open",
			Short: "Connect to the service",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				if err := requireConn(); err != nil {
					return err
				}
				s.conn.Connect()
				return nil
			},
		},
		&cobra.Command{
			Use:   "close",
			Short: "Disconnect without reconnecting",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				if err := requireConn(); err != nil {
					return err
				}
				s.conn.Disconnect()
				return nil
			},
		},
	)
	return cmd
}

func (s *Shell) newFollowCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "follow [on|off]",
		Short:     "Print a summary line after every change",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"on", "off"},
		RunE: func(cmd *cobra.Command, args []string) error {
			s.outMu.Lock()
			defer s.outMu.Unlock()
			if len(args) == 0 {
				s.follow = !s.follow
				return nil
			}
			switch args[0] {
			case "on":
				s.follow = true
			case "off":
				s.follow = false
			default:
				return fmt.Errorf("expected on or off, got %q", args[0])
			}
			return nil
		},
	}
}

func (s *Shell) newMonitorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "monitor",
		Short: "Redraw the pipeline in place until nothing is running",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s.outMu.Lock()
			follow := s.follow
			s.follow = false
			s.outMu.Unlock()
			defer func() {
				s.outMu.Lock()
				s.follow = follow
				s.outMu.Unlock()
			}()

			live := NewLive(cmd.Context(), s.machine.Snapshot(), LiveOptions{Output: s, UntilIdle: true})
			unsubscribe := s.machine.Subscribe(live.Show)
			defer unsubscribe()
			// catch anything that changed before the subscription
			live.Show(s.machine.Snapshot())

			last, err := live.Run()
			if err != nil {
				return fmt.Errorf("monitor: %w", err)
			}
			s.println(s.renderer.Summary(last))
			return nil
		},
	}
}

func (s *Shell) newLogsCmd() *cobra.Command {
	var q logger.LogQuery
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show recent log entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if s.logs == nil {
				return errors.New("no log file configured")
			}
			entries, err := s.logs.GetLogs(q)
			if err != nil {
				return fmt.Errorf("read logs: %w", err)
			}
			for _, e := range entries {
				s.println(fmt.Sprintf("%s %-5s [%s] %s %v", e.Timestamp, e.Level, e.Module, e.Message, e.Details))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&q.Level, "level", "", "only entries of this level")
	cmd.Flags().StringVar(&q.Module, "module", "", "only entries of this module")
	cmd.Flags().IntVar(&q.Limit, "limit", 20, "number of entries")
	return cmd
}
