package cli

import (
	"encoding/json"
	"fmt"

	"rag-pipeline-console/internal/config"
	"rag-pipeline-console/internal/pkg/logger"

	"github.com/spf13/cobra"
)

func newLogsCmd(o *overrides) *cobra.Command {
	var (
		q      logger.LogQuery
		frames bool
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show recent entries of the console log file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.Load()
			o.apply(cmd, cfg)
			path := cfg.App.LogFilePath
			if frames {
				path = cfg.App.FrameLogFilePath
			}
			return printLogs(cmd, logger.NewIsolatedLogger(path), q, asJSON)
		},
	}
	cmd.Flags().StringVar(&q.Level, "level", "", "only entries of this level (debug, info, warn, error)")
	cmd.Flags().StringVar(&q.Module, "module", "", "only entries of this module")
	cmd.Flags().IntVar(&q.Limit, "limit", 50, "number of entries")
	cmd.Flags().IntVar(&q.Offset, "offset", 0, "skip the newest n entries")
	cmd.Flags().BoolVar(&frames, "frames", false, "read the transport frame log instead")
	cmd.Flags().BoolVar(&asJSON, "json", false, "render JSON output")
	return cmd
}

func printLogs(cmd *cobra.Command, reader *logger.ZapLogger, q logger.LogQuery, asJSON bool) error {
	entries, err := reader.GetLogs(q)
	if err != nil {
		return fmt.Errorf("read logs: %w", err)
	}

	if asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	}
	for _, e := range entries {
		fmt.Fprintf(cmd.OutOrStdout(), "%s %-5s [%s] %s %v\n", e.Timestamp, e.Level, e.Module, e.Message, e.Details)
	}
	return nil
}
