package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"rag-pipeline-console/internal/config"
	"rag-pipeline-console/internal/console"
	"rag-pipeline-console/internal/pkg/logger"
	"rag-pipeline-console/internal/service"
	"rag-pipeline-console/pkg/events"
	"rag-pipeline-console/pkg/pipeline"

	pktNats "rag-pipeline-console/pkg/nats"

	"github.com/spf13/cobra"
)

func newWatchCmd(o *overrides) *cobra.Command {
	var (
		natsURL string
		asJSON  bool
		plain   bool
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow pipeline snapshots published by a running console",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.Load()
			o.apply(cmd, cfg)
			if natsURL != "" {
				cfg.Events.NatsURL = natsURL
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")
			defer sysLogger.Sync()

			sub, err := pktNats.NewSubscriber(cfg.Events.NatsURL, sysLogger)
			if err != nil {
				return fmt.Errorf("connect to nats: %w", err)
			}
			defer sub.Close()

			subject := pktNats.Subject(service.SnapshotEventType)
			if asJSON || plain {
				if err := sub.Watch(ctx, subject, snapshotPrinter(cmd.OutOrStdout(), asJSON)); err != nil {
					return err
				}
				<-ctx.Done()
				return nil
			}

			live := console.NewLive(ctx, pipeline.Snapshot{Status: pipeline.InitialStatus()}, console.LiveOptions{
				Input:  cmd.InOrStdin(),
				Output: cmd.OutOrStdout(),
			})
			if err := sub.Watch(ctx, subject, snapshotHandler(live.Show)); err != nil {
				return err
			}
			_, err = live.Run()
			return err
		},
	}
	cmd.Flags().StringVar(&natsURL, "nats-url", "", "NATS server (default NATS_URL)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print raw snapshot JSON")
	cmd.Flags().BoolVar(&plain, "plain", false, "print one summary line per snapshot instead of the live view")
	return cmd
}

// snapshotPrinter renders each relayed snapshot, skipping any older than the
// last one printed.
func snapshotPrinter(out io.Writer, asJSON bool) pktNats.EventHandler {
	renderer := console.NewRenderer()
	show := pipeline.LatestOnly(func(s pipeline.Snapshot) {
		if asJSON {
			enc := json.NewEncoder(out)
			_ = enc.Encode(s)
			return
		}
		fmt.Fprintln(out, renderer.Summary(s))
	})

	return snapshotHandler(show)
}

func snapshotHandler(show pipeline.Observer) pktNats.EventHandler {
	return func(_ context.Context, event events.Event) error {
		s, err := service.SnapshotFromEvent(event)
		if err != nil {
			return fmt.Errorf("decode snapshot: %w", err)
		}
		show(s)
		return nil
	}
}
