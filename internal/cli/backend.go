package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"rag-pipeline-console/internal/bootstrap"
	"rag-pipeline-console/internal/config"
	"rag-pipeline-console/internal/tracer"

	"github.com/spf13/cobra"
)

func newBackendCmd(o *overrides) *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "backend",
		Short: "Run the placeholder pipeline service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.Load()
			o.apply(cmd, cfg)
			if port != "" {
				cfg.Backend.Port = port
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			shutdownTracer := tracer.InitTracer(cfg.Tracing)
			defer shutdownTracer(context.Background())

			container := bootstrap.NewBackendContainer(ctx, cfg)
			defer container.Logger.Sync()

			errCh := make(chan error, 1)
			go func() { errCh <- container.Server.Run() }()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			container.Logger.Info("Backend", "Shutting down", nil)
			err := container.Server.Shutdown()
			container.Placeholder.Wait()
			return err
		},
	}
	cmd.Flags().StringVar(&port, "port", "", "listen port (default BACKEND_PORT)")
	return cmd
}
