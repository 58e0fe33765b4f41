package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"rag-pipeline-console/internal/bootstrap"
	"rag-pipeline-console/internal/config"
	"rag-pipeline-console/internal/console"
	"rag-pipeline-console/internal/tracer"
	"rag-pipeline-console/internal/transport"

	"github.com/spf13/cobra"
)

func newAttachCmd(o *overrides) *cobra.Command {
	var script string

	cmd := &cobra.Command{
		Use:   "attach",
		Short: "Open the interactive console",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.Load()
			o.apply(cmd, cfg)

			var in io.Reader = cmd.InOrStdin()
			if script != "" {
				f, err := os.Open(script)
				if err != nil {
					return fmt.Errorf("open script: %w", err)
				}
				defer f.Close()
				in = f
			}
			return runAttach(cmd, cfg, in)
		},
	}
	cmd.Flags().StringVar(&script, "script", "", "read commands from a file instead of stdin")
	return cmd
}

func runAttach(cmd *cobra.Command, cfg *config.Config, in io.Reader) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracer := tracer.InitTracer(cfg.Tracing)
	defer shutdownTracer(context.Background())

	container, err := bootstrap.NewContainer(ctx, cfg)
	if err != nil {
		return err
	}
	defer container.Close()

	var conn console.Connection
	if container.Transport != nil {
		conn = container.Transport
	}
	shell := console.NewShell(ctx, container.Machine, container.System, conn, container.Logger, cmd.OutOrStdout())

	if err := container.Bus.Consume(ctx, shell.Notify); err != nil {
		return err
	}
	unsubscribe := container.System.Subscribe(shell.NotifySystem)
	defer unsubscribe()

	if container.Transport != nil {
		container.Transport.OnStateChange(func(state transport.State, err error) {
			line := fmt.Sprintf("connection %s", state)
			if err != nil {
				line += ": " + err.Error()
			}
			fmt.Fprintln(shell, line)
		})
	}

	if err := container.Start(ctx); err != nil {
		return err
	}

	if cfg.Remote.Simulate {
		fmt.Fprintln(shell, "Simulated mode. Type help for commands.")
	} else {
		fmt.Fprintf(shell, "Connecting to %s. Type help for commands.\n", container.Transport.URL())
	}

	done := make(chan error, 1)
	go func() { done <- shell.Run(in) }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return nil
	}
}
