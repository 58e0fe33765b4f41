// Package cli holds the cobra command tree of the console binary.
package cli

import (
	"rag-pipeline-console/internal/config"

	"github.com/spf13/cobra"
)

func Execute() error {
	return NewRootCmd().Execute()
}

// overrides are flags that take precedence over the environment.
type overrides struct {
	baseURL  string
	clientID string
	simulate bool
}

func (o *overrides) apply(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("url") {
		cfg.Remote.BaseURL = o.baseURL
	}
	if flags.Changed("client-id") {
		cfg.Remote.ClientID = o.clientID
	}
	if flags.Changed("simulate") {
		cfg.Remote.Simulate = o.simulate
	}
}

func NewRootCmd() *cobra.Command {
	var o overrides

	rootCmd := &cobra.Command{
		Use:           "rag-console",
		Short:         "Orchestrate the RAG training-data pipeline from the terminal",
		Long:          "rag-console drives document discovery, the dataset factory and the enhancement phases of a remote RAG pipeline service, and can run a placeholder service to talk to.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	rootCmd.PersistentFlags().StringVar(&o.baseURL, "url", "", "service base URL (ws://host:port)")
	rootCmd.PersistentFlags().StringVar(&o.clientID, "client-id", "", "client identity used in the channel path")
	rootCmd.PersistentFlags().BoolVar(&o.simulate, "simulate", false, "drive the pipeline locally without a service")

	rootCmd.AddCommand(
		newAttachCmd(&o),
		newBackendCmd(&o),
		newWatchCmd(&o),
		newLogsCmd(&o),
	)
	return rootCmd
}
