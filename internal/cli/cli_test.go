package cli

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"rag-pipeline-console/internal/config"
	"rag-pipeline-console/internal/pkg/logger"
	"rag-pipeline-console/internal/service"
	"rag-pipeline-console/pkg/pipeline"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootHasSubcommands(t *testing.T) {
	root := NewRootCmd()

	for _, name := range []string{"attach", "backend", "watch", "logs"} {
		cmd, _, err := root.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, cmd.Name())
	}
}

func TestOverridesOnlyApplyChangedFlags(t *testing.T) {
	var o overrides
	cmd := &cobra.Command{Use: "x"}
	cmd.Flags().StringVar(&o.baseURL, "url", "", "")
	cmd.Flags().StringVar(&o.clientID, "client-id", "", "")
	cmd.Flags().BoolVar(&o.simulate, "simulate", false, "")
	require.NoError(t, cmd.Flags().Parse([]string{"--url", "ws://other:1"}))

	cfg := &config.Config{Remote: config.RemoteConfig{BaseURL: "ws://localhost:8000", ClientID: "console-1", Simulate: true}}
	o.apply(cmd, cfg)
	assert.Equal(t, "ws://other:1", cfg.Remote.BaseURL)
	assert.Equal(t, "console-1", cfg.Remote.ClientID)
	assert.True(t, cfg.Remote.Simulate)
}

func TestPrintLogs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "console.log")
	log := logger.NewIsolatedLogger(path)
	log.Info("Transport", "Connected", map[string]interface{}{"url": "ws://localhost:8000/ws/a"})
	log.Warn("Transport", "Connection closed", nil)
	require.NoError(t, log.Sync())

	out := &bytes.Buffer{}
	cmd := &cobra.Command{}
	cmd.SetOut(out)
	require.NoError(t, printLogs(cmd, log, logger.LogQuery{Limit: 10}, false))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "Connection closed")
	assert.Contains(t, lines[1], "[Transport] Connected")

	out.Reset()
	require.NoError(t, printLogs(cmd, log, logger.LogQuery{Level: "warn", Limit: 10}, false))
	assert.Equal(t, 1, strings.Count(out.String(), "\n"))
}

func TestSnapshotPrinterSkipsStaleSnapshots(t *testing.T) {
	color.NoColor = true
	out := &bytes.Buffer{}
	handle := snapshotPrinter(out, false)

	newer, err := service.SnapshotEvent(pipeline.Snapshot{Version: 5, Status: pipeline.InitialStatus()})
	require.NoError(t, err)
	older, err := service.SnapshotEvent(pipeline.Snapshot{Version: 3, Status: pipeline.InitialStatus()})
	require.NoError(t, err)

	require.NoError(t, handle(nil, newer))
	require.NoError(t, handle(nil, older))

	assert.Equal(t, 1, strings.Count(out.String(), "\n"))
	assert.Contains(t, out.String(), "[v5]")
}
