package progress

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"rag-pipeline-console/internal/pkg/logger"
	"rag-pipeline-console/internal/service"
	"rag-pipeline-console/internal/transport"
	"rag-pipeline-console/pkg/pipeline"
	"rag-pipeline-console/pkg/router"

	"github.com/cenkalti/backoff"
	"github.com/fasthttp/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"
)

// serverConn plays the remote end of one websocket session.
type serverConn struct {
	in        chan []byte
	closed    chan struct{}
	closeOnce sync.Once

	mu      sync.Mutex
	written []string
}

func newServerConn() *serverConn {
	return &serverConn{in: make(chan []byte, 16), closed: make(chan struct{})}
}

func (c *serverConn) ReadMessage() (int, []byte, error) {
	select {
	case b, ok := <-c.in:
		if !ok {
			return 0, nil, io.EOF
		}
		return websocket.TextMessage, b, nil
	case <-c.closed:
		return 0, nil, errors.New("use of closed connection")
	}
}

func (c *serverConn) WriteMessage(messageType int, data []byte) error {
	if messageType != websocket.TextMessage {
		return nil
	}
	c.mu.Lock()
	c.written = append(c.written, string(data))
	c.mu.Unlock()
	return nil
}

func (c *serverConn) SetReadDeadline(time.Time) error   { return nil }
func (c *serverConn) SetWriteDeadline(time.Time) error  { return nil }
func (c *serverConn) SetPongHandler(func(string) error) {}

func (c *serverConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

func (c *serverConn) push(frame string) { c.in <- []byte(frame) }

func (c *serverConn) drop() { close(c.in) }

func (c *serverConn) received() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.written...)
}

type serverDialer struct {
	mu    sync.Mutex
	conns []*serverConn
}

func (d *serverDialer) Dial(context.Context, string) (transport.Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	c := newServerConn()
	d.conns = append(d.conns, c)
	return c, nil
}

func (d *serverDialer) dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.conns)
}

func (d *serverDialer) last() *serverConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.conns[len(d.conns)-1]
}

type connectedConsole struct {
	dialer    *serverDialer
	transport *transport.Transport
	machine   *pipeline.Machine
}

func newConnectedConsole(t *testing.T) *connectedConsole {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	log := logger.NewNopLogger()
	rt := router.New(log)
	dialer := &serverDialer{}
	tr := transport.New(transport.Options{
		BaseURL:   "ws://localhost:8000",
		ClientID:  "console",
		Reconnect: backoff.NewConstantBackOff(10 * time.Millisecond),
	}, dialer, rt.Dispatch, log)
	t.Cleanup(tr.Disconnect)

	commands := service.NewCommandService(tr, noop.NewTracerProvider().Tracer("test"), log)
	remote := NewRemote(ctx, commands, NewSimulated(ctx, ImmediateClock{}, DefaultCadence(), log), log)
	t.Cleanup(remote.Attach(rt))

	tr.Connect()
	require.Eventually(t, tr.Connected, time.Second, time.Millisecond)

	return &connectedConsole{dialer: dialer, transport: tr, machine: pipeline.NewMachine(remote, log)}
}

func (c *connectedConsole) waitFor(t *testing.T, cond func(pipeline.Snapshot) bool) {
	t.Helper()
	require.Eventually(t, func() bool { return cond(c.machine.Snapshot()) }, time.Second, time.Millisecond)
}

// reconnect drops the current session and waits for the next dial to open.
func (c *connectedConsole) reconnect(t *testing.T) *serverConn {
	t.Helper()
	dials := c.dialer.dials()
	c.dialer.last().drop()
	require.Eventually(t, func() bool {
		return c.dialer.dials() == dials+1 && c.transport.Connected()
	}, time.Second, time.Millisecond)
	return c.dialer.last()
}

func TestRunsSurviveReconnect(t *testing.T) {
	c := newConnectedConsole(t)
	first := c.dialer.last()

	require.NoError(t, c.machine.StartDiscovery(pipeline.DiscoveryRequest{Query: "BGP"}))
	require.Eventually(t, func() bool { return len(first.received()) == 1 }, time.Second, time.Millisecond)
	assert.True(t, strings.Contains(first.received()[0], `"action":"ai_agent"`))

	first.push(`{"type":"ai_agent_update","overallProgress":40,"currentStep":"Searching","status":"running","results":[]}`)
	c.waitFor(t, func(s pipeline.Snapshot) bool { return s.Status.Discovery.Progress == 40 })

	second := c.reconnect(t)
	assert.Equal(t, 2, c.dialer.dials())
	disc := c.machine.Snapshot().Status.Discovery
	assert.Equal(t, pipeline.StatusRunning, disc.Status)
	assert.Equal(t, 40.0, disc.Progress)

	// updates pushed on the new session still land on the same run
	second.push(`{"type":"ai_agent_update","overallProgress":100,"currentStep":"done","status":"completed",
		"results":[{"id":"ai_1","title":"BGP Guide","source":"cisco.com","type":"PDF","relevance":0.9}]}`)
	c.waitFor(t, func(s pipeline.Snapshot) bool { return s.Status.Discovery.Status == pipeline.StatusCompleted })

	c.machine.SelectAll()
	require.NoError(t, c.machine.StartFactory(1))
	require.Eventually(t, func() bool { return len(second.received()) == 1 }, time.Second, time.Millisecond)

	second.push(`{"type":"pipeline_stage2_update","stage":2,"status":"running","progress":30,"current_step":"[File 1/1: BGP Guide] Chunking","synthetic_examples":250,"processed_files":0,"total_files":1}`)
	c.waitFor(t, func(s pipeline.Snapshot) bool { return s.Status.Factory.Progress == 30 })

	third := c.reconnect(t)
	assert.Equal(t, 3, c.dialer.dials())
	assert.Equal(t, pipeline.StatusRunning, c.machine.Snapshot().Status.Factory.Status)

	third.push(`{"type":"pipeline_stage2_update","stage":2,"status":"completed","progress":100,"current_step":"Stage 2 completed","synthetic_examples":500,"processed_files":1,"total_files":1}`)
	c.waitFor(t, func(s pipeline.Snapshot) bool { return s.Status.Factory.Status == pipeline.StatusCompleted })
	assert.Equal(t, 500, c.machine.Snapshot().Status.Factory.SyntheticExamples)
}
