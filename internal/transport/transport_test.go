package transport

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"rag-pipeline-console/internal/pkg/logger"

	"github.com/cenkalti/backoff"
	"github.com/fasthttp/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	in        chan []byte
	closed    chan struct{}
	closeOnce sync.Once

	mu        sync.Mutex
	written   [][]byte
	failWrite error
}

func newFakeConn() *fakeConn {
	return &fakeConn{in: make(chan []byte, 16), closed: make(chan struct{})}
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
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

func (c *fakeConn) WriteMessage(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failWrite != nil {
		return c.failWrite
	}
	if messageType == websocket.TextMessage {
		c.written = append(c.written, data)
	}
	return nil
}

func (c *fakeConn) SetReadDeadline(time.Time) error   { return nil }
func (c *fakeConn) SetWriteDeadline(time.Time) error  { return nil }
func (c *fakeConn) SetPongHandler(func(string) error) {}

func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

// drop simulates the remote side going away.
func (c *fakeConn) drop() {
	close(c.in)
}

func (c *fakeConn) frames() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]byte(nil), c.written...)
}

type fakeDialer struct {
	mu        sync.Mutex
	addresses []string
	conns     []*fakeConn
	failures  int
}

func (d *fakeDialer) Dial(_ context.Context, address string) (Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.addresses = append(d.addresses, address)
	if d.failures > 0 {
		d.failures--
		return nil, errors.New("connection refused")
	}
	c := newFakeConn()
	d.conns = append(d.conns, c)
	return c, nil
}

func (d *fakeDialer) dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.addresses)
}

func (d *fakeDialer) last() *fakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.conns[len(d.conns)-1]
}

type frameSink struct {
	mu     sync.Mutex
	frames []string
}

func (s *frameSink) handle(raw []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = append(s.frames, string(raw))
	return nil
}

func (s *frameSink) all() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.frames...)
}

const testDelay = 20 * time.Millisecond

func newTestTransport(dialer Dialer, sink *frameSink) *Transport {
	return New(Options{
		BaseURL:   "ws://localhost:8000/",
		ClientID:  "console 1",
		Reconnect: backoff.NewConstantBackOff(testDelay),
	}, dialer, sink.handle, logger.NewNopLogger())
}

func waitState(t *testing.T, tr *Transport, s State) {
	t.Helper()
	require.Eventually(t, func() bool { return tr.State() == s }, time.Second, time.Millisecond)
}

func TestConnectOpensAndForwardsFramesInOrder(t *testing.T) {
	dialer := &fakeDialer{}
	sink := &frameSink{}
	tr := newTestTransport(dialer, sink)
	defer tr.Disconnect()

	tr.Connect()
	waitState(t, tr, StateOpen)
	assert.Equal(t, []string{"ws://localhost:8000/ws/console%201"}, dialer.addresses)
	assert.NoError(t, tr.LastError())

	conn := dialer.last()
	conn.in <- []byte(`{"type":"a"}`)
	conn.in <- []byte(`{"type":"b"}`)
	conn.in <- []byte(`not json`)

	require.Eventually(t, func() bool { return len(sink.all()) == 3 }, time.Second, time.Millisecond)
	assert.Equal(t, []string{`{"type":"a"}`, `{"type":"b"}`, `not json`}, sink.all())
	assert.True(t, tr.Connected())
}

func TestConnectIsIdempotentWhileOpen(t *testing.T) {
	dialer := &fakeDialer{}
	tr := newTestTransport(dialer, &frameSink{})
	defer tr.Disconnect()

	tr.Connect()
	tr.Connect()
	waitState(t, tr, StateOpen)
	tr.Connect()

	assert.Equal(t, 1, dialer.dials())
}

func TestSendRequiresOpenChannel(t *testing.T) {
	dialer := &fakeDialer{}
	tr := newTestTransport(dialer, &frameSink{})
	defer tr.Disconnect()

	assert.ErrorIs(t, tr.Send([]byte(`{"action":"get_status","data":{}}`)), ErrNotConnected)

	tr.Connect()
	waitState(t, tr, StateOpen)
	require.NoError(t, tr.Send([]byte(`{"action":"get_status","data":{}}`)))
	assert.Equal(t, [][]byte{[]byte(`{"action":"get_status","data":{}}`)}, dialer.last().frames())
}

func TestCloseSchedulesExactlyOneReconnect(t *testing.T) {
	dialer := &fakeDialer{}
	tr := newTestTransport(dialer, &frameSink{})
	defer tr.Disconnect()

	var mu sync.Mutex
	var states []State
	tr.OnStateChange(func(s State, _ error) {
		mu.Lock()
		states = append(states, s)
		mu.Unlock()
	})

	tr.Connect()
	waitState(t, tr, StateOpen)
	dialer.last().drop()

	require.Eventually(t, func() bool { return dialer.dials() == 2 }, time.Second, time.Millisecond)
	waitState(t, tr, StateOpen)

	time.Sleep(5 * testDelay)
	assert.Equal(t, 2, dialer.dials())
	assert.NotSame(t, dialer.conns[0], dialer.last())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []State{StateConnecting, StateOpen, StateClosed, StateConnecting, StateOpen}, states)
}

func TestDialFailureRecordsErrorAndRetries(t *testing.T) {
	dialer := &fakeDialer{failures: 1}
	tr := New(Options{
		BaseURL:   "ws://localhost:8000",
		ClientID:  "console",
		Reconnect: backoff.NewConstantBackOff(200 * time.Millisecond),
	}, dialer, (&frameSink{}).handle, logger.NewNopLogger())
	defer tr.Disconnect()

	tr.Connect()
	require.Eventually(t, func() bool { return tr.LastError() != nil }, time.Second, time.Millisecond)
	assert.ErrorIs(t, tr.Send([]byte("x")), ErrNotConnected)

	waitState(t, tr, StateOpen)
	assert.Equal(t, 2, dialer.dials())
	assert.NoError(t, tr.LastError())
}

func TestDisconnectSuppressesReconnect(t *testing.T) {
	dialer := &fakeDialer{}
	tr := newTestTransport(dialer, &frameSink{})

	tr.Connect()
	waitState(t, tr, StateOpen)
	tr.Disconnect()

	assert.Equal(t, StateClosed, tr.State())
	time.Sleep(5 * testDelay)
	assert.Equal(t, 1, dialer.dials())
	assert.Equal(t, StateClosed, tr.State())

	tr.Connect()
	waitState(t, tr, StateOpen)
	assert.Equal(t, 2, dialer.dials())
	tr.Disconnect()
}

func TestWriteErrorIsRecordedWithoutClosing(t *testing.T) {
	dialer := &fakeDialer{}
	tr := newTestTransport(dialer, &frameSink{})
	defer tr.Disconnect()

	tr.Connect()
	waitState(t, tr, StateOpen)

	boom := errors.New("broken pipe")
	conn := dialer.last()
	conn.mu.Lock()
	conn.failWrite = boom
	conn.mu.Unlock()

	err := tr.Send([]byte("x"))
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, tr.LastError(), boom)
	assert.Equal(t, StateOpen, tr.State())
}

func TestStopBackOffDisablesReconnect(t *testing.T) {
	dialer := &fakeDialer{}
	tr := New(Options{BaseURL: "ws://localhost", ClientID: "c", Reconnect: &backoff.StopBackOff{}},
		dialer, (&frameSink{}).handle, logger.NewNopLogger())
	defer tr.Disconnect()

	tr.Connect()
	waitState(t, tr, StateOpen)
	dialer.last().drop()
	waitState(t, tr, StateClosed)

	time.Sleep(5 * testDelay)
	assert.Equal(t, 1, dialer.dials())
}
