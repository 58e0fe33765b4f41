// Package transport keeps one duplex websocket per client identity open to the
// remote service and reconnects it after a fixed delay when it drops.
package transport

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"rag-pipeline-console/internal/pkg/logger"

	"github.com/cenkalti/backoff"
	"github.com/fasthttp/websocket"
)

type State string

const (
	StateConnecting State = "connecting"
	StateOpen       State = "open"
	StateClosed     State = "closed"
)

var ErrNotConnected = errors.New("not connected")

const (
	DefaultReconnectDelay = 3 * time.Second
	defaultWriteWait      = 10 * time.Second
	defaultPongWait       = 60 * time.Second
	defaultDialTimeout    = 10 * time.Second
)

// Conn is the part of a websocket connection the transport uses.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
	Close() error
}

type Dialer interface {
	Dial(ctx context.Context, address string) (Conn, error)
}

// WebsocketDialer dials with fasthttp/websocket.
type WebsocketDialer struct {
	HandshakeTimeout time.Duration
}

func (d WebsocketDialer) Dial(ctx context.Context, address string) (Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: d.HandshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, address, nil)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// FrameHandler receives every inbound text frame in receipt order.
type FrameHandler func(raw []byte) error

type Options struct {
	BaseURL  string
	ClientID string
	// Reconnect yields the delay before the single reconnect attempt that
	// follows a close. backoff.Stop disables reconnecting.
	Reconnect   backoff.BackOff
	PingPeriod  time.Duration
	PongWait    time.Duration
	WriteWait   time.Duration
	DialTimeout time.Duration
}

func (o *Options) defaults() {
	if o.Reconnect == nil {
		o.Reconnect = backoff.NewConstantBackOff(DefaultReconnectDelay)
	}
	if o.PongWait <= 0 {
		o.PongWait = defaultPongWait
	}
	if o.PingPeriod <= 0 || o.PingPeriod >= o.PongWait {
		o.PingPeriod = (o.PongWait * 9) / 10
	}
	if o.WriteWait <= 0 {
		o.WriteWait = defaultWriteWait
	}
	if o.DialTimeout <= 0 {
		o.DialTimeout = defaultDialTimeout
	}
}

type session struct {
	conn Conn
	done chan struct{}
}

type Transport struct {
	opts     Options
	dialer   Dialer
	onFrame  FrameHandler
	logger   logger.ILogger
	frameLog logger.ILogger

	mu        sync.Mutex
	state     State
	lastErr   error
	current   *session
	gen       uint64
	stopped   bool
	reconnect *time.Timer
	listeners []func(State, error)

	writeMu sync.Mutex
}

// New returns a closed Transport. Connect starts dialing; every inbound frame
// is passed to onFrame.
func New(opts Options, dialer Dialer, onFrame FrameHandler, log logger.ILogger) *Transport {
	opts.defaults()
	return &Transport{
		opts:     opts,
		dialer:   dialer,
		onFrame:  onFrame,
		logger:   log,
		frameLog: log,
		state:    StateClosed,
	}
}

// SetFrameLogger sends per-frame debug logging to a separate logger.
func (t *Transport) SetFrameLogger(l logger.ILogger) {
	t.frameLog = l
}

// OnStateChange registers fn for every state transition.
func (t *Transport) OnStateChange(fn func(State, error)) {
	t.mu.Lock()
	t.listeners = append(t.listeners, fn)
	t.mu.Unlock()
}

// URL is the address of this client's channel: <base>/ws/<client-id>.
func (t *Transport) URL() string {
	return strings.TrimRight(t.opts.BaseURL, "/") + "/ws/" + url.PathEscape(t.opts.ClientID)
}

func (t *Transport) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *Transport) LastError() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastErr
}

func (t *Transport) Connected() bool {
	return t.State() == StateOpen
}

// Connect opens the channel. It does nothing while a connection is open or
// being established, and re-enables reconnects after Disconnect.
func (t *Transport) Connect() {
	t.mu.Lock()
	if t.state == StateConnecting || t.state == StateOpen {
		t.mu.Unlock()
		return
	}
	t.stopped = false
	t.cancelReconnectLocked()
	t.gen++
	gen := t.gen
	notify := t.setStateLocked(StateConnecting)
	t.mu.Unlock()

	notify()
	go t.dial(gen)
}

// Disconnect closes the channel and suppresses reconnects until the next
// Connect.
func (t *Transport) Disconnect() {
	t.mu.Lock()
	t.stopped = true
	t.cancelReconnectLocked()
	t.gen++
	s := t.current
	t.current = nil
	notify := t.setStateLocked(StateClosed)
	t.mu.Unlock()

	if s != nil {
		close(s.done)
		t.writeMu.Lock()
		_ = s.conn.SetWriteDeadline(time.Now().Add(t.opts.WriteWait))
		_ = s.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		t.writeMu.Unlock()
		_ = s.conn.Close()
	}
	notify()
	t.logger.Info("Transport", "Disconnected", map[string]interface{}{"url": t.URL()})
}

// Send writes one text frame. It fails with ErrNotConnected unless the channel
// is open. Write errors are recorded but do not close the channel.
func (t *Transport) Send(payload []byte) error {
	t.mu.Lock()
	s := t.current
	open := t.state == StateOpen
	t.mu.Unlock()

	if !open || s == nil {
		return ErrNotConnected
	}

	t.writeMu.Lock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(t.opts.WriteWait))
	err := s.conn.WriteMessage(websocket.TextMessage, payload)
	t.writeMu.Unlock()

	if err != nil {
		t.recordError(err)
		return fmt.Errorf("send frame: %w", err)
	}
	t.frameLog.Debug("Transport", "Frame sent", map[string]interface{}{"bytes": len(payload)})
	return nil
}

func (t *Transport) dial(gen uint64) {
	address := t.URL()
	ctx, cancel := context.WithTimeout(context.Background(), t.opts.DialTimeout)
	conn, err := t.dialer.Dial(ctx, address)
	cancel()

	t.mu.Lock()
	if gen != t.gen || t.stopped {
		t.mu.Unlock()
		if conn != nil {
			_ = conn.Close()
		}
		return
	}
	if err != nil {
		t.lastErr = err
		notify := t.setStateLocked(StateClosed)
		t.scheduleReconnectLocked()
		t.mu.Unlock()

		notify()
		t.logger.Warn("Transport", "Dial failed", map[string]interface{}{"url": address, "error": err.Error()})
		return
	}

	s := &session{conn: conn, done: make(chan struct{})}
	t.current = s
	t.lastErr = nil
	notify := t.setStateLocked(StateOpen)
	t.mu.Unlock()

	notify()
	t.logger.Info("Transport", "Connected", map[string]interface{}{"url": address})

	go t.keepAlive(s)
	t.readLoop(gen, s)
}

func (t *Transport) readLoop(gen uint64, s *session) {
	_ = s.conn.SetReadDeadline(time.Now().Add(t.opts.PongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(t.opts.PongWait))
	})

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			t.handleClose(gen, s, err)
			return
		}
		_ = s.conn.SetReadDeadline(time.Now().Add(t.opts.PongWait))
		t.frameLog.Debug("Transport", "Frame received", map[string]interface{}{"bytes": len(data)})
		if t.onFrame != nil {
			// parse failures are reported by the handler itself
			_ = t.onFrame(data)
		}
	}
}

func (t *Transport) keepAlive(s *session) {
	ticker := time.NewTicker(t.opts.PingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			t.writeMu.Lock()
			_ = s.conn.SetWriteDeadline(time.Now().Add(t.opts.WriteWait))
			err := s.conn.WriteMessage(websocket.PingMessage, nil)
			t.writeMu.Unlock()
			if err != nil {
				t.recordError(err)
				return
			}
		}
	}
}

func (t *Transport) handleClose(gen uint64, s *session, err error) {
	t.mu.Lock()
	if gen != t.gen || t.current != s {
		t.mu.Unlock()
		return
	}
	t.current = nil
	close(s.done)
	if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		t.lastErr = err
	}
	notify := t.setStateLocked(StateClosed)
	t.scheduleReconnectLocked()
	t.mu.Unlock()

	_ = s.conn.Close()
	notify()
	t.logger.Warn("Transport", "Connection closed", map[string]interface{}{"url": t.URL(), "error": err.Error()})
}

func (t *Transport) recordError(err error) {
	t.mu.Lock()
	t.lastErr = err
	t.mu.Unlock()
	t.logger.Warn("Transport", "Socket error", map[string]interface{}{"error": err.Error()})
}

// scheduleReconnectLocked arms exactly one reconnect, replacing any pending one.
func (t *Transport) scheduleReconnectLocked() {
	if t.stopped {
		return
	}
	t.cancelReconnectLocked()

	delay := t.opts.Reconnect.NextBackOff()
	if delay == backoff.Stop {
		return
	}
	var timer *time.Timer
	timer = time.AfterFunc(delay, func() {
		t.mu.Lock()
		if t.reconnect != timer || t.stopped {
			t.mu.Unlock()
			return
		}
		t.reconnect = nil
		t.mu.Unlock()

		t.logger.Info("Transport", "Reconnecting", map[string]interface{}{"url": t.URL()})
		t.Connect()
	})
	t.reconnect = timer
}

func (t *Transport) cancelReconnectLocked() {
	if t.reconnect != nil {
		t.reconnect.Stop()
		t.reconnect = nil
	}
}

// setStateLocked records s and returns a function that notifies listeners
// once the lock is released.
func (t *Transport) setStateLocked(s State) func() {
	if t.state == s {
		return func() {}
	}
	t.state = s
	err := t.lastErr
	listeners := make([]func(State, error), len(t.listeners))
	copy(listeners, t.listeners)
	return func() {
		for _, fn := range listeners {
			fn(s, err)
		}
	}
}
