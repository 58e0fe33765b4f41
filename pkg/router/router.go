package router

import (
	"sync"

	"rag-pipeline-console/internal/pkg/logger"
	"rag-pipeline-console/pkg/events"
)

// Handler receives a parsed inbound message.
type Handler func(msg events.Message)

// Unregister removes a registration. It is safe to call more than once.
type Unregister func()

const errorBuffer = 16

type registration struct {
	id      uint64
	handler Handler
}

// Router dispatches inbound frames by their "type" discriminant.
// Each type has at most one handler; the last registration wins.
type Router struct {
	mu       sync.RWMutex
	handlers map[string]registration
	nextID   uint64

	last    *events.Message
	lastErr error
	errs    chan error

	logger logger.ILogger
}

// New returns an empty Router. Handler errors are logged through log and
// buffered for Errors.
func New(log logger.ILogger) *Router {
	return &Router{
		handlers: make(map[string]registration),
		errs:     make(chan error, errorBuffer),
		logger:   log,
	}
}

// Register installs h for msgType, replacing any previous handler. The returned
// function removes h only while it is still the current handler for msgType.
func (r *Router) Register(msgType string, h Handler) Unregister {
	r.mu.Lock()
	r.nextID++
	id := r.nextID
	r.handlers[msgType] = registration{id: id, handler: h}
	r.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			if cur, ok := r.handlers[msgType]; ok && cur.id == id {
				delete(r.handlers, msgType)
			}
		})
	}
}

// Dispatch parses raw and delivers it to the registered handler, if any.
// Parse failures are published on Errors() and the frame is dropped.
func (r *Router) Dispatch(raw []byte) error {
	msg, err := events.ParseMessage(raw)
	if err != nil {
		r.reportError(err)
		return err
	}

	r.mu.Lock()
	r.last = &msg
	reg, ok := r.handlers[msg.Type]
	r.mu.Unlock()

	if !ok {
		r.logger.Debug("Router", "No handler registered", map[string]interface{}{"type": msg.Type})
		return nil
	}

	reg.handler(msg)
	return nil
}

// LastMessage returns the most recently parsed message.
func (r *Router) LastMessage() (events.Message, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.last == nil {
		return events.Message{}, false
	}
	return *r.last, true
}

// LastError returns the most recent parse failure.
func (r *Router) LastError() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastErr
}

// Errors exposes parse failures. The channel is buffered; errors are dropped
// when nobody drains it.
func (r *Router) Errors() <-chan error {
	return r.errs
}

// Registered reports whether a handler is installed for msgType.
func (r *Router) Registered(msgType string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.handlers[msgType]
	return ok
}

func (r *Router) reportError(err error) {
	r.mu.Lock()
	r.lastErr = err
	r.mu.Unlock()

	r.logger.Warn("Router", "Dropping malformed frame", map[string]interface{}{"error": err.Error()})

	select {
	case r.errs <- err:
	default:
	}
}
