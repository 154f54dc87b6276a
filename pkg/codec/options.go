package codec

import (
	"sync"
	"time"

	"github.com/user/codecbridge/pkg/adapters/logger"
	"github.com/user/codecbridge/pkg/ports"
)

const defaultErrorBuffer = 32

type options struct {
	logger       ports.Logger
	flushTimeout time.Duration
	errorBuffer  int
}

// Option configures an Encoder or Decoder.
type Option func(*options)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l ports.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithFlushTimeout overrides ports.DefaultFlushTimeout.
func WithFlushTimeout(d time.Duration) Option {
	return func(o *options) {
		o.flushTimeout = d
	}
}

// WithErrorBuffer sets the capacity of the Errors channel.
func WithErrorBuffer(n int) Option {
	return func(o *options) {
		o.errorBuffer = n
	}
}

func buildOptions(opts []Option) options {
	o := options{
		logger:       logger.NewNoop(),
		flushTimeout: ports.DefaultFlushTimeout,
		errorBuffer:  defaultErrorBuffer,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.errorBuffer < 1 {
		o.errorBuffer = 1
	}
	return o
}

// errorChannel is a buffered error channel whose sends never block.
type errorChannel struct {
	mu     sync.Mutex
	ch     chan error
	closed bool
	log    ports.Logger
}

func newErrorChannel(size int, log ports.Logger) *errorChannel {
	return &errorChannel{ch: make(chan error, size), log: log}
}

func (e *errorChannel) send(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	select {
	case e.ch <- err:
	default:
		e.log.Warn("Error channel full, dropping: %s", err.Error())
	}
}

func (e *errorChannel) close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.closed = true
	close(e.ch)
}
