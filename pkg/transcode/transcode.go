// Package transcode converts a compressed input into another codec in one
// backend run.
package transcode

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/user/codecbridge/pkg/adapters/logger"
	"github.com/user/codecbridge/pkg/codecs"
	"github.com/user/codecbridge/pkg/ports"
)

// DefaultTimeout bounds one transcode run.
const DefaultTimeout = 5 * time.Minute

// ErrNoOutput is returned when the backend finished without writing anything.
var ErrNoOutput = errors.New("transcode: backend produced no output")

// Request describes one transcode run.
type Request struct {
	Codec        string
	Bitrate      int
	TrimStart    time.Duration
	TrimDuration time.Duration
}

// Result is the output of a run.
type Result struct {
	Data       []byte
	Descriptor codecs.Descriptor
}

// Transcoder runs transcode-direction backends.
type Transcoder struct {
	Launcher ports.BackendLauncher
	Timeout  time.Duration
	Logger   ports.Logger
}

// New creates a Transcoder with DefaultTimeout.
func New(launcher ports.BackendLauncher, log ports.Logger) *Transcoder {
	if log == nil {
		log = logger.NewNoop()
	}
	return &Transcoder{
		Launcher: launcher,
		Timeout:  DefaultTimeout,
		Logger:   log.WithComponent("transcode"),
	}
}

// Run writes input to a new backend and returns everything it produced.
// Backend errors are returned only when no output arrived.
func (t *Transcoder) Run(ctx context.Context, input []byte, req Request) (*Result, error) {
	desc, err := codecs.Lookup(req.Codec)
	if err != nil {
		return nil, err
	}
	if req.Bitrate < 0 || req.TrimStart < 0 || req.TrimDuration < 0 {
		return nil, fmt.Errorf("transcode: negative bitrate or trim")
	}

	sink := &collector{}
	b, err := t.Launcher.Launch(ports.Invocation{
		Direction:    ports.DirectionTranscode,
		Descriptor:   desc,
		Bitrate:      req.Bitrate,
		TrimStart:    req.TrimStart,
		TrimDuration: req.TrimDuration,
	}, sink)
	if err != nil {
		return nil, err
	}
	defer b.Terminate()

	// Kill the backend if the caller gives up.
	stop := context.AfterFunc(ctx, func() { _ = b.Terminate() })
	defer stop()

	if err := b.Write(input); err != nil {
		return nil, errors.Join(err, sink.err())
	}

	timeout := t.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if err := b.Finish(timeout); err != nil {
		return nil, err
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	data := sink.data()
	if len(data) == 0 {
		return nil, errors.Join(ErrNoOutput, sink.err())
	}
	if err := sink.err(); err != nil {
		t.Logger.Warn("Backend error: %s", err.Error())
	}
	return &Result{Data: data, Descriptor: desc}, nil
}

type collector struct {
	mu     sync.Mutex
	output []byte
	errs   []error
}

func (c *collector) OnOutputEnd(data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.output = data
}

func (c *collector) OnDiagnostic(string) {}

func (c *collector) OnError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errs = append(c.errs, err)
}

func (c *collector) data() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.output
}

func (c *collector) err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return errors.Join(c.errs...)
}
