// Package codec implements chunk-oriented video encoder and decoder state
// machines on top of an external backend process.
//
// An instance owns at most one backend, spawned on the first Encode or
// Decode after Configure and released by Flush or Close. Output produced
// by the backend is returned from Flush and Close; asynchronous backend
// failures arrive on Errors.
package codec

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/user/codecbridge/pkg/codecs"
	"github.com/user/codecbridge/pkg/media"
	"github.com/user/codecbridge/pkg/ports"
)

// EncodeOptions carries per-frame hints.
type EncodeOptions struct {
	// KeyFrame asks for a keyframe. It is counted but the backend decides
	// the GOP structure.
	KeyFrame bool
}

// EncoderStats are cumulative counters for one Encoder.
type EncoderStats struct {
	FramesWritten    int
	KeyFrameHints    int
	BytesWritten     int64
	ChunksDelivered  int
	ProcessesSpawned int
}

// Encoder turns raw frames into encoded chunks through a backend process.
type Encoder struct {
	launcher     ports.BackendLauncher
	log          ports.Logger
	flushTimeout time.Duration
	errs         *errorChannel

	mu         sync.Mutex
	state      State
	config     EncoderConfig
	descriptor codecs.Descriptor
	backend    ports.Backend
	failed     bool
	generation int

	frameCount    int
	lastTimestamp int64
	lastDuration  int64

	pending []*media.EncodedChunk
	stats   EncoderStats
}

// NewEncoder creates an unconfigured Encoder.
func NewEncoder(launcher ports.BackendLauncher, opts ...Option) *Encoder {
	o := buildOptions(opts)
	log := o.logger.WithComponent("encoder")
	return &Encoder{
		launcher:     launcher,
		log:          log,
		flushTimeout: o.flushTimeout,
		errs:         newErrorChannel(o.errorBuffer, log),
	}
}

// Configure validates cfg and moves the encoder to StateConfigured.
// A running backend keeps the parameters it was spawned with.
func (e *Encoder) Configure(cfg EncoderConfig) error {
	resolved, desc, err := cfg.resolve()
	if err != nil {
		return err
	}

	e.mu.Lock()
	if e.state == StateClosed {
		e.mu.Unlock()
		return fmt.Errorf("%w: configure on closed encoder", ErrInvalidState)
	}

	var stale ports.Backend
	if e.backend != nil {
		if e.failed {
			stale = e.backend
			e.backend = nil
			e.generation++
		} else {
			e.log.Warn("Reconfigured while backend %s is running, keeping it", e.backend.ID())
		}
	}

	e.config = resolved
	e.descriptor = desc
	e.frameCount = 0
	e.state = StateConfigured
	e.mu.Unlock()

	e.log.Info("Configured %s %dx%d", desc.ID, resolved.Width, resolved.Height)

	if stale != nil {
		_ = stale.Terminate()
	}
	return nil
}

// Encode writes frame to the backend, spawning it if needed.
// Backend failures are reported on Errors, not returned.
func (e *Encoder) Encode(frame *media.RawFrame, opts EncodeOptions) error {
	e.mu.Lock()
	if e.state != StateConfigured {
		state := e.state
		e.mu.Unlock()
		return fmt.Errorf("%w: encode in state %s", ErrInvalidState, state)
	}
	if frame == nil || frame.Closed() {
		e.mu.Unlock()
		return fmt.Errorf("%w: frame is nil or closed", media.ErrInvalidArgument)
	}

	if e.backend == nil {
		if err := e.launchLocked(); err != nil {
			e.mu.Unlock()
			e.reportError(err)
			return nil
		}
	}
	b := e.backend

	e.frameCount++
	e.lastTimestamp = frame.TimestampMicros
	e.lastDuration = frame.DurationMicros
	e.stats.FramesWritten++
	e.stats.BytesWritten += int64(len(frame.Data))
	if opts.KeyFrame {
		e.stats.KeyFrameHints++
	}
	e.mu.Unlock()

	if err := b.Write(frame.Data); err != nil {
		e.reportError(err)
	}
	return nil
}

func (e *Encoder) launchLocked() error {
	e.generation++
	inv := ports.Invocation{
		Direction:        ports.DirectionEncode,
		Descriptor:       e.descriptor,
		Width:            e.config.Width,
		Height:           e.config.Height,
		PixelFormat:      e.config.PixelFormat,
		FrameRate:        e.config.Framerate,
		Bitrate:          e.config.Bitrate,
		KeyframeInterval: e.config.KeyframeInterval,
	}

	b, err := e.launcher.Launch(inv, &encoderSink{e: e, generation: e.generation})
	if err != nil {
		return err
	}
	e.backend = b
	e.failed = false
	e.stats.ProcessesSpawned++
	return nil
}

// Flush finishes the running backend and returns the chunks it produced.
// The next Encode spawns a new backend.
func (e *Encoder) Flush() ([]*media.EncodedChunk, error) {
	e.mu.Lock()
	if e.state == StateClosed {
		e.mu.Unlock()
		return nil, fmt.Errorf("%w: flush on closed encoder", ErrInvalidState)
	}
	b := e.backend
	if b == nil {
		e.mu.Unlock()
		return nil, nil
	}
	e.backend = nil
	e.log.Info("Flushing %d frames", e.frameCount)
	e.mu.Unlock()

	// The sink locks e.mu, so Finish runs unlocked.
	if err := b.Finish(e.flushTimeout); err != nil {
		e.mu.Lock()
		e.generation++
		e.pending = nil
		e.mu.Unlock()

		e.log.Warn("Flush failed: %s", err.Error())
		e.errs.send(err)
		return nil, errors.Join(err, b.Terminate())
	}
	_ = b.Terminate()

	e.mu.Lock()
	out := e.pending
	e.pending = nil
	e.mu.Unlock()
	return out, nil
}

// Close flushes, terminates the backend and moves to StateClosed.
// The Errors channel is closed. Closing again returns nil, nil.
func (e *Encoder) Close() ([]*media.EncodedChunk, error) {
	e.mu.Lock()
	if e.state == StateClosed {
		e.mu.Unlock()
		return nil, nil
	}
	e.mu.Unlock()

	chunks, flushErr := e.Flush()

	e.mu.Lock()
	b := e.backend
	e.backend = nil
	e.state = StateClosed
	e.generation++
	e.mu.Unlock()

	var termErr error
	if b != nil {
		termErr = b.Terminate()
	}
	e.errs.close()
	e.log.Info("Closed")

	return chunks, errors.Join(flushErr, termErr)
}

// Errors returns the asynchronous error channel. It is closed by Close.
func (e *Encoder) Errors() <-chan error {
	return e.errs.ch
}

// State returns the current lifecycle state.
func (e *Encoder) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Stats returns a snapshot of the counters.
func (e *Encoder) Stats() EncoderStats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stats
}

func (e *Encoder) reportError(err error) {
	e.log.Warn("Backend error: %s", err.Error())
	e.errs.send(err)
}

// encoderSink binds backend events to the generation they were spawned for.
type encoderSink struct {
	e          *Encoder
	generation int
}

func (s *encoderSink) OnOutputEnd(data []byte) {
	e := s.e
	e.mu.Lock()
	defer e.mu.Unlock()
	if s.generation != e.generation || len(data) == 0 {
		return
	}

	kind := media.ChunkDelta
	if e.frameCount%e.config.KeyframeInterval == 0 {
		kind = media.ChunkKey
	}

	chunk, err := media.NewEncodedChunk(media.EncodedChunkInit{
		Kind:      kind,
		Timestamp: e.lastTimestamp,
		Duration:  e.lastDuration,
		Data:      data,
	})
	if err != nil {
		e.errs.send(err)
		return
	}

	e.pending = append(e.pending, chunk)
	e.stats.ChunksDelivered++
	e.log.Debug("Delivered %s chunk: %d bytes at %d us", kind, len(data), e.lastTimestamp)
}

func (s *encoderSink) OnDiagnostic(text string) {}

func (s *encoderSink) OnError(err error) {
	e := s.e
	e.mu.Lock()
	if s.generation == e.generation {
		e.failed = true
	}
	e.mu.Unlock()
	e.reportError(err)
}
