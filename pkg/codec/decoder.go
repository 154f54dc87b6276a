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

// DecoderStats are cumulative counters for one Decoder.
type DecoderStats struct {
	ChunksWritten    int
	BytesWritten     int64
	FramesDelivered  int
	ProcessesSpawned int
}

// Decoder turns encoded chunks into raw frames through a backend process.
type Decoder struct {
	launcher     ports.BackendLauncher
	log          ports.Logger
	flushTimeout time.Duration
	errs         *errorChannel

	mu         sync.Mutex
	state      State
	config     DecoderConfig
	descriptor codecs.Descriptor
	backend    ports.Backend
	failed     bool
	generation int

	// first chunk written to the current backend
	hasFirst       bool
	firstTimestamp int64
	firstDuration  int64
	chunkCount     int

	pending []*media.RawFrame
	stats   DecoderStats
}

// NewDecoder creates an unconfigured Decoder.
func NewDecoder(launcher ports.BackendLauncher, opts ...Option) *Decoder {
	o := buildOptions(opts)
	log := o.logger.WithComponent("decoder")
	return &Decoder{
		launcher:     launcher,
		log:          log,
		flushTimeout: o.flushTimeout,
		errs:         newErrorChannel(o.errorBuffer, log),
	}
}

// Configure validates cfg and moves the decoder to StateConfigured.
func (d *Decoder) Configure(cfg DecoderConfig) error {
	resolved, desc, err := cfg.resolve()
	if err != nil {
		return err
	}

	d.mu.Lock()
	if d.state == StateClosed {
		d.mu.Unlock()
		return fmt.Errorf("%w: configure on closed decoder", ErrInvalidState)
	}

	var stale ports.Backend
	if d.backend != nil {
		if d.failed {
			stale = d.backend
			d.backend = nil
			d.generation++
		} else {
			d.log.Warn("Reconfigured while backend %s is running, keeping it", d.backend.ID())
		}
	}

	d.config = resolved
	d.descriptor = desc
	d.state = StateConfigured
	d.mu.Unlock()

	d.log.Info("Configured %s %dx%d", desc.ID, resolved.CodedWidth, resolved.CodedHeight)

	if stale != nil {
		_ = stale.Terminate()
	}
	return nil
}

// Decode writes chunk to the backend, spawning it if needed.
// Backend failures are reported on Errors, not returned.
func (d *Decoder) Decode(chunk *media.EncodedChunk) error {
	d.mu.Lock()
	if d.state != StateConfigured {
		state := d.state
		d.mu.Unlock()
		return fmt.Errorf("%w: decode in state %s", ErrInvalidState, state)
	}
	if chunk == nil {
		d.mu.Unlock()
		return fmt.Errorf("%w: chunk is nil", media.ErrInvalidArgument)
	}

	if d.backend == nil {
		if err := d.launchLocked(); err != nil {
			d.mu.Unlock()
			d.reportError(err)
			return nil
		}
	}
	b := d.backend

	if !d.hasFirst {
		d.hasFirst = true
		d.firstTimestamp = chunk.TimestampMicros
		d.firstDuration = chunk.DurationMicros
	}
	d.chunkCount++
	d.stats.ChunksWritten++
	d.stats.BytesWritten += int64(len(chunk.Data))
	d.mu.Unlock()

	if err := b.Write(chunk.Data); err != nil {
		d.reportError(err)
	}
	return nil
}

func (d *Decoder) launchLocked() error {
	d.generation++
	inv := ports.Invocation{
		Direction:   ports.DirectionDecode,
		Descriptor:  d.descriptor,
		PixelFormat: media.PixelFormatI420,
	}
	if d.config.Delivery == DeliverPerFrame {
		inv.Width = d.config.CodedWidth
		inv.Height = d.config.CodedHeight
	}

	b, err := d.launcher.Launch(inv, &decoderSink{d: d, generation: d.generation})
	if err != nil {
		return err
	}
	d.backend = b
	d.failed = false
	d.hasFirst = false
	d.chunkCount = 0
	d.stats.ProcessesSpawned++
	return nil
}

// Flush finishes the running backend and returns the frames it produced.
// The next Decode spawns a new backend.
func (d *Decoder) Flush() ([]*media.RawFrame, error) {
	d.mu.Lock()
	if d.state == StateClosed {
		d.mu.Unlock()
		return nil, fmt.Errorf("%w: flush on closed decoder", ErrInvalidState)
	}
	b := d.backend
	if b == nil {
		d.mu.Unlock()
		return nil, nil
	}
	d.backend = nil
	d.log.Info("Flushing %d chunks", d.chunkCount)
	d.mu.Unlock()

	if err := b.Finish(d.flushTimeout); err != nil {
		d.mu.Lock()
		d.generation++
		d.pending = nil
		d.mu.Unlock()

		d.log.Warn("Flush failed: %s", err.Error())
		d.errs.send(err)
		return nil, errors.Join(err, b.Terminate())
	}
	_ = b.Terminate()

	d.mu.Lock()
	out := d.pending
	d.pending = nil
	d.mu.Unlock()
	return out, nil
}

// Close flushes, terminates the backend and moves to StateClosed.
// The Errors channel is closed. Closing again returns nil, nil.
func (d *Decoder) Close() ([]*media.RawFrame, error) {
	d.mu.Lock()
	if d.state == StateClosed {
		d.mu.Unlock()
		return nil, nil
	}
	d.mu.Unlock()

	frames, flushErr := d.Flush()

	d.mu.Lock()
	b := d.backend
	d.backend = nil
	d.state = StateClosed
	d.generation++
	d.mu.Unlock()

	var termErr error
	if b != nil {
		termErr = b.Terminate()
	}
	d.errs.close()
	d.log.Info("Closed")

	return frames, errors.Join(flushErr, termErr)
}

// Errors returns the asynchronous error channel. It is closed by Close.
func (d *Decoder) Errors() <-chan error {
	return d.errs.ch
}

// State returns the current lifecycle state.
func (d *Decoder) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Stats returns a snapshot of the counters.
func (d *Decoder) Stats() DecoderStats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stats
}

func (d *Decoder) reportError(err error) {
	d.log.Warn("Backend error: %s", err.Error())
	d.errs.send(err)
}

// frames cuts data according to the delivery mode. Callers hold d.mu.
func (d *Decoder) frames(data []byte) ([]*media.RawFrame, error) {
	init := media.RawFrameInit{
		Timestamp:   media.At(d.firstTimestamp),
		Duration:    d.firstDuration,
		CodedWidth:  d.config.CodedWidth,
		CodedHeight: d.config.CodedHeight,
		Format:      media.PixelFormatI420,
	}

	if d.config.Delivery != DeliverPerFrame {
		f, err := media.NewRawFrame(data, init)
		if err != nil {
			return nil, err
		}
		return []*media.RawFrame{f}, nil
	}

	size := media.I420Size(d.config.CodedWidth, d.config.CodedHeight)
	count := len(data) / size
	out := make([]*media.RawFrame, 0, count)
	init.Duration = d.config.FrameDurationMicros
	for i := 0; i < count; i++ {
		init.Timestamp = media.At(d.firstTimestamp + int64(i)*d.config.FrameDurationMicros)
		lo, hi := i*size, (i+1)*size
		f, err := media.NewRawFrame(data[lo:hi:hi], init)
		if err != nil {
			return out, err
		}
		out = append(out, f)
	}

	if rem := len(data) % size; rem != 0 {
		return out, fmt.Errorf("%w: %d trailing bytes do not form a %dx%d frame",
			media.ErrInvalidArgument, rem, d.config.CodedWidth, d.config.CodedHeight)
	}
	return out, nil
}

type decoderSink struct {
	d          *Decoder
	generation int
}

func (s *decoderSink) OnOutputEnd(data []byte) {
	d := s.d
	d.mu.Lock()
	defer d.mu.Unlock()
	if s.generation != d.generation || len(data) == 0 || !d.hasFirst {
		return
	}

	frames, err := d.frames(data)
	d.pending = append(d.pending, frames...)
	d.stats.FramesDelivered += len(frames)
	d.log.Debug("Delivered %d frames", len(frames))
	if err != nil {
		d.errs.send(err)
	}
}

func (s *decoderSink) OnDiagnostic(text string) {}

func (s *decoderSink) OnError(err error) {
	d := s.d
	d.mu.Lock()
	if s.generation == d.generation {
		d.failed = true
	}
	d.mu.Unlock()
	d.reportError(err)
}
