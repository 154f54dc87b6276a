package codec

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/user/codecbridge/pkg/codecs"
	"github.com/user/codecbridge/pkg/media"
	"github.com/user/codecbridge/pkg/mocks"
	"github.com/user/codecbridge/pkg/ports"
)

func newRawFrame(t *testing.T, width, height int, ts int64) *media.RawFrame {
	t.Helper()
	data := make([]byte, media.I420Size(width, height))
	for i := range data {
		data[i] = byte(i + int(ts))
	}
	f, err := media.NewRawFrame(data, media.RawFrameInit{
		Timestamp:   media.At(ts),
		Duration:    33333,
		CodedWidth:  width,
		CodedHeight: height,
	})
	if err != nil {
		t.Fatalf("NewRawFrame failed: %v", err)
	}
	return f
}

// drain collects every error until the channel is closed or empty.
func drain(ch <-chan error) []error {
	var errs []error
	for {
		select {
		case err, ok := <-ch:
			if !ok {
				return errs
			}
			errs = append(errs, err)
		default:
			return errs
		}
	}
}

func TestEncoderConfigureThenEncode(t *testing.T) {
	configs := []EncoderConfig{
		{Codec: "vp8", Width: 320, Height: 240},
		{Codec: "vp9", Width: 640, Height: 480, Bitrate: 2000000},
		{Codec: "avc1", Width: 1920, Height: 1080, KeyframeInterval: 60, Framerate: 25},
		{Codec: "av01", Width: 16, Height: 16, PixelFormat: media.PixelFormatNV12},
	}

	for _, cfg := range configs {
		t.Run(cfg.Codec, func(t *testing.T) {
			enc := NewEncoder(&mocks.Launcher{})
			if err := enc.Configure(cfg); err != nil {
				t.Fatalf("Configure failed: %v", err)
			}
			if err := enc.Encode(newRawFrame(t, cfg.Width, cfg.Height, 0), EncodeOptions{}); err != nil {
				t.Fatalf("Encode failed: %v", err)
			}
			if enc.State() != StateConfigured {
				t.Errorf("Expected state configured, got %s", enc.State())
			}
		})
	}
}

func TestEncoderEncodeBeforeConfigure(t *testing.T) {
	launcher := &mocks.Launcher{}
	enc := NewEncoder(launcher)

	err := enc.Encode(newRawFrame(t, 16, 16, 0), EncodeOptions{})
	if !errors.Is(err, ErrInvalidState) {
		t.Errorf("Expected ErrInvalidState, got %v", err)
	}
	if launcher.Launches() != 0 {
		t.Errorf("Expected no launches, got %d", launcher.Launches())
	}
}

func TestEncoderUnsupportedCodec(t *testing.T) {
	for _, id := range []string{"invalid", "theora", "VP8", "hevc"} {
		launcher := &mocks.Launcher{}
		enc := NewEncoder(launcher)
		err := enc.Configure(EncoderConfig{Codec: id, Width: 320, Height: 240})
		if !errors.Is(err, codecs.ErrUnsupportedCodec) {
			t.Errorf("Configure(%q): expected ErrUnsupportedCodec, got %v", id, err)
		}
		if enc.State() != StateUnconfigured {
			t.Errorf("Configure(%q): expected state unconfigured, got %s", id, enc.State())
		}
		if launcher.Launches() != 0 {
			t.Errorf("Configure(%q): expected no launches", id)
		}
	}

	for _, id := range codecs.Supported() {
		enc := NewEncoder(&mocks.Launcher{})
		if err := enc.Configure(EncoderConfig{Codec: id, Width: 320, Height: 240}); err != nil {
			t.Errorf("Configure(%q) failed: %v", id, err)
		}
	}
}

func TestEncoderInvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  EncoderConfig
	}{
		{"missing codec", EncoderConfig{Width: 320, Height: 240}},
		{"zero width", EncoderConfig{Codec: "vp8", Height: 240}},
		{"negative height", EncoderConfig{Codec: "vp8", Width: 320, Height: -1}},
		{"negative bitrate", EncoderConfig{Codec: "vp8", Width: 320, Height: 240, Bitrate: -1}},
		{"negative keyframe interval", EncoderConfig{Codec: "vp8", Width: 320, Height: 240, KeyframeInterval: -5}},
		{"negative framerate", EncoderConfig{Codec: "vp8", Width: 320, Height: 240, Framerate: -30}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enc := NewEncoder(&mocks.Launcher{})
			if err := enc.Configure(tt.cfg); !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("Expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}

func TestEncoderInvalidFrame(t *testing.T) {
	enc := NewEncoder(&mocks.Launcher{})
	if err := enc.Configure(EncoderConfig{Codec: "vp8", Width: 16, Height: 16}); err != nil {
		t.Fatalf("Configure failed: %v", err)
	}

	if err := enc.Encode(nil, EncodeOptions{}); !errors.Is(err, media.ErrInvalidArgument) {
		t.Errorf("nil frame: expected ErrInvalidArgument, got %v", err)
	}

	f := newRawFrame(t, 16, 16, 0)
	f.Close()
	if err := enc.Encode(f, EncodeOptions{}); !errors.Is(err, media.ErrInvalidArgument) {
		t.Errorf("closed frame: expected ErrInvalidArgument, got %v", err)
	}
}

func TestEncoderFiveFrameScenario(t *testing.T) {
	launcher := &mocks.Launcher{}
	enc := NewEncoder(launcher)

	if err := enc.Configure(EncoderConfig{Codec: "vp8", Width: 320, Height: 240, Bitrate: 500000}); err != nil {
		t.Fatalf("Configure failed: %v", err)
	}

	for i, ts := range []int64{0, 33333, 66666, 99999, 133332} {
		if err := enc.Encode(newRawFrame(t, 320, 240, ts), EncodeOptions{KeyFrame: i == 0}); err != nil {
			t.Fatalf("Encode failed at frame %d: %v", i, err)
		}
	}

	chunks, err := enc.Close()
	if err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if len(chunks) != 1 {
		t.Fatalf("Expected exactly one chunk, got %d", len(chunks))
	}
	if chunks[0].TimestampMicros != 133332 {
		t.Errorf("Expected timestamp 133332, got %d", chunks[0].TimestampMicros)
	}
	if chunks[0].ByteLength() == 0 {
		t.Error("Expected non-empty chunk data")
	}
	// 5 % 30 != 0
	if chunks[0].Kind != media.ChunkDelta {
		t.Errorf("Expected delta chunk, got %s", chunks[0].Kind)
	}

	if launcher.Launches() != 1 {
		t.Fatalf("Expected one launch, got %d", launcher.Launches())
	}
	inv := launcher.Invocations[0]
	if inv.Direction != ports.DirectionEncode || inv.Descriptor.Compressor != "libvpx" {
		t.Errorf("Unexpected invocation: %+v", inv)
	}
	if inv.Bitrate != 500000 || inv.KeyframeInterval != DefaultKeyframeInterval || inv.FrameRate != DefaultFramerate {
		t.Errorf("Unexpected invocation parameters: %+v", inv)
	}
	if got := len(launcher.Last().Written()); got != 5*media.I420Size(320, 240) {
		t.Errorf("Expected %d bytes written, got %d", 5*media.I420Size(320, 240), got)
	}

	stats := enc.Stats()
	if stats.FramesWritten != 5 || stats.KeyFrameHints != 1 || stats.ChunksDelivered != 1 || stats.ProcessesSpawned != 1 {
		t.Errorf("Unexpected stats: %+v", stats)
	}
}

func TestEncoderKeyframeAtDispatch(t *testing.T) {
	enc := NewEncoder(&mocks.Launcher{})
	if err := enc.Configure(EncoderConfig{Codec: "vp8", Width: 16, Height: 16, KeyframeInterval: 5}); err != nil {
		t.Fatalf("Configure failed: %v", err)
	}
	for i := 0; i < 10; i++ {
		if err := enc.Encode(newRawFrame(t, 16, 16, int64(i)*33333), EncodeOptions{}); err != nil {
			t.Fatalf("Encode failed: %v", err)
		}
	}

	chunks, err := enc.Flush()
	if err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
	if len(chunks) != 1 || chunks[0].Kind != media.ChunkKey {
		t.Fatalf("Expected one key chunk, got %+v", chunks)
	}
}

func TestEncoderFlushDeliversOnce(t *testing.T) {
	launcher := &mocks.Launcher{}
	enc := NewEncoder(launcher)
	if err := enc.Configure(EncoderConfig{Codec: "vp8", Width: 16, Height: 16}); err != nil {
		t.Fatalf("Configure failed: %v", err)
	}

	chunks, err := enc.Flush()
	if err != nil || chunks != nil {
		t.Fatalf("Flush without backend: got %v, %v", chunks, err)
	}

	if err := enc.Encode(newRawFrame(t, 16, 16, 0), EncodeOptions{}); err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	chunks, err = enc.Flush()
	if err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("Expected one chunk, got %d", len(chunks))
	}

	chunks, err = enc.Flush()
	if err != nil || len(chunks) != 0 {
		t.Errorf("Second flush: got %d chunks, %v", len(chunks), err)
	}

	// A new process is spawned for frames after a flush.
	if err := enc.Encode(newRawFrame(t, 16, 16, 33333), EncodeOptions{}); err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if launcher.Launches() != 2 {
		t.Errorf("Expected two launches, got %d", launcher.Launches())
	}
}

func TestEncoderCloseIsTerminal(t *testing.T) {
	launcher := &mocks.Launcher{}
	enc := NewEncoder(launcher)
	if err := enc.Configure(EncoderConfig{Codec: "vp8", Width: 16, Height: 16}); err != nil {
		t.Fatalf("Configure failed: %v", err)
	}
	if err := enc.Encode(newRawFrame(t, 16, 16, 0), EncodeOptions{}); err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	first, err := enc.Close()
	if err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if len(first) != 1 {
		t.Fatalf("Expected one chunk from Close, got %d", len(first))
	}
	if enc.State() != StateClosed {
		t.Errorf("Expected state closed, got %s", enc.State())
	}
	if launcher.Last().Terminated() == 0 {
		t.Error("Expected backend to be terminated")
	}

	second, err := enc.Close()
	if err != nil || second != nil {
		t.Errorf("Second Close: got %v, %v", second, err)
	}

	if err := enc.Encode(newRawFrame(t, 16, 16, 0), EncodeOptions{}); !errors.Is(err, ErrInvalidState) {
		t.Errorf("Encode after Close: expected ErrInvalidState, got %v", err)
	}
	if _, err := enc.Flush(); !errors.Is(err, ErrInvalidState) {
		t.Errorf("Flush after Close: expected ErrInvalidState, got %v", err)
	}
	if err := enc.Configure(EncoderConfig{Codec: "vp8", Width: 16, Height: 16}); !errors.Is(err, ErrInvalidState) {
		t.Errorf("Configure after Close: expected ErrInvalidState, got %v", err)
	}

	if _, ok := <-enc.Errors(); ok {
		t.Error("Expected the error channel to be closed")
	}
}

func TestEncoderCloseUnconfigured(t *testing.T) {
	enc := NewEncoder(&mocks.Launcher{})
	chunks, err := enc.Close()
	if err != nil || chunks != nil {
		t.Errorf("Close: got %v, %v", chunks, err)
	}
	if enc.State() != StateClosed {
		t.Errorf("Expected state closed, got %s", enc.State())
	}
}

func TestEncoderSpawnFailure(t *testing.T) {
	spawnErr := fmt.Errorf("%w: ffmpeg missing", ports.ErrBackendSpawn)
	launcher := &mocks.Launcher{
		LaunchFunc: func(ports.Invocation, ports.BackendSink) (ports.Backend, error) {
			return nil, spawnErr
		},
	}
	enc := NewEncoder(launcher)
	if err := enc.Configure(EncoderConfig{Codec: "vp8", Width: 16, Height: 16}); err != nil {
		t.Fatalf("Configure failed: %v", err)
	}

	if err := enc.Encode(newRawFrame(t, 16, 16, 0), EncodeOptions{}); err != nil {
		t.Fatalf("Encode should not return backend errors, got %v", err)
	}

	errs := drain(enc.Errors())
	if len(errs) != 1 || !errors.Is(errs[0], ports.ErrBackendSpawn) {
		t.Errorf("Expected one ErrBackendSpawn, got %v", errs)
	}
	if enc.State() != StateConfigured {
		t.Errorf("Expected state configured, got %s", enc.State())
	}
}

func TestEncoderWriteFailure(t *testing.T) {
	launcher := &mocks.Launcher{
		Configure: func(b *mocks.Backend) {
			b.WriteFunc = func([]byte) error {
				return fmt.Errorf("%w: broken pipe", ports.ErrBackendWrite)
			}
		},
	}
	enc := NewEncoder(launcher)
	if err := enc.Configure(EncoderConfig{Codec: "vp8", Width: 16, Height: 16}); err != nil {
		t.Fatalf("Configure failed: %v", err)
	}
	if err := enc.Encode(newRawFrame(t, 16, 16, 0), EncodeOptions{}); err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	errs := drain(enc.Errors())
	if len(errs) != 1 || !errors.Is(errs[0], ports.ErrBackendWrite) {
		t.Errorf("Expected one ErrBackendWrite, got %v", errs)
	}
}

func TestEncoderFlushTimeout(t *testing.T) {
	launcher := &mocks.Launcher{
		Configure: func(b *mocks.Backend) {
			b.FinishFunc = func(timeout time.Duration) error {
				return fmt.Errorf("%w after %s", ports.ErrFlushTimeout, timeout)
			}
		},
	}
	enc := NewEncoder(launcher, WithFlushTimeout(50*time.Millisecond))
	if err := enc.Configure(EncoderConfig{Codec: "vp8", Width: 16, Height: 16}); err != nil {
		t.Fatalf("Configure failed: %v", err)
	}
	if err := enc.Encode(newRawFrame(t, 16, 16, 0), EncodeOptions{}); err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	chunks, err := enc.Close()
	if !errors.Is(err, ports.ErrFlushTimeout) {
		t.Fatalf("Expected ErrFlushTimeout, got %v", err)
	}
	if len(chunks) != 0 {
		t.Errorf("Expected no chunks, got %d", len(chunks))
	}
	if enc.State() != StateClosed {
		t.Errorf("Expected state closed after failed close, got %s", enc.State())
	}

	b := launcher.Last()
	if b.Terminated() == 0 {
		t.Error("Expected backend to be terminated after timeout")
	}
	if len(b.FinishCalls) != 1 || b.FinishCalls[0] != 50*time.Millisecond {
		t.Errorf("Unexpected Finish calls: %v", b.FinishCalls)
	}
}

func TestEncoderReconfigure(t *testing.T) {
	launcher := &mocks.Launcher{}
	enc := NewEncoder(launcher)
	if err := enc.Configure(EncoderConfig{Codec: "vp8", Width: 16, Height: 16}); err != nil {
		t.Fatalf("Configure failed: %v", err)
	}
	if err := enc.Encode(newRawFrame(t, 16, 16, 0), EncodeOptions{}); err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	// A live backend survives reconfiguration.
	if err := enc.Configure(EncoderConfig{Codec: "vp9", Width: 16, Height: 16}); err != nil {
		t.Fatalf("Reconfigure failed: %v", err)
	}
	if err := enc.Encode(newRawFrame(t, 16, 16, 33333), EncodeOptions{}); err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if launcher.Launches() != 1 {
		t.Fatalf("Expected one launch, got %d", launcher.Launches())
	}

	// A failed backend is replaced.
	launcher.Last().Sink.OnError(fmt.Errorf("%w: exit status 1", ports.ErrBackendExit))
	if err := enc.Configure(EncoderConfig{Codec: "vp9", Width: 16, Height: 16}); err != nil {
		t.Fatalf("Reconfigure failed: %v", err)
	}
	if launcher.Backends[0].Terminated() == 0 {
		t.Error("Expected failed backend to be terminated")
	}
	if err := enc.Encode(newRawFrame(t, 16, 16, 66666), EncodeOptions{}); err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if launcher.Launches() != 2 {
		t.Errorf("Expected two launches, got %d", launcher.Launches())
	}
	if launcher.Invocations[1].Descriptor.ID != "vp9" {
		t.Errorf("Expected new invocation for vp9, got %s", launcher.Invocations[1].Descriptor.ID)
	}
}

func TestEncoderStaleOutputIgnored(t *testing.T) {
	launcher := &mocks.Launcher{}
	enc := NewEncoder(launcher)
	if err := enc.Configure(EncoderConfig{Codec: "vp8", Width: 16, Height: 16}); err != nil {
		t.Fatalf("Configure failed: %v", err)
	}
	if err := enc.Encode(newRawFrame(t, 16, 16, 0), EncodeOptions{}); err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	old := launcher.Last()
	old.Sink.OnError(errors.New("boom"))
	if err := enc.Configure(EncoderConfig{Codec: "vp8", Width: 16, Height: 16}); err != nil {
		t.Fatalf("Reconfigure failed: %v", err)
	}

	// Output of the replaced process arrives late.
	old.Sink.OnOutputEnd([]byte{1, 2, 3})

	chunks, err := enc.Flush()
	if err != nil || len(chunks) != 0 {
		t.Errorf("Expected no chunks, got %d, %v", len(chunks), err)
	}
}

func TestEncoderErrorChannelNeverBlocks(t *testing.T) {
	launcher := &mocks.Launcher{}
	enc := NewEncoder(launcher, WithErrorBuffer(2))
	if err := enc.Configure(EncoderConfig{Codec: "vp8", Width: 16, Height: 16}); err != nil {
		t.Fatalf("Configure failed: %v", err)
	}
	if err := enc.Encode(newRawFrame(t, 16, 16, 0), EncodeOptions{}); err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	sink := launcher.Last().Sink
	for i := 0; i < 10; i++ {
		sink.OnError(fmt.Errorf("%w: segment %d", ports.ErrBackendDiagnostic, i))
	}

	if errs := drain(enc.Errors()); len(errs) != 2 {
		t.Errorf("Expected 2 buffered errors, got %d", len(errs))
	}
}
