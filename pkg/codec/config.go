package codec

import (
	"fmt"

	"github.com/user/codecbridge/pkg/codecs"
	"github.com/user/codecbridge/pkg/media"
)

// Default values applied when a config field is zero.
const (
	DefaultBitrate             = 1_000_000
	DefaultKeyframeInterval    = 30
	DefaultFramerate           = 30.0
	DefaultFrameDurationMicros = 33_333
)

// EncoderConfig configures an Encoder.
type EncoderConfig struct {
	Codec  string
	Width  int
	Height int

	// Bitrate in bits per second. 0 means DefaultBitrate.
	Bitrate int
	// KeyframeInterval is the GOP size in frames. 0 means DefaultKeyframeInterval.
	KeyframeInterval int
	// Framerate in frames per second. 0 means DefaultFramerate.
	Framerate float64

	// PixelFormat of the frames passed to Encode.
	PixelFormat media.PixelFormat
}

// resolve validates c and returns it with defaults applied.
func (c EncoderConfig) resolve() (EncoderConfig, codecs.Descriptor, error) {
	if c.Codec == "" {
		return c, codecs.Descriptor{}, fmt.Errorf("%w: codec is required", ErrInvalidConfig)
	}
	desc, err := codecs.Lookup(c.Codec)
	if err != nil {
		return c, codecs.Descriptor{}, err
	}
	if c.Width <= 0 || c.Height <= 0 {
		return c, codecs.Descriptor{}, fmt.Errorf("%w: width and height must be positive, got %dx%d", ErrInvalidConfig, c.Width, c.Height)
	}
	if c.Bitrate < 0 {
		return c, codecs.Descriptor{}, fmt.Errorf("%w: negative bitrate %d", ErrInvalidConfig, c.Bitrate)
	}
	if c.KeyframeInterval < 0 {
		return c, codecs.Descriptor{}, fmt.Errorf("%w: negative keyframe interval %d", ErrInvalidConfig, c.KeyframeInterval)
	}
	if c.Framerate < 0 {
		return c, codecs.Descriptor{}, fmt.Errorf("%w: negative framerate %g", ErrInvalidConfig, c.Framerate)
	}

	if c.Bitrate == 0 {
		c.Bitrate = DefaultBitrate
	}
	if c.KeyframeInterval == 0 {
		c.KeyframeInterval = DefaultKeyframeInterval
	}
	if c.Framerate == 0 {
		c.Framerate = DefaultFramerate
	}
	return c, desc, nil
}

// Delivery selects how decoded output is cut into frames.
type Delivery int

const (
	// DeliverAggregate delivers every output byte of a process as one frame.
	DeliverAggregate Delivery = iota
	// DeliverPerFrame cuts the output into frames of the configured size.
	DeliverPerFrame
)

func (d Delivery) String() string {
	if d == DeliverPerFrame {
		return "per-frame"
	}
	return "aggregate"
}

// DecoderConfig configures a Decoder.
type DecoderConfig struct {
	Codec       string
	CodedWidth  int
	CodedHeight int

	Delivery Delivery

	// FrameDurationMicros spaces per-frame timestamps.
	// 0 means DefaultFrameDurationMicros.
	FrameDurationMicros int64
}

func (c DecoderConfig) resolve() (DecoderConfig, codecs.Descriptor, error) {
	if c.Codec == "" {
		return c, codecs.Descriptor{}, fmt.Errorf("%w: codec is required", ErrInvalidConfig)
	}
	desc, err := codecs.Lookup(c.Codec)
	if err != nil {
		return c, codecs.Descriptor{}, err
	}
	if c.CodedWidth <= 0 || c.CodedHeight <= 0 {
		return c, codecs.Descriptor{}, fmt.Errorf("%w: codedWidth and codedHeight must be positive, got %dx%d", ErrInvalidConfig, c.CodedWidth, c.CodedHeight)
	}
	if c.FrameDurationMicros < 0 {
		return c, codecs.Descriptor{}, fmt.Errorf("%w: negative frame duration %d", ErrInvalidConfig, c.FrameDurationMicros)
	}
	if c.FrameDurationMicros == 0 {
		c.FrameDurationMicros = DefaultFrameDurationMicros
	}
	return c, desc, nil
}
