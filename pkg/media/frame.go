// Package media defines the raw and encoded units exchanged with the codec
// state machines.
package media

import (
	"fmt"
)

// PixelFormat represents a raw frame pixel layout.
type PixelFormat int

const (
	// PixelFormatI420 is YUV 4:2:0 planar (Y + U + V).
	PixelFormatI420 PixelFormat = iota
	// PixelFormatNV12 is YUV 4:2:0 semi-planar (Y + interleaved UV).
	PixelFormatNV12
)

// String returns the WebCodecs name of the pixel format.
func (p PixelFormat) String() string {
	switch p {
	case PixelFormatI420:
		return "I420"
	case PixelFormatNV12:
		return "NV12"
	default:
		return "unknown"
	}
}

// FFmpegName returns the name ffmpeg uses for -pix_fmt.
func (p PixelFormat) FFmpegName() string {
	switch p {
	case PixelFormatNV12:
		return "nv12"
	default:
		return "yuv420p"
	}
}

// ParsePixelFormat parses a WebCodecs pixel format name.
func ParsePixelFormat(s string) (PixelFormat, error) {
	switch s {
	case "", "I420":
		return PixelFormatI420, nil
	case "NV12":
		return PixelFormatNV12, nil
	default:
		return PixelFormatI420, fmt.Errorf("%w: unknown pixel format %q", ErrInvalidArgument, s)
	}
}

// ColorSpace represents the color primaries of a raw frame.
type ColorSpace string

const (
	ColorSpaceBT709 ColorSpace = "bt709"
	ColorSpaceBT601 ColorSpace = "bt601"
	ColorSpaceSRGB  ColorSpace = "srgb"
)

// I420Size returns the buffer size of a 4:2:0 planar frame.
func I420Size(width, height int) int {
	return width * height * 3 / 2
}

// RawFrameInit carries the metadata for NewRawFrame.
// Timestamp is a pointer so that a missing timestamp can be told apart from zero.
type RawFrameInit struct {
	Timestamp   *int64
	Duration    int64
	CodedWidth  int
	CodedHeight int
	Format      PixelFormat
	ColorSpace  ColorSpace
}

// RawFrame is an uncompressed planar video frame.
//
// The frame owns Data until Close is called. Consumers assume
// len(Data) == CodedWidth*CodedHeight*3/2 for 4:2:0 formats; the
// constructor does not enforce it.
type RawFrame struct {
	Data            []byte
	TimestampMicros int64
	DurationMicros  int64
	CodedWidth      int
	CodedHeight     int
	Format          PixelFormat
	ColorSpace      ColorSpace
}

// NewRawFrame validates init and wraps data in a RawFrame.
func NewRawFrame(data []byte, init RawFrameInit) (*RawFrame, error) {
	if data == nil {
		return nil, fmt.Errorf("%w: data is required", ErrInvalidArgument)
	}
	if init.Timestamp == nil {
		return nil, fmt.Errorf("%w: timestamp is required", ErrInvalidArgument)
	}
	if init.CodedWidth <= 0 || init.CodedHeight <= 0 {
		return nil, fmt.Errorf("%w: codedWidth and codedHeight are required", ErrInvalidArgument)
	}

	colorSpace := init.ColorSpace
	if colorSpace == "" {
		colorSpace = ColorSpaceBT709
	}

	return &RawFrame{
		Data:            data,
		TimestampMicros: *init.Timestamp,
		DurationMicros:  init.Duration,
		CodedWidth:      init.CodedWidth,
		CodedHeight:     init.CodedHeight,
		Format:          init.Format,
		ColorSpace:      colorSpace,
	}, nil
}

// At is a convenience for building a RawFrameInit timestamp.
func At(timestampMicros int64) *int64 {
	return &timestampMicros
}

// ExpectedSize returns the buffer size implied by the coded dimensions.
func (f *RawFrame) ExpectedSize() int {
	return I420Size(f.CodedWidth, f.CodedHeight)
}

// Close releases the frame buffer. It is safe to call more than once.
func (f *RawFrame) Close() {
	f.Data = nil
}

// Closed reports whether Close has been called.
func (f *RawFrame) Closed() bool {
	return f.Data == nil
}
