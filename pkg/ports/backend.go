package ports

import (
	"errors"
	"time"

	"github.com/user/codecbridge/pkg/codecs"
	"github.com/user/codecbridge/pkg/media"
)

// DefaultFlushTimeout bounds how long Finish waits for the backend to exit.
const DefaultFlushTimeout = 10 * time.Second

var (
	// ErrBackendSpawn is reported when the backend process could not be started.
	ErrBackendSpawn = errors.New("backend: spawn failed")

	// ErrBackendWrite is reported when input is written after the input stream
	// was closed or the process exited.
	ErrBackendWrite = errors.New("backend: write failed")

	// ErrBackendDiagnostic is reported when diagnostic output contains a failure marker.
	ErrBackendDiagnostic = errors.New("backend: diagnostic error")

	// ErrBackendExit is reported when the process exits with a non-zero status.
	ErrBackendExit = errors.New("backend: abnormal exit")

	// ErrFlushTimeout is returned when the process does not exit within the flush timeout.
	ErrFlushTimeout = errors.New("backend: flush timeout")
)

// Direction selects what the backend process does with its input.
type Direction string

const (
	// DirectionEncode reads raw frames and writes a compressed container.
	DirectionEncode Direction = "encode"
	// DirectionDecode reads a compressed container and writes raw frames.
	DirectionDecode Direction = "decode"
	// DirectionTranscode reads a compressed container and writes another one.
	DirectionTranscode Direction = "transcode"
)

// Invocation holds the parameters a backend is spawned with.
// They are frozen for the lifetime of the process.
type Invocation struct {
	Direction  Direction
	Descriptor codecs.Descriptor

	// Raw side: input format for encode, output size for decode (0 keeps source size).
	Width       int
	Height      int
	PixelFormat media.PixelFormat

	FrameRate        float64
	Bitrate          int
	KeyframeInterval int

	// Transcode only.
	TrimStart    time.Duration
	TrimDuration time.Duration
}

// Backend is a running external codec process.
type Backend interface {
	// ID identifies the process in logs.
	ID() string

	// Write appends p to the process input stream.
	Write(p []byte) error

	// Finish closes the input stream and waits for the process to deliver
	// its output and exit.
	Finish(timeout time.Duration) error

	// Terminate kills the process if it is still running. It is idempotent.
	Terminate() error
}

// BackendSink receives the asynchronous events of one backend.
// Calls for a given backend are made sequentially from one goroutine.
type BackendSink interface {
	// OnOutputEnd receives every byte written to the output stream, in
	// arrival order, once the stream has closed.
	OnOutputEnd(data []byte)

	// OnDiagnostic receives diagnostic stream text.
	OnDiagnostic(text string)

	// OnError receives backend failures.
	OnError(err error)
}

// BackendLauncher spawns backends.
type BackendLauncher interface {
	Launch(inv Invocation, sink BackendSink) (Backend, error)
}
