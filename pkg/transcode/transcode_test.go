package transcode

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/user/codecbridge/pkg/codecs"
	"github.com/user/codecbridge/pkg/mocks"
	"github.com/user/codecbridge/pkg/ports"
)

func TestRun(t *testing.T) {
	launcher := &mocks.Launcher{}
	tr := New(launcher, nil)

	input := []byte("compressed input")
	res, err := tr.Run(context.Background(), input, Request{
		Codec:        "vp9",
		Bitrate:      1500000,
		TrimStart:    2 * time.Second,
		TrimDuration: 5 * time.Second,
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !bytes.Equal(res.Data, input) {
		t.Errorf("Unexpected output %q", res.Data)
	}
	if res.Descriptor.MIMEType() != "video/webm" {
		t.Errorf("Unexpected MIME type %s", res.Descriptor.MIMEType())
	}

	inv := launcher.Invocations[0]
	if inv.Direction != ports.DirectionTranscode || inv.Bitrate != 1500000 || inv.TrimStart != 2*time.Second || inv.TrimDuration != 5*time.Second {
		t.Errorf("Unexpected invocation: %+v", inv)
	}
	b := launcher.Last()
	if len(b.FinishCalls) != 1 || b.FinishCalls[0] != DefaultTimeout {
		t.Errorf("Unexpected Finish calls: %v", b.FinishCalls)
	}
	if b.Terminated() == 0 {
		t.Error("Expected backend to be terminated")
	}
}

func TestRunUnsupportedCodec(t *testing.T) {
	launcher := &mocks.Launcher{}
	_, err := New(launcher, nil).Run(context.Background(), []byte{1}, Request{Codec: "mpeg2"})
	if !errors.Is(err, codecs.ErrUnsupportedCodec) {
		t.Errorf("Expected ErrUnsupportedCodec, got %v", err)
	}
	if launcher.Launches() != 0 {
		t.Error("Expected no launch")
	}
}

func TestRunNoOutput(t *testing.T) {
	launcher := &mocks.Launcher{
		Configure: func(b *mocks.Backend) {
			b.FinishFunc = func(time.Duration) error {
				b.Sink.OnError(fmt.Errorf("%w: Invalid data found", ports.ErrBackendDiagnostic))
				b.Sink.OnOutputEnd(nil)
				return nil
			}
		},
	}

	_, err := New(launcher, nil).Run(context.Background(), []byte{1}, Request{Codec: "h264"})
	if !errors.Is(err, ErrNoOutput) {
		t.Errorf("Expected ErrNoOutput, got %v", err)
	}
	if !errors.Is(err, ports.ErrBackendDiagnostic) {
		t.Errorf("Expected the backend error to be joined, got %v", err)
	}
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	launcher := &mocks.Launcher{
		Configure: func(b *mocks.Backend) {
			b.FinishFunc = func(time.Duration) error {
				cancel()
				return nil
			}
		},
	}

	_, err := New(launcher, nil).Run(ctx, []byte{1}, Request{Codec: "vp8"})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}
