package ffmpegbridge

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/user/codecbridge/pkg/ports"
)

// TestHelperProcess is not a real test. It is re-executed as the backend
// child by helperLauncher.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	defer os.Exit(0)

	switch os.Getenv("HELPER_MODE") {
	case "cat":
		_, _ = io.Copy(os.Stdout, os.Stdin)
	case "diag":
		_, _ = io.Copy(io.Discard, os.Stdin)
		fmt.Fprint(os.Stderr, "frame=1 fps=0.0\rframe=2 fps=0.0\n")
		fmt.Fprintln(os.Stderr, "Error while encoding frame")
	case "exit1":
		_, _ = io.Copy(io.Discard, os.Stdin)
		os.Exit(1)
	case "hang":
		_, _ = io.Copy(io.Discard, os.Stdin)
		time.Sleep(time.Minute)
	}
}

func helperLauncher(mode string) *Launcher {
	return &Launcher{
		Path: os.Args[0],
		Env:  []string{"GO_WANT_HELPER_PROCESS=1", "HELPER_MODE=" + mode},
		Args: func(ports.Invocation) []string {
			return []string{"-test.run=TestHelperProcess", "--"}
		},
	}
}

type recordingSink struct {
	mu          sync.Mutex
	output      []byte
	outputEnds  int
	diagnostics []string
	errs        []error
}

func (s *recordingSink) OnOutputEnd(data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.output = append([]byte(nil), data...)
	s.outputEnds++
}

func (s *recordingSink) OnDiagnostic(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.diagnostics = append(s.diagnostics, text)
}

func (s *recordingSink) OnError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errs = append(s.errs, err)
}

func (s *recordingSink) hasError(target error) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, err := range s.errs {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func launch(t *testing.T, mode string, sink ports.BackendSink) *Process {
	t.Helper()
	b, err := helperLauncher(mode).Launch(ports.Invocation{Direction: ports.DirectionEncode}, sink)
	if err != nil {
		t.Fatalf("Launch failed: %v", err)
	}
	t.Cleanup(func() { _ = b.Terminate() })
	return b.(*Process)
}

func TestProcessDeliversOutputInOrder(t *testing.T) {
	sink := &recordingSink{}
	p := launch(t, "cat", sink)

	var want bytes.Buffer
	for i := 0; i < 50; i++ {
		chunk := bytes.Repeat([]byte{byte(i)}, 4096)
		want.Write(chunk)
		if err := p.Write(chunk); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
	}

	if err := p.Finish(10 * time.Second); err != nil {
		t.Fatalf("Finish failed: %v", err)
	}

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if sink.outputEnds != 1 {
		t.Errorf("Expected one output end, got %d", sink.outputEnds)
	}
	if !bytes.Equal(sink.output, want.Bytes()) {
		t.Errorf("Output mismatch: got %d bytes, want %d", len(sink.output), want.Len())
	}
	if len(sink.errs) != 0 {
		t.Errorf("Unexpected errors: %v", sink.errs)
	}
}

func TestProcessWriteAfterFinish(t *testing.T) {
	p := launch(t, "cat", &recordingSink{})

	if err := p.Finish(10 * time.Second); err != nil {
		t.Fatalf("Finish failed: %v", err)
	}
	if err := p.Write([]byte("late")); !errors.Is(err, ports.ErrBackendWrite) {
		t.Errorf("Expected ErrBackendWrite, got %v", err)
	}
}

func TestProcessDiagnostics(t *testing.T) {
	sink := &recordingSink{}
	p := launch(t, "diag", sink)

	if err := p.Finish(10 * time.Second); err != nil {
		t.Fatalf("Finish failed: %v", err)
	}

	sink.mu.Lock()
	diags := append([]string(nil), sink.diagnostics...)
	sink.mu.Unlock()

	want := []string{"frame=1 fps=0.0", "frame=2 fps=0.0", "Error while encoding frame"}
	if len(diags) != len(want) {
		t.Fatalf("Expected %d diagnostics, got %d: %q", len(want), len(diags), diags)
	}
	for i := range want {
		if diags[i] != want[i] {
			t.Errorf("Diagnostic %d: got %q, want %q", i, diags[i], want[i])
		}
	}
	if !sink.hasError(ports.ErrBackendDiagnostic) {
		t.Error("Expected ErrBackendDiagnostic")
	}
}

func TestProcessAbnormalExit(t *testing.T) {
	sink := &recordingSink{}
	p := launch(t, "exit1", sink)

	if err := p.Finish(10 * time.Second); err != nil {
		t.Fatalf("Finish failed: %v", err)
	}
	if !sink.hasError(ports.ErrBackendExit) {
		t.Error("Expected ErrBackendExit")
	}
}

func TestProcessFinishTimeout(t *testing.T) {
	sink := &recordingSink{}
	p := launch(t, "hang", sink)

	err := p.Finish(200 * time.Millisecond)
	if !errors.Is(err, ports.ErrFlushTimeout) {
		t.Fatalf("Expected ErrFlushTimeout, got %v", err)
	}

	if err := p.Terminate(); err != nil {
		t.Fatalf("Terminate failed: %v", err)
	}
	select {
	case <-p.Done():
	default:
		t.Fatal("Expected process to be done after Terminate")
	}

	// A killed process is not an abnormal exit.
	if sink.hasError(ports.ErrBackendExit) {
		t.Error("Terminate should not report ErrBackendExit")
	}
	if err := p.Terminate(); err != nil {
		t.Errorf("Second Terminate failed: %v", err)
	}
}

func TestLaunchSpawnFailure(t *testing.T) {
	l := &Launcher{Path: "/nonexistent/ffmpeg"}
	_, err := l.Launch(ports.Invocation{Direction: ports.DirectionEncode}, &recordingSink{})
	if !errors.Is(err, ports.ErrBackendSpawn) {
		t.Errorf("Expected ErrBackendSpawn, got %v", err)
	}
}

func TestScanSegments(t *testing.T) {
	input := "a\rb\n\nc"
	var got []string
	data := []byte(input)
	for len(data) > 0 {
		adv, tok, err := scanSegments(data, true)
		if err != nil {
			t.Fatalf("scanSegments failed: %v", err)
		}
		if adv == 0 {
			break
		}
		got = append(got, string(tok))
		data = data[adv:]
	}
	if strings.Join(got, "|") != "a|b||c" {
		t.Errorf("Unexpected segments: %q", got)
	}
}

func TestIsFailureDiagnostic(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"Error initializing output stream", true},
		{"[libvpx @ 0x1] ERROR: bad size", true},
		{"frame=10 fps=30", false},
	}
	for _, tt := range tests {
		if got := IsFailureDiagnostic(tt.text); got != tt.want {
			t.Errorf("IsFailureDiagnostic(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}
