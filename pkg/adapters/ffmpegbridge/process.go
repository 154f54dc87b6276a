package ffmpegbridge

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/user/codecbridge/pkg/adapters/logger"
	"github.com/user/codecbridge/pkg/metrics"
	"github.com/user/codecbridge/pkg/ports"
)

const (
	readChunkSize   = 32 * 1024
	eventBufferSize = 64
)

// Launcher spawns ffmpeg processes. The zero value resolves ffmpeg with
// FindFFmpeg and builds arguments with BuildArgs.
type Launcher struct {
	// Path is the executable. Empty means FindFFmpeg("").
	Path string

	// Env is appended to the current environment of the child.
	Env []string

	// Args overrides BuildArgs.
	Args func(ports.Invocation) []string

	Logger  ports.Logger
	Metrics *metrics.Recorder
}

// Launch starts a backend for inv. Events are delivered to sink from a
// single goroutine owned by the returned process.
func (l *Launcher) Launch(inv ports.Invocation, sink ports.BackendSink) (ports.Backend, error) {
	if sink == nil {
		return nil, fmt.Errorf("%w: nil sink", ports.ErrBackendSpawn)
	}

	log := l.Logger
	if log == nil {
		log = logger.NewNoop()
	}
	direction := string(inv.Direction)

	path, err := FindFFmpeg(l.Path)
	if err != nil {
		l.Metrics.SpawnFailed(direction)
		return nil, fmt.Errorf("%w: %v", ports.ErrBackendSpawn, err)
	}

	buildArgs := l.Args
	if buildArgs == nil {
		buildArgs = BuildArgs
	}
	args := buildArgs(inv)

	cmd := exec.Command(path, args...)
	if len(l.Env) > 0 {
		cmd.Env = append(os.Environ(), l.Env...)
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		l.Metrics.SpawnFailed(direction)
		return nil, fmt.Errorf("%w: stdin pipe: %v", ports.ErrBackendSpawn, err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		l.Metrics.SpawnFailed(direction)
		return nil, fmt.Errorf("%w: stdout pipe: %v", ports.ErrBackendSpawn, err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		l.Metrics.SpawnFailed(direction)
		return nil, fmt.Errorf("%w: stderr pipe: %v", ports.ErrBackendSpawn, err)
	}

	p := &Process{
		id:        uuid.New().String(),
		direction: direction,
		log:       log,
		metrics:   l.Metrics,
		sink:      sink,
		cmd:       cmd,
		stdin:     stdin,
		events:    make(chan event, eventBufferSize),
		done:      make(chan struct{}),
	}

	log.Info("Starting %s backend %s: %s", direction, p.id, strings.Join(args, " "))

	if err := cmd.Start(); err != nil {
		l.Metrics.SpawnFailed(direction)
		log.Error("Failed to start backend: %s", err.Error())
		return nil, fmt.Errorf("%w: %v", ports.ErrBackendSpawn, err)
	}
	l.Metrics.Spawned(direction)

	p.run(stdout, stderr)
	return p, nil
}

type eventKind int

const (
	eventOutput eventKind = iota
	eventOutputEnd
	eventDiagnostic
	eventExit
)

type event struct {
	kind eventKind
	data []byte
	text string
	err  error
}

// Process is one running ffmpeg child.
type Process struct {
	id        string
	direction string
	log       ports.Logger
	metrics   *metrics.Recorder
	sink      ports.BackendSink
	cmd       *exec.Cmd

	mu          sync.Mutex
	stdin       io.WriteCloser
	inputClosed bool

	exited     atomic.Bool
	terminated atomic.Bool

	events chan event
	done   chan struct{}

	terminateOnce sync.Once
}

// ID returns the process identifier used in logs.
func (p *Process) ID() string {
	return p.id
}

// Done is closed once the process has exited and every event was delivered.
func (p *Process) Done() <-chan struct{} {
	return p.done
}

func (p *Process) run(stdout, stderr io.Reader) {
	var g errgroup.Group
	g.Go(func() error {
		return p.pumpOutput(stdout)
	})
	g.Go(func() error {
		return p.pumpDiagnostics(stderr)
	})

	// Wait must not be called before the pipes are drained.
	go func() {
		_ = g.Wait()
		err := p.cmd.Wait()
		p.events <- event{kind: eventExit, err: err}
		close(p.events)
	}()

	go p.dispatch()
}

func (p *Process) pumpOutput(r io.Reader) error {
	buf := make([]byte, readChunkSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			data := make([]byte, n)
			copy(data, buf[:n])
			p.events <- event{kind: eventOutput, data: data}
		}
		if err != nil {
			p.events <- event{kind: eventOutputEnd}
			if errors.Is(err, io.EOF) || errors.Is(err, os.ErrClosed) {
				return nil
			}
			return err
		}
	}
}

func (p *Process) pumpDiagnostics(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), 1024*1024)
	scanner.Split(scanSegments)
	for scanner.Scan() {
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		p.events <- event{kind: eventDiagnostic, text: text}
	}
	return scanner.Err()
}

// dispatch is the only goroutine that calls the sink.
func (p *Process) dispatch() {
	defer close(p.done)

	var output bytes.Buffer
	for ev := range p.events {
		switch ev.kind {
		case eventOutput:
			output.Write(ev.data)
			p.metrics.BytesOut(p.direction, len(ev.data))

		case eventOutputEnd:
			p.log.Debug("Backend %s produced %d bytes", p.id, output.Len())
			p.sink.OnOutputEnd(output.Bytes())

		case eventDiagnostic:
			p.log.Debug("Backend diagnostic: %s", ev.text)
			p.sink.OnDiagnostic(ev.text)
			if IsFailureDiagnostic(ev.text) {
				p.metrics.DiagnosticError(p.direction)
				p.sink.OnError(fmt.Errorf("%w: %s", ports.ErrBackendDiagnostic, ev.text))
			}

		case eventExit:
			p.exited.Store(true)
			p.handleExit(ev.err)
		}
	}
}

func (p *Process) handleExit(err error) {
	switch {
	case p.terminated.Load():
		p.metrics.Exited(p.direction, "killed")
		p.log.Debug("Backend %s terminated", p.id)
	case err != nil:
		p.metrics.Exited(p.direction, "failed")
		p.log.Debug("Backend %s exited: %s", p.id, err.Error())
		p.sink.OnError(fmt.Errorf("%w: %v", ports.ErrBackendExit, err))
	default:
		p.metrics.Exited(p.direction, "ok")
		p.log.Debug("Backend %s exited: %s", p.id, "ok")
	}
}

// Write appends data to the process input stream.
func (p *Process) Write(data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.inputClosed || p.exited.Load() {
		return fmt.Errorf("%w: input stream closed", ports.ErrBackendWrite)
	}

	n, err := p.stdin.Write(data)
	p.metrics.BytesIn(p.direction, n)
	if err != nil {
		return fmt.Errorf("%w: %v", ports.ErrBackendWrite, err)
	}
	return nil
}

func (p *Process) closeInput() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.inputClosed {
		return
	}
	p.inputClosed = true
	_ = p.stdin.Close()
}

// Finish closes the input stream and waits until the process has exited
// and all of its events were delivered, or until timeout elapses.
func (p *Process) Finish(timeout time.Duration) error {
	start := time.Now()
	p.closeInput()

	if timeout <= 0 {
		timeout = ports.DefaultFlushTimeout
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-p.done:
		p.metrics.Flushed(p.direction, time.Since(start))
		return nil
	case <-timer.C:
		p.metrics.FlushTimedOut(p.direction)
		return fmt.Errorf("%w after %s", ports.ErrFlushTimeout, timeout)
	}
}

// Terminate kills the process if it is still running and waits for the
// event goroutine to finish. Calling it again is a no-op.
func (p *Process) Terminate() error {
	var killErr error
	p.terminateOnce.Do(func() {
		if !p.exited.Load() {
			p.terminated.Store(true)
			if err := p.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
				killErr = err
			}
		}
		p.closeInput()
		<-p.done
	})
	return killErr
}

// IsFailureDiagnostic reports whether a diagnostic segment signals failure.
func IsFailureDiagnostic(text string) bool {
	return strings.Contains(strings.ToLower(text), "error")
}

// scanSegments splits on '\n' and '\r' so progress lines count separately.
func scanSegments(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}
