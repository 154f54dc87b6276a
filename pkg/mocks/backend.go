// Package mocks provides mock implementations for testing.
package mocks

import (
	"bytes"
	"fmt"
	"sync"
	"time"

	"github.com/user/codecbridge/pkg/ports"
)

// Backend is a mock implementation of ports.Backend.
//
// Without a FinishFunc, Finish delivers Output to the sink, or the
// concatenation of all writes when Output is nil, like a process that
// copies its input to its output.
type Backend struct {
	IDValue string
	Sink    ports.BackendSink
	Output  []byte

	WriteFunc     func(p []byte) error
	FinishFunc    func(timeout time.Duration) error
	TerminateFunc func() error

	mu sync.Mutex

	// Recorded calls for verification
	Writes         [][]byte
	FinishCalls    []time.Duration
	TerminateCalls int
}

func (m *Backend) ID() string {
	return m.IDValue
}

func (m *Backend) Write(p []byte) error {
	m.mu.Lock()
	m.Writes = append(m.Writes, append([]byte(nil), p...))
	m.mu.Unlock()
	if m.WriteFunc != nil {
		return m.WriteFunc(p)
	}
	return nil
}

func (m *Backend) Finish(timeout time.Duration) error {
	m.mu.Lock()
	m.FinishCalls = append(m.FinishCalls, timeout)
	m.mu.Unlock()
	if m.FinishFunc != nil {
		return m.FinishFunc(timeout)
	}
	m.Sink.OnOutputEnd(m.output())
	return nil
}

func (m *Backend) Terminate() error {
	m.mu.Lock()
	m.TerminateCalls++
	m.mu.Unlock()
	if m.TerminateFunc != nil {
		return m.TerminateFunc()
	}
	return nil
}

// Written returns every byte written so far.
func (m *Backend) Written() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return bytes.Join(m.Writes, nil)
}

// Terminated returns how many times Terminate was called.
func (m *Backend) Terminated() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.TerminateCalls
}

func (m *Backend) output() []byte {
	if m.Output != nil {
		return m.Output
	}
	return m.Written()
}

// Launcher is a mock implementation of ports.BackendLauncher.
// Without a LaunchFunc it returns a fresh *Backend bound to the sink.
type Launcher struct {
	LaunchFunc func(inv ports.Invocation, sink ports.BackendSink) (ports.Backend, error)

	// Configure applies to every Backend created by the default Launch.
	Configure func(b *Backend)

	mu sync.Mutex

	// Recorded calls for verification
	Invocations []ports.Invocation
	Backends    []*Backend
}

func (m *Launcher) Launch(inv ports.Invocation, sink ports.BackendSink) (ports.Backend, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Invocations = append(m.Invocations, inv)
	if m.LaunchFunc != nil {
		return m.LaunchFunc(inv, sink)
	}

	b := &Backend{
		IDValue: fmt.Sprintf("mock-%d", len(m.Backends)+1),
		Sink:    sink,
	}
	if m.Configure != nil {
		m.Configure(b)
	}
	m.Backends = append(m.Backends, b)
	return b, nil
}

// Launches returns how many times Launch was called.
func (m *Launcher) Launches() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Invocations)
}

// Last returns the most recently created Backend, or nil.
func (m *Launcher) Last() *Backend {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Backends) == 0 {
		return nil
	}
	return m.Backends[len(m.Backends)-1]
}

var (
	_ ports.Backend         = (*Backend)(nil)
	_ ports.BackendLauncher = (*Launcher)(nil)
)
