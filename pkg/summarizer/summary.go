// Package summarizer provides summary generation for encoder sessions.
package summarizer

import "time"

// Summary contains all data collected during an encoder session.
type Summary struct {
	// Metadata
	GeneratedAt time.Time
	Command     string

	Settings  Settings
	Results   Results
	Container ContainerInfo
}

// Settings contains the encoder configuration.
type Settings struct {
	Codec            string
	Width            int
	Height           int
	Bitrate          int
	KeyframeInterval int
	Framerate        float64
}

// Results contains the measured outcome of the session.
type Results struct {
	Frames      int
	Chunks      int
	OutputBytes int64
	Elapsed     time.Duration

	// MemoryDelta is the heap growth over the session in bytes. It may be negative.
	MemoryDelta int64

	// Errors reported asynchronously by the backend.
	Errors []string
}

// FPS returns encoded frames per second of wall time.
func (r Results) FPS() float64 {
	if r.Elapsed <= 0 {
		return 0
	}
	return float64(r.Frames) / r.Elapsed.Seconds()
}

// ThroughputMBps returns output megabytes per second of wall time.
func (r Results) ThroughputMBps() float64 {
	if r.Elapsed <= 0 {
		return 0
	}
	return float64(r.OutputBytes) / (1 << 20) / r.Elapsed.Seconds()
}

// ContainerInfo describes the produced container. Zero when it could not be inspected.
type ContainerInfo struct {
	Format      string
	Codec       string
	Width       int
	Height      int
	Samples     int
	SyncSamples int
	Fragmented  bool
}

// NewSummary creates a new Summary with the current timestamp.
func NewSummary() *Summary {
	return &Summary{
		GeneratedAt: time.Now(),
	}
}

// Builder provides a fluent interface for building a Summary.
type Builder struct {
	summary *Summary
}

// NewBuilder creates a new Builder.
func NewBuilder() *Builder {
	return &Builder{
		summary: NewSummary(),
	}
}

// WithCommand sets the CLI command that produced the session.
func (b *Builder) WithCommand(command string) *Builder {
	b.summary.Command = command
	return b
}

// WithSettings sets encoder settings.
func (b *Builder) WithSettings(settings Settings) *Builder {
	b.summary.Settings = settings
	return b
}

// WithResults sets the session results.
func (b *Builder) WithResults(results Results) *Builder {
	b.summary.Results = results
	return b
}

// WithContainer sets container information.
func (b *Builder) WithContainer(info ContainerInfo) *Builder {
	b.summary.Container = info
	return b
}

// Build returns the constructed Summary.
func (b *Builder) Build() *Summary {
	return b.summary
}
