package summarizer

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func sampleSummary() *Summary {
	return &Summary{
		GeneratedAt: time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC),
		Command:     "stress --seconds 10",
		Settings: Settings{
			Codec:            "avc1",
			Width:            1920,
			Height:           1080,
			Bitrate:          5_000_000,
			KeyframeInterval: 30,
			Framerate:        30,
		},
		Results: Results{
			Frames:      300,
			Chunks:      1,
			OutputBytes: 3 << 20,
			Elapsed:     10 * time.Second,
			MemoryDelta: 64 << 20,
		},
		Container: ContainerInfo{
			Format:      "mp4",
			Codec:       "h264",
			Width:       1920,
			Height:      1080,
			Samples:     300,
			SyncSamples: 10,
			Fragmented:  true,
		},
	}
}

func TestMarkdownFormatter_Format(t *testing.T) {
	result := NewMarkdownFormatter().Format(sampleSummary())

	checks := []string{
		"# ",
		"2024-01-15T10:30:00Z",
		"`stress --seconds 10`",
		"avc1",
		"1920x1080",
		"5.00 Mbps",
		"30.00 fps",
		"| 300 |",
		"3.00 MB",
		"10s",
		"30.0 fps",
		"0.30 MB/s",
		"64.00 MB",
		"| mp4 |",
		"| h264 |",
		"| 10 |",
		"codecbridge",
	}
	for _, check := range checks {
		if !strings.Contains(result, check) {
			t.Errorf("expected output to contain %q\n%s", check, result)
		}
	}
}

func TestMarkdownFormatter_NoContainer(t *testing.T) {
	s := sampleSummary()
	s.Container = ContainerInfo{}
	s.Results.Errors = []string{"backend: abnormal exit"}

	result := NewMarkdownFormatter().Format(s)
	if strings.Contains(result, "| mp4 |") {
		t.Error("expected no container section")
	}
	if !strings.Contains(result, "- backend: abnormal exit") {
		t.Error("expected backend errors to be listed")
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		n    int64
		want string
	}{
		{512, "512 B"},
		{2048, "2.00 KB"},
		{5 << 20, "5.00 MB"},
	}
	for _, tt := range tests {
		if got := formatBytes(tt.n); got != tt.want {
			t.Errorf("formatBytes(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}

func TestFormatBitrate(t *testing.T) {
	if got := formatBitrate(750_000); got != "750 kbps" {
		t.Errorf("expected 750 kbps, got %s", got)
	}
	if got := formatBitrate(2_500_000); got != "2.50 Mbps" {
		t.Errorf("expected 2.50 Mbps, got %s", got)
	}
}

func TestWriter_Write(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reports", "summary.md")
	w := NewWriter(FormatFunc(func(s *Summary) string { return "frames " + s.Command }))

	if err := w.Write(path, &Summary{Command: "demo"}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(data) != "frames demo" {
		t.Errorf("expected %q, got %q", "frames demo", string(data))
	}
}
