package logger

import (
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/user/codecbridge/pkg/ports"
)

// FileOptions configures log file rotation.
type FileOptions struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// NewFile creates a logger that appends to a rotating log file.
// The returned closer must be called on shutdown to release the file.
func NewFile(level ports.LogLevel, opts FileOptions) (*ConsoleLogger, func() error) {
	w := &lumberjack.Logger{
		Filename:   opts.Path,
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
		MaxAge:     opts.MaxAgeDays,
		Compress:   opts.Compress,
	}
	return NewWriter(w, level), w.Close
}
