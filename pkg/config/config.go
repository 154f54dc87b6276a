// Package config provides configuration loading and management.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/user/codecbridge/pkg/adapters/logger"
	"github.com/user/codecbridge/pkg/codec"
	"github.com/user/codecbridge/pkg/codecs"
	"github.com/user/codecbridge/pkg/ports"
)

// ErrInvalid is returned by Validate.
var ErrInvalid = errors.New("config: invalid")

// Config represents the full configuration for codecbridge.
type Config struct {
	// Backend
	FFmpegPath         string `yaml:"ffmpeg_path"`
	FlushTimeoutMs     int    `yaml:"flush_timeout_ms"`
	TranscodeTimeoutMs int    `yaml:"transcode_timeout_ms"`

	Log     LogConfig     `yaml:"log"`
	Server  ServerConfig  `yaml:"server"`
	Encoder EncoderConfig `yaml:"encoder"`
	Decoder DecoderConfig `yaml:"decoder"`
}

// LogConfig represents logging settings. An empty File logs to the console.
type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// ServerConfig represents HTTP server settings.
type ServerConfig struct {
	Listen            string `yaml:"listen"`
	MaxUploadMB       int    `yaml:"max_upload_mb"`
	MaxConcurrentJobs int    `yaml:"max_concurrent_jobs"`
}

// EncoderConfig holds encoder defaults for the CLI and server.
type EncoderConfig struct {
	Codec            string  `yaml:"codec"`
	Width            int     `yaml:"width"`
	Height           int     `yaml:"height"`
	Bitrate          int     `yaml:"bitrate"`
	KeyframeInterval int     `yaml:"keyframe_interval"`
	Framerate        float64 `yaml:"framerate"`
}

// DecoderConfig holds decoder defaults for the CLI and server.
type DecoderConfig struct {
	Codec       string `yaml:"codec"`
	CodedWidth  int    `yaml:"coded_width"`
	CodedHeight int    `yaml:"coded_height"`
}

// Defaults returns a Config with default values.
func Defaults() Config {
	return Config{
		FlushTimeoutMs:     int(ports.DefaultFlushTimeout / time.Millisecond),
		TranscodeTimeoutMs: 300000,

		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  100,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},

		Server: ServerConfig{
			Listen:            ":3001",
			MaxUploadMB:       512,
			MaxConcurrentJobs: 4,
		},

		Encoder: EncoderConfig{
			Codec:            "vp8",
			Width:            640,
			Height:           480,
			Bitrate:          codec.DefaultBitrate,
			KeyframeInterval: codec.DefaultKeyframeInterval,
			Framerate:        codec.DefaultFramerate,
		},

		Decoder: DecoderConfig{
			Codec:       "vp8",
			CodedWidth:  640,
			CodedHeight: 480,
		},
	}
}

// Load returns Defaults overlaid with the file at path (if any) and the
// environment overrides.
func Load(path string) (Config, error) {
	cfg := Defaults()
	if path != "" {
		var err error
		cfg, err = LoadFromFile(path)
		if err != nil {
			return cfg, err
		}
	}
	cfg.ApplyEnv()
	return cfg, nil
}

// LoadFromFile loads configuration from a YAML file.
func LoadFromFile(path string) (Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}

	return cfg, nil
}

// ApplyEnv applies FFMPEG_PATH and CODECBRIDGE_LISTEN.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("FFMPEG_PATH"); v != "" {
		c.FFmpegPath = v
	}
	if v := os.Getenv("CODECBRIDGE_LISTEN"); v != "" {
		c.Server.Listen = v
	}
}

// Validate reports every invalid field at once.
func (c Config) Validate() error {
	var errs []error
	invalid := func(format string, args ...interface{}) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]interface{}{ErrInvalid}, args...)...))
	}

	if c.FlushTimeoutMs <= 0 {
		invalid("flush_timeout_ms must be positive")
	}
	if c.TranscodeTimeoutMs <= 0 {
		invalid("transcode_timeout_ms must be positive")
	}
	if c.Server.MaxUploadMB <= 0 {
		invalid("server.max_upload_mb must be positive")
	}
	if c.Server.MaxConcurrentJobs <= 0 {
		invalid("server.max_concurrent_jobs must be positive")
	}
	if !codecs.IsSupported(c.Encoder.Codec) {
		invalid("encoder.codec %q is not supported", c.Encoder.Codec)
	}
	if c.Encoder.Width <= 0 || c.Encoder.Height <= 0 {
		invalid("encoder size %dx%d must be positive", c.Encoder.Width, c.Encoder.Height)
	}
	if c.Encoder.Bitrate < 0 || c.Encoder.KeyframeInterval < 0 || c.Encoder.Framerate < 0 {
		invalid("encoder bitrate, keyframe_interval and framerate must not be negative")
	}
	if !codecs.IsSupported(c.Decoder.Codec) {
		invalid("decoder.codec %q is not supported", c.Decoder.Codec)
	}
	if c.Decoder.CodedWidth <= 0 || c.Decoder.CodedHeight <= 0 {
		invalid("decoder size %dx%d must be positive", c.Decoder.CodedWidth, c.Decoder.CodedHeight)
	}

	return errors.Join(errs...)
}

// FlushTimeout returns flush_timeout_ms as a duration.
func (c Config) FlushTimeout() time.Duration {
	return time.Duration(c.FlushTimeoutMs) * time.Millisecond
}

// TranscodeTimeout returns transcode_timeout_ms as a duration.
func (c Config) TranscodeTimeout() time.Duration {
	return time.Duration(c.TranscodeTimeoutMs) * time.Millisecond
}

// MaxUploadBytes returns server.max_upload_mb in bytes.
func (c Config) MaxUploadBytes() int64 {
	return int64(c.Server.MaxUploadMB) << 20
}

// EncoderConfig converts the encoder section.
func (c Config) EncoderConfig() codec.EncoderConfig {
	return codec.EncoderConfig{
		Codec:            c.Encoder.Codec,
		Width:            c.Encoder.Width,
		Height:           c.Encoder.Height,
		Bitrate:          c.Encoder.Bitrate,
		KeyframeInterval: c.Encoder.KeyframeInterval,
		Framerate:        c.Encoder.Framerate,
	}
}

// DecoderConfig converts the decoder section.
func (c Config) DecoderConfig() codec.DecoderConfig {
	return codec.DecoderConfig{
		Codec:       c.Decoder.Codec,
		CodedWidth:  c.Decoder.CodedWidth,
		CodedHeight: c.Decoder.CodedHeight,
	}
}

// LogFileOptions converts the log section for logger.NewFile.
func (c Config) LogFileOptions() logger.FileOptions {
	return logger.FileOptions{
		Path:       c.Log.File,
		MaxSizeMB:  c.Log.MaxSizeMB,
		MaxBackups: c.Log.MaxBackups,
		MaxAgeDays: c.Log.MaxAgeDays,
		Compress:   c.Log.Compress,
	}
}
