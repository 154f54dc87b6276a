package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/ideamans/go-l10n"
	"github.com/urfave/cli/v2"

	"github.com/user/codecbridge/pkg/adapters/containerinfo"
	"github.com/user/codecbridge/pkg/adapters/testsrc"
	"github.com/user/codecbridge/pkg/codec"
	"github.com/user/codecbridge/pkg/codecs"
	"github.com/user/codecbridge/pkg/media"
	"github.com/user/codecbridge/pkg/summarizer"
)

const (
	stressWidth           = 1920
	stressHeight          = 1080
	stressFPS             = 30
	stressSlowThreshold   = 60 * time.Second
	stressMemoryThreshold = 500 << 20
)

// frameSource yields frame i of a sequence.
type frameSource func(i int) (*media.RawFrame, error)

// encodeResult is the outcome of one encoder session.
type encodeResult struct {
	Data     []byte
	Chunks   int
	Frames   int
	Stats    codec.EncoderStats
	Elapsed  time.Duration
	AsyncErr error
}

func summaryFlag() cli.Flag {
	return &cli.PathFlag{
		Name:     "summary",
		Usage:    l10n.T("Output execution summary to file (Markdown format)"),
		Category: l10n.T(categoryOutput),
	}
}

func codecFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:     "codec",
			Usage:    l10n.T("Codec identifier (vp8, vp9, vp09, avc1, h264, av01)"),
			Category: l10n.T(categoryCodec),
		},
		&cli.IntFlag{
			Name:     "bitrate",
			Aliases:  []string{"b"},
			Usage:    l10n.T("Target bitrate in bits per second"),
			Category: l10n.T(categoryCodec),
		},
		&cli.IntFlag{
			Name:     "keyframe-interval",
			Aliases:  []string{"g"},
			Usage:    l10n.T("Frames between keyframes"),
			Category: l10n.T(categoryCodec),
		},
	}
}

// encoderConfig applies codec flags over the configured defaults.
func encoderConfig(c *cli.Context, e *env) codec.EncoderConfig {
	cfg := e.cfg.EncoderConfig()
	if c.IsSet("codec") {
		cfg.Codec = c.String("codec")
	}
	if c.IsSet("bitrate") {
		cfg.Bitrate = c.Int("bitrate")
	}
	if c.IsSet("keyframe-interval") {
		cfg.KeyframeInterval = c.Int("keyframe-interval")
	}
	return cfg
}

// runEncoder feeds count frames from next through one encoder session.
// Cancelling ctx stops feeding and closes the session with what was written.
func runEncoder(ctx context.Context, e *env, cfg codec.EncoderConfig, count int, next frameSource) (*encodeResult, error) {
	enc := codec.NewEncoder(e.launcher,
		codec.WithLogger(e.log),
		codec.WithFlushTimeout(e.cfg.FlushTimeout()),
	)
	if err := enc.Configure(cfg); err != nil {
		return nil, err
	}

	start := time.Now()
	fed := 0
	for i := 0; i < count; i++ {
		if ctx.Err() != nil {
			e.log.Warn(l10n.T("Interrupted, shutting down..."))
			break
		}
		frame, err := next(i)
		if err != nil {
			_, _ = enc.Close()
			return nil, err
		}
		if err := enc.Encode(frame, codec.EncodeOptions{KeyFrame: i == 0}); err != nil {
			_, _ = enc.Close()
			return nil, err
		}
		fed++
	}

	chunks, err := enc.Close()
	res := &encodeResult{
		Chunks:   len(chunks),
		Frames:   fed,
		Stats:    enc.Stats(),
		Elapsed:  time.Since(start),
		AsyncErr: drainErrors(enc.Errors()),
	}
	if err != nil {
		return res, errors.Join(err, res.AsyncErr)
	}
	if len(chunks) == 0 {
		return res, errors.Join(errors.New("encoder produced no output"), res.AsyncErr)
	}

	var out bytes.Buffer
	for _, chunk := range chunks {
		out.Write(chunk.Data)
	}
	res.Data = out.Bytes()
	return res, nil
}

// results converts the session outcome for reporting.
func (r *encodeResult) results() summarizer.Results {
	out := summarizer.Results{
		Frames:      r.Frames,
		Chunks:      r.Chunks,
		OutputBytes: int64(len(r.Data)),
		Elapsed:     r.Elapsed,
	}
	if r.AsyncErr != nil {
		out.Errors = strings.Split(r.AsyncErr.Error(), "\n")
	}
	return out
}

func drainErrors(ch <-chan error) error {
	var errs []error
	for err := range ch {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func writeOutput(e *env, path string, res *encodeResult) error {
	if err := os.WriteFile(path, res.Data, 0o644); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	e.log.Info(l10n.F("Output saved to %s (%d bytes)", path, len(res.Data)))

	if info, err := containerinfo.Inspect(res.Data); err == nil {
		e.log.Info(l10n.F("Container: %s, codec: %s, %dx%d", string(info.Format), string(info.Codec), info.Width, info.Height))
	}
	if res.AsyncErr != nil {
		e.log.Warn(l10n.F("Backend reported errors: %s", res.AsyncErr.Error()))
	}
	return nil
}

func encodeCommand() *cli.Command {
	flags := []cli.Flag{
		&cli.PathFlag{
			Name:     "input",
			Aliases:  []string{"i"},
			Usage:    l10n.T("Raw I420 input file (required)"),
			Required: true,
		},
		&cli.PathFlag{
			Name:     "output",
			Aliases:  []string{"o"},
			Usage:    l10n.T("Output video file path (required)"),
			Required: true,
			Category: l10n.T(categoryOutput),
		},
		&cli.IntFlag{
			Name:    "width",
			Aliases: []string{"W"},
			Usage:   l10n.T("Frame width in pixels"),
		},
		&cli.IntFlag{
			Name:    "height",
			Aliases: []string{"H"},
			Usage:   l10n.T("Frame height in pixels"),
		},
		&cli.Float64Flag{
			Name:    "framerate",
			Aliases: []string{"r"},
			Usage:   l10n.T("Input frame rate"),
		},
	}

	return &cli.Command{
		Name:  "encode",
		Usage: l10n.T("Encode a raw I420 file into a video container"),
		Flags: append(append(flags, summaryFlag()), codecFlags()...),
		Action: withEnv(func(c *cli.Context, e *env) error {
			cfg := encoderConfig(c, e)
			if c.IsSet("width") {
				cfg.Width = c.Int("width")
			}
			if c.IsSet("height") {
				cfg.Height = c.Int("height")
			}
			if c.IsSet("framerate") {
				cfg.Framerate = c.Float64("framerate")
			}
			if cfg.Width <= 0 || cfg.Height <= 0 {
				return fmt.Errorf("%w: width and height must be positive", codec.ErrInvalidConfig)
			}
			if cfg.Framerate <= 0 {
				cfg.Framerate = codec.DefaultFramerate
			}

			data, err := os.ReadFile(c.Path("input"))
			if err != nil {
				return fmt.Errorf("read input: %w", err)
			}
			frameSize := media.I420Size(cfg.Width, cfg.Height)
			if len(data) == 0 || len(data)%frameSize != 0 {
				return fmt.Errorf("%w: input size %d is not a multiple of %d", media.ErrInvalidArgument, len(data), frameSize)
			}

			dur := int64(1_000_000 / cfg.Framerate)
			next := func(i int) (*media.RawFrame, error) {
				return media.NewRawFrame(data[i*frameSize:(i+1)*frameSize], media.RawFrameInit{
					Timestamp:   media.At(int64(i) * dur),
					Duration:    dur,
					CodedWidth:  cfg.Width,
					CodedHeight: cfg.Height,
				})
			}

			count := len(data) / frameSize
			e.log.Info(l10n.F("Encoding %d frames (%dx%d %s)...", count, cfg.Width, cfg.Height, cfg.Codec))
			res, err := runEncoder(c.Context, e, cfg, count, next)
			if err != nil {
				return err
			}
			if err := writeOutput(e, c.Path("output"), res); err != nil {
				return err
			}
			writeSummary(c, e, cfg, res.results(), res.Data)
			return nil
		}),
	}
}

func demoCommand() *cli.Command {
	return &cli.Command{
		Name:  "demo",
		Usage: l10n.T("Encode 10 synthetic frames at 640x480"),
		Flags: []cli.Flag{
			&cli.PathFlag{
				Name:     "output",
				Aliases:  []string{"o"},
				Usage:    l10n.T("Output video file path"),
				Value:    "demo.webm",
				Category: l10n.T(categoryOutput),
			},
			summaryFlag(),
		},
		Action: withEnv(func(c *cli.Context, e *env) error {
			cfg := codec.EncoderConfig{
				Codec:            "vp8",
				Width:            640,
				Height:           480,
				Bitrate:          1_000_000,
				KeyframeInterval: codec.DefaultKeyframeInterval,
				Framerate:        codec.DefaultFramerate,
			}
			pattern := testsrc.Pattern{Width: cfg.Width, Height: cfg.Height, FPS: codec.DefaultFramerate}

			e.log.Info(l10n.T("Encoding demo video..."))
			res, err := runEncoder(c.Context, e, cfg, 10, pattern.Frame)
			if err != nil {
				return err
			}
			e.log.Info(l10n.F("Encoded %d frames into %d chunks in %s", res.Frames, res.Chunks, res.Elapsed.Round(time.Millisecond).String()))
			if err := writeOutput(e, c.Path("output"), res); err != nil {
				return err
			}
			writeSummary(c, e, cfg, res.results(), res.Data)
			return nil
		}),
	}
}

func stressCommand() *cli.Command {
	return &cli.Command{
		Name:  "stress",
		Usage: l10n.T("Encode synthetic 1080p video and report throughput"),
		Flags: append([]cli.Flag{
			&cli.IntFlag{
				Name:    "seconds",
				Aliases: []string{"s"},
				Usage:   l10n.T("Seconds of 30 fps video to encode"),
				Value:   10,
			},
			&cli.PathFlag{
				Name:     "output",
				Aliases:  []string{"o"},
				Usage:    l10n.T("Save the encoded video to this path"),
				Category: l10n.T(categoryOutput),
			},
			summaryFlag(),
		}, codecFlags()...),
		Action: withEnv(func(c *cli.Context, e *env) error {
			seconds := c.Int("seconds")
			if seconds <= 0 {
				return fmt.Errorf("%w: seconds must be positive", codec.ErrInvalidConfig)
			}

			cfg := encoderConfig(c, e)
			cfg.Width, cfg.Height, cfg.Framerate = stressWidth, stressHeight, stressFPS
			if !c.IsSet("bitrate") {
				cfg.Bitrate = 5_000_000
			}
			pattern := testsrc.Pattern{Width: stressWidth, Height: stressHeight, FPS: stressFPS}
			count := seconds * stressFPS

			var before, after runtime.MemStats
			runtime.GC()
			runtime.ReadMemStats(&before)

			e.log.Info(l10n.F("Stress test: %d frames at %dx%d (%s)...", count, stressWidth, stressHeight, cfg.Codec))
			res, err := runEncoder(c.Context, e, cfg, count, pattern.Frame)
			if err != nil {
				return err
			}
			runtime.ReadMemStats(&after)

			results := res.results()
			results.MemoryDelta = int64(after.HeapAlloc) - int64(before.HeapAlloc)
			printStressReport(results)

			if results.Elapsed > stressSlowThreshold {
				e.log.Warn(l10n.F("Encoding took longer than %s", stressSlowThreshold.String()))
			}
			if results.MemoryDelta > stressMemoryThreshold {
				e.log.Warn(l10n.F("Memory grew by more than %d MB", stressMemoryThreshold>>20))
			}
			writeSummary(c, e, cfg, results, res.Data)

			if path := c.Path("output"); path != "" {
				return writeOutput(e, path, res)
			}
			return nil
		}),
	}
}

func printStressReport(r summarizer.Results) {
	fmt.Println(l10n.F("Frames: %d", r.Frames))
	fmt.Println(l10n.F("Chunks: %d", r.Chunks))
	fmt.Println(l10n.F("Output: %.2f MB", float64(r.OutputBytes)/(1<<20)))
	fmt.Println(l10n.F("Time: %s", r.Elapsed.Round(time.Millisecond).String()))
	fmt.Println(l10n.F("FPS: %.1f", r.FPS()))
	fmt.Println(l10n.F("Throughput: %.2f MB/s", r.ThroughputMBps()))
	fmt.Println(l10n.F("Memory delta: %.2f MB", float64(r.MemoryDelta)/(1<<20)))
}

// writeSummary writes the Markdown session report when --summary is set.
func writeSummary(c *cli.Context, e *env, cfg codec.EncoderConfig, results summarizer.Results, data []byte) {
	path := c.Path("summary")
	if path == "" {
		return
	}

	b := summarizer.NewBuilder().
		WithCommand(strings.Join(os.Args[1:], " ")).
		WithSettings(summarizer.Settings{
			Codec:            cfg.Codec,
			Width:            cfg.Width,
			Height:           cfg.Height,
			Bitrate:          cfg.Bitrate,
			KeyframeInterval: cfg.KeyframeInterval,
			Framerate:        cfg.Framerate,
		}).
		WithResults(results)
	if info, err := containerinfo.Inspect(data); err == nil {
		b.WithContainer(summarizer.ContainerInfo{
			Format:      string(info.Format),
			Codec:       string(info.Codec),
			Width:       info.Width,
			Height:      info.Height,
			Samples:     info.Samples,
			SyncSamples: info.SyncSamples,
			Fragmented:  info.Fragmented,
		})
	}

	w := summarizer.NewWriter(summarizer.NewMarkdownFormatter())
	if err := w.Write(path, b.Build()); err != nil {
		e.log.Warn(l10n.F("Failed to write summary: %s", err.Error()))
		return
	}
	e.log.Info(l10n.F("Summary saved to %s", path))
}

func codecsCommand() *cli.Command {
	return &cli.Command{
		Name:  "codecs",
		Usage: l10n.T("List supported codec identifiers"),
		Action: func(c *cli.Context) error {
			for _, id := range codecs.Supported() {
				d, err := codecs.Lookup(id)
				if err != nil {
					return err
				}
				fmt.Printf("%-6s %-12s %-5s %s\n", d.ID, d.Compressor, string(d.Container), d.MIMEType())
			}
			return nil
		},
	}
}
