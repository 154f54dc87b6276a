package main

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ideamans/go-l10n"
	"github.com/urfave/cli/v2"

	"github.com/user/codecbridge/pkg/adapters/containerinfo"
	"github.com/user/codecbridge/pkg/adapters/frameimage"
	"github.com/user/codecbridge/pkg/codec"
	"github.com/user/codecbridge/pkg/media"
)

func decodeCommand() *cli.Command {
	return &cli.Command{
		Name:  "decode",
		Usage: l10n.T("Decode a video file into raw I420 frames"),
		Flags: []cli.Flag{
			&cli.PathFlag{
				Name:     "input",
				Aliases:  []string{"i"},
				Usage:    l10n.T("Compressed video input file (required)"),
				Required: true,
			},
			&cli.PathFlag{
				Name:     "output",
				Aliases:  []string{"o"},
				Usage:    l10n.T("Raw I420 output file"),
				Category: l10n.T(categoryOutput),
			},
			&cli.StringFlag{
				Name:     "codec",
				Usage:    l10n.T("Codec identifier (vp8, vp9, vp09, avc1, h264, av01)"),
				Category: l10n.T(categoryCodec),
			},
			&cli.IntFlag{
				Name:  "coded-width",
				Usage: l10n.T("Output frame width in pixels"),
			},
			&cli.IntFlag{
				Name:  "coded-height",
				Usage: l10n.T("Output frame height in pixels"),
			},
			&cli.PathFlag{
				Name:     "snapshot-dir",
				Usage:    l10n.T("Write PNG thumbnails of decoded frames to this directory"),
				Category: l10n.T(categoryOutput),
			},
			&cli.IntFlag{
				Name:     "snapshot-every",
				Usage:    l10n.T("Write a thumbnail every N frames"),
				Value:    30,
				Category: l10n.T(categoryOutput),
			},
			&cli.IntFlag{
				Name:     "snapshot-width",
				Usage:    l10n.T("Maximum thumbnail width in pixels"),
				Value:    320,
				Category: l10n.T(categoryOutput),
			},
		},
		Action: withEnv(func(c *cli.Context, e *env) error {
			cfg := e.cfg.DecoderConfig()
			cfg.Delivery = codec.DeliverPerFrame
			if c.IsSet("codec") {
				cfg.Codec = c.String("codec")
			}
			if c.IsSet("coded-width") {
				cfg.CodedWidth = c.Int("coded-width")
			}
			if c.IsSet("coded-height") {
				cfg.CodedHeight = c.Int("coded-height")
			}

			data, err := os.ReadFile(c.Path("input"))
			if err != nil {
				return fmt.Errorf("read input: %w", err)
			}
			if info, err := containerinfo.Inspect(data); err == nil {
				e.log.Debug(l10n.F("Container: %s, codec: %s, %dx%d", string(info.Format), string(info.Codec), info.Width, info.Height))
			}

			frames, err := runDecoder(e, cfg, data)
			if err != nil {
				return err
			}
			e.log.Info(l10n.F("Decoded %d frames", len(frames)))

			if path := c.Path("output"); path != "" {
				if err := writeFrames(path, frames); err != nil {
					return err
				}
				e.log.Info(l10n.F("Output saved to %s", path))
			}
			if dir := c.Path("snapshot-dir"); dir != "" {
				n, err := writeSnapshots(dir, frames, c.Int("snapshot-every"), c.Int("snapshot-width"))
				if err != nil {
					return err
				}
				e.log.Info(l10n.F("Saved %d snapshots to %s", n, dir))
			}
			return nil
		}),
	}
}

func runDecoder(e *env, cfg codec.DecoderConfig, data []byte) ([]*media.RawFrame, error) {
	dec := codec.NewDecoder(e.launcher,
		codec.WithLogger(e.log),
		codec.WithFlushTimeout(e.cfg.FlushTimeout()),
	)
	if err := dec.Configure(cfg); err != nil {
		return nil, err
	}

	chunk, err := media.NewEncodedChunk(media.EncodedChunkInit{Kind: media.ChunkKey, Data: data})
	if err != nil {
		_, _ = dec.Close()
		return nil, err
	}
	if err := dec.Decode(chunk); err != nil {
		_, _ = dec.Close()
		return nil, err
	}

	frames, err := dec.Close()
	asyncErr := drainErrors(dec.Errors())
	if err != nil {
		return nil, err
	}
	if len(frames) == 0 && asyncErr != nil {
		return nil, asyncErr
	}
	if asyncErr != nil {
		e.log.Warn(l10n.F("Backend reported errors: %s", asyncErr.Error()))
	}
	return frames, nil
}

func writeFrames(path string, frames []*media.RawFrame) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for _, frame := range frames {
		if _, err := w.Write(frame.Data); err != nil {
			return fmt.Errorf("write output: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return f.Close()
}

func writeSnapshots(dir string, frames []*media.RawFrame, every, width int) (int, error) {
	if every <= 0 {
		every = 1
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, fmt.Errorf("create snapshot directory: %w", err)
	}

	saved := 0
	for i := 0; i < len(frames); i += every {
		img, err := frameimage.Thumbnail(frames[i], width)
		if err != nil {
			return saved, err
		}
		path := filepath.Join(dir, fmt.Sprintf("frame-%05d.png", i))
		if err := frameimage.SavePNG(path, img); err != nil {
			return saved, err
		}
		saved++
	}
	return saved, nil
}
