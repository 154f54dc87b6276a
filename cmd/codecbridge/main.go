// Package main provides the CLI entry point for codecbridge.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ideamans/go-l10n"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v2"

	"github.com/user/codecbridge/pkg/adapters/ffmpegbridge"
	"github.com/user/codecbridge/pkg/adapters/logger"
	"github.com/user/codecbridge/pkg/config"
	"github.com/user/codecbridge/pkg/metrics"
	"github.com/user/codecbridge/pkg/ports"
)

var version = "dev"

const (
	categoryBackend = "Backend"
	categoryLogging = "Logging"
	categoryCodec   = "Codec"
	categoryOutput  = "Output"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, l10n.F("Error: %s", err.Error()))
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "codecbridge",
		Usage:   l10n.T("WebCodecs-style video encoding and decoding through ffmpeg"),
		Version: version,
		Flags: []cli.Flag{
			&cli.PathFlag{
				Name:     "config",
				Aliases:  []string{"c"},
				Usage:    l10n.T("YAML configuration file"),
				EnvVars:  []string{"CODECBRIDGE_CONFIG"},
				Category: l10n.T(categoryBackend),
			},
			&cli.StringFlag{
				Name:     "ffmpeg-path",
				Usage:    l10n.T("Path to ffmpeg executable (falls back to FFMPEG_PATH, then PATH)"),
				Category: l10n.T(categoryBackend),
			},
			&cli.StringFlag{
				Name:     "log-level",
				Aliases:  []string{"l"},
				Usage:    l10n.T("Log level (debug, info, warn, error)"),
				Category: l10n.T(categoryLogging),
			},
			&cli.PathFlag{
				Name:     "log-file",
				Usage:    l10n.T("Write logs to a rotating file instead of the console"),
				Category: l10n.T(categoryLogging),
			},
			&cli.BoolFlag{
				Name:     "quiet",
				Aliases:  []string{"Q"},
				Usage:    l10n.T("Suppress all log output"),
				Category: l10n.T(categoryLogging),
			},
		},
		Commands: []*cli.Command{
			serveCommand(),
			encodeCommand(),
			decodeCommand(),
			demoCommand(),
			stressCommand(),
			inspectCommand(),
			codecsCommand(),
			{
				Name:  "version",
				Usage: l10n.T("Show version information"),
				Action: func(c *cli.Context) error {
					fmt.Println(l10n.F("codecbridge version %s", version))
					return nil
				},
			},
		},
	}
}

// env is the wiring shared by every command.
type env struct {
	cfg      config.Config
	log      ports.Logger
	registry *prometheus.Registry
	launcher *ffmpegbridge.Launcher
	closeLog func() error
}

func setup(c *cli.Context) (*env, error) {
	cfg, err := config.Load(c.Path("config"))
	if err != nil {
		return nil, err
	}
	if c.IsSet("ffmpeg-path") {
		cfg.FFmpegPath = c.String("ffmpeg-path")
	}
	if c.IsSet("log-level") {
		cfg.Log.Level = c.String("log-level")
	}
	if c.IsSet("log-file") {
		cfg.Log.File = c.Path("log-file")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	e := &env{
		cfg:      cfg,
		registry: prometheus.NewRegistry(),
		closeLog: func() error { return nil },
	}

	level := ports.ParseLogLevel(cfg.Log.Level)
	switch {
	case c.Bool("quiet"):
		e.log = logger.NewNoop()
	case cfg.Log.File != "":
		e.log, e.closeLog = logger.NewFile(level, cfg.LogFileOptions())
	default:
		e.log = logger.NewConsole(level)
	}

	e.launcher = &ffmpegbridge.Launcher{
		Path:    cfg.FFmpegPath,
		Logger:  e.log,
		Metrics: metrics.New(e.registry),
	}
	return e, nil
}

func (e *env) Close() {
	_ = e.closeLog()
}

// withEnv wraps an action with setup and teardown.
func withEnv(action func(c *cli.Context, e *env) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		e, err := setup(c)
		if err != nil {
			return err
		}
		defer e.Close()
		return action(c, e)
	}
}
