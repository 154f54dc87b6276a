package main

import (
	"github.com/ideamans/go-l10n"
	"github.com/urfave/cli/v2"

	"github.com/user/codecbridge/pkg/server"
)

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: l10n.T("Run the HTTP encode/decode service"),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "listen",
				Usage: l10n.T("Listen address (default: :3001)"),
			},
			&cli.IntFlag{
				Name:  "max-jobs",
				Usage: l10n.T("Maximum concurrent backend jobs"),
			},
		},
		Action: withEnv(func(c *cli.Context, e *env) error {
			listen := e.cfg.Server.Listen
			if c.IsSet("listen") {
				listen = c.String("listen")
			}
			jobs := e.cfg.Server.MaxConcurrentJobs
			if c.IsSet("max-jobs") {
				jobs = c.Int("max-jobs")
			}

			srv := server.New(server.Options{
				Launcher:          e.launcher,
				Logger:            e.log,
				Registry:          e.registry,
				MaxUploadBytes:    e.cfg.MaxUploadBytes(),
				MaxConcurrentJobs: int64(jobs),
				FlushTimeout:      e.cfg.FlushTimeout(),
				TranscodeTimeout:  e.cfg.TranscodeTimeout(),
				Decoder:           e.cfg.DecoderConfig(),
			})

			e.log.Info(l10n.F("Starting server on %s", listen))
			return srv.ListenAndServe(c.Context, listen)
		}),
	}
}
