package main

import (
	"errors"
	"fmt"

	"github.com/ideamans/go-l10n"
	"github.com/urfave/cli/v2"

	"github.com/user/codecbridge/pkg/adapters/containerinfo"
)

func inspectCommand() *cli.Command {
	return &cli.Command{
		Name:      "inspect",
		Usage:     l10n.T("Show container format, codec and sample counts of a video file"),
		ArgsUsage: "<file>",
		Action: func(c *cli.Context) error {
			path := c.Args().First()
			if path == "" {
				return errors.New(l10n.T("A video file argument is required"))
			}

			info, err := containerinfo.InspectFile(path)
			if err != nil {
				return err
			}

			fmt.Println(l10n.F("Format: %s", string(info.Format)))
			fmt.Println(l10n.F("Codec: %s", string(info.Codec)))
			if info.Width > 0 && info.Height > 0 {
				fmt.Println(l10n.F("Size: %dx%d", info.Width, info.Height))
			}
			if info.Format == containerinfo.FormatMP4 {
				fmt.Println(l10n.F("Samples: %d (sync: %d)", info.Samples, info.SyncSamples))
				fmt.Println(l10n.F("Fragmented: %t", info.Fragmented))
			}
			return nil
		},
	}
}
