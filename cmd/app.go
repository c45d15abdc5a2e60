// Package cmd provides the escli CLI application
package cmd

import (
	"os"

	"github.com/urfave/cli/v2"
)

// New creates a new CLI application
func New() *cli.App {
	return &cli.App{
		Name:                   "escli",
		Usage:                  "talk to Elasticsearch from the command line",
		UsageText:              "escli [--timeout DURATION] [-v] COMMAND [OPTION..] [ARG..]",
		HideHelpCommand:        true,
		HideVersion:            true,
		EnableBashCompletion:   true,
		UseShortOptionHandling: true,
		Reader:                 os.Stdin,
		Writer:                 os.Stdout,
		ErrWriter:              os.Stderr,
		Flags: []cli.Flag{
			&cli.DurationFlag{Name: "timeout", Aliases: []string{"t"}, DefaultText: "30s, or $ESCLI_TIMEOUT", Usage: "per-request timeout"},
			&cli.BoolFlag{Name: "verbose", Aliases: []string{"v"}, Usage: "log requests and retries to STDERR"},
		},
		Commands: []*cli.Command{
			cmdPing,
			cmdInfo,
			cmdList,
			cmdCreate,
			cmdDelete,
			cmdLoad,
			cmdSearch,
		},
	}
}
