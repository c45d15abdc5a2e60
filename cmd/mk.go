package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"
	"heckel.io/escli/client"
)

var cmdCreate = &cli.Command{
	Name:      "mk",
	Usage:     "Create an index",
	UsageText: "escli mk [-m FIELD:TYPE ..] INDEX",
	Action:    execCreate,
	Flags: []cli.Flag{
		&cli.StringSliceFlag{Name: "mapping", Aliases: []string{"m"}, Usage: "field mapping, e.g. year:integer (repeatable)"},
	},
}

func execCreate(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("invalid syntax: index missing", 1)
	}
	index := c.Args().Get(0)
	var mappings []client.Mapping
	for _, m := range c.StringSlice("mapping") {
		mapping, err := client.ParseMapping(m)
		if err != nil {
			return cli.Exit(err.Error(), 1)
		}
		mappings = append(mappings, mapping)
	}
	s, err := newSession(c)
	if err != nil {
		return err
	}
	defer s.close()
	ack, err := s.client.CreateIndex(c.Context, index, mappings)
	if err != nil {
		return fail(err)
	}
	fmt.Fprintf(c.App.Writer, "Created index %s (%s)\n", ack.Index, acknowledged(ack.Acknowledged))
	return nil
}

func acknowledged(ack bool) string {
	if ack {
		return "acknowledged"
	}
	return "not acknowledged"
}
