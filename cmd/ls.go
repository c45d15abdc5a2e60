package cmd

import (
	"github.com/urfave/cli/v2"
	"heckel.io/escli/client"
)

var cmdList = &cli.Command{
	Name:      "ls",
	Usage:     "List indices",
	UsageText: "escli ls [-a] [-o] [-c] [PATTERN]",
	Action:    execList,
	Flags: []cli.Flag{
		&cli.BoolFlag{Name: "all", Aliases: []string{"a"}, Usage: "include hidden and dot-prefixed indices"},
		&cli.BoolFlag{Name: "open", Aliases: []string{"o"}, Usage: "only open indices"},
		&cli.BoolFlag{Name: "closed", Aliases: []string{"c"}, Usage: "only closed indices"},
	},
}

func execList(c *cli.Context) error {
	if c.NArg() > 1 {
		return cli.Exit("invalid syntax: too many arguments", 1)
	}
	s, err := newSession(c)
	if err != nil {
		return err
	}
	defer s.close()
	indices, err := s.client.Indices(c.Context, client.ListOptions{
		Pattern: c.Args().Get(0),
		All:     c.Bool("all"),
		Open:    c.Bool("open"),
		Closed:  c.Bool("closed"),
	})
	if err != nil {
		return fail(err)
	}
	printIndices(c.App.Writer, indices)
	return nil
}
