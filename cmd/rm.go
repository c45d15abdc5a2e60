package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"
)

var cmdDelete = &cli.Command{
	Name:      "rm",
	Usage:     "Delete an index",
	UsageText: "escli rm INDEX",
	Action:    execDelete,
}

func execDelete(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("invalid syntax: index missing", 1)
	}
	s, err := newSession(c)
	if err != nil {
		return err
	}
	defer s.close()
	ack, err := s.client.DeleteIndex(c.Context, c.Args().Get(0))
	if err != nil {
		return fail(err)
	}
	fmt.Fprintf(c.App.Writer, "Deleted index %s (%s)\n", ack.Index, acknowledged(ack.Acknowledged))
	return nil
}
