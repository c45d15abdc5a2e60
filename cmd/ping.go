package cmd

import (
	"fmt"
	"time"

	"github.com/urfave/cli/v2"
	"heckel.io/escli/probe"
)

var cmdPing = &cli.Command{
	Name:      "ping",
	Usage:     "Send HEAD requests to the service root to check availability",
	UsageText: "escli ping [-c COUNT] [-i INTERVAL]",
	Action:    execPing,
	Flags: []cli.Flag{
		&cli.IntFlag{Name: "count", Aliases: []string{"c"}, Value: probe.DefaultCount, Usage: "stop after sending COUNT requests"},
		&cli.DurationFlag{Name: "interval", Aliases: []string{"i"}, Value: probe.DefaultInterval, Usage: "time to wait between requests"},
	},
}

func execPing(c *cli.Context) error {
	s, err := newSession(c)
	if err != nil {
		return err
	}
	defer s.close()
	fmt.Fprintf(c.App.Writer, "HEAD %s\n", s.client.URL())
	var stats probe.Stats
	for sample := range probe.New(s.client).Probe(c.Context, c.Int("count"), c.Duration("interval")) {
		stats.Add(sample)
		elapsed := sample.Elapsed.Round(time.Microsecond)
		if sample.Err != nil && sample.Status == 0 {
			fmt.Fprintf(c.App.Writer, "%s: seq=%d time=%s\n", sample.Err, sample.Seq, elapsed)
		} else {
			fmt.Fprintf(c.App.Writer, "%d: seq=%d time=%s\n", sample.Status, sample.Seq, elapsed)
		}
	}
	fmt.Fprintf(c.App.Writer, "%d requests, %d ok", stats.Sent, stats.Received)
	if stats.Received > 0 {
		fmt.Fprintf(c.App.Writer, ", min/avg/max = %s/%s/%s",
			stats.Min.Round(time.Microsecond), stats.Avg.Round(time.Microsecond), stats.Max.Round(time.Microsecond))
	}
	fmt.Fprintln(c.App.Writer)
	return nil
}
