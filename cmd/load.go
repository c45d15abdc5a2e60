package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"heckel.io/escli/bulk"
	"heckel.io/escli/client"
	"heckel.io/escli/util"
)

var cmdLoad = &cli.Command{
	Name:      "load",
	Aliases:   []string{"l"},
	Usage:     "Load documents into an index from files or STDIN",
	UsageText: "escli load [OPTION..] INDEX [FILE..]",
	Description: `Reads newline-delimited JSON (or CSV with --csv) from the given files, or from
STDIN if no file or '-' is given, and writes it to INDEX in batches via _bulk.

Each JSON line is either a document, or a search hit as printed by
'escli search -f raw', i.e. {"_id":..,"_source":{..}}, optionally with an
"_op" of index, create, update or delete. CSV files need a header row.

A batch that fails as a whole (network error, timeout, 429/502/503/504) is sent
again. If the cluster applied part of it before failing, documents without an
_id may end up indexed twice.`,
	Action: execLoad,
	Flags: []cli.Flag{
		&cli.BoolFlag{Name: "csv", Aliases: []string{"c"}, Usage: "input is CSV with a header row"},
		&cli.IntFlag{Name: "batch-size", Aliases: []string{"b"}, Value: bulk.DefaultMaxCount, Usage: "maximum documents per batch"},
		&cli.StringFlag{Name: "batch-bytes", Aliases: []string{"B"}, Value: "5MiB", Usage: "maximum batch size in bytes"},
		&cli.IntFlag{Name: "retries", Aliases: []string{"r"}, DefaultText: "3, or $ESCLI_RETRIES", Usage: "attempts per batch"},
		&cli.StringFlag{Name: "refresh", Value: client.RefreshWaitFor, Usage: "refresh policy: true, false or wait_for"},
		&cli.IntFlag{Name: "max-failures", Aliases: []string{"m"}, Value: -1, DefaultText: "never fail", Usage: "exit with an error if more documents than this fail"},
		&cli.IntFlag{Name: "show-failures", Value: 10, Usage: "number of failed documents to list"},
		&cli.BoolFlag{Name: "progress", Aliases: []string{"p"}, Usage: "show a progress bar on STDERR"},
	},
}

func execLoad(c *cli.Context) error {
	if c.NArg() < 1 {
		return cli.Exit("invalid syntax: index missing", 1)
	}
	index := c.Args().Get(0)
	maxBytes, err := humanize.ParseBytes(c.String("batch-bytes"))
	if err != nil {
		return cli.Exit(fmt.Sprintf("invalid batch size %q: %s", c.String("batch-bytes"), err), 1)
	}
	refresh := c.String("refresh")
	switch refresh {
	case client.RefreshWaitFor, client.RefreshTrue, client.RefreshFalse:
	default:
		return cli.Exit("invalid refresh policy: "+refresh, 1)
	}
	source, closeAll, err := openSources(c, index)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	defer closeAll()

	s, err := newSession(c)
	if err != nil {
		return err
	}
	defer s.close()
	attempts := s.options.Retries
	if c.IsSet("retries") {
		attempts = c.Int("retries")
	}
	var progress *util.ProgressBar
	if c.Bool("progress") {
		progress = util.NewProgressBar(c.App.ErrWriter)
	}
	ingestor := bulk.NewIngestor(s.client, s.log, bulk.Options{
		MaxCount: c.Int("batch-size"),
		MaxBytes: int(maxBytes),
		Backoff:  backoff(attempts),
		Refresh:  refresh,
		OnBatch: func(r bulk.BatchResult) {
			if progress != nil {
				progress.Add(r.Count, r.Failed, int64(r.Size))
			}
		},
	})
	summary, err := ingestor.Ingest(c.Context, source)
	if progress != nil {
		progress.Done()
	}
	printSummary(c.App.Writer, summary, c.Int("show-failures"))
	if errors.Is(err, context.Canceled) {
		return cli.Exit("load interrupted, summary covers completed batches only", 1)
	} else if err != nil {
		return fail(err)
	}
	if maxFailures := c.Int("max-failures"); maxFailures >= 0 && summary.Failed > maxFailures {
		return cli.Exit(fmt.Sprintf("%d documents failed, more than the allowed %d", summary.Failed, maxFailures), 1)
	}
	s.log.Debug("load complete", zap.Int("submitted", summary.Submitted), zap.Int("batches", summary.Batches))
	return nil
}

// openSources opens all inputs up front, so that a missing file fails before anything
// is written
func openSources(c *cli.Context, index string) (bulk.Source, func(), error) {
	names := c.Args().Tail()
	if len(names) == 0 {
		names = []string{"-"}
	}
	var files []*os.File
	closeAll := func() {
		for _, f := range files {
			f.Close()
		}
	}
	sources := make([]bulk.Source, 0, len(names))
	for _, name := range names {
		var r io.Reader
		if name == "-" {
			r = c.App.Reader
		} else {
			f, err := os.Open(name)
			if err != nil {
				closeAll()
				return nil, nil, err
			}
			files = append(files, f)
			r = f
		}
		if c.Bool("csv") {
			sources = append(sources, bulk.NewCSVReader(r, name, index))
		} else {
			sources = append(sources, bulk.NewNDJSONReader(r, name, index))
		}
	}
	return bulk.Concat(sources...), closeAll, nil
}

func printSummary(w io.Writer, summary *bulk.Summary, show int) {
	results := make([]string, 0, len(summary.Results))
	for result := range summary.Results {
		results = append(results, result)
	}
	sort.Strings(results)
	for _, result := range results {
		fmt.Fprintf(w, "Successfully %s %d documents\n", result, summary.Results[result])
	}
	if summary.Failed == 0 {
		if summary.Submitted == 0 {
			fmt.Fprintln(w, "No documents loaded")
		}
		return
	}
	fmt.Fprintf(w, "Failed to load %d of %d documents\n", summary.Failed, summary.Submitted)
	for i, failure := range summary.Failures {
		if show >= 0 && i >= show {
			fmt.Fprintf(w, "  ... and %d more\n", len(summary.Failures)-show)
			break
		}
		target := failure.Index
		if failure.ID != "" {
			target += "/" + failure.ID
		}
		reason := strings.ReplaceAll(failure.ErrorReason, "\n", " ")
		fmt.Fprintf(w, "  #%d %s %s: %s: %s\n", failure.Position, failure.Action, target, failure.ErrorType, reason)
	}
}
