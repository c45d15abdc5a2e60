package cmd

import (
	"github.com/urfave/cli/v2"
	"heckel.io/escli/client"
)

var cmdSearch = &cli.Command{
	Name:      "search",
	Aliases:   []string{"s"},
	Usage:     "Search an index",
	UsageText: "escli search [-o ORDER] [-l LIMIT] [-f raw|table] INDEX [QUERY]",
	Description: `QUERY is a Lucene query string, e.g. 'title:yesterday AND year:>1964'.
Without a query all documents match.

ORDER is a comma separated list of FIELD[:asc|desc]; a leading ~ sorts
descending, e.g. '~year,title'.`,
	Action: execSearch,
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "order-by", Aliases: []string{"o"}, Usage: "sort order"},
		&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Value: client.DefaultSearchSize, Usage: "maximum number of hits"},
		&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Value: "table", Usage: "output format, raw or table"},
	},
}

func execSearch(c *cli.Context) error {
	if c.NArg() < 1 || c.NArg() > 2 {
		return cli.Exit("invalid syntax: index missing", 1)
	}
	format := c.String("format")
	if format != "raw" && format != "table" {
		return cli.Exit("invalid format: "+format+", expected raw or table", 1)
	}
	if c.Int("limit") < 1 {
		return cli.Exit("invalid limit: must be at least 1", 1)
	}
	s, err := newSession(c)
	if err != nil {
		return err
	}
	defer s.close()
	result, err := s.client.Search(c.Context, client.SearchQuery{
		Index: c.Args().Get(0),
		Query: c.Args().Get(1),
		Sort:  client.ParseSort(c.String("order-by")),
		Size:  c.Int("limit"),
	})
	if err != nil {
		return fail(err)
	}
	if format == "raw" {
		return printRawHits(c.App.Writer, result.Hits)
	}
	printHits(c.App.Writer, result.Hits)
	return nil
}
