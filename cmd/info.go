package cmd

import (
	"fmt"

	"github.com/tidwall/pretty"
	"github.com/urfave/cli/v2"
)

var cmdInfo = &cli.Command{
	Name:      "info",
	Usage:     "Show information about the Elasticsearch service",
	UsageText: "escli info [--json]",
	Action:    execInfo,
	Flags: []cli.Flag{
		&cli.BoolFlag{Name: "json", Aliases: []string{"j"}, Usage: "print the raw JSON document"},
	},
}

func execInfo(c *cli.Context) error {
	s, err := newSession(c)
	if err != nil {
		return err
	}
	defer s.close()
	info, err := s.client.Info(c.Context)
	if err != nil {
		return fail(err)
	}
	w := c.App.Writer
	if c.Bool("json") {
		_, err := w.Write(pretty.Pretty(info.Raw))
		return err
	}
	fmt.Fprintf(w, "Name: %s\n", info.Name)
	fmt.Fprintf(w, "Cluster Name: %s\n", info.ClusterName)
	fmt.Fprintf(w, "Cluster UUID: %s\n", info.ClusterUUID)
	fmt.Fprintln(w, "Version:")
	fmt.Fprintf(w, "  Number: %s\n", info.Version.Number)
	fmt.Fprintf(w, "  Build Flavor: %s\n", info.Version.BuildFlavor)
	fmt.Fprintf(w, "  Build Type: %s\n", info.Version.BuildType)
	fmt.Fprintf(w, "  Build Hash: %s\n", info.Version.BuildHash)
	fmt.Fprintf(w, "  Build Date: %s\n", info.Version.BuildDate)
	fmt.Fprintf(w, "  Build Snapshot: %t\n", info.Version.BuildSnapshot)
	fmt.Fprintf(w, "  Lucene Version: %s\n", info.Version.LuceneVersion)
	fmt.Fprintf(w, "  Minimum Wire Compatibility Version: %s\n", info.Version.MinimumWireCompatibilityVersion)
	fmt.Fprintf(w, "  Minimum Index Compatibility Version: %s\n", info.Version.MinimumIndexCompatibilityVersion)
	fmt.Fprintf(w, "Tagline: %s\n", info.Tagline)
	return nil
}
