package cmd

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	"heckel.io/escli/client"
)

var healthMarkers = map[string]string{
	"green":  "🟢",
	"yellow": "🟡",
	"red":    "🔴",
}

// printIndices renders one borderless row per index: health, uuid, name, docs, size
// and a lock for closed indices
func printIndices(w io.Writer, indices []client.IndexInfo) {
	if len(indices) == 0 {
		return
	}
	table := plainTable(w)
	table.SetColumnAlignment([]int{
		tablewriter.ALIGN_LEFT,
		tablewriter.ALIGN_LEFT,
		tablewriter.ALIGN_LEFT,
		tablewriter.ALIGN_RIGHT,
		tablewriter.ALIGN_RIGHT,
		tablewriter.ALIGN_LEFT,
	})
	for _, index := range indices {
		health, ok := healthMarkers[index.Health]
		if !ok {
			health = "⚫"
		}
		closed := ""
		if index.Closed() {
			closed = "🔒"
		}
		table.Append([]string{
			health,
			index.UUID,
			index.Name,
			fmt.Sprintf("%s docs", humanize.Comma(index.DocsCount)),
			humanize.Bytes(uint64(index.DatasetSize)),
			closed,
		})
	}
	table.Render()
}

// printHits renders the _source documents of all hits as one table. Columns are the
// top-level fields in the order they are first seen; missing values print as null.
func printHits(w io.Writer, hits []client.Hit) {
	if len(hits) == 0 {
		fmt.Fprintln(w, "No rows")
		return
	}
	var columns []string
	seen := make(map[string]bool)
	rows := make([]map[string]string, 0, len(hits))
	for _, hit := range hits {
		row := make(map[string]string)
		gjson.ParseBytes(hit.Source).ForEach(func(key, value gjson.Result) bool {
			name := key.String()
			if !seen[name] {
				seen[name] = true
				columns = append(columns, name)
			}
			if value.Type == gjson.String {
				row[name] = value.String()
			} else {
				row[name] = value.Raw
			}
			return true
		})
		rows = append(rows, row)
	}
	table := tablewriter.NewWriter(w)
	table.SetHeader(columns)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	for _, row := range rows {
		values := make([]string, len(columns))
		for i, column := range columns {
			value, ok := row[column]
			if !ok {
				value = "null"
			}
			values[i] = value
		}
		table.Append(values)
	}
	table.Render()
}

// printRawHits prints one JSON line per hit, in the format load reads back
func printRawHits(w io.Writer, hits []client.Hit) error {
	for _, hit := range hits {
		line, err := sjson.SetBytes([]byte(`{}`), "_index", hit.Index)
		if err != nil {
			return err
		}
		if line, err = sjson.SetBytes(line, "_id", hit.ID); err != nil {
			return err
		}
		source := hit.Source
		if len(source) == 0 {
			source = []byte(`{}`)
		}
		if line, err = sjson.SetRawBytes(line, "_source", source); err != nil {
			return err
		}
		fmt.Fprintln(w, string(line))
	}
	return nil
}

func plainTable(w io.Writer) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetBorder(false)
	table.SetColumnSeparator("")
	table.SetCenterSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetAutoWrapText(false)
	table.SetTablePadding(" ")
	table.SetNoWhiteSpace(true)
	return table
}
