package cmd

import (
	"fmt"
	"io"

	"github.com/HariharPal/LC-Fetch/pkg/export"
	"github.com/HariharPal/LC-Fetch/pkg/report"
	"github.com/HariharPal/LC-Fetch/pkg/table"
	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/rs/zerolog/log"
)

var (
	bold   = color.New(color.Bold)
	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow)
	red    = color.New(color.FgRed)
)

// printSummary writes the outcome counters of one collection.
func printSummary(w io.Writer, title string, snap report.Snapshot) {
	bold.Fprintf(w, "%s: ", title)
	fmt.Fprintf(w, "%d attempted, ", snap.Attempted)
	green.Fprintf(w, "%d succeeded", snap.Succeeded)
	fmt.Fprint(w, ", ")
	yellow.Fprintf(w, "%d not found", snap.NotFound)
	fmt.Fprint(w, ", ")
	if snap.Failed > 0 {
		red.Fprintf(w, "%d failed", snap.Failed)
	} else {
		fmt.Fprintf(w, "%d failed", snap.Failed)
	}
	fmt.Fprintf(w, ", %d empty\n", snap.Empty)
}

// printTable renders up to limit rows of t restricted to columns that exist.
// An empty columns list shows every column; limit <= 0 shows every row.
func printTable(w io.Writer, t table.Table, columns []string, limit int) error {
	idx := make([]int, 0, len(t.Columns))
	header := make([]any, 0, len(t.Columns))
	if len(columns) == 0 {
		columns = t.Columns
	}
	for _, c := range columns {
		if i := t.Index(c); i >= 0 {
			idx = append(idx, i)
			header = append(header, c)
		}
	}
	if len(idx) == 0 {
		fmt.Fprintln(w, "(no columns)")
		return nil
	}

	tw := tablewriter.NewWriter(w)
	tw.Header(header...)
	for r, row := range t.Rows {
		if limit > 0 && r >= limit {
			break
		}
		cells := make([]any, len(idx))
		for j, i := range idx {
			cells[j] = export.Cell(row[i])
		}
		if err := tw.Append(cells...); err != nil {
			return err
		}
	}
	if err := tw.Render(); err != nil {
		return err
	}
	if limit > 0 && t.Len() > limit {
		fmt.Fprintf(w, "... %d more rows\n", t.Len()-limit)
	}
	return nil
}

// saveTable writes t to path and reports where it went.
func saveTable(w io.Writer, path string, t table.Table, opts export.Options) error {
	if err := export.Save(path, t, opts); err != nil {
		return err
	}
	log.Info().Str("path", path).Int("rows", t.Len()).Int("columns", len(t.Columns)).Msg("Table saved")
	green.Fprintf(w, "Saved %d rows to %s\n", t.Len(), path)
	return nil
}
