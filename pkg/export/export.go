// Package export writes collected tables to disk and loads input rows back.
// The format is chosen from the file extension: .csv, .json, or .txt/.tsv.
package export

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/HariharPal/LC-Fetch/pkg/table"
)

// Format is an output encoding.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
	FormatTSV  Format = "tsv"
)

// utf8BOM lets spreadsheet tools detect UTF-8 in CSV files.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ErrUnsupportedFormat is returned for unknown file extensions.
var ErrUnsupportedFormat = errors.New("unsupported format")

// Options controls serialization.
type Options struct {
	// BOM prefixes CSV output with a UTF-8 byte order mark.
	BOM bool
}

// FormatFromPath picks the format from a file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return FormatCSV, nil
	case ".json":
		return FormatJSON, nil
	case ".txt", ".tsv":
		return FormatTSV, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

// DefaultRankingFilename names a ranking export the way earlier runs did.
func DefaultRankingFilename(contest string, minPage, maxPage int) string {
	return fmt.Sprintf("leetcode_%s_page_%d_to_%d.csv", contest, minPage, maxPage)
}

// Save writes t to path in the format implied by its extension.
func Save(path string, t table.Table, opts Options) error {
	format, err := FormatFromPath(path)
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}

	if err := Write(f, format, t, opts); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

// Write encodes t to w.
func Write(w io.Writer, format Format, t table.Table, opts Options) error {
	switch format {
	case FormatCSV:
		if opts.BOM {
			if _, err := w.Write(utf8BOM); err != nil {
				return err
			}
		}
		return writeDelimited(w, t, ',')
	case FormatTSV:
		return writeDelimited(w, t, '\t')
	case FormatJSON:
		return writeJSON(w, t)
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

func writeDelimited(w io.Writer, t table.Table, comma rune) error {
	cw := csv.NewWriter(w)
	cw.Comma = comma

	if err := cw.Write(t.Columns); err != nil {
		return err
	}
	line := make([]string, len(t.Columns))
	for _, row := range t.Rows {
		for i, v := range row {
			line[i] = Cell(v)
		}
		if err := cw.Write(line); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// writeJSON emits an indented array of objects with keys in column order.
func writeJSON(w io.Writer, t table.Table) error {
	records := t.Records()
	out, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return err
	}
	if _, err := w.Write(out); err != nil {
		return err
	}
	_, err = w.Write([]byte("\n"))
	return err
}

// Cell renders a table value as text. nil renders as the placeholder.
func Cell(v any) string {
	switch val := v.(type) {
	case nil:
		return table.Placeholder
	case string:
		return val
	default:
		return fmt.Sprint(val)
	}
}
