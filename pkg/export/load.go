package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/HariharPal/LC-Fetch/pkg/record"
)

// Load reads rows from a CSV or JSON file. CSV values stay strings; JSON
// values keep their scalar types. A leading UTF-8 BOM is ignored.
func Load(path string) ([]record.Record, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	data = bytes.TrimPrefix(data, utf8BOM)

	switch format {
	case FormatCSV:
		return readDelimited(bytes.NewReader(data), ',')
	case FormatTSV:
		return readDelimited(bytes.NewReader(data), '\t')
	default:
		var rows []record.Record
		if err := json.Unmarshal(data, &rows); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		return rows, nil
	}
}

func readDelimited(r io.Reader, comma rune) ([]record.Record, error) {
	cr := csv.NewReader(r)
	cr.Comma = comma
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	var rows []record.Record
	for {
		line, err := cr.Read()
		if err == io.EOF {
			return rows, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", len(rows)+1, err)
		}
		rec := record.New()
		for i, name := range header {
			if i < len(line) {
				rec.Set(name, line[i])
			} else {
				rec.Set(name, "")
			}
		}
		rows = append(rows, rec)
	}
}

// Keys extracts the non-empty values of field in row order, without duplicates.
func Keys(rows []record.Record, field string) []record.Key {
	seen := make(map[string]bool, len(rows))
	keys := make([]record.Key, 0, len(rows))
	for _, row := range rows {
		v := row.String(field)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		keys = append(keys, record.Key(v))
	}
	return keys
}
