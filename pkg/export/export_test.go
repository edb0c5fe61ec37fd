package export

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/HariharPal/LC-Fetch/pkg/record"
	"github.com/HariharPal/LC-Fetch/pkg/table"
)

func sampleTable() table.Table {
	return table.Merge([]record.Record{
		record.FromPairs("rank", int64(1), "username", "alice", "score", 18.5),
		record.FromPairs("rank", int64(2), "username", "bob, jr", "school", "MIT"),
	})
}

func TestFormatFromPath(t *testing.T) {
	tests := []struct {
		path    string
		want    Format
		wantErr bool
	}{
		{"out.csv", FormatCSV, false},
		{"OUT.CSV", FormatCSV, false},
		{"out.json", FormatJSON, false},
		{"out.txt", FormatTSV, false},
		{"out.tsv", FormatTSV, false},
		{"out.xlsx", "", true},
		{"out", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, err := FormatFromPath(tt.path)
			if (err != nil) != tt.wantErr {
				t.Fatalf("FormatFromPath() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && !errors.Is(err, ErrUnsupportedFormat) {
				t.Errorf("error = %v, want ErrUnsupportedFormat", err)
			}
			if got != tt.want {
				t.Errorf("FormatFromPath() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDefaultRankingFilename(t *testing.T) {
	got := DefaultRankingFilename("weekly-contest-400", 1, 5)
	if got != "leetcode_weekly-contest-400_page_1_to_5.csv" {
		t.Errorf("DefaultRankingFilename() = %q", got)
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, FormatCSV, sampleTable(), Options{BOM: true}); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	if !bytes.HasPrefix(buf.Bytes(), utf8BOM) {
		t.Fatal("missing BOM")
	}
	want := "rank,username,score,school\n1,alice,18.5,\n2,\"bob, jr\",,MIT\n"
	if got := string(bytes.TrimPrefix(buf.Bytes(), utf8BOM)); got != want {
		t.Errorf("csv =\n%s\nwant\n%s", got, want)
	}
}

func TestWriteTSV(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, FormatTSV, sampleTable(), Options{}); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("lines = %d, want 3", len(lines))
	}
	if lines[0] != "rank\tusername\tscore\tschool" {
		t.Errorf("header = %q", lines[0])
	}
}

func TestWriteJSONKeepsColumnOrder(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, FormatJSON, sampleTable(), Options{}); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	out := buf.String()
	first := strings.Index(out, `"rank"`)
	last := strings.Index(out, `"school"`)
	if first < 0 || last < 0 || first > last {
		t.Errorf("json keys out of column order:\n%s", out)
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()

	for _, name := range []string{"rows.csv", "rows.json", "rows.txt"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			if err := Save(path, sampleTable(), Options{BOM: true}); err != nil {
				t.Fatalf("Save() error = %v", err)
			}

			rows, err := Load(path)
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if len(rows) != 2 {
				t.Fatalf("rows = %d, want 2", len(rows))
			}
			if got := rows[1].String("username"); got != "bob, jr" {
				t.Errorf("username = %q", got)
			}
			if got := rows[0].Fields()[0]; got != "rank" {
				t.Errorf("first field = %q, want rank", got)
			}
			if got := rows[1].String("school"); got != "MIT" {
				t.Errorf("school = %q", got)
			}
		})
	}
}

func TestLoadRejectsUnknownExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rows.xml")
	if err := os.WriteFile(path, []byte("<rows/>"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("Load() error = %v, want ErrUnsupportedFormat", err)
	}
}

func TestKeys(t *testing.T) {
	rows := []record.Record{
		record.FromPairs("user_slug", "a"),
		record.FromPairs("user_slug", ""),
		record.FromPairs("other", "x"),
		record.FromPairs("user_slug", "b"),
		record.FromPairs("user_slug", "a"),
	}
	got := Keys(rows, "user_slug")
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("Keys() = %v, want [a b]", got)
	}
}

func TestCell(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{nil, ""},
		{"x", "x"},
		{int64(7), "7"},
		{2.5, "2.5"},
		{true, "true"},
	}
	for _, tt := range tests {
		if got := Cell(tt.in); got != tt.want {
			t.Errorf("Cell(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
