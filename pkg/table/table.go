// Package table merges sparse records into a rectangular table with a
// stable column schema.
package table

import (
	"sort"

	"github.com/HariharPal/LC-Fetch/pkg/record"
)

// Placeholder fills cells whose record has no value for the column.
const Placeholder = ""

// Table is an ordered column list plus rows aligned to it.
type Table struct {
	Columns []string
	Rows    [][]any
}

// Len returns the number of rows.
func (t Table) Len() int {
	return len(t.Rows)
}

// Index returns the position of column name, or -1.
func (t Table) Index(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Column returns every cell of the named column in row order.
func (t Table) Column(name string) ([]any, bool) {
	idx := t.Index(name)
	if idx < 0 {
		return nil, false
	}
	out := make([]any, len(t.Rows))
	for i, row := range t.Rows {
		out[i] = row[idx]
	}
	return out, true
}

// Records converts rows back to records, one field per column,
// placeholders included.
func (t Table) Records() []record.Record {
	out := make([]record.Record, len(t.Rows))
	for i, row := range t.Rows {
		r := record.New()
		for j, c := range t.Columns {
			r.Set(c, row[j])
		}
		out[i] = r
	}
	return out
}

// SortColumns returns a copy with columns in lexical order and every row
// permuted to match.
func (t Table) SortColumns() Table {
	order := make([]int, len(t.Columns))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return t.Columns[order[a]] < t.Columns[order[b]]
	})

	out := Table{
		Columns: make([]string, len(t.Columns)),
		Rows:    make([][]any, len(t.Rows)),
	}
	for i, src := range order {
		out.Columns[i] = t.Columns[src]
	}
	for r, row := range t.Rows {
		nr := make([]any, len(order))
		for i, src := range order {
			nr[i] = row[src]
		}
		out.Rows[r] = nr
	}
	return out
}

// Schema is an ordered column union. Columns are only ever added.
type Schema struct {
	columns []string
	index   map[string]int
}

// NewSchema creates a schema, optionally seeded with columns.
func NewSchema(columns ...string) *Schema {
	s := &Schema{index: make(map[string]int)}
	for _, c := range columns {
		s.Add(c)
	}
	return s
}

// Add appends name if it has not been seen.
func (s *Schema) Add(name string) {
	if _, ok := s.index[name]; ok {
		return
	}
	s.index[name] = len(s.columns)
	s.columns = append(s.columns, name)
}

// Observe adds every field of r in the record's order.
func (s *Schema) Observe(r record.Record) {
	for _, f := range r.Fields() {
		s.Add(f)
	}
}

// Columns returns a copy of the column list.
func (s *Schema) Columns() []string {
	out := make([]string, len(s.columns))
	copy(out, s.columns)
	return out
}

// Len returns the number of columns.
func (s *Schema) Len() int {
	return len(s.columns)
}

// Row lays r out along the schema, filling absent fields with Placeholder.
func (s *Schema) Row(r record.Record) []any {
	row := make([]any, len(s.columns))
	for i, c := range s.columns {
		if v, ok := r.Get(c); ok {
			row[i] = v
		} else {
			row[i] = Placeholder
		}
	}
	return row
}

// Merge builds a table from records: columns are the union of field names in
// first-occurrence order and there is one row per record.
func Merge(records []record.Record) Table {
	return build(NewSchema(), records)
}

func build(schema *Schema, records []record.Record) Table {
	for _, r := range records {
		schema.Observe(r)
	}
	t := Table{
		Columns: schema.Columns(),
		Rows:    make([][]any, len(records)),
	}
	for i, r := range records {
		t.Rows[i] = schema.Row(r)
	}
	return t
}
