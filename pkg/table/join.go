package table

import "github.com/HariharPal/LC-Fetch/pkg/record"

// MissingPolicy decides what a NotFound or failed key contributes to a table.
type MissingPolicy int

const (
	// MissingPlaceholder emits one row holding only the key field.
	MissingPlaceholder MissingPolicy = iota

	// MissingSkip emits no row.
	MissingSkip
)

// FromResults builds a table from key results in the given order. Each row
// starts with keyField set to the result's key; successful results add their
// decoded fields. ensure seeds the schema so expected columns exist even
// when every fetch failed.
func FromResults(results []record.Result, keyField string, policy MissingPolicy, ensure ...string) Table {
	records := make([]record.Record, 0, len(results))
	for _, res := range results {
		rec := record.New()
		rec.Set(keyField, string(res.Key))

		decoded, ok := res.Record()
		if !res.OK() || !ok {
			if policy == MissingSkip {
				continue
			}
			records = append(records, rec)
			continue
		}
		records = append(records, rec.Merge(decoded))
	}

	seed := append([]string{keyField}, ensure...)
	return build(NewSchema(seed...), records)
}

// LeftJoin augments every base row with the fetched record for its key.
// Fetched values win on column collisions. A base row whose fetch failed or
// is missing is kept as is and padded with placeholders; no base row is ever
// dropped. ensure lists fetched columns that must exist even if every fetch failed.
func LeftJoin(base []record.Record, keyField string, byKey map[record.Key]record.Result, ensure ...string) Table {
	schema := NewSchema()
	for _, r := range base {
		schema.Observe(r)
	}
	for _, c := range ensure {
		schema.Add(c)
	}

	joined := make([]record.Record, len(base))
	for i, row := range base {
		joined[i] = row
		res, ok := byKey[record.Key(row.String(keyField))]
		if !ok || !res.OK() {
			continue
		}
		if fetched, ok := res.Record(); ok {
			joined[i] = row.Merge(fetched)
		}
	}
	return build(schema, joined)
}
