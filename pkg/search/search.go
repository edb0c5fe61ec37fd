// Package search filters collected ranking rows offline.
package search

import (
	"sort"
	"strconv"
	"strings"

	"github.com/HariharPal/LC-Fetch/pkg/record"
)

// Column names read by the filters.
const (
	FieldUsername = "username"
	FieldRank     = "rank"
	FieldPage     = "page"
)

// DefaultTop is the size of the top-N listing.
const DefaultTop = 50

// Mode selects a search filter.
type Mode string

const (
	ModeContains   Mode = "contains"
	ModeStartsWith Mode = "starts-with"
	ModeRankRange  Mode = "rank-range"
	ModeTop        Mode = "top"
)

// Contains returns rows whose username contains query, case-insensitively.
func Contains(rows []record.Record, query string) []record.Record {
	q := strings.ToLower(query)
	return filter(rows, func(r record.Record) bool {
		return strings.Contains(strings.ToLower(r.String(FieldUsername)), q)
	})
}

// StartsWith returns rows whose username starts with query, case-insensitively.
func StartsWith(rows []record.Record, query string) []record.Record {
	q := strings.ToLower(query)
	return filter(rows, func(r record.Record) bool {
		return strings.HasPrefix(strings.ToLower(r.String(FieldUsername)), q)
	})
}

// RankRange returns rows with minRank <= rank <= maxRank sorted by rank.
// Rows whose rank is not an integer are skipped.
func RankRange(rows []record.Record, minRank, maxRank int) []record.Record {
	matches := filter(rows, func(r record.Record) bool {
		rank, ok := Rank(r)
		return ok && rank >= minRank && rank <= maxRank
	})
	sortByRank(matches)
	return matches
}

// Top returns the n best ranked rows.
func Top(rows []record.Record, n int) []record.Record {
	if n <= 0 {
		return nil
	}
	ranked := filter(rows, func(r record.Record) bool {
		_, ok := Rank(r)
		return ok
	})
	sortByRank(ranked)
	if len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}

// Rank reads the rank column as an integer. CSV input holds it as text.
func Rank(r record.Record) (int, bool) {
	v, ok := r.Get(FieldRank)
	if !ok || v == nil {
		return 0, false
	}
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), n == float64(int(n))
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		return i, err == nil
	default:
		return 0, false
	}
}

func sortByRank(rows []record.Record) {
	sort.SliceStable(rows, func(i, j int) bool {
		a, _ := Rank(rows[i])
		b, _ := Rank(rows[j])
		return a < b
	})
}

func filter(rows []record.Record, keep func(record.Record) bool) []record.Record {
	var out []record.Record
	for _, r := range rows {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out
}
