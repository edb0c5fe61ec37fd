// Package report counts unit outcomes of a collection run.
package report

import (
	"fmt"

	"github.com/HariharPal/LC-Fetch/pkg/record"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// UnitsTotal counts resolved units by collector and outcome.
var UnitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "lcfetch_units_total",
	Help: "Total units of work resolved by collector and outcome",
}, []string{"collector", "outcome"})

// Outcome labels used by UnitsTotal.
const (
	OutcomeSucceeded = "succeeded"
	OutcomeNotFound  = "not_found"
	OutcomeFailed    = "failed"
	OutcomeEmpty     = "empty"
)

// Snapshot is a read-only copy of the counters.
type Snapshot struct {
	Attempted int `json:"attempted"`
	Succeeded int `json:"succeeded"`
	NotFound  int `json:"not_found"`
	Failed    int `json:"failed"`
	Empty     int `json:"empty"`
}

// String renders the snapshot for log lines.
func (s Snapshot) String() string {
	return fmt.Sprintf("attempted=%d succeeded=%d not_found=%d failed=%d empty=%d",
		s.Attempted, s.Succeeded, s.NotFound, s.Failed, s.Empty)
}

// Resolved returns the number of units that reached a final outcome.
func (s Snapshot) Resolved() int {
	return s.Succeeded + s.NotFound + s.Failed
}

// Report accumulates outcomes for one run. It is not safe for concurrent
// writers; the coordinating goroutine of a run is its only writer.
type Report struct {
	collector string
	counts    Snapshot
}

// New creates a report labelled with the collector name.
func New(collector string) *Report {
	return &Report{collector: collector}
}

// Observe counts one resolved unit. An empty success counts as both
// succeeded and empty.
func (r *Report) Observe(res record.Result) {
	r.counts.Attempted++

	switch res.Status {
	case record.StatusSuccess:
		r.counts.Succeeded++
		UnitsTotal.WithLabelValues(r.collector, OutcomeSucceeded).Inc()
		if res.Empty() {
			r.counts.Empty++
			UnitsTotal.WithLabelValues(r.collector, OutcomeEmpty).Inc()
		}
	case record.StatusNotFound:
		r.counts.NotFound++
		UnitsTotal.WithLabelValues(r.collector, OutcomeNotFound).Inc()
	default:
		r.counts.Failed++
		UnitsTotal.WithLabelValues(r.collector, OutcomeFailed).Inc()
	}
}

// Snapshot returns a copy of the current counts.
func (r *Report) Snapshot() Snapshot {
	return r.counts
}
