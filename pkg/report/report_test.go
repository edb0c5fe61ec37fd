package report

import (
	"errors"
	"testing"

	"github.com/HariharPal/LC-Fetch/pkg/record"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestReportObserve(t *testing.T) {
	r := New("report-test")

	full := record.Success("1", []byte("x"), 1)
	full.Records = []record.Record{record.FromPairs("id", 1)}

	r.Observe(full)
	r.Observe(record.Success("2", []byte("{}"), 2))
	r.Observe(record.NotFound("3", 1))
	r.Observe(record.Failure("4", errors.New("boom"), 3))
	r.Observe(record.Failure("5", errors.New("boom"), 1))

	want := Snapshot{Attempted: 5, Succeeded: 2, NotFound: 1, Failed: 2, Empty: 1}
	if got := r.Snapshot(); got != want {
		t.Errorf("Snapshot() = %+v, want %+v", got, want)
	}
	if got := r.Snapshot().Resolved(); got != 5 {
		t.Errorf("Resolved() = %d, want 5", got)
	}

	if got := testutil.ToFloat64(UnitsTotal.WithLabelValues("report-test", OutcomeFailed)); got != 2 {
		t.Errorf("failed counter = %v, want 2", got)
	}
	if got := testutil.ToFloat64(UnitsTotal.WithLabelValues("report-test", OutcomeEmpty)); got != 1 {
		t.Errorf("empty counter = %v, want 1", got)
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	r := New("report-copy")
	r.Observe(record.NotFound("a", 1))

	snap := r.Snapshot()
	r.Observe(record.NotFound("b", 1))

	if snap.NotFound != 1 {
		t.Errorf("earlier snapshot changed: %+v", snap)
	}
}

func TestSnapshotString(t *testing.T) {
	s := Snapshot{Attempted: 3, Succeeded: 1, NotFound: 1, Failed: 1}
	want := "attempted=3 succeeded=1 not_found=1 failed=1 empty=0"
	if s.String() != want {
		t.Errorf("String() = %q, want %q", s.String(), want)
	}
}
