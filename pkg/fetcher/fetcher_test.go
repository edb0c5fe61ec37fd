package fetcher

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/HariharPal/LC-Fetch/pkg/record"
	"github.com/HariharPal/LC-Fetch/pkg/retry"
)

func testPolicy() retry.Policy {
	p := retry.DefaultPolicy()
	p.BackoffBase = time.Millisecond
	return p
}

// echoDecoder turns the body "school" into {id, school}; "missing" is not found.
var echoDecoder = KeyDecoderFunc(func(key record.Key, body []byte) (record.Record, error) {
	switch string(body) {
	case "missing":
		return record.Record{}, record.ErrNotFound
	case "garbage":
		return record.Record{}, errors.New("unexpected body")
	}
	return record.FromPairs("id", string(key), "school", string(body)), nil
})

func TestFetchAllResolvesEveryKey(t *testing.T) {
	var flaky atomic.Int32
	f := KeyFetcherFunc(func(_ context.Context, key record.Key) ([]byte, error) {
		switch key {
		case "nf":
			return nil, record.ErrNotFound
		case "gone":
			return []byte("missing"), nil
		case "bad":
			return []byte("garbage"), nil
		case "down":
			return nil, &record.TransportError{StatusCode: 502, Kind: record.KindServer}
		case "forbidden":
			return nil, &record.TransportError{StatusCode: 403, Kind: record.KindClient}
		case "flaky":
			if flaky.Add(1) == 1 {
				return nil, &record.TransportError{Kind: record.KindNetwork}
			}
		}
		return []byte("School " + strings.ToUpper(string(key))), nil
	})

	keys := []record.Key{"a", "nf", "gone", "bad", "down", "forbidden", "flaky", "b"}
	p := NewPool(f, echoDecoder, Config{Workers: 3, Policy: testPolicy()})
	res := p.FetchAll(context.Background(), keys)

	if len(res.ByKey) != len(keys) {
		t.Fatalf("ByKey has %d entries, want %d", len(res.ByKey), len(keys))
	}

	tests := []struct {
		key      record.Key
		status   record.Status
		kind     record.ErrorKind
		attempts int
	}{
		{"a", record.StatusSuccess, "", 1},
		{"nf", record.StatusNotFound, record.KindNotFound, 1},
		{"gone", record.StatusNotFound, record.KindNotFound, 1},
		{"bad", record.StatusFailure, record.KindDecode, 1},
		{"down", record.StatusFailure, record.KindServer, 3},
		{"forbidden", record.StatusFailure, record.KindClient, 1},
		{"flaky", record.StatusSuccess, "", 2},
	}
	for _, tt := range tests {
		t.Run(string(tt.key), func(t *testing.T) {
			r := res.ByKey[tt.key]
			if r.Status != tt.status || r.Kind() != tt.kind || r.Attempts != tt.attempts {
				t.Errorf("result = {%s %s attempts=%d}, want {%s %s attempts=%d} (err %v)",
					r.Status, r.Kind(), r.Attempts, tt.status, tt.kind, tt.attempts, r.Err)
			}
		})
	}

	for i, key := range keys {
		if res.Ordered[i].Key != key {
			t.Errorf("Ordered[%d].Key = %s, want %s", i, res.Ordered[i].Key, key)
		}
	}

	rec, ok := res.ByKey["a"].Record()
	if !ok || rec.String("school") != "School A" {
		t.Errorf("a record = %v", rec)
	}

	if res.Report.Attempted != 8 || res.Report.Succeeded != 3 || res.Report.NotFound != 2 || res.Report.Failed != 3 {
		t.Errorf("report = %s", res.Report)
	}
}

func TestFetchAllDeduplicatesKeys(t *testing.T) {
	var calls atomic.Int32
	f := KeyFetcherFunc(func(_ context.Context, key record.Key) ([]byte, error) {
		calls.Add(1)
		return []byte("x"), nil
	})

	keys := []record.Key{"a", "b", "a", "c", "b"}
	res := NewPool(f, echoDecoder, Config{Workers: 2, Policy: testPolicy()}).FetchAll(context.Background(), keys)

	if calls.Load() != 3 {
		t.Errorf("fetch calls = %d, want 3", calls.Load())
	}
	if len(res.ByKey) != 3 || len(res.Ordered) != 5 {
		t.Fatalf("ByKey = %d Ordered = %d, want 3 and 5", len(res.ByKey), len(res.Ordered))
	}
	if res.Ordered[2].Key != "a" || !res.Ordered[2].OK() {
		t.Errorf("duplicate should resolve to the same result: %+v", res.Ordered[2])
	}
	if res.Report.Attempted != 3 {
		t.Errorf("report = %s, want one unit per distinct key", res.Report)
	}
}

func TestFetchAllEmpty(t *testing.T) {
	f := KeyFetcherFunc(func(context.Context, record.Key) ([]byte, error) {
		t.Error("fetcher should not be called")
		return nil, nil
	})
	res := NewPool(f, echoDecoder, Config{Policy: testPolicy()}).FetchAll(context.Background(), nil)
	if len(res.ByKey) != 0 || len(res.Ordered) != 0 {
		t.Errorf("results = %+v", res)
	}
}

func TestWorkersBoundConcurrency(t *testing.T) {
	var inFlight, peak atomic.Int32
	f := KeyFetcherFunc(func(ctx context.Context, key record.Key) ([]byte, error) {
		n := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		return []byte("x"), nil
	})

	keys := make([]record.Key, 30)
	for i := range keys {
		keys[i] = record.PageKey(i)
	}

	p := NewPool(f, echoDecoder, Config{Workers: 4, Policy: testPolicy()})
	res := p.FetchAll(context.Background(), keys)

	if res.Report.Succeeded != 30 {
		t.Errorf("report = %s", res.Report)
	}
	if got := peak.Load(); got > 4 {
		t.Errorf("peak concurrency = %d, want <= 4", got)
	}
	if p.Workers() != 4 {
		t.Errorf("Workers() = %d", p.Workers())
	}
}

func TestDefaultWorkers(t *testing.T) {
	f := KeyFetcherFunc(func(context.Context, record.Key) ([]byte, error) { return nil, nil })
	if got := NewPool(f, echoDecoder, Config{}).Workers(); got != DefaultWorkers {
		t.Errorf("Workers() = %d, want %d", got, DefaultWorkers)
	}
}

func TestParallelismTimingBound(t *testing.T) {
	latency := []time.Duration{60, 90, 75, 100, 50}
	keys := make([]record.Key, len(latency))
	delays := make(map[record.Key]time.Duration)
	for i, ms := range latency {
		keys[i] = record.PageKey(i)
		delays[keys[i]] = ms * time.Millisecond
	}

	f := KeyFetcherFunc(func(ctx context.Context, key record.Key) ([]byte, error) {
		select {
		case <-time.After(delays[key]):
			return []byte("x"), nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	})

	start := time.Now()
	res := NewPool(f, echoDecoder, Config{Workers: 2, Policy: testPolicy()}).FetchAll(context.Background(), keys)
	elapsed := time.Since(start)

	if res.Report.Succeeded != 5 {
		t.Fatalf("report = %s", res.Report)
	}
	// ceil(5/2) rounds of at most 100ms is 300ms; serial is 375ms.
	if elapsed >= 350*time.Millisecond {
		t.Errorf("elapsed = %v, want < 350ms with 2 workers", elapsed)
	}
}

func TestFetchAllCancelledMidway(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var started atomic.Int32
	f := KeyFetcherFunc(func(fctx context.Context, key record.Key) ([]byte, error) {
		if started.Add(1) == 3 {
			cancel()
		}
		select {
		case <-time.After(10 * time.Millisecond):
			return []byte("x"), nil
		case <-fctx.Done():
			return nil, fctx.Err()
		}
	})

	keys := make([]record.Key, 50)
	for i := range keys {
		keys[i] = record.PageKey(i)
	}

	var mu sync.Mutex
	seen := make(map[record.Key]int)
	p := NewPool(f, echoDecoder, Config{
		Workers: 2,
		Policy:  testPolicy(),
		OnResult: func(r record.Result) {
			mu.Lock()
			seen[r.Key]++
			mu.Unlock()
		},
	})
	res := p.FetchAll(ctx, keys)

	if len(res.ByKey) != 50 {
		t.Fatalf("ByKey = %d, want 50", len(res.ByKey))
	}
	for _, key := range keys {
		if seen[key] != 1 {
			t.Errorf("key %s resolved %d times, want 1", key, seen[key])
		}
	}

	undispatched := 0
	for _, r := range res.ByKey {
		if r.Attempts == 0 {
			undispatched++
			if r.Status != record.StatusFailure || !errors.Is(r.Err, context.Canceled) {
				t.Errorf("undispatched %s = %s %v, want failure wrapping context.Canceled", r.Key, r.Status, r.Err)
			}
		}
	}
	if undispatched == 0 {
		t.Error("expected undispatched keys after cancellation")
	}
	if res.Interrupted < undispatched {
		t.Errorf("Interrupted = %d, want at least %d", res.Interrupted, undispatched)
	}
	if started.Load() > 10 {
		t.Errorf("started = %d, dispatching should stop soon after cancel", started.Load())
	}
}

func TestFetchAllCancelledAfterCompletion(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f := KeyFetcherFunc(func(context.Context, record.Key) ([]byte, error) { return []byte("s"), nil })
	p := NewPool(f, echoDecoder, Config{
		Workers:  1,
		Policy:   testPolicy(),
		OnResult: func(record.Result) { cancel() },
	})
	res := p.FetchAll(ctx, []record.Key{"only"})

	if ctx.Err() == nil {
		t.Fatal("context should be cancelled by OnResult")
	}
	if res.Interrupted != 0 || res.Report.Succeeded != 1 {
		t.Errorf("Interrupted = %d snapshot = %s, want a complete run", res.Interrupted, res.Report)
	}
}

func TestStream(t *testing.T) {
	f := KeyFetcherFunc(func(_ context.Context, key record.Key) ([]byte, error) {
		if key == "x" {
			return nil, record.ErrNotFound
		}
		return []byte("s"), nil
	})
	keys := []record.Key{"x", "y", "z", "y"}

	got := make(map[record.Key]record.Status)
	for r := range NewPool(f, echoDecoder, Config{Workers: 2, Policy: testPolicy()}).Stream(context.Background(), keys) {
		if _, dup := got[r.Key]; dup {
			t.Errorf("key %s streamed twice", r.Key)
		}
		got[r.Key] = r.Status
	}

	if len(got) != 3 {
		t.Fatalf("streamed %d results, want 3", len(got))
	}
	if got["x"] != record.StatusNotFound || got["y"] != record.StatusSuccess {
		t.Errorf("statuses = %v", got)
	}
}

func TestNewWorkItems(t *testing.T) {
	unique, items := newWorkItems([]record.Key{"b", "a", "b", "c", "a"})
	if len(unique) != 3 || unique[0] != "b" || unique[1] != "a" || unique[2] != "c" {
		t.Errorf("unique = %v", unique)
	}

	w := items["a"]
	if w.state != statePending {
		t.Errorf("initial state = %d, want pending", w.state)
	}
	w.start()
	if w.state != stateInFlight {
		t.Errorf("state after start = %d, want in flight", w.state)
	}
	if w.pending() {
		t.Error("in-flight item reported as pending")
	}
	w.finish()
	if w.state != stateDone {
		t.Errorf("finished item = %+v", w)
	}
	if !items["c"].pending() {
		t.Error("untouched item should be pending")
	}
}
