package record

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantKind   ErrorKind
		wantStatus int
	}{
		{"nil", nil, "", 0},
		{"server", &TransportError{StatusCode: 502, Kind: KindServer}, KindServer, 502},
		{"wrapped rate limit", fmt.Errorf("page 3: %w", &TransportError{StatusCode: 429, Kind: KindRateLimit}), KindRateLimit, 429},
		{"decode", &DecodeError{Key: "a", Err: errors.New("bad")}, KindDecode, 0},
		{"not found", fmt.Errorf("user x: %w", ErrNotFound), KindNotFound, 0},
		{"cancelled", fmt.Errorf("wait: %w", context.Canceled), KindCancelled, 0},
		{"deadline", context.DeadlineExceeded, KindNetwork, 0},
		{"other", errors.New("boom"), KindUnknown, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kind, status := Classify(tt.err)
			if kind != tt.wantKind || status != tt.wantStatus {
				t.Errorf("Classify() = (%s, %d), want (%s, %d)", kind, status, tt.wantKind, tt.wantStatus)
			}
		})
	}
}

func TestErrorKindTransient(t *testing.T) {
	transient := map[ErrorKind]bool{
		KindNetwork:   true,
		KindServer:    true,
		KindRateLimit: true,
		KindClient:    false,
		KindNotFound:  false,
		KindDecode:    false,
		KindCancelled: false,
		KindUnknown:   false,
	}
	for kind, want := range transient {
		if got := kind.Transient(); got != want {
			t.Errorf("%s.Transient() = %v, want %v", kind, got, want)
		}
	}
}

func TestTransportErrorUnwrap(t *testing.T) {
	inner := errors.New("connection reset")
	err := &TransportError{Kind: KindNetwork, Message: "request failed", Err: inner}

	if !errors.Is(err, inner) {
		t.Error("errors.Is should find the wrapped error")
	}
	if err.Error() != "network error (status 0): request failed: connection reset" {
		t.Errorf("Error() = %q", err.Error())
	}
	if !err.Transient() {
		t.Error("network error should be transient")
	}
}

func TestDecodeErrorMessage(t *testing.T) {
	withKey := &DecodeError{Key: "alice", Err: errors.New("bad json")}
	if withKey.Error() != "decode alice: bad json" {
		t.Errorf("Error() = %q", withKey.Error())
	}
	noKey := &DecodeError{Err: errors.New("bad json")}
	if noKey.Error() != "decode: bad json" {
		t.Errorf("Error() = %q", noKey.Error())
	}
}

func TestResultHelpers(t *testing.T) {
	ok := Success("a", []byte("x"), 2)
	if !ok.OK() || !ok.Empty() || ok.Kind() != "" {
		t.Errorf("Success result = %+v", ok)
	}
	ok.Records = []Record{FromPairs("id", 1)}
	if ok.Empty() {
		t.Error("result with records should not be empty")
	}
	if r, found := ok.Record(); !found || r.String("id") != "1" {
		t.Errorf("Record() = %v, %v", r, found)
	}

	nf := NotFound("b", 1)
	if nf.OK() || !errors.Is(nf.Err, ErrNotFound) || nf.Kind() != KindNotFound {
		t.Errorf("NotFound result = %+v", nf)
	}

	fail := Failure("c", &TransportError{StatusCode: 400, Kind: KindClient}, 1)
	if fail.Kind() != KindClient || fail.Status.String() != "failure" {
		t.Errorf("Failure result = %+v", fail)
	}
	if _, found := fail.Record(); found {
		t.Error("failure should carry no record")
	}
}
