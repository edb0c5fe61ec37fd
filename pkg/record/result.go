package record

import "fmt"

// Status is the resolution of one unit of work.
type Status int

const (
	// StatusSuccess means the payload was fetched (and decoded, if a decoder ran).
	StatusSuccess Status = iota

	// StatusNotFound means the entity does not exist upstream.
	StatusNotFound

	// StatusFailure means the unit failed permanently or exhausted its retries.
	StatusFailure
)

// String returns the lowercase name used in logs and metric labels.
func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusNotFound:
		return "not_found"
	case StatusFailure:
		return "failure"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Result is the classified outcome of fetching one Key.
type Result struct {
	Key      Key
	Status   Status
	Payload  []byte
	Records  []Record
	Err      error
	Attempts int
}

// Success builds a successful result.
func Success(key Key, payload []byte, attempts int) Result {
	return Result{Key: key, Status: StatusSuccess, Payload: payload, Attempts: attempts}
}

// NotFound builds a not-found result.
func NotFound(key Key, attempts int) Result {
	return Result{Key: key, Status: StatusNotFound, Err: ErrNotFound, Attempts: attempts}
}

// Failure builds a failed result carrying err.
func Failure(key Key, err error, attempts int) Result {
	return Result{Key: key, Status: StatusFailure, Err: err, Attempts: attempts}
}

// OK reports whether the result is a success.
func (r Result) OK() bool {
	return r.Status == StatusSuccess
}

// Empty reports a success that decoded to zero records.
func (r Result) Empty() bool {
	return r.Status == StatusSuccess && len(r.Records) == 0
}

// Record returns the first decoded record, if any.
func (r Result) Record() (Record, bool) {
	if len(r.Records) == 0 {
		return Record{}, false
	}
	return r.Records[0], true
}

// Kind returns the failure classification, or "" for a success.
func (r Result) Kind() ErrorKind {
	switch r.Status {
	case StatusSuccess:
		return ""
	case StatusNotFound:
		return KindNotFound
	}
	kind, _ := Classify(r.Err)
	return kind
}
