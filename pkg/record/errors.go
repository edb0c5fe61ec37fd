package record

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotFound marks a unit whose entity does not exist upstream.
// It is an outcome, not a failure.
var ErrNotFound = errors.New("not found")

// ErrorKind classifies a failure for retry and reporting decisions.
type ErrorKind string

const (
	// KindNetwork covers connection failures and timeouts.
	KindNetwork ErrorKind = "network"

	// KindServer covers 5xx responses.
	KindServer ErrorKind = "server"

	// KindRateLimit covers 429 responses.
	KindRateLimit ErrorKind = "rate_limit"

	// KindClient covers non-retryable 4xx responses (malformed request, auth).
	KindClient ErrorKind = "client"

	// KindNotFound marks a missing entity.
	KindNotFound ErrorKind = "not_found"

	// KindDecode marks a payload that is not in the expected shape.
	KindDecode ErrorKind = "decode"

	// KindCancelled marks work stopped by context cancellation.
	KindCancelled ErrorKind = "cancelled"

	// KindUnknown is used for errors nothing else claims.
	KindUnknown ErrorKind = "unknown"
)

// Transient reports whether failures of this kind are worth retrying by default.
func (k ErrorKind) Transient() bool {
	switch k {
	case KindNetwork, KindServer, KindRateLimit:
		return true
	default:
		return false
	}
}

// TransportError is a classified failure of a single request.
type TransportError struct {
	StatusCode int
	Kind       ErrorKind
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s error (status %d): %s: %v", e.Kind, e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("%s error (status %d): %s", e.Kind, e.StatusCode, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// Transient reports whether the failure is retryable by default.
func (e *TransportError) Transient() bool {
	return e.Kind.Transient()
}

// DecodeError reports a payload that could not be decoded into records.
type DecodeError struct {
	Key Key
	Err error
}

// Error implements the error interface.
func (e *DecodeError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("decode %s: %v", e.Key, e.Err)
	}
	return fmt.Sprintf("decode: %v", e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Classify returns the kind and HTTP status (0 if none) of err.
func Classify(err error) (ErrorKind, int) {
	if err == nil {
		return "", 0
	}

	var te *TransportError
	if errors.As(err, &te) {
		return te.Kind, te.StatusCode
	}

	var de *DecodeError
	if errors.As(err, &de) {
		return KindDecode, 0
	}

	switch {
	case errors.Is(err, ErrNotFound):
		return KindNotFound, 0
	case errors.Is(err, context.Canceled):
		return KindCancelled, 0
	case errors.Is(err, context.DeadlineExceeded):
		return KindNetwork, 0
	default:
		return KindUnknown, 0
	}
}
