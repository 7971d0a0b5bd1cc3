package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrConfig marks invalid or missing configuration. Only returned at startup.
	ErrConfig = errors.New("config error")

	// ErrNetwork is a connection or timeout failure talking to the feed.
	ErrNetwork = errors.New("network error")

	// ErrDecode means the feed answered with something that is not the
	// expected JSON document.
	ErrDecode = errors.New("decode error")

	// ErrPersistenceConnection means the store could not be reached.
	ErrPersistenceConnection = errors.New("persistence connection error")

	// ErrPersistenceWrite means the store rejected one or more writes.
	ErrPersistenceWrite = errors.New("persistence write error")
)

// HTTPStatusError is returned when the feed answers with a non-2xx status.
type HTTPStatusError struct {
	StatusCode int
	Body       string
	RetryAfter time.Duration // zero when the response carried no Retry-After
}

func (e *HTTPStatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("feed returned http %d", e.StatusCode)
	}
	return fmt.Sprintf("feed returned http %d: %s", e.StatusCode, e.Body)
}

// DataShapeError reports a record that lacks a mandatory field or carries
// a value of the wrong shape.
type DataShapeError struct {
	Key    string // empty when the key itself is missing
	Field  string
	Reason string
}

func (e *DataShapeError) Error() string {
	reason := e.Reason
	if reason == "" {
		reason = "missing"
	}
	if e.Key == "" {
		return fmt.Sprintf("malformed advantage: %s %s", e.Field, reason)
	}
	return fmt.Sprintf("malformed advantage %q: %s %s", e.Key, e.Field, reason)
}
