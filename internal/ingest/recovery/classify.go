// Package recovery decides what the poller does after a failed cycle step.
package recovery

import (
	"errors"
	"net/http"
	"time"

	"github.com/vietddude/edgesync/internal/core/domain"
)

// FailureCategory groups errors by how the poller should react to them.
type FailureCategory int

const (
	// CategoryTransient failures are retried within the cycle.
	CategoryTransient FailureCategory = iota
	// CategoryCycleFatal failures abandon the cycle without retrying.
	CategoryCycleFatal
	// CategoryFatal failures stop the poller.
	CategoryFatal
)

func (c FailureCategory) String() string {
	switch c {
	case CategoryTransient:
		return "transient"
	case CategoryCycleFatal:
		return "cycle_fatal"
	case CategoryFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Classifier maps an error onto a FailureCategory.
type Classifier func(err error) FailureCategory

// Classify is the default Classifier. Unknown errors are treated as transient.
func Classify(err error) FailureCategory {
	var statusErr *domain.HTTPStatusError
	var shapeErr *domain.DataShapeError

	switch {
	case errors.Is(err, domain.ErrConfig):
		return CategoryFatal
	case errors.As(err, &statusErr):
		return classifyStatus(statusErr.StatusCode)
	case errors.As(err, &shapeErr):
		return CategoryCycleFatal
	case errors.Is(err, domain.ErrPersistenceWrite):
		return CategoryCycleFatal
	case errors.Is(err, domain.ErrNetwork),
		errors.Is(err, domain.ErrDecode),
		errors.Is(err, domain.ErrPersistenceConnection):
		return CategoryTransient
	default:
		return CategoryTransient
	}
}

func classifyStatus(code int) FailureCategory {
	switch {
	case code >= 500:
		return CategoryTransient
	case code == http.StatusRequestTimeout, code == http.StatusTooManyRequests:
		return CategoryTransient
	default:
		return CategoryCycleFatal
	}
}

// retryAfter extracts a server-requested minimum wait, if any.
func retryAfter(err error) time.Duration {
	var statusErr *domain.HTTPStatusError
	if errors.As(err, &statusErr) {
		return statusErr.RetryAfter
	}
	return 0
}
