package recovery

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/vietddude/edgesync/internal/core/domain"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want FailureCategory
	}{
		{"config", fmt.Errorf("%w: missing url", domain.ErrConfig), CategoryFatal},
		{"network", fmt.Errorf("%w: refused", domain.ErrNetwork), CategoryTransient},
		{"decode", fmt.Errorf("%w: bad json", domain.ErrDecode), CategoryTransient},
		{"db connection", fmt.Errorf("%w: down", domain.ErrPersistenceConnection), CategoryTransient},
		{"db write", fmt.Errorf("%w: constraint", domain.ErrPersistenceWrite), CategoryCycleFatal},
		{"data shape", &domain.DataShapeError{Field: "key"}, CategoryCycleFatal},
		{"http 500", &domain.HTTPStatusError{StatusCode: 500}, CategoryTransient},
		{"http 503", &domain.HTTPStatusError{StatusCode: 503}, CategoryTransient},
		{"http 408", &domain.HTTPStatusError{StatusCode: http.StatusRequestTimeout}, CategoryTransient},
		{"http 429", &domain.HTTPStatusError{StatusCode: http.StatusTooManyRequests}, CategoryTransient},
		{"http 401", &domain.HTTPStatusError{StatusCode: 401}, CategoryCycleFatal},
		{"http 404", &domain.HTTPStatusError{StatusCode: 404}, CategoryCycleFatal},
		{"unknown", errors.New("boom"), CategoryTransient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err); got != tt.want {
				t.Errorf("Classify(%v) = %s, want %s", tt.err, got, tt.want)
			}
		})
	}
}

func TestCyclePolicy_RetryBound(t *testing.T) {
	interval := 60 * time.Second
	backoff := 30 * time.Second
	p := NewCyclePolicy(interval, 3, ConstantBackoff(backoff), nil)
	netErr := fmt.Errorf("%w: refused", domain.ErrNetwork)

	want := []Decision{
		{Action: ActionRetry, Wait: backoff, Category: CategoryTransient, Attempt: 1},
		{Action: ActionRetry, Wait: backoff, Category: CategoryTransient, Attempt: 2},
		{Action: ActionDefer, Wait: interval, Category: CategoryTransient, Attempt: 3},
	}
	for i, w := range want {
		if got := p.OnFailure(netErr); got != w {
			t.Errorf("failure %d: got %+v, want %+v", i+1, got, w)
		}
	}
	if p.Failures() != 0 {
		t.Errorf("expected counter reset after deferring, got %d", p.Failures())
	}

	// The next cycle starts a fresh sequence
	if got := p.OnFailure(netErr); got.Action != ActionRetry || got.Attempt != 1 {
		t.Errorf("expected fresh retry sequence, got %+v", got)
	}
}

func TestCyclePolicy_SuccessResets(t *testing.T) {
	p := NewCyclePolicy(time.Minute, 3, ConstantBackoff(time.Second), nil)
	netErr := fmt.Errorf("%w: refused", domain.ErrNetwork)

	p.OnFailure(netErr)
	p.OnFailure(netErr)
	p.OnSuccess()

	if p.Failures() != 0 {
		t.Fatalf("expected counter reset on success, got %d", p.Failures())
	}
	if got := p.OnFailure(netErr); got.Action != ActionRetry || got.Attempt != 1 {
		t.Errorf("expected retry at attempt 1, got %+v", got)
	}
}

func TestCyclePolicy_CycleFatalDefersImmediately(t *testing.T) {
	p := NewCyclePolicy(time.Minute, 3, ConstantBackoff(time.Second), nil)
	p.OnFailure(fmt.Errorf("%w: refused", domain.ErrNetwork))

	got := p.OnFailure(&domain.HTTPStatusError{StatusCode: 403})
	if got.Action != ActionDefer || got.Wait != time.Minute || got.Category != CategoryCycleFatal {
		t.Errorf("expected defer by interval, got %+v", got)
	}
	if p.Failures() != 0 {
		t.Errorf("expected counter reset, got %d", p.Failures())
	}
}

func TestCyclePolicy_FatalStops(t *testing.T) {
	p := NewCyclePolicy(time.Minute, 3, ConstantBackoff(time.Second), nil)
	got := p.OnFailure(fmt.Errorf("%w: bad", domain.ErrConfig))
	if got.Action != ActionStop {
		t.Errorf("expected stop, got %+v", got)
	}
}

func TestCyclePolicy_RetryAfterIsMinimumWait(t *testing.T) {
	p := NewCyclePolicy(time.Minute, 3, ConstantBackoff(time.Second), nil)

	got := p.OnFailure(&domain.HTTPStatusError{StatusCode: 429, RetryAfter: 10 * time.Second})
	if got.Action != ActionRetry || got.Wait != 10*time.Second {
		t.Errorf("expected retry after 10s, got %+v", got)
	}

	got = p.OnFailure(&domain.HTTPStatusError{StatusCode: 503, RetryAfter: 100 * time.Millisecond})
	if got.Wait != time.Second {
		t.Errorf("expected backoff to win over shorter Retry-After, got %v", got.Wait)
	}
}

func TestCyclePolicy_Exponential(t *testing.T) {
	p := NewCyclePolicy(time.Hour, 10, ExponentialBackoff(time.Second, 5*time.Second), nil)
	netErr := fmt.Errorf("%w: refused", domain.ErrNetwork)

	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 5 * time.Second, 5 * time.Second}
	for i, w := range want {
		got := p.OnFailure(netErr)
		if got.Wait != w {
			t.Errorf("attempt %d: expected wait %v, got %v", i+1, w, got.Wait)
		}
	}
}

func TestCyclePolicy_SingleAttempt(t *testing.T) {
	p := NewCyclePolicy(time.Minute, 1, ConstantBackoff(time.Second), nil)
	got := p.OnFailure(fmt.Errorf("%w: refused", domain.ErrNetwork))
	if got.Action != ActionDefer || got.Wait != time.Minute {
		t.Errorf("expected immediate defer, got %+v", got)
	}
}

func TestCyclePolicy_CustomClassifier(t *testing.T) {
	p := NewCyclePolicy(time.Minute, 3, ConstantBackoff(time.Second), func(error) FailureCategory {
		return CategoryCycleFatal
	})
	if got := p.OnFailure(fmt.Errorf("%w: refused", domain.ErrNetwork)); got.Action != ActionDefer {
		t.Errorf("expected custom classifier to be used, got %+v", got)
	}
}
