package recovery

import (
	"sync"
	"time"

	"github.com/sethvargo/go-retry"
)

// Action is what the poller does next after a failure.
type Action int

const (
	// ActionRetry repeats the cycle after Decision.Wait.
	ActionRetry Action = iota
	// ActionDefer gives up on the cycle and waits for the next scheduled one.
	ActionDefer
	// ActionStop terminates the poller.
	ActionStop
)

func (a Action) String() string {
	switch a {
	case ActionRetry:
		return "retry"
	case ActionDefer:
		return "defer"
	case ActionStop:
		return "stop"
	default:
		return "unknown"
	}
}

// Decision is the outcome of consulting a RetryPolicy.
type Decision struct {
	Action   Action
	Wait     time.Duration
	Category FailureCategory
	// Attempt is the consecutive failure count that produced this decision.
	Attempt int
}

// RetryPolicy defines how failed cycles are retried.
type RetryPolicy interface {
	// OnFailure records a failure and returns what to do about it.
	OnFailure(err error) Decision

	// OnSuccess resets the policy after a fully successful cycle.
	OnSuccess()
}

// BackoffFactory builds a fresh backoff sequence each time the failure
// counter resets.
type BackoffFactory func() retry.Backoff

// ConstantBackoff waits d between every retry.
func ConstantBackoff(d time.Duration) BackoffFactory {
	return func() retry.Backoff {
		return retry.NewConstant(d)
	}
}

// ExponentialBackoff doubles from base, capped at maxDelay when positive.
func ExponentialBackoff(base, maxDelay time.Duration) BackoffFactory {
	return func() retry.Backoff {
		b := retry.NewExponential(base)
		if maxDelay > 0 {
			b = retry.WithCappedDuration(maxDelay, b)
		}
		return b
	}
}

// CyclePolicy counts consecutive failures across attempts of one cycle.
// Transient failures are retried until MaxRetries attempts have failed, then
// the counter resets and the cycle is deferred by Interval.
type CyclePolicy struct {
	interval   time.Duration
	maxRetries int
	newBackoff BackoffFactory
	classify   Classifier

	mu       sync.Mutex
	failures int
	backoff  retry.Backoff
}

// NewCyclePolicy creates a policy. A nil classifier uses Classify.
func NewCyclePolicy(interval time.Duration, maxRetries int, backoff BackoffFactory, classifier Classifier) *CyclePolicy {
	if classifier == nil {
		classifier = Classify
	}
	return &CyclePolicy{
		interval:   interval,
		maxRetries: maxRetries,
		newBackoff: backoff,
		classify:   classifier,
		backoff:    backoff(),
	}
}

func (p *CyclePolicy) OnFailure(err error) Decision {
	p.mu.Lock()
	defer p.mu.Unlock()

	category := p.classify(err)
	minWait := retryAfter(err)

	switch category {
	case CategoryFatal:
		p.reset()
		return Decision{Action: ActionStop, Category: category}
	case CategoryCycleFatal:
		p.reset()
		return Decision{Action: ActionDefer, Wait: max(p.interval, minWait), Category: category, Attempt: 1}
	}

	p.failures++
	attempt := p.failures
	if attempt >= p.maxRetries {
		p.reset()
		return Decision{Action: ActionDefer, Wait: max(p.interval, minWait), Category: category, Attempt: attempt}
	}

	wait, stop := p.backoff.Next()
	if stop {
		p.reset()
		return Decision{Action: ActionDefer, Wait: max(p.interval, minWait), Category: category, Attempt: attempt}
	}
	return Decision{Action: ActionRetry, Wait: max(wait, minWait), Category: category, Attempt: attempt}
}

func (p *CyclePolicy) OnSuccess() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reset()
}

// Failures returns the current consecutive failure count.
func (p *CyclePolicy) Failures() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.failures
}

func (p *CyclePolicy) reset() {
	p.failures = 0
	p.backoff = p.newBackoff()
}
