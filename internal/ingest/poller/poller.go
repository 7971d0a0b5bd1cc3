// Package poller runs the fetch, transform and persist cycle on a fixed cadence.
package poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vietddude/edgesync/internal/core/domain"
	"github.com/vietddude/edgesync/internal/infra/storage"
	"github.com/vietddude/edgesync/internal/ingest/metrics"
	"github.com/vietddude/edgesync/internal/ingest/recovery"
	"github.com/vietddude/edgesync/internal/ingest/transform"
)

// Malformed record policies.
const (
	MalformedSkip  = "skip"
	MalformedAbort = "abort"
)

// Fetcher returns the current advantages from the feed.
type Fetcher interface {
	FetchAdvantages(ctx context.Context) ([]domain.RawAdvantage, error)
}

// Publisher announces edges that were persisted by a cycle.
type Publisher interface {
	PublishEdges(ctx context.Context, cycleID string, edges []*domain.Edge) error
}

// Config holds poller configuration
type Config struct {
	Interval       time.Duration
	PersistTimeout time.Duration
	PublishTimeout time.Duration
	Malformed      string
}

// Poller drives one cycle at a time. Cycles never overlap.
type Poller struct {
	cfg       Config
	fetcher   Fetcher
	repo      storage.EdgeRepository
	policy    recovery.RetryPolicy
	publisher Publisher
	log       *slog.Logger

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error

	mu      sync.RWMutex
	state   State
	cycleID string
}

// Option configures optional collaborators.
type Option func(*Poller)

// WithPublisher publishes persisted edges after every successful cycle.
func WithPublisher(pub Publisher) Option {
	return func(p *Poller) { p.publisher = pub }
}

// WithLogger overrides slog.Default().
func WithLogger(log *slog.Logger) Option {
	return func(p *Poller) { p.log = log }
}

// WithClock overrides time.Now for cycle timestamps.
func WithClock(now func() time.Time) Option {
	return func(p *Poller) { p.now = now }
}

// WithSleeper overrides how the poller waits between cycles and retries.
func WithSleeper(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(p *Poller) { p.sleep = sleep }
}

// New creates a poller in the idle state.
func New(cfg Config, fetcher Fetcher, repo storage.EdgeRepository, policy recovery.RetryPolicy, opts ...Option) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = 60 * time.Second
	}
	if cfg.PersistTimeout <= 0 {
		cfg.PersistTimeout = 30 * time.Second
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = 5 * time.Second
	}
	if cfg.Malformed == "" {
		cfg.Malformed = MalformedSkip
	}

	p := &Poller{
		cfg:     cfg,
		fetcher: fetcher,
		repo:    repo,
		policy:  policy,
		log:     slog.Default(),
		now:     time.Now,
		sleep:   sleepContext,
		state:   StateIdle,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// State returns the current state and cycle ID.
func (p *Poller) State() (State, string) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state, p.cycleID
}

// Run starts the first cycle immediately and loops until ctx is cancelled.
// It only returns an error when the retry policy decides to stop.
func (p *Poller) Run(ctx context.Context) error {
	p.log.Info("Poller started", "interval", p.cfg.Interval, "malformed", p.cfg.Malformed)
	cycleID := uuid.NewString()

	for {
		if err := p.transition(StateFetching, cycleID); err != nil {
			return err
		}

		err := p.runCycle(ctx, cycleID)
		if ctx.Err() != nil {
			p.log.Info("Poller stopped", "cycle_id", cycleID)
			return nil
		}

		wait := p.cfg.Interval
		if err == nil {
			p.policy.OnSuccess()
			if err := p.transition(StateIdle, cycleID); err != nil {
				return err
			}
			cycleID = uuid.NewString()
		} else {
			decision := p.policy.OnFailure(err)
			wait = decision.Wait

			switch decision.Action {
			case recovery.ActionRetry:
				metrics.RetriesTotal.Inc()
				p.log.Warn("Cycle attempt failed, retrying",
					"cycle_id", cycleID,
					"attempt", decision.Attempt,
					"category", decision.Category.String(),
					"wait", wait,
					"error", err,
				)
				if err := p.transition(StateRetrying, cycleID); err != nil {
					return err
				}
			case recovery.ActionDefer:
				metrics.CyclesTotal.WithLabelValues("failed").Inc()
				p.log.Error("Cycle failed, deferring to next interval",
					"cycle_id", cycleID,
					"attempts", decision.Attempt,
					"category", decision.Category.String(),
					"wait", wait,
					"error", err,
				)
				if err := p.transition(StateCycleFailed, cycleID); err != nil {
					return err
				}
				cycleID = uuid.NewString()
			default:
				metrics.CyclesTotal.WithLabelValues("failed").Inc()
				p.log.Error("Poller stopping on fatal error", "cycle_id", cycleID, "error", err)
				if terr := p.transition(StateCycleFailed, cycleID); terr != nil {
					return fmt.Errorf("poller stopped: %w", errors.Join(err, terr))
				}
				return fmt.Errorf("poller stopped: %w", err)
			}
		}

		if err := p.sleep(ctx, wait); err != nil {
			p.log.Info("Poller stopped", "cycle_id", cycleID)
			return nil
		}
	}
}

// runCycle performs one attempt. The caller has already entered StateFetching.
func (p *Poller) runCycle(ctx context.Context, cycleID string) error {
	cycleTime := p.now().UTC()

	raws, err := p.fetcher.FetchAdvantages(ctx)
	if err != nil {
		return fmt.Errorf("fetch advantages: %w", err)
	}

	if err := p.transition(StateTransforming, cycleID); err != nil {
		return err
	}
	edges, rejected := transform.TransformAll(raws, cycleTime)
	for _, rejectErr := range rejected {
		metrics.RecordsRejected.Inc()
		p.log.Warn("Skipping malformed advantage", "cycle_id", cycleID, "error", rejectErr)
	}
	if len(rejected) > 0 && p.cfg.Malformed == MalformedAbort {
		return fmt.Errorf("transform: %d malformed advantages: %w", len(rejected), errors.Join(rejected...))
	}

	if err := p.transition(StatePersisting, cycleID); err != nil {
		return err
	}
	persistCtx, cancel := context.WithTimeout(ctx, p.cfg.PersistTimeout)
	res, err := p.repo.UpsertBatch(persistCtx, edges)
	cancel()

	metrics.EdgesUpserted.WithLabelValues("inserted").Add(float64(res.Inserted))
	metrics.EdgesUpserted.WithLabelValues("replaced").Add(float64(res.Replaced))
	metrics.EdgesUpserted.WithLabelValues("failed").Add(float64(res.Failed))
	if err != nil {
		return fmt.Errorf("persist edges: %w", err)
	}

	metrics.CyclesTotal.WithLabelValues("success").Inc()
	metrics.LastSuccess.Set(float64(cycleTime.Unix()))
	p.log.Info("Cycle complete",
		"cycle_id", cycleID,
		"fetched", len(raws),
		"rejected", len(rejected),
		"inserted", res.Inserted,
		"replaced", res.Replaced,
	)

	p.publish(ctx, cycleID, edges)
	return nil
}

func (p *Poller) publish(ctx context.Context, cycleID string, edges []*domain.Edge) {
	if p.publisher == nil || len(edges) == 0 {
		return
	}
	pubCtx, cancel := context.WithTimeout(ctx, p.cfg.PublishTimeout)
	defer cancel()
	if err := p.publisher.PublishEdges(pubCtx, cycleID, edges); err != nil {
		p.log.Warn("Failed to publish edges", "cycle_id", cycleID, "count", len(edges), "error", err)
	}
}

func (p *Poller) transition(to State, cycleID string) error {
	p.mu.Lock()
	t := Transition{From: p.state, To: to, CycleID: cycleID, Timestamp: p.now()}
	if !t.IsValid() {
		p.mu.Unlock()
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, t.From, t.To)
	}
	p.state = to
	p.cycleID = cycleID
	p.mu.Unlock()

	p.log.Debug("Poller state transition", "cycle_id", cycleID, "from", t.From, "to", t.To)
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
