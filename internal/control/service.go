package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/vietddude/edgesync/internal/core/config"
	"github.com/vietddude/edgesync/internal/infra/feed"
	redisclient "github.com/vietddude/edgesync/internal/infra/redis"
	"github.com/vietddude/edgesync/internal/infra/storage"
	"github.com/vietddude/edgesync/internal/infra/storage/postgres"
	"github.com/vietddude/edgesync/internal/ingest/poller"
	"github.com/vietddude/edgesync/internal/ingest/recovery"
	"github.com/vietddude/edgesync/internal/ingest/status"
)

// Service owns the poller, the status server and their shared resources.
type Service struct {
	cfg          config.AppConfig
	db           *postgres.DB
	repo         storage.EdgeRepository
	redisClient  *redisclient.Client
	poller       *poller.Poller
	statusServer *status.Server
	log          *slog.Logger

	done    chan error
	stopped chan struct{} // closed once the poll loop has exited
}

// Option customizes service construction.
type Option func(*options)

type options struct {
	repo storage.EdgeRepository
}

// WithRepository uses repo instead of opening PostgreSQL. Migrations are skipped.
func WithRepository(repo storage.EdgeRepository) Option {
	return func(o *options) { o.repo = repo }
}

// NewService creates a new Service instance with all dependencies initialized.
// Only configuration problems fail here: the database and Redis may be
// unreachable at startup.
func NewService(cfg config.AppConfig, opts ...Option) (*Service, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	s := &Service{
		cfg:  cfg,
		log:  slog.Default(),
		done: make(chan error, 1),
	}

	// 1. Initialize Storage
	if o.repo != nil {
		s.repo = o.repo
		s.log.Info("Using provided edge repository")
	} else {
		db, err := postgres.NewDB(context.Background(), cfg.Database)
		if err != nil {
			return nil, err
		}
		s.db = db
		s.repo = postgres.NewEdgeRepo(db)
		s.log.Info("Using PostgreSQL storage", "driver", cfg.Database.Driver)
	}

	// 2. Optional edge fan-out
	var pollerOpts []poller.Option
	if cfg.Redis.Enabled() {
		client, err := redisclient.NewClient(cfg.Redis)
		if err != nil {
			s.log.Warn("Failed to connect to Redis, edge publishing disabled", "error", err)
		} else {
			s.redisClient = client
			pollerOpts = append(pollerOpts, poller.WithPublisher(redisclient.NewPublisher(client, cfg.Redis)))
			s.log.Info("Publishing edges to Redis stream", "stream", cfg.Redis.Stream)
		}
	}

	// 3. Poll loop
	policy := recovery.NewCyclePolicy(
		cfg.Poller.Interval,
		cfg.Poller.MaxRetries,
		backoffFactory(cfg.Poller),
		recovery.Classify,
	)
	s.poller = poller.New(poller.Config{
		Interval:       cfg.Poller.Interval,
		PersistTimeout: cfg.Database.Timeout,
		Malformed:      cfg.Poller.Malformed,
	}, feed.NewClient(cfg.Feed), s.repo, policy, pollerOpts...)

	// 4. Status surface
	s.statusServer = status.NewServer(status.Config{
		Port:           cfg.Server.Port,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		QueryTimeout:   cfg.Database.Timeout,
	}, s.repo)

	return s, nil
}

func backoffFactory(cfg config.PollerConfig) recovery.BackoffFactory {
	if cfg.Backoff == config.BackoffExponential {
		return recovery.ExponentialBackoff(cfg.RetryBackoff, cfg.MaxBackoff)
	}
	return recovery.ConstantBackoff(cfg.RetryBackoff)
}

// Start starts the status server and the poll loop. It does not block.
func (s *Service) Start(ctx context.Context) error {
	// Start Status Server
	go func() {
		s.log.Info("Status server listening", "port", s.cfg.Server.Port)
		if err := s.statusServer.Start(); err != nil {
			s.log.Error("Status server failed", "error", err)
		}
	}()

	// Start DB Metrics Collector
	if s.db != nil {
		s.db.StartMetricsCollector(ctx)
	}

	// Start Poller once the schema is in place
	s.stopped = make(chan struct{})
	go func() {
		defer close(s.stopped)
		if err := s.migrate(ctx); err != nil {
			s.done <- err
			return
		}
		err := s.poller.Run(ctx)
		if err != nil {
			s.log.Error("Poller failed", "error", err)
		}
		s.done <- err
	}()

	return nil
}

// Done receives the poll loop's result once it exits.
func (s *Service) Done() <-chan error {
	return s.done
}

// migrate applies migrations, retrying until the database becomes reachable.
func (s *Service) migrate(ctx context.Context) error {
	if s.db == nil {
		return nil
	}

	backoff := retry.WithCappedDuration(30*time.Second, retry.NewExponential(time.Second))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := postgres.Migrate(ctx, s.db); err != nil {
			s.log.Warn("Migration failed, retrying", "error", err)
			return retry.RetryableError(err)
		}
		return nil
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Stop stops the service. The caller cancels the context passed to Start
// first so the poll loop can exit. Redis and the database stay open until
// the poll loop has returned or ctx is done.
func (s *Service) Stop(ctx context.Context) error {
	s.log.Info("Stopping edgesync...")

	var errs []error

	// Wait for Poller
	if s.stopped != nil {
		select {
		case <-s.stopped:
		case <-ctx.Done():
			s.log.Warn("Poller did not exit before shutdown deadline", "error", ctx.Err())
			errs = append(errs, fmt.Errorf("wait for poller: %w", ctx.Err()))
		}
	}

	// Stop Status Server
	if err := s.statusServer.Stop(ctx); err != nil {
		errs = append(errs, err)
	}

	// Close Redis
	if s.redisClient != nil {
		if err := s.redisClient.Close(); err != nil {
			s.log.Warn("Failed to close Redis", "error", err)
		}
	}

	// Close DB
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}
