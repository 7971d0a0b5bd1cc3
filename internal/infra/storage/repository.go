package storage

import (
	"context"
	"errors"
	"time"

	"github.com/vietddude/edgesync/internal/core/domain"
)

var (
	// ErrEdgeNotFound is returned when no edge is stored under a key
	ErrEdgeNotFound = errors.New("edge not found")
)

// UpsertResult counts the outcome of one batch upsert.
type UpsertResult struct {
	Inserted int
	Replaced int
	Failed   int
}

// EdgeRepository handles edge storage operations
type EdgeRepository interface {
	// UpsertBatch replaces or inserts every edge by key. Records are written
	// independently: a failing record does not stop the others.
	UpsertBatch(ctx context.Context, edges []*domain.Edge) (UpsertResult, error)

	// Get retrieves an edge by key
	Get(ctx context.Context, key string) (*domain.Edge, error)

	// LatestUpdate returns the greatest updated_at, or nil when the store is empty
	LatestUpdate(ctx context.Context) (*time.Time, error)

	// Count returns the number of stored edges
	Count(ctx context.Context) (int, error)

	// Ping checks the store is reachable
	Ping(ctx context.Context) error
}
