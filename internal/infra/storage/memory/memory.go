package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/vietddude/edgesync/internal/core/domain"
	"github.com/vietddude/edgesync/internal/infra/storage"
)

// EdgeRepo is an in-process storage.EdgeRepository.
type EdgeRepo struct {
	edges map[string]domain.Edge
	mu    sync.RWMutex
}

var _ storage.EdgeRepository = (*EdgeRepo)(nil)

func NewEdgeRepo() *EdgeRepo {
	return &EdgeRepo{edges: make(map[string]domain.Edge)}
}

func (r *EdgeRepo) UpsertBatch(ctx context.Context, edges []*domain.Edge) (storage.UpsertResult, error) {
	var res storage.UpsertResult
	if len(edges) == 0 {
		return res, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range edges {
		if _, ok := r.edges[e.Key]; ok {
			res.Replaced++
		} else {
			res.Inserted++
		}
		r.edges[e.Key] = clone(e)
	}
	return res, nil
}

func (r *EdgeRepo) Get(ctx context.Context, key string) (*domain.Edge, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.edges[key]
	if !ok {
		return nil, storage.ErrEdgeNotFound
	}
	out := clone(&e)
	return &out, nil
}

func (r *EdgeRepo) LatestUpdate(ctx context.Context) (*time.Time, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var latest *time.Time
	for _, e := range r.edges {
		if latest == nil || e.UpdatedAt.After(*latest) {
			t := e.UpdatedAt
			latest = &t
		}
	}
	return latest, nil
}

func (r *EdgeRepo) Count(ctx context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.edges), nil
}

func (r *EdgeRepo) Ping(ctx context.Context) error {
	return ctx.Err()
}

// clone copies the participants slice so stored edges never alias caller memory
func clone(e *domain.Edge) domain.Edge {
	out := *e
	out.Participants = slices.Clone(e.Participants)
	return out
}
