package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/vietddude/edgesync/internal/core/domain"
	"github.com/vietddude/edgesync/internal/infra/storage"
)

// Every non-key column is overwritten so a stored row is always one
// cycle's snapshot. xmax is 0 only for a freshly inserted row.
const upsertEdgeQuery = `
	INSERT INTO edges (
		key, edge, last_found_at, market_type, market_name, participants,
		outcome_payout, source, participant, sport, implied_probability,
		profit_potential, ev, event_start_time, competition_instance_name, updated_at
	) VALUES (
		:key, :edge, :last_found_at, :market_type, :market_name, :participants,
		:outcome_payout, :source, :participant, :sport, :implied_probability,
		:profit_potential, :ev, :event_start_time, :competition_instance_name, :updated_at
	)
	ON CONFLICT (key) DO UPDATE SET
		edge = EXCLUDED.edge,
		last_found_at = EXCLUDED.last_found_at,
		market_type = EXCLUDED.market_type,
		market_name = EXCLUDED.market_name,
		participants = EXCLUDED.participants,
		outcome_payout = EXCLUDED.outcome_payout,
		source = EXCLUDED.source,
		participant = EXCLUDED.participant,
		sport = EXCLUDED.sport,
		implied_probability = EXCLUDED.implied_probability,
		profit_potential = EXCLUDED.profit_potential,
		ev = EXCLUDED.ev,
		event_start_time = EXCLUDED.event_start_time,
		competition_instance_name = EXCLUDED.competition_instance_name,
		updated_at = EXCLUDED.updated_at
	RETURNING (xmax = 0) AS inserted
`

const selectEdgeColumns = `
	SELECT key, edge, last_found_at, market_type, market_name, participants,
		outcome_payout, source, participant, sport, implied_probability,
		profit_potential, ev, event_start_time, competition_instance_name, updated_at
	FROM edges
`

// EdgeRepo implements storage.EdgeRepository using PostgreSQL.
type EdgeRepo struct {
	db *DB
}

// Compile-time interface check.
var _ storage.EdgeRepository = (*EdgeRepo)(nil)

// NewEdgeRepo creates a new PostgreSQL edge repository.
func NewEdgeRepo(db *DB) *EdgeRepo {
	return &EdgeRepo{db: db}
}

// UpsertBatch writes each edge with its own statement, outside any
// transaction. A rejected record is collected and the rest of the batch
// continues; a connection failure stops the batch.
func (r *EdgeRepo) UpsertBatch(ctx context.Context, edges []*domain.Edge) (storage.UpsertResult, error) {
	var res storage.UpsertResult
	if len(edges) == 0 {
		return res, nil
	}

	stmt, err := r.db.PrepareNamedContext(ctx, upsertEdgeQuery)
	if err != nil {
		res.Failed = len(edges)
		return res, fmt.Errorf("prepare upsert: %w", classify(err))
	}
	defer stmt.Close()

	var failures []error
	for i, e := range edges {
		var inserted bool
		if err := stmt.QueryRowxContext(ctx, toRow(e)).Scan(&inserted); err != nil {
			if isConnectionError(err) {
				res.Failed += len(edges) - i
				return res, fmt.Errorf("upsert edge %q: %w", e.Key, classify(err))
			}
			res.Failed++
			failures = append(failures, fmt.Errorf("upsert edge %q: %w", e.Key, err))
			continue
		}
		if inserted {
			res.Inserted++
		} else {
			res.Replaced++
		}
	}

	if len(failures) > 0 {
		return res, fmt.Errorf("%w: %d of %d edges rejected: %w",
			domain.ErrPersistenceWrite, len(failures), len(edges), errors.Join(failures...))
	}
	return res, nil
}

// Get retrieves an edge by key.
func (r *EdgeRepo) Get(ctx context.Context, key string) (*domain.Edge, error) {
	var row edgeRow
	err := r.db.GetContext(ctx, &row, selectEdgeColumns+` WHERE key = $1`, key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrEdgeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get edge: %w", classify(err))
	}
	return row.toDomain(), nil
}

// LatestUpdate returns MAX(updated_at) across all edges.
func (r *EdgeRepo) LatestUpdate(ctx context.Context) (*time.Time, error) {
	var latest sql.NullTime
	if err := r.db.GetContext(ctx, &latest, `SELECT MAX(updated_at) FROM edges`); err != nil {
		return nil, fmt.Errorf("failed to query latest update: %w", classify(err))
	}
	if !latest.Valid {
		return nil, nil
	}
	t := latest.Time.UTC()
	return &t, nil
}

// Count returns the number of stored edges.
func (r *EdgeRepo) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM edges`); err != nil {
		return 0, fmt.Errorf("failed to count edges: %w", classify(err))
	}
	return n, nil
}

// Ping checks the database is reachable.
func (r *EdgeRepo) Ping(ctx context.Context) error {
	if err := r.db.Health(ctx); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrPersistenceConnection, err)
	}
	return nil
}

type edgeRow struct {
	Key                     string          `db:"key"`
	Edge                    string          `db:"edge"`
	LastFoundAt             *time.Time      `db:"last_found_at"`
	MarketType              string          `db:"market_type"`
	MarketName              string          `db:"market_name"`
	Participants            participantList `db:"participants"`
	OutcomePayout           *float64        `db:"outcome_payout"`
	Source                  *string         `db:"source"`
	Participant             *string         `db:"participant"`
	Sport                   *string         `db:"sport"`
	ImpliedProbability      *float64        `db:"implied_probability"`
	ProfitPotential         *float64        `db:"profit_potential"`
	EV                      *float64        `db:"ev"`
	EventStartTime          *time.Time      `db:"event_start_time"`
	CompetitionInstanceName *string         `db:"competition_instance_name"`
	UpdatedAt               time.Time       `db:"updated_at"`
}

func toRow(e *domain.Edge) edgeRow {
	return edgeRow{
		Key:                     e.Key,
		Edge:                    e.Edge,
		LastFoundAt:             e.LastFoundAt,
		MarketType:              e.MarketType,
		MarketName:              e.MarketName,
		Participants:            participantList(e.Participants),
		OutcomePayout:           e.OutcomePayout,
		Source:                  e.Source,
		Participant:             e.Participant,
		Sport:                   e.Sport,
		ImpliedProbability:      e.ImpliedProbability,
		ProfitPotential:         e.ProfitPotential,
		EV:                      e.EV,
		EventStartTime:          e.EventStartTime,
		CompetitionInstanceName: e.CompetitionInstanceName,
		UpdatedAt:               e.UpdatedAt,
	}
}

func (r *edgeRow) toDomain() *domain.Edge {
	e := &domain.Edge{
		Key:                     r.Key,
		Edge:                    r.Edge,
		LastFoundAt:             utc(r.LastFoundAt),
		MarketType:              r.MarketType,
		MarketName:              r.MarketName,
		Participants:            []string(r.Participants),
		OutcomePayout:           r.OutcomePayout,
		Source:                  r.Source,
		Participant:             r.Participant,
		Sport:                   r.Sport,
		ImpliedProbability:      r.ImpliedProbability,
		ProfitPotential:         r.ProfitPotential,
		EV:                      r.EV,
		EventStartTime:          utc(r.EventStartTime),
		CompetitionInstanceName: r.CompetitionInstanceName,
		UpdatedAt:               r.UpdatedAt.UTC(),
	}
	if e.Participants == nil {
		e.Participants = []string{}
	}
	return e
}

func utc(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

// participantList is stored as a JSONB array. Both pgx and lib/pq accept
// the JSON text for a jsonb parameter.
type participantList []string

func (p participantList) Value() (driver.Value, error) {
	if p == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(p))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (p *participantList) Scan(src any) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*p = participantList{}
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("participants: unsupported type %T", src)
	}
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return fmt.Errorf("participants: %w", err)
	}
	*p = names
	return nil
}
