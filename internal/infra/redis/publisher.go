package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/vietddude/edgesync/internal/core/domain"
)

// Publisher appends persisted edges to a capped Redis stream.
type Publisher struct {
	rdb    *redis.Client
	stream string
	maxLen int64
}

// NewPublisher creates a stream publisher on an open client.
func NewPublisher(client *Client, cfg Config) *Publisher {
	stream := cfg.Stream
	if stream == "" {
		stream = DefaultStream
	}
	maxLen := cfg.MaxLen
	if maxLen <= 0 {
		maxLen = DefaultMaxLen
	}
	return &Publisher{rdb: client.rdb, stream: stream, maxLen: maxLen}
}

// PublishEdges writes one stream entry per edge in a single pipeline.
func (p *Publisher) PublishEdges(ctx context.Context, cycleID string, edges []*domain.Edge) error {
	if len(edges) == 0 {
		return nil
	}

	pipe := p.rdb.Pipeline()
	for _, edge := range edges {
		args, err := p.entry(cycleID, edge)
		if err != nil {
			return err
		}
		pipe.XAdd(ctx, args)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("xadd %d edges to %s: %w", len(edges), p.stream, err)
	}
	return nil
}

func (p *Publisher) entry(cycleID string, edge *domain.Edge) (*redis.XAddArgs, error) {
	data, err := json.Marshal(edge)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal edge %s: %w", edge.Key, err)
	}
	return &redis.XAddArgs{
		Stream: p.stream,
		MaxLen: p.maxLen,
		Approx: true,
		Values: map[string]any{
			"key":      edge.Key,
			"cycle_id": cycleID,
			"edge":     string(data),
		},
	}, nil
}
