// Package transform maps raw feed advantages onto normalized edges.
package transform

import (
	"time"

	"github.com/vietddude/edgesync/internal/core/domain"
)

// Transform normalizes one advantage. cycleTime becomes the edge's UpdatedAt.
// It has no side effects and returns a *domain.DataShapeError when the
// record could not be decoded or a mandatory field is missing.
// Timestamps in none of the accepted layouts are left null.
func Transform(raw domain.RawAdvantage, cycleTime time.Time) (*domain.Edge, error) {
	if raw.Invalid != nil {
		return nil, raw.Invalid
	}
	key := deref(raw.Key)
	if key == "" {
		return nil, &domain.DataShapeError{Field: "key"}
	}
	if deref(raw.Type) == "" {
		return nil, &domain.DataShapeError{Key: key, Field: "type"}
	}
	if raw.Market == nil || deref(raw.Market.Type) == "" {
		return nil, &domain.DataShapeError{Key: key, Field: "market.type"}
	}
	if raw.Market.Event == nil || deref(raw.Market.Event.Name) == "" {
		return nil, &domain.DataShapeError{Key: key, Field: "market.event.name"}
	}
	event := raw.Market.Event

	edge := &domain.Edge{
		Key:            key,
		Edge:           *raw.Type,
		LastFoundAt:    parseTime(raw.LastFoundAt),
		MarketType:     *raw.Market.Type,
		MarketName:     *event.Name,
		Participants:   participantNames(event.Participants),
		EventStartTime: parseTime(event.StartTime),
		UpdatedAt:      cycleTime.UTC(),
	}

	if len(raw.Outcomes) > 0 {
		first := raw.Outcomes[0]
		edge.OutcomePayout = first.Payout
		edge.Source = first.Source
		if first.Participant != nil {
			edge.Participant = first.Participant.Name
			edge.Sport = first.Participant.Sport
		}
	}
	if len(raw.MarketStatistics) > 0 {
		edge.ImpliedProbability = raw.MarketStatistics[0].Value
	}
	if event.CompetitionInstance != nil {
		edge.CompetitionInstanceName = event.CompetitionInstance.Name
	}

	if edge.OutcomePayout != nil && edge.ImpliedProbability != nil {
		profit, ev := ExpectedValue(*edge.OutcomePayout, *edge.ImpliedProbability)
		edge.ProfitPotential = &profit
		edge.EV = &ev
	}

	return edge, nil
}

// ExpectedValue returns the profit on a winning 100 unit stake at decimal
// payout, and the expected profit of that stake given an implied
// probability expressed in percent.
func ExpectedValue(payout, impliedProbability float64) (profitPotential, ev float64) {
	profitPotential = (payout - 1) * 100
	p := impliedProbability / 100
	ev = p*profitPotential - (1-p)*100
	return profitPotential, ev
}

// TransformAll normalizes a whole feed response. Records that fail are
// returned as errors alongside the edges that succeeded, in input order.
func TransformAll(raws []domain.RawAdvantage, cycleTime time.Time) ([]*domain.Edge, []error) {
	edges := make([]*domain.Edge, 0, len(raws))
	var rejected []error
	for _, raw := range raws {
		edge, err := Transform(raw, cycleTime)
		if err != nil {
			rejected = append(rejected, err)
			continue
		}
		edges = append(edges, edge)
	}
	return edges, rejected
}

func participantNames(participants []domain.RawParticipant) []string {
	names := make([]string, 0, len(participants))
	for _, p := range participants {
		if p.Name != nil {
			names = append(names, *p.Name)
		}
	}
	return names
}

// timeLayouts are tried in order. Layouts without a zone are read as UTC.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999Z0700",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999Z0700",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

func parseTime(s *string) *time.Time {
	if s == nil || *s == "" {
		return nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, *s); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
