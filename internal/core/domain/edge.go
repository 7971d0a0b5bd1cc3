package domain

import "time"

// Edge is the normalized form of an advantage. Key identifies the same
// logical edge across poll cycles; a stored Edge is always replaced as a
// whole, never merged field by field.
type Edge struct {
	Key                     string     `json:"key"`
	Edge                    string     `json:"edge"`
	LastFoundAt             *time.Time `json:"lastFoundAt"`
	MarketType              string     `json:"type"`
	MarketName              string     `json:"market_name"`
	Participants            []string   `json:"participants"`
	OutcomePayout           *float64   `json:"outcome_payout"`
	Source                  *string    `json:"source"`
	Participant             *string    `json:"participant"`
	Sport                   *string    `json:"sport"`
	ImpliedProbability      *float64   `json:"implied_probability"`
	ProfitPotential         *float64   `json:"profit_potential"`
	EV                      *float64   `json:"EV"`
	EventStartTime          *time.Time `json:"event_start_time"`
	CompetitionInstanceName *string    `json:"competition_instance_name"`
	UpdatedAt               time.Time  `json:"updated_at"`
}
