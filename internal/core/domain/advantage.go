package domain

// RawAdvantage is one record of the advantages feed, exactly as received.
// Every field may be absent, so scalars are pointers.
type RawAdvantage struct {
	Key              *string              `json:"key"`
	Type             *string              `json:"type"`
	LastFoundAt      *string              `json:"lastFoundAt"`
	Market           *RawMarket           `json:"market"`
	Outcomes         []RawOutcome         `json:"outcomes"`
	MarketStatistics []RawMarketStatistic `json:"marketStatistics"`

	// Invalid is set by the feed client when the record did not decode.
	// Only Key is populated alongside it, and only when it could be read.
	Invalid *DataShapeError `json:"-"`
}

type RawMarket struct {
	Type  *string   `json:"type"`
	Event *RawEvent `json:"event"`
}

type RawEvent struct {
	Name                *string                 `json:"name"`
	Participants        []RawParticipant        `json:"participants"`
	StartTime           *string                 `json:"startTime"`
	CompetitionInstance *RawCompetitionInstance `json:"competitionInstance"`
}

type RawCompetitionInstance struct {
	Name *string `json:"name"`
}

type RawParticipant struct {
	Name  *string `json:"name"`
	Sport *string `json:"sport"`
}

type RawOutcome struct {
	Participant *RawParticipant `json:"participant"`
	Payout      *float64        `json:"payout"`
	Source      *string         `json:"source"`
}

// RawMarketStatistic carries an implied probability as a percentage (0-100).
type RawMarketStatistic struct {
	Value *float64 `json:"value"`
}
