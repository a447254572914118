package models

import "time"

// LocationFailure records one location excluded from a cycle.
type LocationFailure struct {
	Location string `json:"location"`
	Stage    string `json:"stage"` // fetch_contracts or fetch_forecasts
	Err      string `json:"error"`
}

// SkippedPair records one (location, contract) pair excluded from a cycle.
type SkippedPair struct {
	Location string   `json:"location"`
	Date     string   `json:"date"`
	Variable Variable `json:"variable"`
	MarketID string   `json:"market_id,omitempty"`
	Reason   string   `json:"reason"`
}

// CycleReport is the deterministic per-cycle summary: opportunities found,
// rejections with reasons, and failures with locations. Produced every cycle
// regardless of partial failures.
type CycleReport struct {
	ID            string            `json:"id"`
	StartedAt     time.Time         `json:"started_at"`
	Duration      time.Duration     `json:"duration"`
	Locations     int               `json:"locations"`
	Contracts     int               `json:"contracts"`
	Candidates    int               `json:"candidates"`
	Failures      []LocationFailure `json:"failures,omitempty"`
	Skipped       []SkippedPair     `json:"skipped,omitempty"`
	Opportunities []Opportunity     `json:"opportunities,omitempty"`
	Rejections    []Rejection       `json:"rejections,omitempty"`
}
