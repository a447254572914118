// Package models defines the core domain entities: locations, forecasts,
// contracts, edge candidates, and opportunities.
package models

import (
	"errors"
	"fmt"
	"time"
)

// Variable identifies a weather quantity a contract settles on.
type Variable string

const (
	VarMaxTemperature Variable = "max_temperature"
	VarPrecipitation  Variable = "precipitation"
)

// Operator is the comparison a contract applies to its threshold(s).
type Operator string

const (
	OpGreater Operator = "greater"
	OpLess    Operator = "less"
	OpBetween Operator = "between"
)

// Location is one city in the scan universe, loaded from static configuration.
type Location struct {
	Key       string  `json:"key"`
	Name      string  `json:"name"`
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lon"`
	Timezone  string  `json:"timezone"`
	Unit      string  `json:"unit"` // "F" or "C"
}

// DayKey is the per-entity limit key: one approved trade per city per day.
func DayKey(location, date string) string {
	return location + "|" + date
}

// ForecastSample is a single provider's point estimate for one
// (location, date, variable). Spread is the provider-reported uncertainty;
// zero means unreported.
type ForecastSample struct {
	Provider string   `json:"provider"`
	Location string   `json:"location"`
	Variable Variable `json:"variable"`
	Date     string   `json:"date"` // YYYY-MM-DD
	Value    float64  `json:"value"`
	Spread   float64  `json:"spread,omitempty"`
}

// EnsembleEstimate is the fused multi-provider forecast for one
// (location, date, variable). Recomputed every cycle, never mutated.
type EnsembleEstimate struct {
	Location  string   `json:"location"`
	Variable  Variable `json:"variable"`
	Date      string   `json:"date"`
	Mean      float64  `json:"mean"`
	Sigma     float64  `json:"sigma"`
	Providers int      `json:"providers"`
}

// Contract is an immutable per-cycle snapshot of one market contract with its
// outcome condition already parsed into structured form. The free-text
// question is carried for display only; the core never parses it.
type Contract struct {
	MarketID      string   `json:"market_id"`
	Question      string   `json:"question"`
	Location      string   `json:"location"`
	Date          string   `json:"date"` // YYYY-MM-DD, local to the city
	Variable      Variable `json:"variable"`
	Operator      Operator `json:"operator"`
	Threshold     float64  `json:"threshold"`
	ThresholdHigh float64  `json:"threshold_high,omitempty"` // upper bound for between
	Price         float64  `json:"price"`                    // market-implied P(yes)
	Liquidity     float64  `json:"liquidity"`
	Volume24hr    float64  `json:"volume_24hr"`
}

// Validate checks contract field constraints. A price outside [0,1] is a
// fatal input error for this contract, never silently clamped.
func (c *Contract) Validate() error {
	if c.MarketID == "" {
		return errors.New("market ID must not be empty")
	}
	if c.Location == "" {
		return errors.New("location must not be empty")
	}
	if _, err := time.Parse("2006-01-02", c.Date); err != nil {
		return fmt.Errorf("date must be YYYY-MM-DD: %w", err)
	}
	switch c.Variable {
	case VarMaxTemperature, VarPrecipitation:
	default:
		return fmt.Errorf("unknown variable %q", c.Variable)
	}
	switch c.Operator {
	case OpGreater, OpLess:
	case OpBetween:
		if c.ThresholdHigh <= c.Threshold {
			return errors.New("between contract requires threshold_high > threshold")
		}
	default:
		return fmt.Errorf("unknown operator %q", c.Operator)
	}
	if c.Price < 0.0 || c.Price > 1.0 {
		return fmt.Errorf("market price %.4f must be between 0.0 and 1.0", c.Price)
	}
	if c.Liquidity < 0 {
		return errors.New("liquidity must not be negative")
	}
	if c.Volume24hr < 0 {
		return errors.New("volume 24hr must not be negative")
	}
	return nil
}
