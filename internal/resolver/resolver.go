// Package resolver prices contracts against ensemble estimates and
// classifies the resulting edge.
package resolver

import (
	"errors"
	"fmt"
	"math"

	"github.com/suncheck/weatheredge/internal/models"
	"github.com/suncheck/weatheredge/internal/probability"
)

// ErrResolutionMismatch signals that a contract and an ensemble describe
// different (location, date, variable) triples. The orchestrator skips the
// pair; it never crashes the cycle.
var ErrResolutionMismatch = errors.New("contract does not match ensemble")

// Config holds the classification thresholds.
type Config struct {
	EdgeThreshold  float64 // minimum |edge| to classify as OPPORTUNITY
	LowPriceCutoff float64 // prices below this with positive edge get the lottery flag
}

// Resolve computes the model probability for the contract's condition and
// compares it against the market-implied probability.
func Resolve(c models.Contract, e models.EnsembleEstimate, model *probability.Model, cfg Config) (models.EdgeCandidate, error) {
	if c.Location != e.Location || c.Date != e.Date || c.Variable != e.Variable {
		return models.EdgeCandidate{}, fmt.Errorf("%w: contract %s wants %s/%s/%s, ensemble is %s/%s/%s",
			ErrResolutionMismatch,
			c.MarketID, c.Location, c.Date, c.Variable,
			e.Location, e.Date, e.Variable)
	}
	if c.Price < 0 || c.Price > 1 {
		return models.EdgeCandidate{}, fmt.Errorf("contract %s market price %.4f outside [0,1]", c.MarketID, c.Price)
	}

	modelProb, err := model.Probability(e, c.Operator, c.Threshold, c.ThresholdHigh)
	if err != nil {
		return models.EdgeCandidate{}, fmt.Errorf("model probability for contract %s: %w", c.MarketID, err)
	}

	edge := modelProb - c.Price
	absEdge := math.Abs(edge)

	class := models.ClassNoEdge
	if absEdge >= cfg.EdgeThreshold {
		class = models.ClassOpportunity
	}

	return models.EdgeCandidate{
		Contract:   c,
		ModelProb:  modelProb,
		MarketProb: c.Price,
		Edge:       edge,
		AbsEdge:    absEdge,
		Class:      class,
		Lottery:    c.Price < cfg.LowPriceCutoff && edge > 0,
	}, nil
}
