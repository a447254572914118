// Package probability converts ensemble forecasts into event probabilities
// under a Normal distribution.
package probability

import (
	"fmt"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/suncheck/weatheredge/internal/models"
)

// Model computes the probability that a contract's outcome condition holds
// given an ensemble estimate. Sigma floors are configured per variable; an
// ensemble whose sigma sits below its floor is treated as a near-certain
// forecast and short-circuits to 0 or 1 without touching the CDF.
type Model struct {
	floors       map[models.Variable]float64
	defaultFloor float64
}

// NewModel creates a model with per-variable sigma floors. Variables missing
// from floors fall back to defaultFloor.
func NewModel(floors map[models.Variable]float64, defaultFloor float64) *Model {
	m := &Model{
		floors:       make(map[models.Variable]float64, len(floors)),
		defaultFloor: defaultFloor,
	}
	for v, f := range floors {
		m.floors[v] = f
	}
	return m
}

// Floor returns the sigma floor for a variable.
func (m *Model) Floor(v models.Variable) float64 {
	if f, ok := m.floors[v]; ok {
		return f
	}
	return m.defaultFloor
}

// Probability returns P(condition) in [0,1]. For between, lo and hi are the
// bucket bounds; for greater/less only lo is read.
func (m *Model) Probability(e models.EnsembleEstimate, op models.Operator, lo, hi float64) (float64, error) {
	if e.Sigma < m.Floor(e.Variable) {
		return degenerate(e.Mean, op, lo, hi)
	}
	if e.Sigma <= 0 {
		return 0, fmt.Errorf("ensemble sigma %.6f must be positive for %s/%s/%s",
			e.Sigma, e.Location, e.Date, e.Variable)
	}

	dist := distuv.Normal{Mu: e.Mean, Sigma: e.Sigma}

	var p float64
	switch op {
	case models.OpGreater:
		p = 1 - dist.CDF(lo)
	case models.OpLess:
		p = dist.CDF(lo)
	case models.OpBetween:
		p = dist.CDF(hi) - dist.CDF(lo)
		if p < 0 {
			p = 0
		}
	default:
		return 0, fmt.Errorf("unsupported operator %q", op)
	}

	return clamp01(p), nil
}

// degenerate evaluates the condition directly against the mean.
func degenerate(mean float64, op models.Operator, lo, hi float64) (float64, error) {
	holds := false
	switch op {
	case models.OpGreater:
		holds = mean > lo
	case models.OpLess:
		holds = mean < lo
	case models.OpBetween:
		holds = mean >= lo && mean <= hi
	default:
		return 0, fmt.Errorf("unsupported operator %q", op)
	}
	if holds {
		return 1.0, nil
	}
	return 0.0, nil
}

func clamp01(p float64) float64 {
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}
