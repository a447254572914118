package probability

import (
	"math"
	"testing"

	"github.com/suncheck/weatheredge/internal/models"
)

func testModel() *Model {
	return NewModel(map[models.Variable]float64{
		models.VarMaxTemperature: 0.5,
	}, 0.5)
}

func ensemble(mean, sigma float64) models.EnsembleEstimate {
	return models.EnsembleEstimate{
		Location:  "miami",
		Variable:  models.VarMaxTemperature,
		Date:      "2026-03-02",
		Mean:      mean,
		Sigma:     sigma,
		Providers: 2,
	}
}

func TestProbabilityGreater(t *testing.T) {
	m := testModel()

	// Mean one sigma above the threshold: P ≈ 0.8413.
	p, err := m.Probability(ensemble(75, 3), models.OpGreater, 72, 0)
	if err != nil {
		t.Fatalf("Probability failed: %v", err)
	}
	if math.Abs(p-0.8413) > 0.001 {
		t.Errorf("Expected ~0.8413, got %f", p)
	}
}

func TestProbabilityLess(t *testing.T) {
	m := testModel()

	p, err := m.Probability(ensemble(75, 3), models.OpLess, 72, 0)
	if err != nil {
		t.Fatalf("Probability failed: %v", err)
	}
	if math.Abs(p-(1-0.8413)) > 0.001 {
		t.Errorf("Expected ~0.1587, got %f", p)
	}
}

func TestProbabilityBetween(t *testing.T) {
	m := testModel()
	e := ensemble(70, 2)

	p, err := m.Probability(e, models.OpBetween, 69, 71)
	if err != nil {
		t.Fatalf("Probability failed: %v", err)
	}
	if p <= 0 || p >= 1 {
		t.Errorf("Between probability out of open interval: %f", p)
	}

	// Widening the bucket must not decrease the probability.
	wider, err := m.Probability(e, models.OpBetween, 68, 72)
	if err != nil {
		t.Fatalf("Probability failed: %v", err)
	}
	if wider < p {
		t.Errorf("Wider bucket gave smaller probability: %f < %f", wider, p)
	}
}

func TestProbabilityAlwaysInUnitInterval(t *testing.T) {
	m := testModel()

	cases := []struct {
		mean, sigma, lo, hi float64
		op                  models.Operator
	}{
		{0, 1, 100, 0, models.OpGreater},
		{0, 1, -100, 0, models.OpGreater},
		{50, 0.6, 50, 0, models.OpLess},
		{-20, 8, -30, -10, models.OpBetween},
		{1000, 2, 999, 1001, models.OpBetween},
	}

	for _, tc := range cases {
		p, err := m.Probability(ensemble(tc.mean, tc.sigma), tc.op, tc.lo, tc.hi)
		if err != nil {
			t.Fatalf("Probability(%v) failed: %v", tc, err)
		}
		if p < 0 || p > 1 {
			t.Errorf("Probability(%v) = %f outside [0,1]", tc, p)
		}
	}
}

func TestProbabilityDegenerateSigma(t *testing.T) {
	m := testModel()

	tests := []struct {
		name string
		mean float64
		op   models.Operator
		lo   float64
		hi   float64
		want float64
	}{
		{"greater holds", 80, models.OpGreater, 72, 0, 1.0},
		{"greater fails", 70, models.OpGreater, 72, 0, 0.0},
		{"less holds", 70, models.OpLess, 72, 0, 1.0},
		{"less fails", 80, models.OpLess, 72, 0, 0.0},
		{"between holds", 70.5, models.OpBetween, 70, 71, 1.0},
		{"between fails", 73, models.OpBetween, 70, 71, 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Sigma below the 0.5 floor triggers the deterministic path.
			p, err := m.Probability(ensemble(tt.mean, 0.1), tt.op, tt.lo, tt.hi)
			if err != nil {
				t.Fatalf("Probability failed: %v", err)
			}
			if p != tt.want {
				t.Errorf("Expected exactly %f, got %f", tt.want, p)
			}
		})
	}
}

func TestProbabilityUnknownOperator(t *testing.T) {
	m := testModel()
	if _, err := m.Probability(ensemble(75, 3), "around", 72, 0); err == nil {
		t.Error("Expected error for unknown operator")
	}
}

func TestFloorFallback(t *testing.T) {
	m := NewModel(map[models.Variable]float64{models.VarMaxTemperature: 1.5}, 0.25)
	if got := m.Floor(models.VarMaxTemperature); got != 1.5 {
		t.Errorf("Floor(max_temperature) = %f", got)
	}
	if got := m.Floor(models.VarPrecipitation); got != 0.25 {
		t.Errorf("Floor(precipitation) = %f", got)
	}
}
