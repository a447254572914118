package forecast

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/suncheck/weatheredge/internal/models"
)

// ErrInsufficientData signals that no forecast samples were supplied for a
// (location, date, variable) pair. The pair is skipped, never the cycle.
var ErrInsufficientData = errors.New("no forecast samples")

// Aggregate fuses per-provider samples into a single ensemble estimate.
// The mean is provider-weighted when weights are supplied (unweighted
// otherwise); sigma is the larger of the empirical spread across providers
// and sigmaFloor, so agreement between providers never collapses the
// distribution to zero variance. Pure function: no I/O, no shared state.
func Aggregate(loc models.Location, date string, v models.Variable, samples []models.ForecastSample, weights map[string]float64, sigmaFloor float64) (models.EnsembleEstimate, error) {
	if len(samples) == 0 {
		return models.EnsembleEstimate{}, ErrInsufficientData
	}

	values := make([]float64, len(samples))
	w := make([]float64, len(samples))
	for i, s := range samples {
		values[i] = s.Value
		w[i] = 1.0
		if pw, ok := weights[s.Provider]; ok && pw > 0 {
			w[i] = pw
		}
	}

	mean := stat.Mean(values, w)

	var spread float64
	if len(samples) > 1 {
		spread = stat.StdDev(values, w)
	} else {
		// Single provider: only its self-reported spread is available.
		spread = samples[0].Spread
	}

	return models.EnsembleEstimate{
		Location:  loc.Key,
		Variable:  v,
		Date:      date,
		Mean:      mean,
		Sigma:     math.Max(spread, sigmaFloor),
		Providers: len(samples),
	}, nil
}
