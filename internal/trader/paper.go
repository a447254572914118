// Package trader executes approved opportunities as paper positions and
// settles them against recorded weather.
package trader

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/suncheck/weatheredge/internal/logger"
	"github.com/suncheck/weatheredge/internal/models"
)

// Oracle reports the recorded value of a weather variable for a completed
// day. The Open-Meteo client implements it.
type Oracle interface {
	Actual(ctx context.Context, loc models.Location, date string, v models.Variable) (float64, error)
}

// Store is the persistence surface the trader needs.
type Store interface {
	AddPosition(models.Position) error
	OpenPositions() ([]models.Position, error)
	SettlePosition(id, result string, payout float64, settledAt time.Time) error
	DebitCash(amount float64) error
}

// PaperTrader opens simulated positions at the quoted market price and pays
// out $1 per share on wins.
type PaperTrader struct {
	store  Store
	oracle Oracle
	cities map[string]models.Location
}

// New creates a paper trader over the given city universe.
func New(store Store, oracle Oracle, cities []models.Location) *PaperTrader {
	byKey := make(map[string]models.Location, len(cities))
	for _, c := range cities {
		byKey[c.Key] = c
	}
	return &PaperTrader{store: store, oracle: oracle, cities: byKey}
}

// Execute opens a position for an approved opportunity. Buying No pays the
// complement of the Yes price. The stake is debited from portfolio cash;
// insufficient cash fails the trade, not the scan.
func (t *PaperTrader) Execute(opp models.Opportunity) (models.Position, error) {
	contract := opp.Candidate.Contract

	price := opp.Candidate.MarketProb
	if opp.Direction == models.BuyNo {
		price = 1 - price
	}
	if price <= 0 {
		return models.Position{}, fmt.Errorf("contract %s has no tradable %s price", contract.MarketID, opp.Direction)
	}

	if err := t.store.DebitCash(opp.Stake); err != nil {
		return models.Position{}, err
	}

	position := models.Position{
		ID:            uuid.NewString(),
		MarketID:      contract.MarketID,
		Question:      contract.Question,
		Location:      contract.Location,
		Date:          contract.Date,
		Variable:      contract.Variable,
		Operator:      contract.Operator,
		Threshold:     contract.Threshold,
		ThresholdHigh: contract.ThresholdHigh,
		Direction:     opp.Direction,
		Price:         price,
		Shares:        opp.Stake / price,
		Stake:         opp.Stake,
		Status:        models.PositionOpen,
		CreatedAt:     time.Now(),
	}
	if err := t.store.AddPosition(position); err != nil {
		return models.Position{}, fmt.Errorf("failed to record position: %w", err)
	}

	logger.Info("Opened paper position %s: %s %s @ %.3f (%.2f shares)",
		position.ID, position.Direction, position.MarketID, position.Price, position.Shares)
	return position, nil
}

// Settle closes every open position whose event day has completed, paying
// $1 per share on wins. Oracle failures leave the position open for the next
// pass. Returns the number of positions settled.
func (t *PaperTrader) Settle(ctx context.Context) (int, error) {
	positions, err := t.store.OpenPositions()
	if err != nil {
		return 0, fmt.Errorf("failed to load open positions: %w", err)
	}

	settled := 0
	for _, p := range positions {
		loc, ok := t.cities[p.Location]
		if !ok {
			logger.Warn("Position %s references unknown location %s, leaving open", p.ID, p.Location)
			continue
		}
		if !dayCompleted(p.Date, loc) {
			continue
		}

		actual, err := t.oracle.Actual(ctx, loc, p.Date, p.Variable)
		if err != nil {
			logger.Warn("No recorded value yet for %s/%s/%s: %v", p.Location, p.Date, p.Variable, err)
			continue
		}

		outcomeYes := conditionHolds(actual, p.Operator, p.Threshold, p.ThresholdHigh)
		won := (p.Direction == models.BuyYes) == outcomeYes

		result := "LOST"
		var payout float64
		if won {
			result = "WON"
			payout = p.Shares
		}
		if err := t.store.SettlePosition(p.ID, result, payout, time.Now()); err != nil {
			logger.Error("Failed to settle position %s: %v", p.ID, err)
			continue
		}
		settled++
		logger.Info("Settled position %s: %s (actual %.1f, payout %.2f)", p.ID, result, actual, payout)
	}
	return settled, nil
}

// dayCompleted reports whether the event day is over in the city's timezone.
func dayCompleted(date string, loc models.Location) bool {
	now := time.Now()
	if tz, err := time.LoadLocation(loc.Timezone); err == nil {
		now = now.In(tz)
	}
	return date < now.Format("2006-01-02")
}

func conditionHolds(actual float64, op models.Operator, lo, hi float64) bool {
	switch op {
	case models.OpGreater:
		return actual > lo
	case models.OpLess:
		return actual < lo
	case models.OpBetween:
		return actual >= lo && actual <= hi
	}
	return false
}
