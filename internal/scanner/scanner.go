// Package scanner orchestrates scan cycles: fetch contracts and forecasts
// for every city, price the contracts, and run the results through risk.
package scanner

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/suncheck/weatheredge/internal/config"
	"github.com/suncheck/weatheredge/internal/forecast"
	"github.com/suncheck/weatheredge/internal/logger"
	"github.com/suncheck/weatheredge/internal/models"
	"github.com/suncheck/weatheredge/internal/probability"
	"github.com/suncheck/weatheredge/internal/resolver"
	"github.com/suncheck/weatheredge/internal/risk"
)

// ErrAllLocationsFailed signals that no location produced data this cycle.
// Partial failures are tolerated; a fully failed cycle is reported upward.
var ErrAllLocationsFailed = errors.New("all locations failed")

// MarketClient fetches contracts for one location.
type MarketClient interface {
	Contracts(ctx context.Context, loc models.Location, dates []string) ([]models.Contract, error)
}

// Store persists scan cycle artifacts.
type Store interface {
	LogOpportunity(models.Opportunity) error
	LogRejection(models.Rejection) error
	SaveCycleReport(models.CycleReport) error
}

// Notifier pushes approved opportunities to an external channel. It must not
// block the cycle.
type Notifier interface {
	NotifyOpportunities([]models.Opportunity)
}

// Params wires a Scanner's collaborators.
type Params struct {
	Config    config.ScannerConfig
	Cities    []models.Location
	Market    MarketClient
	Providers []forecast.Provider
	Weights   map[string]float64
	Model     *probability.Model
	Resolver  resolver.Config
	Risk      *risk.Manager
	Store     Store
	Notifier  Notifier // optional

	MarketRPS   float64
	ForecastRPS float64
}

// Scanner runs scan cycles over the configured city universe.
type Scanner struct {
	cfg        config.ScannerConfig
	cities     []models.Location
	market     MarketClient
	providers  []forecast.Provider
	weights    map[string]float64
	model      *probability.Model
	resolveCfg resolver.Config
	risk       *risk.Manager
	store      Store
	notifier   Notifier

	marketLimiter    *rate.Limiter
	forecastLimiters map[string]*rate.Limiter

	mu   sync.Mutex
	last *models.CycleReport
}

// New creates a Scanner. Rate limiters are shared across workers: one for the
// market API, one per forecast provider.
func New(p Params) *Scanner {
	forecastLimiters := make(map[string]*rate.Limiter, len(p.Providers))
	for _, provider := range p.Providers {
		forecastLimiters[provider.Name()] = rate.NewLimiter(rate.Limit(p.ForecastRPS), 1)
	}
	return &Scanner{
		cfg:              p.Config,
		cities:           p.Cities,
		market:           p.Market,
		providers:        p.Providers,
		weights:          p.Weights,
		model:            p.Model,
		resolveCfg:       p.Resolver,
		risk:             p.Risk,
		store:            p.Store,
		notifier:         p.Notifier,
		marketLimiter:    rate.NewLimiter(rate.Limit(p.MarketRPS), 1),
		forecastLimiters: forecastLimiters,
	}
}

// LastReport returns the report of the most recent completed cycle.
func (s *Scanner) LastReport() *models.CycleReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// locationData is one worker's haul: the location's contracts plus an
// ensemble estimate per (date, variable) pair they reference.
type locationData struct {
	loc       models.Location
	contracts []models.Contract
	estimates map[string]models.EnsembleEstimate
	missing   map[string]string // pair key -> reason, for pairs with no data
	failure   *models.LocationFailure
}

func pairKey(date string, v models.Variable) string {
	return date + "|" + string(v)
}

// RunCycle executes one full scan cycle and returns its report. Locations
// fan out concurrently under the worker limit; pricing and risk run serially
// afterward so results are deterministic. An error is returned only when
// every location failed.
func (s *Scanner) RunCycle(ctx context.Context) (models.CycleReport, error) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, s.cfg.CycleTimeout)
	defer cancel()

	logger.Info("Starting scan cycle across %d locations", len(s.cities))

	results := make([]locationData, len(s.cities))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Workers)
	for i, loc := range s.cities {
		i, loc := i, loc
		g.Go(func() error {
			results[i] = s.fetchLocation(gctx, loc)
			return nil
		})
	}
	// Workers never return errors; failures are carried in the results.
	_ = g.Wait()

	report := models.CycleReport{
		ID:        uuid.NewString(),
		StartedAt: start,
		Locations: len(s.cities),
	}

	var candidates []models.EdgeCandidate
	for _, data := range results {
		if data.failure != nil {
			report.Failures = append(report.Failures, *data.failure)
			logger.Warn("Location %s failed at %s: %s", data.failure.Location, data.failure.Stage, data.failure.Err)
			continue
		}
		report.Contracts += len(data.contracts)

		for _, contract := range data.contracts {
			key := pairKey(contract.Date, contract.Variable)
			est, ok := data.estimates[key]
			if !ok {
				reason := data.missing[key]
				if reason == "" {
					reason = forecast.ErrInsufficientData.Error()
				}
				report.Skipped = append(report.Skipped, models.SkippedPair{
					Location: data.loc.Key,
					Date:     contract.Date,
					Variable: contract.Variable,
					MarketID: contract.MarketID,
					Reason:   reason,
				})
				continue
			}

			candidate, err := resolver.Resolve(contract, est, s.model, s.resolveCfg)
			if err != nil {
				report.Skipped = append(report.Skipped, models.SkippedPair{
					Location: data.loc.Key,
					Date:     contract.Date,
					Variable: contract.Variable,
					MarketID: contract.MarketID,
					Reason:   err.Error(),
				})
				logger.Debug("Skipping contract %s: %v", contract.MarketID, err)
				continue
			}
			candidates = append(candidates, candidate)
		}
	}
	report.Candidates = len(candidates)

	// Best edges claim risk capacity first; market ID breaks ties so reruns
	// over the same inputs produce the same book.
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].AbsEdge != candidates[j].AbsEdge {
			return candidates[i].AbsEdge > candidates[j].AbsEdge
		}
		return candidates[i].Contract.MarketID < candidates[j].Contract.MarketID
	})

	for _, candidate := range candidates {
		opp, rej := s.risk.Evaluate(candidate)
		if opp != nil {
			report.Opportunities = append(report.Opportunities, *opp)
			if err := s.store.LogOpportunity(*opp); err != nil {
				logger.Error("Failed to persist opportunity %s: %v", opp.ID, err)
			}
			logger.Info("Opportunity %s: %s %s %s edge %+.3f stake %.2f",
				opp.ID, candidate.Contract.Location, candidate.Contract.Date, opp.Direction, candidate.Edge, opp.Stake)
			continue
		}
		report.Rejections = append(report.Rejections, *rej)
		if err := s.store.LogRejection(*rej); err != nil {
			logger.Error("Failed to persist rejection for %s: %v", candidate.Contract.MarketID, err)
		}
	}

	report.Duration = time.Since(start)

	if err := s.store.SaveCycleReport(report); err != nil {
		logger.Error("Failed to persist cycle report %s: %v", report.ID, err)
	}

	s.mu.Lock()
	s.last = &report
	s.mu.Unlock()

	if s.notifier != nil && len(report.Opportunities) > 0 {
		s.notifier.NotifyOpportunities(report.Opportunities)
	}

	logger.Info("Cycle %s done in %s: %d contracts, %d candidates, %d opportunities, %d rejections, %d failures",
		report.ID, report.Duration.Round(time.Millisecond), report.Contracts, report.Candidates,
		len(report.Opportunities), len(report.Rejections), len(report.Failures))

	if len(report.Failures) == len(s.cities) {
		return report, ErrAllLocationsFailed
	}
	return report, nil
}

// fetchLocation gathers one location's contracts and the forecasts they need.
// A market failure fails the whole location; forecast failures only exclude
// their (date, variable) pair.
func (s *Scanner) fetchLocation(ctx context.Context, loc models.Location) locationData {
	data := locationData{
		loc:       loc,
		estimates: make(map[string]models.EnsembleEstimate),
		missing:   make(map[string]string),
	}

	if err := s.marketLimiter.Wait(ctx); err != nil {
		data.failure = &models.LocationFailure{Location: loc.Key, Stage: "fetch_contracts", Err: err.Error()}
		return data
	}
	contracts, err := s.market.Contracts(ctx, loc, s.scanDates(loc))
	if err != nil {
		data.failure = &models.LocationFailure{Location: loc.Key, Stage: "fetch_contracts", Err: err.Error()}
		return data
	}
	data.contracts = contracts
	if len(contracts) == 0 {
		return data
	}

	// Fetch forecasts once per unique (date, variable) pair, not per contract.
	pairs := make(map[string]models.Contract)
	for _, c := range contracts {
		pairs[pairKey(c.Date, c.Variable)] = c
	}

	for key, c := range pairs {
		samples := s.fetchSamples(ctx, loc, c.Date, c.Variable)
		est, err := forecast.Aggregate(loc, c.Date, c.Variable, samples, s.weights, s.model.Floor(c.Variable))
		if err != nil {
			data.missing[key] = err.Error()
			continue
		}
		data.estimates[key] = est
	}
	return data
}

// fetchSamples queries every provider covering the pair. Provider failures
// are logged and tolerated; the ensemble works with whatever came back.
func (s *Scanner) fetchSamples(ctx context.Context, loc models.Location, date string, v models.Variable) []models.ForecastSample {
	var samples []models.ForecastSample
	for _, provider := range s.providers {
		if !provider.Supports(loc, v) {
			continue
		}
		if err := s.forecastLimiters[provider.Name()].Wait(ctx); err != nil {
			return samples
		}
		sample, err := provider.Fetch(ctx, loc, date, v)
		if err != nil {
			logger.Debug("Provider %s failed for %s/%s/%s: %v", provider.Name(), loc.Key, date, v, err)
			continue
		}
		samples = append(samples, sample)
	}
	return samples
}

// scanDates returns today through today+LeadDays in the location's timezone,
// so a market that has rolled to tomorrow in its city is still scanned.
func (s *Scanner) scanDates(loc models.Location) []string {
	now := time.Now()
	if tz, err := time.LoadLocation(loc.Timezone); err == nil {
		now = now.In(tz)
	} else {
		logger.Warn("Unknown timezone %q for %s, using local time", loc.Timezone, loc.Key)
	}
	dates := make([]string, 0, s.cfg.LeadDays+1)
	for i := 0; i <= s.cfg.LeadDays; i++ {
		dates = append(dates, now.AddDate(0, 0, i).Format("2006-01-02"))
	}
	return dates
}
