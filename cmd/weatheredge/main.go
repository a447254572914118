package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/suncheck/weatheredge/internal/config"
	"github.com/suncheck/weatheredge/internal/forecast"
	"github.com/suncheck/weatheredge/internal/logger"
	"github.com/suncheck/weatheredge/internal/market"
	"github.com/suncheck/weatheredge/internal/models"
	"github.com/suncheck/weatheredge/internal/probability"
	"github.com/suncheck/weatheredge/internal/resolver"
	"github.com/suncheck/weatheredge/internal/risk"
	"github.com/suncheck/weatheredge/internal/scanner"
	"github.com/suncheck/weatheredge/internal/server"
	"github.com/suncheck/weatheredge/internal/storage"
	"github.com/suncheck/weatheredge/internal/telegram"
	"github.com/suncheck/weatheredge/internal/trader"
)

var configPath = flag.String("config", "configs/config.yaml", "Path to configuration file")

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	logger.Info("Configuration loaded from %s", *configPath)

	store, err := storage.New(
		cfg.Storage.MaxReports,
		cfg.Storage.DBPath,
	)
	if err != nil {
		logger.Fatal("Failed to initialize storage: %v", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("Failed to close storage: %v", err)
		}
	}()

	cities := toLocations(cfg.Cities)

	marketClient := market.NewClient(
		cfg.Market.GammaAPIURL,
		cfg.Market.Timeout,
		cfg.Market.MaxRetries,
		cfg.Market.RetryDelayBase,
		cfg.Market.Limit,
	)

	openMeteo := forecast.NewOpenMeteo(cfg.Forecast.OpenMeteoURL, cfg.Forecast.Timeout, cfg.Forecast.CacheTTL)
	nws := forecast.NewNWS(cfg.Forecast.NWSURL, cfg.Forecast.Timeout, cfg.Forecast.CacheTTL)
	providers := []forecast.Provider{openMeteo, nws}

	model := probability.NewModel(sigmaFloors(cfg.Forecast.SigmaFloors), cfg.Forecast.DefaultSigmaFloor)

	riskState := risk.NewState()
	riskManager := risk.NewManager(risk.Config{
		Bankroll:          cfg.Trading.Bankroll,
		StakeFraction:     cfg.Trading.StakeFraction,
		EdgeScalingFactor: cfg.Trading.EdgeScalingFactor,
		TotalRiskFraction: cfg.Trading.TotalRiskFraction,
	}, riskState)

	var telegramClient *telegram.Client
	if cfg.Telegram.Enabled {
		telegramClient, err = telegram.NewClient(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Telegram.MaxRetries, cfg.Telegram.RetryDelayBase)
		if err != nil {
			logger.Fatal("Failed to initialize Telegram client: %v", err)
		}
		logger.Info("Telegram client initialized successfully")
	} else {
		logger.Debug("Telegram notifications disabled")
	}

	var notifier scanner.Notifier
	if telegramClient != nil {
		notifier = telegramClient
	}

	scn := scanner.New(scanner.Params{
		Config:      cfg.Scanner,
		Cities:      cities,
		Market:      marketClient,
		Providers:   providers,
		Weights:     cfg.Forecast.ProviderWeights,
		Model:       model,
		Resolver:    resolver.Config{EdgeThreshold: cfg.Trading.EdgeThreshold, LowPriceCutoff: cfg.Trading.LowPriceCutoff},
		Risk:        riskManager,
		Store:       store,
		Notifier:    notifier,
		MarketRPS:   cfg.Market.RequestsPerSecond,
		ForecastRPS: cfg.Forecast.RequestsPerSecond,
	})

	var paperTrader *trader.PaperTrader
	if cfg.Trading.PaperTrading {
		if _, err := store.Cash(cfg.Trading.Bankroll); err != nil {
			logger.Fatal("Failed to seed portfolio: %v", err)
		}
		paperTrader = trader.New(store, openMeteo, cities)
		logger.Info("Paper trading enabled with bankroll %.2f", cfg.Trading.Bankroll)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	var statusServer *server.Server
	if cfg.Server.Enabled {
		statusServer = server.New(cfg.Server.Addr, scn, store, cfg.Trading.Bankroll)
		go func() {
			if err := statusServer.Start(); err != nil {
				logger.Error("Status API failed: %v", err)
			}
		}()
	}

	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, cleaning up...")
		if statusServer != nil {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			if err := statusServer.Shutdown(shutdownCtx); err != nil {
				logger.Error("Failed to shut down status API: %v", err)
			}
		}
		cancel()
	}()

	if cfg.Telegram.Enabled && telegramClient != nil {
		telegramClient.ListenForCommands(ctx)
	}

	// Exposure limits reset daily: each day is a fresh book.
	scheduler := cron.New()
	if _, err := scheduler.AddFunc("@midnight", func() {
		riskState.Reset()
		logger.Info("Daily exposure reset")
	}); err != nil {
		logger.Fatal("Failed to schedule daily reset: %v", err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	logger.Info("Starting scan service (interval: %v, cities: %d, edge_threshold: %.2f, lead_days: %d)",
		cfg.Scanner.Interval,
		len(cities),
		cfg.Trading.EdgeThreshold,
		cfg.Scanner.LeadDays,
	)

	ticker := time.NewTicker(cfg.Scanner.Interval)
	defer ticker.Stop()

	consecutiveFailures := 0

	handleCycleResult := func(err error) {
		if err != nil {
			consecutiveFailures++
			logger.Error("Scan cycle failed: %v", err)
			if consecutiveFailures == 1 && cfg.Telegram.Enabled && telegramClient != nil {
				if sendErr := telegramClient.SendError(err); sendErr != nil {
					logger.Warn("Failed to send error notification to Telegram: %v", sendErr)
				}
			}
		} else {
			if consecutiveFailures > 0 && cfg.Telegram.Enabled && telegramClient != nil {
				if sendErr := telegramClient.SendRecovery(consecutiveFailures); sendErr != nil {
					logger.Warn("Failed to send recovery notification to Telegram: %v", sendErr)
				}
			}
			consecutiveFailures = 0
		}
	}

	logger.Debug("Running initial scan cycle")
	handleCycleResult(runScanCycle(ctx, scn, paperTrader))

	for {
		select {
		case <-ctx.Done():
			logger.Info("Service stopped")
			return

		case <-ticker.C:
			logger.Debug("Starting scheduled scan cycle")
			handleCycleResult(runScanCycle(ctx, scn, paperTrader))
		}
	}
}

// runScanCycle runs one cycle and, when paper trading is on, settles
// completed positions and executes the cycle's opportunities.
func runScanCycle(ctx context.Context, scn *scanner.Scanner, paperTrader *trader.PaperTrader) error {
	report, err := scn.RunCycle(ctx)
	if err != nil {
		return err
	}

	if paperTrader == nil {
		return nil
	}

	if settled, err := paperTrader.Settle(ctx); err != nil {
		logger.Warn("Settlement pass failed: %v", err)
	} else if settled > 0 {
		logger.Info("Settled %d paper positions", settled)
	}

	for _, opp := range report.Opportunities {
		if _, err := paperTrader.Execute(opp); err != nil {
			logger.Warn("Failed to execute opportunity %s: %v", opp.ID, err)
		}
	}
	return nil
}

func toLocations(cities []config.CityConfig) []models.Location {
	locations := make([]models.Location, len(cities))
	for i, c := range cities {
		locations[i] = models.Location{
			Key:       c.Key,
			Name:      c.Name,
			Latitude:  c.Lat,
			Longitude: c.Lon,
			Timezone:  c.Timezone,
			Unit:      c.Unit,
		}
	}
	return locations
}

func sigmaFloors(raw map[string]float64) map[models.Variable]float64 {
	floors := make(map[models.Variable]float64, len(raw))
	for variable, floor := range raw {
		floors[models.Variable(variable)] = floor
	}
	return floors
}
