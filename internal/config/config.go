package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete application configuration
type Config struct {
	Market   MarketConfig   `mapstructure:"market"`
	Forecast ForecastConfig `mapstructure:"forecast"`
	Scanner  ScannerConfig  `mapstructure:"scanner"`
	Trading  TradingConfig  `mapstructure:"trading"`
	Cities   []CityConfig   `mapstructure:"cities"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Server   ServerConfig   `mapstructure:"server"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// MarketConfig holds prediction-market API configuration
type MarketConfig struct {
	GammaAPIURL       string        `mapstructure:"gamma_api_url"`
	Timeout           time.Duration `mapstructure:"timeout"`
	MaxRetries        int           `mapstructure:"max_retries"`
	RetryDelayBase    time.Duration `mapstructure:"retry_delay_base"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Limit             int           `mapstructure:"limit"`
}

// ForecastConfig holds weather provider configuration
type ForecastConfig struct {
	OpenMeteoURL      string             `mapstructure:"open_meteo_url"`
	NWSURL            string             `mapstructure:"nws_url"`
	Timeout           time.Duration      `mapstructure:"timeout"`
	CacheTTL          time.Duration      `mapstructure:"cache_ttl"`
	RequestsPerSecond float64            `mapstructure:"requests_per_second"`
	ProviderWeights   map[string]float64 `mapstructure:"provider_weights"`
	SigmaFloors       map[string]float64 `mapstructure:"sigma_floors"`
	DefaultSigmaFloor float64            `mapstructure:"default_sigma_floor"`
}

// ScannerConfig holds scan-cycle behavior configuration
type ScannerConfig struct {
	Interval     time.Duration `mapstructure:"interval"`
	CycleTimeout time.Duration `mapstructure:"cycle_timeout"`
	Workers      int           `mapstructure:"workers"`
	LeadDays     int           `mapstructure:"lead_days"`
}

// TradingConfig holds edge and risk thresholds
type TradingConfig struct {
	Bankroll          float64 `mapstructure:"bankroll"`
	EdgeThreshold     float64 `mapstructure:"edge_threshold"`
	LowPriceCutoff    float64 `mapstructure:"low_price_cutoff"`
	StakeFraction     float64 `mapstructure:"stake_fraction"`
	EdgeScalingFactor float64 `mapstructure:"edge_scaling_factor"`
	TotalRiskFraction float64 `mapstructure:"total_risk_fraction"`
	PaperTrading      bool    `mapstructure:"paper_trading"`
}

// CityConfig holds one city in the scan universe
type CityConfig struct {
	Key      string  `mapstructure:"key"`
	Name     string  `mapstructure:"name"`
	Lat      float64 `mapstructure:"lat"`
	Lon      float64 `mapstructure:"lon"`
	Timezone string  `mapstructure:"timezone"`
	Unit     string  `mapstructure:"unit"`
}

// TelegramConfig holds Telegram notification configuration
type TelegramConfig struct {
	BotToken       string        `mapstructure:"bot_token"`
	ChatID         string        `mapstructure:"chat_id"`
	Enabled        bool          `mapstructure:"enabled"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelayBase time.Duration `mapstructure:"retry_delay_base"`
}

// StorageConfig holds persistence configuration
type StorageConfig struct {
	DBPath     string `mapstructure:"db_path"`
	MaxReports int    `mapstructure:"max_reports"`
}

// ServerConfig holds the JSON status API configuration
type ServerConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetConfigFile(path)

	setDefaults(v)

	v.SetEnvPrefix("WEATHEREDGE")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults configures default values for all configuration options
func setDefaults(v *viper.Viper) {
	// Market defaults
	v.SetDefault("market.gamma_api_url", "https://gamma-api.polymarket.com")
	v.SetDefault("market.timeout", "15s")
	v.SetDefault("market.max_retries", 3)
	v.SetDefault("market.retry_delay_base", "1s")
	v.SetDefault("market.requests_per_second", 5.0)
	v.SetDefault("market.limit", 150)

	// Forecast defaults
	v.SetDefault("forecast.open_meteo_url", "https://api.open-meteo.com/v1/forecast")
	v.SetDefault("forecast.nws_url", "https://api.weather.gov")
	v.SetDefault("forecast.timeout", "10s")
	v.SetDefault("forecast.cache_ttl", "15m")
	v.SetDefault("forecast.requests_per_second", 2.0)
	v.SetDefault("forecast.sigma_floors", map[string]float64{
		"max_temperature": 1.0,
		"precipitation":   0.5,
	})
	v.SetDefault("forecast.default_sigma_floor", 1.0)

	// Scanner defaults
	v.SetDefault("scanner.interval", "15m")
	v.SetDefault("scanner.cycle_timeout", "5m")
	v.SetDefault("scanner.workers", 4)
	v.SetDefault("scanner.lead_days", 3)

	// Trading defaults
	v.SetDefault("trading.bankroll", 1000.0)
	v.SetDefault("trading.edge_threshold", 0.15)
	v.SetDefault("trading.low_price_cutoff", 0.10)
	v.SetDefault("trading.stake_fraction", 0.15)
	v.SetDefault("trading.edge_scaling_factor", 0.03)
	v.SetDefault("trading.total_risk_fraction", 0.15)
	v.SetDefault("trading.paper_trading", true)

	// Storage defaults
	v.SetDefault("storage.db_path", "./data/weatheredge.db")
	v.SetDefault("storage.max_reports", 500)

	// Server defaults
	v.SetDefault("server.enabled", true)
	v.SetDefault("server.addr", ":8080")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	// Validate Market config
	if c.Market.GammaAPIURL == "" {
		return fmt.Errorf("market.gamma_api_url is required")
	}
	if c.Market.Timeout <= 0 {
		return fmt.Errorf("market.timeout must be positive")
	}
	if c.Market.MaxRetries < 1 {
		return fmt.Errorf("market.max_retries must be at least 1")
	}
	if c.Market.RequestsPerSecond <= 0 {
		return fmt.Errorf("market.requests_per_second must be positive")
	}
	if c.Market.Limit < 1 || c.Market.Limit > 1000 {
		return fmt.Errorf("market.limit must be between 1 and 1000")
	}

	// Validate Forecast config
	if c.Forecast.OpenMeteoURL == "" {
		return fmt.Errorf("forecast.open_meteo_url is required")
	}
	if c.Forecast.NWSURL == "" {
		return fmt.Errorf("forecast.nws_url is required")
	}
	if c.Forecast.RequestsPerSecond <= 0 {
		return fmt.Errorf("forecast.requests_per_second must be positive")
	}
	if c.Forecast.DefaultSigmaFloor <= 0 {
		return fmt.Errorf("forecast.default_sigma_floor must be positive")
	}
	for variable, floor := range c.Forecast.SigmaFloors {
		if floor <= 0 {
			return fmt.Errorf("forecast.sigma_floors[%s] must be positive", variable)
		}
	}
	for provider, weight := range c.Forecast.ProviderWeights {
		if weight <= 0 {
			return fmt.Errorf("forecast.provider_weights[%s] must be positive", provider)
		}
	}

	// Validate Scanner config
	if c.Scanner.Interval < 1*time.Minute {
		return fmt.Errorf("scanner.interval must be at least 1 minute")
	}
	if c.Scanner.CycleTimeout <= 0 {
		return fmt.Errorf("scanner.cycle_timeout must be positive")
	}
	if c.Scanner.CycleTimeout >= c.Scanner.Interval {
		return fmt.Errorf("scanner.cycle_timeout must be shorter than scanner.interval")
	}
	if c.Scanner.Workers < 1 {
		return fmt.Errorf("scanner.workers must be at least 1")
	}
	if c.Scanner.LeadDays < 1 || c.Scanner.LeadDays > 7 {
		return fmt.Errorf("scanner.lead_days must be between 1 and 7")
	}

	// Validate Trading config
	if c.Trading.Bankroll <= 0 {
		return fmt.Errorf("trading.bankroll must be positive")
	}
	if c.Trading.EdgeThreshold <= 0.0 || c.Trading.EdgeThreshold > 1.0 {
		return fmt.Errorf("trading.edge_threshold must be in (0.0, 1.0]")
	}
	if c.Trading.LowPriceCutoff < 0.0 || c.Trading.LowPriceCutoff > 1.0 {
		return fmt.Errorf("trading.low_price_cutoff must be between 0.0 and 1.0")
	}
	if c.Trading.StakeFraction <= 0.0 || c.Trading.StakeFraction > 1.0 {
		return fmt.Errorf("trading.stake_fraction must be in (0.0, 1.0]")
	}
	if c.Trading.EdgeScalingFactor <= 0.0 || c.Trading.EdgeScalingFactor > 1.0 {
		return fmt.Errorf("trading.edge_scaling_factor must be in (0.0, 1.0]")
	}
	if c.Trading.TotalRiskFraction <= 0.0 || c.Trading.TotalRiskFraction > 1.0 {
		return fmt.Errorf("trading.total_risk_fraction must be in (0.0, 1.0]")
	}

	// Validate Cities
	if len(c.Cities) == 0 {
		return fmt.Errorf("cities must contain at least one entry")
	}
	seen := make(map[string]bool)
	for _, city := range c.Cities {
		if city.Key == "" {
			return fmt.Errorf("cities[].key is required")
		}
		if seen[city.Key] {
			return fmt.Errorf("duplicate city key %q", city.Key)
		}
		seen[city.Key] = true
		if city.Lat < -90 || city.Lat > 90 {
			return fmt.Errorf("cities[%s].lat must be between -90 and 90", city.Key)
		}
		if city.Lon < -180 || city.Lon > 180 {
			return fmt.Errorf("cities[%s].lon must be between -180 and 180", city.Key)
		}
		if city.Timezone == "" {
			return fmt.Errorf("cities[%s].timezone is required", city.Key)
		}
		if city.Unit != "F" && city.Unit != "C" {
			return fmt.Errorf("cities[%s].unit must be F or C", city.Key)
		}
	}

	// Validate Telegram config
	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("telegram.bot_token is required when telegram is enabled")
		}
		if c.Telegram.ChatID == "" {
			return fmt.Errorf("telegram.chat_id is required when telegram is enabled")
		}
	}

	// Validate Storage config
	if c.Storage.DBPath == "" {
		return fmt.Errorf("storage.db_path is required")
	}
	if c.Storage.MaxReports < 1 {
		return fmt.Errorf("storage.max_reports must be at least 1")
	}

	// Validate Server config
	if c.Server.Enabled && c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required when server is enabled")
	}

	// Validate Logging config
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	return nil
}
