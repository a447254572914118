package forecast

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/suncheck/weatheredge/internal/models"
)

const nwsUserAgent = "weatheredge/1.0 (weather market scanner)"

// NWS fetches daytime high temperatures from the National Weather Service.
// NWS covers US locations only, which the scan universe marks with unit F.
type NWS struct {
	baseURL    string
	httpClient *http.Client
	cache      *cache
}

// NewNWS creates an NWS client with in-memory sample caching.
func NewNWS(baseURL string, timeout, cacheTTL time.Duration) *NWS {
	return &NWS{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		cache:      newCache(cacheTTL),
	}
}

func (c *NWS) Name() string { return "nws" }

func (c *NWS) Supports(loc models.Location, v models.Variable) bool {
	return loc.Unit == "F" && v == models.VarMaxTemperature
}

// Fetch resolves the gridpoint forecast URL for the location, then picks the
// daytime period matching the requested date.
func (c *NWS) Fetch(ctx context.Context, loc models.Location, date string, v models.Variable) (models.ForecastSample, error) {
	if !c.Supports(loc, v) {
		return models.ForecastSample{}, fmt.Errorf("%w: nws does not cover %s/%s", ErrUnavailable, loc.Key, v)
	}

	key := cacheKey(loc, date, v)
	if s, ok := c.cache.get(key); ok {
		return s, nil
	}

	forecastURL, err := c.forecastURL(ctx, loc)
	if err != nil {
		return models.ForecastSample{}, err
	}

	var res struct {
		Properties struct {
			Periods []struct {
				StartTime       string  `json:"startTime"`
				IsDaytime       bool    `json:"isDaytime"`
				Temperature     float64 `json:"temperature"`
				TemperatureUnit string  `json:"temperatureUnit"`
			} `json:"periods"`
		} `json:"properties"`
	}
	if err := c.getJSON(ctx, forecastURL, &res); err != nil {
		return models.ForecastSample{}, err
	}

	for _, p := range res.Properties.Periods {
		if !p.IsDaytime || !strings.HasPrefix(p.StartTime, date) {
			continue
		}
		value := p.Temperature
		if p.TemperatureUnit == "C" {
			value = value*9/5 + 32
		}
		s := models.ForecastSample{
			Provider: c.Name(),
			Location: loc.Key,
			Variable: v,
			Date:     date,
			Value:    value,
		}
		c.cache.put(key, s)
		return s, nil
	}

	return models.ForecastSample{}, fmt.Errorf("%w: nws has no daytime period for %s on %s", ErrUnavailable, loc.Key, date)
}

func (c *NWS) forecastURL(ctx context.Context, loc models.Location) (string, error) {
	var points struct {
		Properties struct {
			Forecast string `json:"forecast"`
		} `json:"properties"`
	}
	u := fmt.Sprintf("%s/points/%.4f,%.4f", c.baseURL, loc.Latitude, loc.Longitude)
	if err := c.getJSON(ctx, u, &points); err != nil {
		return "", err
	}
	if points.Properties.Forecast == "" {
		return "", fmt.Errorf("%w: nws points response has no forecast URL for %s", ErrUnavailable, loc.Key)
	}
	return points.Properties.Forecast, nil
}

func (c *NWS) getJSON(ctx context.Context, urlStr string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", nwsUserAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("nws request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("nws returned status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode nws response: %w", err)
	}
	return nil
}
