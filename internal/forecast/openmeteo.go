package forecast

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/suncheck/weatheredge/internal/models"
)

// OpenMeteo fetches daily forecasts from the Open-Meteo API. It serves every
// configured city and doubles as the settlement oracle for past dates, since
// the same endpoint returns recorded values once a day has completed.
type OpenMeteo struct {
	baseURL    string
	httpClient *http.Client
	cache      *cache
}

// NewOpenMeteo creates an Open-Meteo client with in-memory sample caching.
func NewOpenMeteo(baseURL string, timeout, cacheTTL time.Duration) *OpenMeteo {
	return &OpenMeteo{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		cache:      newCache(cacheTTL),
	}
}

func (c *OpenMeteo) Name() string { return "open-meteo" }

func (c *OpenMeteo) Supports(loc models.Location, v models.Variable) bool {
	switch v {
	case models.VarMaxTemperature, models.VarPrecipitation:
		return true
	}
	return false
}

// Fetch returns the forecast sample for one (location, date, variable),
// serving from cache inside the freshness window.
func (c *OpenMeteo) Fetch(ctx context.Context, loc models.Location, date string, v models.Variable) (models.ForecastSample, error) {
	key := cacheKey(loc, date, v)
	if s, ok := c.cache.get(key); ok {
		return s, nil
	}

	value, err := c.daily(ctx, loc, date, v)
	if err != nil {
		return models.ForecastSample{}, err
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

// Actual returns the recorded value for a completed day, used when settling
// paper positions. Bypasses the forecast cache.
func (c *OpenMeteo) Actual(ctx context.Context, loc models.Location, date string, v models.Variable) (float64, error) {
	return c.daily(ctx, loc, date, v)
}

func dailyField(v models.Variable) string {
	if v == models.VarPrecipitation {
		return "precipitation_sum"
	}
	return "temperature_2m_max"
}

func (c *OpenMeteo) daily(ctx context.Context, loc models.Location, date string, v models.Variable) (float64, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return 0, fmt.Errorf("failed to parse URL: %w", err)
	}

	q := u.Query()
	q.Set("latitude", fmt.Sprintf("%.4f", loc.Latitude))
	q.Set("longitude", fmt.Sprintf("%.4f", loc.Longitude))
	q.Set("daily", dailyField(v))
	q.Set("timezone", loc.Timezone)
	q.Set("start_date", date)
	q.Set("end_date", date)
	if v == models.VarMaxTemperature && loc.Unit == "F" {
		q.Set("temperature_unit", "fahrenheit")
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("open-meteo request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("open-meteo returned status %d", resp.StatusCode)
	}

	var res struct {
		Daily struct {
			Time            []string  `json:"time"`
			TemperatureMax  []float64 `json:"temperature_2m_max"`
			PrecipitationMM []float64 `json:"precipitation_sum"`
		} `json:"daily"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return 0, fmt.Errorf("failed to decode open-meteo response: %w", err)
	}

	values := res.Daily.TemperatureMax
	if v == models.VarPrecipitation {
		values = res.Daily.PrecipitationMM
	}
	if len(values) == 0 {
		return 0, fmt.Errorf("%w: open-meteo has no %s for %s on %s", ErrUnavailable, v, loc.Key, date)
	}
	return values[0], nil
}
