// Package market provides access to the Polymarket Gamma API and parses
// weather market questions into contracts.
package market

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/suncheck/weatheredge/internal/models"
)

// ErrNotFound signals a 404 from the market API: the queried resource does
// not exist. Unlike transient failures it is not retried.
var ErrNotFound = errors.New("market not found")

// Client provides access to the Polymarket Gamma API
type Client struct {
	gammaAPIURL    string
	httpClient     *http.Client
	maxRetries     int
	retryDelayBase time.Duration
	limit          int
}

// gammaEvent represents an event from the Gamma API
type gammaEvent struct {
	ID         string        `json:"id"`
	Title      string        `json:"title"`
	Active     bool          `json:"active"`
	Closed     bool          `json:"closed"`
	Volume24hr float64       `json:"volume24hr"`
	Liquidity  float64       `json:"liquidity"`
	Markets    []gammaMarket `json:"markets"`
}

// gammaMarket represents a market within an event
type gammaMarket struct {
	ID            string `json:"id"`
	Question      string `json:"question"`
	Active        bool   `json:"active"`
	Closed        bool   `json:"closed"`
	Outcomes      string `json:"outcomes"`      // JSON string: "[\"Yes\", \"No\"]"
	OutcomePrices string `json:"outcomePrices"` // JSON string: "[\"0.75\", \"0.25\"]"
}

// NewClient creates a new Gamma API client
func NewClient(gammaAPIURL string, timeout time.Duration, maxRetries int, retryDelayBase time.Duration, limit int) *Client {
	return &Client{
		gammaAPIURL: gammaAPIURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		maxRetries:     maxRetries,
		retryDelayBase: retryDelayBase,
		limit:          limit,
	}
}

// Contracts fetches the active weather markets for one location and keeps
// those settling on one of the requested dates. Markets whose question can't
// be parsed, whose unit disagrees with the location, or whose price is
// malformed are skipped, never fatal.
func (c *Client) Contracts(ctx context.Context, loc models.Location, dates []string) ([]models.Contract, error) {
	u, err := url.Parse(c.gammaAPIURL + "/events")
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL: %w", err)
	}

	q := u.Query()
	q.Set("query", "Highest temperature in "+loc.Name)
	q.Set("active", "true")
	q.Set("closed", "false")
	q.Set("limit", strconv.Itoa(c.limit))
	u.RawQuery = q.Encode()

	resp, err := c.doRequest(ctx, u.String())
	if err != nil {
		return nil, fmt.Errorf("failed to fetch events for %s: %w", loc.Key, err)
	}
	defer resp.Body.Close()

	// Response is an array directly, not wrapped
	var events []gammaEvent
	if err := json.NewDecoder(resp.Body).Decode(&events); err != nil {
		return nil, fmt.Errorf("failed to decode events: %w", err)
	}

	wantDate := make(map[string]bool, len(dates))
	for _, d := range dates {
		wantDate[d] = true
	}

	now := time.Now()
	seen := make(map[string]bool)
	var contracts []models.Contract
	for _, ev := range events {
		if !ev.Active || ev.Closed {
			continue
		}
		for _, m := range ev.Markets {
			if m.Closed || seen[m.ID] {
				continue
			}

			parsed, date, ok := parseQuestion(m.Question, now)
			if !ok {
				continue
			}
			if parsed.City != normalizeCity(loc.Name) || !wantDate[date] {
				continue
			}
			// A question quoting the other unit belongs to a different
			// market series for the same city name.
			if parsed.Unit != "" && parsed.Unit != loc.Unit {
				continue
			}

			price, err := parseYesPrice(m)
			if err != nil {
				continue
			}

			contract := models.Contract{
				MarketID:      m.ID,
				Question:      m.Question,
				Location:      loc.Key,
				Date:          date,
				Variable:      parsed.Variable,
				Operator:      parsed.Operator,
				Threshold:     parsed.Threshold,
				ThresholdHigh: parsed.ThresholdHigh,
				Price:         price,
				Liquidity:     ev.Liquidity,
				Volume24hr:    ev.Volume24hr,
			}
			if err := contract.Validate(); err != nil {
				continue
			}
			seen[m.ID] = true
			contracts = append(contracts, contract)
		}
	}

	sort.Slice(contracts, func(i, j int) bool {
		return contracts[i].MarketID < contracts[j].MarketID
	})
	return contracts, nil
}

// parseYesPrice extracts the Yes outcome price from a market
func parseYesPrice(m gammaMarket) (float64, error) {
	var outcomes []string
	if err := json.Unmarshal([]byte(m.Outcomes), &outcomes); err != nil {
		return 0, fmt.Errorf("failed to parse outcomes: %w", err)
	}

	var outcomePrices []string
	if err := json.Unmarshal([]byte(m.OutcomePrices), &outcomePrices); err != nil {
		return 0, fmt.Errorf("failed to parse outcome prices: %w", err)
	}

	for i, outcome := range outcomes {
		if i >= len(outcomePrices) {
			break
		}
		if outcome == "Yes" {
			price, err := strconv.ParseFloat(outcomePrices[i], 64)
			if err != nil {
				return 0, fmt.Errorf("failed to parse price %q: %w", outcomePrices[i], err)
			}
			return price, nil
		}
	}

	return 0, fmt.Errorf("market %s has no Yes outcome", m.ID)
}

// doRequest performs an HTTP request with retry logic. Network errors and
// 5xx responses retry with linear backoff; 404 maps to ErrNotFound and
// returns immediately.
func (c *Client) doRequest(ctx context.Context, urlStr string) (*http.Response, error) {
	var lastErr error

	for i := 0; i < c.maxRetries; i++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
		if err != nil {
			return nil, err
		}

		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(i+1) * c.retryDelayBase):
			}
			continue
		}

		if resp.StatusCode == http.StatusNotFound {
			resp.Body.Close()
			return nil, ErrNotFound
		}

		if resp.StatusCode >= 500 {
			resp.Body.Close()
			lastErr = fmt.Errorf("server error: %d", resp.StatusCode)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(i+1) * c.retryDelayBase):
			}
			continue
		}

		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
		}

		return resp, nil
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}
