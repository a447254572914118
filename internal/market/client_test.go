package market

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/suncheck/weatheredge/internal/models"
)

var testLoc = models.Location{
	Key:      "miami",
	Name:     "Miami",
	Latitude: 25.7959, Longitude: -80.2796,
	Timezone: "America/New_York",
	Unit:     "F",
}

func eventsJSON(date string) string {
	return fmt.Sprintf(`[
		{
			"id": "ev1", "title": "Highest temperature in Miami", "active": true, "closed": false,
			"volume24hr": 1200.5, "liquidity": 800,
			"markets": [
				{
					"id": "m1",
					"question": "Will the highest temperature in Miami be 72 or higher on %[1]s?",
					"active": true, "closed": false,
					"outcomes": "[\"Yes\", \"No\"]",
					"outcomePrices": "[\"0.55\", \"0.45\"]"
				},
				{
					"id": "m2",
					"question": "Will the highest temperature in Miami be between 12-13°C on %[1]s?",
					"active": true, "closed": false,
					"outcomes": "[\"Yes\", \"No\"]",
					"outcomePrices": "[\"0.10\", \"0.90\"]"
				},
				{
					"id": "m1",
					"question": "Will the highest temperature in Miami be 72 or higher on %[1]s?",
					"active": true, "closed": false,
					"outcomes": "[\"Yes\", \"No\"]",
					"outcomePrices": "[\"0.55\", \"0.45\"]"
				},
				{
					"id": "m3",
					"question": "Will the Fed cut rates on %[1]s?",
					"active": true, "closed": false,
					"outcomes": "[\"Yes\", \"No\"]",
					"outcomePrices": "[\"0.30\", \"0.70\"]"
				}
			]
		},
		{
			"id": "ev2", "title": "Old event", "active": false, "closed": true,
			"markets": [
				{
					"id": "m4",
					"question": "Will the highest temperature in Miami be 70 or higher on %[1]s?",
					"active": false, "closed": true,
					"outcomes": "[\"Yes\", \"No\"]",
					"outcomePrices": "[\"0.50\", \"0.50\"]"
				}
			]
		}
	]`, date)
}

// futureDate returns a date in the current year so the year inference in
// the parser round-trips.
func futureDate() (query string, iso string) {
	now := time.Now()
	d := now.AddDate(0, 0, 2)
	if d.Year() != now.Year() {
		d = now
	}
	return d.Format("January 2"), d.Format("2006-01-02")
}

func TestContracts(t *testing.T) {
	friendly, iso := futureDate()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("query"); got != "Highest temperature in Miami" {
			t.Errorf("Unexpected query param: %q", got)
		}
		if r.URL.Query().Get("active") != "true" || r.URL.Query().Get("closed") != "false" {
			t.Error("Expected active=true and closed=false")
		}
		fmt.Fprint(w, eventsJSON(friendly))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 5*time.Second, 3, time.Millisecond, 100)
	contracts, err := client.Contracts(context.Background(), testLoc, []string{iso})
	if err != nil {
		t.Fatalf("Contracts failed: %v", err)
	}

	// m1 once (duplicate dropped), m2 dropped (Celsius for an F city),
	// m3 dropped (not a weather question), m4 dropped (closed).
	if len(contracts) != 1 {
		t.Fatalf("Expected 1 contract, got %d: %+v", len(contracts), contracts)
	}
	c := contracts[0]
	if c.MarketID != "m1" {
		t.Errorf("Expected market m1, got %s", c.MarketID)
	}
	if c.Location != "miami" || c.Date != iso {
		t.Errorf("Contract identity wrong: %+v", c)
	}
	if c.Operator != models.OpGreater || c.Threshold != 72 {
		t.Errorf("Expected greater/72, got %s/%f", c.Operator, c.Threshold)
	}
	if c.Price != 0.55 {
		t.Errorf("Expected price 0.55, got %f", c.Price)
	}
	if c.Liquidity != 800 || c.Volume24hr != 1200.5 {
		t.Errorf("Event liquidity/volume not carried: %+v", c)
	}
}

func TestContractsDateFilter(t *testing.T) {
	friendly, _ := futureDate()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, eventsJSON(friendly))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 5*time.Second, 3, time.Millisecond, 100)
	contracts, err := client.Contracts(context.Background(), testLoc, []string{"1999-01-01"})
	if err != nil {
		t.Fatalf("Contracts failed: %v", err)
	}
	if len(contracts) != 0 {
		t.Errorf("Expected no contracts outside the date window, got %d", len(contracts))
	}
}

func TestContractsNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 5*time.Second, 3, time.Millisecond, 100)
	_, err := client.Contracts(context.Background(), testLoc, []string{"2026-03-02"})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestContractsRetriesServerError(t *testing.T) {
	friendly, iso := futureDate()
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, eventsJSON(friendly))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 5*time.Second, 3, time.Millisecond, 100)
	contracts, err := client.Contracts(context.Background(), testLoc, []string{iso})
	if err != nil {
		t.Fatalf("Expected retries to recover, got %v", err)
	}
	if calls != 3 {
		t.Errorf("Expected 3 calls, got %d", calls)
	}
	if len(contracts) != 1 {
		t.Errorf("Expected 1 contract after retry, got %d", len(contracts))
	}
}

func TestContractsRetriesExhausted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 5*time.Second, 2, time.Millisecond, 100)
	if _, err := client.Contracts(context.Background(), testLoc, []string{"2026-03-02"}); err == nil {
		t.Error("Expected error after retries exhausted")
	}
}
