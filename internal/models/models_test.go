package models

import "testing"

func TestContractValidate(t *testing.T) {
	valid := Contract{
		MarketID:  "mkt-1",
		Question:  "Will the highest temperature in Miami be 76 or higher on March 2?",
		Location:  "miami",
		Date:      "2026-03-02",
		Variable:  VarMaxTemperature,
		Operator:  OpGreater,
		Threshold: 76,
		Price:     0.55,
		Liquidity: 1200,
	}

	tests := []struct {
		name    string
		mutate  func(*Contract)
		wantErr bool
	}{
		{
			name:    "valid contract",
			mutate:  func(*Contract) {},
			wantErr: false,
		},
		{
			name:    "empty market ID",
			mutate:  func(c *Contract) { c.MarketID = "" },
			wantErr: true,
		},
		{
			name:    "empty location",
			mutate:  func(c *Contract) { c.Location = "" },
			wantErr: true,
		},
		{
			name:    "malformed date",
			mutate:  func(c *Contract) { c.Date = "March 2" },
			wantErr: true,
		},
		{
			name:    "unknown variable",
			mutate:  func(c *Contract) { c.Variable = "wind_speed" },
			wantErr: true,
		},
		{
			name:    "unknown operator",
			mutate:  func(c *Contract) { c.Operator = "around" },
			wantErr: true,
		},
		{
			name: "between with inverted bounds",
			mutate: func(c *Contract) {
				c.Operator = OpBetween
				c.Threshold = 76
				c.ThresholdHigh = 70
			},
			wantErr: true,
		},
		{
			name: "valid between",
			mutate: func(c *Contract) {
				c.Operator = OpBetween
				c.Threshold = 70
				c.ThresholdHigh = 71
			},
			wantErr: false,
		},
		{
			name:    "price above one",
			mutate:  func(c *Contract) { c.Price = 1.5 },
			wantErr: true,
		},
		{
			name:    "negative price",
			mutate:  func(c *Contract) { c.Price = -0.01 },
			wantErr: true,
		},
		{
			name:    "negative liquidity",
			mutate:  func(c *Contract) { c.Liquidity = -1 },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid
			tt.mutate(&c)
			err := c.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestDayKey(t *testing.T) {
	if got := DayKey("miami", "2026-03-02"); got != "miami|2026-03-02" {
		t.Errorf("DayKey() = %q", got)
	}
}
