package market

import (
	"testing"
	"time"

	"github.com/suncheck/weatheredge/internal/models"
)

var parseNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestParseQuestion(t *testing.T) {
	tests := []struct {
		name     string
		question string
		want     parsedQuestion
		wantDate string
	}{
		{
			name:     "greater",
			question: "Will the highest temperature in Miami be 72 or higher on March 2?",
			want: parsedQuestion{
				City:      "miami",
				Variable:  models.VarMaxTemperature,
				Operator:  models.OpGreater,
				Threshold: 72,
			},
			wantDate: "2026-03-02",
		},
		{
			name:     "less",
			question: "Will the highest temperature in Denver be 40 or lower on March 3?",
			want: parsedQuestion{
				City:      "denver",
				Variable:  models.VarMaxTemperature,
				Operator:  models.OpLess,
				Threshold: 40,
			},
			wantDate: "2026-03-03",
		},
		{
			name:     "between fahrenheit",
			question: "Will the highest temperature in Atlanta be between 46-47°F on January 29?",
			want: parsedQuestion{
				City:          "atlanta",
				Variable:      models.VarMaxTemperature,
				Operator:      models.OpBetween,
				Threshold:     46,
				ThresholdHigh: 47,
				Unit:          "F",
			},
			wantDate: "2026-01-29",
		},
		{
			name:     "between celsius en dash",
			question: "Will the highest temperature in London be between 12–13°C on March 2?",
			want: parsedQuestion{
				City:          "london",
				Variable:      models.VarMaxTemperature,
				Operator:      models.OpBetween,
				Threshold:     12,
				ThresholdHigh: 13,
				Unit:          "C",
			},
			wantDate: "2026-03-02",
		},
		{
			name:     "exact value becomes one degree band",
			question: "Will the highest temperature in Miami be 75 on March 2?",
			want: parsedQuestion{
				City:          "miami",
				Variable:      models.VarMaxTemperature,
				Operator:      models.OpBetween,
				Threshold:     74.5,
				ThresholdHigh: 75.5,
			},
			wantDate: "2026-03-02",
		},
		{
			name:     "multi word city",
			question: "Will the highest temperature in New York be 60 or higher on March 2?",
			want: parsedQuestion{
				City:      "new york",
				Variable:  models.VarMaxTemperature,
				Operator:  models.OpGreater,
				Threshold: 60,
			},
			wantDate: "2026-03-02",
		},
		{
			name:     "rain",
			question: "Will it rain in Seattle on March 2?",
			want: parsedQuestion{
				City:      "seattle",
				Variable:  models.VarPrecipitation,
				Operator:  models.OpGreater,
				Threshold: 0.5,
			},
			wantDate: "2026-03-02",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, date, ok := parseQuestion(tt.question, parseNow)
			if !ok {
				t.Fatalf("parseQuestion(%q) failed", tt.question)
			}
			if got != tt.want {
				t.Errorf("Expected %+v, got %+v", tt.want, got)
			}
			if date != tt.wantDate {
				t.Errorf("Expected date %s, got %s", tt.wantDate, date)
			}
		})
	}
}

func TestParseQuestionRejects(t *testing.T) {
	tests := []struct {
		name     string
		question string
	}{
		{"not weather", "Will the Fed cut rates in March?"},
		{"no date", "Will the highest temperature in Miami be 72 or higher?"},
		{"rain without city", "Will it rain tomorrow?"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, ok := parseQuestion(tt.question, parseNow); ok {
				t.Errorf("Expected parse failure for %q", tt.question)
			}
		})
	}
}

func TestDetectUnit(t *testing.T) {
	tests := []struct {
		question string
		want     string
	}{
		{"be between 46-47°F on January 29?", "F"},
		{"be between 12-13°C on January 29?", "C"},
		{"temperature in Celsius terms", "C"},
		{"in fahrenheit", "F"},
		{"be 72 or higher on March 2?", ""},
	}
	for _, tt := range tests {
		if got := detectUnit(tt.question); got != tt.want {
			t.Errorf("detectUnit(%q) = %q, want %q", tt.question, got, tt.want)
		}
	}
}
