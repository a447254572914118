package telegram

import (
	"strings"
	"testing"
	"time"

	"github.com/suncheck/weatheredge/internal/models"
)

func TestEscapeMarkdownV2(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Hello World", "Hello World"},
		{"Hello_World", "Hello\\_World"},
		{"Test*bold*", "Test\\*bold\\*"},
		{"Price: $100.50", "Price: $100\\.50"},
		{"[link](url)", "\\[link\\]\\(url\\)"},
		{"~strikethrough~", "\\~strikethrough\\~"},
		{"`code`", "\\`code\\`"},
		{">blockquote", "\\>blockquote"},
		{"#header", "\\#header"},
		{"+plus-minus", "\\+plus\\-minus"},
		{"=equal|pipe", "\\=equal\\|pipe"},
		{"{brace}", "\\{brace\\}"},
		{"end!", "end\\!"},
		{"", ""},
		{"_*[]()~`>#+-=|{}.!", "\\_\\*\\[\\]\\(\\)\\~\\`\\>\\#\\+\\-\\=\\|\\{\\}\\.\\!"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := escapeMarkdownV2(tt.input)
			if result != tt.expected {
				t.Errorf("escapeMarkdownV2(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestFormatMessage(t *testing.T) {
	c := &Client{}
	opps := []models.Opportunity{
		{
			ID: "opp-1",
			Candidate: models.EdgeCandidate{
				Contract: models.Contract{
					MarketID: "m1",
					Question: "Will the highest temperature in Miami be 72 or higher on March 2?",
					Location: "miami",
					Date:     "2026-03-02",
				},
				ModelProb:  0.8413,
				MarketProb: 0.55,
				Edge:       0.2913,
				AbsEdge:    0.2913,
				Class:      models.ClassOpportunity,
			},
			Direction: models.BuyYes,
			Stake:     4.5,
			CreatedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		},
		{
			ID: "opp-2",
			Candidate: models.EdgeCandidate{
				Contract: models.Contract{
					MarketID: "m2",
					Question: "Will the highest temperature in Denver be 40 or lower on March 2?",
					Location: "denver",
					Date:     "2026-03-02",
				},
				ModelProb:  0.02,
				MarketProb: 0.33,
				Edge:       -0.31,
				AbsEdge:    0.31,
				Class:      models.ClassOpportunity,
				Lottery:    false,
			},
			Direction: models.BuyNo,
			Stake:     4.5,
			CreatedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		},
	}

	msg := c.formatMessage(opps)

	for _, want := range []string{
		"Weather Market Opportunities",
		"Buy YES",
		"Buy NO",
		"Miami",
		"Denver",
		"2026\\-03\\-01 12:00:00",
		// MarkdownV2 requires signs and parens escaped.
		"\\(edge \\+29\\.1%\\)",
		"\\(edge \\-31\\.0%\\)",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("Message missing %q:\n%s", want, msg)
		}
	}
}

func TestFormatMessageLotteryFlag(t *testing.T) {
	c := &Client{}
	opp := models.Opportunity{
		Candidate: models.EdgeCandidate{
			Contract:   models.Contract{Question: "q"},
			ModelProb:  0.4,
			MarketProb: 0.03,
			Edge:       0.37,
			Lottery:    true,
		},
		Direction: models.BuyYes,
		CreatedAt: time.Now(),
	}
	if !strings.Contains(c.formatMessage([]models.Opportunity{opp}), "lottery ticket") {
		t.Error("Expected lottery marker in message")
	}
}

func TestNewClient_InvalidChatID(t *testing.T) {
	// NewClient with non-numeric chatID should return an error
	// Note: This test exercises the chat ID parsing error path
	// The bot token validation happens first (network call), so we use a clearly
	// invalid format to test the error handling flow
	_, err := NewClient("", "not-a-number", 3, time.Second)
	if err == nil {
		t.Error("Expected error for invalid chat ID, got nil")
	}
}
