// Package telegram provides a client for sending notifications via Telegram Bot API.
package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/suncheck/weatheredge/internal/logger"
	"github.com/suncheck/weatheredge/internal/models"
)

// Client handles Telegram notifications.
type Client struct {
	bot            *tgbotapi.BotAPI
	chatID         int64
	maxRetries     int
	retryDelayBase time.Duration
}

// NewClient creates a new Telegram client.
func NewClient(botToken, chatID string, maxRetries int, retryDelayBase time.Duration) (*Client, error) {
	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}

	chatIDInt, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid chat ID: %w", err)
	}

	if maxRetries <= 0 {
		maxRetries = 3
	}
	if retryDelayBase <= 0 {
		retryDelayBase = time.Second
	}

	return &Client{
		bot:            bot,
		chatID:         chatIDInt,
		maxRetries:     maxRetries,
		retryDelayBase: retryDelayBase,
	}, nil
}

// ListenForCommands starts a goroutine that polls for Telegram updates and handles bot commands.
// It returns immediately; the goroutine stops when ctx is cancelled.
func (c *Client) ListenForCommands(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := c.bot.GetUpdatesChan(u)

	go func() {
		for {
			select {
			case <-ctx.Done():
				c.bot.StopReceivingUpdates()
				return
			case update, ok := <-updates:
				if !ok {
					return
				}
				if update.Message != nil && update.Message.IsCommand() {
					c.handleCommand(update.Message)
				}
			}
		}
	}()
}

func (c *Client) handleCommand(msg *tgbotapi.Message) {
	switch msg.Command() {
	case "ping":
		reply := tgbotapi.NewMessage(msg.Chat.ID, "Pong")
		c.bot.Send(reply) //nolint:errcheck
	}
}

// sendMarkdownV2 sends a MarkdownV2 message with linear-backoff retry.
func (c *Client) sendMarkdownV2(text string) error {
	msg := tgbotapi.NewMessage(c.chatID, text)
	msg.ParseMode = "MarkdownV2"

	var lastErr error
	for i := 0; i < c.maxRetries; i++ {
		if _, err := c.bot.Send(msg); err == nil {
			return nil
		} else {
			lastErr = err
		}
		time.Sleep(c.retryDelayBase * time.Duration(i+1))
	}
	return fmt.Errorf("failed after %d retries: %w", c.maxRetries, lastErr)
}

// SendError sends a scan error notification.
// Call this only on the first occurrence of a consecutive error sequence.
func (c *Client) SendError(cycleErr error) error {
	text := fmt.Sprintf("⚠️ *Scan error*\n`%s`", escapeMarkdownV2(cycleErr.Error()))
	return c.sendMarkdownV2(text)
}

// SendRecovery sends a recovery notification after consecutive failures.
func (c *Client) SendRecovery(failureCount int) error {
	text := fmt.Sprintf("✅ *Scanning recovered* after %d consecutive failure\\(s\\)", failureCount)
	return c.sendMarkdownV2(text)
}

// NotifyOpportunities sends the opportunities from one cycle without blocking
// the caller. Delivery failures are logged, never propagated: the scan
// pipeline does not depend on Telegram being up.
func (c *Client) NotifyOpportunities(opportunities []models.Opportunity) {
	go func() {
		if err := c.Send(opportunities); err != nil {
			logger.Error("Failed to send Telegram notification: %v", err)
		}
	}()
}

// Send sends a notification with the detected opportunities.
func (c *Client) Send(opportunities []models.Opportunity) error {
	return c.sendMarkdownV2(c.formatMessage(opportunities))
}

// formatMessage formats opportunities into a Telegram MarkdownV2 message.
func (c *Client) formatMessage(opportunities []models.Opportunity) string {
	message := "🌤 *Weather Market Opportunities*\n\n"

	if len(opportunities) > 0 {
		dateStr := escapeMarkdownV2(opportunities[0].CreatedAt.Format("2006-01-02 15:04:05"))
		message += fmt.Sprintf("📅 Detected: %s\n\n", dateStr)
	}

	for i, opp := range opportunities {
		cand := opp.Candidate
		contract := cand.Contract

		directionEmoji := "🟢"
		directionLabel := "Buy YES"
		if opp.Direction == models.BuyNo {
			directionEmoji = "🔴"
			directionLabel = "Buy NO"
		}

		question := escapeMarkdownV2(contract.Question)
		modelPct := escapeMarkdownV2(fmt.Sprintf("%.1f%%", cand.ModelProb*100))
		marketPct := escapeMarkdownV2(fmt.Sprintf("%.1f%%", cand.MarketProb*100))
		edgeStr := escapeMarkdownV2(fmt.Sprintf("%+.1f%%", cand.Edge*100))
		stakeStr := escapeMarkdownV2(fmt.Sprintf("$%.2f", opp.Stake))

		message += fmt.Sprintf("%d\\. %s\n", i+1, question)
		message += fmt.Sprintf("   %s *%s* stake %s\n", directionEmoji, escapeMarkdownV2(directionLabel), stakeStr)
		message += fmt.Sprintf("   📊 model %s vs market %s \\(edge %s\\)\n", modelPct, marketPct, edgeStr)
		if cand.Lottery {
			message += "   🎟 lottery ticket\n"
		}
		message += "\n"
	}

	return message
}

// escapeMarkdownV2 escapes special characters for Telegram MarkdownV2.
func escapeMarkdownV2(text string) string {
	var b strings.Builder
	b.Grow(len(text) + len(text)/4) // pre-allocate with room for escapes
	for _, char := range text {
		switch char {
		case '_', '*', '[', ']', '(', ')', '~', '`', '>', '#', '+', '-', '=', '|', '{', '}', '.', '!':
			b.WriteByte('\\')
		}
		b.WriteRune(char)
	}
	return b.String()
}
