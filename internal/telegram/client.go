// Package telegram sends notifications to the operator's chat and reads the
// commands they send back.
package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/shehryarbajwa/campuswatch/internal/ratelimit"
)

// botAPI is the part of tgbotapi.BotAPI the client uses.
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetUpdates(config tgbotapi.UpdateConfig) ([]tgbotapi.Update, error)
}

// Options tunes delivery. Zero values fall back to defaults.
type Options struct {
	Attempts int
	Backoff  time.Duration
	// MinGap is the minimum spacing between two sends to the chat.
	MinGap time.Duration
}

// Client talks to one configured chat.
type Client struct {
	bot      botAPI
	chatID   int64
	attempts int
	backoff  time.Duration
	pace     *ratelimit.Limiter
	log      *log.Logger
	sleep    func(context.Context, time.Duration) error

	// offset is the highest update id seen; only touched by Poll.
	offset int
}

// New authorizes token against the Bot API and returns a client for chatID.
func New(token string, chatID int64, opts Options, logger *log.Logger) (*Client, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to authorize telegram bot: %w", err)
	}
	api.Debug = false
	c := newClient(api, chatID, opts, logger)
	c.log.Info("Authorized on Telegram", "bot", api.Self.UserName)
	return c, nil
}

func newClient(bot botAPI, chatID int64, opts Options, logger *log.Logger) *Client {
	if opts.Attempts <= 0 {
		opts.Attempts = 3
	}
	if opts.Backoff <= 0 {
		opts.Backoff = 5 * time.Second
	}
	if opts.MinGap <= 0 {
		opts.MinGap = time.Second
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Client{
		bot:      bot,
		chatID:   chatID,
		attempts: opts.Attempts,
		backoff:  opts.Backoff,
		pace:     ratelimit.Every(opts.MinGap, 1),
		log:      logger,
		sleep:    sleep,
	}
}

// ParseChatID parses the numeric chat id from configuration.
func ParseChatID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid chat id %q: %w", s, err)
	}
	return id, nil
}

// Send delivers an HTML message, retrying with a fixed backoff. It reports
// whether the message was delivered; failures are logged, not returned.
func (c *Client) Send(ctx context.Context, text string) bool {
	key := strconv.FormatInt(c.chatID, 10)
	for attempt := 1; attempt <= c.attempts; attempt++ {
		if err := c.pace.Wait(ctx, key); err != nil {
			return false
		}

		msg := tgbotapi.NewMessage(c.chatID, text)
		msg.ParseMode = tgbotapi.ModeHTML
		msg.DisableWebPagePreview = true

		_, err := c.bot.Send(msg)
		if err == nil {
			c.log.Info("Telegram notification sent")
			return true
		}
		c.log.Error("Failed to send Telegram notification", "attempt", attempt, "of", c.attempts, "err", err)

		if attempt < c.attempts {
			c.log.Info("Retrying Telegram send", "in", c.backoff)
			if err := c.sleep(ctx, c.backoff); err != nil {
				return false
			}
		}
	}
	return false
}

// Poll fetches commands sent to the bot since the last poll. Only text
// messages from the configured chat are returned, trimmed and lower-cased.
// Transport errors are logged and yield no commands.
func (c *Client) Poll(ctx context.Context) []string {
	if ctx.Err() != nil {
		return nil
	}
	u := tgbotapi.NewUpdate(c.offset + 1)
	u.Timeout = 1
	u.AllowedUpdates = []string{"message"}

	updates, err := c.bot.GetUpdates(u)
	if err != nil {
		c.log.Error("Error processing Telegram commands", "err", err)
		return nil
	}

	var commands []string
	for _, upd := range updates {
		if upd.UpdateID > c.offset {
			c.offset = upd.UpdateID
		}
		if upd.Message == nil || upd.Message.Text == "" || upd.Message.Chat == nil {
			continue
		}
		if upd.Message.Chat.ID != c.chatID {
			c.log.Debug("Ignoring message from another chat", "chat", upd.Message.Chat.ID)
			continue
		}
		commands = append(commands, strings.ToLower(strings.TrimSpace(upd.Message.Text)))
	}
	return commands
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
