package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tinybots "github.com/ahbrosha/tiny-bots"
	"github.com/ahbrosha/tiny-bots/internal/poller"
)

// DefaultTelegramURL is the Bot API base URL.
const DefaultTelegramURL = "https://api.telegram.org"

// TelegramConfig holds the bot credentials of a [Telegram] notifier.
type TelegramConfig struct {
	Token  string
	ChatID string

	// BaseURL overrides [DefaultTelegramURL].
	BaseURL string
}

// Validate checks that token and chat id are given together. It reports
// whether Telegram is enabled.
func (c TelegramConfig) Validate() (bool, error) {
	return tinybots.ValidateCredentials("telegram",
		tinybots.Credential{Name: "token", Value: c.Token},
		tinybots.Credential{Name: "chat_id", Value: c.ChatID},
	)
}

// Telegram sends notifications through a Telegram bot.
type Telegram struct {
	cfg     TelegramConfig
	client  *poller.Client
	timeout time.Duration
}

type sendMessageRequest struct {
	ChatID string `json:"chat_id"`
	Text   string `json:"text"`
}

type sendMessageResponse struct {
	OK          bool   `json:"ok"`
	ErrorCode   int    `json:"error_code"`
	Description string `json:"description"`
}

// NewTelegram creates a [Telegram] notifier.
//
// Returns a [*tinybots.ConfigError] unless both token and chat id are set.
func NewTelegram(cfg TelegramConfig) (*Telegram, error) {
	enabled, err := cfg.Validate()
	if err != nil {
		return nil, err
	}
	if !enabled {
		return nil, &tinybots.ConfigError{Section: "telegram", Reason: "no settings given"}
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultTelegramURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	return &Telegram{
		cfg:     cfg,
		client:  poller.NewClient(poller.ClientOptions{}),
		timeout: defaultSendTimeout,
	}, nil
}

// Notify posts n to the configured chat via the Bot API sendMessage method.
// A response with "ok": false is an error even when the HTTP status is 200.
// The request is bounded by a 10 second timeout or ctx, whichever ends first.
func (t *Telegram) Notify(ctx context.Context, n tinybots.Notification) error {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	var out sendMessageResponse

	resp, err := t.client.Resty().R().
		SetContext(ctx).
		SetDoNotParseResponse(false).
		SetHeader("Content-Type", "application/json").
		SetBody(sendMessageRequest{ChatID: t.cfg.ChatID, Text: body(n)}).
		SetResult(&out).
		SetError(&out).
		Post(t.cfg.BaseURL + "/bot" + t.cfg.Token + "/sendMessage")
	if err != nil {
		// the token is part of the URL; keep it out of logs
		return fmt.Errorf("telegram sendMessage: %w", errors.New(strings.ReplaceAll(err.Error(), t.cfg.Token, "<token>")))
	}

	if !out.OK {
		if out.Description == "" {
			return fmt.Errorf("telegram sendMessage: status %d", resp.StatusCode())
		}
		return fmt.Errorf("telegram sendMessage: %d %s", out.ErrorCode, out.Description)
	}
	return nil
}
