package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// TelegramConfig holds bot credentials and the target chat.
type TelegramConfig struct {
	BaseURL string
	Token   string
	ChatID  string
}

// Telegram sends domain events as bot messages to a fixed chat.
type Telegram struct {
	httpClient *resty.Client
	chatID     string
	logger     *slog.Logger
}

// NewTelegram builds a Telegram notifier using the provided configuration.
func NewTelegram(cfg TelegramConfig, logger *slog.Logger) *Telegram {
	base := cfg.BaseURL
	if base == "" {
		base = "https://api.telegram.org"
	}
	base = strings.TrimSuffix(base, "/")

	restyClient := resty.New()
	restyClient.
		SetBaseURL(fmt.Sprintf("%s/bot%s", base, cfg.Token)).
		SetHeader("Content-Type", "application/json").
		SetTimeout(10 * time.Second)

	return &Telegram{
		httpClient: restyClient,
		chatID:     cfg.ChatID,
		logger:     logger,
	}
}

type sendMessageResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

// Publish sends the event as a text message. Failures are logged and dropped.
func (t *Telegram) Publish(ctx context.Context, event string, payload map[string]any) {
	if t == nil || t.chatID == "" {
		return
	}

	result := new(sendMessageResponse)
	resp, err := t.httpClient.R().
		SetContext(ctx).
		SetBody(map[string]any{
			"chat_id": t.chatID,
			"text":    formatEvent(event, payload),
		}).
		SetResult(result).
		SetError(result).
		Post("/sendMessage")
	if err != nil {
		t.logger.Warn("telegram publish", slog.String("event", event), slog.Any("error", err))
		return
	}
	if resp.IsError() || !result.OK {
		t.logger.Warn("telegram publish rejected",
			slog.String("event", event),
			slog.Int("status", resp.StatusCode()),
			slog.String("description", result.Description))
	}
}

func formatEvent(event string, payload map[string]any) string {
	if len(payload) == 0 {
		return event
	}
	keys := make([]string, 0, len(payload))
	for k := range payload {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	b.WriteString(event)
	for _, k := range keys {
		fmt.Fprintf(&b, "\n%s: %v", k, payload[k])
	}
	return b.String()
}
