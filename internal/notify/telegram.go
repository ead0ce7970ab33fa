package notify

import (
	"context"
	"fmt"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/example/luxmed-sniper/internal/luxmed"
)

// DeliveryError reports a failed notification send. It is never fatal to
// the poll loop: the slot stays unmarked and is retried next cycle.
type DeliveryError struct {
	Err error
}

func (e *DeliveryError) Error() string { return fmt.Sprintf("notify: delivery failed: %v", e.Err) }
func (e *DeliveryError) Unwrap() error { return e.Err }

// Telegram delivers rendered messages to a single chat via the Bot API.
type Telegram struct {
	bot      *tgbotapi.BotAPI
	chatID   int64
	template string
}

func NewTelegram(apiToken string, chatID int64, template string) (*Telegram, error) {
	return NewTelegramWithEndpoint(apiToken, tgbotapi.APIEndpoint, chatID, template)
}

// NewTelegramWithEndpoint points the bot at a non-default API endpoint.
// Used by tests.
func NewTelegramWithEndpoint(apiToken, endpoint string, chatID int64, template string) (*Telegram, error) {
	bot, err := tgbotapi.NewBotAPIWithClient(apiToken, endpoint, &http.Client{Timeout: 30 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("telegram: %w", err)
	}
	return &Telegram{bot: bot, chatID: chatID, template: template}, nil
}

// Notify renders the configured template for the appointment and sends
// it. Failures come back as *DeliveryError.
func (t *Telegram) Notify(ctx context.Context, a luxmed.Appointment) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(t.chatID, Render(t.template, a))
	if _, err := t.bot.Send(msg); err != nil {
		return &DeliveryError{Err: err}
	}
	return nil
}
