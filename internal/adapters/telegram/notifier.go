package telegram

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/time/rate"

	"cerberus/pkg/errors"
	"cerberus/pkg/logger"
)

// Notifier is a send-only Telegram client for operator alerts. The keeper
// has no interactive surface; it only pushes severity-tagged messages to a
// fixed operations chat.
type Notifier struct {
	api         *tgbotapi.BotAPI
	chatID      int64
	log         *logger.Logger
	rateLimiter *rate.Limiter
}

// Config contains Telegram notifier configuration
type Config struct {
	Token  string
	ChatID int64
}

// NewNotifier creates a new Telegram alert notifier
func NewNotifier(cfg Config, log *logger.Logger) (*Notifier, error) {
	if cfg.Token == "" {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "telegram bot token is required")
	}
	if cfg.ChatID == 0 {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "telegram alert chat id is required")
	}

	api, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create telegram bot")
	}

	return &Notifier{
		api:    api,
		chatID: cfg.ChatID,
		log:    log.With("component", "telegram_notifier"),
		// Telegram allows ~30 msg/sec per bot; alerts are rare, stay low
		rateLimiter: rate.NewLimiter(rate.Limit(1), 5),
	}, nil
}

// Send pushes a severity-tagged alert to the operations chat
func (n *Notifier) Send(ctx context.Context, severity, title, body string) error {
	if err := n.rateLimiter.Wait(ctx); err != nil {
		return err
	}

	text := fmt.Sprintf("[%s] %s\n%s", severity, title, body)
	msg := tgbotapi.NewMessage(n.chatID, text)

	if _, err := n.api.Send(msg); err != nil {
		n.log.Errorf("Failed to send telegram alert: %v", err)
		return errors.Wrap(err, "failed to send telegram alert")
	}

	n.log.Debug("Telegram alert sent", "severity", severity, "title", title)
	return nil
}
