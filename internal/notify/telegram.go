// Package notify implements the outbound messaging collaborator. The
// pipeline is channel-agnostic; Telegram is the channel this deployment
// ships with.
package notify

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/placemate/mailsentry/internal/mail"
	"github.com/placemate/mailsentry/internal/store"
)

// Telegram delivers notifications through a Telegram bot
type Telegram struct {
	api    *tgbotapi.BotAPI
	logger *zap.Logger
}

// NewTelegram creates a Telegram notifier
func NewTelegram(token string, logger *zap.Logger) (*Telegram, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot API: %w", err)
	}

	logger.Info("telegram bot authorized", zap.String("username", api.Self.UserName))

	return &Telegram{api: api, logger: logger}, nil
}

// NotifyImportant sends an important-email alert. The returned bool is
// true only when Telegram accepted the message.
func (t *Telegram) NotifyImportant(ctx context.Context, rec store.Recipient, msg mail.Message, cls mail.Classification) (bool, error) {
	text := fmt.Sprintf(
		"📬 Important email (%s, %.0f%%)\n\nSubject: %s\nFrom: %s\n\n%s\n\nWhy: %s",
		cls.Category, cls.Confidence*100, msg.Subject, msg.From, msg.Snippet, cls.Reason,
	)
	if msg.WebLink != "" {
		text += "\n\n" + msg.WebLink
	}
	if msg.IsSpam {
		text += "\n\n⚠️ Found in the spam folder — check it there."
	}

	return t.send(rec.ChatID, text)
}

// NotifyFailure sends a provider outage notice
func (t *Telegram) NotifyFailure(ctx context.Context, rec store.Recipient, provider mail.Provider, errText string) (bool, error) {
	text := fmt.Sprintf(
		"⚠️ Could not check your %s mailbox.\n\n%s\n\nYou may need to reconnect the account.",
		provider, errText,
	)

	return t.send(rec.ChatID, text)
}

func (t *Telegram) send(chatID int64, text string) (bool, error) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.DisableWebPagePreview = true

	if _, err := t.api.Send(msg); err != nil {
		return false, fmt.Errorf("telegram send: %w", err)
	}
	return true, nil
}
