package alerts

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// TelegramSender delivers alerts through the Telegram Bot API.
type TelegramSender struct {
	bot    *tgbotapi.BotAPI
	logger zerolog.Logger
}

// NewTelegramSender creates a Telegram channel adapter. The underlying
// HTTP client carries a 10 second timeout so a hung send is bounded.
func NewTelegramSender(token string) (*TelegramSender, error) {
	bot, err := tgbotapi.NewBotAPIWithClient(token, tgbotapi.APIEndpoint, &http.Client{
		Timeout: 10 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("telegram: init bot: %w", err)
	}
	return &TelegramSender{
		bot:    bot,
		logger: log.With().Str("component", "telegram").Logger(),
	}, nil
}

// Send delivers a message to the chat identified by `to`.
func (t *TelegramSender) Send(ctx context.Context, to string, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	chatID, err := strconv.ParseInt(to, 10, 64)
	if err != nil {
		return fmt.Errorf("telegram: invalid chat id %q: %w", to, err)
	}

	if _, err := t.bot.Send(tgbotapi.NewMessage(chatID, msg.Text)); err != nil {
		return fmt.Errorf("telegram: send: %w", err)
	}

	t.logger.Debug().Str("symbol", msg.Symbol).Str("kind", string(msg.Kind)).Msg("alert sent")
	return nil
}
