package notifier

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/srgjo27/activity_booking/internal/core/ports"
)

const DefaultTelegramAPI = "https://api.telegram.org"

// Telegram sends HTML messages through a Bot API client. The same bot can
// back both the customer channel and the operator alert channel under
// different names.
type Telegram struct {
	name string
	bot  *tgbotapi.BotAPI
}

// NewTelegram authenticates the token with getMe, so a bad token fails here
// rather than on the first booking.
func NewTelegram(name, token, baseURL string, client *http.Client) (*Telegram, error) {
	if baseURL == "" {
		baseURL = DefaultTelegramAPI
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	endpoint := strings.TrimRight(baseURL, "/") + "/bot%s/%s"

	bot, err := tgbotapi.NewBotAPIWithClient(token, endpoint, client)
	if err != nil {
		return nil, fmt.Errorf("telegram login: %w", err)
	}
	return &Telegram{name: name, bot: bot}, nil
}

func (t *Telegram) Name() string { return t.name }

// message accepts numeric chat ids and @channel usernames.
func message(chatID, text string) (tgbotapi.MessageConfig, error) {
	if strings.HasPrefix(chatID, "@") {
		return tgbotapi.NewMessageToChannel(chatID, text), nil
	}
	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return tgbotapi.MessageConfig{}, fmt.Errorf("telegram chat id %q: %w", chatID, err)
	}
	return tgbotapi.NewMessage(id, text), nil
}

func (t *Telegram) Send(ctx context.Context, chatID, text string) (ports.SendResult, error) {
	if err := ctx.Err(); err != nil {
		return ports.SendResult{}, err
	}

	msg, err := message(chatID, text)
	if err != nil {
		return ports.SendResult{}, err
	}
	msg.ParseMode = tgbotapi.ModeHTML

	sent, err := t.bot.Send(msg)
	if err != nil {
		var apiErr *tgbotapi.Error
		if errors.As(err, &apiErr) {
			return ports.SendResult{}, fmt.Errorf("telegram rejected message: %s", apiErr.Message)
		}
		return ports.SendResult{}, fmt.Errorf("telegram request: %w", err)
	}

	return ports.SendResult{
		Success:           true,
		ProviderMessageID: strconv.Itoa(sent.MessageID),
	}, nil
}
