// internal/notify/telegram.go
package notify

import (
	"fmt"
	"log/slog"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const maxTelegramMessage = 4096

// Telegram delivers notices to a Telegram chat. The target is the chat ID
// the user connected during onboarding.
type Telegram struct {
	bot   *tgbotapi.BotAPI
	retry *RetryPolicy
}

// NewTelegram creates a Telegram notifier from a bot token.
func NewTelegram(token string) (*Telegram, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot: %w", err)
	}
	return &Telegram{
		bot:   bot,
		retry: DefaultRetryPolicy(),
	}, nil
}

// Send delivers a message to the chat identified by target, splitting
// anything over Telegram's message limit.
func (t *Telegram) Send(target, message string) error {
	chatID, err := strconv.ParseInt(target, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid telegram chat id %q: %w", target, err)
	}

	for _, part := range splitMessage(message) {
		msg := tgbotapi.NewMessage(chatID, part)
		msg.ParseMode = "Markdown"
		err := t.retry.Execute(func() error {
			if _, sendErr := t.bot.Send(msg); sendErr != nil {
				// Retry without markdown if formatting is rejected
				plain := msg
				plain.ParseMode = ""
				if _, plainErr := t.bot.Send(plain); plainErr != nil {
					return plainErr
				}
			}
			return nil
		})
		if err != nil {
			slog.Error("telegram delivery failed", "chat_id", chatID, "error", err)
			return fmt.Errorf("send telegram message: %w", err)
		}
	}
	return nil
}

func splitMessage(text string) []string {
	if len(text) <= maxTelegramMessage {
		return []string{text}
	}
	var parts []string
	for len(text) > 0 {
		end := maxTelegramMessage
		if end > len(text) {
			end = len(text)
		}
		parts = append(parts, text[:end])
		text = text[end:]
	}
	return parts
}
