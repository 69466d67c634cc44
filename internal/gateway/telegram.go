package gateway

import (
	"context"
	"fmt"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// TelegramGateway delivers directly through the Telegram Bot API. The
// participant id is the Telegram chat id in decimal form.
type TelegramGateway struct {
	bot *tgbotapi.BotAPI
}

// NewTelegramGateway wraps an authorized bot client.
func NewTelegramGateway(bot *tgbotapi.BotAPI) *TelegramGateway {
	return &TelegramGateway{bot: bot}
}

func (g *TelegramGateway) Deliver(ctx context.Context, participantID, text string) error {
	chatID, err := strconv.ParseInt(participantID, 10, 64)
	if err != nil {
		return fmt.Errorf("gateway: bad telegram chat id %q: %w", participantID, err)
	}
	if _, err := g.bot.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		return fmt.Errorf("gateway: telegram send to %s: %w", participantID, err)
	}
	return nil
}

func (g *TelegramGateway) Notify(ctx context.Context, participantID string, event Event) error {
	chatID, err := strconv.ParseInt(participantID, 10, 64)
	if err != nil {
		return fmt.Errorf("gateway: bad telegram chat id %q: %w", participantID, err)
	}
	if _, err := g.bot.Send(tgbotapi.NewMessage(chatID, eventText(event))); err != nil {
		return fmt.Errorf("gateway: telegram notify %s: %w", participantID, err)
	}
	return nil
}

// eventText renders a lifecycle event as user-facing text.
func eventText(event Event) string {
	switch event.Type {
	case EventMatchFound:
		return "Partner found! Say hi."
	case EventSessionEnded:
		return "Chat ended. Send /next to find a new partner."
	case EventNoMatch:
		return "No partner found right now. Try again in a bit."
	case EventWarning:
		return "Please keep the conversation respectful."
	case EventBanned:
		return "You have been banned for violating the rules."
	}
	return event.Type
}
