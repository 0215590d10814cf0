package notify

import (
	"context"
	"errors"
	"strings"

	tele "gopkg.in/telebot.v4"
)

// TelegramConfig configures the telegram sender.
type TelegramConfig struct {
	Token  string
	ChatID int64
}

// telegramSender posts alerts to a single chat. The bot is send-only; it
// never polls for updates.
type telegramSender struct {
	bot  *tele.Bot
	chat *tele.Chat
}

func newTelegramSender(cfg TelegramConfig) (Sender, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	if cfg.ChatID == 0 {
		return nil, errors.New("telegram chat_id is empty")
	}
	b, err := tele.NewBot(tele.Settings{Token: cfg.Token})
	if err != nil {
		return nil, err
	}
	return &telegramSender{bot: b, chat: &tele.Chat{ID: cfg.ChatID}}, nil
}

func (t *telegramSender) Send(ctx context.Context, title, body string) error {
	_ = ctx // telebot does not take a context per call
	_ = title
	// Telegram caps messages at 4096 chars; trim the journal tail, keep the
	// headline.
	if len(body) > 4000 {
		body = body[:4000] + "\n..."
	}
	_, err := t.bot.Send(t.chat, body, &tele.SendOptions{DisableWebPagePreview: true})
	return err
}
