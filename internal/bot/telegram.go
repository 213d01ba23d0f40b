package bot

import (
	"context"
	"fmt"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Telegram adapts the Telegram Bot API to the Transport interface and feeds
// normalized events into a handler from a long-polling loop.
type Telegram struct {
	api *tgbotapi.BotAPI
	log *slog.Logger
}

// NewTelegram authenticates against the Telegram Bot API.
func NewTelegram(token string, log *slog.Logger) (*Telegram, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("authorize telegram bot: %w", err)
	}
	log.Info("authorized on telegram", "account", api.Self.UserName)
	return &Telegram{api: api, log: log}, nil
}

func (t *Telegram) Reply(ctx context.Context, ev *Event, text string) (int, error) {
	msg := tgbotapi.NewMessage(ev.ChatID, text)
	msg.ReplyToMessageID = ev.MessageID
	sent, err := t.api.Send(msg)
	if err != nil {
		return 0, fmt.Errorf("send reply: %w", err)
	}
	return sent.MessageID, nil
}

func (t *Telegram) Delete(ctx context.Context, chatID int64, messageID int) error {
	if _, err := t.api.Request(tgbotapi.NewDeleteMessage(chatID, messageID)); err != nil {
		return fmt.Errorf("delete message %d: %w", messageID, err)
	}
	return nil
}

// Run long-polls for updates and hands each message to handle, one at a time,
// until ctx is cancelled.
func (t *Telegram) Run(ctx context.Context, handle func(context.Context, *Event)) error {
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = 30
	updates := t.api.GetUpdatesChan(cfg)

	for {
		select {
		case <-ctx.Done():
			t.api.StopReceivingUpdates()
			return ctx.Err()
		case upd, ok := <-updates:
			if !ok {
				return nil
			}
			if upd.Message == nil {
				continue
			}
			handle(ctx, eventFromMessage(upd.Message))
		}
	}
}

// eventFromMessage normalizes a Telegram message into an Event.
func eventFromMessage(m *tgbotapi.Message) *Event {
	ev := &Event{
		Kind:      EventMessage,
		MessageID: m.MessageID,
		Text:      m.Text,
		Date:      m.Time(),
	}
	if m.Chat != nil {
		ev.ChatID = m.Chat.ID
		ev.ChatTitle = m.Chat.Title
	}
	if m.From != nil {
		ev.From = Sender{ID: m.From.ID, IsBot: m.From.IsBot}
	}
	if r := m.ReplyToMessage; r != nil {
		target := &ReplyTarget{
			MessageID: r.MessageID,
			Date:      r.Time(),
		}
		if r.SenderChat != nil {
			target.ChannelID = r.SenderChat.ID
			target.ChannelTitle = r.SenderChat.Title
			target.ChannelUsername = r.SenderChat.UserName
		}
		ev.ReplyTo = target
	}
	if m.IsCommand() {
		switch m.Command() {
		case "start":
			ev.Kind = EventRegister
		case "report":
			ev.Kind = EventReport
		}
	}
	return ev
}
