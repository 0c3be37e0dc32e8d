package channel

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"qualibot/internal/domain"
	"qualibot/internal/metrics"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	telegramMaxMsgLen      = 4000
	telegramMaxSendRetries = 2
)

// Telegram implements domain.Channel for a Telegram bot using long polling.
type Telegram struct {
	token     string
	parseMode string

	bot         *tgbotapi.BotAPI
	bus         domain.MessageBus
	logger      *slog.Logger
	sendBackoff time.Duration
}

type TelegramConfig struct {
	Token     string
	ParseMode string // Markdown by default; "none" sends plain text
	Logger    *slog.Logger
}

func NewTelegram(cfg TelegramConfig) *Telegram {
	switch cfg.ParseMode {
	case "":
		cfg.ParseMode = tgbotapi.ModeMarkdown
	case "none":
		cfg.ParseMode = ""
	}
	return &Telegram{
		token:     cfg.Token,
		parseMode:   cfg.ParseMode,
		logger:      cfg.Logger,
		sendBackoff: time.Second,
	}
}

func (t *Telegram) Name() string { return "telegram" }

// Start connects to Telegram and polls for updates until ctx is done.
func (t *Telegram) Start(ctx context.Context, bus domain.MessageBus) error {
	t.bus = bus

	bot, err := tgbotapi.NewBotAPI(t.token)
	if err != nil {
		return fmt.Errorf("telegram bot init: %w", err)
	}
	t.bot = bot
	metrics.ChannelsConnected.Inc()
	defer metrics.ChannelsConnected.Dec()
	t.logger.Info("assistant is running", "platform", "telegram", "username", bot.Self.UserName)

	bus.OnOutbound(t.Name(), func(msg domain.OutboundMessage) {
		if msg.Text == "" {
			return
		}
		if err := t.Send(ctx, msg.ChannelID, msg.Text); err != nil {
			t.logger.Error("telegram send failed", "chat_id", msg.ChannelID, "err", err)
		}
	})

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := bot.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			t.logger.Info("telegram channel stopping")
			bot.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message == nil || update.Message.Chat == nil {
				continue
			}
			t.bus.Publish(telegramInbound(update.Message))
		}
	}
}

// Send posts text to a chat, splitting long messages.
func (t *Telegram) Send(ctx context.Context, chatID string, text string) error {
	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid chat ID: %w", err)
	}
	if t.bot == nil {
		return fmt.Errorf("telegram: not connected")
	}
	for _, chunk := range splitMessage(text, telegramMaxMsgLen) {
		if err := t.sendChunk(ctx, id, chunk); err != nil {
			return err
		}
	}
	return nil
}

// sendChunk sends with the configured parse mode, switching to plain text
// only after Telegram rejects the markup. Other errors are retried as-is.
func (t *Telegram) sendChunk(ctx context.Context, chatID int64, text string) error {
	parseMode := t.parseMode
	var lastErr error
	for attempt := 0; attempt <= telegramMaxSendRetries; attempt++ {
		msg := tgbotapi.NewMessage(chatID, text)
		msg.ParseMode = parseMode

		_, err := t.bot.Send(msg)
		if err == nil {
			return nil
		}
		lastErr = err

		if parseMode != "" && strings.Contains(err.Error(), "can't parse entities") {
			t.logger.Warn("telegram markdown rejected, retrying as plain text", "err", err)
			parseMode = ""
			continue
		}

		backoff := time.Duration(attempt+1) * t.sendBackoff
		t.logger.Warn("telegram send error, retrying", "err", err, "backoff", backoff)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
	return fmt.Errorf("telegram send: %w", lastErr)
}

func telegramInbound(m *tgbotapi.Message) domain.InboundMessage {
	msg := domain.InboundMessage{
		Platform:  "telegram",
		ChannelID: strconv.FormatInt(m.Chat.ID, 10),
		Text:      m.Text,
		Timestamp: time.Unix(int64(m.Date), 0),
	}
	if m.From != nil {
		msg.SenderID = strconv.FormatInt(m.From.ID, 10)
		msg.IsFromBot = m.From.IsBot
	}
	return msg
}
