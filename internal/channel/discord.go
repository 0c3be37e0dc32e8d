package channel

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"qualibot/internal/domain"
	"qualibot/internal/metrics"

	"github.com/bwmarrin/discordgo"
)

const discordMaxMsgLen = 2000

// Discord implements domain.Channel for Discord.
type Discord struct {
	token   string
	guildID string
	session *discordgo.Session
	bus     domain.MessageBus
	logger  *slog.Logger
}

// DiscordConfig configures the Discord channel.
type DiscordConfig struct {
	Token   string
	GuildID string // optional: only listen in this guild
	Logger  *slog.Logger
}

// NewDiscord creates a new Discord channel handler.
func NewDiscord(cfg DiscordConfig) *Discord {
	return &Discord{
		token:   cfg.Token,
		guildID: cfg.GuildID,
		logger:  cfg.Logger,
	}
}

func (d *Discord) Name() string { return "discord" }

// Start connects to the Discord gateway and blocks until ctx is done.
func (d *Discord) Start(ctx context.Context, bus domain.MessageBus) error {
	d.bus = bus

	session, err := discordgo.New("Bot " + d.token)
	if err != nil {
		return fmt.Errorf("discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuildMessages | discordgo.IntentsDirectMessages | discordgo.IntentsMessageContent
	d.session = session

	bus.OnOutbound(d.Name(), func(msg domain.OutboundMessage) {
		if msg.Text == "" {
			return
		}
		if err := d.Send(ctx, msg.ChannelID, msg.Text); err != nil {
			d.logger.Error("discord send failed", "channel", msg.ChannelID, "err", err)
		}
	})

	session.AddHandler(func(s *discordgo.Session, m *discordgo.MessageCreate) {
		if d.guildID != "" && m.GuildID != d.guildID {
			return
		}
		selfID := ""
		if s.State != nil && s.State.User != nil {
			selfID = s.State.User.ID
		}
		bus.Publish(discordInbound(m, selfID))
	})

	if err := session.Open(); err != nil {
		return fmt.Errorf("discord connect: %w", err)
	}
	metrics.ChannelsConnected.Inc()
	defer metrics.ChannelsConnected.Dec()

	d.logger.Info("assistant is running", "platform", "discord", "user", session.State.User.Username)

	<-ctx.Done()
	d.logger.Info("discord bot disconnecting")
	return session.Close()
}

// Send posts text to a Discord channel, splitting long messages.
func (d *Discord) Send(ctx context.Context, channelID string, text string) error {
	if d.session == nil {
		return fmt.Errorf("discord: not connected")
	}
	for _, chunk := range splitMessage(text, discordMaxMsgLen) {
		if _, err := d.session.ChannelMessageSend(channelID, chunk, discordgo.WithContext(ctx)); err != nil {
			return fmt.Errorf("discord post: %w", err)
		}
	}
	return nil
}

func discordInbound(m *discordgo.MessageCreate, selfID string) domain.InboundMessage {
	msg := domain.InboundMessage{
		Platform:  "discord",
		ChannelID: m.ChannelID,
		Text:      m.Content,
		Timestamp: time.Now(),
	}
	if m.Author == nil {
		// Webhook or system message without an author.
		msg.IsFromBot = true
		return msg
	}
	msg.SenderID = m.Author.ID
	msg.IsFromBot = m.Author.Bot || m.Author.ID == selfID
	return msg
}
