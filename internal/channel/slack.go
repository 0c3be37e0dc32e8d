package channel

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"qualibot/internal/domain"
	"qualibot/internal/metrics"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"
)

const slackMaxMsgLen = 4000

// Slack implements domain.Channel for Slack using Socket Mode.
type Slack struct {
	botToken string
	appToken string
	client   *slack.Client
	socket   *socketmode.Client
	bus      domain.MessageBus
	logger   *slog.Logger
	botUID   string // the bot's own user ID
}

// SlackConfig configures the Slack channel.
type SlackConfig struct {
	BotToken string // xoxb-, used for posting
	AppToken string // xapp-, used for the Socket Mode connection
	Logger   *slog.Logger
}

// NewSlack creates a new Slack channel handler.
func NewSlack(cfg SlackConfig) *Slack {
	return &Slack{
		botToken: cfg.BotToken,
		appToken: cfg.AppToken,
		logger:   cfg.Logger,
	}
}

func (s *Slack) Name() string { return "slack" }

// Start connects to Slack via Socket Mode and blocks until ctx is done or
// the connection fails.
func (s *Slack) Start(ctx context.Context, bus domain.MessageBus) error {
	s.bus = bus

	api := slack.New(
		s.botToken,
		slack.OptionAppLevelToken(s.appToken),
	)
	s.client = api

	authResp, err := api.AuthTestContext(ctx)
	if err != nil {
		return fmt.Errorf("slack auth: %w", err)
	}
	s.botUID = authResp.UserID
	s.logger.Info("slack bot authenticated", "user", authResp.User, "user_id", authResp.UserID)

	socketClient := socketmode.New(api)
	s.socket = socketClient

	bus.OnOutbound(s.Name(), func(msg domain.OutboundMessage) {
		if msg.Text == "" {
			return
		}
		if err := s.Send(ctx, msg.ChannelID, msg.Text); err != nil {
			s.logger.Error("slack send failed", "channel", msg.ChannelID, "err", err)
		}
	})

	go func() {
		connected := false
		for evt := range socketClient.Events {
			switch evt.Type {
			case socketmode.EventTypeConnected:
				if !connected {
					connected = true
					metrics.ChannelsConnected.Inc()
				}
				s.logger.Info("assistant is running", "platform", "slack")

			case socketmode.EventTypeDisconnect:
				if connected {
					connected = false
					metrics.ChannelsConnected.Dec()
				}

			case socketmode.EventTypeInvalidAuth:
				s.logger.Error("slack socket mode rejected the app token")

			case socketmode.EventTypeEventsAPI:
				eventsAPIEvent, ok := evt.Data.(slackevents.EventsAPIEvent)
				if !ok {
					continue
				}
				socketClient.Ack(*evt.Request)
				s.handleEventsAPI(eventsAPIEvent)

			default:
				// Acknowledge everything else to keep the socket healthy.
				if evt.Request != nil {
					socketClient.Ack(*evt.Request)
				}
			}
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		errCh <- socketClient.RunContext(ctx)
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("slack bot disconnecting")
		return nil
	case err := <-errCh:
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("slack socket mode: %w", err)
	}
}

// Send posts text to a Slack channel, splitting long messages.
func (s *Slack) Send(ctx context.Context, channelID string, text string) error {
	if s.client == nil {
		return fmt.Errorf("slack: not connected")
	}
	for _, chunk := range splitMessage(text, slackMaxMsgLen) {
		_, _, err := s.client.PostMessageContext(ctx,
			channelID,
			slack.MsgOptionText(chunk, false),
		)
		if err != nil {
			return fmt.Errorf("slack post: %w", err)
		}
	}
	return nil
}

func (s *Slack) handleEventsAPI(event slackevents.EventsAPIEvent) {
	if event.Type != slackevents.CallbackEvent {
		return
	}
	ev, ok := event.InnerEvent.Data.(*slackevents.MessageEvent)
	if !ok {
		return
	}
	msg, ok := slackInbound(ev, s.botUID)
	if !ok {
		s.logger.Debug("ignoring slack message subtype", "subtype", ev.SubType, "channel", ev.Channel)
		return
	}
	s.bus.Publish(msg)
}

// slackMessageSubtypes are the subtypes that carry something a person wrote.
// bot_message is kept so the router can count and drop it.
var slackMessageSubtypes = map[string]bool{
	"":                 true,
	"file_share":       true,
	"me_message":       true,
	"thread_broadcast": true,
	"bot_message":      true,
}

// slackInbound maps a message event to an InboundMessage. It reports false
// for system subtypes (joins, topic changes, edits, deletes).
func slackInbound(ev *slackevents.MessageEvent, selfID string) (domain.InboundMessage, bool) {
	if !slackMessageSubtypes[ev.SubType] {
		return domain.InboundMessage{}, false
	}
	fromBot := ev.BotID != "" ||
		ev.SubType == "bot_message" ||
		(selfID != "" && ev.User == selfID)

	return domain.InboundMessage{
		Platform:  "slack",
		ChannelID: ev.Channel,
		SenderID:  ev.User,
		Text:      ev.Text,
		IsFromBot: fromBot,
		Timestamp: time.Now(),
	}, true
}
