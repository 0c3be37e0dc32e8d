package domain

import "context"

// Channel is a chat platform transport (Slack, Discord, Telegram, CLI).
// Start blocks until ctx is cancelled or the connection fails; cancelling
// ctx is how a channel is stopped.
type Channel interface {
	Name() string
	Start(ctx context.Context, bus MessageBus) error
	Send(ctx context.Context, channelID string, text string) error
}

// MessageBus routes messages between channels and the router.
type MessageBus interface {
	Publish(msg InboundMessage)
	Subscribe() <-chan InboundMessage
	SendOutbound(msg OutboundMessage)
	OnOutbound(platform string, handler func(OutboundMessage))
	Close()
}
