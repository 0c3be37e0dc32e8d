package domain

import "time"

// InboundMessage is a single chat event as seen by the router.
type InboundMessage struct {
	Platform  string // slack | discord | telegram | cli
	ChannelID string
	SenderID  string
	Text      string
	IsFromBot bool
	EventID   string // log correlation only
	Timestamp time.Time
}

// OutboundMessage is a reply to be posted to the originating platform.
type OutboundMessage struct {
	Platform  string
	ChannelID string
	Text      string
}
