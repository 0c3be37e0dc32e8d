// Package bus carries chat events between the platform channels and the
// router. Inbound events share one ordered queue; replies are delivered
// synchronously to the handler registered for their platform.
package bus

import (
	"log/slog"
	"sync"
	"time"

	"qualibot/internal/domain"
)

const defaultPublishTimeout = 10 * time.Second

// InMemoryBus implements domain.MessageBus. It is safe for concurrent use.
type InMemoryBus struct {
	inbound  chan domain.InboundMessage
	handlers map[string]func(domain.OutboundMessage)
	mu       sync.RWMutex
	closed   bool
	logger   *slog.Logger

	publishTimeout time.Duration
}

// New returns a bus whose inbound queue holds bufferSize events (100 when
// bufferSize is not positive).
func New(bufferSize int, logger *slog.Logger) *InMemoryBus {
	if bufferSize <= 0 {
		bufferSize = 100
	}
	return &InMemoryBus{
		inbound:  make(chan domain.InboundMessage, bufferSize),
		handlers: make(map[string]func(domain.OutboundMessage)),
		logger:   logger,

		publishTimeout: defaultPublishTimeout,
	}
}

// Publish queues an inbound event for the router. A full queue blocks the
// channel for up to publishTimeout; after that the event is logged and
// dropped. Events published after Close are discarded.
func (b *InMemoryBus) Publish(msg domain.InboundMessage) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		b.logger.Warn("attempted to publish to closed bus")
		return
	}

	select {
	case b.inbound <- msg:
	default:
		b.logger.Warn("inbound bus full, waiting", "platform", msg.Platform, "channel", msg.ChannelID)
		timer := time.NewTimer(b.publishTimeout)
		defer timer.Stop()
		select {
		case b.inbound <- msg:
		case <-timer.C:
			b.logger.Error("message dropped: bus full",
				"platform", msg.Platform,
				"channel", msg.ChannelID,
				"event_id", msg.EventID,
			)
		}
	}
}

// Subscribe returns the inbound queue. It is closed by Close, which ends the
// router loop.
func (b *InMemoryBus) Subscribe() <-chan domain.InboundMessage {
	return b.inbound
}

// SendOutbound hands msg to the handler registered for msg.Platform and
// returns once it has been posted. Replies for a platform with no handler
// are logged and dropped.
func (b *InMemoryBus) SendOutbound(msg domain.OutboundMessage) {
	b.mu.RLock()
	handler, ok := b.handlers[msg.Platform]
	b.mu.RUnlock()

	if !ok {
		b.logger.Warn("no outbound handler registered", "platform", msg.Platform)
		return
	}

	handler(msg)
}

// OnOutbound registers the reply handler for platform, replacing any earlier one.
func (b *InMemoryBus) OnOutbound(platform string, handler func(domain.OutboundMessage)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[platform] = handler
}

func (b *InMemoryBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.closed {
		b.closed = true
		close(b.inbound)
	}
}
