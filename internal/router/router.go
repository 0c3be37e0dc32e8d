// Package router connects chat transports to the responder: it filters
// inbound events, asks for a decision and posts present replies back to the
// originating channel.
package router

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"qualibot/internal/domain"
	"qualibot/internal/metrics"

	"github.com/google/uuid"
)

// Decider turns message text into an optional reply.
type Decider interface {
	Decide(ctx context.Context, message string) (string, bool)
}

// Router consumes inbound messages from the bus and dispatches them.
type Router struct {
	decider     Decider
	bus         domain.MessageBus
	logger      *slog.Logger
	concurrency int
}

// Config holds the router's dependencies.
type Config struct {
	Decider     Decider
	Bus         domain.MessageBus
	Logger      *slog.Logger
	Concurrency int // events in flight; 1 processes strictly in order
}

func New(cfg Config) *Router {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Router{
		decider:     cfg.Decider,
		bus:         cfg.Bus,
		logger:      cfg.Logger,
		concurrency: cfg.Concurrency,
	}
}

// Run consumes inbound messages until ctx is done or the bus is closed.
// In-flight events are allowed to finish before Run returns.
func (r *Router) Run(ctx context.Context) {
	r.logger.Info("router started", "concurrency", r.concurrency)

	var wg sync.WaitGroup
	defer wg.Wait()

	sem := make(chan struct{}, r.concurrency)
	inbound := r.bus.Subscribe()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("router stopping")
			return
		case msg, ok := <-inbound:
			if !ok {
				r.logger.Info("inbound channel closed, router stopping")
				return
			}
			if r.concurrency == 1 {
				r.Handle(ctx, msg)
				continue
			}
			sem <- struct{}{}
			wg.Add(1)
			go func(m domain.InboundMessage) {
				defer wg.Done()
				defer func() { <-sem }()
				r.Handle(ctx, m)
			}(msg)
		}
	}
}

// Eligible reports whether msg should reach the responder at all.
func Eligible(msg domain.InboundMessage) bool {
	return !msg.IsFromBot && strings.TrimSpace(msg.Text) != ""
}

// Handle processes one event to completion: filter, decide, maybe post.
// It reports whether a reply was posted.
func (r *Router) Handle(ctx context.Context, msg domain.InboundMessage) bool {
	metrics.EventsReceived.Inc()
	if !Eligible(msg) {
		metrics.EventsFiltered.Inc()
		return false
	}
	if msg.EventID == "" {
		msg.EventID = uuid.NewString()
	}

	r.logger.Info("received message",
		"platform", msg.Platform,
		"channel", msg.ChannelID,
		"event_id", msg.EventID,
		"text_len", len(msg.Text),
	)

	reply, ok := r.decider.Decide(ctx, msg.Text)
	if !ok || strings.TrimSpace(reply) == "" {
		metrics.RepliesSuppressed.Inc()
		r.logger.Debug("no reply", "event_id", msg.EventID)
		return false
	}

	r.logger.Info("sending reply",
		"platform", msg.Platform,
		"channel", msg.ChannelID,
		"event_id", msg.EventID,
		"reply_len", len(reply),
	)
	r.bus.SendOutbound(domain.OutboundMessage{
		Platform:  msg.Platform,
		ChannelID: msg.ChannelID,
		Text:      reply,
	})
	metrics.RepliesSent.Inc()
	return true
}
