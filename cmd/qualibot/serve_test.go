package main

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"qualibot/internal/config"
	"qualibot/internal/domain"
)

// fakeChannel publishes its scripted messages, records outbound replies and
// blocks until ctx is cancelled, unless startErr is set.
type fakeChannel struct {
	name     string
	startErr error
	publish  []string
	sent     chan domain.OutboundMessage
	stopped  chan struct{}
}

func newFakeChannel(name string) *fakeChannel {
	return &fakeChannel{
		name:    name,
		sent:    make(chan domain.OutboundMessage, 10),
		stopped: make(chan struct{}),
	}
}

func (f *fakeChannel) Name() string { return f.name }

func (f *fakeChannel) Start(ctx context.Context, bus domain.MessageBus) error {
	defer close(f.stopped)
	if f.startErr != nil {
		return f.startErr
	}
	bus.OnOutbound(f.name, func(msg domain.OutboundMessage) { f.sent <- msg })
	for _, text := range f.publish {
		bus.Publish(domain.InboundMessage{Platform: f.name, ChannelID: "C1", Text: text})
	}
	<-ctx.Done()
	return nil
}

func (f *fakeChannel) Send(ctx context.Context, channelID string, text string) error { return nil }

type fakeDecider struct {
	calls atomic.Int32
}

func (d *fakeDecider) Decide(ctx context.Context, message string) (string, bool) {
	d.calls.Add(1)
	if strings.HasPrefix(message, "hey ai") {
		return "Paris.", true
	}
	return "", false
}

// syncBuffer lets the router goroutines and the test share a log buffer.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func captureLogs(t *testing.T) *syncBuffer {
	t.Helper()
	out := &syncBuffer{}
	prev := logger
	logger = slog.New(slog.NewTextHandler(out, nil))
	t.Cleanup(func() { logger = prev })
	return out
}

func TestServe_ChannelStartFailureIsFatal(t *testing.T) {
	logs := captureLogs(t)

	failing := newFakeChannel("slack")
	failing.startErr = errors.New("slack auth: invalid_auth")
	healthy := newFakeChannel("telegram")
	decider := &fakeDecider{}

	done := make(chan error, 1)
	go func() {
		done <- serve(context.Background(), config.Defaults(), decider, []domain.Channel{failing, healthy})
	}()

	var err error
	select {
	case err = <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not return after a channel failed to start")
	}

	if err == nil || !strings.Contains(err.Error(), "slack: slack auth: invalid_auth") {
		t.Fatalf("expected the slack start error, got %v", err)
	}
	select {
	case <-healthy.stopped:
	default:
		t.Fatal("other channels were not stopped")
	}
	if n := decider.calls.Load(); n != 0 {
		t.Fatalf("no message should reach the responder, got %d calls", n)
	}
	if !strings.Contains(logs.String(), "could not start the bot") {
		t.Fatalf("startup failure not logged:\n%s", logs.String())
	}
}

func TestServe_RoutesRepliesUntilCancelled(t *testing.T) {
	captureLogs(t)

	ch := newFakeChannel("slack")
	ch.publish = []string{"lol", "hey ai capital of France?"}
	decider := &fakeDecider{}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- serve(ctx, config.Defaults(), decider, []domain.Channel{ch})
	}()

	select {
	case msg := <-ch.sent:
		if msg.Text != "Paris." || msg.ChannelID != "C1" || msg.Platform != "slack" {
			t.Fatalf("unexpected reply %+v", msg)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no reply posted")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("clean shutdown should return nil, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not stop after cancel")
	}
	if n := decider.calls.Load(); n != 2 {
		t.Fatalf("expected 2 decisions, got %d", n)
	}
	select {
	case extra := <-ch.sent:
		t.Fatalf("chatter must not be answered, got %+v", extra)
	default:
	}
}
