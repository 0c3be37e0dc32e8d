package channel

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"strings"
	"testing"

	"qualibot/internal/bus"
	"qualibot/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestCLI_PublishesLinesUntilQuit(t *testing.T) {
	b := bus.New(10, testLogger())
	defer b.Close()

	in := strings.NewReader("hey ai hello\n\n  \nlol\n/quit\nnever read\n")
	var out bytes.Buffer
	c := NewCLI(CLIConfig{Logger: testLogger(), In: in, Out: &out})

	if err := c.Start(context.Background(), b); err != nil {
		t.Fatalf("start: %v", err)
	}

	var got []string
	for len(got) < 2 {
		got = append(got, (<-b.Subscribe()).Text)
	}
	if got[0] != "hey ai hello" || got[1] != "lol" {
		t.Fatalf("unexpected messages %v", got)
	}
	select {
	case m := <-b.Subscribe():
		t.Fatalf("unexpected extra message %+v", m)
	default:
	}
}

func TestCLI_OutboundPrintsReply(t *testing.T) {
	b := bus.New(1, testLogger())
	defer b.Close()

	var out bytes.Buffer
	c := NewCLI(CLIConfig{Logger: testLogger(), In: strings.NewReader(""), Out: &out})
	if err := c.Start(context.Background(), b); err != nil {
		t.Fatalf("start: %v", err)
	}

	b.SendOutbound(domain.OutboundMessage{Platform: "cli", ChannelID: "direct", Text: "Paris."})
	if !strings.Contains(out.String(), "assistant> Paris.") {
		t.Fatalf("reply not printed:\n%s", out.String())
	}
}
