package channel

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestSplitMessage(t *testing.T) {
	if got := splitMessage("short", 10); len(got) != 1 || got[0] != "short" {
		t.Fatalf("unexpected %v", got)
	}

	msg := "aaaaaaa\nbbbbbbbbbbbb"
	chunks := splitMessage(msg, 10)
	if chunks[0] != "aaaaaaa\n" {
		t.Fatalf("expected split on newline, got %q", chunks[0])
	}
	joined := ""
	for _, c := range chunks {
		if len(c) > 10 {
			t.Fatalf("chunk too long: %q", c)
		}
		joined += c
	}
	if joined != msg {
		t.Fatalf("chunks lost content: %q", joined)
	}
}

func TestSplitMessage_KeepsRunesWhole(t *testing.T) {
	msg := "a" + strings.Repeat("é", 3000)
	chunks := splitMessage(msg, 4000)
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if len(c) > 4000 {
			t.Fatalf("chunk %d too long: %d bytes", i, len(c))
		}
		if !utf8.ValidString(c) {
			t.Fatalf("chunk %d is not valid UTF-8", i)
		}
	}
	if strings.Join(chunks, "") != msg {
		t.Fatal("chunks lost content")
	}
}

func TestSplitMessage_LimitBelowRuneWidth(t *testing.T) {
	chunks := splitMessage("日本", 2)
	if len(chunks) != 2 || chunks[0] != "日" || chunks[1] != "本" {
		t.Fatalf("unexpected chunks %q", chunks)
	}
}
