package channel

import (
	"testing"

	"github.com/slack-go/slack/slackevents"
)

func TestSlackInbound_UserMessage(t *testing.T) {
	ev := &slackevents.MessageEvent{User: "U1", Channel: "C1", Text: "hey ai what time is it"}
	msg, ok := slackInbound(ev, "UBOT")
	if !ok {
		t.Fatal("plain user message dropped")
	}
	if msg.IsFromBot {
		t.Fatal("user message flagged as bot")
	}
	if msg.Platform != "slack" || msg.ChannelID != "C1" || msg.Text != ev.Text {
		t.Fatalf("unexpected mapping %+v", msg)
	}
}

func TestSlackInbound_BotOrigin(t *testing.T) {
	cases := map[string]*slackevents.MessageEvent{
		"bot_id":  {BotID: "B1", Channel: "C1", Text: "beep"},
		"subtype": {SubType: "bot_message", Channel: "C1", Text: "beep"},
		"self":    {User: "UBOT", Channel: "C1", Text: "my own reply"},
	}
	for name, ev := range cases {
		msg, ok := slackInbound(ev, "UBOT")
		if !ok || !msg.IsFromBot {
			t.Fatalf("%s: expected a bot-flagged message, got ok=%v %+v", name, ok, msg)
		}
	}
}

func TestSlackInbound_UserSubtypesKept(t *testing.T) {
	for _, subtype := range []string{"file_share", "me_message", "thread_broadcast"} {
		ev := &slackevents.MessageEvent{SubType: subtype, User: "U1", Channel: "C1", Text: "hey ai look at this"}
		if _, ok := slackInbound(ev, "UBOT"); !ok {
			t.Fatalf("%s: expected message to be kept", subtype)
		}
	}
}

func TestSlackInbound_SystemSubtypesDropped(t *testing.T) {
	for _, subtype := range []string{"channel_join", "channel_topic", "message_changed", "message_deleted"} {
		ev := &slackevents.MessageEvent{SubType: subtype, User: "U1", Channel: "C1", Text: "<@U1> has joined the channel"}
		if _, ok := slackInbound(ev, "UBOT"); ok {
			t.Fatalf("%s: expected message to be dropped", subtype)
		}
	}
}
