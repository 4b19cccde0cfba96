package bus

import (
	"context"
	"testing"
	"time"
)

func TestSessionKey(t *testing.T) {
	m := &InboundMessage{Channel: "discord", ChannelRef: ChannelRef{ID: "c1"}}
	if got := m.SessionKey(); got != "discord:c1" {
		t.Errorf("SessionKey = %q, want discord:c1", got)
	}
}

func TestIsMention(t *testing.T) {
	tests := []struct {
		name    string
		msg     InboundMessage
		mention bool
	}{
		{"plain", InboundMessage{}, false},
		{"mention", InboundMessage{MentionsBot: true}, true},
		{"reply", InboundMessage{IsReply: true}, true},
		{"both", InboundMessage{MentionsBot: true, IsReply: true}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.msg.IsMention(); got != tt.mention {
				t.Errorf("IsMention = %v, want %v", got, tt.mention)
			}
		})
	}
}

func TestDispatchOutbound(t *testing.T) {
	b := NewMessageBus(10)
	got := make(chan OutboundMessage, 1)
	b.SubscribeOutbound("discord", func(msg OutboundMessage) {
		got <- msg
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go b.DispatchOutbound(ctx)

	b.Outbound <- OutboundMessage{Channel: "discord", ChannelID: "c1", Content: "hi"}

	select {
	case msg := <-got:
		if msg.Content != "hi" || msg.ChannelID != "c1" {
			t.Errorf("unexpected message: %+v", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for dispatch")
	}
}

func TestDispatchOutbound_NoSubscriber(t *testing.T) {
	b := NewMessageBus(1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go b.DispatchOutbound(ctx)

	// Should be dropped without blocking the loop.
	b.Outbound <- OutboundMessage{Channel: "unknown", Content: "x"}
	b.Outbound <- OutboundMessage{Channel: "unknown", Content: "y"}
}
