package responder

import (
	"context"
	"slices"
	"testing"
	"time"

	"github.com/sonantlabs/sonant/internal/bus"
	"github.com/sonantlabs/sonant/internal/listening"
	"github.com/sonantlabs/sonant/internal/memory"
	"github.com/sonantlabs/sonant/internal/provider"
)

type fakeClient struct {
	completion *provider.Completion
	err        error
	gotSystem  string
	gotTurns   []provider.Turn
}

func (f *fakeClient) Complete(_ context.Context, system string, turns []provider.Turn) (*provider.Completion, error) {
	f.gotSystem = system
	f.gotTurns = turns
	if f.err != nil {
		return nil, f.err
	}
	return f.completion, nil
}

func testContext(mention bool, score float64) *memory.MessageContext {
	return &memory.MessageContext{
		Message: bus.InboundMessage{
			Channel:     "discord",
			Content:     "what is a goroutine?",
			Author:      bus.Author{ID: "u1", Username: "Ann"},
			ChannelRef:  bus.ChannelRef{ID: "c1", Name: "general"},
			MentionsBot: mention,
			CreatedAt:   time.Now(),
		},
		Profile:   memory.UserProfile{UserID: "u1", Username: "Ann", InteractionCount: 1},
		Channel:   memory.ChannelContext{ChannelID: "c1", Name: "general", Tone: memory.ToneCasual},
		Relevance: score,
	}
}

func TestShouldRespondMentionAlwaysWins(t *testing.T) {
	reg := listening.NewRegistry()
	r := New(memory.NewMemStore(), &fakeClient{}, reg, 10)

	// Even in disabled mode with a rock-bottom score.
	if err := reg.Set("c1", "disabled", 0); err != nil {
		t.Fatal(err)
	}
	if !r.ShouldRespond(testContext(true, 0.0)) {
		t.Error("mention must always respond")
	}

	reply := testContext(false, 0.0)
	reply.Message.IsReply = true
	if !r.ShouldRespond(reply) {
		t.Error("reply must always respond")
	}
}

func TestShouldRespondModes(t *testing.T) {
	tests := []struct {
		mode      string
		threshold float64
		score     float64
		want      bool
	}{
		{"disabled", 0, 0.99, false},
		{"mentions-only", 0, 0.99, false},
		{"always-listen", 0, 0.01, true},
		{"smart-listening", 0.6, 0.7, true},
		{"smart-listening", 0.6, 0.59, false},
	}
	for _, tt := range tests {
		t.Run(tt.mode, func(t *testing.T) {
			reg := listening.NewRegistry()
			if err := reg.Set("c1", tt.mode, tt.threshold); err != nil {
				t.Fatal(err)
			}
			r := New(memory.NewMemStore(), &fakeClient{}, reg, 10)
			if got := r.ShouldRespond(testContext(false, tt.score)); got != tt.want {
				t.Errorf("ShouldRespond(%s, score=%v) = %v, want %v", tt.mode, tt.score, got, tt.want)
			}
		})
	}
}

func TestShouldRespondTracksEligibility(t *testing.T) {
	// For non-mentions the registry's eligibility gate is authoritative: a
	// channel it rules out never responds, whatever the score.
	for _, mode := range []string{"disabled", "mentions-only", "always-listen", "smart-listening"} {
		reg := listening.NewRegistry()
		if err := reg.Set("c1", mode, 0); err != nil {
			t.Fatal(err)
		}
		r := New(memory.NewMemStore(), &fakeClient{}, reg, 10)
		if got := r.ShouldRespond(testContext(false, 1.0)); got != reg.Eligible("c1") {
			t.Errorf("mode %s: ShouldRespond = %v, Eligible = %v", mode, got, reg.Eligible("c1"))
		}
	}
}

func TestRespondSuccessPersistsAssistantTurn(t *testing.T) {
	store := memory.NewMemStore()
	client := &fakeClient{completion: &provider.Completion{
		Text:  "A goroutine is a lightweight thread.",
		Model: "test-model",
		Usage: &provider.Usage{TotalTokens: 20},
	}}
	r := New(store, client, listening.NewRegistry(), 10)

	reply, err := r.Respond(context.Background(), testContext(true, 0.8))
	if err != nil {
		t.Fatalf("Respond error: %v", err)
	}
	if reply.Fallback {
		t.Error("unexpected fallback")
	}
	if reply.Text != "A goroutine is a lightweight thread." || reply.Model != "test-model" {
		t.Errorf("reply = %+v", reply)
	}

	msgs, _ := store.RecentMessages(context.Background(), "c1", 10)
	if len(msgs) != 1 {
		t.Fatalf("log rows = %d, want 1", len(msgs))
	}
	if msgs[0].Role != memory.RoleAssistant || msgs[0].UserID != "" || msgs[0].Relevance != 0 {
		t.Errorf("assistant row = %+v", msgs[0])
	}
}

func TestRespondFailureYieldsFallbackNotPersisted(t *testing.T) {
	store := memory.NewMemStore()
	client := &fakeClient{err: provider.ErrTimeout}
	r := New(store, client, listening.NewRegistry(), 10)
	r.pick = func(int) int { return 2 }

	reply, err := r.Respond(context.Background(), testContext(true, 0.8))
	if err != nil {
		t.Fatalf("provider failure must not escape Respond, got %v", err)
	}
	if !reply.Fallback {
		t.Error("expected fallback reply")
	}
	if !slices.Contains(Fallbacks, reply.Text) {
		t.Errorf("reply %q not from fallback pool", reply.Text)
	}

	// No assistant row for the failed turn.
	msgs, _ := store.RecentMessages(context.Background(), "c1", 10)
	if len(msgs) != 0 {
		t.Errorf("log rows = %d, want 0", len(msgs))
	}
}

func TestRespondMalformedResponseAlsoFallsBack(t *testing.T) {
	r := New(memory.NewMemStore(), &fakeClient{err: provider.ErrEmptyCompletion}, listening.NewRegistry(), 10)
	reply, err := r.Respond(context.Background(), testContext(true, 0.8))
	if err != nil || !reply.Fallback {
		t.Errorf("reply = %+v, err = %v", reply, err)
	}
}

func TestBuildTurnsOrderAndLimit(t *testing.T) {
	client := &fakeClient{completion: &provider.Completion{Text: "ok"}}
	r := New(memory.NewMemStore(), client, listening.NewRegistry(), 3)

	mctx := testContext(true, 0.8)
	// History most recent first, as the store returns it.
	mctx.History = []memory.ConversationMessage{
		{Role: memory.RoleAssistant, Content: "newest answer"},
		{Role: memory.RoleUser, Author: "Bob", Content: "newest question", UserID: "u2"},
		{Role: memory.RoleUser, Author: "Ann", Content: "older", UserID: "u1"},
		{Role: memory.RoleUser, Author: "Ann", Content: "dropped", UserID: "u1"},
	}

	if _, err := r.Respond(context.Background(), mctx); err != nil {
		t.Fatal(err)
	}

	// 3 history turns + current = 4; oldest first; over-limit row dropped.
	if len(client.gotTurns) != 4 {
		t.Fatalf("turns = %d, want 4", len(client.gotTurns))
	}
	if client.gotTurns[0].Content != "Ann: older" {
		t.Errorf("first turn = %+v", client.gotTurns[0])
	}
	if client.gotTurns[2].Role != "assistant" {
		t.Errorf("turn roles = %+v", client.gotTurns)
	}
	if client.gotTurns[3].Content != "Ann: what is a goroutine?" {
		t.Errorf("last turn = %+v", client.gotTurns[3])
	}
	if client.gotSystem == "" {
		t.Error("system prompt empty")
	}
}
