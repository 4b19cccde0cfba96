// Package responder decides whether an inbound message gets a generated
// reply, drives the completion provider, and applies fallback behavior when
// the provider fails.
package responder

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/sonantlabs/sonant/internal/listening"
	"github.com/sonantlabs/sonant/internal/memory"
	"github.com/sonantlabs/sonant/internal/provider"
)

// Reply is the outcome of a respond decision that produced text. Fallback
// replies are surfaced to the user but never persisted as assistant turns, so
// conversation statistics only count real completions.
type Reply struct {
	Text     string
	Fallback bool
	Model    string
	Usage    *provider.Usage
}

type Responder struct {
	store        memory.Store
	client       provider.Client
	registry     *listening.Registry
	contextTurns int
	pick         func(n int) int // fallback selector, injectable for tests
}

func New(store memory.Store, client provider.Client, registry *listening.Registry, contextTurns int) *Responder {
	if contextTurns <= 0 {
		contextTurns = 10
	}
	return &Responder{
		store:        store,
		client:       client,
		registry:     registry,
		contextTurns: contextTurns,
		pick:         pickFallback,
	}
}

// ShouldRespond applies the gating rules: mentions and replies always
// respond; otherwise the channel's listening mode decides, with
// smart-listening deferring to the relevance score against the stored
// threshold.
func (r *Responder) ShouldRespond(mctx *memory.MessageContext) bool {
	if mctx.Message.IsMention() {
		return true
	}
	chID := mctx.Message.ChannelRef.ID
	if !r.registry.Eligible(chID) {
		return false
	}
	st := r.registry.Get(chID)
	if st.Mode == listening.ModeAlwaysListen {
		return true
	}
	// smart-listening
	return mctx.Relevance >= st.Threshold
}

// Respond builds the provider conversation and requests a completion. On
// success the assistant turn is persisted with relevance 0. Provider failure
// never escapes this boundary: it is logged and answered with a fallback.
func (r *Responder) Respond(ctx context.Context, mctx *memory.MessageContext) (*Reply, error) {
	turns := r.buildTurns(mctx)
	system := buildSystemPrompt(mctx)

	completion, err := r.client.Complete(ctx, system, turns)
	if err != nil {
		log.Printf("[responder] completion failed for %s: %v", mctx.Message.ChannelRef.ID, err)
		return &Reply{Text: Fallbacks[r.pick(len(Fallbacks))], Fallback: true}, nil
	}

	assistantTurn := &memory.ConversationMessage{
		ChannelID: mctx.Message.ChannelRef.ID,
		Role:      memory.RoleAssistant,
		Content:   completion.Text,
		Author:    "assistant",
		Relevance: 0,
	}
	if err := r.store.AppendMessage(ctx, assistantTurn); err != nil {
		// The reply already exists; surface it even if the log write failed.
		log.Printf("[responder] persist assistant turn failed: %v", err)
	}

	log.Printf("[responder] replied in %s (model=%s latency=%dms)",
		mctx.Message.ChannelRef.ID, completion.Model, completion.LatencyMs)
	return &Reply{
		Text:  completion.Text,
		Model: completion.Model,
		Usage: completion.Usage,
	}, nil
}

// buildTurns assembles system framing + up to the last contextTurns history
// turns (oldest first) + the current user turn.
func (r *Responder) buildTurns(mctx *memory.MessageContext) []provider.Turn {
	history := mctx.History
	if len(history) > r.contextTurns {
		history = history[:r.contextTurns]
	}

	turns := make([]provider.Turn, 0, len(history)+1)
	// History arrives most recent first; the provider wants oldest first.
	for i := len(history) - 1; i >= 0; i-- {
		m := history[i]
		role := "user"
		content := m.Content
		if m.Role == memory.RoleAssistant {
			role = "assistant"
		} else if m.Author != "" {
			content = m.Author + ": " + m.Content
		}
		turns = append(turns, provider.Turn{Role: role, Content: content})
	}
	turns = append(turns, provider.Turn{
		Role:    "user",
		Content: mctx.Message.Author.Username + ": " + mctx.Message.Content,
	})
	return turns
}

func buildSystemPrompt(mctx *memory.MessageContext) string {
	var sb strings.Builder
	sb.WriteString("You are a friendly companion in a community chat. Reply conversationally and keep answers short.\n")

	p := mctx.Profile
	fmt.Fprintf(&sb, "\nYou are talking to %s (%d prior interactions).\n", p.Username, p.InteractionCount-1)
	if len(p.Interests) > 0 {
		fmt.Fprintf(&sb, "Their interests: %s.\n", strings.Join(p.Interests, ", "))
	}
	if len(p.Traits) > 0 {
		fmt.Fprintf(&sb, "Their traits: %s.\n", strings.Join(p.Traits, ", "))
	}
	if p.Notes != "" {
		fmt.Fprintf(&sb, "Notes about them: %s\n", p.Notes)
	}

	c := mctx.Channel
	fmt.Fprintf(&sb, "\nChannel #%s has a %s tone.\n", c.Name, c.Tone)
	if len(c.RecentTopics) > 0 {
		fmt.Fprintf(&sb, "Recent channel topics: %s.\n", strings.Join(c.RecentTopics, ", "))
	}
	if mctx.Server != nil && mctx.Server.Name != "" {
		fmt.Fprintf(&sb, "Community: %s.\n", mctx.Server.Name)
	}
	if len(mctx.Cues) > 0 {
		fmt.Fprintf(&sb, "Conversation cues: %s.\n", strings.Join(mctx.Cues, ", "))
	}
	return sb.String()
}
