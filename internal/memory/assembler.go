package memory

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/sonantlabs/sonant/internal/bus"
	"github.com/sonantlabs/sonant/internal/relevance"
	"github.com/sonantlabs/sonant/internal/topics"
)

// MessageContext is the immutable snapshot handed to the responder for one
// inbound message. Entity fields reflect state after this message was folded
// in; Relevance was computed against the state before it.
type MessageContext struct {
	Message   bus.InboundMessage
	Profile   UserProfile
	Channel   ChannelContext
	Server    *ServerContext // nil outside a community
	History   []ConversationMessage
	Topics    []string
	Cues      []string
	Relevance float64
}

// Assembler builds MessageContexts. All writes for one entity key are
// serialized through a per-key mutex so concurrent handlers cannot lose
// updates on the bounded lists and counters.
type Assembler struct {
	store        Store
	historyLimit int

	mu   sync.Mutex
	keys map[string]*sync.Mutex
}

func NewAssembler(store Store, historyLimit int) *Assembler {
	if historyLimit <= 0 {
		historyLimit = 20
	}
	return &Assembler{
		store:        store,
		historyLimit: historyLimit,
		keys:         make(map[string]*sync.Mutex),
	}
}

func (a *Assembler) keyLock(key string) *sync.Mutex {
	a.mu.Lock()
	defer a.mu.Unlock()
	m, ok := a.keys[key]
	if !ok {
		m = &sync.Mutex{}
		a.keys[key] = m
	}
	return m
}

// Assemble runs the full context pass for one inbound message: get-or-create
// the entities, read recent history, score, derive cues, append the user turn,
// and fold the message into each entity. Store failures propagate; no context
// is fabricated when persistence is down.
func (a *Assembler) Assemble(ctx context.Context, msg bus.InboundMessage) (*MessageContext, error) {
	now := msg.CreatedAt
	if now.IsZero() {
		now = time.Now()
	}

	// Lock order: user, channel, guild. Every caller goes through Assemble,
	// so the order is consistent process-wide.
	userMu := a.keyLock("user:" + msg.Author.ID)
	userMu.Lock()
	defer userMu.Unlock()
	chanMu := a.keyLock("channel:" + msg.ChannelRef.ID)
	chanMu.Lock()
	defer chanMu.Unlock()
	if msg.Guild.ID != "" {
		guildMu := a.keyLock("guild:" + msg.Guild.ID)
		guildMu.Lock()
		defer guildMu.Unlock()
	}

	profile, err := a.getOrCreateProfile(ctx, msg)
	if err != nil {
		return nil, err
	}
	channel, err := a.getOrCreateChannel(ctx, msg)
	if err != nil {
		return nil, err
	}
	var server *ServerContext
	if msg.Guild.ID != "" {
		server, err = a.getOrCreateServer(ctx, msg)
		if err != nil {
			return nil, err
		}
	}

	history, err := a.store.RecentMessages(ctx, msg.ChannelRef.ID, a.historyLimit)
	if err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}

	cleaned := strings.TrimSpace(msg.Content)
	tags := topics.Dedupe(topics.Extract(cleaned))

	score := relevance.Score(relevance.Signals{
		IsMention:         msg.MentionsBot,
		IsReply:           msg.IsReply,
		HasQuestion:       strings.Contains(cleaned, "?"),
		PriorInteractions: profile.InteractionCount,
		LastActivity:      channel.LastActivity,
		ContentLength:     utf8.RuneCountInString(cleaned),
		SharedTopics:      sharedTopicCount(tags, profile.RecentTopics, channel.RecentTopics),
		Now:               now,
	})

	cues := deriveCues(cleaned, msg.IsMention(), profile, history, now)

	userTurn := &ConversationMessage{
		ChannelID: msg.ChannelRef.ID,
		UserID:    msg.Author.ID,
		Role:      RoleUser,
		Content:   msg.Content,
		Author:    msg.Author.Username,
		Relevance: score,
		CreatedAt: now,
	}
	if err := a.store.AppendMessage(ctx, userTurn); err != nil {
		return nil, fmt.Errorf("append user turn: %w", err)
	}

	profile.InteractionCount++
	profile.LastSeen = now
	profile.Username = msg.Author.Username
	profile.RecentTopics = mergeBounded(profile.RecentTopics, tags, MaxUserTopics)
	profile.Interests = mergeBounded(profile.Interests, tags, MaxInterests)
	profile.Traits = mergeBounded(profile.Traits, topics.DeriveTraits(cleaned), MaxTraits)
	if err := a.store.UpsertUserProfile(ctx, profile); err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}

	channel.LastActivity = now
	channel.RecentTopics = mergeBounded(channel.RecentTopics, tags, MaxChannelTopic)
	channel.ActiveUsers = mergeBounded(channel.ActiveUsers, []string{msg.Author.ID}, MaxActiveUsers)
	if err := a.store.UpsertChannelContext(ctx, channel); err != nil {
		return nil, fmt.Errorf("update channel: %w", err)
	}

	if server != nil {
		server.LastActivity = now
		server.RecentEvents = pushEvent(server.RecentEvents, "message:"+msg.Author.Username, MaxRecentEvents)
		if err := a.store.UpsertServerContext(ctx, server); err != nil {
			return nil, fmt.Errorf("update server: %w", err)
		}
	}

	mctx := &MessageContext{
		Message:   msg,
		Profile:   *profile,
		Channel:   *channel,
		History:   history,
		Topics:    tags,
		Cues:      cues,
		Relevance: score,
	}
	if server != nil {
		sc := *server
		mctx.Server = &sc
	}
	log.Printf("[assembler] %s/%s relevance=%.2f topics=%d cues=%v",
		msg.ChannelRef.ID, msg.Author.Username, score, len(tags), cues)
	return mctx, nil
}

func (a *Assembler) getOrCreateProfile(ctx context.Context, msg bus.InboundMessage) (*UserProfile, error) {
	p, err := a.store.GetUserProfile(ctx, msg.Author.ID)
	if err == ErrNotFound {
		return &UserProfile{UserID: msg.Author.ID, Username: msg.Author.Username}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return p, nil
}

func (a *Assembler) getOrCreateChannel(ctx context.Context, msg bus.InboundMessage) (*ChannelContext, error) {
	c, err := a.store.GetChannelContext(ctx, msg.ChannelRef.ID)
	if err == ErrNotFound {
		chType := msg.ChannelRef.Type
		if chType == "" {
			chType = "text"
		}
		return &ChannelContext{
			ChannelID: msg.ChannelRef.ID,
			Name:      msg.ChannelRef.Name,
			Type:      chType,
			Tone:      ToneCasual,
		}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get channel: %w", err)
	}
	return c, nil
}

func (a *Assembler) getOrCreateServer(ctx context.Context, msg bus.InboundMessage) (*ServerContext, error) {
	sc, err := a.store.GetServerContext(ctx, msg.Guild.ID)
	if err == ErrNotFound {
		return &ServerContext{GuildID: msg.Guild.ID, Name: msg.Guild.Name}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get server: %w", err)
	}
	return sc, nil
}

func sharedTopicCount(tags, userTopics, channelTopics []string) int {
	known := make(map[string]struct{}, len(userTopics)+len(channelTopics))
	for _, t := range userTopics {
		known[t] = struct{}{}
	}
	for _, t := range channelTopics {
		known[t] = struct{}{}
	}
	n := 0
	for _, t := range tags {
		if _, ok := known[t]; ok {
			n++
		}
	}
	return n
}
