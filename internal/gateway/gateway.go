package gateway

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/sonantlabs/sonant/internal/bus"
	"github.com/sonantlabs/sonant/internal/channel"
	"github.com/sonantlabs/sonant/internal/config"
	"github.com/sonantlabs/sonant/internal/listening"
	"github.com/sonantlabs/sonant/internal/memory"
	"github.com/sonantlabs/sonant/internal/provider"
	"github.com/sonantlabs/sonant/internal/responder"
	"github.com/sonantlabs/sonant/internal/retention"
	"github.com/sonantlabs/sonant/internal/tts"
	"github.com/sonantlabs/sonant/internal/voice"
)

const speakTimeout = 90 * time.Second

// Options allow swapping externals out in tests. Zero values use production
// implementations.
type Options struct {
	Store          memory.Store
	ProviderClient provider.Client
	Synthesizer    tts.Synthesizer
	SessionFactory channel.SessionFactory
	SignalChan     chan os.Signal
}

// Gateway owns the full pipeline: platform events in, context assembly,
// response generation, text out, speech out.
type Gateway struct {
	cfg       *config.Config
	bus       *bus.MessageBus
	store     memory.Store
	registry  *listening.Registry
	assembler *memory.Assembler
	responder *responder.Responder
	channels  *channel.Manager
	speech    *voice.Pipeline
	locator   channel.VoiceChannelLocator
	sweeper   *retention.Sweeper

	prefixMu sync.RWMutex
	prefixes map[string]string // guild id -> command prefix override

	signalChan chan os.Signal
}

func New(cfg *config.Config) (*Gateway, error) {
	return NewWithOptions(cfg, Options{})
}

func NewWithOptions(cfg *config.Config, opts Options) (*Gateway, error) {
	g := &Gateway{
		cfg:        cfg,
		bus:        bus.NewMessageBus(config.DefaultBufSize),
		prefixes:   make(map[string]string),
		signalChan: opts.SignalChan,
	}

	store := opts.Store
	if store == nil {
		dbPath := cfg.Store.DBPath
		if dbPath == "" {
			dbPath = filepath.Join(config.ConfigDir(), "data", "sonant.db")
		}
		s, err := memory.NewSQLiteStore(dbPath)
		if err != nil {
			return nil, fmt.Errorf("open store: %w", err)
		}
		store = s
	}
	g.store = store

	def := listening.State{Threshold: cfg.Listening.DefaultThreshold}
	if cfg.Listening.DefaultMode != "" {
		mode, err := listening.ParseMode(cfg.Listening.DefaultMode)
		if err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("listening config: %w", err)
		}
		def.Mode = mode
	}
	g.registry = listening.NewRegistryWithDefault(def)

	g.assembler = memory.NewAssembler(store, cfg.Gateway.HistoryLimit)

	client := opts.ProviderClient
	if client == nil {
		client = provider.NewOpenAIClient(cfg.Provider)
	}
	g.responder = responder.New(store, client, g.registry, cfg.Gateway.ContextTurns)

	factory := opts.SessionFactory
	var (
		chMgr *channel.Manager
		err   error
	)
	if factory == nil {
		chMgr, err = channel.NewManager(cfg.Discord, g.bus)
	} else {
		chMgr, err = channel.NewManagerWithFactory(cfg.Discord, g.bus, factory)
	}
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("create channel manager: %w", err)
	}
	g.channels = chMgr

	// Speech requires TTS enabled and a transport that can join voice channels.
	if joiner, ok := chMgr.VoiceJoiner("discord"); ok && cfg.TTS.Enabled {
		synth := opts.Synthesizer
		if synth == nil {
			synth = tts.NewOpenAIProvider(cfg.TTS)
		}
		if loc, ok := joiner.(channel.VoiceChannelLocator); ok {
			g.locator = loc
		}
		g.speech = voice.NewPipeline(synth, joiner, store, voice.Options{
			TempDir:       filepath.Join(config.ConfigDir(), "audio", "tmp"),
			SaveDir:       filepath.Join(config.ConfigDir(), "audio", "saved"),
			VoiceChannels: cfg.Discord.VoiceChannels,
		})
	}

	var audio retention.TempSweeper
	if g.speech != nil {
		audio = g.speech
	}
	g.sweeper = retention.NewSweeper(cfg.Retention, store, audio)

	return g, nil
}

// Run starts everything and blocks until SIGINT/SIGTERM.
func (g *Gateway) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go g.bus.DispatchOutbound(ctx)

	if err := g.channels.StartAll(ctx); err != nil {
		return fmt.Errorf("start channels: %w", err)
	}
	log.Printf("[gateway] channels started: %v", g.channels.EnabledChannels())

	if err := g.sweeper.Start(); err != nil {
		log.Printf("[gateway] retention start warning: %v", err)
	}

	go g.processLoop(ctx)

	sigCh := g.signalChan
	if sigCh == nil {
		sigCh = make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	}
	<-sigCh

	log.Printf("[gateway] shutting down...")
	return g.Shutdown()
}

func (g *Gateway) processLoop(ctx context.Context) {
	for {
		select {
		case msg := <-g.bus.Inbound:
			g.handleInbound(ctx, msg)
		case <-ctx.Done():
			return
		}
	}
}

func (g *Gateway) handleInbound(ctx context.Context, msg bus.InboundMessage) {
	if msg.Author.Bot {
		return
	}
	// A bare mention still deserves a reply; anything else empty is noise.
	if strings.TrimSpace(msg.Content) == "" && !msg.IsMention() {
		return
	}
	if strings.HasPrefix(msg.Content, g.commandPrefix(ctx, msg.Guild.ID)) {
		// Command traffic belongs to a command handler, not the companion
		// pipeline, and must never enter the conversation log.
		return
	}

	log.Printf("[gateway] inbound from %s/%s: %s", msg.Channel, msg.Author.Username, truncate(msg.Content, 80))

	mctx, err := g.assembler.Assemble(ctx, msg)
	if err != nil {
		log.Printf("[gateway] assemble context: %v", err)
		return
	}

	if !g.channelAllowed(mctx) {
		return
	}
	if !g.responder.ShouldRespond(mctx) {
		return
	}

	reply, err := g.responder.Respond(ctx, mctx)
	if err != nil {
		log.Printf("[gateway] respond: %v", err)
		return
	}

	out := bus.OutboundMessage{
		Channel:   msg.Channel,
		ChannelID: msg.ChannelRef.ID,
		Content:   reply.Text,
	}
	if msg.IsMention() {
		out.ReplyToID = msg.ID
	}
	g.bus.Outbound <- out

	// Voice is best effort and never blocks the next message.
	if g.speech != nil && msg.Guild.ID != "" && !reply.Fallback {
		go g.speak(msg.Guild.ID, msg.Author.ID, reply.Text)
	}
}

// channelAllowed applies the per-server listen/ignore lists. Direct mentions
// always pass.
func (g *Gateway) channelAllowed(mctx *memory.MessageContext) bool {
	if mctx.Server == nil || mctx.Message.IsMention() {
		return true
	}
	chID := mctx.Message.ChannelRef.ID
	for _, id := range mctx.Server.IgnoringChannels {
		if id == chID {
			return false
		}
	}
	if len(mctx.Server.ListeningChannels) > 0 {
		for _, id := range mctx.Server.ListeningChannels {
			if id == chID {
				return true
			}
		}
		return false
	}
	return true
}

// speak plays the reply in the requester's current voice channel, falling
// back to the guild's configured default when they are not in voice.
func (g *Gateway) speak(guildID, userID, text string) {
	ctx, cancel := context.WithTimeout(context.Background(), speakTimeout)
	defer cancel()
	channelID := ""
	if g.locator != nil {
		channelID = g.locator.UserVoiceChannel(guildID, userID)
	}
	if err := g.speech.Speak(ctx, guildID, channelID, text); err != nil {
		switch {
		case err == voice.ErrPlaybackBusy:
			log.Printf("[gateway] voice busy in guild %s, skipping playback", guildID)
		case err == voice.ErrNoVoiceChannel:
			// Guild has no default voice channel configured; text reply stands.
		default:
			log.Printf("[gateway] voice playback in guild %s: %v", guildID, err)
		}
	}
}

// commandPrefix returns the guild's effective prefix. Persisted overrides on
// ServerContext are loaded once per guild and cached; guilds without an
// override use the config default.
func (g *Gateway) commandPrefix(ctx context.Context, guildID string) string {
	if guildID == "" {
		return g.cfg.Discord.CommandPrefix
	}

	g.prefixMu.RLock()
	p, ok := g.prefixes[guildID]
	g.prefixMu.RUnlock()
	if !ok {
		sc, err := g.store.GetServerContext(ctx, guildID)
		switch {
		case err == nil:
			p = sc.CommandPrefix
		case err == memory.ErrNotFound:
			p = ""
		default:
			// Transient store failure: fall back without caching so the next
			// message retries the load.
			log.Printf("[gateway] load command prefix for %s: %v", guildID, err)
			return g.cfg.Discord.CommandPrefix
		}
		g.prefixMu.Lock()
		g.prefixes[guildID] = p
		g.prefixMu.Unlock()
	}

	if p != "" {
		return p
	}
	return g.cfg.Discord.CommandPrefix
}

// SetListeningMode changes a channel's listening behavior at runtime.
func (g *Gateway) SetListeningMode(channelID, mode string, threshold float64) error {
	return g.registry.Set(channelID, mode, threshold)
}

// ListeningMode reports the channel's effective listening state.
func (g *Gateway) ListeningMode(channelID string) listening.State {
	return g.registry.Get(channelID)
}

// SetCommandPrefix overrides the command prefix for one guild and persists it
// on the guild's context.
func (g *Gateway) SetCommandPrefix(ctx context.Context, guildID, prefix string) error {
	if prefix == "" {
		return fmt.Errorf("command prefix cannot be empty")
	}
	sc, err := g.store.GetServerContext(ctx, guildID)
	if err == memory.ErrNotFound {
		sc = &memory.ServerContext{GuildID: guildID}
	} else if err != nil {
		return fmt.Errorf("load server context: %w", err)
	}
	sc.CommandPrefix = prefix
	if err := g.store.UpsertServerContext(ctx, sc); err != nil {
		return fmt.Errorf("save server context: %w", err)
	}

	g.prefixMu.Lock()
	g.prefixes[guildID] = prefix
	g.prefixMu.Unlock()
	return nil
}

// SetChannelListening puts a channel on the guild's listen or ignore list.
func (g *Gateway) SetChannelListening(ctx context.Context, guildID, channelID string, listen bool) error {
	sc, err := g.store.GetServerContext(ctx, guildID)
	if err == memory.ErrNotFound {
		sc = &memory.ServerContext{GuildID: guildID}
	} else if err != nil {
		return fmt.Errorf("load server context: %w", err)
	}

	sc.ListeningChannels = remove(sc.ListeningChannels, channelID)
	sc.IgnoringChannels = remove(sc.IgnoringChannels, channelID)
	if listen {
		sc.ListeningChannels = append(sc.ListeningChannels, channelID)
	} else {
		sc.IgnoringChannels = append(sc.IgnoringChannels, channelID)
	}

	if err := g.store.UpsertServerContext(ctx, sc); err != nil {
		return fmt.Errorf("save server context: %w", err)
	}
	return nil
}

// Stats surfaces the store's aggregate counters.
func (g *Gateway) Stats(ctx context.Context) (*memory.Stats, error) {
	return g.store.Stats(ctx)
}

func (g *Gateway) Shutdown() error {
	g.sweeper.Stop()
	_ = g.channels.StopAll()
	if g.speech != nil {
		g.speech.Close()
	}
	if err := g.store.Close(); err != nil {
		log.Printf("[gateway] close store warning: %v", err)
	}
	log.Printf("[gateway] shutdown complete")
	return nil
}

func remove(list []string, v string) []string {
	out := list[:0]
	for _, s := range list {
		if s != v {
			out = append(out, s)
		}
	}
	return out
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
