package voice

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sonantlabs/sonant/internal/memory"
	"github.com/sonantlabs/sonant/internal/tts"
)

// Options tune the pipeline. Zero values use production defaults.
type Options struct {
	TempDir        string
	SaveDir        string
	VoiceChannels  map[string]string // guild id -> default voice channel id
	ConnectTimeout time.Duration
	PlayTimeout    time.Duration
	FrameInterval  time.Duration
}

// Pipeline drives synthesis and per-guild serialized playback. Synthesis
// failures are structured results; playback failures never affect the text
// reply that was already sent.
type Pipeline struct {
	synth  tts.Synthesizer
	joiner Joiner
	store  memory.Store
	opts   Options

	mu     sync.Mutex
	guilds map[string]*guildPlayer
}

func NewPipeline(synth tts.Synthesizer, joiner Joiner, store memory.Store, opts Options) *Pipeline {
	if opts.TempDir == "" {
		opts.TempDir = filepath.Join(os.TempDir(), "sonant-audio")
	}
	if opts.SaveDir == "" {
		opts.SaveDir = filepath.Join(opts.TempDir, "saved")
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = defaultConnectTimeout
	}
	if opts.PlayTimeout <= 0 {
		opts.PlayTimeout = defaultPlayTimeout
	}
	if opts.FrameInterval <= 0 {
		opts.FrameInterval = defaultFrameInterval
	}
	return &Pipeline{
		synth:  synth,
		joiner: joiner,
		store:  store,
		opts:   opts,
		guilds: make(map[string]*guildPlayer),
	}
}

func (p *Pipeline) player(guildID string) *guildPlayer {
	p.mu.Lock()
	defer p.mu.Unlock()
	gp, ok := p.guilds[guildID]
	if !ok {
		gp = newGuildPlayer(guildID, p.joiner,
			p.opts.ConnectTimeout, p.opts.PlayTimeout, p.opts.FrameInterval)
		p.guilds[guildID] = gp
	}
	return gp
}

// Speak synthesizes text and plays it on the guild's voice connection. The
// temporary audio artifact is removed after use. channelID may be empty, in
// which case the guild's configured default voice channel is used.
func (p *Pipeline) Speak(ctx context.Context, guildID, channelID, text string) error {
	if channelID == "" {
		channelID = p.opts.VoiceChannels[guildID]
	}
	if channelID == "" {
		return ErrNoVoiceChannel
	}

	res, err := p.synth.Synthesize(ctx, tts.Request{Text: text})
	if err != nil {
		return err
	}

	path, err := p.writeTemp(res)
	if err != nil {
		return err
	}
	defer func() {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			log.Printf("[voice] remove temp %s: %v", path, err)
		}
	}()

	req := playRequest{ctx: ctx, channelID: channelID, path: path, done: make(chan error, 1)}
	return p.player(guildID).submit(req)
}

func (p *Pipeline) writeTemp(res *tts.Result) (string, error) {
	if err := os.MkdirAll(p.opts.TempDir, 0755); err != nil {
		return "", fmt.Errorf("create temp dir: %w", err)
	}
	path := filepath.Join(p.opts.TempDir, uuid.NewString()+"."+extFor(res.Format))
	if err := os.WriteFile(path, res.Audio, 0644); err != nil {
		return "", fmt.Errorf("write temp audio: %w", err)
	}
	return path, nil
}

// Save synthesizes text into a permanently tracked artifact.
func (p *Pipeline) Save(ctx context.Context, text string) (*memory.Artifact, error) {
	res, err := p.synth.Synthesize(ctx, tts.Request{Text: text})
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(p.opts.SaveDir, 0755); err != nil {
		return nil, fmt.Errorf("create save dir: %w", err)
	}
	id := uuid.NewString()
	path := filepath.Join(p.opts.SaveDir, id+"."+extFor(res.Format))
	if err := os.WriteFile(path, res.Audio, 0644); err != nil {
		return nil, fmt.Errorf("write artifact: %w", err)
	}

	a := &memory.Artifact{
		ID:        id,
		Path:      path,
		Format:    res.Format,
		Size:      int64(len(res.Audio)),
		Text:      text,
		CreatedAt: time.Now(),
	}
	if err := p.store.SaveArtifact(ctx, a); err != nil {
		_ = os.Remove(path)
		return nil, err
	}
	return a, nil
}

// DeleteArtifact removes a saved artifact and its file.
func (p *Pipeline) DeleteArtifact(ctx context.Context, id string) error {
	a, err := p.store.GetArtifact(ctx, id)
	if err != nil {
		return err
	}
	if err := os.Remove(a.Path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove artifact file: %w", err)
	}
	return p.store.DeleteArtifact(ctx, id)
}

// SweepTemp deletes temporary audio files older than maxAge, covering files
// orphaned by crashes between synthesis and cleanup.
func (p *Pipeline) SweepTemp(maxAge time.Duration) (int, error) {
	entries, err := os.ReadDir(p.opts.TempDir)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read temp dir: %w", err)
	}

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(p.opts.TempDir, e.Name())); err == nil {
			removed++
		}
	}
	return removed, nil
}

// Close disconnects all guild players.
func (p *Pipeline) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, gp := range p.guilds {
		gp.close()
	}
	p.guilds = make(map[string]*guildPlayer)
}

func extFor(format string) string {
	switch format {
	case "opus":
		return "ogg"
	case "":
		return "bin"
	default:
		return format
	}
}
