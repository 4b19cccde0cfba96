package voice

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync/atomic"
	"time"
)

const (
	defaultConnectTimeout = 30 * time.Second
	defaultPlayTimeout    = 30 * time.Second
	defaultFrameInterval  = 20 * time.Millisecond
)

type playRequest struct {
	ctx       context.Context
	channelID string
	path      string
	done      chan error
}

// guildPlayer is the supervising task for one guild. It owns the guild's
// voice connection and serializes playback: the busy flag marks a request in
// flight from submit until its playback finishes, so a second request is
// rejected instead of interleaving.
type guildPlayer struct {
	guildID        string
	joiner         Joiner
	conn           Connection
	requests       chan playRequest
	stop           chan struct{}
	busy           atomic.Bool
	connectTimeout time.Duration
	playTimeout    time.Duration
	frameInterval  time.Duration
}

func newGuildPlayer(guildID string, joiner Joiner, connectTimeout, playTimeout, frameInterval time.Duration) *guildPlayer {
	g := &guildPlayer{
		guildID:        guildID,
		joiner:         joiner,
		requests:       make(chan playRequest),
		stop:           make(chan struct{}),
		connectTimeout: connectTimeout,
		playTimeout:    playTimeout,
		frameInterval:  frameInterval,
	}
	go g.run()
	return g
}

// submit hands a playback request to the actor without queueing. The busy
// flag is the in-flight marker; channel readiness alone cannot be trusted
// while the actor is starting up or looping between playbacks.
func (g *guildPlayer) submit(req playRequest) error {
	if !g.busy.CompareAndSwap(false, true) {
		return ErrPlaybackBusy
	}
	defer g.busy.Store(false)

	select {
	case g.requests <- req:
		return <-req.done
	case <-g.stop:
		return fmt.Errorf("player for guild %s closed", g.guildID)
	}
}

func (g *guildPlayer) run() {
	for {
		select {
		case req := <-g.requests:
			req.done <- g.play(req)
		case <-g.stop:
			g.teardown()
			return
		}
	}
}

func (g *guildPlayer) close() {
	close(g.stop)
}

func (g *guildPlayer) teardown() {
	if g.conn != nil {
		_ = g.conn.Disconnect()
		g.conn = nil
	}
}

func (g *guildPlayer) play(req playRequest) error {
	if g.conn == nil {
		connectCtx, cancel := context.WithTimeout(req.ctx, g.connectTimeout)
		conn, err := g.joiner.JoinVoice(connectCtx, g.guildID, req.channelID)
		cancel()
		if err != nil {
			if connectCtx.Err() == context.DeadlineExceeded {
				return fmt.Errorf("%w: %v", ErrConnectTimeout, err)
			}
			return fmt.Errorf("join voice: %w", err)
		}
		g.conn = conn
	}

	if err := g.stream(req.ctx, req.path); err != nil {
		// Do not leave a half-initialized connection behind a timeout.
		g.teardown()
		return err
	}
	return nil
}

func (g *guildPlayer) stream(ctx context.Context, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open audio: %w", err)
	}
	packets, err := opusPackets(f)
	_ = f.Close()
	if err != nil {
		return fmt.Errorf("demux audio: %w", err)
	}

	if err := g.conn.Speaking(true); err != nil {
		return fmt.Errorf("speaking on: %w", err)
	}
	defer func() {
		if err := g.conn.Speaking(false); err != nil {
			log.Printf("[voice] %s speaking off: %v", g.guildID, err)
		}
	}()

	deadline := time.NewTimer(g.playTimeout)
	defer deadline.Stop()
	ticker := time.NewTicker(g.frameInterval)
	defer ticker.Stop()

	for _, pkt := range packets {
		select {
		case <-ticker.C:
			if err := g.conn.OpusSend(pkt); err != nil {
				return fmt.Errorf("send frame: %w", err)
			}
		case <-deadline.C:
			return ErrPlaybackTimeout
		case <-ctx.Done():
			return fmt.Errorf("playback: %w", ctx.Err())
		}
	}
	return nil
}
