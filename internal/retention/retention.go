// Package retention runs the scheduled sweeps that keep the store and the
// temp audio directory bounded.
package retention

import (
	"context"
	"fmt"
	"log"
	"time"

	rcron "github.com/robfig/cron/v3"
	"github.com/sonantlabs/sonant/internal/config"
	"github.com/sonantlabs/sonant/internal/memory"
)

// TempSweeper is the audio side of the sweep. Satisfied by *voice.Pipeline.
type TempSweeper interface {
	SweepTemp(maxAge time.Duration) (int, error)
}

type Sweeper struct {
	cfg     config.RetentionConfig
	store   memory.Store
	audio   TempSweeper
	cron    *rcron.Cron
	started bool
}

func NewSweeper(cfg config.RetentionConfig, store memory.Store, audio TempSweeper) *Sweeper {
	return &Sweeper{
		cfg:   cfg,
		store: store,
		audio: audio,
		cron:  rcron.New(rcron.WithSeconds()),
	}
}

// Start registers the sweep schedules and begins running them. Returns an
// error if either cron spec fails to parse.
func (s *Sweeper) Start() error {
	if _, err := s.cron.AddFunc(s.cfg.ConversationSweepSpec, s.sweepConversations); err != nil {
		return fmt.Errorf("register conversation sweep %q: %w", s.cfg.ConversationSweepSpec, err)
	}
	if s.audio != nil {
		if _, err := s.cron.AddFunc(s.cfg.TempAudioSweepSpec, s.sweepTempAudio); err != nil {
			return fmt.Errorf("register temp audio sweep %q: %w", s.cfg.TempAudioSweepSpec, err)
		}
	}
	s.cron.Start()
	s.started = true
	log.Printf("[retention] sweeps scheduled (conversation %q, temp audio %q)",
		s.cfg.ConversationSweepSpec, s.cfg.TempAudioSweepSpec)
	return nil
}

func (s *Sweeper) Stop() {
	if !s.started {
		return
	}
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.started = false
}

func (s *Sweeper) sweepConversations() {
	cutoff := time.Now().AddDate(0, 0, -s.cfg.ConversationMaxAgeDays)
	n, err := s.store.DeleteMessagesBefore(context.Background(), cutoff)
	if err != nil {
		log.Printf("[retention] conversation sweep failed: %v", err)
		return
	}
	if n > 0 {
		log.Printf("[retention] pruned %d conversation rows older than %s", n, cutoff.Format(time.RFC3339))
	}
}

func (s *Sweeper) sweepTempAudio() {
	maxAge := time.Duration(s.cfg.TempAudioMaxAgeMin) * time.Minute
	n, err := s.audio.SweepTemp(maxAge)
	if err != nil {
		log.Printf("[retention] temp audio sweep failed: %v", err)
		return
	}
	if n > 0 {
		log.Printf("[retention] removed %d stale temp audio files", n)
	}
}

// RunConversationSweep triggers one conversation sweep immediately, outside
// the schedule. Used by the status command and tests.
func (s *Sweeper) RunConversationSweep(ctx context.Context) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -s.cfg.ConversationMaxAgeDays)
	return s.store.DeleteMessagesBefore(ctx, cutoff)
}
