// Package tts turns reply text into audio through an external synthesis
// provider.
package tts

import (
	"context"
	"fmt"
)

// Request is one synthesis call. Zero-valued fields fall back to the
// provider's configured defaults.
type Request struct {
	Text   string
	Voice  string
	Speed  float64
	Format string // "opus", "mp3", "wav"
}

// Result is a successful synthesis.
type Result struct {
	Audio  []byte
	Format string
}

// SynthesisError is the structured failure for network, timeout, and non-2xx
// outcomes. Playback treats it as non-fatal: the text reply was already
// delivered.
type SynthesisError struct {
	Reason  string
	Timeout bool
}

func (e *SynthesisError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("tts: timeout: %s", e.Reason)
	}
	return fmt.Sprintf("tts: %s", e.Reason)
}

// Synthesizer is the TTS provider contract.
type Synthesizer interface {
	Synthesize(ctx context.Context, req Request) (*Result, error)
}
