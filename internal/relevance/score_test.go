package relevance

import (
	"testing"
	"time"
)

func TestScoreBase(t *testing.T) {
	s := Signals{ContentLength: 20, Now: time.Now()}
	if got := Score(s); got != 0.5 {
		t.Errorf("base score = %v, want 0.5", got)
	}
}

func TestScoreSignals(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name string
		sig  Signals
		want float64
	}{
		{"mention", Signals{IsMention: true, ContentLength: 20, Now: now}, 0.8},
		{"reply", Signals{IsReply: true, ContentLength: 20, Now: now}, 0.7},
		{"question", Signals{HasQuestion: true, ContentLength: 20, Now: now}, 0.7},
		{"returning user", Signals{PriorInteractions: 3, ContentLength: 20, Now: now}, 0.6},
		{"active channel", Signals{LastActivity: now.Add(-time.Minute), ContentLength: 20, Now: now}, 0.6},
		{"stale channel", Signals{LastActivity: now.Add(-time.Hour), ContentLength: 20, Now: now}, 0.5},
		{"short message", Signals{ContentLength: 5, Now: now}, 0.3},
		{"shared topics", Signals{SharedTopics: 2, ContentLength: 20, Now: now}, 0.7},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Score(tt.sig)
			if diff := got - tt.want; diff > 1e-9 || diff < -1e-9 {
				t.Errorf("Score = %v, want %v", got, tt.want)
			}
		})
	}
}

// Extreme additive combinations must stay inside [0,1].
func TestScoreClamped(t *testing.T) {
	now := time.Now()
	extremes := []Signals{
		{IsMention: true, IsReply: true, HasQuestion: true, PriorInteractions: 100,
			LastActivity: now, SharedTopics: 50, ContentLength: 500, Now: now},
		{ContentLength: 0, Now: now},
		{SharedTopics: -3, ContentLength: 0, Now: now},
	}
	for i, sig := range extremes {
		got := Score(sig)
		if got < 0 || got > 1 {
			t.Errorf("case %d: Score = %v, out of [0,1]", i, got)
		}
	}
}

// First-time question: base 0.5 + question 0.2, no history or activity bonus.
func TestScoreFirstInteractionQuestion(t *testing.T) {
	got := Score(Signals{
		HasQuestion:   true,
		ContentLength: len("hello, can you help me with javascript?"),
		Now:           time.Now(),
	})
	if got < 0.7 {
		t.Errorf("Score = %v, want >= 0.7", got)
	}
}
