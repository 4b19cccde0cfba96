// Package relevance scores how warranted an automatic reply is for one
// inbound message. Scoring is pure so it stays testable independent of
// storage.
package relevance

import "time"

// RecentActivityWindow is how fresh channel activity must be to add the
// active-channel bonus.
const RecentActivityWindow = 300_000 * time.Millisecond

const shortMessageLen = 10

// Signals are the inputs the scorer combines. Callers derive them from the
// message and the stored user/channel state.
type Signals struct {
	IsMention         bool
	IsReply           bool
	HasQuestion       bool
	PriorInteractions int       // user's interactionCount before this message
	LastActivity      time.Time // channel's last activity before this message
	ContentLength     int       // cleaned content length in characters
	SharedTopics      int       // tags shared with user or channel recent topics
	Now               time.Time
}

// Score combines weighted signals and clamps the result to [0,1].
func Score(s Signals) float64 {
	score := 0.5

	if s.IsMention {
		score += 0.3
	}
	if s.IsReply {
		score += 0.2
	}
	if s.HasQuestion {
		score += 0.2
	}
	if s.PriorInteractions > 0 {
		score += 0.1
	}
	if !s.LastActivity.IsZero() && s.Now.Sub(s.LastActivity) <= RecentActivityWindow {
		score += 0.1
	}
	if s.ContentLength < shortMessageLen {
		score -= 0.2
	}
	score += 0.1 * float64(s.SharedTopics)

	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}
