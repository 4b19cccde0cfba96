package memory

import (
	"strings"
	"time"
)

var greetingTokens = []string{"hello", "hi ", "hey", "good morning", "good evening", "yo "}
var farewellTokens = []string{"bye", "goodbye", "good night", "see you", "later"}
var helpTokens = []string{"help", "how do i", "how to", "can you", "stuck", "broken"}
var gratitudeTokens = []string{"thanks", "thank you", "thx", "appreciated"}

// deriveCues computes the fixed contextual cue tags for one inbound message.
// now is injected so cue derivation stays deterministic in tests.
func deriveCues(content string, isMention bool, profile *UserProfile, history []ConversationMessage, now time.Time) []string {
	var cues []string

	switch h := now.Hour(); {
	case h >= 5 && h < 12:
		cues = append(cues, "morning")
	case h >= 12 && h < 18:
		cues = append(cues, "afternoon")
	case h >= 18 && h < 23:
		cues = append(cues, "evening")
	default:
		cues = append(cues, "late-night")
	}

	if isMention {
		cues = append(cues, "direct-address")
	}

	lowered := strings.ToLower(strings.TrimSpace(content))
	padded := " " + lowered + " "
	for _, tok := range greetingTokens {
		if strings.Contains(padded, " "+strings.TrimSpace(tok)+" ") || strings.HasPrefix(lowered, strings.TrimSpace(tok)) {
			cues = append(cues, "greeting")
			break
		}
	}
	for _, tok := range farewellTokens {
		if strings.Contains(lowered, tok) {
			cues = append(cues, "farewell")
			break
		}
	}
	for _, tok := range helpTokens {
		if strings.Contains(lowered, tok) {
			cues = append(cues, "needs-help")
			break
		}
	}
	for _, tok := range gratitudeTokens {
		if strings.Contains(lowered, tok) {
			cues = append(cues, "gratitude")
			break
		}
	}
	if strings.Contains(lowered, "?") {
		cues = append(cues, "question")
	}

	if profile == nil || profile.InteractionCount == 0 {
		cues = append(cues, "first-interaction")
	}

	switch n := len(history); {
	case n == 0:
		cues = append(cues, "quiet-channel")
	case n < 10:
		cues = append(cues, "active-conversation")
	default:
		cues = append(cues, "busy-conversation")
	}

	// Same author wrote the last three turns: they are on a roll.
	if profile != nil && len(history) >= 3 {
		streak := true
		for _, m := range history[:3] {
			if m.UserID != profile.UserID {
				streak = false
				break
			}
		}
		if streak {
			cues = append(cues, "author-streak")
		}
	}

	return cues
}
