package responder

import "math/rand"

// Fallbacks is the fixed pool of canned replies used when the completion
// provider fails. Fallbacks are sent to the user but not logged as assistant
// turns.
var Fallbacks = []string{
	"Hmm, I lost my train of thought there. Mind saying that again?",
	"Sorry, my brain buffered for a second. What were we talking about?",
	"I didn't quite catch that. Give me another shot?",
	"Something glitched on my end. Try me again in a moment.",
	"My thoughts escaped me. One more time?",
}

func pickFallback(n int) int {
	return rand.Intn(n)
}
