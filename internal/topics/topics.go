// Package topics extracts tagged keywords and personality traits from raw
// message text. All functions are pure; callers own deduplication when merging
// into bounded lists.
package topics

import "strings"

// One canonical keyword table per category. Tags are "<category>:<keyword>".
var keywordTables = []struct {
	category string
	keywords []string
}{
	{"tech", []string{
		"javascript", "typescript", "python", "golang", "rust", "java",
		"programming", "coding", "code", "software", "computer", "server",
		"database", "api", "linux", "docker", "ai", "bot",
	}},
	{"gaming", []string{
		"game", "gaming", "minecraft", "valorant", "league", "fortnite",
		"steam", "xbox", "playstation", "nintendo", "rpg", "fps", "speedrun",
	}},
	{"general", []string{
		"music", "movie", "film", "anime", "book", "food", "cooking",
		"travel", "sport", "work", "school", "weather", "art", "photography",
	}},
	{"emotion", []string{
		"happy", "sad", "angry", "excited", "tired", "bored", "stressed",
		"love", "hate", "fun", "amazing", "awesome", "terrible",
	}},
	{"locale", []string{
		"tokyo", "osaka", "japan", "japanese", "ramen", "sushi", "sakura",
		"karaoke", "onsen", "shibuya",
	}},
}

// Extract returns "<category>:<keyword>" tags for every table keyword present
// in text. Matching is case-insensitive substring membership; duplicates
// across calls are possible.
func Extract(text string) []string {
	lowered := strings.ToLower(text)
	var tags []string
	for _, table := range keywordTables {
		for _, kw := range table.keywords {
			if strings.Contains(lowered, kw) {
				tags = append(tags, table.category+":"+kw)
			}
		}
	}
	return tags
}

var laughterTokens = []string{"lol", "lmao", "haha", "hehe", "rofl", "xd"}
var politeTokens = []string{"please", "thank you", "thanks", "sorry", "excuse me"}
var techTraitTokens = []string{"code", "programming", "bug", "deploy", "compile", "debug"}

// DeriveTraits maps heuristic text patterns to personality traits. Additive
// only; traits are merged into the profile's capped list by the caller.
func DeriveTraits(text string) []string {
	lowered := strings.ToLower(strings.TrimSpace(text))
	var traits []string

	for _, tok := range laughterTokens {
		if strings.Contains(lowered, tok) {
			traits = append(traits, "humorous")
			break
		}
	}
	if strings.Contains(lowered, "?") && len(lowered) > 40 {
		traits = append(traits, "inquisitive")
	}
	for _, tok := range politeTokens {
		if strings.Contains(lowered, tok) {
			traits = append(traits, "polite")
			break
		}
	}
	for _, tok := range techTraitTokens {
		if strings.Contains(lowered, tok) {
			traits = append(traits, "technical")
			break
		}
	}
	return traits
}

// Dedupe removes repeated tags preserving first-seen order.
func Dedupe(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := tags[:0:0]
	for _, tag := range tags {
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}
