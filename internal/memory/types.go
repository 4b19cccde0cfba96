package memory

import "time"

// Bounded-list caps. Oldest entries are evicted first when a cap is hit.
const (
	MaxInterests    = 15
	MaxTraits       = 10
	MaxUserTopics   = 20
	MaxChannelTopic = 15
	MaxActiveUsers  = 20
	MaxRecentEvents = 25
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// UserProfile is the long-lived per-user memory. Created lazily on first
// message, mutated on every subsequent one.
type UserProfile struct {
	UserID           string    `json:"userId"`
	Username         string    `json:"username"`
	Interests        []string  `json:"interests"`
	Traits           []string  `json:"traits"`
	RecentTopics     []string  `json:"recentTopics"`
	InteractionCount int       `json:"interactionCount"`
	LastSeen         time.Time `json:"lastSeen"`
	Notes            string    `json:"notes,omitempty"`
}

type Tone string

const (
	ToneCasual    Tone = "casual"
	ToneSerious   Tone = "serious"
	ToneTechnical Tone = "technical"
	ToneFun       Tone = "fun"
)

// ChannelContext is the per-channel memory.
type ChannelContext struct {
	ChannelID    string    `json:"channelId"`
	Name         string    `json:"name"`
	Type         string    `json:"type"`
	RecentTopics []string  `json:"recentTopics"`
	ActiveUsers  []string  `json:"activeUsers"`
	Tone         Tone      `json:"tone"`
	LastActivity time.Time `json:"lastActivity"`
}

// ServerContext is the per-community memory.
type ServerContext struct {
	GuildID           string    `json:"guildId"`
	Name              string    `json:"name"`
	OwnerID           string    `json:"ownerId,omitempty"`
	MemberCount       int       `json:"memberCount,omitempty"`
	RecentEvents      []string  `json:"recentEvents"` // newest first
	ListeningChannels []string  `json:"listeningChannels,omitempty"`
	IgnoringChannels  []string  `json:"ignoringChannels,omitempty"`
	CommandPrefix     string    `json:"commandPrefix,omitempty"`
	LastActivity      time.Time `json:"lastActivity"`
}

// ConversationMessage is one append-only conversation log row. UserID is
// empty iff Role is assistant.
type ConversationMessage struct {
	ID        int64     `json:"id"`
	ChannelID string    `json:"channelId"`
	UserID    string    `json:"userId,omitempty"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Author    string    `json:"author"`
	Relevance float64   `json:"relevance"`
	CreatedAt time.Time `json:"createdAt"`
}

// Stats are the count aggregates backing the status surface.
type Stats struct {
	TotalMessages     int64            `json:"totalMessages"`
	UserMessages      int64            `json:"userMessages"`
	AssistantMessages int64            `json:"assistantMessages"`
	KnownUsers        int64            `json:"knownUsers"`
	MessagesByChannel map[string]int64 `json:"messagesByChannel"`
}

// Artifact tracks a permanently saved synthesis output.
type Artifact struct {
	ID        string    `json:"id"`
	Path      string    `json:"path"`
	Format    string    `json:"format"`
	Size      int64     `json:"size"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
}

// mergeBounded appends values to list, dropping duplicates, then trims the
// oldest entries down to cap.
func mergeBounded(list []string, values []string, cap int) []string {
	for _, v := range values {
		exists := false
		for _, have := range list {
			if have == v {
				exists = true
				break
			}
		}
		if !exists {
			list = append(list, v)
		}
	}
	if len(list) > cap {
		list = list[len(list)-cap:]
	}
	return list
}

// pushEvent prepends an event to a newest-first ring, trimming to cap.
func pushEvent(events []string, event string, cap int) []string {
	events = append([]string{event}, events...)
	if len(events) > cap {
		events = events[:cap]
	}
	return events
}
