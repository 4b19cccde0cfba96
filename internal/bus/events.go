package bus

import "time"

// Author is the sender of an inbound platform message.
type Author struct {
	ID       string
	Username string
	Bot      bool
}

// ChannelRef identifies the channel a message arrived in.
type ChannelRef struct {
	ID   string
	Name string
	Type string // "text" or "voice"
}

// GuildRef identifies the community a message arrived in. Zero value means a
// direct message outside any community.
type GuildRef struct {
	ID   string
	Name string
}

type InboundMessage struct {
	Channel     string // transport name, e.g. "discord"
	ID          string
	Content     string
	Author      Author
	ChannelRef  ChannelRef
	Guild       GuildRef
	MentionsBot bool
	IsReply     bool
	ReplyToID   string
	CreatedAt   time.Time
}

func (m *InboundMessage) SessionKey() string {
	return m.Channel + ":" + m.ChannelRef.ID
}

// IsMention reports whether the message directly addresses the bot, either by
// mention or by replying to one of its messages.
func (m *InboundMessage) IsMention() bool {
	return m.MentionsBot || m.IsReply
}

type OutboundMessage struct {
	Channel   string
	ChannelID string
	Content   string
	ReplyToID string
}
