package channel

import (
	"context"

	"github.com/sonantlabs/sonant/internal/bus"
	"github.com/sonantlabs/sonant/internal/voice"
)

// Channel is one platform transport. Start blocks until the transport is
// ready to receive; delivery happens through the bus.
type Channel interface {
	Name() string
	Start(ctx context.Context) error
	Stop() error
	Send(msg bus.OutboundMessage) error
}

// VoiceJoiner is implemented by transports that can join live audio
// channels.
type VoiceJoiner interface {
	JoinVoice(ctx context.Context, guildID, channelID string) (voice.Connection, error)
}

// VoiceChannelLocator resolves which voice channel a user currently
// occupies, so playback can follow the requester.
type VoiceChannelLocator interface {
	UserVoiceChannel(guildID, userID string) string
}

// BaseChannel carries the pieces every transport shares.
type BaseChannel struct {
	name string
	bus  *bus.MessageBus
}

func NewBaseChannel(name string, b *bus.MessageBus) BaseChannel {
	return BaseChannel{name: name, bus: b}
}

func (c *BaseChannel) Name() string { return c.name }

func (c *BaseChannel) Publish(msg bus.InboundMessage) {
	msg.Channel = c.name
	c.bus.Inbound <- msg
}
