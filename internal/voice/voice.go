// Package voice renders synthesized speech into live audio channels. Each
// guild owns at most one connection and one playback at a time; requests for
// a busy guild are rejected rather than interleaved.
package voice

import (
	"context"
	"errors"
)

var (
	// ErrPlaybackBusy is returned when a playback is already in flight for
	// the guild.
	ErrPlaybackBusy = errors.New("voice: playback already in flight for guild")
	// ErrConnectTimeout is returned when joining the voice channel exceeded
	// the connect timeout.
	ErrConnectTimeout = errors.New("voice: connect timed out")
	// ErrPlaybackTimeout is returned when playback did not reach idle within
	// the playback timeout.
	ErrPlaybackTimeout = errors.New("voice: playback timed out")
	// ErrNoVoiceChannel is returned when no target voice channel is known
	// for the guild.
	ErrNoVoiceChannel = errors.New("voice: no voice channel for guild")
)

// Connection is the narrow contract a live voice connection satisfies. The
// platform adapter wraps the real gateway connection behind it.
type Connection interface {
	Speaking(bool) error
	OpusSend(frame []byte) error
	Disconnect() error
}

// Joiner creates voice connections. Join must respect ctx cancellation.
type Joiner interface {
	JoinVoice(ctx context.Context, guildID, channelID string) (Connection, error)
}
