package memory

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by point lookups when no row exists for the key.
var ErrNotFound = errors.New("memory: not found")

// Store is the persistence contract for the long-lived context entities and
// the conversation log. Profiles, channels, and servers are upserted by key,
// never duplicated; the conversation log is append-only.
//
// Implementations: SQLiteStore for production, MemStore for tests.
type Store interface {
	GetUserProfile(ctx context.Context, userID string) (*UserProfile, error)
	UpsertUserProfile(ctx context.Context, p *UserProfile) error
	DeleteUserProfile(ctx context.Context, userID string) error

	GetChannelContext(ctx context.Context, channelID string) (*ChannelContext, error)
	UpsertChannelContext(ctx context.Context, c *ChannelContext) error

	GetServerContext(ctx context.Context, guildID string) (*ServerContext, error)
	UpsertServerContext(ctx context.Context, s *ServerContext) error

	// AppendMessage adds one conversation log row and fills in its ID.
	AppendMessage(ctx context.Context, m *ConversationMessage) error
	// RecentMessages returns at most limit rows for the channel, most recent
	// first. Snapshot-at-call semantics under concurrent appends.
	RecentMessages(ctx context.Context, channelID string, limit int) ([]ConversationMessage, error)
	// DeleteMessagesBefore bulk-deletes log rows older than cutoff and
	// reports how many were removed.
	DeleteMessagesBefore(ctx context.Context, cutoff time.Time) (int64, error)

	Stats(ctx context.Context) (*Stats, error)

	SaveArtifact(ctx context.Context, a *Artifact) error
	GetArtifact(ctx context.Context, id string) (*Artifact, error)
	DeleteArtifact(ctx context.Context, id string) error
	ListArtifacts(ctx context.Context) ([]Artifact, error)

	Close() error
}
