package memory

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemStore is the in-memory Store used by tests and by deployments without a
// database path. Same semantics as SQLiteStore, no durability.
type MemStore struct {
	mu        sync.RWMutex
	users     map[string]UserProfile
	channels  map[string]ChannelContext
	servers   map[string]ServerContext
	log       []ConversationMessage
	artifacts map[string]Artifact
	nextID    int64
}

func NewMemStore() *MemStore {
	return &MemStore{
		users:     make(map[string]UserProfile),
		channels:  make(map[string]ChannelContext),
		servers:   make(map[string]ServerContext),
		artifacts: make(map[string]Artifact),
	}
}

func (s *MemStore) Close() error { return nil }

func (s *MemStore) GetUserProfile(_ context.Context, userID string) (*UserProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.users[userID]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

func (s *MemStore) UpsertUserProfile(_ context.Context, p *UserProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[p.UserID] = *p
	return nil
}

func (s *MemStore) DeleteUserProfile(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.users, userID)
	return nil
}

func (s *MemStore) GetChannelContext(_ context.Context, channelID string) (*ChannelContext, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.channels[channelID]
	if !ok {
		return nil, ErrNotFound
	}
	return &c, nil
}

func (s *MemStore) UpsertChannelContext(_ context.Context, c *ChannelContext) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.channels[c.ChannelID] = *c
	return nil
}

func (s *MemStore) GetServerContext(_ context.Context, guildID string) (*ServerContext, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sc, ok := s.servers[guildID]
	if !ok {
		return nil, ErrNotFound
	}
	return &sc, nil
}

func (s *MemStore) UpsertServerContext(_ context.Context, sc *ServerContext) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.servers[sc.GuildID] = *sc
	return nil
}

func (s *MemStore) AppendMessage(_ context.Context, m *ConversationMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	m.ID = s.nextID
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	s.log = append(s.log, *m)
	return nil
}

func (s *MemStore) RecentMessages(_ context.Context, channelID string, limit int) ([]ConversationMessage, error) {
	if limit <= 0 {
		limit = 20
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var msgs []ConversationMessage
	for _, m := range s.log {
		if m.ChannelID == channelID {
			msgs = append(msgs, m)
		}
	}
	sort.SliceStable(msgs, func(i, j int) bool {
		if msgs[i].CreatedAt.Equal(msgs[j].CreatedAt) {
			return msgs[i].ID > msgs[j].ID
		}
		return msgs[i].CreatedAt.After(msgs[j].CreatedAt)
	})
	if len(msgs) > limit {
		msgs = msgs[:limit]
	}
	return msgs, nil
}

func (s *MemStore) DeleteMessagesBefore(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.log[:0]
	var removed int64
	for _, m := range s.log {
		if m.CreatedAt.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, m)
	}
	s.log = kept
	return removed, nil
}

func (s *MemStore) Stats(_ context.Context) (*Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := &Stats{MessagesByChannel: make(map[string]int64)}
	for _, m := range s.log {
		st.TotalMessages++
		if m.Role == RoleAssistant {
			st.AssistantMessages++
		} else {
			st.UserMessages++
		}
		st.MessagesByChannel[m.ChannelID]++
	}
	st.KnownUsers = int64(len(s.users))
	return st, nil
}

func (s *MemStore) SaveArtifact(_ context.Context, a *Artifact) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	s.artifacts[a.ID] = *a
	return nil
}

func (s *MemStore) GetArtifact(_ context.Context, id string) (*Artifact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.artifacts[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &a, nil
}

func (s *MemStore) DeleteArtifact(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.artifacts, id)
	return nil
}

func (s *MemStore) ListArtifacts(_ context.Context) ([]Artifact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Artifact, 0, len(s.artifacts))
	for _, a := range s.artifacts {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}
