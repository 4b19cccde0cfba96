package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore is the relational Store backend.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.configure(); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) configure() error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	}
	for _, p := range pragmas {
		if _, err := s.db.Exec(p); err != nil {
			return fmt.Errorf("sqlite pragma %q: %w", p, err)
		}
	}
	return nil
}

func (s *SQLiteStore) initSchema() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS user_profiles (
			user_id TEXT PRIMARY KEY,
			username TEXT NOT NULL DEFAULT '',
			interests TEXT NOT NULL DEFAULT '[]',
			traits TEXT NOT NULL DEFAULT '[]',
			recent_topics TEXT NOT NULL DEFAULT '[]',
			interaction_count INTEGER NOT NULL DEFAULT 0,
			last_seen INTEGER NOT NULL DEFAULT 0,
			notes TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS channel_contexts (
			channel_id TEXT PRIMARY KEY,
			name TEXT NOT NULL DEFAULT '',
			type TEXT NOT NULL DEFAULT 'text',
			recent_topics TEXT NOT NULL DEFAULT '[]',
			active_users TEXT NOT NULL DEFAULT '[]',
			tone TEXT NOT NULL DEFAULT 'casual',
			last_activity INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS server_contexts (
			guild_id TEXT PRIMARY KEY,
			name TEXT NOT NULL DEFAULT '',
			owner_id TEXT NOT NULL DEFAULT '',
			member_count INTEGER NOT NULL DEFAULT 0,
			recent_events TEXT NOT NULL DEFAULT '[]',
			listening_channels TEXT NOT NULL DEFAULT '[]',
			ignoring_channels TEXT NOT NULL DEFAULT '[]',
			command_prefix TEXT NOT NULL DEFAULT '',
			last_activity INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS conversation_log (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			channel_id TEXT NOT NULL,
			user_id TEXT,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			author TEXT NOT NULL DEFAULT '',
			relevance REAL NOT NULL DEFAULT 0,
			created_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_log_channel ON conversation_log(channel_id, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_log_created ON conversation_log(created_at)`,
		`CREATE TABLE IF NOT EXISTS artifacts (
			id TEXT PRIMARY KEY,
			path TEXT NOT NULL,
			format TEXT NOT NULL DEFAULT '',
			size INTEGER NOT NULL DEFAULT 0,
			text TEXT NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL
		)`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func encodeList(list []string) string {
	if len(list) == 0 {
		return "[]"
	}
	data, _ := json.Marshal(list)
	return string(data)
}

func decodeList(raw string) []string {
	if raw == "" || raw == "[]" {
		return nil
	}
	var list []string
	if err := json.Unmarshal([]byte(raw), &list); err != nil {
		return nil
	}
	return list
}

func msToTime(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}

func timeToMs(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func (s *SQLiteStore) GetUserProfile(ctx context.Context, userID string) (*UserProfile, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT user_id, username, interests, traits, recent_topics,
		       interaction_count, last_seen, notes
		FROM user_profiles WHERE user_id = ?`, userID)

	var p UserProfile
	var interests, traits, topics string
	var lastSeen int64
	err := row.Scan(&p.UserID, &p.Username, &interests, &traits, &topics,
		&p.InteractionCount, &lastSeen, &p.Notes)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user profile: %w", err)
	}
	p.Interests = decodeList(interests)
	p.Traits = decodeList(traits)
	p.RecentTopics = decodeList(topics)
	p.LastSeen = msToTime(lastSeen)
	return &p, nil
}

func (s *SQLiteStore) UpsertUserProfile(ctx context.Context, p *UserProfile) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_profiles (user_id, username, interests, traits, recent_topics,
			interaction_count, last_seen, notes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			username = excluded.username,
			interests = excluded.interests,
			traits = excluded.traits,
			recent_topics = excluded.recent_topics,
			interaction_count = excluded.interaction_count,
			last_seen = excluded.last_seen,
			notes = excluded.notes`,
		p.UserID, p.Username, encodeList(p.Interests), encodeList(p.Traits),
		encodeList(p.RecentTopics), p.InteractionCount, timeToMs(p.LastSeen), p.Notes)
	if err != nil {
		return fmt.Errorf("upsert user profile: %w", err)
	}
	return nil
}

func (s *SQLiteStore) DeleteUserProfile(ctx context.Context, userID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM user_profiles WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("delete user profile: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetChannelContext(ctx context.Context, channelID string) (*ChannelContext, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT channel_id, name, type, recent_topics, active_users, tone, last_activity
		FROM channel_contexts WHERE channel_id = ?`, channelID)

	var c ChannelContext
	var topics, users, tone string
	var lastActivity int64
	err := row.Scan(&c.ChannelID, &c.Name, &c.Type, &topics, &users, &tone, &lastActivity)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get channel context: %w", err)
	}
	c.RecentTopics = decodeList(topics)
	c.ActiveUsers = decodeList(users)
	c.Tone = Tone(tone)
	c.LastActivity = msToTime(lastActivity)
	return &c, nil
}

func (s *SQLiteStore) UpsertChannelContext(ctx context.Context, c *ChannelContext) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO channel_contexts (channel_id, name, type, recent_topics, active_users, tone, last_activity)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(channel_id) DO UPDATE SET
			name = excluded.name,
			type = excluded.type,
			recent_topics = excluded.recent_topics,
			active_users = excluded.active_users,
			tone = excluded.tone,
			last_activity = excluded.last_activity`,
		c.ChannelID, c.Name, c.Type, encodeList(c.RecentTopics),
		encodeList(c.ActiveUsers), string(c.Tone), timeToMs(c.LastActivity))
	if err != nil {
		return fmt.Errorf("upsert channel context: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetServerContext(ctx context.Context, guildID string) (*ServerContext, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT guild_id, name, owner_id, member_count, recent_events,
		       listening_channels, ignoring_channels, command_prefix, last_activity
		FROM server_contexts WHERE guild_id = ?`, guildID)

	var sc ServerContext
	var events, listening, ignoring string
	var lastActivity int64
	err := row.Scan(&sc.GuildID, &sc.Name, &sc.OwnerID, &sc.MemberCount, &events,
		&listening, &ignoring, &sc.CommandPrefix, &lastActivity)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get server context: %w", err)
	}
	sc.RecentEvents = decodeList(events)
	sc.ListeningChannels = decodeList(listening)
	sc.IgnoringChannels = decodeList(ignoring)
	sc.LastActivity = msToTime(lastActivity)
	return &sc, nil
}

func (s *SQLiteStore) UpsertServerContext(ctx context.Context, sc *ServerContext) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO server_contexts (guild_id, name, owner_id, member_count, recent_events,
			listening_channels, ignoring_channels, command_prefix, last_activity)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(guild_id) DO UPDATE SET
			name = excluded.name,
			owner_id = excluded.owner_id,
			member_count = excluded.member_count,
			recent_events = excluded.recent_events,
			listening_channels = excluded.listening_channels,
			ignoring_channels = excluded.ignoring_channels,
			command_prefix = excluded.command_prefix,
			last_activity = excluded.last_activity`,
		sc.GuildID, sc.Name, sc.OwnerID, sc.MemberCount, encodeList(sc.RecentEvents),
		encodeList(sc.ListeningChannels), encodeList(sc.IgnoringChannels),
		sc.CommandPrefix, timeToMs(sc.LastActivity))
	if err != nil {
		return fmt.Errorf("upsert server context: %w", err)
	}
	return nil
}

func (s *SQLiteStore) AppendMessage(ctx context.Context, m *ConversationMessage) error {
	var userID any
	if m.UserID != "" {
		userID = m.UserID
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO conversation_log (channel_id, user_id, role, content, author, relevance, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		m.ChannelID, userID, string(m.Role), m.Content, m.Author, m.Relevance, m.CreatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("append message: %w", err)
	}
	if id, err := res.LastInsertId(); err == nil {
		m.ID = id
	}
	return nil
}

func (s *SQLiteStore) RecentMessages(ctx context.Context, channelID string, limit int) ([]ConversationMessage, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, channel_id, user_id, role, content, author, relevance, created_at
		FROM conversation_log
		WHERE channel_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?`, channelID, limit)
	if err != nil {
		return nil, fmt.Errorf("recent messages: %w", err)
	}
	defer rows.Close()

	var msgs []ConversationMessage
	for rows.Next() {
		var m ConversationMessage
		var userID sql.NullString
		var role string
		var createdAt int64
		if err := rows.Scan(&m.ID, &m.ChannelID, &userID, &role, &m.Content,
			&m.Author, &m.Relevance, &createdAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.UserID = userID.String
		m.Role = Role(role)
		m.CreatedAt = msToTime(createdAt)
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

func (s *SQLiteStore) DeleteMessagesBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM conversation_log WHERE created_at < ?`, cutoff.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("delete messages before: %w", err)
	}
	return res.RowsAffected()
}

func (s *SQLiteStore) Stats(ctx context.Context) (*Stats, error) {
	st := &Stats{MessagesByChannel: make(map[string]int64)}

	row := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN role = 'user' THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN role = 'assistant' THEN 1 ELSE 0 END), 0)
		FROM conversation_log`)
	if err := row.Scan(&st.TotalMessages, &st.UserMessages, &st.AssistantMessages); err != nil {
		return nil, fmt.Errorf("stats totals: %w", err)
	}

	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM user_profiles`).Scan(&st.KnownUsers); err != nil {
		return nil, fmt.Errorf("stats users: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT channel_id, COUNT(*) FROM conversation_log GROUP BY channel_id`)
	if err != nil {
		return nil, fmt.Errorf("stats by channel: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var ch string
		var n int64
		if err := rows.Scan(&ch, &n); err != nil {
			return nil, fmt.Errorf("scan channel count: %w", err)
		}
		st.MessagesByChannel[ch] = n
	}
	return st, rows.Err()
}

func (s *SQLiteStore) SaveArtifact(ctx context.Context, a *Artifact) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO artifacts (id, path, format, size, text, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			path = excluded.path,
			format = excluded.format,
			size = excluded.size,
			text = excluded.text`,
		a.ID, a.Path, a.Format, a.Size, a.Text, a.CreatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("save artifact: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetArtifact(ctx context.Context, id string) (*Artifact, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, path, format, size, text, created_at FROM artifacts WHERE id = ?`, id)
	var a Artifact
	var createdAt int64
	err := row.Scan(&a.ID, &a.Path, &a.Format, &a.Size, &a.Text, &createdAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get artifact: %w", err)
	}
	a.CreatedAt = msToTime(createdAt)
	return &a, nil
}

func (s *SQLiteStore) DeleteArtifact(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM artifacts WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete artifact: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListArtifacts(ctx context.Context) ([]Artifact, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, path, format, size, text, created_at FROM artifacts ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list artifacts: %w", err)
	}
	defer rows.Close()

	var out []Artifact
	for rows.Next() {
		var a Artifact
		var createdAt int64
		if err := rows.Scan(&a.ID, &a.Path, &a.Format, &a.Size, &a.Text, &createdAt); err != nil {
			return nil, fmt.Errorf("scan artifact: %w", err)
		}
		a.CreatedAt = msToTime(createdAt)
		out = append(out, a)
	}
	return out, rows.Err()
}
