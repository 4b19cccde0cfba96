package channel

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/sonantlabs/sonant/internal/bus"
	"github.com/sonantlabs/sonant/internal/config"
	"github.com/sonantlabs/sonant/internal/voice"
)

const discordChannelName = "discord"

// DiscordSession is the slice of the discordgo session the channel uses,
// behind an interface so tests can fake the platform.
type DiscordSession interface {
	Open() error
	Close() error
	SelfID() string
	OnMessage(handler func(*discordgo.MessageCreate))
	SendMessage(channelID, content, replyToID string) error
	ChannelInfo(channelID string) (name, chType string, err error)
	UserVoiceChannel(guildID, userID string) string
	JoinVoice(guildID, channelID string) (voice.Connection, error)
}

// SessionFactory creates DiscordSession instances (allows mocking).
type SessionFactory func(token string) (DiscordSession, error)

var defaultSessionFactory SessionFactory = func(token string) (DiscordSession, error) {
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, err
	}
	s.Identify.Intents = discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildVoiceStates |
		discordgo.IntentsMessageContent
	return &dgSession{s: s}, nil
}

// dgSession adapts *discordgo.Session to DiscordSession.
type dgSession struct {
	s *discordgo.Session
}

func (w *dgSession) Open() error  { return w.s.Open() }
func (w *dgSession) Close() error { return w.s.Close() }

func (w *dgSession) SelfID() string {
	if w.s.State != nil && w.s.State.User != nil {
		return w.s.State.User.ID
	}
	return ""
}

func (w *dgSession) OnMessage(handler func(*discordgo.MessageCreate)) {
	w.s.AddHandler(func(_ *discordgo.Session, m *discordgo.MessageCreate) {
		handler(m)
	})
}

func (w *dgSession) SendMessage(channelID, content, replyToID string) error {
	if replyToID != "" {
		_, err := w.s.ChannelMessageSendReply(channelID, content, &discordgo.MessageReference{
			MessageID: replyToID,
			ChannelID: channelID,
		})
		return err
	}
	_, err := w.s.ChannelMessageSend(channelID, content)
	return err
}

func (w *dgSession) ChannelInfo(channelID string) (string, string, error) {
	ch, err := w.s.State.Channel(channelID)
	if err != nil {
		ch, err = w.s.Channel(channelID)
		if err != nil {
			return "", "", err
		}
	}
	chType := "text"
	if ch.Type == discordgo.ChannelTypeGuildVoice {
		chType = "voice"
	}
	return ch.Name, chType, nil
}

// UserVoiceChannel reports the voice channel the user currently occupies in
// the guild, or empty if they are not in voice.
func (w *dgSession) UserVoiceChannel(guildID, userID string) string {
	vs, err := w.s.State.VoiceState(guildID, userID)
	if err != nil || vs == nil {
		return ""
	}
	return vs.ChannelID
}

func (w *dgSession) JoinVoice(guildID, channelID string) (voice.Connection, error) {
	vc, err := w.s.ChannelVoiceJoin(guildID, channelID, false, true)
	if err != nil {
		return nil, err
	}
	return &dgVoiceConn{vc: vc}, nil
}

// dgVoiceConn adapts *discordgo.VoiceConnection to voice.Connection.
type dgVoiceConn struct {
	vc *discordgo.VoiceConnection
}

func (c *dgVoiceConn) Speaking(on bool) error { return c.vc.Speaking(on) }

func (c *dgVoiceConn) OpusSend(frame []byte) error {
	select {
	case c.vc.OpusSend <- frame:
		return nil
	case <-time.After(time.Second):
		return fmt.Errorf("opus send stalled")
	}
}

func (c *dgVoiceConn) Disconnect() error { return c.vc.Disconnect() }

// DiscordChannel bridges the Discord gateway onto the message bus.
type DiscordChannel struct {
	BaseChannel
	session DiscordSession
}

func NewDiscordChannel(cfg config.DiscordConfig, b *bus.MessageBus) (*DiscordChannel, error) {
	return NewDiscordChannelWithFactory(cfg, b, defaultSessionFactory)
}

func NewDiscordChannelWithFactory(cfg config.DiscordConfig, b *bus.MessageBus, factory SessionFactory) (*DiscordChannel, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("discord token required")
	}
	session, err := factory(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}

	ch := &DiscordChannel{
		BaseChannel: NewBaseChannel(discordChannelName, b),
		session:     session,
	}
	session.OnMessage(ch.handleMessage)
	return ch, nil
}

func (d *DiscordChannel) Start(ctx context.Context) error {
	if err := d.session.Open(); err != nil {
		return fmt.Errorf("open discord session: %w", err)
	}
	log.Printf("[discord] connected")
	return nil
}

func (d *DiscordChannel) Stop() error {
	return d.session.Close()
}

func (d *DiscordChannel) Send(msg bus.OutboundMessage) error {
	return d.session.SendMessage(msg.ChannelID, msg.Content, msg.ReplyToID)
}

func (d *DiscordChannel) JoinVoice(ctx context.Context, guildID, channelID string) (voice.Connection, error) {
	type result struct {
		conn voice.Connection
		err  error
	}
	done := make(chan result, 1)
	go func() {
		conn, err := d.session.JoinVoice(guildID, channelID)
		done <- result{conn, err}
	}()

	select {
	case res := <-done:
		return res.conn, res.err
	case <-ctx.Done():
		// Clean up if the join lands after we stopped waiting.
		go func() {
			if res := <-done; res.conn != nil {
				_ = res.conn.Disconnect()
			}
		}()
		return nil, ctx.Err()
	}
}

// UserVoiceChannel resolves the member's current voice channel in the guild.
func (d *DiscordChannel) UserVoiceChannel(guildID, userID string) string {
	return d.session.UserVoiceChannel(guildID, userID)
}

// handleMessage converts a platform event to the gateway's inbound shape.
// Bot-authored events stop here.
func (d *DiscordChannel) handleMessage(m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot {
		return
	}

	selfID := d.session.SelfID()
	mentionsBot := false
	for _, u := range m.Mentions {
		if u != nil && u.ID == selfID {
			mentionsBot = true
			break
		}
	}
	// Treat "@name" text mentions of the bot the same as real mentions.
	if !mentionsBot && selfID != "" && strings.Contains(m.Content, "<@"+selfID+">") {
		mentionsBot = true
	}

	isReply := m.Type == discordgo.MessageTypeReply && m.ReferencedMessage != nil &&
		m.ReferencedMessage.Author != nil && m.ReferencedMessage.Author.ID == selfID
	replyToID := ""
	if m.MessageReference != nil {
		replyToID = m.MessageReference.MessageID
	}

	chName, chType, err := d.session.ChannelInfo(m.ChannelID)
	if err != nil {
		log.Printf("[discord] channel info %s: %v", m.ChannelID, err)
		chType = "text"
	}

	created := m.Timestamp
	if created.IsZero() {
		created = time.Now()
	}

	d.Publish(bus.InboundMessage{
		ID:      m.ID,
		Content: cleanContent(m.Content, selfID),
		Author: bus.Author{
			ID:       m.Author.ID,
			Username: m.Author.Username,
			Bot:      m.Author.Bot,
		},
		ChannelRef:  bus.ChannelRef{ID: m.ChannelID, Name: chName, Type: chType},
		Guild:       bus.GuildRef{ID: m.GuildID},
		MentionsBot: mentionsBot,
		IsReply:     isReply,
		ReplyToID:   replyToID,
		CreatedAt:   created,
	})
}

// cleanContent strips the bot's own mention token so downstream scoring sees
// the actual message text.
func cleanContent(content, selfID string) string {
	if selfID == "" {
		return strings.TrimSpace(content)
	}
	content = strings.ReplaceAll(content, "<@"+selfID+">", "")
	content = strings.ReplaceAll(content, "<@!"+selfID+">", "")
	return strings.TrimSpace(content)
}
