// Package discord adapts the bridge's chat surface onto a discordgo
// session: forum thread and message operations going out, gateway
// events feeding the bridge's outbound path coming in.
package discord

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bwmarrin/discordgo"

	"github.com/gitcord/gitcord/internal/bridge"
	"github.com/gitcord/gitcord/internal/models"
)

// Service owns the gateway session for one guild's forum channel and
// implements bridge.Chat.
type Service struct {
	session *discordgo.Session
	bridge  *bridge.Bridge
	guildID string
	forumID string
	logger  *slog.Logger
}

// New wraps an unopened session. The service satisfies bridge.Chat
// immediately; gateway handlers are registered by Attach once the
// bridge exists.
func New(session *discordgo.Session, guildID, forumID string, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		session: session,
		guildID: guildID,
		forumID: forumID,
		logger:  logger,
	}
}

// Attach wires the outbound path: gateway events start flowing into
// the bridge. Call before Open.
func (svc *Service) Attach(b *bridge.Bridge) {
	svc.bridge = b
	svc.session.AddHandler(svc.onMessageCreate)
	svc.session.AddHandler(svc.onMessageDelete)
	svc.session.AddHandler(svc.onThreadUpdate)
	svc.session.AddHandler(svc.onThreadDelete)
}

// Open connects the gateway.
func (svc *Service) Open() error {
	svc.session.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMessages
	if err := svc.session.Open(); err != nil {
		return fmt.Errorf("failed to open discord session: %w", err)
	}
	return nil
}

// Close disconnects the gateway.
func (svc *Service) Close() error {
	return svc.session.Close()
}

// LoadTags reads the forum channel's available tags into the
// correlation store's tag catalog.
func (svc *Service) LoadTags(ctx context.Context) error {
	channel, err := svc.session.Channel(svc.forumID, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to fetch forum channel: %w", err)
	}
	tags := make([]models.Tag, 0, len(channel.AvailableTags))
	for _, tag := range channel.AvailableTags {
		tags = append(tags, models.Tag{ID: tag.ID, Name: tag.Name})
	}
	svc.bridge.Store().SetTags(tags)
	svc.logger.Info("forum tag catalog loaded", "tags", len(tags))
	return nil
}

// --- bridge.Chat ---

// CreateThread opens a forum thread mirroring an issue and returns the
// new thread's ID.
func (svc *Service) CreateThread(ctx context.Context, params bridge.ThreadParams) (string, error) {
	thread, err := svc.session.ForumThreadStartComplex(svc.forumID,
		&discordgo.ThreadStart{
			Name:        params.Title,
			AppliedTags: params.AppliedTags,
		},
		&discordgo.MessageSend{Content: params.Content},
		discordgo.WithContext(ctx),
	)
	if err != nil {
		return "", fmt.Errorf("failed to create forum thread: %w", err)
	}
	return thread.ID, nil
}

// CreateMessage posts a message into an existing thread.
func (svc *Service) CreateMessage(ctx context.Context, threadID, content string) error {
	if _, err := svc.session.ChannelMessageSend(threadID, content, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("failed to send message to thread %s: %w", threadID, err)
	}
	return nil
}

// ArchiveThread archives a thread.
func (svc *Service) ArchiveThread(ctx context.Context, threadID string) error {
	return svc.editThread(ctx, threadID, boolPtr(true), nil)
}

// UnarchiveThread unarchives a thread.
func (svc *Service) UnarchiveThread(ctx context.Context, threadID string) error {
	return svc.editThread(ctx, threadID, boolPtr(false), nil)
}

// LockThread locks a thread.
func (svc *Service) LockThread(ctx context.Context, threadID string) error {
	return svc.editThread(ctx, threadID, nil, boolPtr(true))
}

// UnlockThread unlocks a thread.
func (svc *Service) UnlockThread(ctx context.Context, threadID string) error {
	return svc.editThread(ctx, threadID, nil, boolPtr(false))
}

// DeleteThread deletes a thread outright.
func (svc *Service) DeleteThread(ctx context.Context, threadID string) error {
	if _, err := svc.session.ChannelDelete(threadID, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("failed to delete thread %s: %w", threadID, err)
	}
	return nil
}

func (svc *Service) editThread(ctx context.Context, threadID string, archived, locked *bool) error {
	_, err := svc.session.ChannelEditComplex(threadID, &discordgo.ChannelEdit{
		Archived: archived,
		Locked:   locked,
	}, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to edit thread %s: %w", threadID, err)
	}
	return nil
}

func boolPtr(v bool) *bool { return &v }

// --- Gateway handlers (outbound path) ---

// onMessageCreate mirrors forum-thread messages to GitHub. The first
// message in a thread creates the issue; later ones become comments.
// The bot's own messages are inbound mirrors and must not bounce back.
func (svc *Service) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot {
		return
	}
	if s.State != nil && s.State.User != nil && m.Author.ID == s.State.User.ID {
		return
	}

	thread, ok := svc.forumThread(m.ChannelID)
	if !ok {
		return
	}

	ctx := context.Background()
	msg := svc.chatMessage(m.Message)
	if svc.bridge.Store().ThreadByID(m.ChannelID) == nil {
		// First message in a freshly created thread.
		svc.bridge.CreateIssue(ctx, m.ChannelID, thread.Name, thread.AppliedTags, msg)
		return
	}
	svc.bridge.CreateComment(ctx, msg)
}

// onMessageDelete mirrors message deletions as comment deletions.
func (svc *Service) onMessageDelete(s *discordgo.Session, m *discordgo.MessageDelete) {
	if _, ok := svc.forumThread(m.ChannelID); !ok {
		return
	}
	svc.bridge.DeleteComment(context.Background(), m.ChannelID, m.ID)
}

// onThreadUpdate mirrors archive and lock transitions. The stored
// thread is the previous state; only actual transitions are mirrored
// so unrelated edits (rename, tag change) don't spam GitHub.
func (svc *Service) onThreadUpdate(s *discordgo.Session, t *discordgo.ThreadUpdate) {
	if t.ParentID != svc.forumID || t.ThreadMetadata == nil {
		return
	}
	stored := svc.bridge.Store().ThreadByID(t.ID)
	if stored == nil {
		return
	}

	ctx := context.Background()
	if t.ThreadMetadata.Archived != stored.Archived {
		if t.ThreadMetadata.Archived {
			svc.bridge.CloseIssue(ctx, t.ID)
		} else {
			svc.bridge.ReopenIssue(ctx, t.ID)
		}
	}
	if t.ThreadMetadata.Locked != stored.Locked {
		if t.ThreadMetadata.Locked {
			svc.bridge.LockIssue(ctx, t.ID)
		} else {
			svc.bridge.UnlockIssue(ctx, t.ID)
		}
	}
}

// onThreadDelete mirrors thread deletion as issue deletion.
func (svc *Service) onThreadDelete(s *discordgo.Session, t *discordgo.ThreadDelete) {
	if t.ParentID != svc.forumID {
		return
	}
	svc.bridge.DeleteIssue(context.Background(), t.ID)
}

// forumThread resolves a channel ID to a thread under the mirrored
// forum channel, preferring gateway state over a REST round trip.
func (svc *Service) forumThread(channelID string) (*discordgo.Channel, bool) {
	channel, err := svc.session.State.Channel(channelID)
	if err != nil {
		channel, err = svc.session.Channel(channelID)
		if err != nil {
			return nil, false
		}
	}
	if !channel.IsThread() || channel.ParentID != svc.forumID {
		return nil, false
	}
	return channel, true
}

func (svc *Service) chatMessage(m *discordgo.Message) models.ChatMessage {
	msg := models.ChatMessage{
		ID:        m.ID,
		GuildID:   m.GuildID,
		ChannelID: m.ChannelID,
		Content:   m.Content,
	}
	if m.Author != nil {
		name := m.Author.GlobalName
		if name == "" {
			name = m.Author.Username
		}
		msg.Author = models.Author{
			ID:          m.Author.ID,
			DisplayName: name,
			Avatar:      m.Author.Avatar,
		}
	}
	for _, a := range m.Attachments {
		msg.Attachments = append(msg.Attachments, models.Attachment{
			Name:        a.Filename,
			URL:         a.URL,
			ContentType: a.ContentType,
		})
	}
	return msg
}
