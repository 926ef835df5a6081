package connector

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/tallybot/app/internal/tracker"
	"go.uber.org/zap"
)

// TelegramMessenger implements the tracker's Messenger port on top of the
// Telegram Bot API. It is constructed before the session exists and bound
// to the live session when the connector starts.
type TelegramMessenger struct {
	logger *zap.Logger

	mu sync.RWMutex
	b  *bot.Bot
}

// NewTelegramMessenger creates an unbound TelegramMessenger.
func NewTelegramMessenger(logger *zap.Logger) *TelegramMessenger {
	return &TelegramMessenger{logger: logger.With(zap.String("component", "messenger"))}
}

// Bind attaches the live bot session.
func (m *TelegramMessenger) Bind(b *bot.Bot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.b = b
}

func (m *TelegramMessenger) session() (*bot.Bot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.b == nil {
		return nil, fmt.Errorf("connector: telegram session not started")
	}
	return m.b, nil
}

// Send posts text to a chat and returns the new message id.
func (m *TelegramMessenger) Send(ctx context.Context, chatID int64, text string) (int, error) {
	b, err := m.session()
	if err != nil {
		return 0, err
	}
	msg, err := b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: chatID,
		Text:   text,
	})
	if err != nil {
		return 0, err
	}
	return msg.ID, nil
}

// Reply posts text as a reply to an existing message.
func (m *TelegramMessenger) Reply(ctx context.Context, chatID int64, replyToID int, text string) (int, error) {
	b, err := m.session()
	if err != nil {
		return 0, err
	}
	msg, err := b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: chatID,
		Text:   text,
		ReplyParameters: &models.ReplyParameters{
			MessageID: replyToID,
			ChatID:    chatID,
		},
	})
	if err != nil {
		return 0, err
	}
	return msg.ID, nil
}

// Delete removes a message from a chat.
func (m *TelegramMessenger) Delete(ctx context.Context, chatID int64, messageID int) error {
	b, err := m.session()
	if err != nil {
		return err
	}
	ok, err := b.DeleteMessage(ctx, &bot.DeleteMessageParams{
		ChatID:    chatID,
		MessageID: messageID,
	})
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("connector: delete of message %d rejected", messageID)
	}
	return nil
}

// React sets an emoji reaction on a message.
func (m *TelegramMessenger) React(ctx context.Context, chatID int64, messageID int, emoji string) error {
	b, err := m.session()
	if err != nil {
		return err
	}
	_, err = b.SetMessageReaction(ctx, &bot.SetMessageReactionParams{
		ChatID:    chatID,
		MessageID: messageID,
		Reaction: []models.ReactionType{
			{
				Type: models.ReactionTypeTypeEmoji,
				ReactionTypeEmoji: &models.ReactionTypeEmoji{
					Type:  models.ReactionTypeTypeEmoji,
					Emoji: emoji,
				},
			},
		},
	})
	return err
}

// ListMembers returns the channel's administrators, the only member set the
// Bot API exposes for broadcast channels. The bot itself is reported with
// IsBot set so the orchestrator can skip it.
func (m *TelegramMessenger) ListMembers(ctx context.Context, chatID int64) ([]tracker.Member, error) {
	b, err := m.session()
	if err != nil {
		return nil, err
	}
	admins, err := b.GetChatAdministrators(ctx, &bot.GetChatAdministratorsParams{
		ChatID: chatID,
	})
	if err != nil {
		return nil, err
	}

	members := make([]tracker.Member, 0, len(admins))
	for _, admin := range admins {
		user := adminUser(admin)
		if user == nil {
			continue
		}
		members = append(members, tracker.Member{
			ID:       user.ID,
			Username: user.Username,
			IsBot:    user.IsBot,
		})
	}
	return members, nil
}

// LinkedGroup resolves the discussion group linked to a channel, 0 if none.
func (m *TelegramMessenger) LinkedGroup(ctx context.Context, chatID int64) (int64, error) {
	b, err := m.session()
	if err != nil {
		return 0, err
	}
	chat, err := b.GetChat(ctx, &bot.GetChatParams{ChatID: chatID})
	if err != nil {
		return 0, err
	}
	return chat.LinkedChatID, nil
}

func adminUser(member models.ChatMember) *models.User {
	switch member.Type {
	case models.ChatMemberTypeOwner:
		if member.Owner != nil {
			return member.Owner.User
		}
	case models.ChatMemberTypeAdministrator:
		if member.Administrator != nil {
			return &member.Administrator.User
		}
	}
	return nil
}
