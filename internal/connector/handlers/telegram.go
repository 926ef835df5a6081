package handlers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/tallybot/app/internal/tracker"
	"go.uber.org/zap"
)

// Bot commands understood by the handler.
const (
	cmdStart       = "start"
	cmdLinkChannel = "link_channel"
	cmdTimezone    = "timezone"
	cmdTask        = "task"
)

const helpText = "👋 Hello! I'm an accountability bot.\n\n" +
	"To add me to your channel:\n" +
	"1. Add me as an admin to a channel with a linked discussion group\n" +
	"2. Send /link_channel <channel_id> [timezone] here\n\n" +
	"Example: /link_channel @mychannel Europe/Riga\n" +
	"Timezone is optional."

const invalidTimezoneText = "Invalid timezone! Please use a valid timezone name " +
	"(e.g., 'Europe/Paris', 'America/New_York').\n" +
	"See the full list here: https://en.wikipedia.org/wiki/List_of_tz_database_time_zones"

// ScheduleRefresher rebuilds the daily schedule after registry changes.
type ScheduleRefresher interface {
	Reload(ctx context.Context) error
}

// TelegramHandler routes Telegram updates to the tracker: commands are
// dispatched synchronously so the caller gets an answer, while forward and
// status observations go through the tracker's event channel.
type TelegramHandler struct {
	logger    *zap.Logger
	tracker   *tracker.Tracker
	eventChan chan<- tracker.ConnectorEvent
	schedule  ScheduleRefresher
}

// NewTelegramHandler creates a new TelegramHandler.
func NewTelegramHandler(
	logger *zap.Logger,
	trk *tracker.Tracker,
	eventChan chan<- tracker.ConnectorEvent,
	schedule ScheduleRefresher,
) *TelegramHandler {
	return &TelegramHandler{
		logger:    logger.With(zap.String("handler", "telegram")),
		tracker:   trk,
		eventChan: eventChan,
		schedule:  schedule,
	}
}

// HandleUpdate is the bot's default update handler.
func (h *TelegramHandler) HandleUpdate(ctx context.Context, b *bot.Bot, update *models.Update) {
	switch {
	case update.ChannelPost != nil:
		h.handleChannelPost(ctx, b, update.ChannelPost)
	case update.Message != nil:
		h.handleMessage(ctx, b, update.Message)
	}
}

// handleMessage processes group and private chat traffic.
func (h *TelegramHandler) handleMessage(ctx context.Context, b *bot.Bot, msg *models.Message) {
	if origin := automaticForwardOrigin(msg); origin != nil {
		h.eventChan <- tracker.ConnectorEvent{
			Type:            tracker.EventForward,
			GroupID:         msg.Chat.ID,
			MessageID:       msg.ID,
			OriginMessageID: origin.MessageID,
		}
		return
	}

	if cmd, args, ok := parseCommand(msg.Text); ok {
		h.handleCommand(ctx, b, msg, cmd, args)
		return
	}

	if msg.ReplyToMessage != nil && msg.From != nil {
		text := msg.Text
		if text == "" {
			text = msg.Caption
		}
		if tracker.ClassifyMarker(text) != tracker.MarkerNone {
			h.eventChan <- tracker.ConnectorEvent{
				Type:      tracker.EventStatus,
				GroupID:   msg.Chat.ID,
				UserID:    msg.From.ID,
				MessageID: msg.ID,
				ReplyToID: msg.ReplyToMessage.ID,
				Text:      text,
			}
		}
	}
}

// handleChannelPost processes commands issued directly in a channel.
func (h *TelegramHandler) handleChannelPost(ctx context.Context, b *bot.Bot, msg *models.Message) {
	cmd, args, ok := parseCommand(msg.Text)
	if !ok {
		return
	}

	switch cmd {
	case cmdStart:
		h.registerChat(ctx, b, msg.Chat.ID, msg.Chat.Title, args)
	case cmdTimezone:
		h.setTimezone(ctx, b, msg.Chat.ID, args)
	}
}

func (h *TelegramHandler) handleCommand(ctx context.Context, b *bot.Bot, msg *models.Message, cmd string, args []string) {
	private := msg.Chat.Type == models.ChatTypePrivate

	switch cmd {
	case cmdStart:
		if private {
			h.respond(ctx, b, msg.Chat.ID, 0, helpText)
			return
		}
		h.registerChat(ctx, b, msg.Chat.ID, msg.Chat.Title, args)

	case cmdLinkChannel:
		if !private {
			return
		}
		h.linkChannel(ctx, b, msg, args)

	case cmdTimezone:
		if private {
			return
		}
		h.setTimezone(ctx, b, msg.Chat.ID, args)

	case cmdTask:
		if private || msg.From == nil {
			return
		}
		h.createTask(ctx, b, msg, strings.Join(args, " "))
	}
}

// registerChat activates the chat the command was issued in.
func (h *TelegramHandler) registerChat(ctx context.Context, b *bot.Bot, chatID int64, title string, args []string) {
	zone := ""
	if len(args) > 0 {
		zone = args[0]
	}

	channel, err := h.tracker.RegisterChannel(ctx, chatID, title, zone)
	if err != nil {
		if errors.Is(err, tracker.ErrInvalidTimezone) {
			h.respond(ctx, b, chatID, 0, invalidTimezoneText)
			return
		}
		h.logger.Error("Channel registration failed", zap.Int64("chat_id", chatID), zap.Error(err))
		h.respond(ctx, b, chatID, 0, "❌ Failed to initialize accountability tracking, please try again.")
		return
	}

	h.reloadSchedule(ctx)
	h.respond(ctx, b, chatID, 0, fmt.Sprintf(
		"✨ Accountability bot successfully connected!\nUsing timezone: %s\nDaily tracking will start with the next cycle.",
		channel.Timezone,
	))
}

// linkChannel registers a channel named from a private chat, probing the
// bot's access by posting and deleting a test message first.
func (h *TelegramHandler) linkChannel(ctx context.Context, b *bot.Bot, msg *models.Message, args []string) {
	if len(args) < 1 {
		h.respond(ctx, b, msg.Chat.ID, msg.ID,
			"Please provide the channel ID/username.\nUsage: /link_channel @channel_name [timezone]")
		return
	}

	zone := ""
	if len(args) > 1 {
		zone = args[1]
	}

	chat, err := b.GetChat(ctx, &bot.GetChatParams{ChatID: args[0]})
	if err == nil {
		var probe *models.Message
		probe, err = b.SendMessage(ctx, &bot.SendMessageParams{
			ChatID: chat.ID,
			Text:   "🔄 Testing bot permissions...",
		})
		if err == nil {
			_, _ = b.DeleteMessage(ctx, &bot.DeleteMessageParams{ChatID: chat.ID, MessageID: probe.ID})
		}
	}
	if err != nil {
		h.respond(ctx, b, msg.Chat.ID, msg.ID,
			"❌ Failed to link channel. Please ensure:\n"+
				"1. The channel ID/username is correct\n"+
				"2. I am an admin in the channel\n"+
				"3. I have permission to send messages\n\n"+
				fmt.Sprintf("Error: %v", err))
		return
	}

	channel, err := h.tracker.RegisterChannel(ctx, chat.ID, chat.Title, zone)
	if err != nil {
		if errors.Is(err, tracker.ErrInvalidTimezone) {
			h.respond(ctx, b, msg.Chat.ID, msg.ID, invalidTimezoneText)
			return
		}
		h.logger.Error("Channel registration failed", zap.Int64("chat_id", chat.ID), zap.Error(err))
		h.respond(ctx, b, msg.Chat.ID, msg.ID, "❌ Failed to link channel, please try again.")
		return
	}

	h.reloadSchedule(ctx)
	h.respond(ctx, b, msg.Chat.ID, msg.ID, fmt.Sprintf(
		"✅ Successfully linked to channel: %s\nTimezone set to: %s\nDaily accountability tracking starts with the next cycle.",
		chat.Title, channel.Timezone,
	))
	h.respond(ctx, b, chat.ID, 0, fmt.Sprintf(
		"✨ Accountability bot successfully connected!\nUsing timezone: %s", channel.Timezone,
	))
}

func (h *TelegramHandler) setTimezone(ctx context.Context, b *bot.Bot, chatID int64, args []string) {
	if len(args) < 1 {
		h.respond(ctx, b, chatID, 0, "Usage: /timezone <IANA zone>, e.g. /timezone Europe/Paris")
		return
	}

	err := h.tracker.SetTimezone(ctx, chatID, args[0])
	switch {
	case errors.Is(err, tracker.ErrInvalidTimezone):
		h.respond(ctx, b, chatID, 0, invalidTimezoneText)
	case errors.Is(err, tracker.ErrChannelNotFound):
		h.respond(ctx, b, chatID, 0, "This chat is not activated yet. Send /start first.")
	case err != nil:
		h.logger.Error("Timezone update failed", zap.Int64("chat_id", chatID), zap.Error(err))
		h.respond(ctx, b, chatID, 0, "❌ Failed to update the timezone, please try again.")
	default:
		h.reloadSchedule(ctx)
		h.respond(ctx, b, chatID, 0, fmt.Sprintf("Timezone set to: %s", args[0]))
	}
}

// createTask runs the synchronous task creation path and surfaces the
// precondition failures to the caller. Precondition errors are retryable
// by the user; nothing is recorded for them.
func (h *TelegramHandler) createTask(ctx context.Context, b *bot.Bot, msg *models.Message, text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		h.respond(ctx, b, msg.Chat.ID, msg.ID, "Usage: /task <what you commit to doing today>")
		return
	}

	_, err := h.tracker.CreateTask(ctx, msg.Chat.ID, msg.From.ID, msg.ID, text)
	switch {
	case errors.Is(err, tracker.ErrNoPromptFound):
		h.respond(ctx, b, msg.Chat.ID, msg.ID,
			"There is no accountability prompt for you yet. Wait for today's prompt before declaring tasks.")
	case errors.Is(err, tracker.ErrMirrorUnresolved):
		h.respond(ctx, b, msg.Chat.ID, msg.ID,
			"Your prompt hasn't appeared in this group yet. Try again in a moment.")
	case errors.Is(err, tracker.ErrChannelNotFound):
		h.respond(ctx, b, msg.Chat.ID, msg.ID,
			"This group is not linked to a tracked channel.")
	case err != nil:
		h.logger.Error("Task creation failed",
			zap.Int64("group_id", msg.Chat.ID),
			zap.Int64("user_id", msg.From.ID),
			zap.Error(err),
		)
		h.respond(ctx, b, msg.Chat.ID, msg.ID, "❌ Could not record your task, please try again.")
	}
}

func (h *TelegramHandler) reloadSchedule(ctx context.Context) {
	if h.schedule == nil {
		return
	}
	if err := h.schedule.Reload(ctx); err != nil {
		h.logger.Error("Schedule reload failed", zap.Error(err))
	}
}

// respond sends a user-visible message, optionally as a reply.
func (h *TelegramHandler) respond(ctx context.Context, b *bot.Bot, chatID int64, replyToID int, text string) {
	params := &bot.SendMessageParams{ChatID: chatID, Text: text}
	if replyToID != 0 {
		params.ReplyParameters = &models.ReplyParameters{MessageID: replyToID, ChatID: chatID}
	}
	if _, err := b.SendMessage(ctx, params); err != nil {
		h.logger.Warn("Failed to send response",
			zap.Int64("chat_id", chatID),
			zap.Error(err),
		)
	}
}

// automaticForwardOrigin extracts the channel origin of a platform-generated
// forward into a linked discussion group, nil for everything else.
func automaticForwardOrigin(msg *models.Message) *models.MessageOriginChannel {
	if msg == nil || !msg.IsAutomaticForward || msg.ForwardOrigin == nil {
		return nil
	}
	if msg.ForwardOrigin.Type != models.MessageOriginTypeChannel {
		return nil
	}
	return msg.ForwardOrigin.MessageOriginChannel
}

// parseCommand splits "/cmd@bot arg1 arg2" into its command and arguments.
func parseCommand(text string) (string, []string, bool) {
	if !strings.HasPrefix(text, "/") {
		return "", nil, false
	}
	fields := strings.Fields(text)
	cmd := strings.TrimPrefix(fields[0], "/")
	// strip the @botname suffix used in groups
	if at := strings.IndexByte(cmd, '@'); at >= 0 {
		cmd = cmd[:at]
	}
	if cmd == "" {
		return "", nil, false
	}
	return cmd, fields[1:], true
}
