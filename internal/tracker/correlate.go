package tracker

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// HandleForward binds a prompt's mirror message id once the platform's
// automatic forward of the channel post becomes observable. The owning
// channel is derived from the group the forward arrived in, since origin
// message ids are only unique per chat. The update is conditional and
// first-writer-wins: a duplicate delivery finds the mirror already set and
// is a no-op, and an origin no row matches is dropped as a normal
// out-of-order miss, not an error.
func (t *Tracker) HandleForward(ctx context.Context, event ConnectorEvent) {
	channel, err := t.repo.GetChannelByGroup(ctx, event.GroupID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			t.logger.Debug("Forward event from untracked group dropped",
				zap.Int64("group_id", event.GroupID),
			)
		} else {
			t.logger.Error("Failed to resolve channel for forward event",
				zap.Int64("group_id", event.GroupID),
				zap.Error(err),
			)
		}
		return
	}

	affected, err := t.repo.ResolveMirror(ctx, channel.ID, event.OriginMessageID, event.MessageID)
	if err != nil {
		t.logger.Error("Failed to resolve mirror",
			zap.Int64("channel_id", channel.ID),
			zap.Int("origin_message_id", event.OriginMessageID),
			zap.Int("mirror_message_id", event.MessageID),
			zap.Error(err),
		)
		return
	}

	if affected == 0 {
		// Either a duplicate forward (mirror already bound) or a post the
		// ledger never tracked. Both are expected; only the logging differs.
		prompt, lookupErr := t.repo.GetPromptByOrigin(ctx, channel.ID, event.OriginMessageID)
		switch {
		case lookupErr == nil && prompt.MirrorMessageID != 0:
			t.logger.Debug("Duplicate forward event ignored",
				zap.Int64("channel_id", channel.ID),
				zap.Int("origin_message_id", event.OriginMessageID),
			)
		case errors.Is(lookupErr, gorm.ErrRecordNotFound):
			t.logger.Debug("Forward event for untracked post dropped",
				zap.Int64("channel_id", channel.ID),
				zap.Int("origin_message_id", event.OriginMessageID),
			)
		case lookupErr != nil:
			t.logger.Error("Failed to classify forward miss",
				zap.Int64("channel_id", channel.ID),
				zap.Int("origin_message_id", event.OriginMessageID),
				zap.Error(lookupErr),
			)
		}
		return
	}

	prompt, err := t.repo.GetPromptByOrigin(ctx, channel.ID, event.OriginMessageID)
	if err != nil {
		t.logger.Error("Failed to load resolved prompt",
			zap.Int64("channel_id", channel.ID),
			zap.Int("origin_message_id", event.OriginMessageID),
			zap.Error(err),
		)
		return
	}

	t.graph.Put(event.GroupID, event.MessageID, GraphNode{
		Kind:   NodeMirror,
		RowID:  prompt.ID,
		UserID: prompt.UserID,
	})

	t.logger.Info("Mirror resolved",
		zap.Int64("channel_id", prompt.ChannelID),
		zap.Int64("user_id", prompt.UserID),
		zap.Int("origin_message_id", event.OriginMessageID),
		zap.Int("mirror_message_id", event.MessageID),
	)
}
