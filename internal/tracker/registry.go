package tracker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tallybot/app/internal/storage"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// RegisterChannel activates a channel, recording its timezone and linked
// discussion group. Re-activation is the intended update path, so the call
// is an idempotent upsert with last-write-wins semantics. An empty zone
// selects the configured default.
func (t *Tracker) RegisterChannel(ctx context.Context, channelID int64, title, zone string) (*storage.Channel, error) {
	if zone == "" {
		zone = t.defaultTimezone
	}
	if _, err := time.LoadLocation(zone); err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTimezone, zone)
	}

	groupID, err := t.messenger.LinkedGroup(ctx, channelID)
	if err != nil {
		// A channel without an observable linked group is still
		// registrable; correlation stays pending until one appears.
		t.logger.Warn("Could not resolve linked group",
			zap.Int64("channel_id", channelID),
			zap.Error(err),
		)
		groupID = 0
	}

	channel := &storage.Channel{
		ID:            channelID,
		Title:         title,
		Timezone:      zone,
		LinkedGroupID: groupID,
	}
	if err := t.repo.UpsertChannel(ctx, channel); err != nil {
		return nil, fmt.Errorf("tracker: failed to register channel: %w", err)
	}

	t.logger.Info("Channel registered",
		zap.Int64("channel_id", channelID),
		zap.String("timezone", zone),
		zap.Int64("linked_group_id", groupID),
	)
	return channel, nil
}

// SetTimezone updates a registered channel's timezone. The stored value is
// untouched when the zone name does not resolve.
func (t *Tracker) SetTimezone(ctx context.Context, channelID int64, zone string) error {
	if _, err := time.LoadLocation(zone); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidTimezone, zone)
	}

	if err := t.repo.SetChannelTimezone(ctx, channelID, zone); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrChannelNotFound
		}
		return fmt.Errorf("tracker: failed to set timezone: %w", err)
	}

	t.logger.Info("Channel timezone updated",
		zap.Int64("channel_id", channelID),
		zap.String("timezone", zone),
	)
	return nil
}

// ListChannels returns every registered channel for orchestrator fan-out.
func (t *Tracker) ListChannels(ctx context.Context) ([]storage.Channel, error) {
	return t.repo.ListChannels(ctx)
}
