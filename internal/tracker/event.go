package tracker

import (
	"context"

	"go.uber.org/zap"
)

// eventLoop is the main loop draining connector events. Forward and status
// events are loosely ordered and fire-and-forget, so each one is handled in
// its own goroutine; the store's uniqueness constraints keep concurrent
// duplicates idempotent.
func (t *Tracker) eventLoop(ctx context.Context) {
	t.logger.Info("Event loop started")
	defer t.logger.Info("Event loop stopped")

	for {
		select {
		case event := <-t.eventChan:
			go t.handleEvent(ctx, event)

		case <-ctx.Done():
			t.logger.Info("Event loop shutting down")
			return
		}
	}
}

// handleEvent dispatches a single connector event.
func (t *Tracker) handleEvent(ctx context.Context, event ConnectorEvent) {
	t.logger.Debug("Handling connector event",
		zap.String("type", event.Type),
		zap.Int64("group_id", event.GroupID),
		zap.Int("message_id", event.MessageID),
	)

	switch event.Type {
	case EventForward:
		t.HandleForward(ctx, event)
	case EventStatus:
		t.ApplyStatus(ctx, event)
	default:
		t.logger.Warn("Unknown event type",
			zap.String("type", event.Type),
			zap.Int("message_id", event.MessageID),
		)
	}
}
