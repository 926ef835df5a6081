package tracker

import (
	"context"
	"fmt"
	"time"

	"github.com/tallybot/app/internal/storage"
	"go.uber.org/zap"
)

// Tracker is the message-correlation and task-lifecycle engine. It owns the
// channel registry, the daily prompt ledger, and the task ledger, and is the
// only component that writes them.
type Tracker struct {
	logger    *zap.Logger
	repo      *storage.Repository
	messenger Messenger
	graph     *MessageGraph
	eventChan <-chan ConnectorEvent

	defaultTimezone string
	sendDelay       time.Duration
	now             func() time.Time
}

// NewTracker creates a new Tracker.
func NewTracker(logger *zap.Logger, repo *storage.Repository, messenger Messenger, eventChan <-chan ConnectorEvent, settings Settings) *Tracker {
	nowFn := settings.Now
	if nowFn == nil {
		nowFn = time.Now
	}
	return &Tracker{
		logger:          logger,
		repo:            repo,
		messenger:       messenger,
		graph:           NewMessageGraph(),
		eventChan:       eventChan,
		defaultTimezone: settings.DefaultTimezone,
		sendDelay:       settings.SendDelay,
		now:             nowFn,
	}
}

// Start rebuilds the message graph from the store and runs the event loop
// until the context is canceled.
func (t *Tracker) Start(ctx context.Context) error {
	t.logger.Info("Starting tracker")

	if err := t.rebuildGraph(ctx); err != nil {
		return fmt.Errorf("tracker: graph rebuild failed: %w", err)
	}

	t.eventLoop(ctx)
	return ctx.Err()
}

// Stop shuts the tracker down.
func (t *Tracker) Stop(ctx context.Context) error {
	t.logger.Info("Stopping tracker")

	select {
	case <-ctx.Done():
		return fmt.Errorf("shutdown timeout exceeded")
	case <-time.After(100 * time.Millisecond):
		t.logger.Info("Tracker stopped")
		return nil
	}
}

// rebuildGraph re-indexes the current cycle's mirrors and task replies so
// that status lookups stay O(1) across restarts.
func (t *Tracker) rebuildGraph(ctx context.Context) error {
	channels, err := t.repo.ListChannels(ctx)
	if err != nil {
		return err
	}

	for _, channel := range channels {
		if channel.LinkedGroupID == 0 {
			continue
		}

		date, err := t.repo.LatestPromptDate(ctx, channel.ID)
		if err != nil {
			return err
		}
		if date != "" {
			prompts, err := t.repo.ListPromptsForDate(ctx, channel.ID, date)
			if err != nil {
				return err
			}
			for _, prompt := range prompts {
				if prompt.MirrorMessageID == 0 {
					continue
				}
				t.graph.Put(channel.LinkedGroupID, prompt.MirrorMessageID, GraphNode{
					Kind:   NodeMirror,
					RowID:  prompt.ID,
					UserID: prompt.UserID,
				})
			}
		}

		tasks, err := t.repo.ListChannelTasks(ctx, channel.ID)
		if err != nil {
			return err
		}
		for _, task := range tasks {
			t.graph.Put(channel.LinkedGroupID, task.GroupMessageID, GraphNode{
				Kind:   NodeTaskReply,
				RowID:  task.ID,
				UserID: task.UserID,
			})
		}
	}

	t.logger.Info("Message graph rebuilt", zap.Int("nodes", t.graph.Len()))
	return nil
}
