package tracker

import (
	"context"
	"errors"
	"fmt"

	"github.com/tallybot/app/internal/storage"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// CreateTask records a task declared via a trigger message in a discussion
// group. The task text is posted as a reply to the caller's prompt mirror,
// and only after that post succeeds is the task row written, keyed by the
// reply's own message id. The trigger message is then deleted best-effort.
func (t *Tracker) CreateTask(ctx context.Context, groupID, userID int64, triggerMessageID int, text string) (*storage.Task, error) {
	channel, err := t.repo.GetChannelByGroup(ctx, groupID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrChannelNotFound
		}
		return nil, fmt.Errorf("tracker: failed to resolve channel for group: %w", err)
	}

	prompt, err := t.repo.LatestPrompt(ctx, channel.ID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoPromptFound
		}
		return nil, fmt.Errorf("tracker: failed to load latest prompt: %w", err)
	}
	if prompt.MirrorMessageID == 0 {
		return nil, ErrMirrorUnresolved
	}

	// The externally visible side effect comes first: a Task row must never
	// reference a reply that does not exist.
	replyID, err := t.messenger.Reply(ctx, groupID, prompt.MirrorMessageID, text)
	if err != nil {
		return nil, NewTransportError("Reply", groupID, err)
	}

	task := &storage.Task{
		UserID:         userID,
		ChannelID:      channel.ID,
		GroupMessageID: replyID,
		Text:           text,
		Status:         storage.TaskStatusPending,
	}
	if err := t.repo.CreateTask(ctx, task); err != nil {
		return nil, fmt.Errorf("tracker: failed to persist task: %w", err)
	}

	t.graph.Put(groupID, replyID, GraphNode{
		Kind:   NodeTaskReply,
		RowID:  task.ID,
		UserID: userID,
	})

	if err := t.messenger.Delete(ctx, groupID, triggerMessageID); err != nil {
		// Keeping the group tidy is cosmetic; the task is already recorded.
		t.logger.Warn("Failed to delete trigger message",
			zap.Int64("group_id", groupID),
			zap.Int("message_id", triggerMessageID),
			zap.Error(err),
		)
	}

	t.logger.Info("Task created",
		zap.Int64("channel_id", channel.ID),
		zap.Int64("user_id", userID),
		zap.Int("group_message_id", replyID),
	)
	return task, nil
}

// ListTasks returns the tasks currently tracked for a channel, for the
// recap and for operator inspection.
func (t *Tracker) ListTasks(ctx context.Context, channelID int64) ([]storage.Task, error) {
	return t.repo.ListChannelTasks(ctx, channelID)
}

// ApplyStatus applies a status marker carried by a reply to a tracked task
// message. Replies that do not target a task owned by the replier flow
// through unaffected; that is how ordinary conversation looks to us.
func (t *Tracker) ApplyStatus(ctx context.Context, event ConnectorEvent) {
	marker := ClassifyMarker(event.Text)
	if marker == MarkerNone || event.ReplyToID == 0 {
		return
	}

	task, ok := t.lookupTask(ctx, event)
	if !ok {
		return
	}

	if err := t.repo.UpdateTaskStatus(ctx, task.ID, marker.Status()); err != nil {
		t.logger.Error("Failed to update task status",
			zap.Int64("task_id", task.ID),
			zap.String("status", marker.Status()),
			zap.Error(err),
		)
		return
	}

	if err := t.messenger.React(ctx, event.GroupID, task.GroupMessageID, marker.Emoji()); err != nil {
		t.logger.Warn("Failed to acknowledge status with reaction",
			zap.Int64("group_id", event.GroupID),
			zap.Int("message_id", task.GroupMessageID),
			zap.Error(err),
		)
	}

	t.logger.Info("Task status updated",
		zap.Int64("task_id", task.ID),
		zap.Int64("user_id", event.UserID),
		zap.String("status", marker.Status()),
	)
}

// lookupTask resolves the task a status reply targets, graph index first
// with the store as fallback. Ownership is enforced both ways: a node owned
// by a different user is treated as untracked.
func (t *Tracker) lookupTask(ctx context.Context, event ConnectorEvent) (*storage.Task, bool) {
	if node, ok := t.graph.Get(event.GroupID, event.ReplyToID); ok {
		if node.Kind != NodeTaskReply || node.UserID != event.UserID {
			return nil, false
		}
	}

	channel, err := t.repo.GetChannelByGroup(ctx, event.GroupID)
	if err != nil {
		// Not a tracked discussion group; nothing to do.
		return nil, false
	}

	task, err := t.repo.GetTaskByReply(ctx, event.ReplyToID, channel.ID, event.UserID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			t.logger.Error("Failed to look up task by reply",
				zap.Int("reply_to_id", event.ReplyToID),
				zap.Error(err),
			)
		}
		return nil, false
	}
	return task, true
}
