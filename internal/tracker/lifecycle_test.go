package tracker_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/tallybot/app/internal/storage"
	"github.com/tallybot/app/internal/tracker"
	"go.uber.org/zap/zaptest"
)

func TestCreateTask(t *testing.T) {
	trk, messenger, repo, cleanup := newTestTracker(t)
	defer cleanup()

	seedChannel(t, repo, -100, -200, "Europe/Riga")
	seedPrompt(t, repo, -100, 7, "2025-03-10", 50, 61)

	task, err := trk.CreateTask(context.Background(), -200, 7, 70, "write the report")
	require.NoError(t, err)
	require.Equal(t, storage.TaskStatusPending, task.Status)
	require.Equal(t, int64(-100), task.ChannelID)

	// The task reply went under the mirror, and the row is keyed by the
	// reply's own message id.
	replies := messenger.CallsFor("reply")
	require.Len(t, replies, 1)
	require.Equal(t, int64(-200), replies[0].ChatID)
	require.Equal(t, 61, replies[0].ReplyToID)
	require.Equal(t, "write the report", replies[0].Text)
	require.NotZero(t, task.GroupMessageID)

	stored, err := repo.GetTaskByReply(context.Background(), task.GroupMessageID, -100, 7)
	require.NoError(t, err)
	require.Equal(t, "write the report", stored.Text)

	// The trigger message was cleaned up.
	deletes := messenger.CallsFor("delete")
	require.Len(t, deletes, 1)
	require.Equal(t, 70, deletes[0].MessageID)
}

func TestCreateTaskUnknownGroup(t *testing.T) {
	trk, _, _, cleanup := newTestTracker(t)
	defer cleanup()

	_, err := trk.CreateTask(context.Background(), -999, 7, 70, "task")
	require.ErrorIs(t, err, tracker.ErrChannelNotFound)
}

func TestCreateTaskNoPrompt(t *testing.T) {
	trk, messenger, repo, cleanup := newTestTracker(t)
	defer cleanup()

	seedChannel(t, repo, -100, -200, "Europe/Riga")

	_, err := trk.CreateTask(context.Background(), -200, 7, 70, "task")
	require.ErrorIs(t, err, tracker.ErrNoPromptFound)
	require.Empty(t, messenger.CallsFor("reply"))
}

func TestCreateTaskMirrorUnresolved(t *testing.T) {
	trk, messenger, repo, cleanup := newTestTracker(t)
	defer cleanup()

	seedChannel(t, repo, -100, -200, "Europe/Riga")
	seedPrompt(t, repo, -100, 7, "2025-03-10", 50, 0)

	_, err := trk.CreateTask(context.Background(), -200, 7, 70, "task")
	require.ErrorIs(t, err, tracker.ErrMirrorUnresolved)
	require.Empty(t, messenger.CallsFor("reply"))
}

func TestCreateTaskReplyFails(t *testing.T) {
	trk, messenger, repo, cleanup := newTestTracker(t)
	defer cleanup()

	seedChannel(t, repo, -100, -200, "Europe/Riga")
	seedPrompt(t, repo, -100, 7, "2025-03-10", 50, 61)
	messenger.SetError("reply", errors.New("flood wait"))

	_, err := trk.CreateTask(context.Background(), -200, 7, 70, "task")

	var transportErr *tracker.TransportError
	require.ErrorAs(t, err, &transportErr)
	require.Equal(t, "Reply", transportErr.Op)
	require.True(t, tracker.IsRetryable(err))

	// No row may exist for a reply that was never posted.
	tasks, err := repo.ListChannelTasks(context.Background(), -100)
	require.NoError(t, err)
	require.Empty(t, tasks)
}

func TestCreateTaskDeleteFailureIsTolerated(t *testing.T) {
	trk, messenger, repo, cleanup := newTestTracker(t)
	defer cleanup()

	seedChannel(t, repo, -100, -200, "Europe/Riga")
	seedPrompt(t, repo, -100, 7, "2025-03-10", 50, 61)
	messenger.SetError("delete", errors.New("message too old"))

	task, err := trk.CreateTask(context.Background(), -200, 7, 70, "task")
	require.NoError(t, err)
	require.NotNil(t, task)
}

func TestApplyStatusCompleted(t *testing.T) {
	trk, messenger, repo, cleanup := newTestTracker(t)
	defer cleanup()

	seedChannel(t, repo, -100, -200, "Europe/Riga")
	seedPrompt(t, repo, -100, 7, "2025-03-10", 50, 61)
	task, err := trk.CreateTask(context.Background(), -200, 7, 70, "write the report")
	require.NoError(t, err)

	trk.ApplyStatus(context.Background(), tracker.ConnectorEvent{
		Type:      tracker.EventStatus,
		GroupID:   -200,
		UserID:    7,
		MessageID: 80,
		ReplyToID: task.GroupMessageID,
		Text:      "✅ all done",
	})

	stored, err := repo.GetTaskByReply(context.Background(), task.GroupMessageID, -100, 7)
	require.NoError(t, err)
	require.Equal(t, storage.TaskStatusCompleted, stored.Status)

	reacts := messenger.CallsFor("react")
	require.Len(t, reacts, 1)
	require.Equal(t, task.GroupMessageID, reacts[0].MessageID)
	require.Equal(t, "👍", reacts[0].Emoji)
}

func TestApplyStatusLastWriterWins(t *testing.T) {
	trk, _, repo, cleanup := newTestTracker(t)
	defer cleanup()

	seedChannel(t, repo, -100, -200, "Europe/Riga")
	seedPrompt(t, repo, -100, 7, "2025-03-10", 50, 61)
	task, err := trk.CreateTask(context.Background(), -200, 7, 70, "write the report")
	require.NoError(t, err)

	event := tracker.ConnectorEvent{
		GroupID: -200, UserID: 7, ReplyToID: task.GroupMessageID,
	}

	// Re-applying the same marker is idempotent.
	event.Text = "✅"
	trk.ApplyStatus(context.Background(), event)
	trk.ApplyStatus(context.Background(), event)

	stored, err := repo.GetTaskByReply(context.Background(), task.GroupMessageID, -100, 7)
	require.NoError(t, err)
	require.Equal(t, storage.TaskStatusCompleted, stored.Status)

	// A conflicting marker from a later reply overwrites.
	event.Text = "❌ actually not"
	trk.ApplyStatus(context.Background(), event)

	stored, err = repo.GetTaskByReply(context.Background(), task.GroupMessageID, -100, 7)
	require.NoError(t, err)
	require.Equal(t, storage.TaskStatusFailed, stored.Status)
}

func TestApplyStatusIgnoresOtherUsers(t *testing.T) {
	trk, messenger, repo, cleanup := newTestTracker(t)
	defer cleanup()

	seedChannel(t, repo, -100, -200, "Europe/Riga")
	seedPrompt(t, repo, -100, 7, "2025-03-10", 50, 61)
	task, err := trk.CreateTask(context.Background(), -200, 7, 70, "write the report")
	require.NoError(t, err)
	messenger.Reset()

	// Someone else replying ✅ to the task must not change it.
	trk.ApplyStatus(context.Background(), tracker.ConnectorEvent{
		GroupID: -200, UserID: 8, ReplyToID: task.GroupMessageID, Text: "✅",
	})

	stored, err := repo.GetTaskByReply(context.Background(), task.GroupMessageID, -100, 7)
	require.NoError(t, err)
	require.Equal(t, storage.TaskStatusPending, stored.Status)
	require.Empty(t, messenger.CallsFor("react"))
}

func TestApplyStatusIgnoresNonMarkers(t *testing.T) {
	trk, messenger, repo, cleanup := newTestTracker(t)
	defer cleanup()

	seedChannel(t, repo, -100, -200, "Europe/Riga")
	seedPrompt(t, repo, -100, 7, "2025-03-10", 50, 61)
	task, err := trk.CreateTask(context.Background(), -200, 7, 70, "write the report")
	require.NoError(t, err)
	messenger.Reset()

	trk.ApplyStatus(context.Background(), tracker.ConnectorEvent{
		GroupID: -200, UserID: 7, ReplyToID: task.GroupMessageID, Text: "making progress",
	})

	stored, err := repo.GetTaskByReply(context.Background(), task.GroupMessageID, -100, 7)
	require.NoError(t, err)
	require.Equal(t, storage.TaskStatusPending, stored.Status)
	require.Empty(t, messenger.CallsFor("react"))
}

func TestApplyStatusIgnoresUnrelatedReplies(t *testing.T) {
	trk, messenger, repo, cleanup := newTestTracker(t)
	defer cleanup()

	seedChannel(t, repo, -100, -200, "Europe/Riga")

	// A ✅ reply to some ordinary conversation message flows through.
	trk.ApplyStatus(context.Background(), tracker.ConnectorEvent{
		GroupID: -200, UserID: 7, ReplyToID: 4242, Text: "✅",
	})
	require.Empty(t, messenger.CallsFor("react"))
}

func TestApplyStatusSurvivesRestart(t *testing.T) {
	trk, messenger, repo, cleanup := newTestTracker(t)
	defer cleanup()

	seedChannel(t, repo, -100, -200, "Europe/Riga")
	seedPrompt(t, repo, -100, 7, "2025-03-10", 50, 61)
	task, err := trk.CreateTask(context.Background(), -200, 7, 70, "write the report")
	require.NoError(t, err)

	// A fresh tracker over the same store has an empty graph; the status
	// lookup falls back to the task ledger.
	fresh := tracker.NewTracker(zaptest.NewLogger(t), repo, messenger, nil, tracker.Settings{
		DefaultTimezone: "Europe/Riga",
		Now:             func() time.Time { return fixedNow },
	})
	fresh.ApplyStatus(context.Background(), tracker.ConnectorEvent{
		GroupID: -200, UserID: 7, ReplyToID: task.GroupMessageID, Text: "✅",
	})

	stored, err := repo.GetTaskByReply(context.Background(), task.GroupMessageID, -100, 7)
	require.NoError(t, err)
	require.Equal(t, storage.TaskStatusCompleted, stored.Status)
}

func TestListTasks(t *testing.T) {
	trk, _, repo, cleanup := newTestTracker(t)
	defer cleanup()

	seedChannel(t, repo, -100, -200, "Europe/Riga")
	seedPrompt(t, repo, -100, 7, "2025-03-10", 50, 61)

	_, err := trk.CreateTask(context.Background(), -200, 7, 70, "first")
	require.NoError(t, err)
	_, err = trk.CreateTask(context.Background(), -200, 7, 71, "second")
	require.NoError(t, err)

	tasks, err := trk.ListTasks(context.Background(), -100)
	require.NoError(t, err)
	require.Len(t, tasks, 2)
}
