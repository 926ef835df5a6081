package tracker_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tallybot/app/internal/tracker"
)

func TestHandleForwardResolvesMirror(t *testing.T) {
	trk, _, repo, cleanup := newTestTracker(t)
	defer cleanup()

	seedChannel(t, repo, -100, -200, "Europe/Riga")
	seedPrompt(t, repo, -100, 7, "2025-03-10", 50, 0)

	trk.HandleForward(context.Background(), tracker.ConnectorEvent{
		Type:            tracker.EventForward,
		GroupID:         -200,
		MessageID:       61,
		OriginMessageID: 50,
	})

	prompt, err := repo.GetPromptByOrigin(context.Background(), -100, 50)
	require.NoError(t, err)
	require.Equal(t, 61, prompt.MirrorMessageID)
}

func TestHandleForwardFirstWriterWins(t *testing.T) {
	trk, _, repo, cleanup := newTestTracker(t)
	defer cleanup()

	seedChannel(t, repo, -100, -200, "Europe/Riga")
	seedPrompt(t, repo, -100, 7, "2025-03-10", 50, 0)

	first := tracker.ConnectorEvent{GroupID: -200, MessageID: 61, OriginMessageID: 50}
	trk.HandleForward(context.Background(), first)

	// A duplicate delivery carrying a different mirror id must not win.
	trk.HandleForward(context.Background(), tracker.ConnectorEvent{
		GroupID: -200, MessageID: 99, OriginMessageID: 50,
	})

	prompt, err := repo.GetPromptByOrigin(context.Background(), -100, 50)
	require.NoError(t, err)
	require.Equal(t, 61, prompt.MirrorMessageID)
}

func TestHandleForwardScopedToOwnChannel(t *testing.T) {
	trk, _, repo, cleanup := newTestTracker(t)
	defer cleanup()

	// Message ids are per-chat sequential, so two channels routinely hold
	// prompts with the same origin id.
	seedChannel(t, repo, -100, -200, "Europe/Riga")
	seedChannel(t, repo, -300, -400, "Europe/Riga")
	seedPrompt(t, repo, -100, 7, "2025-03-10", 50, 0)
	seedPrompt(t, repo, -300, 9, "2025-03-10", 50, 0)

	// A forward in -300's group binds only -300's row.
	trk.HandleForward(context.Background(), tracker.ConnectorEvent{
		GroupID: -400, MessageID: 61, OriginMessageID: 50,
	})

	resolved, err := repo.GetPromptByOrigin(context.Background(), -300, 50)
	require.NoError(t, err)
	require.Equal(t, 61, resolved.MirrorMessageID)

	untouched, err := repo.GetPromptByOrigin(context.Background(), -100, 50)
	require.NoError(t, err)
	require.Zero(t, untouched.MirrorMessageID)
}

func TestHandleForwardUnregisteredGroup(t *testing.T) {
	trk, _, repo, cleanup := newTestTracker(t)
	defer cleanup()

	seedChannel(t, repo, -100, -200, "Europe/Riga")
	seedPrompt(t, repo, -100, 7, "2025-03-10", 50, 0)

	// A forward observed in a group no channel links to resolves nothing.
	trk.HandleForward(context.Background(), tracker.ConnectorEvent{
		GroupID: -999, MessageID: 61, OriginMessageID: 50,
	})

	prompt, err := repo.GetPromptByOrigin(context.Background(), -100, 50)
	require.NoError(t, err)
	require.Zero(t, prompt.MirrorMessageID)
}

func TestHandleForwardUntrackedOrigin(t *testing.T) {
	trk, _, repo, cleanup := newTestTracker(t)
	defer cleanup()

	seedChannel(t, repo, -100, -200, "Europe/Riga")

	// A forward for a post the ledger never tracked is dropped quietly.
	trk.HandleForward(context.Background(), tracker.ConnectorEvent{
		GroupID: -200, MessageID: 61, OriginMessageID: 12345,
	})
}

func TestHandleForwardUnblocksTaskCreation(t *testing.T) {
	trk, messenger, repo, cleanup := newTestTracker(t)
	defer cleanup()

	seedChannel(t, repo, -100, -200, "Europe/Riga")
	seedPrompt(t, repo, -100, 7, "2025-03-10", 50, 0)

	// Before the forward event the mirror is unknown.
	_, err := trk.CreateTask(context.Background(), -200, 7, 70, "ship the report")
	require.ErrorIs(t, err, tracker.ErrMirrorUnresolved)
	require.True(t, tracker.IsRetryable(err))

	trk.HandleForward(context.Background(), tracker.ConnectorEvent{
		GroupID: -200, MessageID: 61, OriginMessageID: 50,
	})

	task, err := trk.CreateTask(context.Background(), -200, 7, 70, "ship the report")
	require.NoError(t, err)
	require.Equal(t, "ship the report", task.Text)

	// The task was posted as a reply to the resolved mirror.
	replies := messenger.CallsFor("reply")
	require.Len(t, replies, 1)
	require.Equal(t, 61, replies[0].ReplyToID)
}
