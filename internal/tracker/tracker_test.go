package tracker_test

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/tallybot/app/internal/storage"
	"github.com/tallybot/app/internal/testutil/mocks"
	"github.com/tallybot/app/internal/tracker"
	"go.uber.org/zap/zaptest"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// fixedNow is the wall clock used by every tracker under test.
var fixedNow = time.Date(2025, 3, 10, 8, 30, 0, 0, time.UTC)

func newTestRepo(t *testing.T) (*storage.Repository, func()) {
	t.Helper()

	// Each test gets its own named in-memory database so unique
	// indexes from one test do not bleed into the next.
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, storage.AutoMigrate(db))

	repo, err := storage.NewRepository(db)
	require.NoError(t, err)

	cleanup := func() {
		sqlDB, err := db.DB()
		require.NoError(t, err)
		require.NoError(t, sqlDB.Close())
	}
	return repo, cleanup
}

func newTestTracker(t *testing.T) (*tracker.Tracker, *mocks.MockMessenger, *storage.Repository, func()) {
	t.Helper()

	repo, cleanup := newTestRepo(t)
	messenger := mocks.NewMockMessenger()
	trk := tracker.NewTracker(zaptest.NewLogger(t), repo, messenger, nil, tracker.Settings{
		DefaultTimezone: "Europe/Riga",
		Now:             func() time.Time { return fixedNow },
	})
	return trk, messenger, repo, cleanup
}

// seedChannel registers a channel with a linked discussion group directly
// through the store, bypassing the messenger probe.
func seedChannel(t *testing.T, repo *storage.Repository, channelID, groupID int64, zone string) {
	t.Helper()
	require.NoError(t, repo.UpsertChannel(context.Background(), &storage.Channel{
		ID:            channelID,
		Title:         "Test Channel",
		Timezone:      zone,
		LinkedGroupID: groupID,
	}))
}

// seedPrompt inserts a prompt row for a user, optionally with the mirror
// already resolved.
func seedPrompt(t *testing.T, repo *storage.Repository, channelID int64, userID int64, date string, originID, mirrorID int) *storage.DailyPrompt {
	t.Helper()
	prompt := &storage.DailyPrompt{
		ChannelID:       channelID,
		Date:            date,
		UserID:          userID,
		Username:        fmt.Sprintf("user%d", userID),
		OriginMessageID: originID,
		MirrorMessageID: mirrorID,
		CreatedAt:       fixedNow,
	}
	require.NoError(t, repo.UpsertDailyPrompt(context.Background(), prompt))
	return prompt
}
