package tracker

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tallybot/app/internal/storage"
	"go.uber.org/zap"
)

// BeginCycle opens a new daily cycle for a channel: it posts one
// personalized prompt per eligible member and seeds the prompt ledger with
// mirror unresolved. Failures for one member do not abort the rest;
// sends are paced by the configured delay to respect outbound rate limits.
func (t *Tracker) BeginCycle(ctx context.Context, channelID int64) error {
	channel, err := t.repo.GetChannel(ctx, channelID)
	if err != nil {
		return ErrChannelNotFound
	}

	members, err := t.messenger.ListMembers(ctx, channelID)
	if err != nil {
		return NewTransportError("ListMembers", channelID, err)
	}

	loc := t.channelLocation(channel)
	date := t.now().In(loc).Format(storage.DateLayout)

	t.logger.Info("Beginning cycle",
		zap.Int64("channel_id", channelID),
		zap.String("date", date),
		zap.Int("members", len(members)),
	)

	for _, member := range members {
		if member.IsBot {
			continue
		}

		originID, err := t.messenger.Send(ctx, channelID, promptText(member, date))
		if err != nil {
			t.logger.Warn("Failed to post prompt",
				zap.Int64("channel_id", channelID),
				zap.Int64("user_id", member.ID),
				zap.Error(err),
			)
			continue
		}

		// The fresh prompt supersedes the member's previous cycle.
		if err := t.repo.DeleteUserTasks(ctx, channelID, member.ID); err != nil {
			t.logger.Error("Failed to clear previous tasks",
				zap.Int64("channel_id", channelID),
				zap.Int64("user_id", member.ID),
				zap.Error(err),
			)
		}
		if channel.LinkedGroupID != 0 {
			t.graph.RemoveUser(channel.LinkedGroupID, member.ID)
		}

		prompt := &storage.DailyPrompt{
			ChannelID:       channelID,
			Date:            date,
			UserID:          member.ID,
			Username:        member.Username,
			OriginMessageID: originID,
			MirrorMessageID: 0,
			CreatedAt:       t.now().UTC(),
		}
		if err := t.repo.UpsertDailyPrompt(ctx, prompt); err != nil {
			t.logger.Error("Failed to seed prompt row",
				zap.Int64("channel_id", channelID),
				zap.Int64("user_id", member.ID),
				zap.Error(err),
			)
			continue
		}

		if t.sendDelay > 0 {
			time.Sleep(t.sendDelay)
		}
	}

	return nil
}

// EndCycle closes the channel's current cycle: it reads the tasks that
// belong to the latest tracked date, groups them per user, and posts a
// single recap message. A cycle with no tasks produces no recap at all.
func (t *Tracker) EndCycle(ctx context.Context, channelID int64) error {
	if _, err := t.repo.GetChannel(ctx, channelID); err != nil {
		return ErrChannelNotFound
	}

	date, err := t.repo.LatestPromptDate(ctx, channelID)
	if err != nil {
		return fmt.Errorf("tracker: failed to derive cycle date: %w", err)
	}
	if date == "" {
		t.logger.Info("No cycle tracked yet, skipping recap",
			zap.Int64("channel_id", channelID),
		)
		return nil
	}

	prompts, err := t.repo.ListPromptsForDate(ctx, channelID, date)
	if err != nil {
		return fmt.Errorf("tracker: failed to list cycle prompts: %w", err)
	}
	names := make(map[int64]string, len(prompts))
	for _, prompt := range prompts {
		names[prompt.UserID] = prompt.Username
	}

	all, err := t.repo.ListChannelTasks(ctx, channelID)
	if err != nil {
		return fmt.Errorf("tracker: failed to list tasks: %w", err)
	}

	// Only tasks owned by this cycle's prompted members count. A row left
	// behind by a member who dropped out, or whose prompt send failed,
	// belongs to a superseded cycle and stays out of the recap.
	tasks := make([]storage.Task, 0, len(all))
	for _, task := range all {
		if _, prompted := names[task.UserID]; prompted {
			tasks = append(tasks, task)
		}
	}
	if len(tasks) == 0 {
		t.logger.Info("No tasks this cycle, skipping recap",
			zap.Int64("channel_id", channelID),
			zap.String("date", date),
		)
		return nil
	}

	recap := renderRecap(date, tasks, names)
	if _, err := t.messenger.Send(ctx, channelID, recap); err != nil {
		return NewTransportError("Send", channelID, err)
	}

	t.logger.Info("Recap posted",
		zap.Int64("channel_id", channelID),
		zap.String("date", date),
		zap.Int("tasks", len(tasks)),
	)
	return nil
}

func (t *Tracker) channelLocation(channel *storage.Channel) *time.Location {
	loc, err := time.LoadLocation(channel.Timezone)
	if err != nil {
		t.logger.Warn("Stored timezone no longer resolves, using UTC",
			zap.Int64("channel_id", channel.ID),
			zap.String("timezone", channel.Timezone),
		)
		return time.UTC
	}
	return loc
}

func promptText(member Member, date string) string {
	name := member.Username
	if name == "" {
		name = fmt.Sprintf("user %d", member.ID)
	}
	return fmt.Sprintf(
		"🌟 Daily Accountability — %s\n\n@%s, what are you committing to today?\nDeclare each task in the discussion group with /task <text>, then reply ✅ or ❌ to your task message once it is decided.",
		date, name,
	)
}

// renderRecap builds one recap section per user: completed/total counts
// plus the text of every failed task, verbatim.
func renderRecap(date string, tasks []storage.Task, names map[int64]string) string {
	order := make([]int64, 0, len(tasks))
	byUser := make(map[int64][]storage.Task)
	for _, task := range tasks {
		if _, seen := byUser[task.UserID]; !seen {
			order = append(order, task.UserID)
		}
		byUser[task.UserID] = append(byUser[task.UserID], task)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "📊 Daily Recap — %s\n", date)

	for _, userID := range order {
		userTasks := byUser[userID]
		completed := 0
		var failed []string
		for _, task := range userTasks {
			switch task.Status {
			case storage.TaskStatusCompleted:
				completed++
			case storage.TaskStatusFailed:
				failed = append(failed, task.Text)
			}
		}

		name := names[userID]
		if name == "" {
			name = fmt.Sprintf("user %d", userID)
		}
		fmt.Fprintf(&b, "\n@%s: %d/%d completed\n", name, completed, len(userTasks))
		for _, text := range failed {
			fmt.Fprintf(&b, "  ❌ %s\n", text)
		}
	}

	return b.String()
}
