package storage

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository provides persistence helpers for the tallybot domain objects.
// It is the only component allowed to touch the tables directly.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a Repository around the given gorm DB.
func NewRepository(db *gorm.DB) (*Repository, error) {
	if db == nil {
		return nil, fmt.Errorf("storage: repository requires a non-nil db handle")
	}
	return &Repository{db: db}, nil
}

// DB returns the underlying gorm DB reference.
func (r *Repository) DB() *gorm.DB {
	return r.db
}

// UpsertChannel registers a channel or refreshes an existing registration.
// Re-activation is the intended update path, so last write wins.
func (r *Repository) UpsertChannel(ctx context.Context, channel *Channel) error {
	if channel == nil {
		return fmt.Errorf("storage: nil channel payload")
	}
	if channel.ID == 0 {
		return fmt.Errorf("storage: empty channel id")
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"title", "timezone", "linked_group_id", "updated_at"}),
		}).
		Create(channel).Error
}

// GetChannel looks up a channel by its identifier.
func (r *Repository) GetChannel(ctx context.Context, channelID int64) (*Channel, error) {
	var channel Channel
	if err := r.db.WithContext(ctx).
		Where("id = ?", channelID).
		First(&channel).Error; err != nil {
		return nil, err
	}
	return &channel, nil
}

// SetChannelTimezone updates the stored timezone of a registered channel.
func (r *Repository) SetChannelTimezone(ctx context.Context, channelID int64, zone string) error {
	if zone == "" {
		return fmt.Errorf("storage: empty timezone")
	}
	res := r.db.WithContext(ctx).
		Model(&Channel{}).
		Where("id = ?", channelID).
		Updates(map[string]interface{}{
			"timezone":   zone,
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// SetChannelLinkedGroup records the discussion group linked to a channel.
func (r *Repository) SetChannelLinkedGroup(ctx context.Context, channelID, groupID int64) error {
	return r.db.WithContext(ctx).
		Model(&Channel{}).
		Where("id = ?", channelID).
		Updates(map[string]interface{}{
			"linked_group_id": groupID,
			"updated_at":      time.Now(),
		}).Error
}

// GetChannelByGroup resolves the channel whose linked discussion group is groupID.
func (r *Repository) GetChannelByGroup(ctx context.Context, groupID int64) (*Channel, error) {
	var channel Channel
	if err := r.db.WithContext(ctx).
		Where("linked_group_id = ?", groupID).
		First(&channel).Error; err != nil {
		return nil, err
	}
	return &channel, nil
}

// ListChannels returns every registered channel.
func (r *Repository) ListChannels(ctx context.Context) ([]Channel, error) {
	var channels []Channel
	if err := r.db.WithContext(ctx).
		Order("created_at ASC").
		Find(&channels).Error; err != nil {
		return nil, err
	}
	return channels, nil
}

// UpsertDailyPrompt seeds a prompt row for (channel, date, user). A stale
// row from a retried fan-out is overwritten, which also resets the mirror
// back to unresolved for the fresh origin message.
func (r *Repository) UpsertDailyPrompt(ctx context.Context, prompt *DailyPrompt) error {
	if prompt == nil {
		return fmt.Errorf("storage: nil prompt payload")
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "channel_id"}, {Name: "date"}, {Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"username", "origin_message_id", "mirror_message_id", "created_at"}),
		}).
		Create(prompt).Error
}

// ResolveMirror performs the conditional first-writer-wins mirror update:
// the mirror id is written only when the row is found by channel and origin
// id and the mirror is still unset. Message ids are sequential per chat, so
// the same origin id exists in unrelated channels; the channel predicate
// keeps a forward from one group off another channel's row. The
// affected-row count lets the caller tell a successful resolution (1) from
// a duplicate or unknown origin (0).
func (r *Repository) ResolveMirror(ctx context.Context, channelID int64, originMessageID, mirrorMessageID int) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&DailyPrompt{}).
		Where("channel_id = ? AND origin_message_id = ? AND mirror_message_id = 0", channelID, originMessageID).
		Update("mirror_message_id", mirrorMessageID)
	return res.RowsAffected, res.Error
}

// GetPromptByOrigin looks up a channel's prompt row by its channel-post
// message id.
func (r *Repository) GetPromptByOrigin(ctx context.Context, channelID int64, originMessageID int) (*DailyPrompt, error) {
	var prompt DailyPrompt
	if err := r.db.WithContext(ctx).
		Where("channel_id = ? AND origin_message_id = ?", channelID, originMessageID).
		First(&prompt).Error; err != nil {
		return nil, err
	}
	return &prompt, nil
}

// LatestPrompt returns the most recent prompt row for a user in a channel.
func (r *Repository) LatestPrompt(ctx context.Context, channelID, userID int64) (*DailyPrompt, error) {
	var prompt DailyPrompt
	if err := r.db.WithContext(ctx).
		Where("channel_id = ? AND user_id = ?", channelID, userID).
		Order("created_at DESC").
		First(&prompt).Error; err != nil {
		return nil, err
	}
	return &prompt, nil
}

// LatestPromptDate returns the most recent cycle date tracked for a channel,
// or the empty string when the channel has no prompts yet.
func (r *Repository) LatestPromptDate(ctx context.Context, channelID int64) (string, error) {
	var result struct {
		MaxDate *string
	}
	if err := r.db.WithContext(ctx).
		Model(&DailyPrompt{}).
		Select("MAX(date) as max_date").
		Where("channel_id = ?", channelID).
		Scan(&result).Error; err != nil {
		return "", err
	}
	if result.MaxDate == nil {
		return "", nil
	}
	return *result.MaxDate, nil
}

// ListPromptsForDate returns a channel's prompt rows for one cycle date.
func (r *Repository) ListPromptsForDate(ctx context.Context, channelID int64, date string) ([]DailyPrompt, error) {
	var prompts []DailyPrompt
	if err := r.db.WithContext(ctx).
		Where("channel_id = ? AND date = ?", channelID, date).
		Order("created_at ASC").
		Find(&prompts).Error; err != nil {
		return nil, err
	}
	return prompts, nil
}

// CreateTask inserts a task row. The unique index over
// (group_message_id, channel_id, user_id) makes duplicate delivery of the
// same inbound event a no-op.
func (r *Repository) CreateTask(ctx context.Context, task *Task) error {
	if task == nil {
		return fmt.Errorf("storage: nil task payload")
	}
	if task.Status == "" {
		task.Status = TaskStatusPending
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "group_message_id"}, {Name: "channel_id"}, {Name: "user_id"}},
			DoNothing: true,
		}).
		Create(task).Error
}

// GetTaskByReply looks up the task whose reply message is being answered,
// scoped to the replying user so one member cannot flip another's task.
func (r *Repository) GetTaskByReply(ctx context.Context, groupMessageID int, channelID, userID int64) (*Task, error) {
	var task Task
	if err := r.db.WithContext(ctx).
		Where("group_message_id = ? AND channel_id = ? AND user_id = ?", groupMessageID, channelID, userID).
		First(&task).Error; err != nil {
		return nil, err
	}
	return &task, nil
}

// UpdateTaskStatus overwrites a task's status. Last writer wins.
func (r *Repository) UpdateTaskStatus(ctx context.Context, taskID int64, status string) error {
	if status == "" {
		return fmt.Errorf("storage: empty status")
	}
	return r.db.WithContext(ctx).
		Model(&Task{}).
		Where("id = ?", taskID).
		Updates(map[string]interface{}{
			"status":     status,
			"updated_at": time.Now(),
		}).Error
}

// ListChannelTasks returns every task currently tracked for a channel.
func (r *Repository) ListChannelTasks(ctx context.Context, channelID int64) ([]Task, error) {
	var tasks []Task
	if err := r.db.WithContext(ctx).
		Where("channel_id = ?", channelID).
		Order("created_at ASC").
		Find(&tasks).Error; err != nil {
		return nil, err
	}
	return tasks, nil
}

// DeleteUserTasks clears a member's tasks when their next cycle prompt is
// posted. Old tasks stay queryable for the recap until then.
func (r *Repository) DeleteUserTasks(ctx context.Context, channelID, userID int64) error {
	return r.db.WithContext(ctx).
		Where("channel_id = ? AND user_id = ?", channelID, userID).
		Delete(&Task{}).Error
}
