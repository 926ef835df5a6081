package storage

import "time"

// Channel represents a channels table record: one activated broadcast
// channel together with its timezone and linked discussion group.
type Channel struct {
	ID            int64     `gorm:"column:id;type:bigint;primaryKey;autoIncrement:false"`
	Title         string    `gorm:"column:title;type:text"`
	Timezone      string    `gorm:"column:timezone;type:varchar(64);not null"`
	LinkedGroupID int64     `gorm:"column:linked_group_id;type:bigint;not null;default:0"`
	CreatedAt     time.Time `gorm:"column:created_at;not null;autoCreateTime"`
	UpdatedAt     time.Time `gorm:"column:updated_at;not null;autoUpdateTime"`
}

// TableName implements the gorm Tabler interface.
func (Channel) TableName() string {
	return "channels"
}

// DailyPrompt represents a daily_prompts table record: the prompt posted
// for one user on one cycle day, plus its discussion-group mirror once
// the automatic-forward event has been observed. MirrorMessageID stays 0
// until correlation resolves it.
type DailyPrompt struct {
	ID              int64     `gorm:"column:id;primaryKey;autoIncrement"`
	ChannelID       int64     `gorm:"column:channel_id;type:bigint;not null;uniqueIndex:idx_prompts_channel_date_user"`
	Date            string    `gorm:"column:date;type:varchar(10);not null;uniqueIndex:idx_prompts_channel_date_user"`
	UserID          int64     `gorm:"column:user_id;type:bigint;not null;uniqueIndex:idx_prompts_channel_date_user"`
	Username        string    `gorm:"column:username;type:varchar(64)"`
	OriginMessageID int       `gorm:"column:origin_message_id;type:bigint;not null;index:idx_prompts_origin"`
	MirrorMessageID int       `gorm:"column:mirror_message_id;type:bigint;not null;default:0"`
	CreatedAt       time.Time `gorm:"column:created_at;not null;autoCreateTime"`
}

// TableName implements the gorm Tabler interface.
func (DailyPrompt) TableName() string {
	return "daily_prompts"
}

// Task represents a tasks table record. GroupMessageID is the id of the
// bot's task reply in the discussion group; status replies target it.
type Task struct {
	ID             int64     `gorm:"column:id;primaryKey;autoIncrement"`
	UserID         int64     `gorm:"column:user_id;type:bigint;not null;uniqueIndex:idx_tasks_reply_channel_user"`
	ChannelID      int64     `gorm:"column:channel_id;type:bigint;not null;uniqueIndex:idx_tasks_reply_channel_user;index:idx_tasks_channel"`
	GroupMessageID int       `gorm:"column:group_message_id;type:bigint;not null;uniqueIndex:idx_tasks_reply_channel_user"`
	Text           string    `gorm:"column:task_text;type:text;not null"`
	Status         string    `gorm:"column:status;type:varchar(16);not null;default:'pending'"`
	CreatedAt      time.Time `gorm:"column:created_at;not null;autoCreateTime"`
	UpdatedAt      time.Time `gorm:"column:updated_at;not null;autoUpdateTime"`
}

// TableName implements the gorm Tabler interface.
func (Task) TableName() string {
	return "tasks"
}
