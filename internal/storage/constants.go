package storage

const (
	TaskStatusPending   = "pending"
	TaskStatusCompleted = "completed"
	TaskStatusFailed    = "failed"
)

// DateLayout is the calendar-day format used for DailyPrompt.Date,
// rendered in the owning channel's timezone.
const DateLayout = "2006-01-02"
