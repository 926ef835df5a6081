package tracker

import (
	"context"
	"time"
)

// Member is one channel member eligible for a daily prompt.
type Member struct {
	ID       int64
	Username string
	IsBot    bool
}

// Messenger is the outbound messaging port. The connector implements it on
// top of the Telegram Bot API; tests substitute a fake.
type Messenger interface {
	// Send posts text to a chat and returns the new message id.
	Send(ctx context.Context, chatID int64, text string) (int, error)
	// Reply posts text as a reply to an existing message and returns the
	// new message id.
	Reply(ctx context.Context, chatID int64, replyToID int, text string) (int, error)
	// Delete removes a message from a chat.
	Delete(ctx context.Context, chatID int64, messageID int) error
	// React sets an emoji reaction on a message.
	React(ctx context.Context, chatID int64, messageID int, emoji string) error
	// ListMembers returns the prompt-eligible members of a channel.
	ListMembers(ctx context.Context, chatID int64) ([]Member, error)
	// LinkedGroup returns the discussion group linked to a channel,
	// or 0 when none is linked.
	LinkedGroup(ctx context.Context, chatID int64) (int64, error)
}

// Event types delivered by the connector.
const (
	EventForward = "forward"
	EventStatus  = "status"
)

// ConnectorEvent is one inbound messaging observation forwarded from the
// connector to the tracker event loop. Forward events carry the origin and
// mirror message ids of an automatic channel-to-group forward; status
// events carry a reply that may target a tracked task.
type ConnectorEvent struct {
	Type            string
	GroupID         int64 // discussion group the message appeared in
	UserID          int64 // author of the message (status events)
	MessageID       int   // id of the observed message
	ReplyToID       int   // id of the message being replied to (status events)
	OriginMessageID int   // channel-post id carried by a forward event
	Text            string
}

// Settings carries the tunables the tracker needs at run time.
type Settings struct {
	// DefaultTimezone is applied when channel activation names no zone.
	DefaultTimezone string
	// SendDelay is the pause between prompt sends during fan-out. It is a
	// deliberate outbound throughput cap, not a correctness requirement.
	SendDelay time.Duration
	// Now supplies the wall clock; nil means time.Now.
	Now func() time.Time
}
