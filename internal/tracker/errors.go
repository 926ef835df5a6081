package tracker

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidTimezone reports a zone name that does not resolve
	// against the timezone database.
	ErrInvalidTimezone = errors.New("invalid timezone")

	// ErrChannelNotFound reports an operation against a chat that was
	// never activated.
	ErrChannelNotFound = errors.New("channel is not registered")

	// ErrNoLinkedGroup reports a channel without a linked discussion group.
	ErrNoLinkedGroup = errors.New("channel has no linked discussion group")

	// ErrNoPromptFound reports task creation by a user with no prompt row
	// for the current cycle.
	ErrNoPromptFound = errors.New("no daily prompt found")

	// ErrMirrorUnresolved reports task creation before the prompt's
	// discussion-group mirror has been observed. The caller may retry
	// once the forward event arrives.
	ErrMirrorUnresolved = errors.New("prompt mirror not resolved yet")
)

// TransportError wraps a Messaging Port failure with operation context.
type TransportError struct {
	Op     string // operation name, e.g. "Send", "Reply"
	ChatID int64
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s chat=%d: %v", e.Op, e.ChatID, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// NewTransportError creates a new TransportError.
func NewTransportError(op string, chatID int64, err error) *TransportError {
	return &TransportError{Op: op, ChatID: chatID, Err: err}
}

// IsRetryable reports whether the caller may legitimately retry the
// failed operation without changing anything first.
func IsRetryable(err error) bool {
	switch {
	case errors.Is(err, ErrMirrorUnresolved):
		return true
	default:
		var transportErr *TransportError
		return errors.As(err, &transportErr)
	}
}
