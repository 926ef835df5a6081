package mocks

import (
	"context"
	"sync"

	"github.com/tallybot/app/internal/tracker"
)

// MessengerCall records one outbound call made through the mock.
type MessengerCall struct {
	Op        string
	ChatID    int64
	MessageID int
	ReplyToID int
	Text      string
	Emoji     string
}

// MockMessenger is a tracker.Messenger implementation for tests.
type MockMessenger struct {
	mu sync.Mutex

	// Errors defines the error returned per operation name
	// ("send", "reply", "delete", "react", "members", "linked").
	Errors map[string]error

	// Members defines the member list returned per chat id.
	Members map[int64][]tracker.Member

	// Linked defines the linked discussion group per channel id.
	Linked map[int64]int64

	// Calls is the record of every call, in order.
	Calls []MessengerCall

	nextID int
}

// NewMockMessenger creates a MockMessenger that allocates message ids
// starting from 1000.
func NewMockMessenger() *MockMessenger {
	return &MockMessenger{
		Errors:  make(map[string]error),
		Members: make(map[int64][]tracker.Member),
		Linked:  make(map[int64]int64),
		Calls:   make([]MessengerCall, 0),
		nextID:  1000,
	}
}

// ensure MockMessenger implements Messenger
var _ tracker.Messenger = (*MockMessenger)(nil)

// Send implements Messenger.
func (m *MockMessenger) Send(ctx context.Context, chatID int64, text string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, MessengerCall{Op: "send", ChatID: chatID, Text: text})
	if err := m.Errors["send"]; err != nil {
		return 0, err
	}
	m.nextID++
	return m.nextID, nil
}

// Reply implements Messenger.
func (m *MockMessenger) Reply(ctx context.Context, chatID int64, replyToID int, text string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, MessengerCall{Op: "reply", ChatID: chatID, ReplyToID: replyToID, Text: text})
	if err := m.Errors["reply"]; err != nil {
		return 0, err
	}
	m.nextID++
	return m.nextID, nil
}

// Delete implements Messenger.
func (m *MockMessenger) Delete(ctx context.Context, chatID int64, messageID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, MessengerCall{Op: "delete", ChatID: chatID, MessageID: messageID})
	return m.Errors["delete"]
}

// React implements Messenger.
func (m *MockMessenger) React(ctx context.Context, chatID int64, messageID int, emoji string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, MessengerCall{Op: "react", ChatID: chatID, MessageID: messageID, Emoji: emoji})
	return m.Errors["react"]
}

// ListMembers implements Messenger.
func (m *MockMessenger) ListMembers(ctx context.Context, chatID int64) ([]tracker.Member, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, MessengerCall{Op: "members", ChatID: chatID})
	if err := m.Errors["members"]; err != nil {
		return nil, err
	}
	return m.Members[chatID], nil
}

// LinkedGroup implements Messenger.
func (m *MockMessenger) LinkedGroup(ctx context.Context, chatID int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, MessengerCall{Op: "linked", ChatID: chatID})
	if err := m.Errors["linked"]; err != nil {
		return 0, err
	}
	return m.Linked[chatID], nil
}

// SetError sets the error returned by the named operation.
func (m *MockMessenger) SetError(op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Errors[op] = err
}

// CallsFor returns the recorded calls for one operation name.
func (m *MockMessenger) CallsFor(op string) []MessengerCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []MessengerCall
	for _, c := range m.Calls {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

// LastCall returns the most recent call, or nil when nothing was called.
func (m *MockMessenger) LastCall() *MessengerCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Calls) == 0 {
		return nil
	}
	c := m.Calls[len(m.Calls)-1]
	return &c
}

// Reset clears the call record.
func (m *MockMessenger) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = make([]MessengerCall, 0)
}
