package conversation

import (
	"sync"
	"time"

	"finch-forex-backend/internal/intent"
)

type Sender string

const (
	SenderUser   Sender = "user"
	SenderSystem Sender = "system"
)

type DeliveryStatus string

const (
	StatusPending   DeliveryStatus = "pending"
	StatusLoading   DeliveryStatus = "loading"
	StatusCompleted DeliveryStatus = "completed"
	StatusError     DeliveryStatus = "error"
)

// Message is one chat turn. ID is the message's position in the log and is
// stable for the session.
type Message struct {
	ID        int            `json:"id"`
	Sender    Sender         `json:"sender"`
	Text      string         `json:"text"`
	CreatedAt time.Time      `json:"createdAt"`
	Status    DeliveryStatus `json:"deliveryStatus"`
	Action    *intent.Action `json:"action,omitempty"`
}

// Log is the append-only conversation history. Messages are never removed or
// reordered; the only in-place mutations are resolving the tail loading
// placeholder and patching an action's status. All operations have defined
// behavior — the log never returns errors.
type Log struct {
	mu       sync.RWMutex
	messages []Message
}

func NewLog() *Log {
	return &Log{}
}

// AppendUser appends a completed user message and returns its id.
func (l *Log) AppendUser(text string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.appendLocked(Message{Sender: SenderUser, Text: text, Status: StatusCompleted})
}

// AppendLoadingPlaceholder appends a system message with status loading.
// If a loading placeholder is already at the tail it is a no-op returning
// the existing id, so at most one placeholder ever exists.
func (l *Log) AppendLoadingPlaceholder() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if n := len(l.messages); n > 0 && l.messages[n-1].Status == StatusLoading {
		return l.messages[n-1].ID
	}
	return l.appendLocked(Message{Sender: SenderSystem, Status: StatusLoading})
}

// AppendUserAndPlaceholder appends a user message and its loading placeholder
// as one atomic operation. When a placeholder is already pending at the tail
// the call refuses and appends nothing, so callers get a race-free reservation
// of the single outstanding slot.
func (l *Log) AppendUserAndPlaceholder(text string) (int, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if n := len(l.messages); n > 0 && l.messages[n-1].Status == StatusLoading {
		return 0, false
	}
	l.appendLocked(Message{Sender: SenderUser, Text: text, Status: StatusCompleted})
	return l.appendLocked(Message{Sender: SenderSystem, Status: StatusLoading}), true
}

// ResolvePlaceholder replaces the tail loading placeholder in place. When the
// tail is not a placeholder (a late resolution of an abandoned call), the
// resolution is appended as a new message instead — resolved content is never
// lost. Returns the id of the resolved or appended message.
// The action is copied on the way in; the caller's pointer never aliases
// stored state.
func (l *Log) ResolvePlaceholder(action *intent.Action, text string, status DeliveryStatus) int {
	action = action.Clone()
	l.mu.Lock()
	defer l.mu.Unlock()
	if n := len(l.messages); n > 0 && l.messages[n-1].Status == StatusLoading {
		m := &l.messages[n-1]
		m.Text = text
		m.Action = action
		m.Status = status
		return m.ID
	}
	return l.appendLocked(Message{Sender: SenderSystem, Text: text, Action: action, Status: status})
}

// PatchMessageAction applies mutate to the status of the most recent action
// carrying paymentID. Only that action's status changes; every other message
// is untouched. Returns false when no such message exists.
func (l *Log) PatchMessageAction(paymentID string, mutate func(status string) string) bool {
	if paymentID == "" {
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := len(l.messages) - 1; i >= 0; i-- {
		a := l.messages[i].Action
		if a == nil || a.PaymentID() != paymentID {
			continue
		}
		switch a.Kind {
		case intent.KindPaymentInitiation:
			a.Payment.Status = mutate(a.Payment.Status)
		case intent.KindCurrencyExchange:
			a.Exchange.Status = mutate(a.Exchange.Status)
		}
		return true
	}
	return false
}

// HasPendingPlaceholder reports whether a loading placeholder sits at the
// tail, i.e. a process call is outstanding.
func (l *Log) HasPendingPlaceholder() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	n := len(l.messages)
	return n > 0 && l.messages[n-1].Status == StatusLoading
}

// Messages returns a snapshot of the log in append order. Actions are deep
// copies: the snapshot shares no mutable state with the log, so readers never
// race with PatchMessageAction.
func (l *Log) Messages() []Message {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Message, len(l.messages))
	copy(out, l.messages)
	for i := range out {
		out[i].Action = out[i].Action.Clone()
	}
	return out
}

// Len returns the current message count.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.messages)
}

// Restore replaces the log contents wholesale. Used only when hydrating a
// fresh session from persisted history, before any live appends.
func (l *Log) Restore(messages []Message) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append([]Message(nil), messages...)
	for i := range l.messages {
		l.messages[i].Action = l.messages[i].Action.Clone()
	}
}

func (l *Log) appendLocked(m Message) int {
	m.ID = len(l.messages)
	m.CreatedAt = time.Now()
	l.messages = append(l.messages, m)
	return m.ID
}
