package domain

import "time"

// MessageType classifies a conversation turn.
type MessageType string

const (
	MessageUser      MessageType = "user"
	MessageAssistant MessageType = "assistant"
	MessageSystem    MessageType = "system"
)

// ValidMessageType reports whether t is one of the accepted turn types.
func ValidMessageType(t MessageType) bool {
	switch t {
	case MessageUser, MessageAssistant, MessageSystem:
		return true
	}
	return false
}

// Message is a single turn in a conversation.
type Message struct {
	ID        string         `json:"id"`
	Type      MessageType    `json:"type"`
	Content   string         `json:"content"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	State     State          `json:"state"`
}

// MessageLog is a bounded, append-only message buffer. When the capacity
// is reached, appending drops the oldest entries; insertion order of the
// survivors is preserved.
type MessageLog struct {
	max  int
	msgs []Message
}

// DefaultMaxMessages caps the message log when no explicit limit is configured.
const DefaultMaxMessages = 200

// NewMessageLog creates a message log holding at most max entries.
func NewMessageLog(max int) *MessageLog {
	if max <= 0 {
		max = DefaultMaxMessages
	}
	return &MessageLog{max: max}
}

// Append adds a message, evicting the oldest entries if over capacity.
func (l *MessageLog) Append(m Message) {
	l.msgs = append(l.msgs, m)
	if len(l.msgs) > l.max {
		overflow := len(l.msgs) - l.max
		l.msgs = append(l.msgs[:0], l.msgs[overflow:]...)
	}
}

// Len returns the number of stored messages.
func (l *MessageLog) Len() int { return len(l.msgs) }

// Max returns the configured capacity.
func (l *MessageLog) Max() int { return l.max }

// All returns a copy of every stored message in insertion order.
func (l *MessageLog) All() []Message {
	out := make([]Message, len(l.msgs))
	copy(out, l.msgs)
	return out
}

// Recent returns a copy of the newest n messages in insertion order.
func (l *MessageLog) Recent(n int) []Message {
	if n <= 0 {
		return []Message{}
	}
	if n > len(l.msgs) {
		n = len(l.msgs)
	}
	out := make([]Message, n)
	copy(out, l.msgs[len(l.msgs)-n:])
	return out
}

// ByType returns a copy of all messages with the given type.
func (l *MessageLog) ByType(t MessageType) []Message {
	var out []Message
	for _, m := range l.msgs {
		if m.Type == t {
			out = append(out, m)
		}
	}
	return out
}

// Truncate keeps only the first n messages, discarding the rest.
func (l *MessageLog) Truncate(n int) {
	if n < 0 {
		n = 0
	}
	if n < len(l.msgs) {
		l.msgs = l.msgs[:n]
	}
}

// Clear removes all messages.
func (l *MessageLog) Clear() {
	l.msgs = nil
}

// replace swaps the full contents, trimming to capacity from the front.
func (l *MessageLog) replace(msgs []Message) {
	if len(msgs) > l.max {
		msgs = msgs[len(msgs)-l.max:]
	}
	l.msgs = append([]Message(nil), msgs...)
}
