// Package domain holds the conversation session aggregate for the course
// authoring workflow: the state machine, the bounded message log, and the
// checkpoint mechanism. The aggregate is persistence-free; all store I/O
// lives in the store and session packages.
package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// DefaultMaxHistory caps the state history when no limit is configured.
const DefaultMaxHistory = 50

// Limits bound the in-memory size of a session.
type Limits struct {
	MaxMessages int
	MaxHistory  int
}

// DefaultLimits returns the standard session size limits.
func DefaultLimits() Limits {
	return Limits{MaxMessages: DefaultMaxMessages, MaxHistory: DefaultMaxHistory}
}

// StateSnapshot records one entry in a session's state history.
type StateSnapshot struct {
	State      State          `json:"state"`
	Timestamp  time.Time      `json:"timestamp"`
	Context    map[string]any `json:"context,omitempty"`
	Progress   float64        `json:"progress"`
	Transition map[string]any `json:"transition,omitempty"`
}

// Session is one instance of the conversational authoring workflow.
//
// Every mutator marks the session dirty; only a successful persisted save
// (via the session manager) clears the flag. Loading from the store does
// not mark the session dirty, which is how "loaded" is distinguished from
// "modified since load".
type Session struct {
	SessionID       string
	UserID          int64
	ContextType     string
	Title           string
	CurrentState    State
	StateHistory    []StateSnapshot
	Context         map[string]any
	Metadata        map[string]any
	Checkpoints     map[string]Checkpoint
	Progress        float64
	ConfidenceScore float64
	CreatedAt       time.Time
	LastUpdated     time.Time
	LastSaved       time.Time
	LastAutoSave    time.Time
	TotalTokens     int64
	TotalCost       float64
	Active          bool
	PausedFromState State

	log    *MessageLog
	limits Limits
	dirty  bool
}

// NewSession creates a fresh session in the initial state. The session id
// is assigned here and never changes.
func NewSession(userID int64, contextType string, limits Limits) *Session {
	now := time.Now().UTC()
	return &Session{
		SessionID:    uuid.New().String(),
		UserID:       userID,
		ContextType:  contextType,
		Title:        "Untitled " + contextType,
		CurrentState: StateInitial,
		Context:      make(map[string]any),
		Metadata:     make(map[string]any),
		Checkpoints:  make(map[string]Checkpoint),
		CreatedAt:    now,
		LastUpdated:  now,
		Active:       true,
		log:          NewMessageLog(limits.MaxMessages),
		limits:       limits,
		// A session that has never been persisted has unsaved data.
		dirty: true,
	}
}

// touch marks the session dirty and bumps LastUpdated.
func (s *Session) touch() {
	s.dirty = true
	s.LastUpdated = time.Now().UTC()
}

// Dirty reports whether the session has unsaved mutations.
func (s *Session) Dirty() bool { return s.dirty }

// MarkSaved clears the dirty flag and records the save time. Called by
// the persistence boundary after a successful store write, never by
// in-memory restoration.
func (s *Session) MarkSaved(at time.Time) {
	s.dirty = false
	s.LastSaved = at
	s.LastAutoSave = at
}

// SetState moves the workflow to newState. A transition to the current
// state is a no-op. Progress follows the fixed lookup table; states
// outside the table (workflow sub-states, paused, abandoned) leave
// progress unchanged.
func (s *Session) SetState(newState State) {
	if newState == s.CurrentState {
		return
	}
	s.CurrentState = newState
	if p, ok := newState.Progress(); ok {
		s.Progress = p
	}
	s.touch()
}

// SaveStateToHistory appends a state snapshot, capping history length by
// dropping the oldest entries. Use before risky or branching transitions
// so the workflow can backtrack.
func (s *Session) SaveStateToHistory(state State, transition map[string]any) {
	s.StateHistory = append(s.StateHistory, StateSnapshot{
		State:      state,
		Timestamp:  time.Now().UTC(),
		Context:    copyMap(s.Context),
		Progress:   s.Progress,
		Transition: transition,
	})
	max := s.limits.MaxHistory
	if max <= 0 {
		max = DefaultMaxHistory
	}
	if len(s.StateHistory) > max {
		overflow := len(s.StateHistory) - max
		s.StateHistory = append(s.StateHistory[:0], s.StateHistory[overflow:]...)
	}
	s.touch()
}

// AddMessage appends a conversation turn stamped with the current state.
// Token and cost figures present in metadata (keys "tokens" and "cost")
// accumulate onto the session totals.
func (s *Session) AddMessage(typ MessageType, content string, metadata map[string]any) (Message, error) {
	if !ValidMessageType(typ) {
		return Message{}, &ValidationError{Field: "type", Reason: "must be user, assistant, or system"}
	}
	if content == "" {
		return Message{}, &ValidationError{Field: "content", Reason: "must not be empty"}
	}
	msg := Message{
		ID:        uuid.New().String(),
		Type:      typ,
		Content:   content,
		Metadata:  metadata,
		Timestamp: time.Now().UTC(),
		State:     s.CurrentState,
	}
	s.log.Append(msg)
	if n, ok := asInt64(metadata["tokens"]); ok {
		s.TotalTokens += n
	}
	if c, ok := asFloat64(metadata["cost"]); ok {
		s.TotalCost += c
	}
	s.touch()
	return msg, nil
}

// Messages returns a copy of the message log in insertion order.
func (s *Session) Messages() []Message { return s.log.All() }

// RecentMessages returns the newest n messages in insertion order.
func (s *Session) RecentMessages(n int) []Message { return s.log.Recent(n) }

// MessagesByType returns all messages of the given type.
func (s *Session) MessagesByType(t MessageType) []Message { return s.log.ByType(t) }

// MessageCount returns the number of messages currently held.
func (s *Session) MessageCount() int { return s.log.Len() }

// ClearMessages empties the message log. There is no soft delete.
func (s *Session) ClearMessages() {
	s.log.Clear()
	s.touch()
}

// SetContext replaces the value stored under key.
func (s *Session) SetContext(key string, value any) {
	if s.Context == nil {
		s.Context = make(map[string]any)
	}
	s.Context[key] = value
	s.touch()
}

// MergeContext merges the given values into the working context,
// replacing per key.
func (s *Session) MergeContext(values map[string]any) {
	if s.Context == nil {
		s.Context = make(map[string]any)
	}
	for k, v := range values {
		s.Context[k] = v
	}
	s.touch()
}

// SetTitle updates the human-readable label.
func (s *Session) SetTitle(title string) {
	s.Title = title
	s.touch()
}

// SetProgress overrides the derived progress, clamped to [0,100].
func (s *Session) SetProgress(p float64) {
	s.Progress = clamp(p, 0, 100)
	s.touch()
}

// SetConfidence updates the confidence score, clamped to [0,1].
func (s *Session) SetConfidence(c float64) {
	s.ConfidenceScore = clamp(c, 0, 1)
	s.touch()
}

// Pause deactivates the session, remembering the state to return to.
func (s *Session) Pause(reason string) {
	s.PausedFromState = s.CurrentState
	s.SetState(StatePaused)
	s.Active = false
	if reason == "" {
		reason = "no reason given"
	}
	s.systemMessage("Session paused: " + reason)
}

// Resume reactivates the session, restoring the pre-pause state when one
// was recorded.
func (s *Session) Resume() {
	s.Active = true
	if s.PausedFromState != "" {
		s.SetState(s.PausedFromState)
		s.PausedFromState = ""
	}
	s.systemMessage("Session resumed")
}

// Complete marks the workflow finished. Safe to call repeatedly; the
// completion metadata is overwritten each time.
func (s *Session) Complete(completionData map[string]any) {
	s.SetState(StateCompleted)
	s.Progress = 100
	s.Active = false
	s.Metadata["completion"] = map[string]any{
		"completed_at": time.Now().UTC(),
		"data":         completionData,
	}
	s.systemMessage("Session completed")
}

// Abandon marks the workflow abandoned, leaving progress where it was.
func (s *Session) Abandon(reason string) {
	s.SetState(StateAbandoned)
	s.Active = false
	s.Metadata["abandoned"] = map[string]any{
		"abandoned_at": time.Now().UTC(),
		"reason":       reason,
	}
	if reason == "" {
		reason = "no reason given"
	}
	s.systemMessage("Session abandoned: " + reason)
}

// IsExpired reports whether the session has been idle longer than timeout.
func (s *Session) IsExpired(timeout time.Duration) bool {
	return time.Since(s.LastUpdated) > timeout
}

func (s *Session) systemMessage(content string) {
	msg := Message{
		ID:        uuid.New().String(),
		Type:      MessageSystem,
		Content:   content,
		Timestamp: time.Now().UTC(),
		State:     s.CurrentState,
	}
	s.log.Append(msg)
	s.touch()
}

// Summary is the JSON shape exposed to the caller/UI boundary.
type Summary struct {
	SessionID       string         `json:"session_id"`
	UserID          int64          `json:"user_id"`
	ContextType     string         `json:"context_type"`
	Title           string         `json:"title"`
	CurrentState    State          `json:"current_state"`
	Progress        float64        `json:"progress"`
	ConfidenceScore float64        `json:"confidence_score"`
	Messages        []Message      `json:"messages"`
	Context         map[string]any `json:"context"`
	TotalTokens     int64          `json:"total_tokens"`
	TotalCost       float64        `json:"total_cost"`
	IsActive        bool           `json:"is_active"`
	CreatedAt       time.Time      `json:"created_at"`
	LastUpdated     time.Time      `json:"last_updated"`
}

// Summarize builds the caller-facing view of the session.
func (s *Session) Summarize() Summary {
	return Summary{
		SessionID:       s.SessionID,
		UserID:          s.UserID,
		ContextType:     s.ContextType,
		Title:           s.Title,
		CurrentState:    s.CurrentState,
		Progress:        s.Progress,
		ConfidenceScore: s.ConfidenceScore,
		Messages:        s.log.All(),
		Context:         copyMap(s.Context),
		TotalTokens:     s.TotalTokens,
		TotalCost:       s.TotalCost,
		IsActive:        s.Active,
		CreatedAt:       s.CreatedAt,
		LastUpdated:     s.LastUpdated,
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func asInt64(v any) (int64, bool) {
	switch t := v.(type) {
	case int:
		return int64(t), true
	case int64:
		return t, true
	case float64:
		return int64(t), true
	case json.Number:
		n, err := t.Int64()
		return n, err == nil
	}
	return 0, false
}

func asFloat64(v any) (float64, bool) {
	switch t := v.(type) {
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case float64:
		return t, true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	}
	return 0, false
}
