package domain

import (
	"encoding/json"
	"time"
)

// Snapshot is the serialized form of a session: a single structured
// document the store persists as opaque data. Checkpoints travel inside
// the metadata map under the "checkpoints" key.
type Snapshot struct {
	SessionID       string          `json:"session_id"`
	UserID          int64           `json:"user_id"`
	ContextType     string          `json:"context_type"`
	Title           string          `json:"title"`
	CurrentState    State           `json:"current_state"`
	StateHistory    []StateSnapshot `json:"state_history"`
	Context         map[string]any  `json:"context"`
	Metadata        map[string]any  `json:"metadata"`
	Messages        []Message       `json:"messages"`
	Progress        float64         `json:"progress"`
	ConfidenceScore float64         `json:"confidence_score"`
	CreatedAt       time.Time       `json:"created_at"`
	LastUpdated     time.Time       `json:"last_updated"`
	LastSaved       time.Time       `json:"last_saved"`
	LastAutoSave    time.Time       `json:"last_auto_save"`
	TotalTokens     int64           `json:"total_tokens"`
	TotalCost       float64         `json:"total_cost"`
	Active          bool            `json:"active"`
	PausedFromState State           `json:"paused_from_state,omitempty"`
}

// ToSnapshot converts the session to its serialized document form. The
// snapshot owns copies of all nested data; mutating the session afterward
// does not affect it.
func (s *Session) ToSnapshot() Snapshot {
	meta := copyMap(s.Metadata)
	if len(s.Checkpoints) > 0 {
		cps := make(map[string]any, len(s.Checkpoints))
		for name, cp := range s.Checkpoints {
			cps[name] = cp
		}
		if meta == nil {
			meta = make(map[string]any, 1)
		}
		meta["checkpoints"] = cps
	}
	history := make([]StateSnapshot, len(s.StateHistory))
	copy(history, s.StateHistory)
	return Snapshot{
		SessionID:       s.SessionID,
		UserID:          s.UserID,
		ContextType:     s.ContextType,
		Title:           s.Title,
		CurrentState:    s.CurrentState,
		StateHistory:    history,
		Context:         copyMap(s.Context),
		Metadata:        meta,
		Messages:        s.log.All(),
		Progress:        s.Progress,
		ConfidenceScore: s.ConfidenceScore,
		CreatedAt:       s.CreatedAt,
		LastUpdated:     s.LastUpdated,
		LastSaved:       s.LastSaved,
		LastAutoSave:    s.LastAutoSave,
		TotalTokens:     s.TotalTokens,
		TotalCost:       s.TotalCost,
		Active:          s.Active,
		PausedFromState: s.PausedFromState,
	}
}

// FromSnapshot rebuilds a session from its serialized form. The result is
// not dirty: restoration is not a mutation.
func FromSnapshot(snap Snapshot, limits Limits) *Session {
	meta := copyMap(snap.Metadata)
	checkpoints := extractCheckpoints(meta)
	delete(meta, "checkpoints")
	if meta == nil {
		meta = make(map[string]any)
	}
	ctx := copyMap(snap.Context)
	if ctx == nil {
		ctx = make(map[string]any)
	}
	s := &Session{
		SessionID:       snap.SessionID,
		UserID:          snap.UserID,
		ContextType:     snap.ContextType,
		Title:           snap.Title,
		CurrentState:    snap.CurrentState,
		StateHistory:    append([]StateSnapshot(nil), snap.StateHistory...),
		Context:         ctx,
		Metadata:        meta,
		Checkpoints:     checkpoints,
		Progress:        snap.Progress,
		ConfidenceScore: snap.ConfidenceScore,
		CreatedAt:       snap.CreatedAt,
		LastUpdated:     snap.LastUpdated,
		LastSaved:       snap.LastSaved,
		LastAutoSave:    snap.LastAutoSave,
		TotalTokens:     snap.TotalTokens,
		TotalCost:       snap.TotalCost,
		Active:          snap.Active,
		PausedFromState: snap.PausedFromState,
		log:             NewMessageLog(limits.MaxMessages),
		limits:          limits,
	}
	s.log.replace(snap.Messages)
	return s
}

// extractCheckpoints decodes the checkpoints subtree of a metadata map.
// Snapshots decoded from JSON hold them as generic maps; in-memory
// snapshots hold typed Checkpoint values. Both are accepted.
func extractCheckpoints(meta map[string]any) map[string]Checkpoint {
	out := make(map[string]Checkpoint)
	raw, ok := meta["checkpoints"]
	if !ok {
		return out
	}
	switch t := raw.(type) {
	case map[string]Checkpoint:
		for name, cp := range t {
			out[name] = cp
		}
	case map[string]any:
		data, err := json.Marshal(t)
		if err != nil {
			return out
		}
		_ = json.Unmarshal(data, &out)
	}
	return out
}
