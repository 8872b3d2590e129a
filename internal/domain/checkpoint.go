package domain

import (
	"fmt"
	"sort"
	"time"
)

// Checkpoint is a named, restorable snapshot of a session's workflow
// position. Restoring one is a destructive rollback: messages recorded
// after the checkpoint are discarded, not archived.
type Checkpoint struct {
	Name            string         `json:"name"`
	Timestamp       time.Time      `json:"timestamp"`
	State           State          `json:"state"`
	Context         map[string]any `json:"context"`
	Progress        float64        `json:"progress"`
	MessageCount    int            `json:"message_count"`
	ConfidenceScore float64        `json:"confidence_score"`
}

// CreateCheckpoint captures the current state, context, progress,
// confidence, and message count under the given name. An empty name is
// replaced with a timestamp-derived one. Returns the stored checkpoint.
func (s *Session) CreateCheckpoint(name string) Checkpoint {
	now := time.Now().UTC()
	if name == "" {
		name = fmt.Sprintf("checkpoint_%s", now.Format("20060102T150405"))
	}
	cp := Checkpoint{
		Name:            name,
		Timestamp:       now,
		State:           s.CurrentState,
		Context:         copyMap(s.Context),
		Progress:        s.Progress,
		MessageCount:    s.log.Len(),
		ConfidenceScore: s.ConfidenceScore,
	}
	if s.Checkpoints == nil {
		s.Checkpoints = make(map[string]Checkpoint)
	}
	s.Checkpoints[name] = cp
	s.touch()
	return cp
}

// RestoreCheckpoint rolls the session back to the named checkpoint.
// Returns false without mutating anything if no such checkpoint exists.
func (s *Session) RestoreCheckpoint(name string) bool {
	cp, ok := s.Checkpoints[name]
	if !ok {
		return false
	}
	s.CurrentState = cp.State
	s.Context = copyMap(cp.Context)
	s.Progress = cp.Progress
	s.ConfidenceScore = cp.ConfidenceScore
	s.log.Truncate(cp.MessageCount)
	s.touch()
	return true
}

// CheckpointList returns all stored checkpoints, newest first.
func (s *Session) CheckpointList() []Checkpoint {
	out := make([]Checkpoint, 0, len(s.Checkpoints))
	for _, cp := range s.Checkpoints {
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	return out
}

// copyMap deep-copies a context/metadata map so later aggregate mutation
// cannot leak into stored snapshots.
func copyMap(src map[string]any) map[string]any {
	if src == nil {
		return nil
	}
	dst := make(map[string]any, len(src))
	for k, v := range src {
		dst[k] = copyValue(v)
	}
	return dst
}

func copyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return copyMap(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = copyValue(e)
		}
		return out
	default:
		return v
	}
}
