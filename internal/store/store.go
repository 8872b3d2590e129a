// Package store provides durable persistence for serialized session
// snapshots, keyed by session id and queryable by owning user.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/coursewright/coursewright/internal/domain"
)

// ErrNotFound is returned when no snapshot exists for a session id.
var ErrNotFound = errors.New("session not found")

// Summary is a lightweight listing row for a stored session.
type Summary struct {
	SessionID    string       `json:"session_id"`
	UserID       int64        `json:"user_id"`
	ContextType  string       `json:"context_type"`
	Title        string       `json:"title"`
	CurrentState domain.State `json:"current_state"`
	Progress     float64      `json:"progress"`
	Active       bool         `json:"is_active"`
	CreatedAt    time.Time    `json:"created_at"`
	LastUpdated  time.Time    `json:"last_updated"`
}

// SessionStore persists session snapshots. The engine treats context,
// metadata, messages, and state history as opaque structured data it
// (de)serializes itself; implementations only need to store and return
// them faithfully.
//
// Concurrent writers race with last-write-wins semantics: there is no
// version check, and the newest Upsert for an id simply replaces the row.
type SessionStore interface {
	// Upsert writes the snapshot, replacing any existing row for its id.
	// The write is atomic: a failure mid-write leaves the previous row
	// intact.
	Upsert(ctx context.Context, snap domain.Snapshot) error

	// Get returns the snapshot for id, or ErrNotFound.
	Get(ctx context.Context, id string) (domain.Snapshot, error)

	// ListByUser returns summaries for the user's sessions ordered most
	// recently updated first, optionally filtered by context type.
	ListByUser(ctx context.Context, userID int64, contextType string) ([]Summary, error)

	// ListExpired returns the ids of sessions whose last update is at or
	// before cutoff.
	ListExpired(ctx context.Context, cutoff time.Time) ([]string, error)

	// Delete removes the snapshot for id. Deleting an absent id is not
	// an error, so cleanup sweeps stay idempotent.
	Delete(ctx context.Context, id string) error

	// Count returns the number of stored sessions owned by the user.
	Count(ctx context.Context, userID int64) (int, error)
}
