package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/coursewright/coursewright/internal/domain"
)

// SQLiteStore implements SessionStore backed by SQLite.
type SQLiteStore struct {
	db *DB
}

// NewSQLiteStore creates a session store using the given database.
func NewSQLiteStore(db *DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// Upsert writes the snapshot as a single row. The statement is a single
// atomic INSERT ... ON CONFLICT, so a mid-write failure never leaves a
// session partially updated.
func (s *SQLiteStore) Upsert(ctx context.Context, snap domain.Snapshot) error {
	contextJSON, err := marshalField("context", snap.Context)
	if err != nil {
		return err
	}
	metadataJSON, err := marshalField("metadata", snap.Metadata)
	if err != nil {
		return err
	}
	messagesJSON, err := marshalField("messages", snap.Messages)
	if err != nil {
		return err
	}
	historyJSON, err := marshalField("state_history", snap.StateHistory)
	if err != nil {
		return err
	}

	_, err = s.db.sql.ExecContext(ctx, `
		INSERT INTO sessions (
			session_id, user_id, context_type, title, current_state,
			progress, confidence_score, total_tokens, total_cost,
			active, paused_from_state, context, metadata, messages,
			state_history, created_at, last_updated, last_saved, last_auto_save
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET
			title = excluded.title,
			current_state = excluded.current_state,
			progress = excluded.progress,
			confidence_score = excluded.confidence_score,
			total_tokens = excluded.total_tokens,
			total_cost = excluded.total_cost,
			active = excluded.active,
			paused_from_state = excluded.paused_from_state,
			context = excluded.context,
			metadata = excluded.metadata,
			messages = excluded.messages,
			state_history = excluded.state_history,
			last_updated = excluded.last_updated,
			last_saved = excluded.last_saved,
			last_auto_save = excluded.last_auto_save`,
		snap.SessionID, snap.UserID, snap.ContextType, snap.Title, string(snap.CurrentState),
		snap.Progress, snap.ConfidenceScore, snap.TotalTokens, snap.TotalCost,
		boolToInt(snap.Active), string(snap.PausedFromState), contextJSON, metadataJSON, messagesJSON,
		historyJSON, fmtTime(snap.CreatedAt), fmtTime(snap.LastUpdated), fmtTime(snap.LastSaved), fmtTime(snap.LastAutoSave),
	)
	if err != nil {
		return fmt.Errorf("upserting session %s: %w", snap.SessionID, err)
	}
	return nil
}

// Get returns the snapshot for id, or ErrNotFound.
func (s *SQLiteStore) Get(ctx context.Context, id string) (domain.Snapshot, error) {
	var (
		snap                                              domain.Snapshot
		state, paused                                     string
		active                                            int
		contextJSON, metadataJSON, messagesJSON, histJSON string
		createdAt, lastUpdated, lastSaved, lastAutoSave   string
	)

	err := s.db.sql.QueryRowContext(ctx, `
		SELECT session_id, user_id, context_type, title, current_state,
		       progress, confidence_score, total_tokens, total_cost,
		       active, paused_from_state, context, metadata, messages,
		       state_history, created_at, last_updated, last_saved, last_auto_save
		FROM sessions WHERE session_id = ?`, id,
	).Scan(
		&snap.SessionID, &snap.UserID, &snap.ContextType, &snap.Title, &state,
		&snap.Progress, &snap.ConfidenceScore, &snap.TotalTokens, &snap.TotalCost,
		&active, &paused, &contextJSON, &metadataJSON, &messagesJSON,
		&histJSON, &createdAt, &lastUpdated, &lastSaved, &lastAutoSave,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Snapshot{}, ErrNotFound
	}
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("loading session %s: %w", id, err)
	}

	snap.CurrentState = domain.State(state)
	snap.PausedFromState = domain.State(paused)
	snap.Active = active != 0
	snap.CreatedAt = parseTime(createdAt)
	snap.LastUpdated = parseTime(lastUpdated)
	snap.LastSaved = parseTime(lastSaved)
	snap.LastAutoSave = parseTime(lastAutoSave)

	if err := unmarshalField("context", contextJSON, &snap.Context); err != nil {
		return domain.Snapshot{}, err
	}
	if err := unmarshalField("metadata", metadataJSON, &snap.Metadata); err != nil {
		return domain.Snapshot{}, err
	}
	if err := unmarshalField("messages", messagesJSON, &snap.Messages); err != nil {
		return domain.Snapshot{}, err
	}
	if err := unmarshalField("state_history", histJSON, &snap.StateHistory); err != nil {
		return domain.Snapshot{}, err
	}
	return snap, nil
}

// ListByUser returns summaries for the user's sessions, most recently
// updated first. An empty contextType matches all workflows.
func (s *SQLiteStore) ListByUser(ctx context.Context, userID int64, contextType string) ([]Summary, error) {
	query := `
		SELECT session_id, user_id, context_type, title, current_state,
		       progress, active, created_at, last_updated
		FROM sessions WHERE user_id = ?`
	args := []any{userID}
	if contextType != "" {
		query += " AND context_type = ?"
		args = append(args, contextType)
	}
	query += " ORDER BY last_updated DESC"

	rows, err := s.db.sql.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing sessions for user %d: %w", userID, err)
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var (
			sum                    Summary
			state                  string
			active                 int
			createdAt, lastUpdated string
		)
		if err := rows.Scan(&sum.SessionID, &sum.UserID, &sum.ContextType, &sum.Title, &state,
			&sum.Progress, &active, &createdAt, &lastUpdated); err != nil {
			return nil, fmt.Errorf("scanning session summary: %w", err)
		}
		sum.CurrentState = domain.State(state)
		sum.Active = active != 0
		sum.CreatedAt = parseTime(createdAt)
		sum.LastUpdated = parseTime(lastUpdated)
		out = append(out, sum)
	}
	return out, rows.Err()
}

// ListExpired returns ids of sessions idle since cutoff or earlier.
func (s *SQLiteStore) ListExpired(ctx context.Context, cutoff time.Time) ([]string, error) {
	rows, err := s.db.sql.QueryContext(ctx,
		`SELECT session_id FROM sessions WHERE last_updated <= ?`, fmtTime(cutoff))
	if err != nil {
		return nil, fmt.Errorf("listing expired sessions: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning expired session id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Delete removes the session row. Absent ids are ignored.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	if _, err := s.db.sql.ExecContext(ctx, `DELETE FROM sessions WHERE session_id = ?`, id); err != nil {
		return fmt.Errorf("deleting session %s: %w", id, err)
	}
	return nil
}

// Count returns the number of sessions owned by the user.
func (s *SQLiteStore) Count(ctx context.Context, userID int64) (int, error) {
	var n int
	err := s.db.sql.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sessions WHERE user_id = ?`, userID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting sessions for user %d: %w", userID, err)
	}
	return n, nil
}

func marshalField(name string, v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("serializing %s: %w", name, err)
	}
	return string(data), nil
}

func unmarshalField(name, data string, target any) error {
	if data == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(data), target); err != nil {
		return fmt.Errorf("deserializing %s: %w", name, err)
	}
	return nil
}

// timeLayout is RFC 3339 with fixed-width nanoseconds: snapshots
// round-trip exactly and lexicographic comparison matches time order,
// which the expiry query relies on.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func fmtTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
