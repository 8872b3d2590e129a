// Package session orchestrates the conversation session lifecycle:
// create, load, save, auto-save, expiry cleanup, and per-user eviction.
//
// The engine is request-scoped: each unit of work loads a session,
// mutates it in memory, and saves it back. Concurrent cycles against the
// same session id race at the store with last-write-wins semantics; there
// is no optimistic locking.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/coursewright/coursewright/internal/domain"
	"github.com/coursewright/coursewright/internal/logging"
	"github.com/coursewright/coursewright/internal/store"
)

// Defaults for manager configuration.
const (
	DefaultMaxPerUser       = 10
	DefaultAutoSaveInterval = 30 * time.Second
	DefaultExpiry           = 60 * time.Minute
)

// Config tunes the session manager.
type Config struct {
	Limits           domain.Limits
	MaxPerUser       int           // live sessions per user before LRU eviction
	AutoSaveInterval time.Duration // minimum gap between auto-saves
	Expiry           time.Duration // idle timeout before a session expires
	CacheTTL         time.Duration // read cache TTL; zero disables the cache
}

// DefaultConfig returns the standard manager settings.
func DefaultConfig() Config {
	return Config{
		Limits:           domain.DefaultLimits(),
		MaxPerUser:       DefaultMaxPerUser,
		AutoSaveInterval: DefaultAutoSaveInterval,
		Expiry:           DefaultExpiry,
	}
}

func (c *Config) fillZero() {
	if c.Limits.MaxMessages == 0 && c.Limits.MaxHistory == 0 {
		c.Limits = domain.DefaultLimits()
	}
	if c.MaxPerUser == 0 {
		c.MaxPerUser = DefaultMaxPerUser
	}
	if c.AutoSaveInterval == 0 {
		c.AutoSaveInterval = DefaultAutoSaveInterval
	}
	if c.Expiry == 0 {
		c.Expiry = DefaultExpiry
	}
}

// Manager drives the session lifecycle against a SessionStore.
type Manager struct {
	store store.SessionStore
	cfg   Config
	log   *logging.Logger
	cache *readCache
}

// NewManager creates a session manager. Zero-valued config fields fall
// back to defaults.
func NewManager(ss store.SessionStore, cfg Config, log *logging.Logger) *Manager {
	cfg.fillZero()
	m := &Manager{
		store: ss,
		cfg:   cfg,
		log:   log.Sub("session"),
	}
	if cfg.CacheTTL > 0 {
		m.cache = newReadCache(cfg.CacheTTL)
	}
	return m
}

// Create allocates a fresh session for the user. Nothing is persisted
// until Save is called.
func (m *Manager) Create(ctx context.Context, userID int64, contextType string, metadata map[string]any) (*domain.Session, error) {
	if userID <= 0 {
		return nil, &domain.ValidationError{Field: "user_id", Reason: "must be positive"}
	}
	if contextType == "" {
		return nil, &domain.ValidationError{Field: "context_type", Reason: "must not be empty"}
	}

	s := domain.NewSession(userID, contextType, m.cfg.Limits)
	for k, v := range metadata {
		s.Metadata[k] = v
	}
	m.log.Debug().Str("session", s.SessionID).Int64("user", userID).Str("context_type", contextType).Msg("session created")
	return s, nil
}

// Load deserializes the session from the store. The returned session is
// not dirty. Expired sessions yield an ExpiredSessionError; use Resume to
// reactivate one.
func (m *Manager) Load(ctx context.Context, id string) (*domain.Session, error) {
	s, err := m.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.IsExpired(m.cfg.Expiry) {
		return nil, &ExpiredSessionError{SessionID: id, LastUpdated: s.LastUpdated}
	}
	return s, nil
}

func (m *Manager) load(ctx context.Context, id string) (*domain.Session, error) {
	if id == "" {
		return nil, &domain.ValidationError{Field: "session_id", Reason: "must not be empty"}
	}
	if m.cache != nil {
		if snap, ok := m.cache.get(id); ok {
			return domain.FromSnapshot(snap, m.cfg.Limits), nil
		}
	}
	snap, err := m.store.Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, &NotFoundError{SessionID: id}
	}
	if err != nil {
		return nil, &PersistenceError{Op: "load", SessionID: id, Err: err}
	}
	if m.cache != nil {
		m.cache.put(snap)
	}
	return domain.FromSnapshot(snap, m.cfg.Limits), nil
}

// Save persists the session snapshot. A clean session short-circuits to a
// no-op; use ForceSave to write regardless. On success the dirty flag is
// cleared; on failure it stays set so the caller may retry.
func (m *Manager) Save(ctx context.Context, s *domain.Session) error {
	if !s.Dirty() {
		return nil
	}
	return m.ForceSave(ctx, s)
}

// ForceSave persists the session even when it is clean.
func (m *Manager) ForceSave(ctx context.Context, s *domain.Session) error {
	if err := m.store.Upsert(ctx, s.ToSnapshot()); err != nil {
		return &PersistenceError{Op: "save", SessionID: s.SessionID, Err: err}
	}
	s.MarkSaved(time.Now().UTC())
	if m.cache != nil {
		m.cache.invalidate(s.SessionID)
	}
	m.evictOverCap(ctx, s.UserID, s.SessionID)
	return nil
}

// ShouldAutoSave reports whether the caller should save now: the session
// is dirty and at least the configured interval has passed since the last
// auto-save. The manager runs no background timer; the request-handling
// layer invokes this at the end of each request.
func (m *Manager) ShouldAutoSave(s *domain.Session) bool {
	return s.Dirty() && time.Since(s.LastAutoSave) >= m.cfg.AutoSaveInterval
}

// AutoSave saves the session when the auto-save policy fires. Failures
// degrade to a logged warning; the session stays dirty and the next
// eligible request retries.
func (m *Manager) AutoSave(ctx context.Context, s *domain.Session) {
	if !m.ShouldAutoSave(s) {
		return
	}
	if err := m.Save(ctx, s); err != nil {
		m.log.Warn().Err(err).Str("session", s.SessionID).Msg("auto-save failed, will retry on next eligible request")
	}
}

// Resume reactivates a session regardless of expiry, restoring the
// pre-pause state when one was recorded, and persists the result.
func (m *Manager) Resume(ctx context.Context, id string) (*domain.Session, error) {
	s, err := m.load(ctx, id)
	if err != nil {
		return nil, err
	}
	s.Resume()
	if err := m.Save(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

// UserSessions lists the user's stored sessions, most recently updated
// first, optionally filtered by context type.
func (m *Manager) UserSessions(ctx context.Context, userID int64, contextType string) ([]store.Summary, error) {
	if userID <= 0 {
		return nil, &domain.ValidationError{Field: "user_id", Reason: "must be positive"}
	}
	sums, err := m.store.ListByUser(ctx, userID, contextType)
	if err != nil {
		return nil, &PersistenceError{Op: "list", Err: err}
	}
	return sums, nil
}

// Delete removes the session from the store and cache.
func (m *Manager) Delete(ctx context.Context, id string) error {
	if id == "" {
		return &domain.ValidationError{Field: "session_id", Reason: "must not be empty"}
	}
	if err := m.store.Delete(ctx, id); err != nil {
		return &PersistenceError{Op: "delete", SessionID: id, Err: err}
	}
	if m.cache != nil {
		m.cache.invalidate(id)
	}
	return nil
}

// CleanupExpired purges sessions idle longer than the configured expiry.
// Safe to call concurrently and repeatedly: already-removed sessions are
// simply skipped. Returns the number of sessions removed.
func (m *Manager) CleanupExpired(ctx context.Context) (int, error) {
	cutoff := time.Now().UTC().Add(-m.cfg.Expiry)
	ids, err := m.store.ListExpired(ctx, cutoff)
	if err != nil {
		return 0, &PersistenceError{Op: "cleanup", Err: err}
	}

	removed := 0
	for _, id := range ids {
		if err := m.store.Delete(ctx, id); err != nil {
			m.log.Warn().Err(err).Str("session", id).Msg("failed to purge expired session")
			continue
		}
		if m.cache != nil {
			m.cache.invalidate(id)
		}
		removed++
	}
	if removed > 0 {
		m.log.Info().Int("removed", removed).Msg("expired sessions purged")
	}
	return removed, nil
}

// evictOverCap removes the user's least-recently-updated sessions once
// the per-user cap is exceeded. The session just saved is never evicted.
func (m *Manager) evictOverCap(ctx context.Context, userID int64, keepID string) {
	sums, err := m.store.ListByUser(ctx, userID, "")
	if err != nil {
		m.log.Warn().Err(err).Int64("user", userID).Msg("eviction scan failed")
		return
	}
	if len(sums) <= m.cfg.MaxPerUser {
		return
	}
	// Summaries arrive most-recently-updated first; evict from the tail.
	for _, sum := range sums[m.cfg.MaxPerUser:] {
		if sum.SessionID == keepID {
			continue
		}
		if err := m.store.Delete(ctx, sum.SessionID); err != nil {
			m.log.Warn().Err(err).Str("session", sum.SessionID).Msg("eviction delete failed")
			continue
		}
		if m.cache != nil {
			m.cache.invalidate(sum.SessionID)
		}
		m.log.Info().Str("session", sum.SessionID).Int64("user", userID).Msg("evicted least-recently-updated session over per-user cap")
	}
}

// Expiry returns the configured idle timeout.
func (m *Manager) Expiry() time.Duration { return m.cfg.Expiry }
