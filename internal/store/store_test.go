package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/coursewright/coursewright/internal/domain"
	"github.com/coursewright/coursewright/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	log := logging.New(nil, "silent")
	db, err := Open(":memory:", log)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

// eachStore runs the test against both SessionStore implementations.
func eachStore(t *testing.T, fn func(t *testing.T, ss SessionStore)) {
	t.Helper()
	t.Run("sqlite", func(t *testing.T) {
		fn(t, NewSQLiteStore(testDB(t)))
	})
	t.Run("memory", func(t *testing.T) {
		fn(t, NewMemoryStore())
	})
}

func testSnapshot(t *testing.T, userID int64) domain.Snapshot {
	t.Helper()
	s := domain.NewSession(userID, "course_creation", domain.DefaultLimits())
	s.SetState(domain.StateRequirementsGathering)
	s.SetContext("topic", "Go basics")
	_, err := s.AddMessage(domain.MessageUser, "hello", map[string]any{"tokens": 12, "cost": 0.0003})
	require.NoError(t, err)
	return s.ToSnapshot()
}

// --- Migration tests ---

func TestOpen_InMemory(t *testing.T) {
	db := testDB(t)
	assert.NotNil(t, db)
	assert.NotNil(t, db.SQL())
}

func TestMigrations_Applied(t *testing.T) {
	db := testDB(t)

	var count int
	err := db.sql.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, len(migrations), count)
}

func TestMigrations_Idempotent(t *testing.T) {
	db := testDB(t)

	err := db.migrate()
	require.NoError(t, err)

	var count int
	err = db.sql.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, len(migrations), count)
}

// --- SessionStore contract tests ---

func TestStore_UpsertAndGet_RoundTrip(t *testing.T) {
	eachStore(t, func(t *testing.T, ss SessionStore) {
		ctx := context.Background()
		snap := testSnapshot(t, 7)

		require.NoError(t, ss.Upsert(ctx, snap))

		got, err := ss.Get(ctx, snap.SessionID)
		require.NoError(t, err)

		assert.Equal(t, snap.SessionID, got.SessionID)
		assert.Equal(t, snap.UserID, got.UserID)
		assert.Equal(t, snap.CurrentState, got.CurrentState)
		assert.Equal(t, snap.Progress, got.Progress)
		assert.Equal(t, snap.TotalTokens, got.TotalTokens)
		assert.InDelta(t, snap.TotalCost, got.TotalCost, 1e-9)
		assert.Equal(t, "Go basics", got.Context["topic"])
		require.Len(t, got.Messages, 1)
		assert.Equal(t, "hello", got.Messages[0].Content)
		assert.Equal(t, snap.Messages[0].ID, got.Messages[0].ID)
	})
}

func TestStore_Get_NotFound(t *testing.T) {
	eachStore(t, func(t *testing.T, ss SessionStore) {
		_, err := ss.Get(context.Background(), "nonexistent")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestStore_Upsert_LastWriteWins(t *testing.T) {
	eachStore(t, func(t *testing.T, ss SessionStore) {
		ctx := context.Background()

		s := domain.NewSession(3, "course_creation", domain.DefaultLimits())
		_, _ = s.AddMessage(domain.MessageUser, "first version", nil)
		require.NoError(t, ss.Upsert(ctx, s.ToSnapshot()))

		s.ClearMessages()
		_, _ = s.AddMessage(domain.MessageUser, "second version", nil)
		require.NoError(t, ss.Upsert(ctx, s.ToSnapshot()))

		got, err := ss.Get(ctx, s.SessionID)
		require.NoError(t, err)
		require.Len(t, got.Messages, 1)
		assert.Equal(t, "second version", got.Messages[0].Content)
	})
}

func TestStore_ListByUser_MRUOrder(t *testing.T) {
	eachStore(t, func(t *testing.T, ss SessionStore) {
		ctx := context.Background()
		base := time.Now().UTC()

		for i := 0; i < 3; i++ {
			snap := testSnapshot(t, 5)
			snap.Title = fmt.Sprintf("session %d", i)
			snap.LastUpdated = base.Add(time.Duration(i) * time.Minute)
			require.NoError(t, ss.Upsert(ctx, snap))
		}
		// Another user's session must not appear
		require.NoError(t, ss.Upsert(ctx, testSnapshot(t, 99)))

		sums, err := ss.ListByUser(ctx, 5, "")
		require.NoError(t, err)
		require.Len(t, sums, 3)
		assert.Equal(t, "session 2", sums[0].Title)
		assert.Equal(t, "session 0", sums[2].Title)
	})
}

func TestStore_ListByUser_ContextFilter(t *testing.T) {
	eachStore(t, func(t *testing.T, ss SessionStore) {
		ctx := context.Background()

		course := testSnapshot(t, 8)
		require.NoError(t, ss.Upsert(ctx, course))

		quiz := domain.NewSession(8, "quiz_creation", domain.DefaultLimits()).ToSnapshot()
		require.NoError(t, ss.Upsert(ctx, quiz))

		sums, err := ss.ListByUser(ctx, 8, "course_creation")
		require.NoError(t, err)
		require.Len(t, sums, 1)
		assert.Equal(t, "course_creation", sums[0].ContextType)

		all, err := ss.ListByUser(ctx, 8, "")
		require.NoError(t, err)
		assert.Len(t, all, 2)
	})
}

func TestStore_ListExpired(t *testing.T) {
	eachStore(t, func(t *testing.T, ss SessionStore) {
		ctx := context.Background()
		now := time.Now().UTC()

		stale := testSnapshot(t, 1)
		stale.LastUpdated = now.Add(-61 * time.Minute)
		require.NoError(t, ss.Upsert(ctx, stale))

		fresh := testSnapshot(t, 1)
		fresh.LastUpdated = now.Add(-30 * time.Minute)
		require.NoError(t, ss.Upsert(ctx, fresh))

		ids, err := ss.ListExpired(ctx, now.Add(-60*time.Minute))
		require.NoError(t, err)
		require.Len(t, ids, 1)
		assert.Equal(t, stale.SessionID, ids[0])
	})
}

func TestStore_Delete_Idempotent(t *testing.T) {
	eachStore(t, func(t *testing.T, ss SessionStore) {
		ctx := context.Background()
		snap := testSnapshot(t, 2)
		require.NoError(t, ss.Upsert(ctx, snap))

		require.NoError(t, ss.Delete(ctx, snap.SessionID))
		_, err := ss.Get(ctx, snap.SessionID)
		assert.ErrorIs(t, err, ErrNotFound)

		// Deleting again is not an error
		require.NoError(t, ss.Delete(ctx, snap.SessionID))
	})
}

func TestStore_Count(t *testing.T) {
	eachStore(t, func(t *testing.T, ss SessionStore) {
		ctx := context.Background()

		for i := 0; i < 4; i++ {
			require.NoError(t, ss.Upsert(ctx, testSnapshot(t, 11)))
		}
		require.NoError(t, ss.Upsert(ctx, testSnapshot(t, 12)))

		n, err := ss.Count(ctx, 11)
		require.NoError(t, err)
		assert.Equal(t, 4, n)

		n, err = ss.Count(ctx, 404)
		require.NoError(t, err)
		assert.Zero(t, n)
	})
}

// --- Serialization fidelity ---

func TestSQLiteStore_CheckpointsSurviveReload(t *testing.T) {
	ctx := context.Background()
	ss := NewSQLiteStore(testDB(t))

	s := domain.NewSession(4, "course_creation", domain.DefaultLimits())
	s.SetState(domain.StateStructureGeneration)
	_, _ = s.AddMessage(domain.MessageUser, "draft please", nil)
	s.CreateCheckpoint("draft")

	require.NoError(t, ss.Upsert(ctx, s.ToSnapshot()))

	got, err := ss.Get(ctx, s.SessionID)
	require.NoError(t, err)

	restored := domain.FromSnapshot(got, domain.DefaultLimits())
	require.Contains(t, restored.Checkpoints, "draft")
	cp := restored.Checkpoints["draft"]
	assert.Equal(t, domain.StateStructureGeneration, cp.State)
	assert.Equal(t, 1, cp.MessageCount)
}

func TestSQLiteStore_TimestampsRoundTrip(t *testing.T) {
	ctx := context.Background()
	ss := NewSQLiteStore(testDB(t))

	snap := testSnapshot(t, 6)
	require.NoError(t, ss.Upsert(ctx, snap))

	got, err := ss.Get(ctx, snap.SessionID)
	require.NoError(t, err)

	assert.True(t, snap.CreatedAt.Equal(got.CreatedAt))
	assert.True(t, snap.LastUpdated.Equal(got.LastUpdated))
	assert.True(t, got.LastSaved.IsZero())
}
