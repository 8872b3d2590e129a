package store

// migration represents a single schema migration.
type migration struct {
	Version int
	Name    string
	SQL     string
}

// migrations is the ordered list of all schema migrations. Each session
// is one row: scalar columns for the fields the store queries on, JSON
// text columns for the structured data the engine serializes itself.
var migrations = []migration{
	{
		Version: 1,
		Name:    "create sessions",
		SQL: `
			CREATE TABLE sessions (
				session_id        TEXT PRIMARY KEY,
				user_id           INTEGER NOT NULL,
				context_type      TEXT NOT NULL,
				title             TEXT NOT NULL DEFAULT '',
				current_state     TEXT NOT NULL,
				progress          REAL NOT NULL DEFAULT 0,
				confidence_score  REAL NOT NULL DEFAULT 0,
				total_tokens      INTEGER NOT NULL DEFAULT 0,
				total_cost        REAL NOT NULL DEFAULT 0,
				active            INTEGER NOT NULL DEFAULT 1,
				paused_from_state TEXT NOT NULL DEFAULT '',
				context           TEXT NOT NULL DEFAULT '{}',
				metadata          TEXT NOT NULL DEFAULT '{}',
				messages          TEXT NOT NULL DEFAULT '[]',
				state_history     TEXT NOT NULL DEFAULT '[]',
				created_at        TEXT NOT NULL,
				last_updated      TEXT NOT NULL,
				last_saved        TEXT NOT NULL DEFAULT '',
				last_auto_save    TEXT NOT NULL DEFAULT ''
			);

			CREATE INDEX idx_sessions_user ON sessions (user_id, last_updated DESC);
			CREATE INDEX idx_sessions_user_context ON sessions (user_id, context_type);
			CREATE INDEX idx_sessions_last_updated ON sessions (last_updated);
		`,
	},
}
