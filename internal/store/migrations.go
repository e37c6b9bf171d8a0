package store

// migration represents a single schema migration.
type migration struct {
	Version int
	Name    string
	SQL     string
}

// migrations is the ordered list of all schema migrations.
var migrations = []migration{
	{
		Version: 1,
		Name:    "create activity log",
		SQL: `
			CREATE TABLE activity_log (
				id              INTEGER PRIMARY KEY AUTOINCREMENT,
				direction       TEXT NOT NULL,
				activity_type   TEXT NOT NULL,
				activity_id     TEXT NOT NULL DEFAULT '',
				conversation_id TEXT NOT NULL DEFAULT '',
				body            TEXT NOT NULL,
				recorded_at     TEXT NOT NULL DEFAULT (datetime('now'))
			);

			CREATE INDEX idx_activity_conversation ON activity_log (conversation_id, id);
			CREATE INDEX idx_activity_type ON activity_log (activity_type);
		`,
	},
}
