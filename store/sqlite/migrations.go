package sqlite

// migration is one schema step. Steps are applied in version order and
// recorded in runner_migrations.
type migration struct {
	Version string
	Name    string
	Up      string
}

var migrations = []migration{
	{
		Version: "20260101120000",
		Name:    "create_flags_table",
		Up: `
			CREATE TABLE IF NOT EXISTS runner_flags (
				key        TEXT PRIMARY KEY,
				value      INTEGER NOT NULL DEFAULT 0,
				updated_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ', 'now'))
			)`,
	},
}
