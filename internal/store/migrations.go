package store

// migration holds a single schema migration with its target version and SQL.
type migration struct {
	version int
	sql     string
}

// migrations is the ordered list of schema migrations.
// Each migration's version must be sequential starting from 1.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS local_storage (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
	{
		version: 2,
		sql: `
CREATE TABLE IF NOT EXISTS delivery_log (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	reminder_id  TEXT NOT NULL,
	kind         TEXT NOT NULL DEFAULT 'main' CHECK(kind IN ('main', 'advance')),
	channel      TEXT NOT NULL,
	ok           INTEGER NOT NULL DEFAULT 0 CHECK(ok IN (0, 1)),
	error        TEXT NOT NULL DEFAULT '',
	attempted_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_delivery_log_reminder_id ON delivery_log(reminder_id);
CREATE INDEX IF NOT EXISTS idx_delivery_log_attempted_at ON delivery_log(attempted_at);

INSERT INTO schema_version (version) VALUES (2);
`,
	},
}
