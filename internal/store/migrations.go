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

CREATE TABLE IF NOT EXISTS emails (
	id              TEXT PRIMARY KEY,
	sender          TEXT NOT NULL DEFAULT '',
	subject         TEXT NOT NULL DEFAULT '',
	body            TEXT NOT NULL DEFAULT '',
	timestamp       DATETIME NOT NULL,
	category        TEXT NOT NULL DEFAULT '',
	action_items    TEXT NOT NULL DEFAULT '[]',
	generated_draft TEXT NOT NULL DEFAULT '',
	summary         TEXT NOT NULL DEFAULT '',
	image_url       TEXT NOT NULL DEFAULT '',
	is_processed    INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS prompts (
	name        TEXT PRIMARY KEY,
	prompt_text TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_emails_unprocessed ON emails(is_processed);
`,
	},
}
