package store

// schemaVersionV1 is the key/value layout.
const schemaVersionV1 = 1

// schemaV1 is the fresh-install DDL.
var schemaV1 = `
CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL);

CREATE TABLE IF NOT EXISTS kv (
	key        TEXT PRIMARY KEY,
	value      BLOB NOT NULL,
	updated_at TEXT NOT NULL
);
`
