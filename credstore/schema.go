package credstore

// schema is the key-value layout. One row per (origin, storage name);
// values are JSON documents.
const schema = `
CREATE TABLE IF NOT EXISTS kv_records (
    origin     TEXT NOT NULL,
    name       TEXT NOT NULL,
    value      TEXT NOT NULL,
    updated_at INTEGER NOT NULL,
    PRIMARY KEY (origin, name)
);
`
