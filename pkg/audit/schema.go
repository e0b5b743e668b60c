package audit

// SchemaVersion is the current audit database schema version.
const SchemaVersion = 1

// Schema contains the SQL statements to create the audit database schema.
const Schema = `
CREATE TABLE IF NOT EXISTS audit_events (
    id TEXT PRIMARY KEY,
    batch_id TEXT NOT NULL,
    machine_id INTEGER NOT NULL,
    kind TEXT NOT NULL,
    suppressed BOOLEAN NOT NULL,
    timeout_micros INTEGER,
    duration_micros INTEGER,
    bypass BOOLEAN,
    replace_existing BOOLEAN,
    recorded_time TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_audit_events_batch_id ON audit_events(batch_id);
CREATE INDEX IF NOT EXISTS idx_audit_events_machine_id ON audit_events(machine_id);

CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER NOT NULL
);
`

const insertSchemaVersion = `INSERT INTO schema_version (version) VALUES (?)`
