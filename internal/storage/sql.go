package storage

const initSchemaSQL = `
CREATE TABLE IF NOT EXISTS sessions (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    start_time DATETIME NOT NULL,
    device_type TEXT NOT NULL,
    device_id TEXT NOT NULL,
    sample_rate REAL NOT NULL,
    config TEXT
);

CREATE TABLE IF NOT EXISTS samples (
    session_id INTEGER NOT NULL REFERENCES sessions(id),
    sample_index INTEGER NOT NULL,
    value INTEGER NOT NULL
);`

// Indexes are created on Close, after the write-heavy capture phase.
const initIndexesSQL = `
CREATE UNIQUE INDEX IF NOT EXISTS idx_samples_session_index
    ON samples (session_id, sample_index);`

const insertSessionSQL = `
INSERT INTO sessions (start_time, device_type, device_id, sample_rate, config)
VALUES (CURRENT_TIMESTAMP, ?, ?, ?, ?)`

const insertSamplesSQL = `
INSERT INTO samples (session_id, sample_index, value)
VALUES `

const selectSessionSQL = `
SELECT
    id,
    start_time,
    device_type,
    device_id,
    sample_rate,
    config
FROM sessions
WHERE
    id = ?`

const selectSessionsSQL = `
SELECT
    id,
    start_time,
    device_type,
    device_id,
    sample_rate,
    config
FROM sessions
ORDER BY start_time`

const selectSamplesSQL = `
SELECT value
FROM samples
WHERE session_id = ?
ORDER BY sample_index`
