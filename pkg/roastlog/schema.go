package roastlog

// SchemaVersion is the current roast log schema version.
const SchemaVersion = 1

// Schema creates the roast log tables.
const Schema = `
CREATE TABLE IF NOT EXISTS roast_log (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    created_at TIMESTAMP NOT NULL,
    session_id TEXT,
    ip_hash TEXT,
    input_chars INTEGER,
    input_lines INTEGER,
    input_tokens_actual INTEGER,
    output_tokens_actual INTEGER,
    cost_cents REAL,
    model TEXT,
    mode TEXT DEFAULT 'roast',
    severity TEXT DEFAULT 'normal',
    language_detected TEXT,
    share_id TEXT UNIQUE,
    is_public INTEGER DEFAULT 0,
    roast_score INTEGER,
    roast_content TEXT,
    code_content TEXT
);

CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_roast_log_share_id ON roast_log(share_id);
CREATE INDEX IF NOT EXISTS idx_roast_log_created ON roast_log(created_at);
`

const insertSchemaVersion = `
INSERT INTO schema_version (version, applied_at)
VALUES (?, datetime('now'))
ON CONFLICT(version) DO NOTHING;
`

const getSchemaVersion = `
SELECT version FROM schema_version ORDER BY version DESC LIMIT 1;
`

const selectColumns = `
    id, created_at, session_id, ip_hash,
    input_chars, input_lines, input_tokens_actual, output_tokens_actual, cost_cents,
    model, mode, severity, language_detected,
    share_id, is_public, roast_score, roast_content, code_content
`
