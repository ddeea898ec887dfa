// Copyright (c) 2025 The Monsoon Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package history

// SchemaVersion tracks the database schema version for migrations.
const SchemaVersion = 1

// Schema creates the history tables.
const Schema = `
CREATE TABLE IF NOT EXISTS metadata (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
) WITHOUT ROWID;

CREATE TABLE IF NOT EXISTS history (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    sender TEXT NOT NULL,
    line TEXT NOT NULL,
    command TEXT NOT NULL DEFAULT '',
    action TEXT NOT NULL DEFAULT '',
    success INTEGER NOT NULL,
    error TEXT NOT NULL DEFAULT '',
    created_at INTEGER NOT NULL -- Unix nanoseconds
);

CREATE INDEX IF NOT EXISTS idx_history_sender ON history(sender);
CREATE INDEX IF NOT EXISTS idx_history_created ON history(created_at);
`

// InitMetadata seeds the metadata table.
const InitMetadata = `
INSERT OR IGNORE INTO metadata (key, value) VALUES ('schema_version', '1');
`
