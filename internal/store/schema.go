package store

// Schema is the full current schema as a single script, kept in sync with
// the migrations under migrations/files. Tests apply it directly to
// in-memory databases instead of running the migration machinery.
const Schema = `
CREATE TABLE items (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    kind TEXT NOT NULL CHECK (kind IN ('post', 'comment')),
    dir_path TEXT NOT NULL UNIQUE,
    message_id INTEGER NOT NULL DEFAULT 0,
    date DATETIME,
    text TEXT NOT NULL DEFAULT '',
    post_id INTEGER REFERENCES items(id) ON DELETE SET NULL
);

CREATE INDEX idx_items_kind_date ON items(kind, date);
CREATE INDEX idx_items_post_id ON items(post_id);

CREATE TABLE media (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    item_id INTEGER NOT NULL REFERENCES items(id) ON DELETE CASCADE,
    message_id INTEGER NOT NULL DEFAULT 0,
    date DATETIME,
    file_path TEXT NOT NULL,
    type TEXT NOT NULL CHECK (type IN ('photo', 'document'))
);

CREATE INDEX idx_media_item_id ON media(item_id);

CREATE TABLE recognitions (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    media_id INTEGER NOT NULL REFERENCES media(id) ON DELETE CASCADE,
    text TEXT NOT NULL DEFAULT '',
    confidence REAL NOT NULL
);

CREATE INDEX idx_recognitions_media_id ON recognitions(media_id);

CREATE TABLE fingerprints (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    path TEXT NOT NULL UNIQUE,
    size INTEGER NOT NULL,
    last_write DATETIME NOT NULL
);

CREATE TABLE index_runs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    operation TEXT NOT NULL,
    parameters TEXT NOT NULL DEFAULT '',
    started_at DATETIME NOT NULL,
    finished_at DATETIME,
    status TEXT NOT NULL DEFAULT 'success'
);
`
