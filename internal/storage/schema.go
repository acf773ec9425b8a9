package storage

const schema = `
-- One row per upload/generation batch. Cards always belong to a session.
CREATE TABLE IF NOT EXISTS sessions (
    id TEXT PRIMARY KEY,
    owner_id TEXT NOT NULL,
    name TEXT NOT NULL,
    created_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_sessions_owner ON sessions(owner_id);

-- The 'cards' table holds authored content plus the scheduling state the
-- engine owns. Scheduling columns change only through a review.
CREATE TABLE IF NOT EXISTS cards (
    id TEXT PRIMARY KEY,
    owner_id TEXT NOT NULL,
    session_id TEXT NOT NULL,
    front TEXT NOT NULL,
    back TEXT NOT NULL,
    hint TEXT NOT NULL DEFAULT '',
    difficulty TEXT NOT NULL,
    status TEXT NOT NULL,
    interval_days INTEGER NOT NULL,
    repetitions INTEGER NOT NULL,
    ease_factor REAL NOT NULL,
    next_review_at DATETIME NOT NULL,
    last_reviewed_at DATETIME,
    bookmarked INTEGER NOT NULL DEFAULT 0,
    tags TEXT NOT NULL DEFAULT '[]',
    created_at DATETIME NOT NULL,

    FOREIGN KEY(session_id) REFERENCES sessions(id)
);

-- Backs the due query: owner scope plus next_review_at <= now.
CREATE INDEX IF NOT EXISTS idx_cards_owner_due ON cards(owner_id, next_review_at);
CREATE INDEX IF NOT EXISTS idx_cards_session ON cards(session_id);

-- Append-only review history, one row per review event.
CREATE TABLE IF NOT EXISTS review_logs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    card_id TEXT NOT NULL,
    timestamp DATETIME NOT NULL,
    rating INTEGER NOT NULL,
    interval_before INTEGER NOT NULL,
    interval_after INTEGER NOT NULL,
    ease_before REAL NOT NULL,
    ease_after REAL NOT NULL,
    status_after TEXT NOT NULL,

    FOREIGN KEY(card_id) REFERENCES cards(id)
);

CREATE INDEX IF NOT EXISTS idx_review_logs_card ON review_logs(card_id);
`
