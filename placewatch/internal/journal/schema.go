package journal

// Schema is the DDL of the journal database.
const Schema = `
CREATE TABLE IF NOT EXISTS place_events (
    event_id   TEXT PRIMARY KEY,
    run_id     TEXT NOT NULL,
    kind       TEXT NOT NULL,          -- place_changed | score_resolved | reset
    generation INTEGER NOT NULL,
    name       TEXT,
    address    TEXT,
    score      TEXT,                   -- loading | unavailable | decimal value
    current    INTEGER NOT NULL DEFAULT 1,
    created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_place_events_run
    ON place_events(run_id, generation);
CREATE INDEX IF NOT EXISTS idx_place_events_time
    ON place_events(created_at DESC);
`
