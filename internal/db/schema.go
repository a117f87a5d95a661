package db

// SchemaSQL contains the database schema initialization SQL.
// Moves are kept twice: decoded for querying and as their exact JSON for round-trips.
// The table is schemaless because moves carry arbitrary nested fields.
const SchemaSQL = `
    -- ==========================================================================
    -- LINKED EPISODE TABLE
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS linked_episode SCHEMALESS;
    DEFINE FIELD IF NOT EXISTS position ON linked_episode TYPE int;
    DEFINE FIELD IF NOT EXISTS moves ON linked_episode TYPE array<any>;
    DEFINE FIELD IF NOT EXISTS moves_json ON linked_episode TYPE string;
    DEFINE FIELD IF NOT EXISTS move_count ON linked_episode TYPE int;
    -- links[i] holds the scores of move i against moves 0..i-1
    DEFINE FIELD IF NOT EXISTS links ON linked_episode TYPE array<array<float>>;
    DEFINE FIELD IF NOT EXISTS run_id ON linked_episode TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS updated ON linked_episode TYPE datetime DEFAULT time::now();

    DEFINE INDEX IF NOT EXISTS linked_episode_position ON linked_episode FIELDS position;
`
