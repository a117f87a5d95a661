package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/raphaelgruber/linkograph/internal/models"
)

// SQL drivers registered by this package.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

var sqlSchema = []string{
	`CREATE TABLE IF NOT EXISTS episodes (
		id TEXT PRIMARY KEY,
		position INTEGER NOT NULL,
		move_count INTEGER NOT NULL,
		moves TEXT NOT NULL,
		run_id TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS links (
		episode_id TEXT NOT NULL REFERENCES episodes(id) ON DELETE CASCADE,
		i INTEGER NOT NULL,
		j INTEGER NOT NULL,
		score DOUBLE PRECISION NOT NULL,
		PRIMARY KEY (episode_id, i, j)
	)`,
}

// SQLStore keeps linked collections in SQLite or PostgreSQL. Each episode is a row
// in episodes with its moves as exact JSON; each score is a row (i, j) in links.
type SQLStore struct {
	db     *sql.DB
	driver string
	target string
	runID  string
}

// Compile-time check that SQLStore implements Store.
var _ Store = (*SQLStore)(nil)

// OpenSQL connects and applies the schema. target is only used in messages.
func OpenSQL(ctx context.Context, driver, dsn, target, runID string) (*SQLStore, error) {
	return openSQL(ctx, driver, dsn, target, runID, true)
}

// openSQL connects and, with migrate set, switches SQLite to WAL and applies the
// schema. Without migrate the database is only read.
func openSQL(ctx context.Context, driver, dsn, target, runID string, migrate bool) (*SQLStore, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, persistErr("open", target, fmt.Errorf("open %s db: %w", driver, err))
	}

	if driver == DriverSQLite {
		// Pragmas are per connection.
		db.SetMaxOpenConns(1)
		pragmas := []string{
			"PRAGMA foreign_keys = ON",
			"PRAGMA busy_timeout = 5000",
		}
		if migrate {
			pragmas = append([]string{"PRAGMA journal_mode=WAL"}, pragmas...)
		}
		for _, pragma := range pragmas {
			if _, execErr := db.ExecContext(ctx, pragma); execErr != nil {
				_ = db.Close()
				return nil, persistErr("open", target, fmt.Errorf("apply pragma %q: %w", pragma, execErr))
			}
		}
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, persistErr("open", target, err)
	}
	if migrate {
		for _, stmt := range sqlSchema {
			if _, err := db.ExecContext(ctx, stmt); err != nil {
				_ = db.Close()
				return nil, persistErr("open", target, fmt.Errorf("apply schema: %w", err))
			}
		}
	}

	return &SQLStore{db: db, driver: driver, target: target, runID: runID}, nil
}

func (s *SQLStore) String() string { return s.target }

// Close closes the underlying database connection.
func (s *SQLStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// rebind rewrites ? placeholders as $1, $2, ... for PostgreSQL.
func (s *SQLStore) rebind(query string) string {
	if s.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Save replaces the stored collection in one transaction.
func (s *SQLStore) Save(ctx context.Context, collection models.LinkedCollection) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return persistErr("save", s.target, fmt.Errorf("begin: %w", err))
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, stmt := range []string{"DELETE FROM links", "DELETE FROM episodes"} {
		if _, err = tx.ExecContext(ctx, stmt); err != nil {
			return persistErr("save", s.target, fmt.Errorf("clear: %w", err))
		}
	}

	insertEpisode, err := tx.PrepareContext(ctx, s.rebind(
		`INSERT INTO episodes (id, position, move_count, moves, run_id) VALUES (?, ?, ?, ?, ?)`))
	if err != nil {
		return persistErr("save", s.target, err)
	}
	defer insertEpisode.Close()

	insertLink, err := tx.PrepareContext(ctx, s.rebind(
		`INSERT INTO links (episode_id, i, j, score) VALUES (?, ?, ?, ?)`))
	if err != nil {
		return persistErr("save", s.target, err)
	}
	defer insertLink.Close()

	for pos, ep := range collection {
		moves := ep.Moves
		if moves == nil {
			moves = []models.Move{}
		}
		var movesJSON []byte
		if movesJSON, err = models.Marshal(moves); err != nil {
			return persistErr("save", s.target, fmt.Errorf("episode %q: encode moves: %w", ep.ID, err))
		}
		if _, err = insertEpisode.ExecContext(ctx, ep.ID, pos, len(moves), string(movesJSON), s.runID); err != nil {
			return persistErr("save", s.target, fmt.Errorf("episode %q: %w", ep.ID, err))
		}
		for i, row := range ep.Links {
			for j, score := range row {
				if _, err = insertLink.ExecContext(ctx, ep.ID, i, j, score); err != nil {
					return persistErr("save", s.target, fmt.Errorf("episode %q link %d-%d: %w", ep.ID, i, j, err))
				}
			}
		}
	}

	if err = tx.Commit(); err != nil {
		return persistErr("save", s.target, fmt.Errorf("commit: %w", err))
	}
	return nil
}

// Load reads the stored collection back in its original order.
func (s *SQLStore) Load(ctx context.Context) (models.LinkedCollection, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, move_count, moves FROM episodes ORDER BY position`)
	if err != nil {
		return nil, persistErr("load", s.target, err)
	}
	defer rows.Close()

	var out models.LinkedCollection
	index := make(map[string]int)
	for rows.Next() {
		var (
			id        string
			moveCount int
			movesJSON string
		)
		if err := rows.Scan(&id, &moveCount, &movesJSON); err != nil {
			return nil, persistErr("load", s.target, err)
		}
		var moves []models.Move
		if err := json.Unmarshal([]byte(movesJSON), &moves); err != nil {
			return nil, persistErr("load", s.target, fmt.Errorf("episode %q: decode moves: %w", id, err))
		}
		if len(moves) != moveCount {
			return nil, persistErr("load", s.target, fmt.Errorf("episode %q: %d moves stored, move_count %d", id, len(moves), moveCount))
		}
		index[id] = len(out)
		out = append(out, models.LinkedEpisode{ID: id, Moves: moves, Links: models.NewLinkTable(moveCount)})
	}
	if err := rows.Err(); err != nil {
		return nil, persistErr("load", s.target, err)
	}
	_ = rows.Close()

	links, err := s.db.QueryContext(ctx, `SELECT episode_id, i, j, score FROM links`)
	if err != nil {
		return nil, persistErr("load", s.target, err)
	}
	defer links.Close()

	for links.Next() {
		var (
			id    string
			i, j  int
			score float64
		)
		if err := links.Scan(&id, &i, &j, &score); err != nil {
			return nil, persistErr("load", s.target, err)
		}
		pos, ok := index[id]
		if !ok {
			return nil, persistErr("load", s.target, fmt.Errorf("link for unknown episode %q", id))
		}
		table := out[pos].Links
		if i >= table.Len() || j < 0 || j >= i {
			return nil, persistErr("load", s.target, fmt.Errorf("episode %q: link (%d, %d) outside table", id, i, j))
		}
		table[i][j] = score
	}
	if err := links.Err(); err != nil {
		return nil, persistErr("load", s.target, err)
	}

	if out == nil {
		out = models.LinkedCollection{}
	}
	return out, nil
}
