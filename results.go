package main

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

// ResultStore keeps a history of finished games. It is optional; with no
// --results-db configured the sessions simply skip recording.
type ResultStore struct {
	conn *sql.DB
}

// ResultEntry is one player's final standing in a finished game.
type ResultEntry struct {
	Name      string
	Score     int
	Collected int
}

// ResultRow is one recorded game, as returned by Recent.
type ResultRow struct {
	Game       string
	SessionID  string
	Winner     string
	FinishedAt time.Time
}

const resultSchema = `
CREATE TABLE IF NOT EXISTS results (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	game TEXT NOT NULL,
	session_id TEXT NOT NULL,
	winner TEXT NOT NULL,
	finished_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS result_scores (
	result_id INTEGER NOT NULL REFERENCES results(id),
	name TEXT NOT NULL,
	score INTEGER NOT NULL,
	collected INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_results_game ON results(game, finished_at);
`

// OpenResultStore opens (creating if needed) the history database. Use
// ":memory:" for tests.
func OpenResultStore(path string) (*ResultStore, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open results database: %w", err)
	}

	// A single writer is plenty here and sidesteps SQLITE_BUSY.
	conn.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	} {
		if _, err := conn.Exec(pragma); err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to configure results database: %w", err)
		}
	}

	if _, err := conn.Exec(resultSchema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create results schema: %w", err)
	}

	return &ResultStore{conn: conn}, nil
}

func (s *ResultStore) Close() error {
	return s.conn.Close()
}

// Record writes one finished game. It is called from a goroutine after
// the session broadcast, so failures are logged rather than returned.
func (s *ResultStore) Record(cfg *Config, game, sessionID, winner string, entries []ResultEntry) {
	if err := s.record(game, sessionID, winner, entries); err != nil {
		logf(cfg, "STORE: Failed to record %s result for %s: %v", game, sessionID, err)
	}
}

func (s *ResultStore) record(game, sessionID, winner string, entries []ResultEntry) error {
	tx, err := s.conn.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.Exec(
		"INSERT INTO results (game, session_id, winner, finished_at) VALUES (?, ?, ?, ?)",
		game, sessionID, winner, time.Now().UTC(),
	)
	if err != nil {
		return err
	}

	id, err := res.LastInsertId()
	if err != nil {
		return err
	}

	for _, entry := range entries {
		if _, err := tx.Exec(
			"INSERT INTO result_scores (result_id, name, score, collected) VALUES (?, ?, ?, ?)",
			id, entry.Name, entry.Score, entry.Collected,
		); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// Recent returns the most recently finished games for one game family.
func (s *ResultStore) Recent(game string, limit int) ([]ResultRow, error) {
	rows, err := s.conn.Query(
		"SELECT game, session_id, winner, finished_at FROM results WHERE game = ? ORDER BY finished_at DESC, id DESC LIMIT ?",
		game, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ResultRow
	for rows.Next() {
		var row ResultRow
		if err := rows.Scan(&row.Game, &row.SessionID, &row.Winner, &row.FinishedAt); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// Scores returns the recorded standings for one session, best first.
func (s *ResultStore) Scores(game, sessionID string) ([]ResultEntry, error) {
	rows, err := s.conn.Query(
		`SELECT rs.name, rs.score, rs.collected
		 FROM result_scores rs
		 JOIN results r ON r.id = rs.result_id
		 WHERE r.game = ? AND r.session_id = ?
		 ORDER BY rs.score DESC`,
		game, sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ResultEntry
	for rows.Next() {
		var entry ResultEntry
		if err := rows.Scan(&entry.Name, &entry.Score, &entry.Collected); err != nil {
			return nil, err
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}
