package question

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/tursodatabase/go-libsql"
)

// Bank is a Provider backed by a SQLite question bank via libSQL. Options
// are stored as a JSON array per row so the schema stays flat.
type Bank struct {
	db *sql.DB
}

// OpenBank opens (and if needed initializes) the question bank at path.
func OpenBank(ctx context.Context, path string) (*Bank, error) {
	db, err := sql.Open("libsql", "file:"+path)
	if err != nil {
		return nil, fmt.Errorf("opening question bank: %w", err)
	}

	// libSQL rejects Exec for PRAGMAs that return rows. Use QueryContext and
	// drain rows to handle both cases uniformly.
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		rows, err := db.QueryContext(ctx, p)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("executing %s: %w", p, err)
		}
		rows.Close()
	}

	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS questions (
			id            TEXT PRIMARY KEY,
			text          TEXT NOT NULL,
			options       TEXT NOT NULL,
			correct_index INTEGER NOT NULL,
			category      TEXT NOT NULL DEFAULT '',
			difficulty    TEXT NOT NULL DEFAULT ''
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing question bank: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging question bank: %w", err)
	}

	return &Bank{db: db}, nil
}

func (b *Bank) Close() error { return b.db.Close() }

// Check reports whether the bank is reachable, for health endpoints.
func (b *Bank) Check(ctx context.Context) error { return b.db.PingContext(ctx) }

// Fetch returns up to f.Count random questions matching the filter.
func (b *Bank) Fetch(ctx context.Context, f Filter) ([]Question, error) {
	query := `
		SELECT id, text, options, correct_index, category, difficulty
		FROM questions
		WHERE (? = '' OR category = ?)
		  AND (? = '' OR difficulty = ?)
		ORDER BY RANDOM()
		LIMIT ?
	`
	rows, err := b.db.QueryContext(ctx, query,
		f.Category, f.Category, f.Difficulty, f.Difficulty, f.Count)
	if err != nil {
		return nil, fmt.Errorf("querying questions: %w", err)
	}
	defer rows.Close()

	var out []Question
	for rows.Next() {
		var q Question
		var optionsJSON string
		if err := rows.Scan(&q.ID, &q.Text, &optionsJSON, &q.CorrectIndex, &q.Category, &q.Difficulty); err != nil {
			return nil, fmt.Errorf("scanning question: %w", err)
		}
		if err := json.Unmarshal([]byte(optionsJSON), &q.Options); err != nil {
			return nil, fmt.Errorf("decoding options for %s: %w", q.ID, err)
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

// Add inserts or replaces a question, used by seeding tooling and tests.
func (b *Bank) Add(ctx context.Context, q Question) error {
	optionsJSON, err := json.Marshal(q.Options)
	if err != nil {
		return fmt.Errorf("encoding options: %w", err)
	}
	_, err = b.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO questions (id, text, options, correct_index, category, difficulty)
		VALUES (?, ?, ?, ?, ?, ?)
	`, q.ID, q.Text, string(optionsJSON), q.CorrectIndex, q.Category, q.Difficulty)
	return err
}

// SeedDefaults loads the built-in set into an empty bank so a fresh install
// has something to play with.
func (b *Bank) SeedDefaults(ctx context.Context) error {
	var count int
	if err := b.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM questions`).Scan(&count); err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	defaults, _ := DefaultSet().Fetch(ctx, Filter{})
	for _, q := range defaults {
		if err := b.Add(ctx, q); err != nil {
			return err
		}
	}
	return nil
}
