// Package content is the puzzle archive: published crosswords stored in
// SQLite and looked up by numeric id or by most recent date.
package content

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/bodul/campus-crossword/internal/crossword"
)

// ErrNotFound is returned when no puzzle matches a lookup.
var ErrNotFound = errors.New("puzzle not found")

// Puzzle is a stored puzzle with its archive metadata.
type Puzzle struct {
	ID        int64                 `json:"id"`
	CreatedAt time.Time             `json:"created_at"`
	Input     crossword.PuzzleInput `json:"puzzle"`
}

// Summary is a list entry without the clues.
type Summary struct {
	ID     int64  `json:"id"`
	Author string `json:"author"`
	Date   string `json:"date"`
}

// Store manages the puzzle database.
type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS puzzles (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	author TEXT NOT NULL,
	date TEXT NOT NULL,
	clues_json TEXT NOT NULL,
	created_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_puzzles_date ON puzzles(date);
`

// Open creates or opens the puzzle database at path.
func Open(ctx context.Context, path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One writer keeps SQLite away from SQLITE_BUSY under the HTTP server.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save stores a new puzzle and returns its id.
func (s *Store) Save(ctx context.Context, in crossword.PuzzleInput) (int64, error) {
	clues, err := json.Marshal(in.Clues)
	if err != nil {
		return 0, fmt.Errorf("encode clues: %w", err)
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO puzzles (author, date, clues_json, created_at) VALUES (?, ?, ?, ?)`,
		in.Author, in.Date, string(clues), time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("insert puzzle: %w", err)
	}
	return res.LastInsertId()
}

// Get returns the puzzle with the given id.
func (s *Store) Get(ctx context.Context, id int64) (*Puzzle, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, author, date, clues_json, created_at FROM puzzles WHERE id = ?`, id)
	return scanPuzzle(row)
}

// Latest returns the puzzle with the most recent date. Ties go to the
// puzzle stored last.
func (s *Store) Latest(ctx context.Context) (*Puzzle, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, author, date, clues_json, created_at FROM puzzles ORDER BY date DESC, id DESC LIMIT 1`)
	return scanPuzzle(row)
}

// List returns every puzzle, most recent date first.
func (s *Store) List(ctx context.Context) ([]Summary, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, author, date FROM puzzles ORDER BY date DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list puzzles: %w", err)
	}
	defer rows.Close()

	list := make([]Summary, 0)
	for rows.Next() {
		var p Summary
		if err := rows.Scan(&p.ID, &p.Author, &p.Date); err != nil {
			return nil, fmt.Errorf("scan puzzle: %w", err)
		}
		list = append(list, p)
	}
	return list, rows.Err()
}

func scanPuzzle(row *sql.Row) (*Puzzle, error) {
	var (
		p     Puzzle
		clues string
	)
	err := row.Scan(&p.ID, &p.Input.Author, &p.Input.Date, &clues, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan puzzle: %w", err)
	}
	if err := json.Unmarshal([]byte(clues), &p.Input.Clues); err != nil {
		return nil, fmt.Errorf("decode clues of puzzle %d: %w", p.ID, err)
	}
	return &p, nil
}
