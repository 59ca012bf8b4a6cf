package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"tilestream/internal/world"
)

// SQLiteStore keeps the text body of every chunk in one SQLite table.
type SQLiteStore struct {
	db    *sql.DB
	codec Codec
}

// OpenSQLite opens (or creates) the database at path.
func OpenSQLite(path string, codec Codec) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db, codec: codec}, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS chunks (
		cx INTEGER NOT NULL,
		cy INTEGER NOT NULL,
		body TEXT NOT NULL,
		PRIMARY KEY (cx, cy)
	);`)
	return err
}

// Load reads the body for coord. A missing row is world.ErrNotFound.
func (s *SQLiteStore) Load(ctx context.Context, coord world.Coord) (world.Grid, error) {
	var body string
	err := s.db.QueryRowContext(ctx,
		`SELECT body FROM chunks WHERE cx = ? AND cy = ?`, coord.X, coord.Y,
	).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return world.Grid{}, fmt.Errorf("chunk %s: %w", coord, world.ErrNotFound)
	}
	if err != nil {
		return world.Grid{}, err
	}
	return s.codec.Decode(coord, []byte(body))
}

// Save upserts the body for coord.
func (s *SQLiteStore) Save(ctx context.Context, coord world.Coord, grid world.Grid) error {
	body, err := s.codec.Encode(grid)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO chunks (cx, cy, body) VALUES (?, ?, ?)
		 ON CONFLICT (cx, cy) DO UPDATE SET body = excluded.body`,
		coord.X, coord.Y, string(body),
	)
	return err
}

// Count returns the number of stored chunks.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&n)
	return n, err
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
