package pending

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // SQLite driver (pure Go).
)

const schema = `CREATE TABLE IF NOT EXISTS domains_to_clean (
	hostname TEXT PRIMARY KEY,
	pending  INTEGER NOT NULL DEFAULT 1
)`

// SQLiteStore persists the pending map in a SQLite database
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database at path
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating pending store dir: %w", err)
	}
	db, err := sql.Open("sqlite", "file:"+filepath.ToSlash(path)+"?mode=rwc&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening pending store: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating pending schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Load implements Store
func (s *SQLiteStore) Load(ctx context.Context) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT hostname, pending FROM domains_to_clean`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	out := make(map[string]bool)
	for rows.Next() {
		var host string
		var marker int64
		if err := rows.Scan(&host, &marker); err != nil {
			return nil, err
		}
		if marker != 0 {
			out[host] = true
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Put implements Store
func (s *SQLiteStore) Put(ctx context.Context, hostnames []string) error {
	return s.exec(ctx, `INSERT INTO domains_to_clean (hostname, pending) VALUES (?, 1)
		ON CONFLICT(hostname) DO UPDATE SET pending = 1`, hostnames)
}

// Delete implements Store
func (s *SQLiteStore) Delete(ctx context.Context, hostnames []string) error {
	return s.exec(ctx, `DELETE FROM domains_to_clean WHERE hostname = ?`, hostnames)
}

// Clear implements Store
func (s *SQLiteStore) Clear(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM domains_to_clean`)
	return err
}

// Close implements Store
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// exec runs one statement per hostname inside a single transaction
func (s *SQLiteStore) exec(ctx context.Context, query string, hostnames []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer func() { _ = stmt.Close() }()

	for _, h := range hostnames {
		if _, err := stmt.ExecContext(ctx, h); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}
