// Package sqlite provides the embedded relational directory store backed by
// the pure Go modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // pure go sqlite driver

	"schoolcore/internal/infra/persistence/memory"
	"schoolcore/internal/infra/persistence/relational"
	"schoolcore/pkg/domain"
)

// DefaultPath is used when no database path is configured.
const DefaultPath = "schoolcore.db"

// Store persists the directory to normalised SQLite tables.
type Store struct {
	*relational.Store
	path string
}

// NewStore opens (creating when needed) the SQLite database at path.
func NewStore(path string, engine *domain.RulesEngine, opts ...memory.Option) (*Store, error) {
	if path == "" {
		path = DefaultPath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, domain.StorageUnavailable("create dirs", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, domain.StorageUnavailable("open sqlite", err)
	}
	// A single writer connection avoids SQLITE_BUSY between the mirror's commits.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(`PRAGMA foreign_keys = ON`); err != nil {
		_ = db.Close()
		return nil, domain.StorageUnavailable("enable foreign keys", err)
	}
	rel, err := relational.Open(context.Background(), db, relational.SQLite, engine, opts...)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite %s: %w", path, err)
	}
	return &Store{Store: rel, path: path}, nil
}

// Path returns the configured database path.
func (s *Store) Path() string { return s.path }
