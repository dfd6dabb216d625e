// Package sqlite implements the Pictor storage interfaces on SQLite using
// the pure-Go modernc.org/sqlite driver. It is the default storage engine.
package sqlite

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite" // SQLite driver
)

// Schema creates the used-image history and image-embedding cache tables.
const Schema = `
CREATE TABLE IF NOT EXISTS used_images (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id TEXT NOT NULL,
	image_url TEXT NOT NULL,
	query TEXT NOT NULL DEFAULT '',
	used_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_used_images_user_recency
	ON used_images(user_id, used_at DESC, id DESC);

CREATE TABLE IF NOT EXISTS image_embeddings (
	image_url TEXT PRIMARY KEY,
	embedding BLOB NOT NULL,
	dimension INTEGER NOT NULL,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_image_embeddings_created
	ON image_embeddings(created_at);
`

// Store bundles the SQLite-backed implementations of both storage
// interfaces over a single database handle.
type Store struct {
	db *sql.DB
}

// Open opens a SQLite database, configures WAL mode, and creates the schema.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one concurrent writer. Using a single open
	// connection serialises writes and avoids SQLITE_BUSY errors under
	// concurrent load. WAL mode lets readers proceed without blocking
	// the writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Store{db: db}, nil
}

// GetDB exposes the underlying connection for handlers that report stats.
func (s *Store) GetDB() *sql.DB {
	return s.db
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
