// Package postgres implements the Pictor storage interfaces on PostgreSQL.
// When the pgvector extension is installed, cached image embeddings are
// stored in a vector column; otherwise a BYTEA fallback column is used so
// the engine works against a plain PostgreSQL instance.
package postgres

import (
	"database/sql"
	"fmt"
	"log"

	_ "github.com/lib/pq" // PostgreSQL driver
)

// schema creates the used-image history table and the embedding cache table
// without the vector column; the column is added separately when pgvector
// is available.
const schema = `
CREATE TABLE IF NOT EXISTS used_images (
	id BIGSERIAL PRIMARY KEY,
	user_id TEXT NOT NULL,
	image_url TEXT NOT NULL,
	query TEXT NOT NULL DEFAULT '',
	used_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_used_images_user_recency
	ON used_images(user_id, used_at DESC, id DESC);

CREATE TABLE IF NOT EXISTS image_embeddings (
	image_url TEXT PRIMARY KEY,
	embedding BYTEA NOT NULL,
	dimension INTEGER NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_image_embeddings_created
	ON image_embeddings(created_at);
`

// Store bundles the PostgreSQL-backed implementations of both storage
// interfaces over a single connection pool.
type Store struct {
	db                *sql.DB
	pgvectorAvailable bool
}

// Open connects to PostgreSQL, creates the schema, and probes for the
// pgvector extension. A missing extension is not an error; the store
// degrades to the BYTEA column.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	store := &Store{db: db}
	store.pgvectorAvailable = detectPgvector(db)
	if store.pgvectorAvailable {
		// CLIP ViT-B/32 vectors are 512-dimensional.
		if _, err := db.Exec(`ALTER TABLE image_embeddings ADD COLUMN IF NOT EXISTS embedding_vec vector(512)`); err != nil {
			log.Printf("postgres: failed to add embedding_vec column (falling back to BYTEA only): %v", err)
			store.pgvectorAvailable = false
		}
	}

	return store, nil
}

// detectPgvector reports whether the pgvector extension is installed.
func detectPgvector(db *sql.DB) bool {
	var installed bool
	err := db.QueryRow(`SELECT EXISTS (SELECT 1 FROM pg_extension WHERE extname = 'vector')`).Scan(&installed)
	if err != nil {
		log.Printf("postgres: failed to detect pgvector extension: %v", err)
		return false
	}
	return installed
}

// GetDB exposes the underlying connection for handlers that report stats.
func (s *Store) GetDB() *sql.DB {
	return s.db
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}
