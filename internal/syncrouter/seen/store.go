// Package seen persists the set of manifest artifacts the Sync Router has
// already transferred successfully, so a retried poll does not re-run a
// backend transfer that already landed, per spec §4.8 step 7. Grounded on
// the teacher's internal/queue.Store SQLite usage (database/sql +
// modernc.org/sqlite, embedded schema, WAL pragma), generalized from a
// queue-item table to this domain's much smaller dedup table — the only
// place in this repository a database earns its keep, since the queue
// itself stays filesystem-native (spec §4.5).
package seen

import (
	"context"
	_ "embed"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

const schemaVersion = 1

// Store wraps the sync-dedup SQLite database at DB_PATH.
type Store struct {
	db *sql.DB
}

// Open creates or connects to the database at path and applies the schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("seen: open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("seen: apply pragma %q: %w", pragma, execErr)
		}
	}

	s := &Store{db: db}
	if err := s.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) initSchema(ctx context.Context) error {
	var exists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("seen: check schema_version: %w", err)
	}
	if exists > 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("seen: begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("seen: create schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("seen: record schema version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("seen: commit schema: %w", err)
	}
	return nil
}

// IsSynced reports whether (jobID, artifactPath, contentHash) has already
// been transferred successfully.
func (s *Store) IsSynced(ctx context.Context, jobID, artifactPath, contentHash string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM synced_artifacts WHERE job_id = ? AND artifact_path = ? AND content_hash = ?",
		jobID, artifactPath, contentHash,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("seen: query synced_artifacts: %w", err)
	}
	return count > 0, nil
}

// MarkSynced records a successful transfer.
func (s *Store) MarkSynced(ctx context.Context, jobID, artifactPath, contentHash string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO synced_artifacts (job_id, artifact_path, content_hash, synced_at)
         VALUES (?, ?, ?, ?)
         ON CONFLICT(job_id, artifact_path, content_hash) DO NOTHING`,
		jobID, artifactPath, contentHash, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("seen: insert synced_artifacts: %w", err)
	}
	return nil
}

// MarkManifestDropped records a manifest-level fatal outcome (invalid
// manifest or, outside skip mode, a missing route) so the Sync Router does
// not retry it indefinitely, per spec §7's SyncFatal: "drops the manifest
// from the retry set." It is stored as a sentinel row under the same table
// keyed by a reserved artifact_path.
func (s *Store) MarkManifestDropped(ctx context.Context, jobID string) error {
	return s.MarkSynced(ctx, jobID, manifestSentinelPath, "")
}

// IsManifestDropped reports whether jobID was previously dropped via
// MarkManifestDropped.
func (s *Store) IsManifestDropped(ctx context.Context, jobID string) (bool, error) {
	return s.IsSynced(ctx, jobID, manifestSentinelPath, "")
}

const manifestSentinelPath = "__manifest__"
