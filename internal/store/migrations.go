package store

import "fmt"

// migrations are applied in order; PRAGMA user_version records how many ran.
// Append only.
var migrations = []string{
	// labels holds every class with recorded samples and a cached count.
	`CREATE TABLE labels (
		name TEXT PRIMARY KEY,
		samples INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`,

	// samples stores one recorded hand per row as a JSON array of points.
	`CREATE TABLE samples (
		id TEXT PRIMARY KEY,
		label TEXT NOT NULL REFERENCES labels(name) ON DELETE CASCADE,
		landmarks TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`,

	`CREATE INDEX idx_samples_label ON samples(label)`,
}

func (s *Store) migrate() error {
	applied, err := s.SchemaVersion()
	if err != nil {
		return err
	}
	if applied > len(migrations) {
		return fmt.Errorf("database schema version %d is newer than this build (%d)", applied, len(migrations))
	}

	for i := applied; i < len(migrations); i++ {
		tx, err := s.db.Begin()
		if err != nil {
			return err
		}
		if _, err := tx.Exec(migrations[i]); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d: %w", i+1, err)
		}
		// PRAGMA does not take bound parameters.
		if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", i+1)); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d: %w", i+1, err)
		}
		if err := tx.Commit(); err != nil {
			return err
		}
	}
	return nil
}
