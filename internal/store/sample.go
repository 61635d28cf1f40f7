package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Sample represents one recorded hand stored in the database.
type Sample struct {
	ID        string          `json:"id"`
	Label     string          `json:"label"`
	Landmarks json.RawMessage `json:"landmarks"`
	CreatedAt time.Time       `json:"created_at"`
}

// SampleRepository provides CRUD operations for samples.
type SampleRepository struct {
	db *sql.DB
}

// Samples returns the sample repository for this store.
func (s *Store) Samples() *SampleRepository {
	return &SampleRepository{db: s.db}
}

// Create inserts samples for a label in a single transaction, creating the
// label when needed and refreshing its sample count. It returns the new IDs.
func (r *SampleRepository) Create(label string, landmarks []json.RawMessage) ([]string, error) {
	tx, err := r.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	now := time.Now()
	_, err = tx.Exec(
		`INSERT INTO labels (name, samples, created_at, updated_at) VALUES (?, 0, ?, ?)
		 ON CONFLICT(name) DO NOTHING`,
		label, now, now,
	)
	if err != nil {
		return nil, err
	}

	stmt, err := tx.Prepare(`INSERT INTO samples (id, label, landmarks, created_at) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return nil, err
	}
	defer stmt.Close()

	ids := make([]string, 0, len(landmarks))
	for _, data := range landmarks {
		id := uuid.NewString()
		if _, err := stmt.Exec(id, label, string(data), now); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	_, err = tx.Exec(
		`UPDATE labels SET samples = (SELECT COUNT(*) FROM samples WHERE label = ?), updated_at = ? WHERE name = ?`,
		label, now, label,
	)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return ids, nil
}

// Get retrieves a sample by ID.
func (r *SampleRepository) Get(id string) (*Sample, error) {
	s := &Sample{}
	var data string
	err := r.db.QueryRow(
		`SELECT id, label, landmarks, created_at FROM samples WHERE id = ?`,
		id,
	).Scan(&s.ID, &s.Label, &data, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	s.Landmarks = json.RawMessage(data)
	return s, nil
}

// List retrieves every sample, grouped by label in insertion order.
func (r *SampleRepository) List() ([]Sample, error) {
	return r.query(
		`SELECT id, label, landmarks, created_at FROM samples ORDER BY label, created_at, rowid`,
	)
}

// ListByLabel retrieves all samples for a label.
func (r *SampleRepository) ListByLabel(label string) ([]Sample, error) {
	return r.query(
		`SELECT id, label, landmarks, created_at FROM samples WHERE label = ? ORDER BY created_at, rowid`,
		label,
	)
}

func (r *SampleRepository) query(q string, args ...any) ([]Sample, error) {
	rows, err := r.db.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var samples []Sample
	for rows.Next() {
		var s Sample
		var data string
		if err := rows.Scan(&s.ID, &s.Label, &data, &s.CreatedAt); err != nil {
			return nil, err
		}
		s.Landmarks = json.RawMessage(data)
		samples = append(samples, s)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return samples, nil
}

// Delete removes one sample and refreshes its label's count.
func (r *SampleRepository) Delete(id string) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var label string
	err = tx.QueryRow(`SELECT label FROM samples WHERE id = ?`, id).Scan(&label)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}

	if _, err := tx.Exec(`DELETE FROM samples WHERE id = ?`, id); err != nil {
		return err
	}
	_, err = tx.Exec(
		`UPDATE labels SET samples = samples - 1, updated_at = ? WHERE name = ?`,
		time.Now(), label,
	)
	if err != nil {
		return err
	}

	return tx.Commit()
}
