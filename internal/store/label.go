package store

import (
	"database/sql"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested resource does not exist.
var ErrNotFound = errors.New("not found")

// Label is a class name that has recorded samples.
type Label struct {
	Name      string
	Samples   int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// LabelRepository provides read and delete access to labels. Labels are
// created implicitly when samples are recorded for them.
type LabelRepository struct {
	db *sql.DB
}

// Labels returns the label repository for this store.
func (s *Store) Labels() *LabelRepository {
	return &LabelRepository{db: s.db}
}

// Get retrieves a label by name.
func (r *LabelRepository) Get(name string) (*Label, error) {
	l := &Label{}
	err := r.db.QueryRow(
		`SELECT name, samples, created_at, updated_at FROM labels WHERE name = ?`,
		name,
	).Scan(&l.Name, &l.Samples, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return l, nil
}

// List retrieves all labels ordered by name.
func (r *LabelRepository) List() ([]*Label, error) {
	rows, err := r.db.Query(
		`SELECT name, samples, created_at, updated_at FROM labels ORDER BY name`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var labels []*Label
	for rows.Next() {
		l := &Label{}
		if err := rows.Scan(&l.Name, &l.Samples, &l.CreatedAt, &l.UpdatedAt); err != nil {
			return nil, err
		}
		labels = append(labels, l)
	}

	return labels, rows.Err()
}

// Counts returns the number of samples per label.
func (r *LabelRepository) Counts() (map[string]int, error) {
	labels, err := r.List()
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int, len(labels))
	for _, l := range labels {
		counts[l.Name] = l.Samples
	}
	return counts, nil
}

// Delete removes a label and, through the foreign key, all of its samples.
func (r *LabelRepository) Delete(name string) error {
	result, err := r.db.Exec(`DELETE FROM labels WHERE name = ?`, name)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}
