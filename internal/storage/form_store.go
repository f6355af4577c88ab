package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"reports/internal/domain"
)

// FormStore lists studies and their published forms for batch runs.
type FormStore struct {
	db *DB
}

// NewFormStore creates a new FormStore.
func NewFormStore(db *DB) *FormStore {
	return &FormStore{db: db}
}

func (s *FormStore) ListStudies(ctx context.Context) ([]domain.Study, error) {
	rows, err := s.db.conn.QueryContext(ctx,
		`SELECT id, name, default_locale_id FROM study WHERE deleted_at IS NULL ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("list studies: %w", err)
	}
	defer rows.Close()

	var out []domain.Study
	for rows.Next() {
		var st domain.Study
		if err := rows.Scan(&st.ID, &st.Name, &st.DefaultLocaleID); err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

func (s *FormStore) GetStudy(ctx context.Context, id string) (*domain.Study, error) {
	st := &domain.Study{}
	err := s.db.conn.QueryRowContext(ctx, s.db.rebind(
		`SELECT id, name, default_locale_id FROM study WHERE id = ? AND deleted_at IS NULL`), id,
	).Scan(&st.ID, &st.Name, &st.DefaultLocaleID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("study %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return st, nil
}

func (s *FormStore) ListPublishedForms(ctx context.Context, studyID string) ([]string, error) {
	rows, err := s.db.conn.QueryContext(ctx, s.db.rebind(
		`SELECT f.id
		 FROM form f
		 JOIN study_form sf ON sf.form_master_id = f.id
		 WHERE sf.study_id = ? AND f.deleted_at IS NULL AND f.is_published = ?
		 ORDER BY sf.sort_order, f.id`), studyID, true)
	if err != nil {
		return nil, fmt.Errorf("list published forms: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
