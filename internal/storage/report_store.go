package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"reports/internal/domain"
)

// ReportStore implements persistence for report runs and their files.
type ReportStore struct {
	db *DB
}

// NewReportStore creates a new ReportStore.
func NewReportStore(db *DB) *ReportStore {
	return &ReportStore{db: db}
}

func (s *ReportStore) CreateReport(ctx context.Context, r *domain.Report) error {
	_, err := s.db.conn.ExecContext(ctx, s.db.rebind(
		`INSERT INTO report (id, type, source_id, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`),
		r.ID, r.Type, r.SourceID, r.Status, r.CreatedAt, r.UpdatedAt,
	)
	return err
}

func (s *ReportStore) UpdateReportStatus(ctx context.Context, id string, status domain.ReportStatus) error {
	res, err := s.db.conn.ExecContext(ctx, s.db.rebind(
		`UPDATE report SET status = ?, updated_at = ? WHERE id = ?`),
		status, time.Now().UTC(), id,
	)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("report %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

func (s *ReportStore) GetReport(ctx context.Context, id string) (*domain.Report, error) {
	r := &domain.Report{}
	err := s.db.conn.QueryRowContext(ctx, s.db.rebind(
		`SELECT id, type, source_id, status, created_at, updated_at FROM report WHERE id = ?`), id,
	).Scan(&r.ID, &r.Type, &r.SourceID, &r.Status, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("report %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (s *ReportStore) CreateReportFile(ctx context.Context, f *domain.ReportFile) error {
	_, err := s.db.conn.ExecContext(ctx, s.db.rebind(
		`INSERT INTO report_file (id, report_id, file_type, file_name, created_at)
		 VALUES (?, ?, ?, ?, ?)`),
		f.ID, f.ReportID, f.FileType, f.FileName, f.CreatedAt,
	)
	return err
}

func (s *ReportStore) ListReportFiles(ctx context.Context, reportID string) ([]domain.ReportFile, error) {
	rows, err := s.db.conn.QueryContext(ctx, s.db.rebind(
		`SELECT id, report_id, file_type, file_name, created_at
		 FROM report_file WHERE report_id = ? ORDER BY created_at, id`), reportID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.ReportFile
	for rows.Next() {
		var f domain.ReportFile
		if err := rows.Scan(&f.ID, &f.ReportID, &f.FileType, &f.FileName, &f.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}
