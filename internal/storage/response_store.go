package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"reports/internal/domain"
)

// ResponseStore reads recorded answers. Soft-deleted rows are filtered in
// every query.
type ResponseStore struct {
	db *DB
}

// NewResponseStore creates a new ResponseStore.
func NewResponseStore(db *DB) *ResponseStore {
	return &ResponseStore{db: db}
}

func (s *ResponseStore) ListSurveys(ctx context.Context, formID string) ([]domain.Survey, error) {
	rows, err := s.db.conn.QueryContext(ctx, s.db.rebind(
		`SELECT id, form_id, respondent_id, created_at, completed_at
		 FROM survey
		 WHERE form_id = ? AND deleted_at IS NULL
		 ORDER BY created_at, id`), formID)
	if err != nil {
		return nil, fmt.Errorf("list surveys: %w", err)
	}
	defer rows.Close()

	var out []domain.Survey
	for rows.Next() {
		var sv domain.Survey
		var completed sql.NullTime
		if err := rows.Scan(&sv.ID, &sv.FormID, &sv.RespondentID, &sv.CreatedAt, &completed); err != nil {
			return nil, err
		}
		if completed.Valid {
			t := completed.Time
			sv.CompletedAt = &t
		}
		out = append(out, sv)
	}
	return out, rows.Err()
}

const datumColumns = `id, survey_id, question_id, val, opt_out`

func scanDatum(sc interface{ Scan(...any) error }) (*domain.Datum, error) {
	var d domain.Datum
	var val, optOut sql.NullString
	if err := sc.Scan(&d.ID, &d.SurveyID, &d.QuestionID, &val, &optOut); err != nil {
		return nil, err
	}
	// opt-out-only answers carry no value
	d.Value = val.String
	if optOut.Valid {
		v := optOut.String
		d.OptOut = &v
	}
	return &d, nil
}

func (s *ResponseStore) FirstDatum(ctx context.Context, surveyID, questionID string) (*domain.Datum, error) {
	row := s.db.conn.QueryRowContext(ctx, s.db.rebind(
		`SELECT `+datumColumns+`
		 FROM datum
		 WHERE survey_id = ? AND question_id = ? AND deleted_at IS NULL
		 ORDER BY sort_order, created_at, id
		 LIMIT 1`), surveyID, questionID)
	d, err := scanDatum(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("first datum: %w", err)
	}
	return d, nil
}

// ListRosterData skips the "roster..." marker values the collection app
// records on the roster question itself.
func (s *ResponseStore) ListRosterData(ctx context.Context, surveyID, questionID string) ([]domain.Datum, error) {
	rows, err := s.db.conn.QueryContext(ctx, s.db.rebind(
		`SELECT `+datumColumns+`
		 FROM datum
		 WHERE survey_id = ? AND question_id = ? AND deleted_at IS NULL
		   AND COALESCE(val, '') NOT LIKE 'roster%'
		 ORDER BY sort_order, created_at, id`), surveyID, questionID)
	if err != nil {
		return nil, fmt.Errorf("list roster data: %w", err)
	}
	defer rows.Close()

	var out []domain.Datum
	for rows.Next() {
		d, err := scanDatum(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

func (s *ResponseStore) ListSelectedChoices(ctx context.Context, datumID, locale string) ([]domain.Choice, error) {
	rows, err := s.db.conn.QueryContext(ctx, s.db.rebind(
		`SELECT c.id, c.val, COALESCE(tt.translated_text, '')
		 FROM datum_choice dc
		 JOIN choice c ON c.id = dc.choice_id
		 LEFT JOIN translation_text tt ON tt.translation_id = c.choice_translation_id AND tt.locale_id = ?
		 WHERE dc.datum_id = ? AND dc.deleted_at IS NULL
		 ORDER BY c.val`), locale, datumID)
	if err != nil {
		return nil, fmt.Errorf("list selected choices: %w", err)
	}
	defer rows.Close()
	return scanChoices(rows)
}

func (s *ResponseStore) ListGeoLinks(ctx context.Context, datumID, locale string) ([]domain.Geo, error) {
	rows, err := s.db.conn.QueryContext(ctx, s.db.rebind(
		`SELECT g.id, COALESCE(tt.translated_text, ''), COALESCE(g.parent_id, '')
		 FROM datum_geo dg
		 JOIN geo g ON g.id = dg.geo_id
		 LEFT JOIN translation_text tt ON tt.translation_id = g.name_translation_id AND tt.locale_id = ?
		 WHERE dg.datum_id = ? AND dg.deleted_at IS NULL
		 ORDER BY g.id`), locale, datumID)
	if err != nil {
		return nil, fmt.Errorf("list geo links: %w", err)
	}
	defer rows.Close()

	var out []domain.Geo
	for rows.Next() {
		var g domain.Geo
		if err := rows.Scan(&g.ID, &g.Name, &g.ParentID); err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func (s *ResponseStore) ListPhotoLinks(ctx context.Context, datumID string) ([]domain.Photo, error) {
	rows, err := s.db.conn.QueryContext(ctx, s.db.rebind(
		`SELECT p.id, p.file_name
		 FROM datum_photo dp
		 JOIN photo p ON p.id = dp.photo_id
		 WHERE dp.datum_id = ? AND dp.deleted_at IS NULL
		 ORDER BY dp.sort_order, p.id`), datumID)
	if err != nil {
		return nil, fmt.Errorf("list photo links: %w", err)
	}
	defer rows.Close()

	var out []domain.Photo
	for rows.Next() {
		var p domain.Photo
		if err := rows.Scan(&p.ID, &p.FileName); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
