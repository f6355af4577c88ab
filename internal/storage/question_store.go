package storage

import (
	"context"
	"database/sql"
	"fmt"

	"reports/internal/domain"
)

// QuestionStore reads the question graph of forms.
type QuestionStore struct {
	db *DB
}

// NewQuestionStore creates a new QuestionStore.
func NewQuestionStore(db *DB) *QuestionStore {
	return &QuestionStore{db: db}
}

// ListQuestions returns the non-deleted questions of a form in form order.
// A question's follow-up parent is the follow-up question of its section.
func (s *QuestionStore) ListQuestions(ctx context.Context, formID string) ([]domain.Question, error) {
	rows, err := s.db.conn.QueryContext(ctx, s.db.rebind(
		`SELECT q.id, q.var_name, qt.name, fs.follow_up_question_id
		 FROM question q
		 JOIN section_question_group sqg ON sqg.question_group_id = q.question_group_id
		 JOIN form_section fs ON fs.section_id = sqg.section_id
		 JOIN question_type qt ON qt.id = q.question_type_id
		 WHERE fs.form_id = ? AND q.deleted_at IS NULL
		 ORDER BY fs.sort_order, sqg.question_group_order, q.sort_order, q.id`), formID)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	defer rows.Close()

	var out []domain.Question
	for rows.Next() {
		var q domain.Question
		var typeName string
		var followUp sql.NullString
		if err := rows.Scan(&q.ID, &q.VarName, &typeName, &followUp); err != nil {
			return nil, err
		}
		q.Type = domain.ParseQuestionType(typeName)
		q.FollowUpID = followUp.String
		out = append(out, q)
	}
	return out, rows.Err()
}

// ListChoices returns the configured choices of a question with their
// display names in locale.
func (s *QuestionStore) ListChoices(ctx context.Context, questionID, locale string) ([]domain.Choice, error) {
	rows, err := s.db.conn.QueryContext(ctx, s.db.rebind(
		`SELECT c.id, c.val, COALESCE(tt.translated_text, '')
		 FROM question_choice qc
		 JOIN choice c ON c.id = qc.choice_id
		 LEFT JOIN translation_text tt ON tt.translation_id = c.choice_translation_id AND tt.locale_id = ?
		 WHERE qc.question_id = ? AND qc.deleted_at IS NULL
		 ORDER BY qc.sort_order, c.val`), locale, questionID)
	if err != nil {
		return nil, fmt.Errorf("list choices: %w", err)
	}
	defer rows.Close()
	return scanChoices(rows)
}

func scanChoices(rows *sql.Rows) ([]domain.Choice, error) {
	var out []domain.Choice
	for rows.Next() {
		var c domain.Choice
		if err := rows.Scan(&c.ID, &c.Value, &c.Name); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
