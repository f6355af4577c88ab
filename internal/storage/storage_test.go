package storage_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reports/internal/domain"
	"reports/internal/storage"
)

var t0 = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

func newDB(t *testing.T) *storage.DB {
	t.Helper()
	db, err := storage.New(filepath.Join(t.TempDir(), "survey.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func exec(t *testing.T, db *storage.DB, stmts ...string) {
	t.Helper()
	for _, s := range stmts {
		_, err := db.Conn().Exec(s)
		require.NoError(t, err, s)
	}
}

// seed builds one study with a published form: a root section holding "age"
// and the roster "hh", and a follow-up section of "hh" holding "name".
func seed(t *testing.T, db *storage.DB) {
	t.Helper()
	exec(t, db,
		`INSERT INTO study (id, name, default_locale_id) VALUES ('st1', 'Study', 'en')`,
		`INSERT INTO form (id, is_published) VALUES ('f1', 1), ('f2', 0)`,
		`INSERT INTO study_form (study_id, form_master_id) VALUES ('st1', 'f1'), ('st1', 'f2')`,
		`INSERT INTO form_section (form_id, section_id, sort_order, follow_up_question_id) VALUES
			('f1', 'sec1', 0, NULL), ('f1', 'sec2', 1, 'hh')`,
		`INSERT INTO section_question_group (section_id, question_group_id) VALUES ('sec1', 'g1'), ('sec2', 'g2')`,
		`INSERT INTO question_type (id, name) VALUES ('t1', 'integer'), ('t2', 'roster'), ('t3', 'multiple_select')`,
		`INSERT INTO question (id, question_group_id, question_type_id, var_name, sort_order, deleted_at) VALUES
			('age', 'g1', 't1', 'age', 0, NULL),
			('hh', 'g1', 't2', 'member', 1, NULL),
			('fr', 'g1', 't3', 'fruit', 2, NULL),
			('old', 'g1', 't1', 'old', 3, '2020-01-01 00:00:00'),
			('name', 'g2', 't1', 'name', 0, NULL)`,
		`INSERT INTO choice (id, val, choice_translation_id) VALUES ('c1', 'a', 'tr1'), ('c2', 'b', NULL)`,
		`INSERT INTO translation_text (translation_id, locale_id, translated_text) VALUES
			('tr1', 'en', 'Apple'), ('tr1', 'fr', 'Pomme'), ('trg', 'en', 'Lusaka')`,
		`INSERT INTO question_choice (question_id, choice_id, sort_order) VALUES ('fr', 'c2', 1), ('fr', 'c1', 0)`,
	)
}

func TestQuestionStore(t *testing.T) {
	db := newDB(t)
	seed(t, db)
	qs := storage.NewQuestionStore(db)
	ctx := context.Background()

	questions, err := qs.ListQuestions(ctx, "f1")
	require.NoError(t, err)
	assert.Equal(t, []domain.Question{
		{ID: "age", VarName: "age", Type: domain.QuestionTypeDefault},
		{ID: "hh", VarName: "member", Type: domain.QuestionTypeRoster},
		{ID: "fr", VarName: "fruit", Type: domain.QuestionTypeMultiSelect},
		{ID: "name", VarName: "name", Type: domain.QuestionTypeDefault, FollowUpID: "hh"},
	}, questions)

	choices, err := qs.ListChoices(ctx, "fr", "fr")
	require.NoError(t, err)
	assert.Equal(t, []domain.Choice{
		{ID: "c1", Value: "a", Name: "Pomme"},
		{ID: "c2", Value: "b"},
	}, choices)
}

func TestResponseStore(t *testing.T) {
	db := newDB(t)
	seed(t, db)
	done := t0.Add(time.Hour)
	ctx := context.Background()

	_, err := db.Conn().Exec(`INSERT INTO survey (id, form_id, respondent_id, created_at, completed_at, deleted_at) VALUES
		(?, 'f1', 'r2', ?, NULL, NULL),
		(?, 'f1', 'r1', ?, ?, NULL),
		(?, 'f1', 'r3', ?, NULL, ?)`,
		"s2", t0.Add(time.Minute),
		"s1", t0, done,
		"gone", t0, t0)
	require.NoError(t, err)
	exec(t, db,
		`INSERT INTO datum (id, survey_id, question_id, val, opt_out, sort_order, deleted_at) VALUES
			('d0', 's1', 'age', '99', NULL, 0, '2020-01-01 00:00:00'),
			('d1', 's1', 'age', '34', NULL, 1, NULL),
			('d2', 's1', 'fr', '', 'DK', 0, NULL),
			('r0', 's1', 'hh', 'roster_1', NULL, 0, NULL),
			('r1', 's1', 'hh', 'Ann', NULL, 1, NULL),
			('r2', 's1', 'hh', 'Bob', NULL, 2, NULL)`,
		`INSERT INTO datum_choice (datum_id, choice_id) VALUES ('d2', 'c1')`,
		`INSERT INTO geo (id, name_translation_id) VALUES ('geo1', 'trg')`,
		`INSERT INTO datum_geo (datum_id, geo_id) VALUES ('d1', 'geo1')`,
		`INSERT INTO photo (id, file_name) VALUES ('p1', 'a.jpg'), ('p2', 'b.jpg')`,
		`INSERT INTO datum_photo (datum_id, photo_id, sort_order, deleted_at) VALUES
			('d1', 'p2', 0, NULL), ('d1', 'p1', 1, NULL), ('d1', 'p1', 2, '2020-01-01 00:00:00')`,
	)
	rs := storage.NewResponseStore(db)

	surveys, err := rs.ListSurveys(ctx, "f1")
	require.NoError(t, err)
	require.Len(t, surveys, 2)
	assert.Equal(t, "s1", surveys[0].ID)
	assert.Equal(t, "r1", surveys[0].RespondentID)
	require.NotNil(t, surveys[0].CompletedAt)
	assert.True(t, done.Equal(*surveys[0].CompletedAt))
	assert.Nil(t, surveys[1].CompletedAt)

	d, err := rs.FirstDatum(ctx, "s1", "age")
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.Equal(t, "34", d.Value)
	assert.Nil(t, d.OptOut)

	d, err = rs.FirstDatum(ctx, "s1", "fr")
	require.NoError(t, err)
	require.NotNil(t, d.OptOut)
	assert.Equal(t, "DK", *d.OptOut)

	d, err = rs.FirstDatum(ctx, "s2", "age")
	require.NoError(t, err)
	assert.Nil(t, d)

	rows, err := rs.ListRosterData(ctx, "s1", "hh")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Ann", rows[0].Value)
	assert.Equal(t, "Bob", rows[1].Value)

	selected, err := rs.ListSelectedChoices(ctx, "d2", "en")
	require.NoError(t, err)
	assert.Equal(t, []domain.Choice{{ID: "c1", Value: "a", Name: "Apple"}}, selected)

	geos, err := rs.ListGeoLinks(ctx, "d1", "en")
	require.NoError(t, err)
	assert.Equal(t, []domain.Geo{{ID: "geo1", Name: "Lusaka"}}, geos)

	photos, err := rs.ListPhotoLinks(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, []domain.Photo{{ID: "p2", FileName: "b.jpg"}, {ID: "p1", FileName: "a.jpg"}}, photos)
}

func TestResponseStore_NullValue(t *testing.T) {
	db := newDB(t)
	seed(t, db)
	ctx := context.Background()

	_, err := db.Conn().Exec(`INSERT INTO survey (id, form_id, respondent_id, created_at) VALUES ('s1', 'f1', 'r1', ?)`, t0)
	require.NoError(t, err)
	exec(t, db,
		`INSERT INTO datum (id, survey_id, question_id, val, opt_out, sort_order) VALUES
			('d1', 's1', 'age', NULL, 'Dont_know', 0),
			('r1', 's1', 'hh', NULL, 'Refused', 0),
			('r2', 's1', 'hh', 'Bob', NULL, 1)`,
	)
	rs := storage.NewResponseStore(db)

	d, err := rs.FirstDatum(ctx, "s1", "age")
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.Empty(t, d.Value)
	require.NotNil(t, d.OptOut)
	assert.Equal(t, "Dont_know", *d.OptOut)

	rows, err := rs.ListRosterData(ctx, "s1", "hh")
	require.NoError(t, err)
	require.Len(t, rows, 2, "rows without a value are still roster rows")
	assert.Empty(t, rows[0].Value)
	require.NotNil(t, rows[0].OptOut)
	assert.Equal(t, "Refused", *rows[0].OptOut)
	assert.Equal(t, "Bob", rows[1].Value)
}

func TestFormStore(t *testing.T) {
	db := newDB(t)
	seed(t, db)
	fs := storage.NewFormStore(db)
	ctx := context.Background()

	studies, err := fs.ListStudies(ctx)
	require.NoError(t, err)
	assert.Equal(t, []domain.Study{{ID: "st1", Name: "Study", DefaultLocaleID: "en"}}, studies)

	forms, err := fs.ListPublishedForms(ctx, "st1")
	require.NoError(t, err)
	assert.Equal(t, []string{"f1"}, forms)

	_, err = fs.GetStudy(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestReportStore(t *testing.T) {
	db := newDB(t)
	rs := storage.NewReportStore(db)
	ctx := context.Background()

	r := &domain.Report{ID: "rep", Type: domain.ReportTypeForm, SourceID: "f1", Status: domain.ReportStatusQueued, CreatedAt: t0, UpdatedAt: t0}
	require.NoError(t, rs.CreateReport(ctx, r))
	require.NoError(t, rs.UpdateReportStatus(ctx, "rep", domain.ReportStatusSaved))

	got, err := rs.GetReport(ctx, "rep")
	require.NoError(t, err)
	assert.Equal(t, domain.ReportStatusSaved, got.Status)
	assert.Equal(t, domain.ReportTypeForm, got.Type)
	assert.True(t, t0.Equal(got.CreatedAt))

	require.NoError(t, rs.CreateReportFile(ctx, &domain.ReportFile{ID: "f", ReportID: "rep", FileType: domain.FileTypeData, FileName: "rep.csv", CreatedAt: t0}))
	files, err := rs.ListReportFiles(ctx, "rep")
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, domain.FileTypeData, files[0].FileType)
	assert.Equal(t, "rep.csv", files[0].FileName)

	_, err = rs.GetReport(ctx, "nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, rs.UpdateReportStatus(ctx, "nope", domain.ReportStatusFailed), domain.ErrNotFound)
}
