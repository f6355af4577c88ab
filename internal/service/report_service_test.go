package service_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"reports/internal/blob"
	"reports/internal/domain"
	"reports/internal/memstore"
	"reports/internal/report"
	"reports/internal/service"
)

var t0 = time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)

type fixture struct {
	st      *memstore.Store
	emitter *service.MockEmitter
	svc     *service.ReportService
}

// brokenForm makes ListQuestions fail for one form only.
type brokenForm struct {
	domain.QuestionStore
	formID string
}

func (b brokenForm) ListQuestions(ctx context.Context, formID string) ([]domain.Question, error) {
	if formID == b.formID {
		return nil, errors.New("questions unavailable")
	}
	return b.QuestionStore.ListQuestions(ctx, formID)
}

func newFixture(t *testing.T, wrap ...func(domain.QuestionStore) domain.QuestionStore) *fixture {
	t.Helper()
	st := memstore.New()
	var questions domain.QuestionStore = st
	for _, w := range wrap {
		questions = w(questions)
	}
	dir, err := blob.NewDir(t.TempDir())
	require.NoError(t, err)

	gen := &report.Generator{
		Questions: questions,
		Responses: st,
		Reports:   st,
		Blobs:     dir,
		Logger:    zap.NewNop(),
		Workers:   2,
	}
	emitter := &service.MockEmitter{}
	return &fixture{
		st:      st,
		emitter: emitter,
		svc:     service.NewReportService(gen, st, dir, emitter, zap.NewNop()),
	}
}

// seedForm adds a one-question form with a single answered survey.
func (f *fixture) seedForm(formID string) {
	f.st.AddQuestions(formID, domain.Question{ID: formID + "-q", VarName: "age"})
	f.st.AddSurvey(domain.Survey{ID: formID + "-s", FormID: formID, RespondentID: "r", CreatedAt: t0})
	f.st.AddDatum(domain.Datum{SurveyID: formID + "-s", QuestionID: formID + "-q", Value: "42"})
}

// ── RunForm ────────────────────────────────────────────────

func TestRunForm_SavedEmitsEvent(t *testing.T) {
	f := newFixture(t)
	f.seedForm("f1")
	ctx := context.Background()

	res, err := f.svc.RunForm(ctx, service.RunInput{FormID: "f1", ReportID: "rep-1"})
	require.NoError(t, err)
	assert.Equal(t, domain.ReportStatusSaved, res.Report.Status)

	events := f.emitter.Recorded()
	require.Len(t, events, 1)
	assert.Equal(t, service.EventReportSaved, events[0].Event)
	assert.Equal(t, service.ReportEvent{
		ReportID: "rep-1",
		FormID:   "f1",
		Status:   domain.ReportStatusSaved,
		Files:    1,
	}, events[0].Data)

	details, err := f.svc.GetReport(ctx, "rep-1")
	require.NoError(t, err)
	assert.Equal(t, domain.ReportStatusSaved, details.Report.Status)
	require.Len(t, details.Files, 1)
	assert.Equal(t, "rep-1.csv", details.Files[0].FileName)

	preview, err := f.svc.PreviewData(ctx, "rep-1", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"survey_id", "respondent_id", "created_at", "completed_at", "age"}, preview.Columns)
	assert.Equal(t, [][]string{{"f1-s", "r", "2024-03-01 08:00:00", "", "42"}}, preview.Rows)
}

func TestRunForm_FailedEmitsEvent(t *testing.T) {
	f := newFixture(t)
	f.seedForm("f1")
	f.st.Fail = func(op string) error {
		if op == "ListSurveys" {
			return errors.New("replica down")
		}
		return nil
	}

	res, err := f.svc.RunForm(context.Background(), service.RunInput{FormID: "f1"})
	require.Error(t, err)
	require.NotNil(t, res)
	assert.Equal(t, domain.ReportStatusFailed, res.Report.Status)
	assert.NotEmpty(t, res.Report.ID, "a report id is generated when none is given")

	events := f.emitter.Recorded()
	require.Len(t, events, 1)
	assert.Equal(t, service.EventReportFailed, events[0].Event)
	ev := events[0].Data.(service.ReportEvent)
	assert.Equal(t, domain.ReportStatusFailed, ev.Status)
	assert.Contains(t, ev.Error, "replica down")
}

func TestRunForm_RejectsConcurrentRunOfSameForm(t *testing.T) {
	f := newFixture(t)
	f.seedForm("f1")

	entered := make(chan struct{})
	release := make(chan struct{})
	f.st.Fail = func(op string) error {
		if op == "ListQuestions" {
			close(entered)
			<-release
		}
		return nil
	}

	errc := make(chan error, 1)
	go func() {
		_, err := f.svc.RunForm(context.Background(), service.RunInput{FormID: "f1"})
		errc <- err
	}()
	<-entered

	assert.Equal(t, []string{"f1"}, f.svc.Running())
	_, err := f.svc.RunForm(context.Background(), service.RunInput{FormID: "f1"})
	assert.ErrorIs(t, err, service.ErrAlreadyRunning)

	close(release)
	require.NoError(t, <-errc)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	f.svc.WaitRunning(ctx)
	assert.Empty(t, f.svc.Running())
}

func TestRunForm_RequiresFormID(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.RunForm(context.Background(), service.RunInput{})
	assert.Error(t, err)
	assert.Empty(t, f.emitter.Recorded())
}

func TestPreviewData_NoDataFile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.st.CreateReport(ctx, &domain.Report{ID: "empty", Status: domain.ReportStatusSaved, CreatedAt: t0, UpdatedAt: t0}))

	_, err := f.svc.PreviewData(ctx, "empty", 5)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = f.svc.GetReport(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

// ── RunStudies ─────────────────────────────────────────────

func TestRunStudies_CollectsFailuresAndContinues(t *testing.T) {
	f := newFixture(t, func(qs domain.QuestionStore) domain.QuestionStore {
		return brokenForm{QuestionStore: qs, formID: "bad"}
	})
	f.seedForm("good")
	f.seedForm("other")
	f.st.AddStudy(domain.Study{ID: "st1", DefaultLocaleID: "fr"}, "good", "bad")
	f.st.AddStudy(domain.Study{ID: "st2", DefaultLocaleID: "en"}, "other")

	res, err := f.svc.RunStudies(context.Background(), service.BatchInput{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "study st1 form bad")

	require.Len(t, res.Runs, 3)
	assert.Equal(t, "good", res.Runs[0].FormID)
	assert.Equal(t, domain.ReportStatusSaved, res.Runs[0].Status)
	assert.Equal(t, "bad", res.Runs[1].FormID)
	assert.Equal(t, domain.ReportStatusFailed, res.Runs[1].Status)
	assert.Equal(t, "other", res.Runs[2].FormID)
	assert.Equal(t, domain.ReportStatusSaved, res.Runs[2].Status)

	failed := res.Failed()
	require.Len(t, failed, 1)
	assert.Equal(t, "bad", failed[0].FormID)
}

func TestRunStudies_Filters(t *testing.T) {
	f := newFixture(t)
	f.seedForm("a")
	f.seedForm("b")
	f.seedForm("c")
	f.st.AddStudy(domain.Study{ID: "st1"}, "a", "b")
	f.st.AddStudy(domain.Study{ID: "st2"}, "c")

	res, err := f.svc.RunStudies(context.Background(), service.BatchInput{StudyIDs: []string{"st1"}, FormID: "b"})
	require.NoError(t, err)
	require.Len(t, res.Runs, 1)
	assert.Equal(t, "st1", res.Runs[0].StudyID)
	assert.Equal(t, "b", res.Runs[0].FormID)

	_, err = f.svc.RunStudies(context.Background(), service.BatchInput{StudyIDs: []string{"nope"}})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRunStudies_StopsOnCancel(t *testing.T) {
	f := newFixture(t)
	f.seedForm("a")
	f.st.AddStudy(domain.Study{ID: "st1"}, "a")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := f.svc.RunStudies(ctx, service.BatchInput{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, res.Runs)
}

// ── Triggers ───────────────────────────────────────────────

func savedEvents(m *service.MockEmitter) int {
	n := 0
	for _, e := range m.Recorded() {
		if e.Event == service.EventReportSaved {
			n++
		}
	}
	return n
}

func TestStartTriggers_WatchRunsBatchAfterWrite(t *testing.T) {
	f := newFixture(t)
	f.seedForm("a")
	f.st.AddStudy(domain.Study{ID: "st1"}, "a")

	src := filepath.Join(t.TempDir(), "survey.db")
	require.NoError(t, os.WriteFile(src, []byte("v1"), 0o644))

	ctx := context.Background()
	require.NoError(t, f.svc.StartTriggers(ctx, service.TriggerConfig{Watch: src}))
	t.Cleanup(func() {
		f.svc.Stop()
		f.svc.WaitRunning(ctx)
	})

	require.NoError(t, os.WriteFile(src+"-wal", []byte("commit"), 0o644))
	assert.Eventually(t, func() bool { return savedEvents(f.emitter) == 1 }, 5*time.Second, 50*time.Millisecond)
}

func TestStartTriggers_Cron(t *testing.T) {
	f := newFixture(t)
	f.seedForm("a")
	f.st.AddStudy(domain.Study{ID: "st1"}, "a")

	ctx := context.Background()
	require.NoError(t, f.svc.StartTriggers(ctx, service.TriggerConfig{Cron: "@every 1s"}))
	assert.Eventually(t, func() bool { return savedEvents(f.emitter) >= 1 }, 5*time.Second, 50*time.Millisecond)

	f.svc.Stop()
	f.svc.WaitRunning(ctx)
}

func TestStartTriggers_InvalidCron(t *testing.T) {
	f := newFixture(t)
	err := f.svc.StartTriggers(context.Background(), service.TriggerConfig{Cron: "every tuesday"})
	assert.Error(t, err)
	f.svc.Stop()
}

func TestStop_Idempotent(t *testing.T) {
	f := newFixture(t)
	f.svc.Stop()
	f.svc.Stop()
}
