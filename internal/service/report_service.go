package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/robfig/cron/v3"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"reports/internal/blob"
	"reports/internal/domain"
	"reports/internal/report"
)

// ErrAlreadyRunning is returned when a form (or a batch) already has a run
// in flight.
var ErrAlreadyRunning = errors.New("already running")

const batchKey = "@batch"

// ─────────────────────────────────────────────────────────────
// Report Service: runs, batches and inspection of form reports
// ─────────────────────────────────────────────────────────────

// ReportService runs form reports, batches them over studies and serves
// their status and content. Triggers (cron + file watch) live in triggers.go.
type ReportService struct {
	gen         *report.Generator
	forms       domain.FormStore
	blobs       *blob.Dir
	emitter     EventEmitter
	log         *zap.Logger
	runningJobs runningJobsGuard

	// watcher / cron lifecycle, guarded by mu
	mu          sync.Mutex
	watchCancel context.CancelFunc
	watchDone   chan struct{}
	watcher     *fsnotify.Watcher
	cronSched   *cron.Cron
}

// NewReportService creates a ReportService ready for use.
func NewReportService(
	gen *report.Generator,
	forms domain.FormStore,
	blobs *blob.Dir,
	emitter EventEmitter,
	log *zap.Logger,
) *ReportService {
	if log == nil {
		log = zap.NewNop()
	}
	return &ReportService{
		gen:     gen,
		forms:   forms,
		blobs:   blobs,
		emitter: emitter,
		log:     log,
	}
}

// ── Single run ─────────────────────────────────────────────

type RunInput struct {
	FormID   string        `json:"formId"`
	ReportID string        `json:"reportId,omitempty"` // empty generates a uuid
	Config   report.Config `json:"config"`
}

// ReportEvent is the payload of report:saved and report:failed.
type ReportEvent struct {
	ReportID string              `json:"reportId"`
	FormID   string              `json:"formId"`
	Status   domain.ReportStatus `json:"status"`
	Files    int                 `json:"files"`
	Error    string              `json:"error,omitempty"`
}

// RunForm generates one form report synchronously and emits report:saved or
// report:failed once the report has a final status.
func (s *ReportService) RunForm(ctx context.Context, in RunInput) (*report.Result, error) {
	if in.FormID == "" {
		return nil, errors.New("form id is required")
	}
	if !s.runningJobs.TryLock(in.FormID) {
		return nil, fmt.Errorf("form %s: %w", in.FormID, ErrAlreadyRunning)
	}
	defer s.runningJobs.Unlock(in.FormID)

	res, err := s.gen.Generate(ctx, in.FormID, in.ReportID, in.Config)
	if res == nil {
		return nil, err
	}

	ev := ReportEvent{
		ReportID: res.Report.ID,
		FormID:   in.FormID,
		Status:   res.Report.Status,
		Files:    len(res.Files),
	}
	event := EventReportSaved
	if err != nil {
		event = EventReportFailed
		ev.Error = err.Error()
	}
	s.emitter.Emit(ctx, event, ev)
	return res, err
}

// ── Batch ──────────────────────────────────────────────────

// BatchInput selects what a batch covers. Empty StudyIDs means every study;
// an empty FormID means every published form of the selected studies.
type BatchInput struct {
	StudyIDs []string `json:"studyIds,omitempty"`
	FormID   string   `json:"formId,omitempty"`
	Locale   string   `json:"locale,omitempty"` // empty uses each study's default locale
}

type BatchRun struct {
	StudyID  string              `json:"studyId"`
	FormID   string              `json:"formId"`
	ReportID string              `json:"reportId,omitempty"`
	Status   domain.ReportStatus `json:"status,omitempty"`
	Error    string              `json:"error,omitempty"`
}

type BatchResult struct {
	Runs []BatchRun `json:"runs"`
}

// Failed returns the runs that did not end saved.
func (b *BatchResult) Failed() []BatchRun {
	return lo.Filter(b.Runs, func(r BatchRun, _ int) bool { return r.Error != "" })
}

// RunStudies runs a report for every published form of the selected studies
// with choice names enabled. A failing form does not stop the batch; all
// failures are joined into the returned error.
func (s *ReportService) RunStudies(ctx context.Context, in BatchInput) (*BatchResult, error) {
	if !s.runningJobs.TryLock(batchKey) {
		return nil, fmt.Errorf("batch: %w", ErrAlreadyRunning)
	}
	defer s.runningJobs.Unlock(batchKey)

	studies, err := s.selectStudies(ctx, in.StudyIDs)
	if err != nil {
		return nil, err
	}

	out := &BatchResult{}
	var errs []error
	for _, st := range studies {
		forms, err := s.forms.ListPublishedForms(ctx, st.ID)
		if err != nil {
			errs = append(errs, fmt.Errorf("list forms of study %s: %w", st.ID, err))
			continue
		}
		if in.FormID != "" {
			forms = lo.Filter(forms, func(id string, _ int) bool { return id == in.FormID })
		}
		cfg := report.Config{
			UseChoiceNames: true,
			Locale:         lo.Ternary(in.Locale != "", in.Locale, st.DefaultLocaleID),
		}

		for _, formID := range forms {
			if err := ctx.Err(); err != nil {
				return out, errors.Join(append(errs, err)...)
			}
			run := BatchRun{StudyID: st.ID, FormID: formID}
			res, err := s.RunForm(ctx, RunInput{FormID: formID, Config: cfg})
			if res != nil {
				run.ReportID = res.Report.ID
				run.Status = res.Report.Status
			}
			if err != nil {
				run.Error = err.Error()
				errs = append(errs, fmt.Errorf("study %s form %s: %w", st.ID, formID, err))
			}
			out.Runs = append(out.Runs, run)
		}
	}

	s.log.Info("batch finished",
		zap.Int("studies", len(studies)),
		zap.Int("runs", len(out.Runs)),
		zap.Int("failed", len(out.Failed())))
	return out, errors.Join(errs...)
}

func (s *ReportService) selectStudies(ctx context.Context, ids []string) ([]domain.Study, error) {
	if len(ids) == 0 {
		studies, err := s.forms.ListStudies(ctx)
		if err != nil {
			return nil, fmt.Errorf("list studies: %w", err)
		}
		return studies, nil
	}
	studies := make([]domain.Study, 0, len(ids))
	for _, id := range lo.Uniq(ids) {
		st, err := s.forms.GetStudy(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("get study %s: %w", id, err)
		}
		studies = append(studies, *st)
	}
	return studies, nil
}

// ── Inspection ─────────────────────────────────────────────

// ReportDetails is a report with its registered artifacts.
type ReportDetails struct {
	Report *domain.Report      `json:"report"`
	Files  []domain.ReportFile `json:"files"`
}

func (s *ReportService) GetReport(ctx context.Context, id string) (*ReportDetails, error) {
	rep, err := s.gen.Reports.GetReport(ctx, id)
	if err != nil {
		return nil, err
	}
	files, err := s.gen.Reports.ListReportFiles(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list files of report %s: %w", id, err)
	}
	return &ReportDetails{Report: rep, Files: files}, nil
}

// PreviewResult is the head of a report's data file.
type PreviewResult struct {
	File    string     `json:"file"`
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
}

// PreviewData reads back the header and the first limit rows of the data
// file of a report.
func (s *ReportService) PreviewData(ctx context.Context, id string, limit int) (*PreviewResult, error) {
	details, err := s.GetReport(ctx, id)
	if err != nil {
		return nil, err
	}
	f, ok := lo.Find(details.Files, func(f domain.ReportFile) bool {
		return f.FileType == domain.FileTypeData
	})
	if !ok {
		return nil, fmt.Errorf("data file of report %s: %w", id, domain.ErrNotFound)
	}
	cols, rows, err := s.blobs.ReadCSV(f.FileName, limit)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", f.FileName, err)
	}
	return &PreviewResult{File: f.FileName, Columns: cols, Rows: rows}, nil
}

// Running returns the forms (and "@batch") with a run in flight.
func (s *ReportService) Running() []string {
	return s.runningJobs.Running()
}

// WaitRunning blocks until all running reports finish or ctx is cancelled.
// Used for graceful shutdown.
func (s *ReportService) WaitRunning(ctx context.Context) {
	s.runningJobs.WaitAll(ctx)
}
