package report

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"reports/internal/domain"
)

// Tracker records the lifecycle of one report run: queued on Begin, one
// ReportFile per finished artifact, then saved or failed on Finish.
type Tracker struct {
	store  domain.ReportStore
	log    *zap.Logger
	now    func() time.Time
	report *domain.Report
}

// NewTracker returns a Tracker writing to store.
func NewTracker(store domain.ReportStore, log *zap.Logger) *Tracker {
	if log == nil {
		log = zap.NewNop()
	}
	return &Tracker{store: store, log: log, now: time.Now}
}

// Begin creates the report record with status queued. An empty reportID
// gets a fresh UUID.
func (t *Tracker) Begin(ctx context.Context, reportID, formID string) (*domain.Report, error) {
	if reportID == "" {
		reportID = uuid.NewString()
	}
	now := t.now().UTC()
	r := &domain.Report{
		ID:        reportID,
		Type:      domain.ReportTypeForm,
		SourceID:  formID,
		Status:    domain.ReportStatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := t.store.CreateReport(ctx, r); err != nil {
		return nil, fmt.Errorf("create report %s: %w", reportID, err)
	}
	t.report = r
	return r, nil
}

// Register records an artifact. Call it only after the file is fully
// written.
func (t *Tracker) Register(ctx context.Context, ft domain.FileType, fileName string) (*domain.ReportFile, error) {
	if t.report == nil {
		return nil, errors.New("register file: report not started")
	}
	f := &domain.ReportFile{
		ID:        uuid.NewString(),
		ReportID:  t.report.ID,
		FileType:  ft,
		FileName:  fileName,
		CreatedAt: t.now().UTC(),
	}
	if err := t.store.CreateReportFile(ctx, f); err != nil {
		return nil, fmt.Errorf("register %s file: %w", ft, err)
	}
	return f, nil
}

// Finish moves the report to saved when runErr is nil and to failed
// otherwise. The status is written even when ctx is already cancelled. The
// returned error is runErr joined with any status write error.
func (t *Tracker) Finish(ctx context.Context, runErr error) error {
	if t.report == nil {
		return runErr
	}
	status := domain.ReportStatusSaved
	if runErr != nil {
		status = domain.ReportStatusFailed
	}

	if err := t.store.UpdateReportStatus(context.WithoutCancel(ctx), t.report.ID, status); err != nil {
		t.log.Error("persist report status",
			zap.String("report_id", t.report.ID),
			zap.String("status", string(status)),
			zap.Error(err))
		return errors.Join(runErr, fmt.Errorf("update report %s status: %w", t.report.ID, err))
	}
	t.report.Status = status
	t.report.UpdatedAt = t.now().UTC()
	return runErr
}
