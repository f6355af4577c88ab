package domain

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by stores when a record does not exist.
var ErrNotFound = errors.New("not found")

// ReportStatus is the lifecycle state of a report run.
type ReportStatus string

const (
	ReportStatusQueued ReportStatus = "queued"
	ReportStatusSaved  ReportStatus = "saved"
	ReportStatusFailed ReportStatus = "failed"
)

// Terminal reports whether no further transition is expected.
func (s ReportStatus) Terminal() bool {
	return s == ReportStatusSaved || s == ReportStatusFailed
}

// ReportType identifies what a report was generated from.
type ReportType string

const ReportTypeForm ReportType = "form"

// FileType distinguishes the artifacts of one report.
type FileType string

const (
	FileTypeData   FileType = "data"
	FileTypeMeta   FileType = "meta"
	FileTypeImages FileType = "images"
)

// Report is a generation run record. SourceID is the form id for form reports.
type Report struct {
	ID        string       `json:"id" bson:"_id"`
	Type      ReportType   `json:"type" bson:"type"`
	SourceID  string       `json:"sourceId" bson:"source_id"`
	Status    ReportStatus `json:"status" bson:"status"`
	CreatedAt time.Time    `json:"createdAt" bson:"created_at"`
	UpdatedAt time.Time    `json:"updatedAt" bson:"updated_at"`
}

// ReportFile is one artifact produced by a report run.
type ReportFile struct {
	ID        string    `json:"id" bson:"_id"`
	ReportID  string    `json:"reportId" bson:"report_id"`
	FileType  FileType  `json:"fileType" bson:"file_type"`
	FileName  string    `json:"fileName" bson:"file_name"`
	CreatedAt time.Time `json:"createdAt" bson:"created_at"`
}

// ReportStore persists run records and their artifacts.
type ReportStore interface {
	CreateReport(ctx context.Context, r *Report) error
	UpdateReportStatus(ctx context.Context, id string, status ReportStatus) error
	GetReport(ctx context.Context, id string) (*Report, error)
	CreateReportFile(ctx context.Context, f *ReportFile) error
	ListReportFiles(ctx context.Context, reportID string) ([]ReportFile, error)
}
