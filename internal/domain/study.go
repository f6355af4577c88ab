package domain

import "context"

// Study groups forms and carries the default locale used for their reports.
type Study struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	DefaultLocaleID string `json:"defaultLocaleId"`
}

// FormStore lists what a batch report run should cover.
type FormStore interface {
	ListStudies(ctx context.Context) ([]Study, error)
	GetStudy(ctx context.Context, id string) (*Study, error)
	// ListPublishedForms returns the ids of the non-deleted, published forms of a study.
	ListPublishedForms(ctx context.Context, studyID string) ([]string, error)
}
