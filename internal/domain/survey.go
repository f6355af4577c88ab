package domain

import (
	"context"
	"time"
)

// Survey is one respondent's instance of a form.
type Survey struct {
	ID           string     `json:"id"`
	FormID       string     `json:"formId"`
	RespondentID string     `json:"respondentId"`
	CreatedAt    time.Time  `json:"createdAt"`
	CompletedAt  *time.Time `json:"completedAt,omitempty"`
}

// Datum is one recorded answer. OptOut, when set, replaces Value in reports.
type Datum struct {
	ID         string  `json:"id"`
	SurveyID   string  `json:"surveyId"`
	QuestionID string  `json:"questionId"`
	Value      string  `json:"value"`
	OptOut     *string `json:"optOut,omitempty"`
}

// Geo is a named location linked to a geo answer.
type Geo struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	ParentID string `json:"parentId,omitempty"`
}

// Photo is a stored image file linked to an image answer.
type Photo struct {
	ID       string `json:"id"`
	FileName string `json:"fileName"`
}

// ResponseStore is read-only access to recorded answers. Soft-deleted rows
// are never returned.
type ResponseStore interface {
	// ListSurveys returns the surveys of a form ordered by creation time, then id.
	ListSurveys(ctx context.Context, formID string) ([]Survey, error)
	// FirstDatum returns nil and no error when the question was not answered.
	FirstDatum(ctx context.Context, surveyID, questionID string) (*Datum, error)
	// ListRosterData returns the rows of a roster, excluding roster marker values.
	ListRosterData(ctx context.Context, surveyID, questionID string) ([]Datum, error)
	ListSelectedChoices(ctx context.Context, datumID, locale string) ([]Choice, error)
	ListGeoLinks(ctx context.Context, datumID, locale string) ([]Geo, error)
	ListPhotoLinks(ctx context.Context, datumID string) ([]Photo, error)
}
