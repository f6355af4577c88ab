package domain

import "context"

// QuestionType selects the field handler used to flatten a question.
type QuestionType string

const (
	QuestionTypeDefault     QuestionType = "default"
	QuestionTypeMultiSelect QuestionType = "multi_select"
	QuestionTypeGeo         QuestionType = "geo"
	QuestionTypeImage       QuestionType = "image"
	QuestionTypeRoster      QuestionType = "roster"
)

// ParseQuestionType maps a stored question type name to a QuestionType.
// Type names the report engine has no dedicated handler for (text, integer,
// date, ...) are flattened as default questions.
func ParseQuestionType(name string) QuestionType {
	switch name {
	case "multiple_select", "multi_select":
		return QuestionTypeMultiSelect
	case "geo":
		return QuestionTypeGeo
	case "image":
		return QuestionTypeImage
	case "roster":
		return QuestionTypeRoster
	default:
		return QuestionTypeDefault
	}
}

// Question is one prompt of a form. FollowUpID is empty for root questions.
type Question struct {
	ID         string       `json:"id"`
	VarName    string       `json:"varName"`
	Type       QuestionType `json:"type"`
	FollowUpID string       `json:"followUpId,omitempty"`
}

// Choice is one option of a question's choice set. Name is the display name
// for the locale it was queried with and may be empty.
type Choice struct {
	ID    string `json:"id"`
	Value string `json:"value"`
	Name  string `json:"name"`
}

// Label returns the display name, or the value code when no name exists.
func (c Choice) Label() string {
	if c.Name != "" {
		return c.Name
	}
	return c.Value
}

// QuestionStore is read-only access to a form's question graph.
type QuestionStore interface {
	// ListQuestions returns the non-deleted questions of a form.
	ListQuestions(ctx context.Context, formID string) ([]Question, error)
	// ListChoices returns every choice configured for a question.
	ListChoices(ctx context.Context, questionID, locale string) ([]Choice, error)
}
