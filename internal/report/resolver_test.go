package report_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reports/internal/domain"
	"reports/internal/formtree"
	"reports/internal/memstore"
	"reports/internal/report"
)

func resolve(t *testing.T, st *memstore.Store, questions []domain.Question) *report.Fragment {
	t.Helper()
	r := &report.Resolver{
		Forest:   formtree.Build(questions),
		Handlers: report.NewRegistry(),
		Sources:  report.Sources{Questions: st, Responses: st},
	}
	f, err := r.Resolve(context.Background(), domain.Survey{ID: "s1"})
	require.NoError(t, err)
	return f
}

func TestResolve_RosterFanOut(t *testing.T) {
	questions := []domain.Question{
		{ID: "hh", VarName: "member", Type: domain.QuestionTypeRoster},
		{ID: "nm", VarName: "name", FollowUpID: "hh"},
		{ID: "ag", VarName: "age", FollowUpID: "hh"},
	}
	st := memstore.New()
	for _, v := range []string{"Ann", "roster_marker", "Bob", "Cy"} {
		st.AddDatum(domain.Datum{SurveyID: "s1", QuestionID: "hh", Value: v})
	}
	st.AddDatum(domain.Datum{SurveyID: "s1", QuestionID: "nm", Value: "n"})
	st.AddDatum(domain.Datum{SurveyID: "s1", QuestionID: "ag", Value: "9"})

	f := resolve(t, st, questions)

	const rows, children = 3, 2
	prompts, childCells := 0, 0
	for key := range f.Values {
		if strings.HasPrefix(key, "hh___") {
			prompts++
		} else {
			childCells++
		}
	}
	assert.Equal(t, rows, prompts)
	assert.Equal(t, rows*children, childCells)
	assert.Equal(t, rows+rows*children, f.Columns.Len())

	assert.Equal(t, "Bob", f.Values["hh___02"])
	name, ok := f.Columns.Get("hh___02")
	require.True(t, ok)
	assert.Equal(t, "member_r02", name)
	assert.Equal(t, "9", f.Values["ag_r03"])

	// Roster children never appear at the top level.
	assert.False(t, f.Columns.Has("nm"))
	assert.False(t, f.Columns.Has("ag"))
}

func TestResolve_EmptyRosterEmitsNothing(t *testing.T) {
	f := resolve(t, memstore.New(), []domain.Question{
		{ID: "hh", VarName: "member", Type: domain.QuestionTypeRoster},
		{ID: "nm", VarName: "name", FollowUpID: "hh"},
	})
	assert.Equal(t, 0, f.Columns.Len())
}

func TestResolve_NestedRostersComposeSuffixes(t *testing.T) {
	questions := []domain.Question{
		{ID: "o", VarName: "outer", Type: domain.QuestionTypeRoster},
		{ID: "i", VarName: "inner", Type: domain.QuestionTypeRoster, FollowUpID: "o"},
		{ID: "x", VarName: "leaf", FollowUpID: "i"},
	}
	st := memstore.New()
	st.AddDatum(domain.Datum{SurveyID: "s1", QuestionID: "o", Value: "o1"})
	st.AddDatum(domain.Datum{SurveyID: "s1", QuestionID: "o", Value: "o2"})
	st.AddDatum(domain.Datum{SurveyID: "s1", QuestionID: "i", Value: "i1"})
	st.AddDatum(domain.Datum{SurveyID: "s1", QuestionID: "x", Value: "v"})

	f := resolve(t, st, questions)
	assert.ElementsMatch(t, []string{
		"o___01", "o___02",
		"i_r01___01", "i_r02___01",
		"x_r01_r01", "x_r02_r01",
	}, f.Columns.Keys())
	name, _ := f.Columns.Get("x_r02_r01")
	assert.Equal(t, "leaf_r02_r01", name)
}

func TestResolve_FollowUpsOfPlainQuestionsShareTheirSuffix(t *testing.T) {
	st := memstore.New()
	st.AddDatum(domain.Datum{SurveyID: "s1", QuestionID: "k", Value: "yes"})
	f := resolve(t, st, []domain.Question{
		{ID: "k", VarName: "kid", FollowUpID: "p"},
		{ID: "p", VarName: "parent"},
	})
	assert.Equal(t, []string{"p", "k"}, f.Columns.Keys())
	assert.Equal(t, "yes", f.Values["k"])
}

func TestResolve_StoreErrorAborts(t *testing.T) {
	st := memstore.New()
	st.Fail = func(op string) error {
		if op == "ListRosterData" {
			return assert.AnError
		}
		return nil
	}
	r := &report.Resolver{
		Forest:   formtree.Build([]domain.Question{{ID: "hh", Type: domain.QuestionTypeRoster}}),
		Handlers: report.NewRegistry(),
		Sources:  report.Sources{Questions: st, Responses: st},
	}
	_, err := r.Resolve(context.Background(), domain.Survey{ID: "s1"})
	assert.ErrorIs(t, err, assert.AnError)
}
