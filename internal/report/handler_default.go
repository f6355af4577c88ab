package report

import (
	"context"
	"fmt"
)

// handleDefault emits one column per question. A missing datum leaves the
// cell empty.
func handleDefault(ctx context.Context, req Request) (*Fragment, error) {
	q := req.Question
	out := newFragment()
	key := q.ID + req.RepeatSuffix
	out.Columns.Set(key, q.VarName+req.RepeatSuffix)

	datum, err := req.Sources.Responses.FirstDatum(ctx, req.Survey.ID, q.ID)
	if err != nil {
		return nil, fmt.Errorf("datum %s: %w", q.ID, err)
	}
	if datum != nil {
		out.Values[key] = EffectiveValue(datum.Value, datum.OptOut)
	}
	return out, nil
}
