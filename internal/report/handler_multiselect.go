package report

import (
	"context"
	"fmt"
)

// handleMultiSelect emits one column per configured choice, selected or
// not, plus a meta row describing each. Selected choices are marked true,
// or with the choice display name when the run prefers names.
//
// An opt-out adds a column keyed without a choice suffix that carries the
// opt-out value; per-choice values are then left empty.
func handleMultiSelect(ctx context.Context, req Request) (*Fragment, error) {
	q := req.Question
	sfx := req.RepeatSuffix
	out := newFragment()

	choices, err := req.Sources.Questions.ListChoices(ctx, q.ID, req.Config.Locale)
	if err != nil {
		return nil, fmt.Errorf("choices %s: %w", q.ID, err)
	}
	prefix := q.ID + "___" + sfx
	for _, c := range choices {
		name := q.VarName + "_" + c.Value + sfx
		out.Columns.Set(prefix+c.Value, name)
		out.Meta = append(out.Meta, MetaRow{
			Column:      name,
			VarName:     q.VarName,
			ChoiceValue: c.Value,
			ChoiceID:    c.ID,
			ChoiceName:  c.Name,
		})
	}

	datum, err := req.Sources.Responses.FirstDatum(ctx, req.Survey.ID, q.ID)
	if err != nil {
		return nil, fmt.Errorf("datum %s: %w", q.ID, err)
	}
	if datum == nil {
		return out, nil
	}
	if datum.OptOut != nil {
		out.set(prefix, q.VarName+sfx, EffectiveValue(nil, datum.OptOut))
		return out, nil
	}

	selected, err := req.Sources.Responses.ListSelectedChoices(ctx, datum.ID, req.Config.Locale)
	if err != nil {
		return nil, fmt.Errorf("selected choices %s: %w", q.ID, err)
	}
	for _, c := range selected {
		key := prefix + c.Value
		// Links to choices outside the question's set have no column.
		if !out.Columns.Has(key) {
			continue
		}
		if req.Config.UseChoiceNames {
			out.Values[key] = c.Label()
		} else {
			out.Values[key] = true
		}
	}
	return out, nil
}
