package report

import (
	"context"
	"fmt"
	"strings"

	"github.com/samber/lo"

	"reports/internal/domain"
)

// handleImage joins the linked photo file names into one cell and returns
// the photos as assets for the run's archive.
func handleImage(ctx context.Context, req Request) (*Fragment, error) {
	q := req.Question
	out := newFragment()
	key := q.ID + req.RepeatSuffix
	out.Columns.Set(key, q.VarName+req.RepeatSuffix)

	datum, err := req.Sources.Responses.FirstDatum(ctx, req.Survey.ID, q.ID)
	if err != nil {
		return nil, fmt.Errorf("datum %s: %w", q.ID, err)
	}
	if datum == nil {
		return out, nil
	}
	photos, err := req.Sources.Responses.ListPhotoLinks(ctx, datum.ID)
	if err != nil {
		return nil, fmt.Errorf("photo links %s: %w", q.ID, err)
	}

	names := lo.Map(photos, func(p domain.Photo, _ int) string { return p.FileName })
	out.Values[key] = EffectiveValue(strings.Join(names, ";"), datum.OptOut)
	out.Assets = photos
	return out, nil
}
