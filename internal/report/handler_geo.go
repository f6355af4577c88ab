package report

import (
	"context"
	"fmt"
)

// handleGeo emits a name and id column for every geo linked to the answer.
// Geo answers have no opt-out column.
func handleGeo(ctx context.Context, req Request) (*Fragment, error) {
	q := req.Question
	out := newFragment()

	datum, err := req.Sources.Responses.FirstDatum(ctx, req.Survey.ID, q.ID)
	if err != nil {
		return nil, fmt.Errorf("datum %s: %w", q.ID, err)
	}
	if datum == nil {
		return out, nil
	}
	geos, err := req.Sources.Responses.ListGeoLinks(ctx, datum.ID, req.Config.Locale)
	if err != nil {
		return nil, fmt.Errorf("geo links %s: %w", q.ID, err)
	}

	for i, g := range geos {
		marker := req.RepeatSuffix + "_g" + pad(i) + "_"
		for _, attr := range []struct{ name, value string }{
			{"name", g.Name},
			{"id", g.ID},
		} {
			key := q.ID + marker + attr.name
			out.Columns.Set(key, q.VarName+marker+attr.name)
			if attr.value != "" {
				out.Values[key] = attr.value
			}
		}
	}
	return out, nil
}
