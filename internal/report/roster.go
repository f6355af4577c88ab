package report

import (
	"context"
	"fmt"

	"reports/internal/domain"
	"reports/internal/formtree"
)

// roster expands a repeating group. Every recorded row gets a prompt column
// and one resolution of the roster's subtree under the row's suffix, so R
// rows and C child columns give R prompt cells plus R*C child cells.
func (r *Resolver) roster(ctx context.Context, s domain.Survey, n *formtree.Node, suffix string, out *Fragment) error {
	q := n.Question
	rows, err := r.Sources.Responses.ListRosterData(ctx, s.ID, q.ID)
	if err != nil {
		return fmt.Errorf("roster rows %s: %w", q.ID, err)
	}

	for i, row := range rows {
		out.set(q.ID+suffix+"___"+pad(i), q.VarName+RosterSuffix(suffix, i), EffectiveValue(row.Value, row.OptOut))

		rowSuffix := RosterSuffix(suffix, i)
		for _, c := range n.Children {
			if err := r.visit(ctx, s, c, rowSuffix, out); err != nil {
				return err
			}
		}
	}
	return nil
}
