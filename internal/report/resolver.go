package report

import (
	"context"

	"reports/internal/domain"
	"reports/internal/formtree"
)

// Resolver flattens one survey against a question forest. A Resolver holds
// no per-survey state and may be shared by concurrent Resolve calls.
type Resolver struct {
	Forest   *formtree.Forest
	Handlers *Registry
	Sources  Sources
	Config   Config
}

// Resolve walks the forest from its roots in order and returns the columns
// and values of the survey. Roster subtrees are reached only through the
// roster fan-out, once per roster row.
func (r *Resolver) Resolve(ctx context.Context, s domain.Survey) (*Fragment, error) {
	out := newFragment()
	for _, idx := range r.Forest.Roots() {
		if err := r.visit(ctx, s, idx, "", out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (r *Resolver) visit(ctx context.Context, s domain.Survey, idx int, suffix string, out *Fragment) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	n := r.Forest.Node(idx)
	if n.Question.Type == domain.QuestionTypeRoster {
		return r.roster(ctx, s, n, suffix, out)
	}

	frag, err := r.Handlers.Lookup(n.Question.Type).Handle(ctx, Request{
		Survey:       s,
		Question:     n.Question,
		RepeatSuffix: suffix,
		Config:       r.Config,
		Sources:      r.Sources,
	})
	if err != nil {
		return err
	}
	out.merge(frag)

	for _, c := range n.Children {
		if err := r.visit(ctx, s, c, suffix, out); err != nil {
			return err
		}
	}
	return nil
}
