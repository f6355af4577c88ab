package formtree_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reports/internal/domain"
	"reports/internal/formtree"
)

func q(id, parent string) domain.Question {
	return domain.Question{ID: id, VarName: "v_" + id, Type: domain.QuestionTypeDefault, FollowUpID: parent}
}

// visit walks the forest depth-first, roots in input order.
func visit(f *formtree.Forest, fn func(n *formtree.Node)) {
	var walk func(idx int)
	walk = func(idx int) {
		n := f.Node(idx)
		fn(n)
		for _, c := range n.Children {
			walk(c)
		}
	}
	for _, r := range f.Roots() {
		walk(r)
	}
}

func positions(f *formtree.Forest) map[string]string {
	out := map[string]string{}
	visit(f, func(n *formtree.Node) {
		parent := ""
		if n.Parent >= 0 {
			parent = f.Node(n.Parent).Question.ID
		}
		if _, dup := out[n.Question.ID]; dup {
			panic("question placed twice: " + n.Question.ID)
		}
		out[n.Question.ID] = parent
	})
	return out
}

func TestBuild_Acyclic(t *testing.T) {
	// Children listed before their parents force extra passes.
	questions := []domain.Question{
		q("d", "c"),
		q("c", "b"),
		q("b", "a"),
		q("a", ""),
		q("e", ""),
		q("f", "a"),
	}
	f := formtree.Build(questions)

	assert.Empty(t, f.Excluded)
	assert.Equal(t, len(questions), f.Len())
	assert.LessOrEqual(t, f.Passes, len(questions))
	assert.Equal(t, map[string]string{
		"a": "", "b": "a", "c": "b", "d": "c", "e": "", "f": "a",
	}, positions(f))

	roots := f.Roots()
	require.Len(t, roots, 2)
	assert.Equal(t, "a", f.Node(roots[0]).Question.ID)
	assert.Equal(t, "e", f.Node(roots[1]).Question.ID)
}

func TestBuild_ChildrenKeepInputOrder(t *testing.T) {
	f := formtree.Build([]domain.Question{q("r", ""), q("z", "r"), q("m", "r"), q("a", "r")})
	roots := f.Roots()
	require.Len(t, roots, 1)

	var ids []string
	for _, c := range f.Node(roots[0]).Children {
		ids = append(ids, f.Node(c).Question.ID)
	}
	assert.Equal(t, []string{"z", "m", "a"}, ids)
}

func TestBuild_CycleTerminatesAndIsReported(t *testing.T) {
	f := formtree.Build([]domain.Question{
		q("root", ""),
		q("x", "y"),
		q("y", "x"),
		q("self", "self"),
		q("kid", "root"),
	})

	assert.Equal(t, []string{"self", "x", "y"}, f.Excluded)
	assert.Equal(t, 2, f.Len())
	assert.Equal(t, map[string]string{"root": "", "kid": "root"}, positions(f))
}

func TestBuild_DanglingParent(t *testing.T) {
	f := formtree.Build([]domain.Question{q("a", ""), q("orphan", "missing"), q("grandorphan", "orphan")})

	assert.Equal(t, []string{"grandorphan", "orphan"}, f.Excluded)
	assert.Equal(t, map[string]string{"a": ""}, positions(f))
}

func TestBuild_DuplicateIDExcluded(t *testing.T) {
	f := formtree.Build([]domain.Question{q("a", ""), q("a", "")})
	assert.Equal(t, 1, f.Len())
	assert.Equal(t, []string{"a"}, f.Excluded)
}

func TestBuild_LongChainWithinPassBound(t *testing.T) {
	// Reverse-ordered chain: every pass can place at most one new link.
	const n = 50
	var questions []domain.Question
	for i := n - 1; i >= 1; i-- {
		questions = append(questions, q(fmt.Sprint(i), fmt.Sprint(i-1)))
	}
	questions = append(questions, q("0", ""))

	f := formtree.Build(questions)
	assert.Empty(t, f.Excluded)
	assert.Equal(t, n, f.Len())
	assert.LessOrEqual(t, f.Passes, n)
}
