// Package formtree rebuilds the follow-up forest of a form from flat
// parent-pointer question records.
package formtree

import (
	"sort"

	"reports/internal/domain"
)

// Node is one placed question. Children are indexes into the forest arena,
// in input order.
type Node struct {
	Question domain.Question
	Parent   int // -1 for roots
	Children []int
}

// Forest is an arena of placed questions plus the ids that could not be
// placed because their follow-up parent never appeared (dangling or cyclic
// references, or a repeated id).
type Forest struct {
	nodes    []Node
	index    map[string]int
	roots    []int
	Excluded []string
	Passes   int
}

// Build places root questions first, then attaches follow-up questions in
// fixed-point passes until a pass places nothing. The number of passes is
// capped at len(questions), so cyclic input terminates with the cycle
// members reported in Excluded.
func Build(questions []domain.Question) *Forest {
	f := &Forest{
		nodes: make([]Node, 0, len(questions)),
		index: make(map[string]int, len(questions)),
	}

	var pending []domain.Question
	seen := make(map[string]bool, len(questions))
	var excluded []string
	for _, q := range questions {
		if seen[q.ID] {
			excluded = append(excluded, q.ID)
			continue
		}
		seen[q.ID] = true
		if q.FollowUpID == "" {
			f.roots = append(f.roots, f.add(q, -1))
			continue
		}
		pending = append(pending, q)
	}

	for f.Passes < len(questions) && len(pending) > 0 {
		f.Passes++
		placed := 0
		rest := pending[:0]
		for _, q := range pending {
			parent, ok := f.index[q.FollowUpID]
			if !ok {
				rest = append(rest, q)
				continue
			}
			idx := f.add(q, parent)
			f.nodes[parent].Children = append(f.nodes[parent].Children, idx)
			placed++
		}
		pending = rest
		if placed == 0 {
			break
		}
	}

	for _, q := range pending {
		excluded = append(excluded, q.ID)
	}
	sort.Strings(excluded)
	f.Excluded = excluded
	return f
}

func (f *Forest) add(q domain.Question, parent int) int {
	idx := len(f.nodes)
	f.nodes = append(f.nodes, Node{Question: q, Parent: parent})
	f.index[q.ID] = idx
	return idx
}

// Len returns the number of placed questions.
func (f *Forest) Len() int { return len(f.nodes) }

// Roots returns the arena indexes of the root questions.
func (f *Forest) Roots() []int { return f.roots }

// Node returns the node at an arena index.
func (f *Forest) Node(idx int) *Node { return &f.nodes[idx] }
