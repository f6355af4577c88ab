// Package table holds the ordered header map and row types shared by the
// report engine and the artifact writer.
package table

import (
	"sort"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Column is one output column: a unique key and its display name.
type Column struct {
	Key  string `json:"key"`
	Name string `json:"name"`
}

// Columns maps column keys to display names in insertion order. Setting an
// existing key overwrites its name and keeps its position.
type Columns struct {
	m *orderedmap.OrderedMap[string, string]
}

// NewColumns returns an empty Columns, optionally seeded in order.
func NewColumns(cols ...Column) *Columns {
	c := &Columns{m: orderedmap.New[string, string]()}
	for _, col := range cols {
		c.Set(col.Key, col.Name)
	}
	return c
}

// Set adds or renames a column.
func (c *Columns) Set(key, name string) {
	c.m.Set(key, name)
}

// Get returns the display name of a column.
func (c *Columns) Get(key string) (string, bool) {
	return c.m.Get(key)
}

// Has reports whether the key is present.
func (c *Columns) Has(key string) bool {
	_, ok := c.m.Get(key)
	return ok
}

// Len returns the number of columns.
func (c *Columns) Len() int {
	if c == nil {
		return 0
	}
	return c.m.Len()
}

// Merge applies every column of o in o's order, last writer wins.
func (c *Columns) Merge(o *Columns) {
	if o == nil {
		return
	}
	for p := o.m.Oldest(); p != nil; p = p.Next() {
		c.m.Set(p.Key, p.Value)
	}
}

// List returns the columns in order.
func (c *Columns) List() []Column {
	if c == nil {
		return nil
	}
	out := make([]Column, 0, c.m.Len())
	for p := c.m.Oldest(); p != nil; p = p.Next() {
		out = append(out, Column{Key: p.Key, Name: p.Value})
	}
	return out
}

// Keys returns the column keys in order.
func (c *Columns) Keys() []string {
	cols := c.List()
	keys := make([]string, len(cols))
	for i, col := range cols {
		keys[i] = col.Key
	}
	return keys
}

// SortedByName returns a copy ordered by display name ascending. Equal
// names are ordered by key so the result is deterministic.
func (c *Columns) SortedByName() *Columns {
	cols := c.List()
	sort.SliceStable(cols, func(i, j int) bool {
		if cols[i].Name != cols[j].Name {
			return cols[i].Name < cols[j].Name
		}
		return cols[i].Key < cols[j].Key
	})
	return NewColumns(cols...)
}

// Prepend returns first followed by the columns of c that are not in first.
func (c *Columns) Prepend(first *Columns) *Columns {
	out := NewColumns(first.List()...)
	for _, col := range c.List() {
		if !out.Has(col.Key) {
			out.Set(col.Key, col.Name)
		}
	}
	return out
}
