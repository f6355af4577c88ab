package report

import (
	"context"
	"fmt"
	"sync"

	"reports/internal/domain"
	"reports/internal/table"
)

// Config carries the per-run options of a form report.
type Config struct {
	// UseChoiceNames writes choice display names instead of true for
	// selected multi-select choices.
	UseChoiceNames bool `json:"useChoiceNames"`
	// Locale resolves choice and geo display names.
	Locale string `json:"locale"`
}

// Sources is the read-only data a handler resolves against.
type Sources struct {
	Questions domain.QuestionStore
	Responses domain.ResponseStore
}

// Request asks a handler to flatten one question of one survey.
// RepeatSuffix is empty at the top level and "_rNN" beneath a roster row.
type Request struct {
	Survey       domain.Survey
	Question     domain.Question
	RepeatSuffix string
	Config       Config
	Sources      Sources
}

// MetaRow describes one multi-select choice column.
type MetaRow struct {
	Column      string
	VarName     string
	ChoiceValue string
	ChoiceID    string
	ChoiceName  string
}

// Fragment is the partial output of one or more handlers: the headers they
// introduced, the values of the current survey, and side payloads.
type Fragment struct {
	Columns *table.Columns
	Values  table.Row
	Assets  []domain.Photo
	Meta    []MetaRow
}

func newFragment() *Fragment {
	return &Fragment{Columns: table.NewColumns(), Values: table.Row{}}
}

func (f *Fragment) set(key, name string, value any) {
	f.Columns.Set(key, name)
	if value != nil {
		f.Values[key] = value
	}
}

func (f *Fragment) merge(o *Fragment) {
	if o == nil {
		return
	}
	f.Columns.Merge(o.Columns)
	f.Values.Merge(o.Values)
	f.Assets = append(f.Assets, o.Assets...)
	f.Meta = append(f.Meta, o.Meta...)
}

// Handler flattens a single question into columns and values.
type Handler interface {
	Handle(ctx context.Context, req Request) (*Fragment, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, req Request) (*Fragment, error)

func (fn HandlerFunc) Handle(ctx context.Context, req Request) (*Fragment, error) {
	return fn(ctx, req)
}

// EffectiveValue returns the opt-out value when one was recorded, else raw.
// Every handler resolves its cell through here.
func EffectiveValue(raw any, optOut *string) any {
	if optOut != nil {
		return *optOut
	}
	return raw
}

// pad renders a zero-based index as a 1-based, two-digit marker: 0 -> "01".
func pad(i int) string {
	return fmt.Sprintf("%02d", i+1)
}

// RosterSuffix is the repeat suffix of roster row i under an outer suffix.
func RosterSuffix(outer string, i int) string {
	return outer + "_r" + pad(i)
}

// ── Registry ───────────────────────────────────────────────

// Registry maps question types to handlers. Roster questions are expanded
// by the resolver and never looked up here.
type Registry struct {
	mu       sync.RWMutex
	handlers map[domain.QuestionType]Handler
	fallback Handler
}

// NewRegistry returns a registry with the built-in handlers.
func NewRegistry() *Registry {
	r := &Registry{
		handlers: map[domain.QuestionType]Handler{},
		fallback: HandlerFunc(handleDefault),
	}
	r.Register(domain.QuestionTypeDefault, HandlerFunc(handleDefault))
	r.Register(domain.QuestionTypeMultiSelect, HandlerFunc(handleMultiSelect))
	r.Register(domain.QuestionTypeGeo, HandlerFunc(handleGeo))
	r.Register(domain.QuestionTypeImage, HandlerFunc(handleImage))
	return r
}

// Register installs or replaces the handler of a question type.
func (r *Registry) Register(t domain.QuestionType, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[t] = h
}

// Lookup returns the handler of a question type, or the default handler.
func (r *Registry) Lookup(t domain.QuestionType) Handler {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if h, ok := r.handlers[t]; ok {
		return h
	}
	return r.fallback
}
