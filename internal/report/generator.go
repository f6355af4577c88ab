// Package report turns the recorded answers of a form into a flat table and
// writes it, with the run's photos, as report artifacts.
package report

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/samber/lo"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"reports/internal/blob"
	"reports/internal/domain"
	"reports/internal/formtree"
	"reports/internal/table"
)

// System column keys. Generated keys always start with a question id, so
// the @ prefix never collides with them.
const (
	ColSurveyID     = "@survey_id"
	ColRespondentID = "@respondent_id"
	ColCreatedAt    = "@created_at"
	ColCompletedAt  = "@completed_at"
)

// SystemColumns returns the fixed leading columns of every data file.
func SystemColumns() *table.Columns {
	return table.NewColumns(
		table.Column{Key: ColSurveyID, Name: "survey_id"},
		table.Column{Key: ColRespondentID, Name: "respondent_id"},
		table.Column{Key: ColCreatedAt, Name: "created_at"},
		table.Column{Key: ColCompletedAt, Name: "completed_at"},
	)
}

// Table is the flattened content of a form, before serialization.
type Table struct {
	Columns  *table.Columns
	Rows     []table.Row
	Assets   []domain.Photo
	Meta     []table.Row
	Excluded []string // question ids left out of the forest
}

// Result summarizes one Generate call.
type Result struct {
	Report        *domain.Report      `json:"report"`
	Files         []domain.ReportFile `json:"files"`
	Surveys       int                 `json:"surveys"`
	Columns       int                 `json:"columns"`
	Excluded      []string            `json:"excluded,omitempty"`
	MissingPhotos []string            `json:"missingPhotos,omitempty"`
	Duration      time.Duration       `json:"duration"`
}

// Generator produces the artifacts of form reports. A Generator is safe for
// concurrent use; every run keeps its accumulators private.
type Generator struct {
	Questions domain.QuestionStore
	Responses domain.ResponseStore
	Reports   domain.ReportStore
	Blobs     blob.Writer
	Handlers  *Registry   // nil uses NewRegistry()
	Logger    *zap.Logger // nil discards
	Workers   int         // per-survey parallelism, <= 0 uses GOMAXPROCS
	PhotoDir  string      // where photo file names resolve
}

func (g *Generator) logger() *zap.Logger {
	if g.Logger == nil {
		return zap.NewNop()
	}
	return g.Logger
}

// DataFileName, MetaFileName and ImagesFileName name the artifacts of a report.
func DataFileName(reportID string) string   { return reportID + ".csv" }
func MetaFileName(reportID string) string   { return reportID + "-meta.csv" }
func ImagesFileName(reportID string) string { return reportID + ".zip" }

// Generate runs one form report. The report is recorded as queued before any
// work and as saved or failed on every return path; artifacts are registered
// only once fully written. The returned Result is non-nil whenever the report
// record was created.
func (g *Generator) Generate(ctx context.Context, formID, reportID string, cfg Config) (res *Result, err error) {
	start := time.Now()
	log := g.logger().With(zap.String("form_id", formID))

	tr := NewTracker(g.Reports, log)
	rep, err := tr.Begin(ctx, reportID, formID)
	if err != nil {
		return nil, err
	}
	log = log.With(zap.String("report_id", rep.ID))
	res = &Result{Report: rep}

	defer func() {
		err = tr.Finish(ctx, err)
		res.Duration = time.Since(start)
		if err != nil {
			log.Error("report failed", zap.Duration("took", res.Duration), zap.Error(err))
			return
		}
		log.Info("report saved",
			zap.Int("surveys", res.Surveys),
			zap.Int("columns", res.Columns),
			zap.Int("files", len(res.Files)),
			zap.Duration("took", res.Duration))
	}()

	tbl, err := g.Build(ctx, formID, cfg)
	if err != nil {
		return res, err
	}
	res.Surveys = len(tbl.Rows)
	res.Columns = tbl.Columns.Len()
	res.Excluded = tbl.Excluded

	if err := g.writeTable(ctx, tr, res, domain.FileTypeData, DataFileName(rep.ID), tbl.Columns, tbl.Rows); err != nil {
		return res, err
	}
	if err := g.writeTable(ctx, tr, res, domain.FileTypeMeta, MetaFileName(rep.ID), metaColumns, tbl.Meta); err != nil {
		return res, err
	}

	if len(tbl.Assets) == 0 {
		return res, nil
	}
	// photo rows with different ids may point at the same file
	paths := lo.Uniq(lo.Map(tbl.Assets, func(p domain.Photo, _ int) string {
		return filepath.Join(g.PhotoDir, p.FileName)
	}))
	f, err := g.Blobs.WriteArchive(ctx, ImagesFileName(rep.ID), paths)
	if err != nil {
		return res, fmt.Errorf("write images file: %w", err)
	}
	res.MissingPhotos = f.Skipped
	if len(f.Skipped) > 0 {
		log.Warn("photos missing from archive", zap.Int("missing", len(f.Skipped)), zap.Strings("paths", f.Skipped))
	}
	return res, g.register(ctx, tr, res, domain.FileTypeImages, f)
}

func (g *Generator) writeTable(ctx context.Context, tr *Tracker, res *Result, ft domain.FileType, name string, cols *table.Columns, rows []table.Row) error {
	f, err := g.Blobs.WriteCSV(ctx, name, cols, rows)
	if errors.Is(err, blob.ErrEmptyTable) {
		g.logger().Debug("skip empty artifact", zap.String("report_id", res.Report.ID), zap.String("file_type", string(ft)))
		return nil
	}
	if err != nil {
		return fmt.Errorf("write %s file: %w", ft, err)
	}
	return g.register(ctx, tr, res, ft, f)
}

func (g *Generator) register(ctx context.Context, tr *Tracker, res *Result, ft domain.FileType, f *blob.File) error {
	rf, err := tr.Register(ctx, ft, f.Name)
	if err != nil {
		return err
	}
	res.Files = append(res.Files, *rf)
	g.logger().Info("artifact written",
		zap.String("report_id", res.Report.ID),
		zap.String("file_type", string(ft)),
		zap.String("file", f.Name),
		zap.String("size", humanize.Bytes(uint64(f.Size))))
	return nil
}

// Build flattens every survey of a form without writing anything. Surveys
// are resolved concurrently and merged in store order, so identical input
// always yields the same table.
func (g *Generator) Build(ctx context.Context, formID string, cfg Config) (*Table, error) {
	log := g.logger().With(zap.String("form_id", formID))

	questions, err := g.Questions.ListQuestions(ctx, formID)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	forest := formtree.Build(questions)
	if len(forest.Excluded) > 0 {
		log.Warn("questions excluded from report",
			zap.Strings("question_ids", forest.Excluded),
			zap.Int("passes", forest.Passes))
	}

	surveys, err := g.Responses.ListSurveys(ctx, formID)
	if err != nil {
		return nil, fmt.Errorf("list surveys: %w", err)
	}

	handlers := g.Handlers
	if handlers == nil {
		handlers = NewRegistry()
	}
	resolver := &Resolver{
		Forest:   forest,
		Handlers: handlers,
		Sources:  Sources{Questions: newChoiceCache(g.Questions), Responses: g.Responses},
		Config:   cfg,
	}

	workers := g.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	frags := make([]*Fragment, len(surveys))
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(workers)
	for i, s := range surveys {
		eg.Go(func() error {
			f, err := resolver.Resolve(egCtx, s)
			if err != nil {
				return fmt.Errorf("survey %s: %w", s.ID, err)
			}
			frags[i] = f
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	dynamic := table.NewColumns()
	rows := make([]table.Row, len(surveys))
	var assets []domain.Photo
	var meta []MetaRow
	for i, f := range frags {
		s := surveys[i]
		dynamic.Merge(f.Columns)
		row := table.Row{
			ColSurveyID:     s.ID,
			ColRespondentID: s.RespondentID,
			ColCreatedAt:    s.CreatedAt,
			ColCompletedAt:  s.CompletedAt,
		}
		row.Merge(f.Values)
		rows[i] = row
		assets = append(assets, f.Assets...)
		meta = append(meta, f.Meta...)
	}

	return &Table{
		Columns:  dynamic.SortedByName().Prepend(SystemColumns()),
		Rows:     rows,
		Assets:   lo.UniqBy(assets, func(p domain.Photo) string { return p.ID }),
		Meta:     metaTable(meta),
		Excluded: forest.Excluded,
	}, nil
}

// choiceCache memoizes choice lists for the length of one run.
type choiceCache struct {
	domain.QuestionStore

	mu sync.Mutex
	m  map[string][]domain.Choice
}

func newChoiceCache(qs domain.QuestionStore) *choiceCache {
	return &choiceCache{QuestionStore: qs, m: map[string][]domain.Choice{}}
}

func (c *choiceCache) ListChoices(ctx context.Context, questionID, locale string) ([]domain.Choice, error) {
	key := questionID + "\x00" + locale
	c.mu.Lock()
	cached, ok := c.m[key]
	c.mu.Unlock()
	if ok {
		return cached, nil
	}

	choices, err := c.QuestionStore.ListChoices(ctx, questionID, locale)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.m[key] = choices
	c.mu.Unlock()
	return choices, nil
}
