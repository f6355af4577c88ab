// Package memstore is an in-memory implementation of the question,
// response, form and report stores, used by tests.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"reports/internal/domain"
)

// Store keeps everything in maps guarded by one mutex. Fail, when set, is
// consulted at the start of every call with the method name; a non-nil
// result is returned as the call's error.
type Store struct {
	mu sync.RWMutex

	questions map[string][]domain.Question // by form
	choices   map[string][]domain.Choice   // by question
	surveys   []domain.Survey
	data      []domain.Datum
	selected  map[string][]domain.Choice // by datum
	geos      map[string][]domain.Geo
	photos    map[string][]domain.Photo
	studies   []domain.Study
	forms     map[string][]string // published form ids by study
	reports   map[string]*domain.Report
	files     []domain.ReportFile
	nextID    int

	Fail func(op string) error
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		questions: map[string][]domain.Question{},
		choices:   map[string][]domain.Choice{},
		selected:  map[string][]domain.Choice{},
		geos:      map[string][]domain.Geo{},
		photos:    map[string][]domain.Photo{},
		forms:     map[string][]string{},
		reports:   map[string]*domain.Report{},
	}
}

func (s *Store) fail(op string) error {
	if s.Fail == nil {
		return nil
	}
	return s.Fail(op)
}

// ── Seeding ────────────────────────────────────────────────

func (s *Store) AddQuestions(formID string, qs ...domain.Question) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.questions[formID] = append(s.questions[formID], qs...)
}

func (s *Store) AddChoices(questionID string, cs ...domain.Choice) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.choices[questionID] = append(s.choices[questionID], cs...)
}

func (s *Store) AddSurvey(sv domain.Survey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.surveys = append(s.surveys, sv)
}

// AddDatum stores an answer and returns it with an id assigned when empty.
func (s *Store) AddDatum(d domain.Datum) domain.Datum {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d.ID == "" {
		s.nextID++
		d.ID = fmt.Sprintf("d%d", s.nextID)
	}
	s.data = append(s.data, d)
	return d
}

func (s *Store) SelectChoices(datumID string, cs ...domain.Choice) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selected[datumID] = append(s.selected[datumID], cs...)
}

func (s *Store) LinkGeos(datumID string, gs ...domain.Geo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.geos[datumID] = append(s.geos[datumID], gs...)
}

func (s *Store) LinkPhotos(datumID string, ps ...domain.Photo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.photos[datumID] = append(s.photos[datumID], ps...)
}

func (s *Store) AddStudy(st domain.Study, publishedForms ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.studies = append(s.studies, st)
	s.forms[st.ID] = append(s.forms[st.ID], publishedForms...)
}

// ── QuestionStore ──────────────────────────────────────────

func (s *Store) ListQuestions(_ context.Context, formID string) ([]domain.Question, error) {
	if err := s.fail("ListQuestions"); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Question(nil), s.questions[formID]...), nil
}

func (s *Store) ListChoices(_ context.Context, questionID, _ string) ([]domain.Choice, error) {
	if err := s.fail("ListChoices"); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Choice(nil), s.choices[questionID]...), nil
}

// ── ResponseStore ──────────────────────────────────────────

func (s *Store) ListSurveys(_ context.Context, formID string) ([]domain.Survey, error) {
	if err := s.fail("ListSurveys"); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Survey
	for _, sv := range s.surveys {
		if sv.FormID == formID {
			out = append(out, sv)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) FirstDatum(_ context.Context, surveyID, questionID string) (*domain.Datum, error) {
	if err := s.fail("FirstDatum"); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, d := range s.data {
		if d.SurveyID == surveyID && d.QuestionID == questionID {
			d := d
			return &d, nil
		}
	}
	return nil, nil
}

func (s *Store) ListRosterData(_ context.Context, surveyID, questionID string) ([]domain.Datum, error) {
	if err := s.fail("ListRosterData"); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Datum
	for _, d := range s.data {
		if d.SurveyID == surveyID && d.QuestionID == questionID && !strings.HasPrefix(d.Value, "roster") {
			out = append(out, d)
		}
	}
	return out, nil
}

func (s *Store) ListSelectedChoices(_ context.Context, datumID, _ string) ([]domain.Choice, error) {
	if err := s.fail("ListSelectedChoices"); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Choice(nil), s.selected[datumID]...), nil
}

func (s *Store) ListGeoLinks(_ context.Context, datumID, _ string) ([]domain.Geo, error) {
	if err := s.fail("ListGeoLinks"); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Geo(nil), s.geos[datumID]...), nil
}

func (s *Store) ListPhotoLinks(_ context.Context, datumID string) ([]domain.Photo, error) {
	if err := s.fail("ListPhotoLinks"); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Photo(nil), s.photos[datumID]...), nil
}

// ── FormStore ──────────────────────────────────────────────

func (s *Store) ListStudies(_ context.Context) ([]domain.Study, error) {
	if err := s.fail("ListStudies"); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Study(nil), s.studies...), nil
}

func (s *Store) GetStudy(_ context.Context, id string) (*domain.Study, error) {
	if err := s.fail("GetStudy"); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, st := range s.studies {
		if st.ID == id {
			st := st
			return &st, nil
		}
	}
	return nil, fmt.Errorf("study %s: %w", id, domain.ErrNotFound)
}

func (s *Store) ListPublishedForms(_ context.Context, studyID string) ([]string, error) {
	if err := s.fail("ListPublishedForms"); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.forms[studyID]...), nil
}

// ── ReportStore ────────────────────────────────────────────

func (s *Store) CreateReport(_ context.Context, r *domain.Report) error {
	if err := s.fail("CreateReport"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *r
	s.reports[r.ID] = &cp
	return nil
}

func (s *Store) UpdateReportStatus(_ context.Context, id string, status domain.ReportStatus) error {
	if err := s.fail("UpdateReportStatus"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reports[id]
	if !ok {
		return fmt.Errorf("report %s: %w", id, domain.ErrNotFound)
	}
	r.Status = status
	return nil
}

func (s *Store) GetReport(_ context.Context, id string) (*domain.Report, error) {
	if err := s.fail("GetReport"); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.reports[id]
	if !ok {
		return nil, fmt.Errorf("report %s: %w", id, domain.ErrNotFound)
	}
	cp := *r
	return &cp, nil
}

func (s *Store) CreateReportFile(_ context.Context, f *domain.ReportFile) error {
	if err := s.fail("CreateReportFile"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files = append(s.files, *f)
	return nil
}

func (s *Store) ListReportFiles(_ context.Context, reportID string) ([]domain.ReportFile, error) {
	if err := s.fail("ListReportFiles"); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.ReportFile
	for _, f := range s.files {
		if f.ReportID == reportID {
			out = append(out, f)
		}
	}
	return out, nil
}
