package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/padraicbc/hippodash/db"
	"github.com/padraicbc/hippodash/models"
	"github.com/padraicbc/hippodash/reconcile"
)

var testNow = time.Date(2024, 5, 12, 18, 0, 0, 0, time.UTC)

type fakeStore struct {
	races   map[string]*models.Race
	results map[string]*models.Result
	filter  db.RaceFilter
	columns []string
	err     error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		races:   make(map[string]*models.Race),
		results: make(map[string]*models.Result),
	}
}

func (s *fakeStore) ListRaces(_ context.Context, f db.RaceFilter) ([]models.Race, error) {
	s.filter = f
	out := []models.Race{}
	for _, r := range s.races {
		out = append(out, *r)
	}
	return out, s.err
}

func (s *fakeStore) Dates(context.Context, string) ([]string, error) {
	return []string{"2024-05-12"}, s.err
}

func (s *fakeStore) FindRaceByID(_ context.Context, id string) (*models.Race, error) {
	if s.err != nil {
		return nil, s.err
	}
	r, ok := s.races[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	c := *r
	return &c, nil
}

func (s *fakeStore) CreateRace(_ context.Context, race *models.Race) error {
	if _, ok := s.races[race.ID]; ok {
		return errors.New(`ERROR: duplicate key value violates unique constraint "races_pkey" (SQLSTATE=23505)`)
	}
	c := *race
	s.races[race.ID] = &c
	return nil
}

func (s *fakeStore) UpdateRace(_ context.Context, race *models.Race, columns ...string) error {
	s.columns = columns
	c := *race
	s.races[race.ID] = &c
	return nil
}

func (s *fakeStore) DeleteRace(_ context.Context, id string) error {
	if _, ok := s.races[id]; !ok {
		return models.ErrNotFound
	}
	delete(s.races, id)
	delete(s.results, id)
	return nil
}

func (s *fakeStore) FindResultByRaceID(_ context.Context, raceID string) (*models.Result, error) {
	r, ok := s.results[raceID]
	if !ok {
		return nil, models.ErrNotFound
	}
	return r, nil
}

func (s *fakeStore) ResultsByDate(context.Context, time.Time) ([]models.Result, error) {
	out := []models.Result{}
	for _, r := range s.results {
		out = append(out, *r)
	}
	return out, nil
}

func (s *fakeStore) SaveResult(_ context.Context, res *models.Result) error {
	s.results[res.RaceID] = res
	return nil
}

type fakeSyncer struct {
	opts   reconcile.Options
	called bool
	report *reconcile.Report
	err    error
}

func (f *fakeSyncer) Run(_ context.Context, opts reconcile.Options) (*reconcile.Report, error) {
	f.called = true
	f.opts = opts
	return f.report, f.err
}

func newTestHandler(store Store, syncer Syncer) *Handler {
	h := New(nil, []byte("k"), Options{Store: store, Syncer: syncer, DefaultVenue: "MAR", Currency: "DH"})
	h.now = func() time.Time { return testNow }
	return h
}

// request builds an echo context for method and target with an optional
// JSON body and path parameters given as name, value pairs.
func request(method, target, body string, params ...string) (echo.Context, *httptest.ResponseRecorder) {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	c := echo.New().NewContext(req, rec)

	var names, values []string
	for i := 0; i+1 < len(params); i += 2 {
		names = append(names, params[i])
		values = append(values, params[i+1])
	}
	c.SetParamNames(names...)
	c.SetParamValues(values...)
	return c, rec
}

func httpStatus(err error) int {
	if he, ok := err.(*echo.HTTPError); ok {
		return he.Code
	}
	return http.StatusInternalServerError
}
