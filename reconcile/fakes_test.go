package reconcile

import (
	"context"
	"encoding/json"
	"maps"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/padraicbc/hippodash/feed"
	"github.com/padraicbc/hippodash/models"
)

// memStore is an in-memory Store that counts writes. Records are copied on
// the way in and out so callers cannot mutate stored state directly.
type memStore struct {
	races   []*models.Race
	results map[string]*models.Result

	writes        int
	resultColumns [][]string
	failFind      error
	failCreate    error
}

func newMemStore() *memStore {
	return &memStore{results: make(map[string]*models.Result)}
}

func copyRace(r *models.Race) *models.Race {
	c := *r
	c.Participants = slices.Clone(r.Participants)
	if r.Temperature != nil {
		t := *r.Temperature
		c.Temperature = &t
	}
	return &c
}

func copyResult(r *models.Result) *models.Result {
	c := *r
	c.Arrival = slices.Clone(r.Arrival)
	c.Rapports = maps.Clone(r.Rapports)
	c.Simple = maps.Clone(r.Simple)
	c.Couple = maps.Clone(r.Couple)
	c.Trio = maps.Clone(r.Trio)
	return &c
}

func (s *memStore) FindRaceByKey(_ context.Context, date time.Time, venue string, number int) (*models.Race, error) {
	if s.failFind != nil {
		return nil, s.failFind
	}
	for _, r := range s.races {
		if r.Date.Equal(date) && strings.EqualFold(r.Venue, venue) && r.Number == number {
			return copyRace(r), nil
		}
	}
	return nil, models.ErrNotFound
}

func (s *memStore) FindRaceByID(_ context.Context, id string) (*models.Race, error) {
	for _, r := range s.races {
		if r.ID == id {
			return copyRace(r), nil
		}
	}
	return nil, models.ErrNotFound
}

func (s *memStore) CreateRace(_ context.Context, race *models.Race) error {
	if s.failCreate != nil {
		return s.failCreate
	}
	s.writes++
	s.races = append(s.races, copyRace(race))
	return nil
}

func (s *memStore) UpdateRace(_ context.Context, race *models.Race, _ ...string) error {
	for i, r := range s.races {
		if r.ID == race.ID {
			s.writes++
			s.races[i] = copyRace(race)
			return nil
		}
	}
	return models.ErrNotFound
}

func (s *memStore) FindResultByRaceID(_ context.Context, raceID string) (*models.Result, error) {
	r, ok := s.results[raceID]
	if !ok {
		return nil, models.ErrNotFound
	}
	return copyResult(r), nil
}

func (s *memStore) CreateResult(_ context.Context, res *models.Result) error {
	s.writes++
	s.results[res.RaceID] = copyResult(res)
	return nil
}

func (s *memStore) UpdateResult(_ context.Context, res *models.Result, columns ...string) error {
	if _, ok := s.results[res.RaceID]; !ok {
		return models.ErrNotFound
	}
	s.writes++
	s.resultColumns = append(s.resultColumns, columns)
	s.results[res.RaceID] = copyResult(res)
	return nil
}

// stubFeed serves a fixed programme and details keyed by feed race ID.
type stubFeed struct {
	meetings    []feed.Meeting
	err         error
	details     map[string]*feed.RaceDetail
	detailErr   error
	detailCalls int
	lastVenue   string
	lastDate    time.Time
}

func (f *stubFeed) Programme(_ context.Context, date time.Time, venue string) ([]feed.Meeting, error) {
	f.lastDate, f.lastVenue = date, venue
	if f.err != nil {
		return nil, f.err
	}
	return f.meetings, nil
}

func (f *stubFeed) RaceDetail(_ context.Context, id string) (*feed.RaceDetail, error) {
	f.detailCalls++
	if f.detailErr != nil {
		return nil, f.detailErr
	}
	d, ok := f.details[id]
	if !ok {
		return nil, feed.ErrUnavailable
	}
	return d, nil
}

// meetings decodes a programme payload the way the feed client does.
func meetings(t *testing.T, payload string) []feed.Meeting {
	t.Helper()
	var p struct {
		Meetings []feed.Meeting `json:"meetings"`
	}
	require.NoError(t, json.Unmarshal([]byte(payload), &p))
	return p.Meetings
}

func detail(t *testing.T, payload string) *feed.RaceDetail {
	t.Helper()
	var d feed.RaceDetail
	require.NoError(t, json.Unmarshal([]byte(payload), &d))
	return &d
}
