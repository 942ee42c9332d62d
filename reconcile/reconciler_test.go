package reconcile

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/padraicbc/hippodash/feed"
	"github.com/padraicbc/hippodash/models"
	"github.com/padraicbc/hippodash/normalize"
)

var raceDay = time.Date(2024, 5, 12, 0, 0, 0, 0, time.UTC)

const casablancaCard = `{"meetings":[{"venue":"CASABLANCA","country":"FRA","races":[
	{"id":"ext-1","code":"C1","name":"PRIX DE L'OCEAN","time":"14:10","distance":"1600","finished":true,
	 "arrival":[{"position":1,"number":"4"},{"position":2,"number":7},3]},
	{"id":"ext-2","code":"C2","name":"PRIX DES SABLES","time":"14:45","distance":2000,"finished":false,"arrival":[]}
]}]}`

func newTestReconciler(store Store, f Feed) *Reconciler {
	r := New(store, f, normalize.DefaultVenues, "dh", zap.NewNop())
	r.now = func() time.Time { return time.Date(2024, 5, 12, 18, 0, 0, 0, time.UTC) }
	return r
}

func storedRace(venue string, number int) *models.Race {
	return &models.Race{
		ID:           normalize.RaceID(raceDay, venue, number),
		Date:         raceDay,
		Venue:        venue,
		Number:       number,
		Participants: []models.Participant{},
	}
}

func TestRunIsIdempotent(t *testing.T) {
	store := newMemStore()
	f := &stubFeed{
		meetings: meetings(t, casablancaCard),
		details: map[string]*feed.RaceDetail{
			"ext-1": detail(t, `{"prize":"1 500 000 DH","temperature":"21,5","runners":[
				{"number":"7","horse":"ATLAS","jockey":"A. BENNANI","weight":"56,5"},
				{"number":4,"horse":"ZAGORA"}]}`),
			"ext-2": detail(t, `{"prize":"80 000"}`),
		},
	}
	rc := newTestReconciler(store, f)
	opts := Options{Date: raceDay, Venue: "MAR", AutoCreate: true}

	first, err := rc.Run(context.Background(), opts)
	require.NoError(t, err)
	assert.True(t, first.Success)
	assert.Len(t, first.RacesAdded, 2)
	assert.Len(t, first.ResultsCreated, 1)
	assert.Equal(t, 1, first.Pending)
	require.Len(t, store.races, 2)
	require.Len(t, store.results, 1)

	race := store.races[0]
	assert.Equal(t, "Casablanca-Anfa", race.Venue)
	assert.Equal(t, 1600, race.Distance)
	assert.Equal(t, 1500000.0, race.Purse)
	assert.Equal(t, "DH", race.Currency)
	require.NotNil(t, race.Temperature)
	assert.Equal(t, 21.5, *race.Temperature)
	assert.Equal(t, []models.Participant{
		{Number: 4, Horse: "ZAGORA", Jockey: normalize.UnknownName, Weight: normalize.DefaultWeight},
		{Number: 7, Horse: "ATLAS", Jockey: "A. BENNANI", Weight: 56.5},
	}, race.Participants)
	assert.Equal(t, []int{4, 7, 3}, store.results[race.ID].Arrival)

	writes := store.writes
	second, err := rc.Run(context.Background(), opts)
	require.NoError(t, err)
	assert.Empty(t, second.RacesAdded)
	assert.Empty(t, second.ResultsCreated)
	assert.Empty(t, second.ResultsUpdated)
	assert.Equal(t, 1, second.ResultsUnchanged)
	assert.Equal(t, writes, store.writes, "second pass must not write")
	assert.Len(t, store.races, 2)
	assert.Len(t, store.results, 1)
}

func TestRunPassesFeedArguments(t *testing.T) {
	f := &stubFeed{}
	local := time.Date(2024, 5, 12, 23, 30, 0, 0, time.FixedZone("WEST", 3600))

	rep, err := newTestReconciler(newMemStore(), f).Run(context.Background(), Options{Date: local, Venue: "MAR"})
	require.NoError(t, err)
	assert.Equal(t, raceDay, f.lastDate)
	assert.Equal(t, "MAR", f.lastVenue)
	assert.Equal(t, "2024-05-12", rep.Date)
	assert.True(t, rep.Success)
	assert.Zero(t, rep.MeetingsTotal)
}

func TestRunDropsVenuesOffTheAllowList(t *testing.T) {
	store := newMemStore()
	f := &stubFeed{meetings: meetings(t, `{"meetings":[
		{"venue":"VINCENNES","country":"MAR","races":[{"id":"x1","code":"C1","finished":true,"arrival":[1,2]}]},
		{"venue":"VINCENNES","races":[{"id":"x2","code":"C2","finished":true,"arrival":[1,2]}]},
		{"venue":"Rabat","country":"","races":[{"id":"r1","code":"C1","finished":false}]}
	]}`)}

	rep, err := newTestReconciler(store, f).Run(context.Background(), Options{Date: raceDay, AutoCreate: true})
	require.NoError(t, err)
	assert.Equal(t, 3, rep.MeetingsTotal)
	assert.Equal(t, 1, rep.MeetingsRetained)
	assert.Equal(t, []string{"VINCENNES"}, rep.IgnoredVenues)
	assert.Empty(t, rep.NotFound)
	require.Len(t, rep.RacesAdded, 1)
	assert.Equal(t, "Rabat", rep.RacesAdded[0].Venue)
	assert.Len(t, store.races, 1)
}

func TestRunCollapsesVenueAliases(t *testing.T) {
	store := newMemStore()
	f := &stubFeed{meetings: meetings(t, `{"meetings":[
		{"venue":"CASABLANCA","races":[{"id":"a","code":"C3","name":"PRIX A","finished":true,"arrival":[5,1]}]},
		{"venue":"Casa Anfa","races":[{"id":"b","code":"3","name":"PRIX A","finished":true,"arrival":[5,1]}]}
	]}`)}

	rep, err := newTestReconciler(store, f).Run(context.Background(), Options{Date: raceDay, AutoCreate: true})
	require.NoError(t, err)
	require.Len(t, store.races, 1)
	assert.Equal(t, "Casablanca-Anfa", store.races[0].Venue)
	assert.Len(t, store.results, 1)
	require.Len(t, rep.Skipped, 1)
	assert.Equal(t, ReasonDuplicate, rep.Skipped[0].Reason)
	assert.Equal(t, 2, rep.MeetingsRetained)
}

func TestRunMergesAliasListings(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{"unfinished first", `{"meetings":[
			{"venue":"CASABLANCA","races":[{"id":"a","code":"C3","name":"PRIX A","finished":false}]},
			{"venue":"Casa Anfa","races":[{"id":"b","code":"C3","name":"PRIX A","finished":true,"arrival":[5,1]}]}
		]}`},
		{"finished first without arrival", `{"meetings":[
			{"venue":"CASABLANCA","races":[{"id":"a","code":"C3","name":"PRIX A","finished":true,"arrival":[]}]},
			{"venue":"Casa Anfa","races":[{"id":"b","code":"C3","name":"PRIX A","finished":true,"arrival":[5,1]}]}
		]}`},
		{"finished first wins", `{"meetings":[
			{"venue":"CASABLANCA","races":[{"id":"a","code":"C3","name":"PRIX A","finished":true,"arrival":[5,1]}]},
			{"venue":"Casa Anfa","races":[{"id":"b","code":"C3","name":"PRIX A","finished":false}]}
		]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemStore()
			race := storedRace("Casablanca-Anfa", 3)
			store.races = append(store.races, race)
			f := &stubFeed{meetings: meetings(t, tt.payload)}

			rep, err := newTestReconciler(store, f).Run(context.Background(), Options{Date: raceDay})
			require.NoError(t, err)
			require.Len(t, store.results, 1)
			assert.Equal(t, []int{5, 1}, store.results[race.ID].Arrival)
			assert.Len(t, rep.ResultsCreated, 1)
			assert.Zero(t, rep.Pending)
			require.Len(t, rep.Skipped, 1)
			assert.Equal(t, ReasonDuplicate, rep.Skipped[0].Reason)
		})
	}
}

func TestRunSkipsMalformedRaces(t *testing.T) {
	store := newMemStore()
	store.races = append(store.races, storedRace("Rabat", 4))
	f := &stubFeed{meetings: meetings(t, `{"meetings":[{"venue":"RABAT","races":[
		{"id":"1","code":"C","finished":true,"arrival":[1]},
		{"id":"2","finished":true,"arrival":[1]},
		{"id":"3","code":"C4","name":"PRIX VIDE","finished":true,"arrival":["x",0,{"number":"?"}]}
	]}]}`)}

	rep, err := newTestReconciler(store, f).Run(context.Background(), Options{Date: raceDay})
	require.NoError(t, err)
	require.Len(t, rep.Skipped, 3)
	assert.Equal(t, ReasonInvalidNumber, rep.Skipped[0].Reason)
	assert.Equal(t, "C", rep.Skipped[0].Code)
	assert.Equal(t, ReasonInvalidNumber, rep.Skipped[1].Reason)
	assert.Equal(t, ReasonNoArrival, rep.Skipped[2].Reason)
	assert.Equal(t, "PRIX VIDE", rep.Skipped[2].Name)
	assert.Empty(t, store.results)
}

func TestRunPreservesPayouts(t *testing.T) {
	store := newMemStore()
	race := storedRace("Marrakech", 2)
	store.races = append(store.races, race)
	existing := models.NewResult(race.ID, []int{1, 2, 3}, raceDay)
	existing.Rapports = models.Payouts{"4": 12.5}
	existing.Simple = models.Payouts{"4": 3.2, "9": 1.8}
	existing.Couple = models.Payouts{"4-9": 22}
	existing.Trio = models.Payouts{"4-9-1": 140.4}
	store.results[race.ID] = copyResult(existing)

	f := &stubFeed{meetings: meetings(t, `{"meetings":[{"venue":"marrakesh","races":[
		{"id":"m2","code":"c2","name":"PRIX DE LA PALMERAIE","finished":true,"arrival":["4","9",1]}
	]}]}`)}

	rep, err := newTestReconciler(store, f).Run(context.Background(), Options{Date: raceDay})
	require.NoError(t, err)
	require.Len(t, rep.ResultsUpdated, 1)
	assert.Equal(t, []int{4, 9, 1}, rep.ResultsUpdated[0].Arrival)

	got := store.results[race.ID]
	assert.Equal(t, []int{4, 9, 1}, got.Arrival)
	assert.Equal(t, existing.Rapports, got.Rapports)
	assert.Equal(t, existing.Simple, got.Simple)
	assert.Equal(t, existing.Couple, got.Couple)
	assert.Equal(t, existing.Trio, got.Trio)
	assert.Equal(t, [][]string{{"arrival", "updated_at"}}, store.resultColumns)
}

func TestRunReportsUnmatchedRaces(t *testing.T) {
	store := newMemStore()
	f := &stubFeed{meetings: meetings(t, `{"meetings":[{"venue":"El-Jadida","races":[
		{"id":"j5","code":"C5","name":"PRIX DE MAZAGAN","finished":true,"arrival":[2,6]}
	]}]}`)}

	rep, err := newTestReconciler(store, f).Run(context.Background(), Options{Date: raceDay})
	require.NoError(t, err)
	require.Len(t, rep.NotFound, 1)
	assert.Equal(t, NotFound{
		Venue:     "El Jadida",
		FeedVenue: "El-Jadida",
		Number:    5,
		Code:      "C5",
		Name:      "PRIX DE MAZAGAN",
	}, rep.NotFound[0])
	assert.Empty(t, store.races)
	assert.Empty(t, store.results)
	assert.Zero(t, store.writes)
	assert.Zero(t, f.detailCalls)
}

func TestRunFeedFailureAborts(t *testing.T) {
	store := newMemStore()
	f := &stubFeed{err: fmt.Errorf("feed: get programme: %w: status 503", feed.ErrUnavailable)}

	rep, err := newTestReconciler(store, f).Run(context.Background(), Options{Date: raceDay, AutoCreate: true})
	require.Error(t, err)
	assert.ErrorIs(t, err, feed.ErrUnavailable)
	require.NotNil(t, rep)
	assert.False(t, rep.Success)
	assert.Contains(t, rep.Error, "503")
	assert.NotEmpty(t, rep.Message)
	assert.Zero(t, store.writes)
}

func TestRunIgnoresDetailFailures(t *testing.T) {
	store := newMemStore()
	f := &stubFeed{
		meetings:  meetings(t, casablancaCard),
		detailErr: errors.New("connection reset"),
	}

	rep, err := newTestReconciler(store, f).Run(context.Background(), Options{Date: raceDay, AutoCreate: true})
	require.NoError(t, err)
	assert.True(t, rep.Success)
	assert.Len(t, rep.RacesAdded, 2)
	assert.Len(t, rep.ResultsCreated, 1)
	assert.Empty(t, rep.Skipped)

	race := store.races[0]
	assert.Zero(t, race.Purse)
	assert.Equal(t, "DH", race.Currency)
	assert.Empty(t, race.Participants)
	assert.Nil(t, race.Temperature)
	// one attempt per race, not one per stage
	assert.Equal(t, 2, f.detailCalls)
}

func TestRunEnrichesMatchedRaces(t *testing.T) {
	store := newMemStore()
	race := storedRace("Settat", 1)
	race.Purse, race.Currency = 10000, "DH"
	store.races = append(store.races, race)
	f := &stubFeed{
		meetings: meetings(t, `{"meetings":[{"venue":"SETTAT","races":[
			{"id":"s1","code":"C1","finished":true,"arrival":[3],"currency":"eur"}]}]}`),
		details: map[string]*feed.RaceDetail{
			"s1": detail(t, `{"prize":"abc","temperature":30,"runners":[{"number":"3","horse":"NOUR"}]}`),
		},
	}

	rep, err := newTestReconciler(store, f).Run(context.Background(), Options{Date: raceDay})
	require.NoError(t, err)
	assert.Len(t, rep.ResultsCreated, 1)

	got := store.races[0]
	assert.Equal(t, 10000.0, got.Purse, "invalid prize keeps the stored purse")
	assert.Equal(t, "DH", got.Currency)
	require.NotNil(t, got.Temperature)
	assert.Equal(t, 30.0, *got.Temperature)
	assert.Equal(t, []models.Participant{{Number: 3, Horse: "NOUR", Jockey: normalize.UnknownName, Weight: normalize.DefaultWeight}}, got.Participants)
}

func TestRunRecordsStoreErrors(t *testing.T) {
	store := newMemStore()
	store.failFind = errors.New("connection refused")
	f := &stubFeed{meetings: meetings(t, casablancaCard)}

	rep, err := newTestReconciler(store, f).Run(context.Background(), Options{Date: raceDay, AutoCreate: true})
	require.NoError(t, err)
	assert.True(t, rep.Success)
	require.Len(t, rep.Skipped, 3)
	for _, s := range rep.Skipped {
		assert.Contains(t, s.Reason, "connection refused")
	}
	assert.Zero(t, store.writes)
}

func TestReportSummary(t *testing.T) {
	rep := &Report{
		Date:             "2024-05-12",
		RacesAdded:       []RaceRef{{}, {}},
		ResultsCreated:   []RaceRef{{}},
		ResultsUnchanged: 3,
		MeetingsTotal:    4,
		MeetingsRetained: 1,
	}
	assert.Equal(t,
		"sync 2024-05-12: 2 races added, 1 results created, 0 updated, 3 unchanged, 0 skipped, 0 not found; 1/4 meetings tracked",
		rep.Summary(),
	)
}
