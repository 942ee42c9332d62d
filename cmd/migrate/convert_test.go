package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/padraicbc/hippodash/models"
	"github.com/padraicbc/hippodash/normalize"
)

func newTestMigrator() *migrator {
	return &migrator{
		venues:   normalize.DefaultVenues,
		currency: "DH",
		raceIDs:  make(map[int64]string),
		now:      time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestConvertRace(t *testing.T) {
	m := newTestMigrator()
	day := time.Date(2023, 11, 4, 0, 0, 0, 0, time.UTC)

	race, ok := m.convertRace(legacyRace{
		ID:           17,
		Date:         day.Add(14 * time.Hour),
		Venue:        "CASABLANCA",
		Number:       4,
		Time:         " 16:05 ",
		Distance:     1900,
		Title:        "PRIX HASSAN",
		Purse:        60000,
		Participants: []byte(`[{"number":"2","horse":"SABA","weight":"57"},{"number":1}]`),
	})
	require.True(t, ok)

	assert.Equal(t, normalize.RaceID(day, "Casablanca-Anfa", 4), race.ID)
	assert.Equal(t, race.ID, m.raceIDs[17])
	assert.Equal(t, day, race.Date)
	assert.Equal(t, "Casablanca-Anfa", race.Venue)
	assert.Equal(t, "16:05", race.Time)
	assert.Equal(t, "DH", race.Currency)
	assert.Equal(t, []models.Participant{
		{Number: 1, Horse: normalize.UnknownName, Jockey: normalize.UnknownName, Weight: normalize.DefaultWeight},
		{Number: 2, Horse: "SABA", Jockey: normalize.UnknownName, Weight: 57},
	}, race.Participants)
}

func TestConvertRaceRejects(t *testing.T) {
	m := newTestMigrator()

	_, ok := m.convertRace(legacyRace{ID: 1, Venue: "Chantilly", Number: 1})
	assert.False(t, ok)
	_, ok = m.convertRace(legacyRace{ID: 2, Venue: "Rabat", Number: 0})
	assert.False(t, ok)
	assert.Empty(t, m.raceIDs)
}

func TestConvertRaceBadParticipants(t *testing.T) {
	race, ok := newTestMigrator().convertRace(legacyRace{ID: 3, Venue: "Rabat", Number: 2, Participants: []byte(`{oops`)})
	require.True(t, ok)
	assert.NotNil(t, race.Participants)
	assert.Empty(t, race.Participants)
}

func TestConvertResult(t *testing.T) {
	m := newTestMigrator()
	m.raceIDs[17] = "race-17"

	res, ok := m.convertResult(legacyResult{
		RaceID:   17,
		Arrival:  []byte(`["4", 7, {"numero": 2}, "x"]`),
		Rapports: []byte(`{"4": "12,5", "7": 3}`),
		Simple:   []byte(`{"4": -1, "": 2, "9": "n/a"}`),
		Couple:   nil,
		Trio:     []byte(`not json`),
	})
	require.True(t, ok)
	assert.Equal(t, "race-17", res.RaceID)
	assert.Equal(t, []int{4, 7, 2}, res.Arrival)
	assert.Equal(t, models.Payouts{"4": 12.5, "7": 3}, res.Rapports)
	assert.Equal(t, models.Payouts{}, res.Simple)
	assert.Equal(t, models.Payouts{}, res.Couple)
	assert.Equal(t, models.Payouts{}, res.Trio)

	_, ok = m.convertResult(legacyResult{RaceID: 99})
	assert.False(t, ok)
}
