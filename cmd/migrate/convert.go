package main

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/padraicbc/hippodash/feed"
	"github.com/padraicbc/hippodash/models"
	"github.com/padraicbc/hippodash/normalize"
)

// legacyRace is one row of the legacy races table. Participants is the raw
// JSON column, shaped like the feed's runner list.
type legacyRace struct {
	ID           int64
	Date         time.Time
	Venue        string
	Number       int
	Time         string
	Distance     int
	Title        string
	Purse        float64
	Currency     string
	Participants []byte
	Temperature  *float64
}

// legacyResult is one row of the legacy results table; every column but
// RaceID is raw JSON.
type legacyResult struct {
	RaceID   int64
	Arrival  []byte
	Rapports []byte
	Simple   []byte
	Couple   []byte
	Trio     []byte
}

// convertRace maps a legacy race and remembers its derived ID. Races at
// venues off the allow-list, or without a positive number, are rejected.
func (m *migrator) convertRace(lr legacyRace) (models.Race, bool) {
	venue, ok := m.venues.Canonical(lr.Venue)
	if !ok || lr.Number <= 0 {
		return models.Race{}, false
	}

	day := normalize.Day(lr.Date)
	id := normalize.RaceID(day, venue, lr.Number)
	m.raceIDs[lr.ID] = id

	var runners []feed.Runner
	participants := []models.Participant{}
	if len(lr.Participants) > 0 && json.Unmarshal(lr.Participants, &runners) == nil {
		participants = normalize.Participants(runners)
	}

	currency := strings.ToUpper(strings.TrimSpace(lr.Currency))
	if currency == "" {
		currency = m.currency
	}

	return models.Race{
		ID:           id,
		Date:         day,
		Venue:        venue,
		Number:       lr.Number,
		Time:         strings.TrimSpace(lr.Time),
		Distance:     max(lr.Distance, 0),
		Title:        strings.TrimSpace(lr.Title),
		Purse:        max(lr.Purse, 0),
		Currency:     currency,
		Participants: participants,
		Temperature:  lr.Temperature,
		CreatedAt:    m.now,
		UpdatedAt:    m.now,
	}, true
}

// convertResult maps a legacy result onto the race migrated before it.
// Results whose race was not migrated are rejected.
func (m *migrator) convertResult(lr legacyResult) (models.Result, bool) {
	id, ok := m.raceIDs[lr.RaceID]
	if !ok {
		return models.Result{}, false
	}

	var entries []json.RawMessage
	_ = json.Unmarshal(lr.Arrival, &entries)
	res := models.NewResult(id, normalize.Arrival(entries), m.now)
	res.Rapports = payouts(lr.Rapports)
	res.Simple = payouts(lr.Simple)
	res.Couple = payouts(lr.Couple)
	res.Trio = payouts(lr.Trio)
	return *res, true
}

// payouts decodes a legacy payout column whose amounts may be numbers or
// numeric strings. Unreadable amounts are dropped.
func payouts(raw []byte) models.Payouts {
	out := models.Payouts{}
	var m map[string]json.RawMessage
	if len(raw) == 0 || json.Unmarshal(raw, &m) != nil {
		return out
	}
	for key, v := range m {
		key = strings.TrimSpace(key)
		if amount, ok := normalize.Float(v); ok && key != "" && amount >= 0 {
			out[key] = amount
		}
	}
	return out
}
