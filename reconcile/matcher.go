package reconcile

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/padraicbc/hippodash/models"
	"github.com/padraicbc/hippodash/normalize"
)

// Matcher resolves an external race to at most one stored race by exact
// date, venue (case-insensitive) and race number. It never guesses: anything
// short of an exact match is reported as not found.
type Matcher struct {
	store Store
}

// NewMatcher returns a Matcher reading from store.
func NewMatcher(store Store) *Matcher {
	return &Matcher{store: store}
}

// Match returns the stored race for the key, or nil when there is none.
// venue must already be canonical.
func (m *Matcher) Match(ctx context.Context, date time.Time, venue string, number int) (*models.Race, error) {
	venue = strings.TrimSpace(venue)
	if venue == "" || number <= 0 {
		return nil, nil
	}

	race, err := m.store.FindRaceByKey(ctx, normalize.Day(date), venue, number)
	if errors.Is(err, models.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return race, nil
}
