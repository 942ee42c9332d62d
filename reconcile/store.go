package reconcile

import (
	"context"
	"time"

	"github.com/padraicbc/hippodash/feed"
	"github.com/padraicbc/hippodash/models"
)

// Store is the record store a pass reads and writes. Lookups that match
// nothing return models.ErrNotFound. Update methods write only the named
// columns, or every column when none are given.
type Store interface {
	FindRaceByKey(ctx context.Context, date time.Time, venue string, number int) (*models.Race, error)
	FindRaceByID(ctx context.Context, id string) (*models.Race, error)
	CreateRace(ctx context.Context, race *models.Race) error
	UpdateRace(ctx context.Context, race *models.Race, columns ...string) error
	FindResultByRaceID(ctx context.Context, raceID string) (*models.Result, error)
	CreateResult(ctx context.Context, res *models.Result) error
	UpdateResult(ctx context.Context, res *models.Result, columns ...string) error
}

// Feed is the external programme source.
type Feed interface {
	Programme(ctx context.Context, date time.Time, venue string) ([]feed.Meeting, error)
	RaceDetail(ctx context.Context, id string) (*feed.RaceDetail, error)
}
