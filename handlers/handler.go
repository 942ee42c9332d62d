package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/uptrace/bun"

	"github.com/padraicbc/hippodash/db"
	"github.com/padraicbc/hippodash/models"
	"github.com/padraicbc/hippodash/normalize"
	"github.com/padraicbc/hippodash/reconcile"
)

// Store is the race and result persistence behind the dashboard routes.
type Store interface {
	ListRaces(ctx context.Context, f db.RaceFilter) ([]models.Race, error)
	Dates(ctx context.Context, venue string) ([]string, error)
	FindRaceByID(ctx context.Context, id string) (*models.Race, error)
	CreateRace(ctx context.Context, race *models.Race) error
	UpdateRace(ctx context.Context, race *models.Race, columns ...string) error
	DeleteRace(ctx context.Context, id string) error
	FindResultByRaceID(ctx context.Context, raceID string) (*models.Result, error)
	ResultsByDate(ctx context.Context, date time.Time) ([]models.Result, error)
	SaveResult(ctx context.Context, res *models.Result) error
}

// Syncer runs one reconciliation pass.
type Syncer interface {
	Run(ctx context.Context, opts reconcile.Options) (*reconcile.Report, error)
}

// Handler holds shared dependencies used by all route handlers.
type Handler struct {
	db     *bun.DB
	JWTKey []byte

	store        Store
	syncer       Syncer
	venues       *normalize.Venues
	defaultVenue string
	currency     string
	now          func() time.Time
}

// Options carries the optional dependencies of a Handler.
type Options struct {
	Store  Store
	Syncer Syncer
	// Venues defaults to normalize.DefaultVenues.
	Venues *normalize.Venues
	// DefaultVenue is the feed venue token used when a sync request has none.
	DefaultVenue string
	// Currency is applied to manually created races without one.
	Currency string
}

// New creates a Handler with the given database connection and JWT signing key.
func New(bdb *bun.DB, jwtKey []byte, opts Options) *Handler {
	h := &Handler{
		db:           bdb,
		JWTKey:       jwtKey,
		store:        opts.Store,
		syncer:       opts.Syncer,
		venues:       opts.Venues,
		defaultVenue: opts.DefaultVenue,
		currency:     opts.Currency,
		now:          func() time.Time { return time.Now().UTC() },
	}
	if h.store == nil && bdb != nil {
		h.store = db.NewStore(bdb)
	}
	if h.venues == nil {
		h.venues = normalize.DefaultVenues
	}
	return h
}

// storeError maps a store failure to an HTTP error.
func storeError(err error, what string) error {
	if errors.Is(err, models.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, what+" not found")
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}

// parseDate reads a YYYY-MM-DD value as UTC midnight.
func parseDate(s string) (time.Time, error) {
	d, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, echo.NewHTTPError(http.StatusBadRequest, "date must be YYYY-MM-DD")
	}
	return d, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, models.ErrNotFound)
}
