package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/padraicbc/hippodash/models"
)

// Store reads and writes races and results.
type Store struct {
	db *bun.DB
}

// NewStore returns a Store over db.
func NewStore(db *bun.DB) *Store {
	return &Store{db: db}
}

// RaceFilter narrows ListRaces. Zero fields match everything.
type RaceFilter struct {
	Date  time.Time
	Venue string
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return models.ErrNotFound
	}
	return err
}

// FindRaceByKey returns the race run on date at venue (any casing) under
// number. When several rows match, the oldest wins.
func (s *Store) FindRaceByKey(ctx context.Context, date time.Time, venue string, number int) (*models.Race, error) {
	race := new(models.Race)
	err := s.db.NewSelect().Model(race).
		Where("rc.date = ?", date.Format(time.DateOnly)).
		Where("lower(rc.venue) = lower(?)", venue).
		Where("rc.number = ?", number).
		OrderExpr("rc.created_at ASC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, notFound(err)
	}
	return race, nil
}

// FindRaceByID returns the race with the given ID.
func (s *Store) FindRaceByID(ctx context.Context, id string) (*models.Race, error) {
	race := new(models.Race)
	if err := s.db.NewSelect().Model(race).Where("rc.id = ?", id).Scan(ctx); err != nil {
		return nil, notFound(err)
	}
	return race, nil
}

// ListRaces returns races ordered by date, venue and number.
func (s *Store) ListRaces(ctx context.Context, f RaceFilter) ([]models.Race, error) {
	races := []models.Race{}
	q := s.db.NewSelect().Model(&races)
	if !f.Date.IsZero() {
		q = q.Where("rc.date = ?", f.Date.Format(time.DateOnly))
	}
	if f.Venue != "" {
		q = q.Where("lower(rc.venue) = lower(?)", f.Venue)
	}
	err := q.OrderExpr("rc.date DESC, rc.venue ASC, rc.number ASC").Scan(ctx)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	return races, nil
}

// Dates returns the distinct race dates, newest first, optionally limited
// to one venue.
func (s *Store) Dates(ctx context.Context, venue string) ([]string, error) {
	dates := []string{}
	q := s.db.NewSelect().
		TableExpr("races").
		ColumnExpr("DISTINCT date::text").
		OrderExpr("date::text DESC")
	if venue != "" {
		q = q.Where("lower(venue) = lower(?)", venue)
	}
	if err := q.Scan(ctx, &dates); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	return dates, nil
}

// CreateRace inserts race.
func (s *Store) CreateRace(ctx context.Context, race *models.Race) error {
	if _, err := s.db.NewInsert().Model(race).Exec(ctx); err != nil {
		return fmt.Errorf("insert race %s: %w", race.ID, err)
	}
	return nil
}

// UpdateRace writes the named columns of race, or all of them when none are
// named.
func (s *Store) UpdateRace(ctx context.Context, race *models.Race, columns ...string) error {
	q := s.db.NewUpdate().Model(race).WherePK()
	if len(columns) > 0 {
		q = q.Column(columns...)
	}
	return affected(q.Exec(ctx))
}

// DeleteRace removes a race together with its result.
func (s *Store) DeleteRace(ctx context.Context, id string) error {
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().Model((*models.Result)(nil)).Where("race_id = ?", id).Exec(ctx); err != nil {
			return fmt.Errorf("delete result %s: %w", id, err)
		}
		return affected(tx.NewDelete().Model((*models.Race)(nil)).Where("id = ?", id).Exec(ctx))
	})
}

// FindResultByRaceID returns the result of the race.
func (s *Store) FindResultByRaceID(ctx context.Context, raceID string) (*models.Result, error) {
	res := new(models.Result)
	if err := s.db.NewSelect().Model(res).Where("r.race_id = ?", raceID).Scan(ctx); err != nil {
		return nil, notFound(err)
	}
	return res, nil
}

// ResultsByDate returns the results of every race run on date, in card
// order.
func (s *Store) ResultsByDate(ctx context.Context, date time.Time) ([]models.Result, error) {
	results := []models.Result{}
	err := s.db.NewSelect().Model(&results).
		Join("INNER JOIN races AS rc ON rc.id = r.race_id").
		Where("rc.date = ?", date.Format(time.DateOnly)).
		OrderExpr("rc.venue ASC, rc.number ASC").
		Scan(ctx)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	return results, nil
}

// CreateResult inserts res.
func (s *Store) CreateResult(ctx context.Context, res *models.Result) error {
	if _, err := s.db.NewInsert().Model(res).Exec(ctx); err != nil {
		return fmt.Errorf("insert result %s: %w", res.RaceID, err)
	}
	return nil
}

// UpdateResult writes the named columns of res, or all of them when none
// are named.
func (s *Store) UpdateResult(ctx context.Context, res *models.Result, columns ...string) error {
	q := s.db.NewUpdate().Model(res).WherePK()
	if len(columns) > 0 {
		q = q.Column(columns...)
	}
	return affected(q.Exec(ctx))
}

// SaveResult inserts res or replaces the arrival and payouts of the stored one.
func (s *Store) SaveResult(ctx context.Context, res *models.Result) error {
	_, err := s.db.NewInsert().Model(res).
		On("CONFLICT (race_id) DO UPDATE").
		Set("arrival = EXCLUDED.arrival").
		Set("rapports = EXCLUDED.rapports").
		Set("simple = EXCLUDED.simple").
		Set("couple = EXCLUDED.couple").
		Set("trio = EXCLUDED.trio").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("save result %s: %w", res.RaceID, err)
	}
	return nil
}

func affected(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return models.ErrNotFound
	}
	return nil
}
