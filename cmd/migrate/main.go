// cmd/migrate/main.go
// Imports users, races and results from the legacy MySQL dashboard database
// into PostgreSQL. Venues are canonicalized and race IDs derived the same way
// the sync derives them, so re-runs and later syncs never duplicate a race.
//
// Usage:
//
//	MYSQL_DSN="user:pass@tcp(host:3306)/hippo?parseTime=true" \
//	DB_PASS="pgpass" \
//	go run ./cmd/migrate
package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/uptrace/bun"

	"github.com/padraicbc/hippodash/config"
	bundb "github.com/padraicbc/hippodash/db"
	"github.com/padraicbc/hippodash/models"
	"github.com/padraicbc/hippodash/normalize"
)

const batchSize = 500

func main() {
	ctx := context.Background()

	cfg := config.Load()

	// --- MySQL ---
	if cfg.MySQLDSN == "" {
		log.Fatal("MYSQL_DSN required, e.g.: user:pass@tcp(host:3306)/hippo?parseTime=true")
	}
	myDB, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		log.Fatalf("open mysql: %v", err)
	}
	defer myDB.Close()
	myDB.SetMaxOpenConns(4)
	if err := myDB.PingContext(ctx); err != nil {
		log.Fatalf("ping mysql: %v", err)
	}
	log.Println("connected to MySQL")

	// --- PostgreSQL ---
	pgDB := bundb.Setup(cfg)
	defer pgDB.Close()
	log.Println("connected to PostgreSQL")

	// Create tables (idempotent)
	if err := bundb.CreateTables(ctx, pgDB); err != nil {
		log.Fatalf("create tables: %v", err)
	}

	m := &migrator{
		my:       myDB,
		pg:       pgDB,
		venues:   normalize.DefaultVenues,
		currency: cfg.Feed.DefaultCurrency,
		raceIDs:  make(map[int64]string),
		now:      time.Now().UTC(),
	}

	steps := []struct {
		name string
		fn   func(context.Context) (int, error)
	}{
		{"users", m.users},
		{"races", m.races},
		{"results", m.results},
	}

	for _, s := range steps {
		n, err := s.fn(ctx)
		if err != nil {
			log.Fatalf("migrate %s: %v", s.name, err)
		}
		log.Printf("%-15s  %d rows migrated", s.name, n)
	}
	if m.skipped > 0 {
		log.Printf("%d legacy rows skipped (unknown venue, bad race number or orphan result)", m.skipped)
	}

	resetSequences(ctx, pgDB)
	log.Println("migration complete")
}

type migrator struct {
	my       *sql.DB
	pg       *bun.DB
	venues   *normalize.Venues
	currency string
	// raceIDs maps legacy numeric race IDs to derived ones.
	raceIDs map[int64]string
	skipped int
	now     time.Time
}

// bulkInsert inserts a batch, skipping rows that already exist (idempotent re-runs).
func bulkInsert[T any](ctx context.Context, pgDB *bun.DB, rows []T) error {
	if len(rows) == 0 {
		return nil
	}
	_, err := pgDB.NewInsert().Model(&rows).On("CONFLICT DO NOTHING").Exec(ctx)
	return err
}

// batcher accumulates rows and flushes them in batchSize chunks.
type batcher[T any] struct {
	ctx   context.Context
	pg    *bun.DB
	rows  []T
	total int
}

func (b *batcher[T]) add(row T) error {
	b.rows = append(b.rows, row)
	if len(b.rows) < batchSize {
		return nil
	}
	return b.flush()
}

func (b *batcher[T]) flush() error {
	if err := bulkInsert(b.ctx, b.pg, b.rows); err != nil {
		return err
	}
	b.total += len(b.rows)
	b.rows = b.rows[:0]
	return nil
}

// --- per-table migrations ---

func (m *migrator) users(ctx context.Context) (int, error) {
	rows, err := m.my.QueryContext(ctx, "SELECT id, username, password FROM users")
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	b := &batcher[models.User]{ctx: ctx, pg: m.pg}
	for rows.Next() {
		var r models.User
		if err := rows.Scan(&r.ID, &r.Username, &r.Password); err != nil {
			return b.total, err
		}
		if err := b.add(r); err != nil {
			return b.total, err
		}
	}
	if err := rows.Err(); err != nil {
		return b.total, err
	}
	err = b.flush()
	return b.total, err
}

func (m *migrator) races(ctx context.Context) (int, error) {
	rows, err := m.my.QueryContext(ctx,
		`SELECT id, race_date, venue, race_number, start_time, distance, title,
		        purse, currency, participants, temperature
		 FROM races`)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	b := &batcher[models.Race]{ctx: ctx, pg: m.pg}
	for rows.Next() {
		var (
			lr          legacyRace
			startTime   sql.NullString
			distance    sql.NullInt64
			title       sql.NullString
			purse       sql.NullFloat64
			currency    sql.NullString
			temperature sql.NullFloat64
		)
		if err := rows.Scan(&lr.ID, &lr.Date, &lr.Venue, &lr.Number, &startTime, &distance,
			&title, &purse, &currency, &lr.Participants, &temperature); err != nil {
			return b.total, err
		}
		lr.Time = startTime.String
		lr.Distance = int(distance.Int64)
		lr.Title = title.String
		lr.Purse = purse.Float64
		lr.Currency = currency.String
		lr.Temperature = nullFloat(temperature)

		race, ok := m.convertRace(lr)
		if !ok {
			m.skipped++
			continue
		}
		if err := b.add(race); err != nil {
			return b.total, err
		}
	}
	if err := rows.Err(); err != nil {
		return b.total, err
	}
	err = b.flush()
	return b.total, err
}

func (m *migrator) results(ctx context.Context) (int, error) {
	rows, err := m.my.QueryContext(ctx,
		"SELECT race_id, arrival, rapports, simple, couple, trio FROM results")
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	b := &batcher[models.Result]{ctx: ctx, pg: m.pg}
	for rows.Next() {
		var lr legacyResult
		if err := rows.Scan(&lr.RaceID, &lr.Arrival, &lr.Rapports, &lr.Simple, &lr.Couple, &lr.Trio); err != nil {
			return b.total, err
		}

		res, ok := m.convertResult(lr)
		if !ok {
			m.skipped++
			continue
		}
		if err := b.add(res); err != nil {
			return b.total, err
		}
	}
	if err := rows.Err(); err != nil {
		return b.total, err
	}
	err = b.flush()
	return b.total, err
}

// --- helpers ---

func nullFloat(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	return &n.Float64
}

// resetSequences advances each PG sequence to MAX(id) so new inserts don't conflict.
func resetSequences(ctx context.Context, pgDB *bun.DB) {
	seqs := []struct{ seq, table, col string }{
		{"users_id_seq", "users", "id"},
	}
	for _, s := range seqs {
		q := fmt.Sprintf(
			"SELECT setval('%s', COALESCE((SELECT MAX(%s) FROM %s), 1))",
			s.seq, s.col, s.table,
		)
		if _, err := pgDB.ExecContext(ctx, q); err != nil {
			log.Printf("reset seq %s: %v", s.seq, err)
		}
	}
	log.Println("sequences reset")
}
