// Package reconcile runs sync passes that bring stored races and results in
// line with the external programme feed.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/padraicbc/hippodash/feed"
	"github.com/padraicbc/hippodash/models"
	"github.com/padraicbc/hippodash/normalize"
)

// Options selects what a pass covers.
type Options struct {
	// Date is the racing day; only its calendar date is used.
	Date time.Time
	// Venue is the feed's own venue token, passed through unchanged.
	Venue string
	// AutoCreate lets the pass create races missing from the store.
	AutoCreate bool
}

// Reconciler executes sync passes. It holds no state between passes and is
// safe for concurrent use if its Store and Feed are.
type Reconciler struct {
	store    Store
	feed     Feed
	matcher  *Matcher
	venues   *normalize.Venues
	currency string
	logger   *zap.Logger
	now      func() time.Time
}

// New returns a Reconciler. defaultCurrency is applied to races and prizes
// that carry no currency of their own.
func New(store Store, f Feed, venues *normalize.Venues, defaultCurrency string, logger *zap.Logger) *Reconciler {
	if venues == nil {
		venues = normalize.DefaultVenues
	}
	return &Reconciler{
		store:    store,
		feed:     f,
		matcher:  NewMatcher(store),
		venues:   venues,
		currency: strings.ToUpper(strings.TrimSpace(defaultCurrency)),
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// candidate is one feed race after normalization.
type candidate struct {
	feedID    string
	feedVenue string
	venue     string
	number    int
	code      string
	name      string
	time      string
	distance  int
	finished  bool
	arrival   []int
	currency  string
}

// merge fills c from dup, a second listing of the same race under another
// venue spelling. A finished listing with a finish order wins over one
// without.
func (c candidate) merge(dup candidate) candidate {
	if !(c.finished && len(c.arrival) > 0) && dup.finished && len(dup.arrival) > 0 {
		c.finished = true
		c.arrival = dup.arrival
	} else if !c.finished && dup.finished {
		c.finished = true
	}
	if c.feedID == "" {
		c.feedID = dup.feedID
	}
	if c.code == "" {
		c.code = dup.code
	}
	if c.name == "" {
		c.name = dup.name
	}
	if c.time == "" {
		c.time = dup.time
	}
	if c.distance == 0 {
		c.distance = dup.distance
	}
	return c
}

func (c candidate) ref(raceID string) RaceRef {
	return RaceRef{RaceID: raceID, Venue: c.venue, Number: c.number, Name: c.name}
}

// pass carries the state of one Run.
type pass struct {
	day      time.Time
	report   *Report
	enriched map[string]bool
	logger   *zap.Logger
}

// Run executes one pass. The returned report is never nil. An error is
// returned only when the programme could not be fetched, in which case the
// report is marked unsuccessful; per-record problems land in the report.
func (r *Reconciler) Run(ctx context.Context, opts Options) (*Report, error) {
	day := normalize.Day(opts.Date)
	p := &pass{
		day:      day,
		report:   newReport(day, opts, r.now()),
		enriched: make(map[string]bool),
		logger: r.logger.With(
			zap.String("date", day.Format(time.DateOnly)),
			zap.String("venue", opts.Venue),
			zap.Bool("autoCreate", opts.AutoCreate),
		),
	}

	meetings, err := r.feed.Programme(ctx, day, opts.Venue)
	if err != nil {
		p.report.fail(r.now(), err)
		p.logger.Error("sync aborted", zap.Error(err))
		return p.report, fmt.Errorf("reconcile: %w", err)
	}

	candidates := r.prepare(meetings, p)

	if opts.AutoCreate {
		for _, c := range candidates {
			r.ensureRace(ctx, p, c)
		}
	}
	for _, c := range candidates {
		r.reconcileResult(ctx, p, c)
	}

	p.report.finish(r.now())
	p.logger.Info("sync finished",
		zap.Int("racesAdded", len(p.report.RacesAdded)),
		zap.Int("resultsCreated", len(p.report.ResultsCreated)),
		zap.Int("resultsUpdated", len(p.report.ResultsUpdated)),
		zap.Int("skipped", len(p.report.Skipped)),
		zap.Int("notFound", len(p.report.NotFound)),
		zap.Int("meetings", p.report.MeetingsTotal),
		zap.Int("meetingsRetained", p.report.MeetingsRetained),
	)
	return p.report, nil
}

// prepare filters meetings through the venue allow-list and normalizes each
// race once. Races without a usable number are skipped. Later occurrences of
// a (venue, number) pair are merged into the first and reported as skipped.
func (r *Reconciler) prepare(meetings []feed.Meeting, p *pass) []candidate {
	rep := p.report
	rep.MeetingsTotal = len(meetings)

	seen := make(map[string]int)
	var out []candidate
	for _, m := range meetings {
		venue, ok := r.venues.Canonical(m.Venue)
		if !ok {
			name := strings.TrimSpace(m.Venue)
			if !slices.Contains(rep.IgnoredVenues, name) {
				rep.IgnoredVenues = append(rep.IgnoredVenues, name)
			}
			continue
		}
		rep.MeetingsRetained++

		for _, fr := range m.Races {
			c := r.normalizeRace(m.Venue, venue, fr)
			if c.number <= 0 {
				rep.skip(c, ReasonInvalidNumber)
				continue
			}
			key := venue + "|" + strconv.Itoa(c.number)
			if i, ok := seen[key]; ok {
				out[i] = out[i].merge(c)
				rep.skip(c, ReasonDuplicate)
				continue
			}
			seen[key] = len(out)
			out = append(out, c)
		}
	}
	return out
}

func (r *Reconciler) normalizeRace(feedVenue, venue string, fr feed.Race) candidate {
	code := normalize.String(fr.Code)
	distance, _ := normalize.Int(fr.Distance)
	currency := strings.ToUpper(strings.TrimSpace(fr.Currency))
	if currency == "" {
		currency = r.currency
	}
	return candidate{
		feedID:    strings.TrimSpace(fr.ID),
		feedVenue: strings.TrimSpace(feedVenue),
		venue:     venue,
		number:    normalize.RaceNumber(code),
		code:      code,
		name:      strings.TrimSpace(fr.Name),
		time:      strings.TrimSpace(fr.Time),
		distance:  max(distance, 0),
		finished:  fr.Finished,
		arrival:   normalize.Arrival(fr.Arrival),
		currency:  currency,
	}
}

// ensureRace creates the race for c unless one is already stored, either
// under its venue key or under its derived ID.
func (r *Reconciler) ensureRace(ctx context.Context, p *pass, c candidate) {
	existing, err := r.matcher.Match(ctx, p.day, c.venue, c.number)
	if err != nil {
		r.storeFailure(p, c, "match race", err)
		return
	}
	if existing != nil {
		return
	}

	id := normalize.RaceID(p.day, c.venue, c.number)
	_, err = r.store.FindRaceByID(ctx, id)
	if err == nil {
		return
	}
	if !errors.Is(err, models.ErrNotFound) {
		r.storeFailure(p, c, "find race", err)
		return
	}

	now := r.now()
	race := &models.Race{
		ID:           id,
		Date:         p.day,
		Venue:        c.venue,
		Number:       c.number,
		Time:         c.time,
		Distance:     c.distance,
		Title:        c.name,
		Currency:     c.currency,
		Participants: []models.Participant{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := r.store.CreateRace(ctx, race); err != nil {
		r.storeFailure(p, c, "create race", err)
		return
	}
	p.report.RacesAdded = append(p.report.RacesAdded, c.ref(race.ID))
	p.logger.Debug("race created", zap.String("raceID", race.ID), zap.String("raceVenue", c.venue), zap.Int("number", c.number))

	r.enrich(ctx, p, race, c)
}

// reconcileResult writes the finish order of a finished race to its stored
// result. Unmatched races are reported, never created.
func (r *Reconciler) reconcileResult(ctx context.Context, p *pass, c candidate) {
	rep := p.report
	if !c.finished {
		rep.Pending++
		return
	}
	if len(c.arrival) == 0 {
		rep.skip(c, ReasonNoArrival)
		return
	}

	race, err := r.matcher.Match(ctx, p.day, c.venue, c.number)
	if err != nil {
		r.storeFailure(p, c, "match race", err)
		return
	}
	if race == nil {
		rep.notFound(c)
		return
	}

	r.enrich(ctx, p, race, c)

	ref := c.ref(race.ID)
	ref.Arrival = c.arrival

	res, err := r.store.FindResultByRaceID(ctx, race.ID)
	switch {
	case errors.Is(err, models.ErrNotFound):
		if err := r.store.CreateResult(ctx, models.NewResult(race.ID, c.arrival, r.now())); err != nil {
			r.storeFailure(p, c, "create result", err)
			return
		}
		rep.ResultsCreated = append(rep.ResultsCreated, ref)
	case err != nil:
		r.storeFailure(p, c, "find result", err)
	case slices.Equal(res.Arrival, c.arrival):
		rep.ResultsUnchanged++
	default:
		res.Arrival = c.arrival
		res.UpdatedAt = r.now()
		if err := r.store.UpdateResult(ctx, res, "arrival", "updated_at"); err != nil {
			r.storeFailure(p, c, "update result", err)
			return
		}
		rep.ResultsUpdated = append(rep.ResultsUpdated, ref)
	}
}

// enrich fills purse, participants and temperature from the detail endpoint.
// It runs at most once per race and pass, and never fails the pass.
func (r *Reconciler) enrich(ctx context.Context, p *pass, race *models.Race, c candidate) {
	if p.enriched[race.ID] || c.feedID == "" {
		return
	}
	p.enriched[race.ID] = true

	detail, err := r.feed.RaceDetail(ctx, c.feedID)
	if err != nil {
		p.logger.Debug("race detail unavailable", zap.String("feedID", c.feedID), zap.Error(err))
		return
	}

	var columns []string
	if purse, ok := normalize.Prize(detail.Prize, c.currency); ok &&
		(purse.Amount != race.Purse || purse.Currency != race.Currency) {
		race.Purse, race.Currency = purse.Amount, purse.Currency
		columns = append(columns, "purse", "currency")
	}
	if participants := normalize.Participants(detail.Runners); len(participants) > 0 &&
		!slices.Equal(participants, race.Participants) {
		race.Participants = participants
		columns = append(columns, "participants")
	}
	if t, ok := normalize.Float(detail.Temperature); ok &&
		(race.Temperature == nil || *race.Temperature != t) {
		race.Temperature = &t
		columns = append(columns, "temperature")
	}
	if len(columns) == 0 {
		return
	}

	race.UpdatedAt = r.now()
	columns = append(columns, "updated_at")
	if err := r.store.UpdateRace(ctx, race, columns...); err != nil {
		p.logger.Warn("race enrichment not saved", zap.String("raceID", race.ID), zap.Error(err))
	}
}

func (r *Reconciler) storeFailure(p *pass, c candidate, op string, err error) {
	p.report.skip(c, fmt.Sprintf("%s: %v", op, err))
	p.logger.Warn("store error",
		zap.String("op", op),
		zap.String("raceVenue", c.venue),
		zap.Int("number", c.number),
		zap.Error(err),
	)
}
