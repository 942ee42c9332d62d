package reconcile

import (
	"fmt"
	"time"
)

// Skip reasons recorded in Report.Skipped.
const (
	ReasonInvalidNumber = "invalid race number"
	ReasonNoArrival     = "finished without a usable finish order"
	ReasonDuplicate     = "duplicate race in feed"
)

// RaceRef identifies a race touched by a pass.
type RaceRef struct {
	RaceID  string `json:"raceID"`
	Venue   string `json:"venue"`
	Number  int    `json:"number"`
	Name    string `json:"name,omitempty"`
	Arrival []int  `json:"arrival,omitempty"`
}

// Skipped is a feed race the pass could not use.
type Skipped struct {
	Venue  string `json:"venue"`
	Code   string `json:"code,omitempty"`
	Number int    `json:"number,omitempty"`
	Name   string `json:"name,omitempty"`
	Reason string `json:"reason"`
}

// NotFound is a finished feed race with no matching stored race.
type NotFound struct {
	Venue     string `json:"venue"`
	FeedVenue string `json:"feedVenue"`
	Number    int    `json:"number"`
	Code      string `json:"code,omitempty"`
	Name      string `json:"name,omitempty"`
}

// Report summarizes one reconciliation pass.
type Report struct {
	Success    bool   `json:"success"`
	Date       string `json:"date"`
	Venue      string `json:"venue"`
	AutoCreate bool   `json:"autoCreate"`

	MeetingsTotal    int      `json:"meetingsTotal"`
	MeetingsRetained int      `json:"meetingsRetained"`
	IgnoredVenues    []string `json:"ignoredVenues"`

	RacesAdded       []RaceRef  `json:"racesAdded"`
	ResultsCreated   []RaceRef  `json:"resultsCreated"`
	ResultsUpdated   []RaceRef  `json:"resultsUpdated"`
	ResultsUnchanged int        `json:"resultsUnchanged"`
	Pending          int        `json:"pending"`
	Skipped          []Skipped  `json:"skipped"`
	NotFound         []NotFound `json:"notFound"`

	Message    string    `json:"message"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
}

func newReport(day time.Time, opts Options, now time.Time) *Report {
	return &Report{
		Date:           day.Format(time.DateOnly),
		Venue:          opts.Venue,
		AutoCreate:     opts.AutoCreate,
		IgnoredVenues:  []string{},
		RacesAdded:     []RaceRef{},
		ResultsCreated: []RaceRef{},
		ResultsUpdated: []RaceRef{},
		Skipped:        []Skipped{},
		NotFound:       []NotFound{},
		StartedAt:      now,
	}
}

func (r *Report) skip(c candidate, reason string) {
	r.Skipped = append(r.Skipped, Skipped{
		Venue:  c.venue,
		Code:   c.code,
		Number: c.number,
		Name:   c.name,
		Reason: reason,
	})
}

func (r *Report) notFound(c candidate) {
	r.NotFound = append(r.NotFound, NotFound{
		Venue:     c.venue,
		FeedVenue: c.feedVenue,
		Number:    c.number,
		Code:      c.code,
		Name:      c.name,
	})
}

func (r *Report) fail(now time.Time, err error) {
	r.Success = false
	r.Error = err.Error()
	r.Message = fmt.Sprintf("sync %s failed: programme unavailable", r.Date)
	r.FinishedAt = now
}

func (r *Report) finish(now time.Time) {
	r.Success = true
	r.Message = r.Summary()
	r.FinishedAt = now
}

// Summary is a one-line human readable account of the pass.
func (r *Report) Summary() string {
	return fmt.Sprintf(
		"sync %s: %d races added, %d results created, %d updated, %d unchanged, %d skipped, %d not found; %d/%d meetings tracked",
		r.Date,
		len(r.RacesAdded),
		len(r.ResultsCreated),
		len(r.ResultsUpdated),
		r.ResultsUnchanged,
		len(r.Skipped),
		len(r.NotFound),
		r.MeetingsRetained,
		r.MeetingsTotal,
	)
}
