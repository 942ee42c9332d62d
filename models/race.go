package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Participant is one declared starter of a race.
type Participant struct {
	Number int     `json:"number"`
	Horse  string  `json:"horse"`
	Jockey string  `json:"jockey"`
	Weight float64 `json:"weight"`
}

// Race represents a single race on a meeting's card.
// ID is derived from date, venue and race number and never recomputed.
type Race struct {
	bun.BaseModel `bun:"table:races,alias:rc"`

	ID           string        `bun:"id,pk" json:"id"`
	Date         time.Time     `bun:"date,notnull,type:date" json:"date"`
	Venue        string        `bun:"venue,notnull" json:"venue"`
	Number       int           `bun:"number,notnull" json:"number"`
	Time         string        `bun:"time,notnull" json:"time"`
	Distance     int           `bun:"distance,notnull" json:"distance"`
	Title        string        `bun:"title,notnull" json:"title"`
	Purse        float64       `bun:"purse,notnull" json:"purse"`
	Currency     string        `bun:"currency,notnull" json:"currency"`
	Participants []Participant `bun:"participants,type:jsonb,notnull" json:"participants"`
	Temperature  *float64      `bun:"temperature" json:"temperature,omitempty"`
	CreatedAt    time.Time     `bun:"created_at,notnull" json:"createdAt"`
	UpdatedAt    time.Time     `bun:"updated_at,notnull" json:"updatedAt"`
}

// Day returns the race date formatted as YYYY-MM-DD.
func (r *Race) Day() string {
	return r.Date.Format(time.DateOnly)
}
