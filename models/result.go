package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Payouts maps a combination key (e.g. "4-7") to its payout amount.
type Payouts map[string]float64

// Result holds the arrival order and payouts of a race. There is at most one
// Result per Race.
type Result struct {
	bun.BaseModel `bun:"table:results,alias:r"`

	RaceID    string    `bun:"race_id,pk" json:"raceID"`
	Arrival   []int     `bun:"arrival,type:jsonb,notnull" json:"arrival"`
	Rapports  Payouts   `bun:"rapports,type:jsonb,notnull" json:"rapports"`
	Simple    Payouts   `bun:"simple,type:jsonb,notnull" json:"simple"`
	Couple    Payouts   `bun:"couple,type:jsonb,notnull" json:"couple"`
	Trio      Payouts   `bun:"trio,type:jsonb,notnull" json:"trio"`
	CreatedAt time.Time `bun:"created_at,notnull" json:"createdAt"`
	UpdatedAt time.Time `bun:"updated_at,notnull" json:"updatedAt"`
}

// NewResult returns a Result for raceID with empty payout maps.
func NewResult(raceID string, arrival []int, now time.Time) *Result {
	return &Result{
		RaceID:    raceID,
		Arrival:   arrival,
		Rapports:  Payouts{},
		Simple:    Payouts{},
		Couple:    Payouts{},
		Trio:      Payouts{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}
