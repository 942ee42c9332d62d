package feed

import "encoding/json"

// Meeting is one venue's card for a date as reported by the programme
// endpoint. Country is informational only; the feed gets it wrong often
// enough that nothing downstream relies on it.
type Meeting struct {
	Venue   string `json:"venue"`
	Country string `json:"country,omitempty"`
	Races   []Race `json:"races"`
}

// Race is a race entry inside a Meeting. Loosely typed fields are kept raw
// and converted by the normalize package.
type Race struct {
	ID       string            `json:"id"`
	Code     json.RawMessage   `json:"code,omitempty"`
	Name     string            `json:"name"`
	Time     string            `json:"time"`
	Distance json.RawMessage   `json:"distance,omitempty"`
	Runners  json.RawMessage   `json:"runners,omitempty"`
	Finished bool              `json:"finished"`
	Arrival  []json.RawMessage `json:"arrival,omitempty"`
	Currency string            `json:"currency,omitempty"`
}

// RaceDetail is the per-race payload of the detail endpoint.
type RaceDetail struct {
	Prize       string          `json:"prize,omitempty"`
	Runners     []Runner        `json:"runners,omitempty"`
	Temperature json.RawMessage `json:"temperature,omitempty"`
}

// Runner is one starter in a RaceDetail.
type Runner struct {
	Number json.RawMessage `json:"number,omitempty"`
	Horse  string          `json:"horse,omitempty"`
	Jockey string          `json:"jockey,omitempty"`
	Weight json.RawMessage `json:"weight,omitempty"`
}

type programme struct {
	Meetings []Meeting `json:"meetings"`
}
