package normalize

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// raceNamespace seeds the name-based UUIDs used as race identifiers.
var raceNamespace = uuid.MustParse("9b2f6c1e-4d7a-5e38-a1c0-6f3e2d8b7a41")

// Day returns the calendar date of t as UTC midnight. The date is taken in
// t's own location so a local midnight never slips to the previous day.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// RaceID derives the stable identifier of a race from its date, venue and
// number. Venue spelling variants that fold to the same key share an ID.
func RaceID(date time.Time, venue string, number int) string {
	name := fmt.Sprintf("%s|%s|%d", Day(date).Format(time.DateOnly), VenueKey(venue), number)
	return uuid.NewSHA1(raceNamespace, []byte(name)).String()
}
