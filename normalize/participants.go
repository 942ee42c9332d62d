package normalize

import (
	"sort"
	"strings"

	"github.com/padraicbc/hippodash/feed"
	"github.com/padraicbc/hippodash/models"
)

const (
	// UnknownName replaces a missing horse or jockey name.
	UnknownName = "N/A"
	// DefaultWeight is the carried weight in kg used when the feed has none.
	DefaultWeight = 55.0
)

// Participants maps detail-endpoint runners to race participants ordered by
// start number. Runners without a positive number, or repeating a number
// already seen, are dropped.
func Participants(runners []feed.Runner) []models.Participant {
	out := make([]models.Participant, 0, len(runners))
	seen := make(map[int]struct{}, len(runners))
	for _, r := range runners {
		n, ok := positive(r.Number)
		if !ok {
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}

		weight, ok := Float(r.Weight)
		if !ok || weight <= 0 {
			weight = DefaultWeight
		}
		out = append(out, models.Participant{
			Number: n,
			Horse:  nameOrUnknown(r.Horse),
			Jockey: nameOrUnknown(r.Jockey),
			Weight: weight,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out
}

func nameOrUnknown(s string) string {
	if s = strings.TrimSpace(s); s == "" {
		return UnknownName
	}
	return s
}
