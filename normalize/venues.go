package normalize

import (
	"fmt"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// DefaultCanonicalVenues is the allow-list of tracked venues.
var DefaultCanonicalVenues = []string{
	"Casablanca-Anfa",
	"Rabat",
	"El Jadida",
	"Settat",
	"Khemisset",
	"Marrakech",
	"Meknes",
}

// DefaultVenueAliases maps known feed spellings to their canonical venue.
// Case, accents and repeated whitespace are already ignored, so only real
// spelling differences belong here.
var DefaultVenueAliases = map[string]string{
	"Casablanca":      "Casablanca-Anfa",
	"Casablanca Anfa": "Casablanca-Anfa",
	"Casa Anfa":       "Casablanca-Anfa",
	"Anfa":            "Casablanca-Anfa",
	"Eljadida":        "El Jadida",
	"El-Jadida":       "El Jadida",
	"Marrakesh":       "Marrakech",
}

// DefaultVenues is built from DefaultCanonicalVenues and DefaultVenueAliases.
var DefaultVenues = MustVenues(DefaultCanonicalVenues, DefaultVenueAliases)

// Venues is an allow-list of canonical venue names plus an alias table.
// It is read-only after construction.
type Venues struct {
	names []string
	index map[string]string
}

// NewVenues builds a Venues table. Every alias must point at a canonical name.
func NewVenues(canonical []string, aliases map[string]string) (*Venues, error) {
	v := &Venues{index: make(map[string]string, len(canonical)+len(aliases))}
	for _, name := range canonical {
		name = strings.TrimSpace(name)
		key := VenueKey(name)
		if key == "" {
			continue
		}
		if prev, ok := v.index[key]; ok {
			return nil, fmt.Errorf("normalize: venue %q duplicates %q", name, prev)
		}
		v.index[key] = name
		v.names = append(v.names, name)
	}
	for alias, target := range aliases {
		name, ok := v.index[VenueKey(target)]
		if !ok {
			return nil, fmt.Errorf("normalize: alias %q points at unknown venue %q", alias, target)
		}
		v.index[VenueKey(alias)] = name
	}
	sort.Strings(v.names)
	return v, nil
}

// MustVenues is NewVenues that panics on error. For package-level tables.
func MustVenues(canonical []string, aliases map[string]string) *Venues {
	v, err := NewVenues(canonical, aliases)
	if err != nil {
		panic(err)
	}
	return v
}

// Canonical returns the canonical name for a feed venue, or false when the
// venue is not tracked.
func (v *Venues) Canonical(name string) (string, bool) {
	c, ok := v.index[VenueKey(name)]
	return c, ok
}

// Names returns the canonical venues, sorted.
func (v *Venues) Names() []string {
	out := make([]string, len(v.names))
	copy(out, v.names)
	return out
}

// VenueKey folds a venue name for comparison: accents stripped, lower case,
// inner whitespace collapsed to one space.
func VenueKey(name string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, name)
	if err != nil {
		folded = name
	}
	return strings.Join(strings.Fields(strings.ToLower(folded)), " ")
}
