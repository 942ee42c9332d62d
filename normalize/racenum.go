package normalize

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	raceCodePattern = regexp.MustCompile(`(?i)c\s*(\d+)`)
	digitsPattern   = regexp.MustCompile(`\d+`)
)

// RaceNumber extracts the race number from a feed code such as "C8".
// Codes without the leading letter fall back to the first run of digits.
// It returns 0 when no positive number can be found.
func RaceNumber(code string) int {
	code = strings.TrimSpace(code)
	digits := ""
	if m := raceCodePattern.FindStringSubmatch(code); m != nil {
		digits = m[1]
	} else {
		digits = digitsPattern.FindString(code)
	}
	if digits == "" {
		return 0
	}
	n, err := strconv.Atoi(digits)
	if err != nil || n <= 0 {
		return 0
	}
	return n
}
