package normalize

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Purse is a parsed prize amount.
type Purse struct {
	Amount   float64
	Currency string
}

var prizePattern = regexp.MustCompile(`^([0-9][0-9 .,]*?)\s*([^0-9\s.,].*)?$`)

var spaceReplacer = strings.NewReplacer("\u00a0", " ", "\u202f", " ", "\u2009", " ", "\t", " ")

// Prize parses "<amount> [currency]" such as "1 500 000 DH" or "15000,50 EUR".
// Spaces separate thousands and a comma marks decimals. The amount is rounded
// to cents. defaultCurrency is used when the string carries no currency.
func Prize(s, defaultCurrency string) (Purse, bool) {
	s = strings.TrimSpace(spaceReplacer.Replace(s))
	m := prizePattern.FindStringSubmatch(s)
	if m == nil {
		return Purse{}, false
	}

	amount, ok := parseAmount(m[1])
	if !ok {
		return Purse{}, false
	}

	currency := strings.ToUpper(defaultCurrency)
	if fields := strings.Fields(m[2]); len(fields) > 0 {
		currency = strings.ToUpper(fields[0])
	}
	return Purse{Amount: math.Round(amount*100) / 100, Currency: currency}, true
}

func parseAmount(s string) (float64, bool) {
	s = strings.ReplaceAll(s, " ", "")
	switch commas, dots := strings.Count(s, ","), strings.Count(s, "."); {
	case commas > 1:
		return 0, false
	case commas == 1:
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	case dots > 1:
		s = strings.ReplaceAll(s, ".", "")
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 0 || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
