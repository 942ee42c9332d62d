package normalize

import (
	"bytes"
	"encoding/json"
	"strings"
)

// runnerNumberFields are the object keys that may carry the runner number of
// a finish-order entry, in lookup order.
var runnerNumberFields = []string{"number", "numero", "num", "runner", "horse_number"}

// Arrival normalizes a feed finish order into starter numbers, first finisher
// first. Each element may be a number, a numeric string, an object carrying
// the runner number, or an array of those (dead heat). Unreadable entries are
// dropped; the order of the rest is kept.
func Arrival(entries []json.RawMessage) []int {
	out := make([]int, 0, len(entries))
	for _, e := range entries {
		out = appendArrival(out, e)
	}
	return out
}

func appendArrival(out []int, raw json.RawMessage) []int {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return out
	}

	switch raw[0] {
	case '{':
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(raw, &obj); err != nil {
			return out
		}
		fields := make(map[string]json.RawMessage, len(obj))
		for k, v := range obj {
			fields[strings.ToLower(k)] = v
		}
		for _, k := range runnerNumberFields {
			if v, ok := fields[k]; ok {
				if n, ok := positive(v); ok {
					out = append(out, n)
				}
				return out
			}
		}
	case '[':
		var inner []json.RawMessage
		if err := json.Unmarshal(raw, &inner); err != nil {
			return out
		}
		for _, e := range inner {
			out = appendArrival(out, e)
		}
	default:
		if n, ok := positive(raw); ok {
			out = append(out, n)
		}
	}
	return out
}

func positive(raw json.RawMessage) (int, bool) {
	n, ok := Int(raw)
	if !ok || n < 1 {
		return 0, false
	}
	return n, true
}
