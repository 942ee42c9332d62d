// Package normalize turns loosely typed feed values into canonical domain
// values: venue names, race numbers, finish orders, prizes and runners.
//
// Every function rejects or defaults values it cannot read instead of
// passing them through. Callers decide whether a rejected value skips the
// record (race number, finish order) or just leaves a field untouched
// (prize, temperature).
package normalize
