package models

import "errors"

// ErrNotFound is returned by store lookups that match no row.
var ErrNotFound = errors.New("not found")
