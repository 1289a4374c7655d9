// Package store persists properties and answers the proximity, comparables
// and rate-window queries the integrity checks run.
package store

import "errors"

// ErrUnknownCounter is returned when incrementing a counter that does not exist.
var ErrUnknownCounter = errors.New("unknown counter")
