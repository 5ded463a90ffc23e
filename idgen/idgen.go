// Package idgen generates identifiers for journal events and watch runs.
package idgen

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Generator produces unique string identifiers.
type Generator func() string

// UUIDv7 returns a Generator of RFC 9562 UUID v7 strings. They sort by
// creation time.
func UUIDv7() Generator {
	return func() string {
		return uuid.Must(uuid.NewV7()).String()
	}
}

// Prefixed prepends a fixed prefix to every ID (e.g. "evt_", "run_").
func Prefixed(prefix string, gen Generator) Generator {
	return func() string {
		return prefix + gen()
	}
}

// Default is UUIDv7.
var Default Generator = UUIDv7()

// Time returns the creation time embedded in a UUID v7, with or without
// a "xxx_" prefix.
func Time(id string) (time.Time, error) {
	if i := strings.LastIndexByte(id, '_'); i >= 0 {
		id = id[i+1:]
	}
	u, err := uuid.Parse(id)
	if err != nil {
		return time.Time{}, fmt.Errorf("idgen: invalid UUID: %w", err)
	}
	if u.Version() != 7 {
		return time.Time{}, fmt.Errorf("idgen: UUID version %d, want 7", u.Version())
	}
	sec, nsec := u.Time().UnixTime()
	return time.Unix(sec, nsec), nil
}
