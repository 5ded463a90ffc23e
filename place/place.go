// Package place defines the types shared by every reviewbuddy component: the
// place record read from the host page, the outcome of one detection, and
// the enrichment score shown next to it.
//
// Consumers outside this module (status clients, MCP tools) import this
// package to decode what the watcher reports.
package place

import (
	"strconv"
	"strings"
)

// Record identifies the entity currently displayed on the host page.
// Two records are the same place when both fields match exactly.
type Record struct {
	Name    string `json:"name"`
	Address string `json:"address"`
}

// City returns the second comma-separated segment of the address, trimmed.
// ok is false when the address has no second segment or it is blank.
func (r Record) City() (city string, ok bool) {
	parts := strings.Split(r.Address, ",")
	if len(parts) < 2 {
		return "", false
	}
	city = strings.TrimSpace(parts[1])
	if city == "" {
		return "", false
	}
	return city, true
}

// Detection is the result of one synchronous read of the host page.
// The zero value is NotFound.
type Detection struct {
	Found  bool
	Record Record
}

// NotFound is the detection produced when the target elements are absent
// or only partially rendered.
func NotFound() Detection { return Detection{} }

// Found wraps a record read from the page.
func Found(r Record) Detection { return Detection{Found: true, Record: r} }

func (d Detection) String() string {
	if !d.Found {
		return "not_found"
	}
	return "found(" + d.Record.Name + " | " + d.Record.Address + ")"
}

// ScoreState tags the variant held by a Score.
type ScoreState string

const (
	ScoreLoading     ScoreState = "loading"
	ScoreValue       ScoreState = "score"
	ScoreUnavailable ScoreState = "unavailable"
)

// Score is the enrichment result displayed for a place.
type Score struct {
	State ScoreState `json:"state"`
	Value float64    `json:"value,omitempty"`
}

// Loading marks an enrichment request in flight.
func Loading() Score { return Score{State: ScoreLoading} }

// Value wraps a numeric rating.
func Value(v float64) Score { return Score{State: ScoreValue, Value: v} }

// Unavailable marks a failed or skipped enrichment.
func Unavailable() Score { return Score{State: ScoreUnavailable} }

func (s Score) String() string {
	if s.State == ScoreValue {
		return strconv.FormatFloat(s.Value, 'f', -1, 64)
	}
	return string(s.State)
}
