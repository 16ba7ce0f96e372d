package models

import (
	"errors"
	"fmt"
)

// Sentinel errors for the load-time integrity class. These abort engine
// initialization; they are never raised per-request.
var (
	ErrMissingTableFile  = errors.New("required table file is missing")
	ErrCorruptCycleTable = errors.New("sixty-jiazi table violates cycle progression")
)

// CoverageError reports an input year outside the supported canonical plus
// extrapolated window. It is surfaced verbatim, never clamped.
type CoverageError struct {
	Year    int
	MinYear int
	MaxYear int
}

func (e *CoverageError) Error() string {
	if e.TooOld() {
		return fmt.Sprintf("year %d is before supported coverage (%d..%d)", e.Year, e.MinYear, e.MaxYear)
	}
	return fmt.Sprintf("year %d is after supported coverage (%d..%d)", e.Year, e.MinYear, e.MaxYear)
}

// TooOld reports whether the violation is on the early side of the window.
func (e *CoverageError) TooOld() bool { return e.Year < e.MinYear }

// TooNew reports whether the violation is on the late side of the window.
func (e *CoverageError) TooNew() bool { return e.Year > e.MaxYear }

// MissingTermError reports that no jie/qi data exists for a required year and
// extrapolation could not stand in. Distinct from CoverageError so callers can
// tell "you asked outside the window" from "the window has a hole".
type MissingTermError struct {
	Term string
	Year int
}

func (e *MissingTermError) Error() string {
	if e.Term == "" {
		return fmt.Sprintf("no solar term data for year %d", e.Year)
	}
	return fmt.Sprintf("no data for solar term %s in year %d", e.Term, e.Year)
}

// StaleDependencyError reports a content-hash mismatch between a loaded table
// and its declared signature. The engine refuses the data source outright.
type StaleDependencyError struct {
	Name     string
	Declared string
	Computed string
}

func (e *StaleDependencyError) Error() string {
	return fmt.Sprintf("stale dependency %q: declared hash %s, computed %s", e.Name, e.Declared, e.Computed)
}

// InvalidPillarError reports a malformed two-character stem+branch token
// supplied to a cycle lookup. Raised immediately, never coerced.
type InvalidPillarError struct {
	Token string
}

func (e *InvalidPillarError) Error() string {
	return fmt.Sprintf("invalid pillar token %q", e.Token)
}
