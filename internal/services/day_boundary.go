package services

import (
	"fmt"
	"time"
)

// DayBoundaryPolicy selects which instant begins a calendar day for day-pillar
// purposes.
type DayBoundaryPolicy string

const (
	// PolicyCivilMidnight starts the day at 00:00 local.
	PolicyCivilMidnight DayBoundaryPolicy = "civil_midnight"
	// PolicyTraditionalZi shifts the boundary to 23:00 the previous evening:
	// a wall clock of 23:00..23:59 belongs to the next calendar day.
	PolicyTraditionalZi DayBoundaryPolicy = "traditional_zi"
)

// ZiCheckBasis names which wall clock the zi-hour check reads when a local
// mean time adjustment is in force. Legacy material applied both orders and
// got different answers, so the order is an explicit configuration choice
// here rather than a side effect of evaluation sequencing.
type ZiCheckBasis string

const (
	// ZiBasisPreLMT reads the zone-standard wall clock, before the LMT shift.
	ZiBasisPreLMT ZiCheckBasis = "pre_lmt"
	// ZiBasisPostLMT reads the LMT-adjusted wall clock.
	ZiBasisPostLMT ZiCheckBasis = "post_lmt"
)

// DayBoundary is the outcome of applying a day-boundary policy to a resolved
// local instant.
type DayBoundary struct {
	// ReferenceDate is the calendar date (midnight, same location) the day
	// pillar should be derived from.
	ReferenceDate time.Time `json:"reference_date"`
	// DayStart is the instant the governing day began under the policy.
	DayStart  time.Time         `json:"day_start"`
	Policy    DayBoundaryPolicy `json:"policy"`
	ZiApplied bool              `json:"zi_applied"`
	Basis     ZiCheckBasis      `json:"basis"`
}

// DayBoundaryCalculator applies a day-boundary policy. It holds no state and
// is idempotent: identical inputs always yield identical output.
type DayBoundaryCalculator struct{}

// NewDayBoundaryCalculator creates a calculator.
func NewDayBoundaryCalculator() *DayBoundaryCalculator {
	return &DayBoundaryCalculator{}
}

// Compute determines the day a pillar set belongs to. preLMT is the resolved
// zone-standard local time; postLMT is the same instant after any local mean
// time adjustment (equal to preLMT when no adjustment is configured). The
// basis selects which of the two the zi-hour check reads; the reference date
// itself is always taken from the post-adjustment clock, which is the clock
// every other hour-derived value uses.
func (d *DayBoundaryCalculator) Compute(preLMT, postLMT time.Time, policy DayBoundaryPolicy, basis ZiCheckBasis) (DayBoundary, error) {
	switch policy {
	case PolicyCivilMidnight, PolicyTraditionalZi:
	default:
		return DayBoundary{}, fmt.Errorf("unknown day boundary policy %q", policy)
	}

	ref := midnightOf(postLMT)
	out := DayBoundary{
		ReferenceDate: ref,
		DayStart:      ref,
		Policy:        policy,
		Basis:         basis,
	}
	if policy == PolicyCivilMidnight {
		return out, nil
	}

	check := postLMT
	if basis == ZiBasisPreLMT {
		check = preLMT
	} else if basis != ZiBasisPostLMT {
		return DayBoundary{}, fmt.Errorf("unknown zi check basis %q", basis)
	}

	if check.Hour() >= 23 {
		out.ZiApplied = true
		out.ReferenceDate = ref.AddDate(0, 0, 1)
	}
	// Under the zi policy the governing day opens at 23:00 the prior evening.
	out.DayStart = out.ReferenceDate.Add(-time.Hour)
	return out, nil
}

func midnightOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
