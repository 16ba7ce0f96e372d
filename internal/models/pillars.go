package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// HeavenlyStems is the ordered 10-element stem alphabet.
var HeavenlyStems = []string{"甲", "乙", "丙", "丁", "戊", "己", "庚", "辛", "壬", "癸"}

// EarthlyBranches is the ordered 12-element branch alphabet.
var EarthlyBranches = []string{"子", "丑", "寅", "卯", "辰", "巳", "午", "未", "申", "酉", "戌", "亥"}

// LocalTimeRequest is a naive wall-clock time paired with an IANA timezone
// identifier. The same wall-clock value may map to zero, one, or two UTC
// instants depending on DST transitions at that timezone and date.
type LocalTimeRequest struct {
	Year     int    `json:"year"`
	Month    int    `json:"month"`
	Day      int    `json:"day"`
	Hour     int    `json:"hour"`
	Minute   int    `json:"minute"`
	Second   int    `json:"second"`
	Timezone string `json:"timezone"`
}

// Wall returns the naive wall-clock value in the given location without any
// DST disambiguation applied.
func (r LocalTimeRequest) Wall(loc *time.Location) time.Time {
	return time.Date(r.Year, time.Month(r.Month), r.Day, r.Hour, r.Minute, r.Second, 0, loc)
}

func (r LocalTimeRequest) String() string {
	return fmt.Sprintf("%04d-%02d-%02dT%02d:%02d:%02d %s",
		r.Year, r.Month, r.Day, r.Hour, r.Minute, r.Second, r.Timezone)
}

// TermSource tags where a solar-term instant came from.
const (
	TermSourceObserved     = "observed"
	TermSourceExtrapolated = "extrapolated"
)

// SolarTermEntry is one solar-term crossing instant for one year.
type SolarTermEntry struct {
	Term          string          `json:"term"`
	Year          int             `json:"year"`
	Instant       time.Time       `json:"instant"`
	LongitudeDeg  decimal.Decimal `json:"longitude_deg"`
	DeltaTSeconds decimal.Decimal `json:"delta_t_seconds"`
	Source        string          `json:"source"`
	AlgoVersion   string          `json:"algo_version"`
}

// SixtyJiaziEntry is one slot of the sexagenary cycle.
type SixtyJiaziEntry struct {
	Stem   string `json:"stem"`
	Branch string `json:"branch"`
	Index  int    `json:"index"`
}

// Token returns the two-rune stem+branch pillar string.
func (e SixtyJiaziEntry) Token() string {
	return e.Stem + e.Branch
}

// PillarSet holds the four derived pillar tokens.
type PillarSet struct {
	Year  string `json:"year"`
	Month string `json:"month"`
	Day   string `json:"day"`
	Hour  string `json:"hour"`
}

// Alert kinds raised by the delta-T reconciler. Advisory only: they reduce
// confidence but never fail a computation.
const (
	AlertEngineDiscrepancy    = "engine_discrepancy"
	AlertEMHorizonsDivergence = "em_vs_horizons_divergence"
	AlertNearBoundary         = "near_boundary"
)

// Alert is an advisory attached to the evidence trace.
type Alert struct {
	Kind   string          `json:"kind"`
	Detail string          `json:"detail"`
	Margin decimal.Decimal `json:"margin_seconds"`
}

// TraceStep records one decision in the order it was made.
type TraceStep struct {
	Stage  string `json:"stage"`
	Detail string `json:"detail"`
}

// EvidenceTrace is the ordered record of every decision behind a PillarSet.
// It is created fresh per computation and owned solely by the caller once
// returned; the engine never retains or mutates it.
type EvidenceTrace struct {
	ID                uuid.UUID   `json:"id"`
	RulesetID         string      `json:"ruleset_id"`
	Timezone          string      `json:"timezone"`
	ResolvedUTC       time.Time   `json:"resolved_utc"`
	TZTransition      bool        `json:"tz_transition"`
	Edge              bool        `json:"edge"`
	TZRule            string      `json:"tz_rule"`
	TimeBasis         string      `json:"time_basis"`
	LMTAdjustMinutes  int         `json:"lmt_adjust_minutes"`
	DayBoundaryPolicy string      `json:"day_boundary_policy"`
	ZiApplied         bool        `json:"zi_applied"`
	ZiCheckBasis      string      `json:"zi_check_basis"`
	MonthTerm         string      `json:"month_term"`
	MonthTermSource   string      `json:"month_term_source"`
	MonthReference    string      `json:"month_reference"`
	DeltaTAlerts      []Alert     `json:"delta_t_alerts,omitempty"`
	Steps             []TraceStep `json:"steps"`
}

// AddStep appends a decision record, preserving order.
func (t *EvidenceTrace) AddStep(stage, format string, args ...interface{}) {
	t.Steps = append(t.Steps, TraceStep{Stage: stage, Detail: fmt.Sprintf(format, args...)})
}

// DependencySignature declares the expected content hash of a tabulated data
// file. Validation is load-time only; it plays no part in computation.
type DependencySignature struct {
	Name    string `json:"name" yaml:"name"`
	Version string `json:"version" yaml:"version"`
	SHA3    string `json:"sha3_256" yaml:"sha3_256"`
}
