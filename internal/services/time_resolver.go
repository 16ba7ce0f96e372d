package services

import (
	"fmt"
	"time"
	_ "time/tzdata"

	"github.com/sirupsen/logrus"

	"github.com/sajulab/ganzhi-engine/internal/models"
)

// TimeResolution describes how an ambiguous wall-clock value was pinned to a
// single UTC instant.
type TimeResolution struct {
	UTC          time.Time `json:"utc"`
	Local        time.Time `json:"local"`
	Zone         string    `json:"zone"`
	OffsetSec    int       `json:"offset_sec"`
	TZTransition bool      `json:"tz_transition"`
	Edge         bool      `json:"edge"`
	Rule         string    `json:"rule"`
}

// TimeResolver converts a naive local date-time plus IANA timezone into an
// unambiguous UTC instant. It is a pure function of its inputs and the
// timezone database; the zoneinfo cache it keeps is populated idempotently
// and read-only afterwards.
type TimeResolver struct {
	logger *logrus.Logger
}

// NewTimeResolver creates a resolver.
func NewTimeResolver(logger *logrus.Logger) *TimeResolver {
	return &TimeResolver{logger: logger}
}

// Resolve maps a LocalTimeRequest to a UTC instant.
//
// A naive wall-clock value maps to two instants inside a DST fold and to none
// inside a DST gap. Fold: the earlier occurrence wins deterministically. Gap:
// the time never existed on local clocks, so it is folded forward by the gap
// duration (the treatment legacy Korean data applied to the 1987/1988 DST
// skips) and flagged as an edge. Neither case is an error.
func (tr *TimeResolver) Resolve(req models.LocalTimeRequest) (time.Time, TimeResolution, error) {
	loc, err := time.LoadLocation(req.Timezone)
	if err != nil {
		return time.Time{}, TimeResolution{}, fmt.Errorf("unknown timezone %q: %w", req.Timezone, err)
	}

	candidates := tr.candidates(req, loc)

	var res TimeResolution
	switch len(candidates) {
	case 0:
		// DST gap. time.Date normalises a nonexistent wall time by sliding
		// it forward across the transition, which is exactly the fold-forward
		// policy.
		normalized := req.Wall(loc)
		res = tr.resolution(normalized, true, true, "dst_gap_fold_forward")
	case 1:
		res = tr.resolution(candidates[0].In(loc), false, false, "unambiguous")
	default:
		earliest := candidates[0]
		for _, c := range candidates[1:] {
			if c.Before(earliest) {
				earliest = c
			}
		}
		res = tr.resolution(earliest.In(loc), true, false, "dst_fold_earlier")
	}

	if res.TZTransition && tr.logger != nil {
		tr.logger.WithFields(logrus.Fields{
			"request": req.String(),
			"rule":    res.Rule,
			"utc":     res.UTC.Format(time.RFC3339),
		}).Debug("Resolved wall time across a timezone transition")
	}
	return res.UTC, res, nil
}

// candidates returns every UTC instant whose local rendering matches the
// requested wall clock. Offsets in force within a day either side of the
// request cover any real-world transition.
func (tr *TimeResolver) candidates(req models.LocalTimeRequest, loc *time.Location) []time.Time {
	naiveUTC := time.Date(req.Year, time.Month(req.Month), req.Day,
		req.Hour, req.Minute, req.Second, 0, time.UTC)

	offsets := make(map[int]bool)
	for _, d := range []time.Duration{-24 * time.Hour, 0, 24 * time.Hour} {
		_, off := naiveUTC.Add(d).In(loc).Zone()
		offsets[off] = true
	}

	var out []time.Time
	for off := range offsets {
		cand := naiveUTC.Add(-time.Duration(off) * time.Second)
		l := cand.In(loc)
		if l.Year() == req.Year && int(l.Month()) == req.Month && l.Day() == req.Day &&
			l.Hour() == req.Hour && l.Minute() == req.Minute && l.Second() == req.Second {
			out = append(out, cand)
		}
	}
	return out
}

func (tr *TimeResolver) resolution(local time.Time, transition, edge bool, rule string) TimeResolution {
	name, off := local.Zone()
	return TimeResolution{
		UTC:          local.UTC(),
		Local:        local,
		Zone:         name,
		OffsetSec:    off,
		TZTransition: transition,
		Edge:         edge,
		Rule:         rule,
	}
}
