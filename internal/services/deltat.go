package services

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sajulab/ganzhi-engine/internal/models"
)

// ReconcileMode adjusts how aggressively near-boundary margins are flagged.
type ReconcileMode string

const (
	// ModeStandard flags only margins tight enough to matter for most rulesets.
	ModeStandard ReconcileMode = "standard"
	// ModeStrict widens the near-boundary window for callers that want every
	// sensitive assignment surfaced.
	ModeStrict ReconcileMode = "strict"
)

var (
	// discrepancyThreshold is the delta-T disagreement past which the two
	// sources are flagged as inconsistent.
	discrepancyThreshold = decimal.NewFromInt(1)
	// divergenceThreshold is the larger disagreement that suggests the
	// polynomial and tabulated models have come apart.
	divergenceThreshold = decimal.NewFromInt(3)

	nearBoundaryStandard = decimal.NewFromInt(120)
	nearBoundaryStrict   = decimal.NewFromInt(600)
)

// Reconciliation is the outcome of cross-checking two delta-T sources around
// a candidate event instant.
type Reconciliation struct {
	Diff   decimal.Decimal `json:"diff_seconds"`
	Alerts []models.Alert  `json:"alerts,omitempty"`
}

// DeltaTReconciler compares delta-T values from competing sources and raises
// advisory alerts. It never fails a computation: a divergent ephemeris model
// means reduced confidence, not an unanswerable question.
type DeltaTReconciler struct{}

// NewDeltaTReconciler creates a reconciler.
func NewDeltaTReconciler() *DeltaTReconciler {
	return &DeltaTReconciler{}
}

// Reconcile computes |a-b| and collects alerts. boundaryMargin is the
// distance in seconds from the event to the nearest term boundary; when it is
// within the mode's window, small model disagreement could flip a month
// assignment, so the caller is warned rather than the ambiguity being
// silently resolved.
func (r *DeltaTReconciler) Reconcile(a, b, boundaryMargin decimal.Decimal, mode ReconcileMode) Reconciliation {
	diff := a.Sub(b).Abs()
	out := Reconciliation{Diff: diff}

	if diff.GreaterThan(discrepancyThreshold) {
		out.Alerts = append(out.Alerts, models.Alert{
			Kind:   models.AlertEngineDiscrepancy,
			Detail: fmt.Sprintf("delta-T sources disagree by %ss", diff.StringFixed(3)),
			Margin: diff,
		})
	}
	if diff.GreaterThan(divergenceThreshold) {
		out.Alerts = append(out.Alerts, models.Alert{
			Kind:   models.AlertEMHorizonsDivergence,
			Detail: fmt.Sprintf("polynomial and tabulated delta-T diverge by %ss", diff.StringFixed(3)),
			Margin: diff,
		})
	}

	window := nearBoundaryStandard
	if mode == ModeStrict {
		window = nearBoundaryStrict
	}
	if boundaryMargin.Abs().LessThanOrEqual(window) {
		out.Alerts = append(out.Alerts, models.Alert{
			Kind:   models.AlertNearBoundary,
			Detail: fmt.Sprintf("event is %ss from a term boundary", boundaryMargin.Abs().StringFixed(0)),
			Margin: boundaryMargin.Abs(),
		})
	}
	return out
}

// EspenakMeeusDeltaT evaluates the piecewise Espenak-Meeus polynomial fit for
// delta-T at the given instant, in seconds. Valid across the engine's whole
// multi-century domain; segments outside 1800-2150 fall back to the long-term
// parabola.
func EspenakMeeusDeltaT(at time.Time) decimal.Decimal {
	y := decimalYear(at)
	var dt float64
	switch {
	case y >= 1800 && y < 1860:
		t := y - 1800
		dt = 13.72 - 0.332447*t + 0.0068612*t*t + 0.0041116*math.Pow(t, 3) -
			0.00037436*math.Pow(t, 4) + 0.0000121272*math.Pow(t, 5) -
			0.0000001699*math.Pow(t, 6) + 0.000000000875*math.Pow(t, 7)
	case y >= 1860 && y < 1900:
		t := y - 1860
		dt = 7.62 + 0.5737*t - 0.251754*t*t + 0.01680668*math.Pow(t, 3) -
			0.0004473624*math.Pow(t, 4) + math.Pow(t, 5)/233174
	case y >= 1900 && y < 1920:
		t := y - 1900
		dt = -2.79 + 1.494119*t - 0.0598939*t*t + 0.0061966*math.Pow(t, 3) - 0.000197*math.Pow(t, 4)
	case y >= 1920 && y < 1941:
		t := y - 1920
		dt = 21.20 + 0.84493*t - 0.076100*t*t + 0.0020936*math.Pow(t, 3)
	case y >= 1941 && y < 1961:
		t := y - 1950
		dt = 29.07 + 0.407*t - t*t/233 + math.Pow(t, 3)/2547
	case y >= 1961 && y < 1986:
		t := y - 1975
		dt = 45.45 + 1.067*t - t*t/260 - math.Pow(t, 3)/718
	case y >= 1986 && y < 2005:
		t := y - 2000
		dt = 63.86 + 0.3345*t - 0.060374*t*t + 0.0017275*math.Pow(t, 3) +
			0.000651814*math.Pow(t, 4) + 0.00002373599*math.Pow(t, 5)
	case y >= 2005 && y < 2050:
		t := y - 2000
		dt = 62.92 + 0.32217*t + 0.005589*t*t
	case y >= 2050 && y < 2150:
		u := (y - 1820) / 100
		dt = -20 + 32*u*u - 0.5628*(2150-y)
	default:
		u := (y - 1820) / 100
		dt = -20 + 32*u*u
	}
	return decimal.NewFromFloat(dt).Round(3)
}

// horizonsTable is a coarse observed delta-T series (seconds at year start)
// standing in for a JPL Horizons export. Values between samples interpolate
// linearly.
var horizonsTable = map[int]float64{
	1960: 33.15,
	1970: 40.18,
	1980: 50.54,
	1990: 56.86,
	1995: 60.78,
	2000: 63.83,
	2005: 64.69,
	2010: 66.07,
	2015: 67.64,
	2020: 69.36,
	2025: 69.20,
}

// HorizonsDeltaT interpolates the tabulated delta-T series at the given
// instant. Outside the table it clamps to the nearest endpoint, which keeps
// the reconciler honest: a clamped value far from the polynomial raises a
// divergence alert instead of silently agreeing.
func HorizonsDeltaT(at time.Time) decimal.Decimal {
	years := make([]int, 0, len(horizonsTable))
	for y := range horizonsTable {
		years = append(years, y)
	}
	sort.Ints(years)

	y := decimalYear(at)
	first, last := years[0], years[len(years)-1]
	if y <= float64(first) {
		return decimal.NewFromFloat(horizonsTable[first]).Round(3)
	}
	if y >= float64(last) {
		return decimal.NewFromFloat(horizonsTable[last]).Round(3)
	}
	for i := 1; i < len(years); i++ {
		if y <= float64(years[i]) {
			y0, y1 := float64(years[i-1]), float64(years[i])
			v0, v1 := horizonsTable[years[i-1]], horizonsTable[years[i]]
			frac := (y - y0) / (y1 - y0)
			return decimal.NewFromFloat(v0 + frac*(v1-v0)).Round(3)
		}
	}
	return decimal.NewFromFloat(horizonsTable[last]).Round(3)
}

func decimalYear(at time.Time) float64 {
	t := at.UTC()
	start := jan1UTC(t.Year())
	end := jan1UTC(t.Year() + 1)
	frac := t.Sub(start).Seconds() / end.Sub(start).Seconds()
	return float64(t.Year()) + frac
}
