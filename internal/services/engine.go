package services

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/sajulab/ganzhi-engine/internal/models"
)

// Day-count anchor: 1900-01-01 was a 甲戌 day, cycle index 10. Cross-checked
// in tests against 1949-10-01 = 甲子.
const (
	anchorDayIndex = 10
	anchorYear     = 1900
)

// Ruleset is one resolved, validated policy bundle. Exactly the rulesets
// passed at construction exist; there is no runtime probing for policy files.
type Ruleset struct {
	ID               string            `json:"id"`
	DayBoundary      DayBoundaryPolicy `json:"day_boundary"`
	ZiBasis          ZiCheckBasis      `json:"zi_basis"`
	LMTOffsetMinutes int               `json:"lmt_offset_minutes"`
	MonthReference   TermClass         `json:"month_reference"`
	DeltaTMode       ReconcileMode     `json:"delta_t_mode"`
}

// NewRuleset validates raw configuration strings into a Ruleset.
func NewRuleset(id, dayBoundary, ziBasis, monthRef, deltaTMode string, lmtOffsetMinutes int) (Ruleset, error) {
	r := Ruleset{ID: id, LMTOffsetMinutes: lmtOffsetMinutes}

	switch DayBoundaryPolicy(dayBoundary) {
	case PolicyCivilMidnight, PolicyTraditionalZi:
		r.DayBoundary = DayBoundaryPolicy(dayBoundary)
	default:
		return Ruleset{}, fmt.Errorf("ruleset %s: unknown day boundary policy %q", id, dayBoundary)
	}
	switch ZiCheckBasis(ziBasis) {
	case ZiBasisPreLMT, ZiBasisPostLMT:
		r.ZiBasis = ZiCheckBasis(ziBasis)
	default:
		return Ruleset{}, fmt.Errorf("ruleset %s: unknown zi check basis %q", id, ziBasis)
	}
	switch TermClass(monthRef) {
	case TermClassJie, TermClassQi:
		r.MonthReference = TermClass(monthRef)
	default:
		return Ruleset{}, fmt.Errorf("ruleset %s: unknown month reference %q", id, monthRef)
	}
	switch ReconcileMode(deltaTMode) {
	case ModeStandard, ModeStrict:
		r.DeltaTMode = ReconcileMode(deltaTMode)
	default:
		return Ruleset{}, fmt.Errorf("ruleset %s: unknown delta-T mode %q", id, deltaTMode)
	}
	return r, nil
}

// PillarsEngine derives the four pillars and their evidence trace. All
// collaborators are immutable after construction, so one engine serves
// concurrent callers without locking.
type PillarsEngine struct {
	terms    *SolarTermTable
	cycle    *SixtyJiaziCycle
	resolver *TimeResolver
	boundary *DayBoundaryCalculator
	months   *MonthBranchResolver
	deltaT   *DeltaTReconciler
	rulesets map[string]Ruleset
	logger   *logrus.Logger
}

// NewPillarsEngine builds an engine over a verified term table and a set of
// validated rulesets. At least one ruleset is required; the cycle table is
// checked against the progression invariants before use.
func NewPillarsEngine(terms *SolarTermTable, rulesets []Ruleset, logger *logrus.Logger) (*PillarsEngine, error) {
	if terms == nil {
		return nil, fmt.Errorf("nil solar term table")
	}
	if len(rulesets) == 0 {
		return nil, fmt.Errorf("no rulesets configured")
	}

	cycle := NewSixtyJiaziCycle()
	if err := cycle.ValidateTable(cycle.Entries()); err != nil {
		return nil, err
	}

	// Keyed case-insensitively: viper lowercases map keys, callers usually
	// write the canonical mixed-case id.
	byID := make(map[string]Ruleset, len(rulesets))
	for _, r := range rulesets {
		key := strings.ToLower(r.ID)
		if _, dup := byID[key]; dup {
			return nil, fmt.Errorf("duplicate ruleset id %q", r.ID)
		}
		byID[key] = r
	}

	resolver := NewTimeResolver(logger)
	return &PillarsEngine{
		terms:    terms,
		cycle:    cycle,
		resolver: resolver,
		boundary: NewDayBoundaryCalculator(),
		months:   NewMonthBranchResolver(terms, resolver),
		deltaT:   NewDeltaTReconciler(),
		rulesets: byID,
		logger:   logger,
	}, nil
}

// Rulesets lists the configured ruleset ids.
func (e *PillarsEngine) Rulesets() []string {
	ids := make([]string, 0, len(e.rulesets))
	for _, r := range e.rulesets {
		ids = append(ids, r.ID)
	}
	sort.Strings(ids)
	return ids
}

// Compute derives the four pillars for a local birth instant under the named
// ruleset. Identical inputs against the same data snapshot always produce an
// identical PillarSet and trace; downstream consumers treat the result as
// ground truth.
func (e *PillarsEngine) Compute(req models.LocalTimeRequest, rulesetID string) (models.PillarSet, models.EvidenceTrace, error) {
	var empty models.PillarSet

	rs, ok := e.rulesets[strings.ToLower(rulesetID)]
	if !ok {
		return empty, models.EvidenceTrace{}, fmt.Errorf("unknown ruleset %q", rulesetID)
	}

	// Fail fast before any derivation when the year cannot be served.
	minYear, maxYear := e.terms.CoverageWindow()
	if req.Year < minYear || req.Year > maxYear {
		return empty, models.EvidenceTrace{}, &models.CoverageError{Year: req.Year, MinYear: minYear, MaxYear: maxYear}
	}

	trace := models.EvidenceTrace{
		ID:                uuid.New(),
		RulesetID:         rs.ID,
		Timezone:          req.Timezone,
		DayBoundaryPolicy: string(rs.DayBoundary),
		ZiCheckBasis:      string(rs.ZiBasis),
		LMTAdjustMinutes:  rs.LMTOffsetMinutes,
		MonthReference:    string(rs.MonthReference),
		TimeBasis:         "standard",
	}

	utc, res, err := e.resolver.Resolve(req)
	if err != nil {
		return empty, models.EvidenceTrace{}, err
	}
	trace.ResolvedUTC = utc
	trace.TZTransition = res.TZTransition
	trace.Edge = res.Edge
	trace.TZRule = res.Rule
	trace.AddStep("time_basis", "resolved %s as %s via %s", req.String(), utc.Format(time.RFC3339), res.Rule)

	localStd := res.Local
	localAdj := localStd
	if rs.LMTOffsetMinutes != 0 {
		localAdj = localStd.Add(time.Duration(rs.LMTOffsetMinutes) * time.Minute)
		trace.TimeBasis = "lmt"
		trace.AddStep("lmt", "applied %+d minute local mean time adjustment: %s",
			rs.LMTOffsetMinutes, localAdj.Format("2006-01-02T15:04:05"))
	}

	boundary, err := e.boundary.Compute(localStd, localAdj, rs.DayBoundary, rs.ZiBasis)
	if err != nil {
		return empty, models.EvidenceTrace{}, err
	}
	trace.ZiApplied = boundary.ZiApplied
	trace.AddStep("day_boundary_policy", "policy %s (basis %s): day-pillar date %s, zi_applied=%t",
		boundary.Policy, boundary.Basis, boundary.ReferenceDate.Format("2006-01-02"), boundary.ZiApplied)

	monthBranch, bounding, err := e.months.ResolveInstant(utc)
	if err != nil {
		return empty, models.EvidenceTrace{}, err
	}
	trace.MonthTerm = bounding.Term
	trace.MonthTermSource = bounding.Source
	trace.AddStep("month_term", "month branch %s bounded by %s (%s, %s)",
		monthBranch, bounding.Term, bounding.Instant.Format(time.RFC3339), bounding.Source)

	// Month boundaries are always jie-defined; the ruleset's reference class
	// anchors downstream interval arithmetic (start-age style lookups).
	if anchor, aerr := e.terms.LatestTermAtOrBefore(utc, rs.MonthReference); aerr == nil {
		trace.AddStep("reference_terms", "%s anchor %s (%s, %s)",
			rs.MonthReference, anchor.Term, anchor.Instant.Format(time.RFC3339), anchor.Source)
	}

	yearEntry, err := e.yearPillar(utc)
	if err != nil {
		return empty, models.EvidenceTrace{}, err
	}
	monthEntry, err := e.monthPillar(yearEntry, monthBranch)
	if err != nil {
		return empty, models.EvidenceTrace{}, err
	}
	dayEntry, err := e.dayPillar(boundary.ReferenceDate)
	if err != nil {
		return empty, models.EvidenceTrace{}, err
	}
	hourEntry, err := e.hourPillar(dayEntry, localAdj)
	if err != nil {
		return empty, models.EvidenceTrace{}, err
	}

	e.reconcileDeltaT(&trace, utc, bounding, rs.DeltaTMode)

	pillars := models.PillarSet{
		Year:  yearEntry.Token(),
		Month: monthEntry.Token(),
		Day:   dayEntry.Token(),
		Hour:  hourEntry.Token(),
	}
	if e.logger != nil {
		e.logger.WithFields(logrus.Fields{
			"ruleset": rs.ID,
			"request": req.String(),
			"pillars": pillars,
		}).Debug("Computed pillar set")
	}
	return pillars, trace, nil
}

// yearPillar anchors the year to the solar year boundary: an instant before
// that year's 立春 belongs to the previous pillar year.
func (e *PillarsEngine) yearPillar(utc time.Time) (models.SixtyJiaziEntry, error) {
	y := utc.UTC().Year()
	lichun, err := e.terms.TermInstant("立春", y)
	if err != nil {
		return models.SixtyJiaziEntry{}, err
	}
	if utc.Before(lichun.Instant) {
		y--
	}
	return e.cycle.Entry(mod(y-4, 10), mod(y-4, 12))
}

// monthPillar applies the five-tigers rule: the 寅-month stem is fixed by the
// year stem and each later month advances it by one.
func (e *PillarsEngine) monthPillar(year models.SixtyJiaziEntry, branch string) (models.SixtyJiaziEntry, error) {
	yearStem := -1
	for i, s := range models.HeavenlyStems {
		if s == year.Stem {
			yearStem = i
			break
		}
	}
	ordinal, ok := monthOrdinal[branch]
	if !ok || yearStem < 0 {
		return models.SixtyJiaziEntry{}, &models.InvalidPillarError{Token: year.Stem + branch}
	}
	stem := mod(yearStem*2+ordinal+1, 10)
	branchIdx := -1
	for i, b := range models.EarthlyBranches {
		if b == branch {
			branchIdx = i
			break
		}
	}
	return e.cycle.Entry(stem, branchIdx)
}

// dayPillar counts civil days from the 1900-01-01 anchor.
func (e *PillarsEngine) dayPillar(referenceDate time.Time) (models.SixtyJiaziEntry, error) {
	ref := time.Date(referenceDate.Year(), referenceDate.Month(), referenceDate.Day(), 0, 0, 0, 0, time.UTC)
	anchor := time.Date(anchorYear, time.January, 1, 0, 0, 0, 0, time.UTC)
	days := int(ref.Sub(anchor).Hours() / 24)
	return e.cycle.EntryAt(anchorDayIndex + days), nil
}

// hourPillar buckets the adjusted wall clock into a two-hour branch and
// derives the stem from the day stem (five-rats rule).
func (e *PillarsEngine) hourPillar(day models.SixtyJiaziEntry, localAdj time.Time) (models.SixtyJiaziEntry, error) {
	branchIdx := ((localAdj.Hour() + 1) / 2) % 12
	dayStem := -1
	for i, s := range models.HeavenlyStems {
		if s == day.Stem {
			dayStem = i
			break
		}
	}
	if dayStem < 0 {
		return models.SixtyJiaziEntry{}, &models.InvalidPillarError{Token: day.Token()}
	}
	return e.cycle.Entry(mod(dayStem*2+branchIdx, 10), branchIdx)
}

// reconcileDeltaT cross-checks the polynomial and tabulated delta-T models at
// the resolved instant and attaches any advisories. The margin to the
// bounding term tells the reconciler how sensitive the month assignment is.
func (e *PillarsEngine) reconcileDeltaT(trace *models.EvidenceTrace, utc time.Time, bounding models.SolarTermEntry, mode ReconcileMode) {
	margin := decimal.NewFromFloat(utc.Sub(bounding.Instant).Seconds())
	if next, nerr := e.nextJieAfter(utc); nerr == nil {
		toNext := decimal.NewFromFloat(next.Instant.Sub(utc).Seconds())
		if toNext.LessThan(margin) {
			margin = toNext
		}
	}
	rec := e.deltaT.Reconcile(EspenakMeeusDeltaT(utc), HorizonsDeltaT(utc), margin, mode)
	trace.DeltaTAlerts = rec.Alerts
	for _, a := range rec.Alerts {
		trace.AddStep("delta_t", "%s: %s", a.Kind, a.Detail)
		if e.logger != nil {
			e.logger.WithFields(logrus.Fields{"kind": a.Kind, "detail": a.Detail}).Warn("Delta-T advisory")
		}
	}
}

func (e *PillarsEngine) nextJieAfter(utc time.Time) (models.SolarTermEntry, error) {
	_, next, err := e.terms.EnclosingTerms(utc, TermClassJie)
	return next, err
}
