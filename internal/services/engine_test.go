package services

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sajulab/ganzhi-engine/internal/models"
)

func testRulesets(t *testing.T) []Ruleset {
	t.Helper()
	defs := []struct {
		id       string
		policy   string
		basis    string
		monthRef string
		mode     string
		lmt      int
	}{
		{"KR_classic_v1.4", "traditional_zi", "post_lmt", "jie", "standard", -32},
		{"KR_strict_v1.4", "traditional_zi", "post_lmt", "jie", "strict", -32},
		{"KR_pre_basis_v1.0", "traditional_zi", "pre_lmt", "jie", "standard", -32},
		{"KR_qi_ref_v1.0", "traditional_zi", "post_lmt", "qi", "standard", -32},
		{"civil_v1.0", "civil_midnight", "post_lmt", "jie", "standard", 0},
		{"civil_lmt_v1.0", "civil_midnight", "post_lmt", "jie", "standard", -32},
	}
	out := make([]Ruleset, 0, len(defs))
	for _, s := range defs {
		rs, err := NewRuleset(s.id, s.policy, s.basis, s.monthRef, s.mode, s.lmt)
		require.NoError(t, err)
		out = append(out, rs)
	}
	return out
}

func newTestEngine(t *testing.T) *PillarsEngine {
	t.Helper()
	engine, err := NewPillarsEngine(loadTestTable(t), testRulesets(t), nil)
	require.NoError(t, err)
	return engine
}

func TestNewPillarsEngine(t *testing.T) {
	t.Run("requires a table", func(t *testing.T) {
		_, err := NewPillarsEngine(nil, testRulesets(t), nil)
		assert.Error(t, err)
	})

	t.Run("requires rulesets", func(t *testing.T) {
		_, err := NewPillarsEngine(loadTestTable(t), nil, nil)
		assert.Error(t, err)
	})

	t.Run("rejects duplicate ruleset ids", func(t *testing.T) {
		rs := testRulesets(t)
		_, err := NewPillarsEngine(loadTestTable(t), append(rs, rs[0]), nil)
		assert.Error(t, err)
	})

	t.Run("lists configured rulesets", func(t *testing.T) {
		engine := newTestEngine(t)
		assert.Contains(t, engine.Rulesets(), "KR_classic_v1.4")
	})
}

func TestNewRulesetValidation(t *testing.T) {
	tests := []struct {
		name     string
		policy   string
		basis    string
		monthRef string
		mode     string
	}{
		{"bad policy", "lunar_noon", "post_lmt", "jie", "standard"},
		{"bad basis", "traditional_zi", "mid_lmt", "jie", "standard"},
		{"bad month reference", "traditional_zi", "post_lmt", "full_moon", "standard"},
		{"bad delta-t mode", "traditional_zi", "post_lmt", "jie", "paranoid"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRuleset("x", tt.policy, tt.basis, tt.monthRef, tt.mode, 0)
			assert.Error(t, err)
		})
	}
}

func TestComputeSeoulSummer1992(t *testing.T) {
	// 1992-07-15T23:40 Asia/Seoul under KR_classic_v1.4: resolves to
	// 14:40Z with no transition, month 未 bounded by 小暑, hour branch 子.
	engine := newTestEngine(t)
	req := models.LocalTimeRequest{Year: 1992, Month: 7, Day: 15, Hour: 23, Minute: 40, Timezone: "Asia/Seoul"}

	pillars, trace, err := engine.Compute(req, "KR_classic_v1.4")
	require.NoError(t, err)

	assert.True(t, trace.ResolvedUTC.Equal(time.Date(1992, 7, 15, 14, 40, 0, 0, time.UTC)))
	assert.False(t, trace.TZTransition)
	assert.Equal(t, "小暑", trace.MonthTerm)
	assert.Equal(t, models.TermSourceObserved, trace.MonthTermSource)

	assert.Equal(t, "壬申", pillars.Year)
	assert.Equal(t, "丁未", pillars.Month)
	assert.Equal(t, "癸巳", pillars.Day) // zi shift lands on 1992-07-16
	assert.Equal(t, "壬子", pillars.Hour)
	assert.Equal(t, "子", string([]rune(pillars.Hour)[1]))

	assert.Equal(t, "KR_classic_v1.4", trace.RulesetID)
	assert.Equal(t, "lmt", trace.TimeBasis)
	assert.True(t, trace.ZiApplied)
	assert.NotEmpty(t, trace.Steps)
}

func TestComputeZiShiftWithLMT(t *testing.T) {
	// 2000-09-14T00:30 with a -32 minute LMT adjustment lands on 23:58 the
	// previous civil day; the zi rule then pushes the day-pillar date back to
	// the naive calendar date.
	engine := newTestEngine(t)
	req := models.LocalTimeRequest{Year: 2000, Month: 9, Day: 14, Hour: 0, Minute: 30, Timezone: "Asia/Seoul"}

	zi, ziTrace, err := engine.Compute(req, "KR_classic_v1.4")
	require.NoError(t, err)
	assert.True(t, ziTrace.ZiApplied)
	assert.Equal(t, "乙亥", zi.Day) // day pillar of 2000-09-14

	civil, civilTrace, err := engine.Compute(req, "civil_lmt_v1.0")
	require.NoError(t, err)
	assert.False(t, civilTrace.ZiApplied)
	assert.Equal(t, "甲戌", civil.Day) // day pillar of 2000-09-13

	// Same instant, adjacent day pillars: the zi shift moved the reference
	// date forward one day.
	ziIdx, err := NewSixtyJiaziCycle().IndexOf(zi.Day)
	require.NoError(t, err)
	civilIdx, err := NewSixtyJiaziCycle().IndexOf(civil.Day)
	require.NoError(t, err)
	assert.Equal(t, (civilIdx+1)%60, ziIdx)
}

func TestComputeZiBasisIsExplicit(t *testing.T) {
	// The same request under pre- and post-LMT zi bases lands on different
	// day pillars; the ordering is configuration, not evaluation order.
	engine := newTestEngine(t)
	req := models.LocalTimeRequest{Year: 2000, Month: 9, Day: 14, Hour: 0, Minute: 30, Timezone: "Asia/Seoul"}

	post, postTrace, err := engine.Compute(req, "KR_classic_v1.4")
	require.NoError(t, err)
	pre, preTrace, err := engine.Compute(req, "KR_pre_basis_v1.0")
	require.NoError(t, err)

	assert.True(t, postTrace.ZiApplied)
	assert.False(t, preTrace.ZiApplied)
	assert.NotEqual(t, post.Day, pre.Day)
}

func TestComputeDSTGapDoesNotFail(t *testing.T) {
	// 2020-03-08T02:30 America/New_York never existed on local clocks.
	engine := newTestEngine(t)
	req := models.LocalTimeRequest{Year: 2020, Month: 3, Day: 8, Hour: 2, Minute: 30, Timezone: "America/New_York"}

	_, trace, err := engine.Compute(req, "civil_v1.0")
	require.NoError(t, err)
	assert.True(t, trace.TZTransition)
	assert.True(t, trace.Edge)
	assert.Equal(t, "dst_gap_fold_forward", trace.TZRule)
}

func TestComputeKnownChart(t *testing.T) {
	// 2000-01-01T12:00 Asia/Shanghai, civil day boundary: a fully documented
	// reference chart. The instant precedes 立春 2000, so the pillar year is
	// still 1999.
	engine := newTestEngine(t)
	req := models.LocalTimeRequest{Year: 2000, Month: 1, Day: 1, Hour: 12, Timezone: "Asia/Shanghai"}

	pillars, trace, err := engine.Compute(req, "civil_v1.0")
	require.NoError(t, err)

	assert.Equal(t, "己卯", pillars.Year)
	assert.Equal(t, "丙子", pillars.Month)
	assert.Equal(t, "戊午", pillars.Day)
	assert.Equal(t, "戊午", pillars.Hour)
	assert.Equal(t, "大雪", trace.MonthTerm)
	assert.Equal(t, "standard", trace.TimeBasis)
}

func TestComputeCoverage(t *testing.T) {
	engine := newTestEngine(t)

	tests := []struct {
		name    string
		year    int
		tooOld  bool
		wantErr bool
	}{
		{"inside canonical", 1992, false, false},
		{"inside extrapolated", 2040, false, false},
		{"too old", 1950, true, true},
		{"too new", 2100, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := models.LocalTimeRequest{Year: tt.year, Month: 6, Day: 15, Hour: 12, Timezone: "UTC"}
			_, _, err := engine.Compute(req, "civil_v1.0")
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			var cerr *models.CoverageError
			require.ErrorAs(t, err, &cerr)
			assert.Equal(t, tt.tooOld, cerr.TooOld())
		})
	}
}

func TestComputeAtCoverageWindowEdges(t *testing.T) {
	// Every year the advertised window names must compute end to end,
	// including the weeks where one bracketing term lies beyond the
	// extrapolation horizon.
	engine := newTestEngine(t)
	minYear, maxYear := engine.terms.CoverageWindow()

	t.Run("december of the last supported year", func(t *testing.T) {
		req := models.LocalTimeRequest{Year: maxYear, Month: 12, Day: 15, Hour: 12, Timezone: "UTC"}
		_, trace, err := engine.Compute(req, "civil_v1.0")
		require.NoError(t, err)
		assert.Equal(t, "大雪", trace.MonthTerm)
		assert.Equal(t, models.TermSourceExtrapolated, trace.MonthTermSource)
	})

	t.Run("january of the first supported year", func(t *testing.T) {
		req := models.LocalTimeRequest{Year: minYear, Month: 1, Day: 3, Hour: 12, Timezone: "UTC"}
		_, trace, err := engine.Compute(req, "civil_v1.0")
		require.NoError(t, err)
		assert.Equal(t, "大雪", trace.MonthTerm)
	})
}

func TestComputeMonthReferenceAnchor(t *testing.T) {
	// The reference class never moves the month decision; it selects the
	// anchor recorded for downstream interval arithmetic.
	engine := newTestEngine(t)
	req := models.LocalTimeRequest{Year: 1992, Month: 7, Day: 15, Hour: 23, Minute: 40, Timezone: "Asia/Seoul"}

	_, jieTrace, err := engine.Compute(req, "KR_classic_v1.4")
	require.NoError(t, err)
	assert.Equal(t, "jie", jieTrace.MonthReference)

	_, qiTrace, err := engine.Compute(req, "KR_qi_ref_v1.0")
	require.NoError(t, err)
	assert.Equal(t, "qi", qiTrace.MonthReference)
	assert.Equal(t, "小暑", qiTrace.MonthTerm)

	anchor := ""
	for _, s := range qiTrace.Steps {
		if s.Stage == "reference_terms" {
			anchor = s.Detail
		}
	}
	assert.Contains(t, anchor, "夏至")
}

func TestComputeExtrapolatedTermSourceInTrace(t *testing.T) {
	engine := newTestEngine(t)
	req := models.LocalTimeRequest{Year: 2040, Month: 6, Day: 15, Hour: 12, Timezone: "UTC"}

	_, trace, err := engine.Compute(req, "civil_v1.0")
	require.NoError(t, err)
	assert.Equal(t, models.TermSourceExtrapolated, trace.MonthTermSource)
}

func TestComputeUnknownRuleset(t *testing.T) {
	engine := newTestEngine(t)
	req := models.LocalTimeRequest{Year: 1992, Month: 7, Day: 15, Hour: 12, Timezone: "UTC"}
	_, _, err := engine.Compute(req, "JP_modern_v9")
	assert.Error(t, err)
}

func TestComputeRulesetLookupIsCaseInsensitive(t *testing.T) {
	// Viper lowercases map keys on the way in; ids must still resolve.
	engine := newTestEngine(t)
	req := models.LocalTimeRequest{Year: 1992, Month: 7, Day: 15, Hour: 12, Timezone: "UTC"}
	_, _, err := engine.Compute(req, "kr_classic_v1.4")
	assert.NoError(t, err)
}

func TestComputeNearBoundaryAlert(t *testing.T) {
	// 小暑 1992 falls at 1992-07-06T23:05:51Z in the fixture tables; an
	// instant seconds after it must carry a near-boundary advisory while
	// still resolving the month.
	engine := newTestEngine(t)
	req := models.LocalTimeRequest{Year: 1992, Month: 7, Day: 7, Hour: 8, Minute: 6, Second: 30, Timezone: "Asia/Seoul"}

	_, trace, err := engine.Compute(req, "KR_classic_v1.4")
	require.NoError(t, err)
	assert.Equal(t, "小暑", trace.MonthTerm)
	assert.Contains(t, alertKinds(trace.DeltaTAlerts), models.AlertNearBoundary)
}

func TestComputeStrictModeWidensBoundaryWindow(t *testing.T) {
	// Five minutes out: inside the strict window, outside the standard one.
	engine := newTestEngine(t)
	req := models.LocalTimeRequest{Year: 1992, Month: 7, Day: 7, Hour: 8, Minute: 10, Second: 51, Timezone: "Asia/Seoul"}

	_, standard, err := engine.Compute(req, "KR_classic_v1.4")
	require.NoError(t, err)
	assert.NotContains(t, alertKinds(standard.DeltaTAlerts), models.AlertNearBoundary)

	_, strict, err := engine.Compute(req, "KR_strict_v1.4")
	require.NoError(t, err)
	assert.Contains(t, alertKinds(strict.DeltaTAlerts), models.AlertNearBoundary)
}

func TestComputeDeterministic(t *testing.T) {
	engine := newTestEngine(t)
	req := models.LocalTimeRequest{Year: 1992, Month: 7, Day: 15, Hour: 23, Minute: 40, Timezone: "Asia/Seoul"}

	p1, t1, err := engine.Compute(req, "KR_classic_v1.4")
	require.NoError(t, err)
	p2, t2, err := engine.Compute(req, "KR_classic_v1.4")
	require.NoError(t, err)

	assert.Equal(t, p1, p2)
	// Traces are identical apart from their fresh ids.
	t1.ID = t2.ID
	assert.Equal(t, t1, t2)
}

func TestComputeConcurrent(t *testing.T) {
	engine := newTestEngine(t)
	reqs := []models.LocalTimeRequest{
		{Year: 1992, Month: 7, Day: 15, Hour: 23, Minute: 40, Timezone: "Asia/Seoul"},
		{Year: 2000, Month: 9, Day: 14, Hour: 0, Minute: 30, Timezone: "Asia/Seoul"},
		{Year: 2020, Month: 3, Day: 8, Hour: 2, Minute: 30, Timezone: "America/New_York"},
		{Year: 2005, Month: 12, Day: 31, Hour: 23, Minute: 59, Timezone: "Europe/Berlin"},
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		for _, req := range reqs {
			wg.Add(1)
			go func(r models.LocalTimeRequest) {
				defer wg.Done()
				_, _, err := engine.Compute(r, "KR_classic_v1.4")
				assert.NoError(t, err)
			}(req)
		}
	}
	wg.Wait()
}
