package services

import (
	"time"

	"github.com/sajulab/ganzhi-engine/internal/models"
)

// jieBranch maps each month-defining term to the branch of the month it
// opens.
var jieBranch = map[string]string{
	"立春": "寅",
	"惊蛰": "卯",
	"清明": "辰",
	"立夏": "巳",
	"芒种": "午",
	"小暑": "未",
	"立秋": "申",
	"白露": "酉",
	"寒露": "戌",
	"立冬": "亥",
	"大雪": "子",
	"小寒": "丑",
}

// monthOrdinal gives each branch its traditional month number with the
// 寅-month as month 1, used by the five-tigers month-stem rule.
var monthOrdinal = map[string]int{
	"寅": 1, "卯": 2, "辰": 3, "巳": 4, "午": 5, "未": 6,
	"申": 7, "酉": 8, "戌": 9, "亥": 10, "子": 11, "丑": 12,
}

// MonthBranchResolver derives the month branch governing an instant from the
// most recent month-defining term at or before it.
type MonthBranchResolver struct {
	terms    *SolarTermTable
	resolver *TimeResolver
}

// NewMonthBranchResolver wires the resolver to its term table and time
// resolver.
func NewMonthBranchResolver(terms *SolarTermTable, resolver *TimeResolver) *MonthBranchResolver {
	return &MonthBranchResolver{terms: terms, resolver: resolver}
}

// Resolve converts the request to UTC, finds the enclosing jie terms, and
// returns the branch the bounding term fixes. Missing term data surfaces as a
// MissingTermError; years beyond the extrapolation horizon as a
// CoverageError. Both are typed and catchable.
func (m *MonthBranchResolver) Resolve(req models.LocalTimeRequest) (string, models.SolarTermEntry, error) {
	utc, _, err := m.resolver.Resolve(req)
	if err != nil {
		return "", models.SolarTermEntry{}, err
	}
	return m.ResolveInstant(utc)
}

// ResolveInstant is Resolve for a pre-resolved UTC instant. Only the bounding
// term matters here, so the lookup stays valid right up to the edge of the
// supported coverage window even when the following term is out of reach.
func (m *MonthBranchResolver) ResolveInstant(utc time.Time) (string, models.SolarTermEntry, error) {
	prev, err := m.terms.LatestTermAtOrBefore(utc, TermClassJie)
	if err != nil {
		return "", models.SolarTermEntry{}, err
	}
	return jieBranch[prev.Term], prev, nil
}
