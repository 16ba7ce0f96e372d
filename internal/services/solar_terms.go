package services

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/sajulab/ganzhi-engine/internal/models"
)

// TermNames is the fixed ordered set of the 24 solar terms, calendar-year
// order (小寒 falls in early January).
var TermNames = []string{
	"小寒", "大寒", "立春", "雨水", "惊蛰", "春分",
	"清明", "谷雨", "立夏", "小满", "芒种", "夏至",
	"小暑", "大暑", "立秋", "处暑", "白露", "秋分",
	"寒露", "霜降", "立冬", "小雪", "大雪", "冬至",
}

// TermClass filters term lookups.
type TermClass string

const (
	// TermClassAll keeps all 24 terms.
	TermClassAll TermClass = "all"
	// TermClassJie keeps the 12 month-defining terms.
	TermClassJie TermClass = "jie"
	// TermClassQi keeps the 12 mid-month terms.
	TermClassQi TermClass = "qi"
)

// MaxExtrapolationYears bounds how far past canonical coverage the linear
// model may be applied. Orbital precession is nonlinear over longer horizons,
// so predictions further out degrade materially.
const MaxExtrapolationYears = 30

// minRegressionPoints is the smallest canonical sample a per-term fit needs.
const minRegressionPoints = 5

// IsJieTerm reports whether a term defines a month boundary. Terms alternate
// jie/qi starting from 小寒 (a jie).
func IsJieTerm(term string) bool {
	for i, name := range TermNames {
		if name == term {
			return i%2 == 0
		}
	}
	return false
}

// termFit is the least-squares line of a term's seconds-since-Jan-1-UTC
// against year.
type termFit struct {
	slope     float64
	intercept float64
	points    int
}

// SolarTermTable holds per-year observed term instants plus per-term linear
// models for bounded extrapolation. Construct once, then share freely: all
// fields are read-only after load.
type SolarTermTable struct {
	years   map[int][]models.SolarTermEntry // always 24 entries, time-ordered
	fits    map[string]termFit
	minYear int
	maxYear int
	logger  *logrus.Logger
}

// LoadSolarTermTable reads every terms_YYYY.csv under dir. Each file carries
// one year of observed term instants with columns
// term,year,instant,longitude_deg,delta_t_seconds,source,algo_version.
// Missing directory or malformed content is fatal: the caller must not start
// with partial tables.
func LoadSolarTermTable(dir string, logger *logrus.Logger) (*SolarTermTable, error) {
	pattern := filepath.Join(dir, "terms_*.csv")
	files, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("scanning term tables: %w", err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: no term tables under %s", models.ErrMissingTableFile, dir)
	}
	sort.Strings(files)

	t := &SolarTermTable{
		years:  make(map[int][]models.SolarTermEntry, len(files)),
		fits:   make(map[string]termFit, len(TermNames)),
		logger: logger,
	}
	for _, path := range files {
		entries, year, err := readTermFile(path)
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", filepath.Base(path), err)
		}
		t.years[year] = entries
		if t.minYear == 0 || year < t.minYear {
			t.minYear = year
		}
		if year > t.maxYear {
			t.maxYear = year
		}
	}

	// Canonical coverage must be contiguous: a hole would silently route
	// mid-range lookups through the extrapolation path.
	for y := t.minYear; y <= t.maxYear; y++ {
		if _, ok := t.years[y]; !ok {
			return nil, fmt.Errorf("%w: no term table for year %d inside canonical range %d..%d",
				models.ErrMissingTableFile, y, t.minYear, t.maxYear)
		}
	}

	t.fitAll()
	if logger != nil {
		logger.WithFields(logrus.Fields{
			"years":    len(t.years),
			"min_year": t.minYear,
			"max_year": t.maxYear,
		}).Info("Loaded solar term tables")
	}
	return t, nil
}

func readTermFile(path string) ([]models.SolarTermEntry, int, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, 0, fmt.Errorf("%w: %s", models.ErrMissingTableFile, path)
		}
		return nil, 0, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = 7

	var entries []models.SolarTermEntry
	year := 0
	first := true
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, 0, err
		}
		if first && rec[0] == "term" {
			first = false
			continue
		}
		first = false

		e, err := parseTermRecord(rec)
		if err != nil {
			return nil, 0, err
		}
		if year == 0 {
			year = e.Year
		} else if e.Year != year {
			return nil, 0, fmt.Errorf("mixed years %d and %d in one table", year, e.Year)
		}
		entries = append(entries, e)
	}

	if len(entries) != len(TermNames) {
		return nil, 0, fmt.Errorf("year %d has %d terms, want %d", year, len(entries), len(TermNames))
	}
	for i, e := range entries {
		if e.Term != TermNames[i] {
			return nil, 0, fmt.Errorf("year %d: term %d is %s, want %s", year, i, e.Term, TermNames[i])
		}
		if i > 0 && !entries[i-1].Instant.Before(e.Instant) {
			return nil, 0, fmt.Errorf("year %d: %s is not after %s", year, e.Term, entries[i-1].Term)
		}
	}
	return entries, year, nil
}

func parseTermRecord(rec []string) (models.SolarTermEntry, error) {
	year, err := strconv.Atoi(rec[1])
	if err != nil {
		return models.SolarTermEntry{}, fmt.Errorf("bad year %q: %w", rec[1], err)
	}
	instant, err := time.Parse(time.RFC3339, rec[2])
	if err != nil {
		return models.SolarTermEntry{}, fmt.Errorf("bad instant %q: %w", rec[2], err)
	}
	lon, err := decimal.NewFromString(rec[3])
	if err != nil {
		return models.SolarTermEntry{}, fmt.Errorf("bad longitude %q: %w", rec[3], err)
	}
	dt, err := decimal.NewFromString(rec[4])
	if err != nil {
		return models.SolarTermEntry{}, fmt.Errorf("bad delta-t %q: %w", rec[4], err)
	}
	return models.SolarTermEntry{
		Term:          rec[0],
		Year:          year,
		Instant:       instant.UTC(),
		LongitudeDeg:  lon,
		DeltaTSeconds: dt,
		Source:        rec[5],
		AlgoVersion:   rec[6],
	}, nil
}

// fitAll fits one least-squares line per term over (year, seconds since that
// year's Jan 1 UTC). The drift of a term's instant across years is smooth and
// small, which is what makes a linear model admissible a few decades out.
func (t *SolarTermTable) fitAll() {
	for i, term := range TermNames {
		var n, sumX, sumY, sumXX, sumXY float64
		for year, entries := range t.years {
			secs := entries[i].Instant.Sub(jan1UTC(year)).Seconds()
			x := float64(year)
			n++
			sumX += x
			sumY += secs
			sumXX += x * x
			sumXY += x * secs
		}
		fit := termFit{points: int(n)}
		denom := n*sumXX - sumX*sumX
		if n >= 2 && denom != 0 {
			fit.slope = (n*sumXY - sumX*sumY) / denom
			fit.intercept = (sumY - fit.slope*sumX) / n
		}
		t.fits[term] = fit
	}
}

// MinYear returns the first canonical year.
func (t *SolarTermTable) MinYear() int { return t.minYear }

// MaxYear returns the last canonical year.
func (t *SolarTermTable) MaxYear() int { return t.maxYear }

// CoverageWindow returns the full supported year range: canonical years plus
// the extrapolation horizon, trimmed by one year on the early side so January
// of the earliest supported year can still reach the previous year's closing
// term.
func (t *SolarTermTable) CoverageWindow() (minYear, maxYear int) {
	minYear, maxYear = t.horizon()
	return minYear + 1, maxYear
}

// horizon is the raw extrapolation range of TermInstant.
func (t *SolarTermTable) horizon() (minYear, maxYear int) {
	return t.minYear - MaxExtrapolationYears, t.maxYear + MaxExtrapolationYears
}

// TermInstant returns the instant a term crosses its longitude in the given
// year. Canonical years come from the loaded tables; years at most
// MaxExtrapolationYears outside them come from the per-term linear model and
// are tagged TermSourceExtrapolated so callers can discount them. Years
// beyond the horizon yield a CoverageError.
func (t *SolarTermTable) TermInstant(term string, year int) (models.SolarTermEntry, error) {
	idx := -1
	for i, name := range TermNames {
		if name == term {
			idx = i
			break
		}
	}
	if idx < 0 {
		return models.SolarTermEntry{}, fmt.Errorf("unknown solar term %q", term)
	}

	if entries, ok := t.years[year]; ok {
		return entries[idx], nil
	}

	minYear, maxYear := t.horizon()
	if year < minYear || year > maxYear {
		return models.SolarTermEntry{}, &models.CoverageError{Year: year, MinYear: minYear, MaxYear: maxYear}
	}

	fit := t.fits[term]
	if fit.points < minRegressionPoints {
		return models.SolarTermEntry{}, &models.MissingTermError{Term: term, Year: year}
	}

	secs := fit.slope*float64(year) + fit.intercept
	instant := jan1UTC(year).Add(time.Duration(secs * float64(time.Second)))
	if t.logger != nil {
		t.logger.WithFields(logrus.Fields{
			"term": term,
			"year": year,
		}).Debug("Extrapolated solar term instant")
	}
	// Longitude is fixed per term; delta-T is carried from the nearest
	// canonical year since the model predicts the instant, not the clock
	// correction.
	nearest := t.minYear
	if year > t.maxYear {
		nearest = t.maxYear
	}
	return models.SolarTermEntry{
		Term:          term,
		Year:          year,
		Instant:       instant,
		LongitudeDeg:  t.years[nearest][idx].LongitudeDeg,
		DeltaTSeconds: t.years[nearest][idx].DeltaTSeconds,
		Source:        models.TermSourceExtrapolated,
		AlgoVersion:   "linfit-v1",
	}, nil
}

// LatestTermAtOrBefore returns the most recent term of the class at or before
// the instant. Unlike EnclosingTerms it does not require the trailing bracket,
// so it still resolves in the closing weeks of the last supported year, where
// the following term lies beyond the extrapolation horizon.
func (t *SolarTermTable) LatestTermAtOrBefore(instant time.Time, class TermClass) (models.SolarTermEntry, error) {
	year := instant.UTC().Year()

	var best models.SolarTermEntry
	found := false
	for _, y := range []int{year - 1, year} {
		for i, term := range TermNames {
			if !classMatch(class, i) {
				continue
			}
			e, err := t.TermInstant(term, y)
			if err != nil {
				// The previous year can sit outside the horizon while the
				// instant's own year resolves fine.
				continue
			}
			if e.Instant.After(instant) {
				continue
			}
			if !found || e.Instant.After(best.Instant) {
				best = e
				found = true
			}
		}
	}
	if !found {
		return models.SolarTermEntry{}, &models.MissingTermError{Year: year}
	}
	return best, nil
}

// EnclosingTerms finds the terms bracketing an instant: the latest term at or
// before it and the earliest after it, restricted to the given class. An
// instant near Jan 1 is bracketed using the previous year's terms.
func (t *SolarTermTable) EnclosingTerms(instant time.Time, class TermClass) (prev, next models.SolarTermEntry, err error) {
	year := instant.UTC().Year()

	var window []models.SolarTermEntry
	for _, y := range []int{year - 1, year, year + 1} {
		for i, term := range TermNames {
			if !classMatch(class, i) {
				continue
			}
			e, err := t.TermInstant(term, y)
			if err != nil {
				// A window edge outside coverage is tolerable as long as the
				// bracketing terms themselves resolve.
				continue
			}
			window = append(window, e)
		}
	}
	sort.Slice(window, func(i, j int) bool { return window[i].Instant.Before(window[j].Instant) })

	hasPrev := false
	for _, e := range window {
		if !e.Instant.After(instant) {
			prev = e
			hasPrev = true
			continue
		}
		if hasPrev {
			return prev, e, nil
		}
		break
	}
	return models.SolarTermEntry{}, models.SolarTermEntry{}, &models.MissingTermError{Year: year}
}

func classMatch(class TermClass, termIndex int) bool {
	switch class {
	case TermClassJie:
		return termIndex%2 == 0
	case TermClassQi:
		return termIndex%2 == 1
	default:
		return true
	}
}

func jan1UTC(year int) time.Time {
	return time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
}
