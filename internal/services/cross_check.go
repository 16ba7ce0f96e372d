package services

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/sajulab/ganzhi-engine/internal/models"
)

// LoadReferencePillars reads a canonical year-pillar lookup table
// (year,pillar rows) used to cross-validate cycle arithmetic against an
// independently published source.
func LoadReferencePillars(path string) (map[int]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", models.ErrMissingTableFile, path)
		}
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = 2

	out := make(map[int]string)
	first := true
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if first && rec[0] == "year" {
			first = false
			continue
		}
		first = false
		year, err := strconv.Atoi(rec[0])
		if err != nil {
			return nil, fmt.Errorf("bad year %q: %w", rec[0], err)
		}
		out[year] = rec[1]
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("reference table %s is empty", path)
	}
	return out, nil
}

// CalendarYearPillar returns the pillar of a calendar year from pure cycle
// arithmetic (no solar-year boundary applied). This is the form canonical
// reference tables are keyed by.
func (c *SixtyJiaziCycle) CalendarYearPillar(year int) (models.SixtyJiaziEntry, error) {
	return c.Entry(mod(year-4, 10), mod(year-4, 12))
}

// CrossValidateYears checks cycle arithmetic against a canonical reference
// table and returns the first divergence found.
func (c *SixtyJiaziCycle) CrossValidateYears(ref map[int]string) error {
	for year, want := range ref {
		got, err := c.CalendarYearPillar(year)
		if err != nil {
			return err
		}
		if got.Token() != want {
			return fmt.Errorf("year %d: cycle arithmetic gives %s, reference table says %s", year, got.Token(), want)
		}
	}
	return nil
}
