package services

import (
	"fmt"

	"golang.org/x/text/unicode/norm"

	"github.com/sajulab/ganzhi-engine/internal/models"
)

// SixtyJiaziCycle holds the full sexagenary sequence and supports offset
// arithmetic over it. The table is built once and read-only afterwards, so a
// single instance is safe to share across concurrent callers.
type SixtyJiaziCycle struct {
	entries   [60]models.SixtyJiaziEntry
	byToken   map[string]int
	stemIdx   map[string]int
	branchIdx map[string]int
}

// NewSixtyJiaziCycle builds the canonical 60-entry cycle from the fixed stem
// and branch alphabets.
func NewSixtyJiaziCycle() *SixtyJiaziCycle {
	c := &SixtyJiaziCycle{
		byToken:   make(map[string]int, 60),
		stemIdx:   make(map[string]int, 10),
		branchIdx: make(map[string]int, 12),
	}
	for i, s := range models.HeavenlyStems {
		c.stemIdx[s] = i
	}
	for i, b := range models.EarthlyBranches {
		c.branchIdx[b] = i
	}
	for i := 0; i < 60; i++ {
		e := models.SixtyJiaziEntry{
			Stem:   models.HeavenlyStems[i%10],
			Branch: models.EarthlyBranches[i%12],
			Index:  i,
		}
		c.entries[i] = e
		c.byToken[e.Token()] = i
	}
	return c
}

// EntryAt returns the cycle entry at the given index, accepting any integer
// and reducing it mod 60.
func (c *SixtyJiaziCycle) EntryAt(index int) models.SixtyJiaziEntry {
	i := index % 60
	if i < 0 {
		i += 60
	}
	return c.entries[i]
}

// IndexOf resolves a two-rune stem+branch token to its cycle index. Tokens
// are NFC-normalised first so decomposed input from upstream form fields
// still resolves. Only the 60 valid combinations exist; a well-formed pair
// that never occurs in the cycle (e.g. 甲丑) is rejected the same way as
// garbage input.
func (c *SixtyJiaziCycle) IndexOf(token string) (int, error) {
	normalized := norm.NFC.String(token)
	i, ok := c.byToken[normalized]
	if !ok {
		return 0, &models.InvalidPillarError{Token: token}
	}
	return i, nil
}

// Advance moves an entry by offset slots. The stem and branch indices are
// advanced independently mod 10 and mod 12 and the resulting pair is looked
// up, not recomputed from the cycle index, so the progression invariant is
// enforced rather than assumed.
func (c *SixtyJiaziCycle) Advance(entry models.SixtyJiaziEntry, offset int) (models.SixtyJiaziEntry, error) {
	s, ok := c.stemIdx[entry.Stem]
	if !ok {
		return models.SixtyJiaziEntry{}, &models.InvalidPillarError{Token: entry.Token()}
	}
	b, ok := c.branchIdx[entry.Branch]
	if !ok {
		return models.SixtyJiaziEntry{}, &models.InvalidPillarError{Token: entry.Token()}
	}
	ns := mod(s+offset, 10)
	nb := mod(b+offset, 12)
	token := models.HeavenlyStems[ns] + models.EarthlyBranches[nb]
	i, ok := c.byToken[token]
	if !ok {
		// Unreachable when entry came from this cycle: stem and branch
		// advanced by the same offset always land on a valid pair.
		return models.SixtyJiaziEntry{}, &models.InvalidPillarError{Token: token}
	}
	return c.entries[i], nil
}

// Entry builds the entry for a stem index and branch index pair, erroring when
// the pair does not occur in the 60-cycle (stem and branch parity differ).
func (c *SixtyJiaziCycle) Entry(stemIndex, branchIndex int) (models.SixtyJiaziEntry, error) {
	s := mod(stemIndex, 10)
	b := mod(branchIndex, 12)
	token := models.HeavenlyStems[s] + models.EarthlyBranches[b]
	i, ok := c.byToken[token]
	if !ok {
		return models.SixtyJiaziEntry{}, &models.InvalidPillarError{Token: token}
	}
	return c.entries[i], nil
}

// ValidateTable checks an externally supplied 60-entry table against the
// cycle invariants: consecutive entries advance stem by 1 mod 10 and branch
// by 1 mod 12, and the 60 pairs are a bijection onto all valid combinations.
// A violation is a load-time fatality, never a per-request error.
func (c *SixtyJiaziCycle) ValidateTable(table []models.SixtyJiaziEntry) error {
	if len(table) != 60 {
		return fmt.Errorf("%w: got %d entries, want 60", models.ErrCorruptCycleTable, len(table))
	}
	seen := make(map[string]bool, 60)
	for i, e := range table {
		s, ok := c.stemIdx[e.Stem]
		if !ok {
			return fmt.Errorf("%w: unknown stem %q at index %d", models.ErrCorruptCycleTable, e.Stem, i)
		}
		b, ok := c.branchIdx[e.Branch]
		if !ok {
			return fmt.Errorf("%w: unknown branch %q at index %d", models.ErrCorruptCycleTable, e.Branch, i)
		}
		if seen[e.Token()] {
			return fmt.Errorf("%w: duplicate pair %s at index %d", models.ErrCorruptCycleTable, e.Token(), i)
		}
		seen[e.Token()] = true

		next := table[(i+1)%60]
		ns, ok := c.stemIdx[next.Stem]
		if !ok {
			return fmt.Errorf("%w: unknown stem %q at index %d", models.ErrCorruptCycleTable, next.Stem, (i+1)%60)
		}
		nb, ok := c.branchIdx[next.Branch]
		if !ok {
			return fmt.Errorf("%w: unknown branch %q at index %d", models.ErrCorruptCycleTable, next.Branch, (i+1)%60)
		}
		if ns != mod(s+1, 10) || nb != mod(b+1, 12) {
			return fmt.Errorf("%w: progression broken between index %d (%s) and %d (%s)",
				models.ErrCorruptCycleTable, i, e.Token(), (i+1)%60, next.Token())
		}
	}
	return nil
}

// Entries returns a copy of the full cycle in order.
func (c *SixtyJiaziCycle) Entries() []models.SixtyJiaziEntry {
	out := make([]models.SixtyJiaziEntry, 60)
	copy(out, c.entries[:])
	return out
}

func mod(a, m int) int {
	r := a % m
	if r < 0 {
		r += m
	}
	return r
}
