package services

import (
	"fmt"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/sajulab/ganzhi-engine/internal/config"
)

// Bootstrap verifies and loads every tabulated data source, resolves the
// configured rulesets, and constructs the engine. Any signature mismatch or
// malformed table aborts here: integrity failures are load-time fatal, never
// per-request.
func Bootstrap(cfg *config.Config, logger *logrus.Logger) (*PillarsEngine, error) {
	guard := NewPolicyGuard(logger)
	if cfg.Data.VerifySignatures {
		manifest, err := guard.LoadManifest(filepath.Join(cfg.Data.Dir, cfg.Data.ManifestFile))
		if err != nil {
			return nil, fmt.Errorf("loading dependency manifest: %w", err)
		}
		if err := guard.VerifyDir(manifest, cfg.Data.Dir); err != nil {
			return nil, fmt.Errorf("verifying tabulated data: %w", err)
		}
	}

	terms, err := LoadSolarTermTable(cfg.Data.Dir, logger)
	if err != nil {
		return nil, err
	}

	rulesets := make([]Ruleset, 0, len(cfg.Rulesets))
	for id, rc := range cfg.Rulesets {
		rs, err := NewRuleset(id, rc.DayBoundaryPolicy, rc.ZiCheckBasis, rc.MonthReference, rc.DeltaTMode, rc.LMTOffsetMinutes)
		if err != nil {
			return nil, err
		}
		rulesets = append(rulesets, rs)
	}
	return NewPillarsEngine(terms, rulesets, logger)
}
