package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/sajulab/ganzhi-engine/internal/models"
)

var (
	computeTime    string
	computeTZ      string
	computeRuleset string
)

var computeCmd = &cobra.Command{
	Use:   "compute",
	Short: "Derive the four pillars for a local birth instant",
	Example: `  ganzhi compute --time 1992-07-15T23:40:00 --tz Asia/Seoul
  ganzhi compute --time 2000-09-14T00:30:00 --tz Asia/Seoul --ruleset KR_classic_v1.4`,
	RunE: runCompute,
}

func init() {
	computeCmd.Flags().StringVar(&computeTime, "time", "", "naive local date-time, e.g. 1992-07-15T23:40:00 (required)")
	computeCmd.Flags().StringVar(&computeTZ, "tz", "", "IANA timezone identifier, e.g. Asia/Seoul (required)")
	computeCmd.Flags().StringVar(&computeRuleset, "ruleset", "", "ruleset id (default: configured default)")
	_ = computeCmd.MarkFlagRequired("time")
	_ = computeCmd.MarkFlagRequired("tz")
	rootCmd.AddCommand(computeCmd)
}

func runCompute(cmd *cobra.Command, args []string) error {
	// Parsed without a location: the input is a naive wall clock by contract.
	t, err := time.Parse("2006-01-02T15:04:05", computeTime)
	if err != nil {
		return fmt.Errorf("invalid --time %q (want YYYY-MM-DDTHH:MM:SS): %w", computeTime, err)
	}
	req := models.LocalTimeRequest{
		Year:     t.Year(),
		Month:    int(t.Month()),
		Day:      t.Day(),
		Hour:     t.Hour(),
		Minute:   t.Minute(),
		Second:   t.Second(),
		Timezone: computeTZ,
	}

	ruleset := computeRuleset
	if ruleset == "" {
		ruleset = cfg.DefaultRuleset
	}

	engine, err := buildEngine()
	if err != nil {
		return err
	}
	pillars, trace, err := engine.Compute(req, ruleset)
	if err != nil {
		return err
	}

	out := struct {
		Pillars models.PillarSet     `json:"pillars"`
		Trace   models.EvidenceTrace `json:"trace"`
	}{pillars, trace}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
