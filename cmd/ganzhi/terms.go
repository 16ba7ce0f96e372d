package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/sajulab/ganzhi-engine/internal/models"
	"github.com/sajulab/ganzhi-engine/internal/services"
)

var termsYear int

var termsCmd = &cobra.Command{
	Use:   "terms",
	Short: "Dump the 24 solar term instants for a year",
	RunE: func(cmd *cobra.Command, args []string) error {
		table, err := services.LoadSolarTermTable(cfg.Data.Dir, logger)
		if err != nil {
			return err
		}
		entries := make([]models.SolarTermEntry, 0, len(services.TermNames))
		for _, term := range services.TermNames {
			e, err := table.TermInstant(term, termsYear)
			if err != nil {
				return err
			}
			entries = append(entries, e)
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	},
}

func init() {
	termsCmd.Flags().IntVar(&termsYear, "year", 0, "calendar year (required)")
	_ = termsCmd.MarkFlagRequired("year")
	rootCmd.AddCommand(termsCmd)
}
