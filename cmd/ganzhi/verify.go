package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/sajulab/ganzhi-engine/internal/services"
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify tabulated data files against the signed dependency manifest",
	RunE: func(cmd *cobra.Command, args []string) error {
		guard := services.NewPolicyGuard(logger)
		manifest, err := guard.LoadManifest(filepath.Join(cfg.Data.Dir, cfg.Data.ManifestFile))
		if err != nil {
			return err
		}
		if err := guard.VerifyDir(manifest, cfg.Data.Dir); err != nil {
			return err
		}
		fmt.Printf("ok: %d dependencies verified (manifest %s)\n", len(manifest.Dependencies), manifest.Version)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(verifyCmd)
}
