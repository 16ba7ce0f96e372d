package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sajulab/ganzhi-engine/internal/config"
	"github.com/sajulab/ganzhi-engine/internal/logging"
	"github.com/sajulab/ganzhi-engine/internal/services"
)

var (
	cfg    *config.Config
	logger *logrus.Logger
)

var rootCmd = &cobra.Command{
	Use:   "ganzhi",
	Short: "Four-Pillars temporal resolution and pillar derivation engine",
	Long: `ganzhi converts a birth instant (local wall-clock time plus IANA timezone)
into the four stem-branch pillars of Four-Pillars reckoning, with a full
evidence trace of every decision: the timezone rule applied, the day-boundary
policy, the bounding solar term, and any delta-T advisories.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// .env is optional; real deployments configure via config.yaml or env.
		_ = godotenv.Load()
		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("loading configuration: %w", err)
		}
		logger = logging.New(cfg.LogLevel, cfg.Environment)
		return nil
	},
}

func buildEngine() (*services.PillarsEngine, error) {
	engine, err := services.Bootstrap(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("initializing engine: %w", err)
	}
	return engine, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
