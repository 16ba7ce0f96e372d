package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Environment    string                   `mapstructure:"environment"`
	LogLevel       string                   `mapstructure:"log_level"`
	Data           DataConfig               `mapstructure:"data"`
	DefaultRuleset string                   `mapstructure:"default_ruleset"`
	Rulesets       map[string]RulesetConfig `mapstructure:"rulesets"`
}

type DataConfig struct {
	Dir              string `mapstructure:"dir"`
	ManifestFile     string `mapstructure:"manifest_file"`
	VerifySignatures bool   `mapstructure:"verify_signatures"`
}

// RulesetConfig is one named policy bundle. Every ruleset is validated when
// the engine is constructed; there is no runtime probing for policy files.
type RulesetConfig struct {
	DayBoundaryPolicy string `mapstructure:"day_boundary_policy"`
	ZiCheckBasis      string `mapstructure:"zi_check_basis"`
	LMTOffsetMinutes  int    `mapstructure:"lmt_offset_minutes"`
	MonthReference    string `mapstructure:"month_reference"`
	DeltaTMode        string `mapstructure:"delta_t_mode"`
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath(".")

	// Set default values
	setDefaults()

	// Enable environment variable support
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Read config file
	if err := viper.ReadInConfig(); err != nil {
		// Config file not found, use defaults and environment variables
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	config.Environment = strings.ToLower(config.Environment)

	if config.Data.Dir == "" {
		return nil, fmt.Errorf("data.dir must point at the solar term tables")
	}
	if len(config.Rulesets) == 0 {
		return nil, fmt.Errorf("at least one ruleset must be configured")
	}
	if _, err := config.Ruleset(config.DefaultRuleset); err != nil {
		return nil, fmt.Errorf("default ruleset: %w", err)
	}
	return &config, nil
}

// Ruleset looks up a ruleset by id. Viper lowercases map keys, so the match
// is case-insensitive.
func (c *Config) Ruleset(id string) (RulesetConfig, error) {
	if rs, ok := c.Rulesets[id]; ok {
		return rs, nil
	}
	for name, rs := range c.Rulesets {
		if strings.EqualFold(name, id) {
			return rs, nil
		}
	}
	return RulesetConfig{}, fmt.Errorf("unknown ruleset %q", id)
}

func setDefaults() {
	// Environment
	viper.SetDefault("environment", "development")
	viper.SetDefault("log_level", "info")

	// Data tables
	viper.SetDefault("data.dir", "./data")
	viper.SetDefault("data.manifest_file", "manifest.yaml")
	viper.SetDefault("data.verify_signatures", true)

	// Rulesets
	viper.SetDefault("default_ruleset", "KR_classic_v1.4")
	viper.SetDefault("rulesets", map[string]interface{}{
		"KR_classic_v1.4": map[string]interface{}{
			"day_boundary_policy": "traditional_zi",
			"zi_check_basis":      "post_lmt",
			"lmt_offset_minutes":  -32,
			"month_reference":     "jie",
			"delta_t_mode":        "standard",
		},
		"civil_v1.0": map[string]interface{}{
			"day_boundary_policy": "civil_midnight",
			"zi_check_basis":      "post_lmt",
			"lmt_offset_minutes":  0,
			"month_reference":     "jie",
			"delta_t_mode":        "standard",
		},
	})
}
