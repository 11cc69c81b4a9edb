package seeder

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete seeder configuration
type Config struct {
	Version  string         `mapstructure:"version" yaml:"version"`
	Defaults DefaultsConfig `mapstructure:"defaults" yaml:"defaults"`
}

// DefaultsConfig holds default seeder settings
type DefaultsConfig struct {
	Count           int           `mapstructure:"count" yaml:"count"`
	Factories       []string      `mapstructure:"factories" yaml:"factories"`
	LinesPerFactory int           `mapstructure:"lines_per_factory" yaml:"lines_per_factory"`
	MachinesPerLine int           `mapstructure:"machines_per_line" yaml:"machines_per_line"`
	TimeSpread      time.Duration `mapstructure:"time_spread" yaml:"time_spread"`
	BatchSize       int           `mapstructure:"batch_size" yaml:"batch_size"`
	Interval        time.Duration `mapstructure:"interval" yaml:"interval"`
	// Ratios of generated events that resend an earlier event unchanged,
	// resend it with a changed payload, or break a validation rule.
	DuplicateRatio float64 `mapstructure:"duplicate_ratio" yaml:"duplicate_ratio"`
	UpdateRatio    float64 `mapstructure:"update_ratio" yaml:"update_ratio"`
	InvalidRatio   float64 `mapstructure:"invalid_ratio" yaml:"invalid_ratio"`
	// UnknownDefectRatio is the share of events reporting defectCount -1.
	UnknownDefectRatio float64 `mapstructure:"unknown_defect_ratio" yaml:"unknown_defect_ratio"`
	MaxDefects         int     `mapstructure:"max_defects" yaml:"max_defects"`
	// Seed of 0 picks a time-based seed.
	Seed int64 `mapstructure:"seed" yaml:"seed"`
}

// LoadConfig loads configuration with cascade: flags > ./seeder.yaml > ~/.lhawk/seeder.yaml > defaults
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Configure Viper
	v.SetConfigName("seeder")
	v.SetConfigType("yaml")
	v.SetEnvPrefix("SEEDER")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Config file search paths (in priority order)
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".lhawk"))
		}
	}

	// Read config file (optional - don't fail if not found)
	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("version", "1.0")

	v.SetDefault("defaults.count", 1000)
	v.SetDefault("defaults.factories", []string{"F01"})
	v.SetDefault("defaults.lines_per_factory", 4)
	v.SetDefault("defaults.machines_per_line", 5)
	v.SetDefault("defaults.time_spread", 24*time.Hour)
	v.SetDefault("defaults.batch_size", 100)
	v.SetDefault("defaults.interval", 0)
	v.SetDefault("defaults.duplicate_ratio", 0.1)
	v.SetDefault("defaults.update_ratio", 0.05)
	v.SetDefault("defaults.invalid_ratio", 0.02)
	v.SetDefault("defaults.unknown_defect_ratio", 0.03)
	v.SetDefault("defaults.max_defects", 10)
	v.SetDefault("defaults.seed", 0)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	d := c.Defaults
	if d.Count < 0 {
		return fmt.Errorf("count must not be negative")
	}
	if len(d.Factories) == 0 {
		return fmt.Errorf("at least one factory is required")
	}
	if d.LinesPerFactory < 1 || d.MachinesPerLine < 1 {
		return fmt.Errorf("lines_per_factory and machines_per_line must be at least 1")
	}
	if d.BatchSize < 1 {
		return fmt.Errorf("batch_size must be at least 1")
	}
	if d.MaxDefects < 0 {
		return fmt.Errorf("max_defects must not be negative")
	}
	for name, r := range map[string]float64{
		"duplicate_ratio":      d.DuplicateRatio,
		"update_ratio":         d.UpdateRatio,
		"invalid_ratio":        d.InvalidRatio,
		"unknown_defect_ratio": d.UnknownDefectRatio,
	} {
		if r < 0 || r > 1 {
			return fmt.Errorf("%s must be within [0, 1], got %v", name, r)
		}
	}
	if d.DuplicateRatio+d.UpdateRatio+d.InvalidRatio > 1 {
		return fmt.Errorf("duplicate_ratio + update_ratio + invalid_ratio must not exceed 1")
	}
	return nil
}
