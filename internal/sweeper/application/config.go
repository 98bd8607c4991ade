package application

import (
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config defines change timeout sweeper configuration.
type Config struct {
	TimeoutHours float64        `yaml:"timeout_hours"`
	BatchLimit   int            `yaml:"batch_limit"`
	Schedule     ScheduleConfig `yaml:"schedule"`
}

// ScheduleConfig defines how often the sweeper runs.
type ScheduleConfig struct {
	Enabled  *bool         `yaml:"enabled"`
	Interval time.Duration `yaml:"interval"`
}

// LoadConfig loads config from yaml or env.
func LoadConfig() (Config, error) {
	cfg := Config{
		TimeoutHours: getenvFloatDefault("SWEEPER_TIMEOUT_HOURS", DefaultTimeoutHours),
		BatchLimit:   getenvIntDefault("SWEEPER_BATCH_LIMIT", MaxBatchLimit),
	}

	if path := os.Getenv("SWEEPER_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	}

	if cfg.Schedule.Interval <= 0 {
		cfg.Schedule.Interval = getenvDurationDefault("SWEEPER_INTERVAL", 15*time.Minute)
	}
	if cfg.Schedule.Enabled == nil {
		enabled := getenvDefault("SWEEPER_ENABLED", "true") != "false"
		cfg.Schedule.Enabled = &enabled
	}
	cfg.TimeoutHours = configuredTimeout(cfg.TimeoutHours)
	cfg.BatchLimit = clampBatchLimit(cfg.BatchLimit)
	return cfg, nil
}

// ScheduleEnabled reports whether the periodic run is on.
func (c Config) ScheduleEnabled() bool {
	return c.Schedule.Enabled == nil || *c.Schedule.Enabled
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvIntDefault(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvFloatDefault(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvDurationDefault(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}
