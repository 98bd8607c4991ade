package application

import (
	"fmt"
	"os"

	pipeline "frostguard/internal/pipeline/domain"

	"gopkg.in/yaml.v3"
)

// Config defines pipeline health thresholds.
type Config struct {
	Thresholds pipeline.Thresholds `yaml:"thresholds"`
}

// LoadConfig loads thresholds from PIPELINE_CONFIG, merged over the defaults.
func LoadConfig() (Config, error) {
	cfg := Config{Thresholds: pipeline.DefaultThresholds()}
	path := os.Getenv("PIPELINE_CONFIG")
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	var file Config
	if err := yaml.Unmarshal(data, &file); err != nil {
		return cfg, err
	}
	for layer, th := range file.Thresholds {
		if !knownLayer(layer) {
			return cfg, fmt.Errorf("pipeline: unknown layer %q in config", layer)
		}
		if !th.Valid() {
			return cfg, fmt.Errorf("pipeline: invalid thresholds for %s", layer)
		}
		cfg.Thresholds[layer] = th
	}
	return cfg, nil
}

func knownLayer(layer pipeline.Layer) bool {
	for _, l := range pipeline.AllLayers {
		if l == layer {
			return true
		}
	}
	return false
}
