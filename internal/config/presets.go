package config

import (
	"sort"

	"github.com/san-kum/picascade/internal/plant"
)

var presets = map[string]map[string]func() *Config{
	"battery": {
		"cc-cv": DefaultConfig,
		"deep": func() *Config {
			cfg := DefaultConfig()
			cfg.Battery.InitialSoC = 0.1
			cfg.Duration = 120
			return cfg
		},
		"noisy": func() *Config {
			cfg := DefaultConfig()
			cfg.Noise = 0.02
			cfg.Seed = 42
			return cfg
		},
		"cascade": func() *Config {
			cfg := DefaultConfig()
			cfg.Controller = "cascade"
			return cfg
		},
		"open": func() *Config {
			cfg := DefaultConfig()
			cfg.Controller = "open"
			cfg.OpenLoop = []float64{50}
			cfg.Duration = 10
			return cfg
		},
	},
	"load": {
		"step": func() *Config {
			cfg := DefaultConfig()
			cfg.Plant = "load"
			cfg.Controller = "pi"
			cfg.Duration = 10
			cfg.Load = plant.DefaultLoadParams()
			cfg.Stages = []StageConfig{
				{Name: "load", Kp: 0.5, Ki: 0.01, Lower: -10, Upper: 10, Reference: 1},
			}
			return cfg
		},
		"saturating": func() *Config {
			cfg := DefaultConfig()
			cfg.Plant = "load"
			cfg.Controller = "pi"
			cfg.Duration = 10
			cfg.Load = plant.DefaultLoadParams()
			cfg.Stages = []StageConfig{
				{Name: "load", Kp: 2, Ki: 0.05, Lower: 0, Upper: 1.5, Reference: 3},
			}
			return cfg
		},
	},
}

// GetPreset returns a fresh copy of the named preset, or nil.
func GetPreset(plantName, preset string) *Config {
	plantPresets, ok := presets[plantName]
	if !ok {
		return nil
	}
	build, ok := plantPresets[preset]
	if !ok {
		return nil
	}
	return build()
}

func ListPresets(plantName string) []string {
	plantPresets, ok := presets[plantName]
	if !ok {
		return nil
	}
	names := make([]string, 0, len(plantPresets))
	for name := range plantPresets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
