// Package runconfig loads the optional scripted-run file that bundles a
// whole simulation's flags together, so a CLI invocation can pass
// --config run.yaml instead of repeating world/worker flags on every
// invocation across a fleet. Grounded on config/config.go's
// Load/Save/Path pattern (a plain YAML file under a fixed path, loaded
// once per process).
package runconfig

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// WorldParams mirrors the negotiable fields of protocol.UniverseParameters,
// expressed as a scripted-run file's plain-YAML surface.
type WorldParams struct {
	WorldSize       int32 `yaml:"world_size"`
	RobotRange      int32 `yaml:"robot_range"`
	NumUpdates      int32 `yaml:"num_updates"`
	NumBlocks       int32 `yaml:"num_blocks"`
	VisualizationOn bool  `yaml:"visualization_on"`
	FOVDegrees      int32 `yaml:"fov_degrees"`
	InvertDirection bool  `yaml:"invert_direction"`
	Population      int32 `yaml:"population"`
	DebugOn         bool  `yaml:"debug_on"`
}

// Config is the scripted-run file's top-level shape.
type Config struct {
	World      WorldParams `yaml:"world"`
	NumWorkers int32       `yaml:"num_workers"`
	BasePort   int32       `yaml:"base_port"`
	DumpPath   string      `yaml:"dump_path,omitempty"`
}

// Load reads and parses a scripted-run file from path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read run config %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse run config %s: %w", path, err)
	}
	return &cfg, nil
}

// Save writes cfg to path as YAML, creating or truncating the file.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal run config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write run config %s: %w", path, err)
	}
	return nil
}
