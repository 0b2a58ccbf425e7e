package tuning

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Tuning struct {
	WorldID string `yaml:"world_id"`

	Seed         int64 `yaml:"seed"`
	ChunkSize    int   `yaml:"chunk_size"`
	ChunkVersion int   `yaml:"chunk_version"`

	RulesetPath string `yaml:"ruleset_path"`
	DataDir     string `yaml:"data_dir"`
	ListenAddr  string `yaml:"listen_addr"`

	GenerationLog bool `yaml:"generation_log"`
}

func Load(path string) (Tuning, error) {
	var t Tuning
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func (t Tuning) Validate() error {
	if t.ChunkSize < 2 {
		return fmt.Errorf("chunk_size must be at least 2, got %d", t.ChunkSize)
	}
	if t.ChunkVersion < 1 {
		return fmt.Errorf("chunk_version must be at least 1, got %d", t.ChunkVersion)
	}
	if t.RulesetPath == "" {
		return fmt.Errorf("ruleset_path is required")
	}
	return nil
}
