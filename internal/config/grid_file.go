package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ducminhle1904/crypto-backtest-lab/internal/errors"
	"github.com/ducminhle1904/crypto-backtest-lab/pkg/types"
)

// GridFile is the YAML layout of a saved search space:
//
//	strategy: ema-crossover
//	capital: 100000
//	folds: 5
//	in_sample_ratio: 0.7
//	grid:
//	  short_window: [5, 9, 12]
//	  long_window: [21, 26, 30]
type GridFile struct {
	Strategy      string              `yaml:"strategy"`
	Symbol        string              `yaml:"symbol"`
	Capital       float64             `yaml:"capital"`
	Folds         int                 `yaml:"folds"`
	InSampleRatio float64             `yaml:"in_sample_ratio"`
	Grid          types.ParameterGrid `yaml:"grid"`
}

// LoadGridFile reads and validates a grid file
func LoadGridFile(path string) (*GridFile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewConfigError("config", "load_grid", "failed to read grid file %s: %v", path, err)
	}
	return ParseGridFile(raw)
}

// ParseGridFile decodes grid file contents
func ParseGridFile(raw []byte) (*GridFile, error) {
	var file GridFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, errors.NewConfigError("config", "load_grid", "invalid grid YAML: %v", err)
	}
	if file.Grid == nil {
		file.Grid = types.ParameterGrid{}
	}
	if err := file.Grid.Validate(); err != nil {
		return nil, errors.NewConfigError("config", "load_grid", "%v", err)
	}
	if file.Capital < 0 {
		return nil, errors.NewConfigError("config", "load_grid", "capital must not be negative, got %v", file.Capital)
	}
	return &file, nil
}

// SaveGridFile writes file as YAML to path
func SaveGridFile(path string, file *GridFile) error {
	raw, err := yaml.Marshal(file)
	if err != nil {
		return fmt.Errorf("failed to encode grid file: %w", err)
	}
	if err := os.WriteFile(path, raw, 0644); err != nil {
		return errors.NewStorageError("config", "save_grid", err)
	}
	return nil
}
