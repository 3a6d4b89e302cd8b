package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/fd0/pdftables/extract"
	"gopkg.in/yaml.v2"
)

var ErrInvalidConfig = errors.New("invalid config")

// Validation modes for the pdfcpu preflight check.
const (
	ValidateNone    = "none"
	ValidateRelaxed = "relaxed"
	ValidateStrict  = "strict"
)

// Config is the configuration file for both commands.
type Config struct {
	Backend  string   `yaml:"backend"`
	Validate string   `yaml:"validate"`
	Pages    string   `yaml:"pages"`
	Detector Detector `yaml:"detector"`
	Batch    Batch    `yaml:"batch"`
}

// Detector configures the table detector of the tabula backend.
type Detector struct {
	Name               string  `yaml:"name"`
	MinRows            int     `yaml:"min_rows"`
	MinCols            int     `yaml:"min_cols"`
	MinConfidence      float64 `yaml:"min_confidence"`
	UseLines           bool    `yaml:"use_lines"`
	UseWhitespace      bool    `yaml:"use_whitespace"`
	MaxCellGap         float64 `yaml:"max_cell_gap"`
	AlignmentTolerance float64 `yaml:"alignment_tolerance"`
	DetectMergedCells  bool    `yaml:"detect_merged_cells"`
}

// Batch configures pdftables-batch.
type Batch struct {
	Jobs      int    `yaml:"jobs"`
	TargetDir string `yaml:"target_dir"`
	Force     bool   `yaml:"force"`
}

// Default returns the default configuration.
func Default() Config {
	return Config{
		Backend:  "tabula",
		Validate: ValidateNone,
		Detector: Detector{
			Name:               "geometric",
			MinRows:            2,
			MinCols:            2,
			MinConfidence:      0.5,
			UseLines:           true,
			UseWhitespace:      true,
			MaxCellGap:         5.0,
			AlignmentTolerance: 2.0,
			DetectMergedCells:  true,
		},
		Batch: Batch{
			Jobs:      4,
			TargetDir: "tables",
		},
	}
}

// Load reads the config from filename. Values not set in the file keep their
// defaults, unknown keys are rejected.
func Load(filename string) (Config, error) {
	buf, err := os.ReadFile(filename)
	if err != nil {
		return Config{}, fmt.Errorf("read config failed: %w", err)
	}

	cfg := Default()

	err = yaml.UnmarshalStrict(buf, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("load config failed: %w", err)
	}

	err = cfg.Validate()
	if err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Validate checks that all values are usable.
func (cfg Config) Validate() error {
	if cfg.Backend == "" {
		return fmt.Errorf("%w: backend not set", ErrInvalidConfig)
	}

	switch cfg.Validate {
	case ValidateNone, ValidateRelaxed, ValidateStrict:
	default:
		return fmt.Errorf("%w: unknown validation mode %q", ErrInvalidConfig, cfg.Validate)
	}

	_, err := extract.ParsePages(cfg.Pages)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	d := cfg.Detector
	if d.Name == "" {
		return fmt.Errorf("%w: detector name not set", ErrInvalidConfig)
	}

	if d.MinRows < 1 || d.MinCols < 1 {
		return fmt.Errorf("%w: detector needs at least one row and column", ErrInvalidConfig)
	}

	if d.MinConfidence < 0 || d.MinConfidence > 1 {
		return fmt.Errorf("%w: min_confidence %v not within [0, 1]", ErrInvalidConfig, d.MinConfidence)
	}

	if d.MaxCellGap < 0 || d.AlignmentTolerance < 0 {
		return fmt.Errorf("%w: negative detector distance", ErrInvalidConfig)
	}

	if cfg.Batch.Jobs < 1 {
		return fmt.Errorf("%w: jobs must be at least 1, got %d", ErrInvalidConfig, cfg.Batch.Jobs)
	}

	if cfg.Batch.TargetDir == "" {
		return fmt.Errorf("%w: batch target_dir not set", ErrInvalidConfig)
	}

	return nil
}

// PageSelection returns the parsed page selection.
func (cfg Config) PageSelection() (extract.PageSelection, error) {
	return extract.ParsePages(cfg.Pages)
}
