package hubminer

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/datapoet/hubminer-sub001/fold"
	"github.com/datapoet/hubminer-sub001/secondary"
	"github.com/datapoet/hubminer-sub001/selection"
)

// fileConfig is the YAML experiment document mapped onto Settings.
type fileConfig struct {
	Times    int `yaml:"times"`
	NumFolds int `yaml:"num_folds"`

	K           int `yaml:"k"`
	KMax        int `yaml:"k_max"`
	GraphMargin int `yaml:"graph_margin"`

	Approximate bool    `yaml:"approximate"`
	Quality     float64 `yaml:"quality"`

	Secondary struct {
		Mode string `yaml:"mode"`
		K    int    `yaml:"k"`
	} `yaml:"secondary"`

	Selection struct {
		Selector string  `yaml:"selector"`
		Rate     float64 `yaml:"rate"`
		Hubness  string  `yaml:"hubness"` // "unbiased" (default) or "biased"
	} `yaml:"selection"`

	Workers   int    `yaml:"workers"`
	Seed      int64  `yaml:"seed"`
	FoldsFile string `yaml:"folds_file"`
}

// LoadSettings reads a YAML experiment configuration into Settings. The
// logger and any external test labels are attached by the caller.
func LoadSettings(path string) (*Settings, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("hubminer: config: %w", err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(raw, &fc); err != nil {
		return nil, fmt.Errorf("hubminer: config: %w", err)
	}

	s := &Settings{
		Times:         fc.Times,
		NumFolds:      fc.NumFolds,
		K:             fc.K,
		KMax:          fc.KMax,
		GraphMargin:   fc.GraphMargin,
		Approximate:   fc.Approximate,
		Quality:       fc.Quality,
		SecondaryK:    fc.Secondary.K,
		SelectionRate: fc.Selection.Rate,
		Workers:       fc.Workers,
		Seed:          fc.Seed,
	}

	if fc.Secondary.Mode != "" {
		sk := fc.Secondary.K
		if sk <= 0 {
			sk = s.effectiveK()
		}
		tr, err := secondary.ForMode(fc.Secondary.Mode, sk)
		if err != nil {
			return nil, fmt.Errorf("hubminer: config: %q: %w", fc.Secondary.Mode, err)
		}
		s.Secondary = tr
	}

	if fc.Selection.Selector != "" {
		sel, err := selection.ForName(fc.Selection.Selector, fc.Seed)
		if err != nil {
			return nil, fmt.Errorf("hubminer: config: %q: %w", fc.Selection.Selector, err)
		}
		s.Selector = sel
		switch fc.Selection.Hubness {
		case "", "unbiased":
			s.HubnessMode = selection.ProtoUnbiased
		case "biased":
			s.HubnessMode = selection.ProtoBiased
		default:
			return nil, fmt.Errorf("hubminer: config: unknown hubness mode %q", fc.Selection.Hubness)
		}
	}

	if fc.FoldsFile != "" {
		a, err := fold.LoadFile(fc.FoldsFile)
		if err != nil {
			return nil, err
		}
		s.Folds = a
	}
	return s, nil
}
