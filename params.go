// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.10.15
//

package goobserr

import (
	"fmt"
	"io"
	"math"
	"strings"

	"gopkg.in/yaml.v3"
)

// Params contains the obs error covariance settings
type Params struct {
	Model    string   `yaml:"covariance model"`          // ModelCrossGroup or ModelDiagonal
	CorrVar  string   `yaml:"correlation variable name"` // Group/Name of the variable correlations are computed for (the obs grouping variable)
	Lscale   float64  `yaml:"correlation lengthscale"`   // Gaspari-Cohn lengthscale, same units as CorrVar
	Vars     []string `yaml:"variables"`                 // Correlated variables. Empty means all obs space variables
	ErrGroup string   `yaml:"obs error group"`           // Obs space group holding the initial stddev
	Seed     uint64   `yaml:"random seed"`               // Seed of the perturbation generator
	Workers  int      `yaml:"workers"`                   // Goroutines used for per-record work
}

// NewParams creates Params with default values
// The correlation variable and lengthscale have no defaults and must be given
func NewParams() *Params {
	return &Params{
		Model:    ModelCrossGroup,
		CorrVar:  "",
		Lscale:   0,
		Vars:     nil,
		ErrGroup: DefaultErrGrp,
		Seed:     DefaultSeed,
		Workers:  DefaultWorkers,
	}
}

// LoadParams reads Params from YAML. Keys not present keep their defaults.
func LoadParams(r io.Reader) (*Params, error) {
	p := NewParams()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(p); err != nil && err != io.EOF {
		return nil, fmt.Errorf("%w: %s", ErrConfiguration, err.Error())
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// Validate checks that the settings required by the selected model are present
func (p *Params) Validate() error {
	if p.ErrGroup == "" {
		return fmt.Errorf("%w: obs error group is empty", ErrConfiguration)
	}
	if p.Workers < 0 {
		return fmt.Errorf("%w: workers must not be negative (%d)", ErrConfiguration, p.Workers)
	}
	if p.Model == ModelDiagonal {
		return nil
	}
	if p.CorrVar == "" {
		return fmt.Errorf("%w: correlation variable name is required", ErrConfiguration)
	}
	if _, _, err := SplitVarName(p.CorrVar); err != nil {
		return err
	}
	if !(p.Lscale > 0) || math.IsInf(p.Lscale, 0) {
		return fmt.Errorf("%w: correlation lengthscale must be positive (%g)", ErrConfiguration, p.Lscale)
	}
	return nil
}

// SplitVarName splits "Group/Name" into its group and name
func SplitVarName(s string) (group, name string, err error) {
	group, name, ok := strings.Cut(s, "/")
	if !ok || group == "" || name == "" || strings.Contains(name, "/") {
		return "", "", fmt.Errorf("%w: variable %q is not of the form Group/Name", ErrConfiguration, s)
	}
	return group, name, nil
}
