// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.10.15
//

// Observation space: storage of per-location columns and record grouping.

package goobserr

import (
	"fmt"
	"io"
	"sync"

	"golang.org/x/exp/slices"
	"gopkg.in/yaml.v3"
)

// ObsSpace is the storage the covariance models read their inputs from and save to
type ObsSpace interface {
	NLocs() int                                  // Number of locations
	ObsVariables() []string                      // Observed variables, in obs vector order
	RecordKeys() []int                           // Grouping key of each location
	GetDB(group, name string) ([]float64, error) // One value per location
	PutDB(group, name string, v []float64) error // One value per location
}

// ReadObsVector reads one column per obs variable from group
func ReadObsVector(space ObsSpace, group string) (*ObsVector, error) {
	v := NewObsVector(space.NLocs(), space.ObsVariables())
	for jvar, name := range v.Vars {
		c, err := space.GetDB(group, name)
		if err != nil {
			return nil, err
		}
		v.SetColumn(jvar, c)
	}
	return v, nil
}

// SaveObsVector writes one column per obs variable to group
func SaveObsVector(space ObsSpace, group string, v *ObsVector) error {
	if v.NLocs != space.NLocs() || !slices.Equal(v.Vars, space.ObsVariables()) {
		return fmt.Errorf("%w: vector (%d locs, %v) does not match obs space (%d locs, %v)",
			ErrSizeMismatch, v.NLocs, v.Vars, space.NLocs(), space.ObsVariables())
	}
	for jvar, name := range v.Vars {
		if err := space.PutDB(group, name, v.Column(jvar)); err != nil {
			return err
		}
	}
	return nil
}

// MemObsSpace is an in-memory ObsSpace that can be read from and written to YAML
type MemObsSpace struct {
	mu    sync.RWMutex
	nlocs int
	vars  []string
	keys  []int
	db    map[string]map[string][]float64
}

// NewMemObsSpace creates an empty obs space
// If keys is nil every location is its own record
func NewMemObsSpace(nlocs int, vars []string, keys []int) (*MemObsSpace, error) {
	if nlocs < 0 {
		return nil, fmt.Errorf("invalid number of locations: %d", nlocs)
	}
	if keys == nil {
		keys = make([]int, nlocs)
		for i := range keys {
			keys[i] = i
		}
	}
	if len(keys) != nlocs {
		return nil, fmt.Errorf("%w: %d record keys for %d locations", ErrSizeMismatch, len(keys), nlocs)
	}
	return &MemObsSpace{
		nlocs: nlocs,
		vars:  append([]string(nil), vars...),
		keys:  append([]int(nil), keys...),
		db:    map[string]map[string][]float64{},
	}, nil
}

func (p *MemObsSpace) NLocs() int {
	return p.nlocs
}

func (p *MemObsSpace) ObsVariables() []string {
	return append([]string(nil), p.vars...)
}

func (p *MemObsSpace) RecordKeys() []int {
	return append([]int(nil), p.keys...)
}

func (p *MemObsSpace) GetDB(group, name string) ([]float64, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	v, ok := p.db[group][name]
	if !ok {
		return nil, fmt.Errorf("variable %s/%s not found in obs space", group, name)
	}
	return append([]float64(nil), v...), nil
}

func (p *MemObsSpace) PutDB(group, name string, v []float64) error {
	if len(v) != p.nlocs {
		return fmt.Errorf("%w: %s/%s has %d values for %d locations", ErrSizeMismatch, group, name, len(v), p.nlocs)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.db[group] == nil {
		p.db[group] = map[string][]float64{}
	}
	p.db[group][name] = append([]float64(nil), v...)
	return nil
}

// Has reports whether group/name is stored
func (p *MemObsSpace) Has(group, name string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.db[group][name]
	return ok
}

// ------------------------------------
// YAML file format
// ------------------------------------
//
//	locations: 5
//	variables: [airTemperature]
//	record keys: [1, 1, 1, 2, 2]
//	groups:
//	  MetaData:
//	    air_pressure: [100000, 92500, 85000, null, 50000]
//	  ObsError:
//	    airTemperature: [1.2, 1.1, 1.0, 0.9, 0.8]
//
// null is a missing value.

type obsFile struct {
	Locations  int                              `yaml:"locations"`
	Variables  []string                         `yaml:"variables"`
	RecordKeys []int                            `yaml:"record keys,omitempty"`
	Groups     map[string]map[string][]*float64 `yaml:"groups"`
}

// ReadObsSpace reads an obs space from YAML
func ReadObsSpace(r io.Reader) (*MemObsSpace, error) {
	var f obsFile
	if err := yaml.NewDecoder(r).Decode(&f); err != nil {
		return nil, fmt.Errorf("failed to decode obs file: %w", err)
	}
	p, err := NewMemObsSpace(f.Locations, f.Variables, f.RecordKeys)
	if err != nil {
		return nil, err
	}
	for group, cols := range f.Groups {
		for name, c := range cols {
			v := make([]float64, len(c))
			for i, x := range c {
				if x == nil {
					v[i] = MissingValue
				} else {
					v[i] = *x
				}
			}
			if err := p.PutDB(group, name, v); err != nil {
				return nil, err
			}
		}
	}
	return p, nil
}

// Write writes the obs space as YAML
func (p *MemObsSpace) Write(w io.Writer) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	f := obsFile{
		Locations:  p.nlocs,
		Variables:  p.vars,
		RecordKeys: p.keys,
		Groups:     map[string]map[string][]*float64{},
	}
	for group, cols := range p.db {
		f.Groups[group] = map[string][]*float64{}
		for name, c := range cols {
			v := make([]*float64, len(c))
			for i := range c {
				if !IsMissing(c[i]) {
					v[i] = &c[i]
				}
			}
			f.Groups[group][name] = v
		}
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(&f); err != nil {
		return fmt.Errorf("failed to encode obs file: %w", err)
	}
	return enc.Close()
}

// Groups returns the stored group names, sorted
func (p *MemObsSpace) Groups() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	gs := make([]string, 0, len(p.db))
	for g := range p.db {
		gs = append(gs, g)
	}
	slices.Sort(gs)
	return gs
}
