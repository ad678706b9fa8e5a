// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.10.15
//

package goobserr

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/floats"
)

// ObsVector holds one value per observation, i.e. per (location, variable) pair.
// Values are stored location-major: index = loc*NVars() + jvar
type ObsVector struct {
	NLocs int       // Number of locations
	Vars  []string  // Observed variables
	Data  []float64 // Values (MissingValue where not available)
}

// NewObsVector creates a zero-filled observation vector
func NewObsVector(nlocs int, vars []string) *ObsVector {
	return &ObsVector{
		NLocs: nlocs,
		Vars:  append([]string(nil), vars...),
		Data:  make([]float64, nlocs*len(vars)),
	}
}

// NVars returns the number of variables
func (p *ObsVector) NVars() int {
	return len(p.Vars)
}

// Size returns the number of observations (including missing ones)
func (p *ObsVector) Size() int {
	return len(p.Data)
}

// Index returns the observation index of variable jvar at location loc
func (p *ObsVector) Index(loc, jvar int) int {
	return loc*len(p.Vars) + jvar
}

// Copy returns a deep copy
func (p *ObsVector) Copy() *ObsVector {
	q := NewObsVector(p.NLocs, p.Vars)
	copy(q.Data, p.Data)
	return q
}

// CheckSize fails with ErrSizeMismatch unless q has the same shape as p
func (p *ObsVector) CheckSize(q *ObsVector) error {
	if q == nil {
		return fmt.Errorf("%w: nil observation vector", ErrSizeMismatch)
	}
	if p.NLocs != q.NLocs || p.NVars() != q.NVars() || p.Size() != q.Size() {
		return fmt.Errorf("%w: expected %d locs x %d vars (%d), got %d locs x %d vars (%d)",
			ErrSizeMismatch, p.NLocs, p.NVars(), p.Size(), q.NLocs, q.NVars(), q.Size())
	}
	return nil
}

// Mul multiplies p by q elementwise. Missing in either operand gives missing.
func (p *ObsVector) Mul(q *ObsVector) {
	for i, v := range q.Data {
		if IsMissing(p.Data[i]) || IsMissing(v) {
			p.Data[i] = MissingValue
		} else {
			p.Data[i] *= v
		}
	}
}

// Div divides p by q elementwise. Missing in either operand or a zero divisor gives missing.
func (p *ObsVector) Div(q *ObsVector) {
	for i, v := range q.Data {
		if IsMissing(p.Data[i]) || IsMissing(v) || v == 0 {
			p.Data[i] = MissingValue
		} else {
			p.Data[i] /= v
		}
	}
}

// Column returns the values of variable jvar at every location
func (p *ObsVector) Column(jvar int) []float64 {
	c := make([]float64, p.NLocs)
	for loc := range p.NLocs {
		c[loc] = p.Data[p.Index(loc, jvar)]
	}
	return c
}

// SetColumn overwrites the values of variable jvar
func (p *ObsVector) SetColumn(jvar int, c []float64) {
	for loc := range p.NLocs {
		p.Data[p.Index(loc, jvar)] = c[loc]
	}
}

// NObs returns the number of non-missing values
func (p *ObsVector) NObs() int {
	n := 0
	for _, v := range p.Data {
		if !IsMissing(v) {
			n++
		}
	}
	return n
}

// RMS returns the root mean square of non-missing values (0 if there are none)
func (p *ObsVector) RMS() float64 {
	v := make([]float64, 0, len(p.Data))
	for _, x := range p.Data {
		if !IsMissing(x) {
			v = append(v, x)
		}
	}
	if len(v) == 0 {
		return 0
	}
	return floats.Norm(v, 2) / math.Sqrt(float64(len(v)))
}

func (p *ObsVector) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "ObsVector: nlocs=%d, vars=%v, nobs=%d, rms=%.6g\n", p.NLocs, p.Vars, p.NObs(), p.RMS())
	return sb.String()
}
