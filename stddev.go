// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.10.15
//

package goobserr

import (
	"sync"
)

// StdDevStore holds the obs error standard deviations (diagonal of D^{1/2}).
// The vector is only ever replaced as a whole.
type StdDevStore struct {
	mu sync.RWMutex
	v  *ObsVector
}

// NewStdDevStore creates the store with a copy of v
func NewStdDevStore(v *ObsVector) *StdDevStore {
	return &StdDevStore{v: v.Copy()}
}

// Update replaces all standard deviations. The stored values are unchanged on error.
func (p *StdDevStore) Update(v *ObsVector) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.v.CheckSize(v); err != nil {
		return err
	}
	p.v = v.Copy()
	return nil
}

// Values returns a copy of the standard deviations
func (p *StdDevStore) Values() *ObsVector {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.v.Copy()
}

// RMS returns the root mean square of the standard deviations
func (p *StdDevStore) RMS() float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.v.RMS()
}

// InverseVariance returns 1/stddev^2. Missing or zero stddev gives missing.
func (p *StdDevStore) InverseVariance() *ObsVector {
	p.mu.RLock()
	defer p.mu.RUnlock()
	iv := p.v.Copy()
	for i, s := range iv.Data {
		if IsMissing(s) || s == 0 {
			iv.Data[i] = MissingValue
		} else {
			iv.Data[i] = 1 / SQ(s)
		}
	}
	return iv
}

// Read calls f with the stored vector while holding the read lock,
// so that f never sees a half-updated vector. f must not modify or keep it.
func (p *StdDevStore) Read(f func(stddev *ObsVector) error) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return f(p.v)
}
