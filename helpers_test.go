// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.10.15
//

package goobserr_test

import (
	"testing"

	m "github.com/mkhts/goobserr"
	"github.com/stretchr/testify/require"
)

// newSpace builds an obs space with the correlation variable MetaData/height
// and the obs errors sd (location-major, one value per location and variable)
func newSpace(t *testing.T, vars []string, keys []int, height []float64, sd []float64) *m.MemObsSpace {
	t.Helper()
	space, err := m.NewMemObsSpace(len(height), vars, keys)
	require.NoError(t, err)
	require.NoError(t, space.PutDB("MetaData", "height", height))
	v := m.NewObsVector(len(height), vars)
	require.Len(t, sd, v.Size())
	copy(v.Data, sd)
	require.NoError(t, m.SaveObsVector(space, m.DefaultErrGrp, v))
	return space
}

func newParams(lscale float64) *m.Params {
	p := m.NewParams()
	p.CorrVar = "MetaData/height"
	p.Lscale = lscale
	return p
}

func ones(n int) []float64 {
	v := make([]float64, n)
	for i := range v {
		v[i] = 1
	}
	return v
}

// unit returns e_k as an obs vector shaped like like
func unit(like *m.ObsVector, k int) *m.ObsVector {
	e := m.NewObsVector(like.NLocs, like.Vars)
	e.Data[k] = 1
	return e
}
