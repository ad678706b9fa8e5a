// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.10.15
//

package goobserr_test

import (
	"strings"
	"testing"

	m "github.com/mkhts/goobserr"
	"github.com/stretchr/testify/require"
)

func TestLoadParams(t *testing.T) {
	p, err := m.LoadParams(strings.NewReader(`
correlation variable name: MetaData/air_pressure
correlation lengthscale: 2500.0
variables: [airTemperature]
random seed: 42
`))
	require.NoError(t, err)
	require.Equal(t, m.ModelCrossGroup, p.Model)
	require.Equal(t, "MetaData/air_pressure", p.CorrVar)
	require.Equal(t, 2500.0, p.Lscale)
	require.Equal(t, []string{"airTemperature"}, p.Vars)
	require.Equal(t, uint64(42), p.Seed)
	require.Equal(t, m.DefaultErrGrp, p.ErrGroup)
	require.Equal(t, m.DefaultWorkers, p.Workers)
}

func TestLoadParams_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"empty", ``},
		{"no lengthscale", `correlation variable name: MetaData/height`},
		{"no variable", `correlation lengthscale: 1.0`},
		{"zero lengthscale", "correlation variable name: MetaData/height\ncorrelation lengthscale: 0"},
		{"negative lengthscale", "correlation variable name: MetaData/height\ncorrelation lengthscale: -3"},
		{"not group/name", "correlation variable name: height\ncorrelation lengthscale: 1"},
		{"unknown key", "correlation variable name: MetaData/height\ncorrelation lengthscale: 1\nlength scale: 2"},
		{"negative workers", "correlation variable name: MetaData/height\ncorrelation lengthscale: 1\nworkers: -1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.LoadParams(strings.NewReader(tt.yaml))
			require.ErrorIs(t, err, m.ErrConfiguration)
		})
	}
}

func TestParams_DiagonalNeedsNoCorrelation(t *testing.T) {
	p, err := m.LoadParams(strings.NewReader(`covariance model: diagonal`))
	require.NoError(t, err)
	require.Equal(t, m.ModelDiagonal, p.Model)
}

func TestSplitVarName(t *testing.T) {
	g, n, err := m.SplitVarName("MetaData/height")
	require.NoError(t, err)
	require.Equal(t, "MetaData", g)
	require.Equal(t, "height", n)

	for _, s := range []string{"", "height", "/height", "MetaData/", "a/b/c"} {
		_, _, err := m.SplitVarName(s)
		require.ErrorIs(t, err, m.ErrConfiguration, s)
	}
}
