// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.10.15
//

package goobserr_test

import (
	"math"
	"testing"

	m "github.com/mkhts/goobserr"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestBuildCorrBlocks_SymmetricUnitDiagonal(t *testing.T) {
	x := []float64{0, 1, 2, 5, 5.5, 7, 100}
	recs := m.PartitionRecords([]int{1, 1, 1, 2, 2, 2, 3})
	blocks := m.BuildCorrBlocks(recs, x, 2)
	require.Len(t, blocks, 3)
	for _, b := range blocks {
		n := b.Size()
		r, c := b.C.Dims()
		require.Equal(t, n, r)
		require.Equal(t, n, c)
		for i := range n {
			require.Equal(t, 1.0, b.C.At(i, i))
			for j := range n {
				require.Equal(t, b.C.At(i, j), b.C.At(j, i))
				require.Equal(t, m.GC99(x[b.Locs[i]]-x[b.Locs[j]], 2), b.C.At(i, j))
			}
		}
	}
	// Single location record is the 1x1 identity
	require.Equal(t, []int{6}, blocks[2].Locs)
	require.Equal(t, 1.0, blocks[2].C.At(0, 0))
}

func TestBuildCorrBlocks_MissingCoordinate(t *testing.T) {
	x := []float64{0, m.MissingValue, 2, math.NaN(), m.MissingValue}
	recs := m.PartitionRecords([]int{1, 1, 1, 2, 3})
	blocks := m.BuildCorrBlocks(recs, x, 2)
	require.Equal(t, []int{0, 2}, blocks[0].Locs)
	require.Equal(t, 2, blocks[0].Size())
	require.Equal(t, m.GC99(2, 2), blocks[0].C.At(0, 1))
	require.Zero(t, blocks[1].Size())
	require.Nil(t, blocks[1].C)
	require.Zero(t, blocks[2].Size())
	for _, b := range blocks {
		require.NoError(t, b.Factorize())
	}
}

func TestBuildCorrBlocks_Deterministic(t *testing.T) {
	x := []float64{0.3, 1.7, 2.9, 3.1, 0.05, 8, 8.5}
	keys := []int{2, 1, 2, 1, 2, 1, 1}
	b1 := m.BuildCorrBlocks(m.PartitionRecords(keys), x, 3.3)
	b2 := m.BuildCorrBlocks(m.PartitionRecords(keys), x, 3.3)
	require.Len(t, b2, len(b1))
	for i := range b1 {
		require.Equal(t, b1[i].Locs, b2[i].Locs)
		require.Equal(t, b1[i].C.RawSymmetric().Data, b2[i].C.RawSymmetric().Data)
	}
}

func TestCorrBlock_FactorizeAndSolve(t *testing.T) {
	x := []float64{0, 1, 2}
	b := m.BuildCorrBlocks(m.PartitionRecords([]int{0, 0, 0}), x, 2)[0]
	require.NoError(t, b.Factorize())

	// L L^T = C
	var LLt mat.Dense
	LLt.Mul(b.L, b.L.T())
	require.True(t, mat.EqualApprox(&LLt, b.C, 1e-14))

	// C^-1 C v = v
	v := []float64{0.5, -1.25, 3}
	w := append([]float64(nil), v...)
	b.MulVec(w)
	require.NoError(t, b.SolveVec(w))
	require.InDeltaSlice(t, v, w, 1e-12)
}

func TestCorrBlock_DuplicateLocationsAreSingular(t *testing.T) {
	x := []float64{0, 0, 1}
	b := m.BuildCorrBlocks(m.PartitionRecords([]int{5, 5, 5}), x, 2)[0]
	err := b.Factorize()
	require.ErrorIs(t, err, m.ErrSingularBlock)
}

func TestCovarianceToCorrelation(t *testing.T) {
	S := mat.NewSymDense(3, []float64{
		4, 1, 0,
		1, 9, -1.5,
		0, -1.5, 1,
	})
	C, err := m.CovarianceToCorrelation(S)
	require.NoError(t, err)
	want := mat.NewSymDense(3, []float64{
		1, 1.0 / 6, 0,
		1.0 / 6, 1, -0.5,
		0, -0.5, 1,
	})
	require.True(t, mat.EqualApprox(C, want, 1e-15))
	for i := range 3 {
		require.Equal(t, 1.0, C.At(i, i))
	}

	// Invalid variances and correlations
	_, err = m.CovarianceToCorrelation(mat.NewSymDense(2, []float64{1, 0, 0, 0}))
	require.ErrorIs(t, err, m.ErrConfiguration)
	_, err = m.CovarianceToCorrelation(mat.NewSymDense(2, []float64{1, 2, 2, 1}))
	require.ErrorIs(t, err, m.ErrConfiguration)
}

func TestCorrBlock_Sub(t *testing.T) {
	x := []float64{0, 1, 2, 3.5}
	b := m.BuildCorrBlocks(m.PartitionRecords([]int{1, 1, 1, 1}), x, 2)[0]
	require.NoError(t, b.Factorize())
	require.Same(t, b, must(b.Sub([]int{0, 1, 2, 3})))

	s, err := b.Sub([]int{0, 2, 3})
	require.NoError(t, err)
	require.Equal(t, []int{0, 2, 3}, s.Locs)
	require.Equal(t, b.C.At(0, 2), s.C.At(0, 1))
	require.Equal(t, b.C.At(2, 3), s.C.At(1, 2))
	require.Same(t, s, must(b.Sub([]int{0, 2, 3})))

	// The sub-block has its own factor
	v := []float64{1, -2, 0.5}
	w := append([]float64(nil), v...)
	s.MulVec(w)
	require.NoError(t, s.SolveVec(w))
	require.InDeltaSlice(t, v, w, 1e-12)
}

func TestCorrBlock_CovarianceToCorrelation(t *testing.T) {
	x := []float64{0, 0.7, 1.9}
	b := m.BuildCorrBlocks(m.PartitionRecords([]int{0, 0, 0}), x, 1.5)[0]
	S := b.Covariance([]float64{2, 0.5, 3})
	require.Equal(t, 4.0, S.At(0, 0))
	require.InDelta(t, 2*0.5*b.C.At(0, 1), S.At(0, 1), 1e-15)
	C, err := m.CovarianceToCorrelation(S)
	require.NoError(t, err)
	require.True(t, mat.EqualApprox(C, b.C, 1e-14))
}

func must(b *m.CorrBlock, err error) *m.CorrBlock {
	if err != nil {
		panic(err)
	}
	return b
}
