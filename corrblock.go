// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.10.15
//

// Builds the per-record correlation matrices C and their Cholesky factors.

package goobserr

import (
	"fmt"
	"math"
	"sync"

	"gonum.org/v1/gonum/mat"
)

// CorrBlock is the correlation matrix of the locations of one record
type CorrBlock struct {
	Key  int           // Record key
	Locs []int         // Locations in the block (those with the correlation variable available)
	C    *mat.SymDense // Correlations, nil for an empty block
	chol mat.Cholesky  // C = L L^T
	L    *mat.TriDense // Lower Cholesky factor

	subMu sync.Mutex
	subs  map[string]*CorrBlock // Factorized sub-blocks by present-location pattern
}

// BuildCorrBlocks computes C_ij = GC99(x_i - x_j, lscale) for the locations of each record,
// where x is the correlation variable (one value per location).
// Locations where x is missing are left out of the block and are treated as uncorrelated.
func BuildCorrBlocks(recs []Record, x []float64, lscale float64) []*CorrBlock {
	blocks := make([]*CorrBlock, len(recs))
	for i, rec := range recs {
		b := &CorrBlock{Key: rec.Key}
		for _, loc := range rec.Locs {
			if !IsMissing(x[loc]) && !math.IsNaN(x[loc]) {
				b.Locs = append(b.Locs, loc)
			}
		}
		n := len(b.Locs)
		if n > 0 {
			b.C = mat.NewSymDense(n, nil)
			for j := range n {
				b.C.SetSym(j, j, 1.0)
				for k := j + 1; k < n; k++ {
					b.C.SetSym(j, k, GC99(x[b.Locs[j]]-x[b.Locs[k]], lscale))
				}
			}
		}
		blocks[i] = b
	}
	return blocks
}

// Size returns the number of locations in the block
func (b *CorrBlock) Size() int {
	return len(b.Locs)
}

// Factorize computes the Cholesky factor of C.
// A correlation matrix that is not positive definite within MaxBlockCond is an error,
// it is never regularized.
func (b *CorrBlock) Factorize() error {
	if b.Size() == 0 {
		return nil
	}
	if ok := b.chol.Factorize(b.C); !ok {
		return fmt.Errorf("%w: record %d (%d locations) is not positive definite", ErrSingularBlock, b.Key, b.Size())
	}
	if cond := b.chol.Cond(); cond > MaxBlockCond {
		return fmt.Errorf("%w: record %d (%d locations) has condition number %g > %g", ErrSingularBlock, b.Key, b.Size(), cond, MaxBlockCond)
	}
	b.L = mat.NewTriDense(b.Size(), mat.Lower, nil)
	b.chol.LTo(b.L)
	return nil
}

// MulVec sets x <- C x
func (b *CorrBlock) MulVec(x []float64) {
	var r mat.VecDense
	r.MulVec(b.C, mat.NewVecDense(len(x), x))
	copy(x, r.RawVector().Data)
}

// SolveVec sets x <- C^-1 x using the Cholesky factor
func (b *CorrBlock) SolveVec(x []float64) error {
	var r mat.VecDense
	if err := b.chol.SolveVecTo(&r, mat.NewVecDense(len(x), x)); err != nil {
		return fmt.Errorf("%w: record %d: %s", ErrSingularBlock, b.Key, err.Error())
	}
	copy(x, r.RawVector().Data)
	return nil
}

// SqrtMulVec sets x <- L x, so that L z has covariance C for z ~ N(0, I)
func (b *CorrBlock) SqrtMulVec(x []float64) {
	var r mat.VecDense
	r.MulVec(b.L, mat.NewVecDense(len(x), x))
	copy(x, r.RawVector().Data)
}

// Sub returns the block restricted to the local indices idx (ascending), factorized.
// The principal sub-block of a positive definite C is positive definite with a
// condition number no larger than that of C. Sub-blocks are cached by idx.
func (b *CorrBlock) Sub(idx []int) (*CorrBlock, error) {
	if len(idx) == b.Size() {
		return b, nil
	}
	key := fmt.Sprint(idx)
	b.subMu.Lock()
	defer b.subMu.Unlock()
	if s, ok := b.subs[key]; ok {
		return s, nil
	}
	s := &CorrBlock{Key: b.Key, Locs: make([]int, len(idx))}
	if len(idx) > 0 {
		s.C = mat.NewSymDense(len(idx), nil)
		for i, p := range idx {
			s.Locs[i] = b.Locs[p]
			for j := i; j < len(idx); j++ {
				s.C.SetSym(i, j, b.C.At(p, idx[j]))
			}
		}
		if err := s.Factorize(); err != nil {
			return nil, err
		}
	}
	if b.subs == nil {
		b.subs = map[string]*CorrBlock{}
	}
	b.subs[key] = s
	return s, nil
}

// Covariance returns S_ij = sd_i C_ij sd_j for the standard deviations sd of the block locations
func (b *CorrBlock) Covariance(sd []float64) *mat.SymDense {
	n := b.Size()
	S := mat.NewSymDense(n, nil)
	for i := range n {
		for j := i; j < n; j++ {
			S.SetSym(i, j, sd[i]*b.C.At(i, j)*sd[j])
		}
	}
	return S
}

// CovarianceToCorrelation converts a covariance matrix S to correlations
// C_ij = S_ij / sqrt(S_ii S_jj). The diagonal of the result is exactly 1.
// Every variance must be positive.
func CovarianceToCorrelation(S mat.Symmetric) (*mat.SymDense, error) {
	n := S.SymmetricDim()
	sd := make([]float64, n)
	for i := range n {
		v := S.At(i, i)
		if !(v > 0) || IsMissing(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%w: variance %d is not positive (%g)", ErrConfiguration, i, v)
		}
		sd[i] = math.Sqrt(v)
	}
	C := mat.NewSymDense(n, nil)
	for i := range n {
		C.SetSym(i, i, 1.0)
		for j := i + 1; j < n; j++ {
			c := S.At(i, j) / (sd[i] * sd[j])
			if math.Abs(c) > 1+1e-12 {
				return nil, fmt.Errorf("%w: |correlation(%d,%d)| = %g > 1", ErrConfiguration, i, j, math.Abs(c))
			}
			C.SetSym(i, j, c)
		}
	}
	return C, nil
}
