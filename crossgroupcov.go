// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.10.15
//

// Observation error covariance with correlations between observations of one record.

package goobserr

import (
	"fmt"
	"strings"
	"sync"

	"golang.org/x/exp/rand"
	"golang.org/x/exp/slices"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat/distuv"
)

// ObsErrorCrossGroupCov is R = D^{1/2} C D^{1/2}, where D^{1/2} is diagonal with the
// obs error standard deviations and C is block diagonal with one block per record.
// C_ij = GC99(x_i - x_j) for locations i, j of the same record, x being the correlation
// variable. The same block applies to every correlated variable; different variables,
// different records and variables outside the correlated set are uncorrelated.
type ObsErrorCrossGroupCov struct {
	space    ObsSpace
	params   Params
	nlocs    int
	vars     []string     // Obs space variables
	corrVars []int        // Indices of correlated variables in vars
	blocks   []*CorrBlock // One per record, fixed after construction
	stddev   *StdDevStore
	rngMu    sync.Mutex
	normal   distuv.Normal
}

var _ ObsError = (*ObsErrorCrossGroupCov)(nil)

// NewObsErrorCrossGroupCov builds the correlation blocks and their Cholesky factors
// and reads the initial standard deviations from the obs space group p.ErrGroup
func NewObsErrorCrossGroupCov(p *Params, space ObsSpace) (*ObsErrorCrossGroupCov, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	c := &ObsErrorCrossGroupCov{
		space:  space,
		params: *p,
		nlocs:  space.NLocs(),
		vars:   space.ObsVariables(),
		normal: distuv.Normal{Mu: 0, Sigma: 1, Src: rand.NewSource(p.Seed)},
	}
	c.params.Vars = append([]string(nil), p.Vars...)

	// Correlated variables
	corrVars, err := selectVars(c.vars, p.Vars)
	if err != nil {
		return nil, err
	}
	c.corrVars = corrVars

	// Correlation variable (one value per location)
	group, name, err := SplitVarName(p.CorrVar)
	if err != nil {
		return nil, err
	}
	x, err := space.GetDB(group, name)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrConfiguration, err.Error())
	}
	if len(x) != c.nlocs {
		return nil, fmt.Errorf("%w: %s has %d values for %d locations", ErrSizeMismatch, p.CorrVar, len(x), c.nlocs)
	}

	// Records and their correlation blocks
	keys := space.RecordKeys()
	if len(keys) != c.nlocs {
		return nil, fmt.Errorf("%w: %d record keys for %d locations", ErrSizeMismatch, len(keys), c.nlocs)
	}
	c.blocks = BuildCorrBlocks(PartitionRecords(keys), x, p.Lscale)
	if err := c.forEachBlock(func(b *CorrBlock) error {
		return b.Factorize()
	}); err != nil {
		return nil, err
	}

	// Obs error standard deviations
	sd, err := ReadObsVector(space, p.ErrGroup)
	if err != nil {
		return nil, fmt.Errorf("failed to read obs error stddev: %w", err)
	}
	c.stddev = NewStdDevStore(sd)

	PrintD(1, "%s", c)
	if DBG_ >= 3 {
		for _, b := range c.blocks {
			if b.Size() > 0 {
				PrintA("record %d, locs=%v\n", b.Key, b.Locs)
				PrintMat(b.C)
			}
		}
	}
	return c, nil
}

// selectVars returns the indices of the correlated variables in vars.
// An empty selection means all variables.
func selectVars(vars, sel []string) ([]int, error) {
	if len(sel) == 0 {
		idx := make([]int, len(vars))
		for i := range idx {
			idx[i] = i
		}
		return idx, nil
	}
	idx := make([]int, 0, len(sel))
	for _, v := range sel {
		i := slices.Index(vars, v)
		if i < 0 {
			return nil, fmt.Errorf("%w: variable %s is not an obs space variable %v", ErrConfiguration, v, vars)
		}
		if !slices.Contains(idx, i) {
			idx = append(idx, i)
		}
	}
	slices.Sort(idx)
	return idx, nil
}

// forEachBlock runs f for every non-empty block, in parallel up to params.Workers goroutines.
// Blocks own disjoint locations so f may write to the locations of its block.
func (c *ObsErrorCrossGroupCov) forEachBlock(f func(b *CorrBlock) error) error {
	var g errgroup.Group
	if c.params.Workers > 0 {
		g.SetLimit(c.params.Workers)
	}
	for _, b := range c.blocks {
		if b.Size() == 0 {
			continue
		}
		g.Go(func() error {
			return f(b)
		})
	}
	return g.Wait()
}

// applyBlocks sets y_sub <- op(y_sub) for every block and correlated variable.
// Missing values of y are left out: op acts on the principal sub-block of the
// locations where y is present, and missing values stay missing.
func (c *ObsErrorCrossGroupCov) applyBlocks(y *ObsVector, op func(b *CorrBlock, x []float64) error) error {
	return c.forEachBlock(func(b *CorrBlock) error {
		idx := make([]int, 0, b.Size())
		sub := make([]float64, 0, b.Size())
		for _, jvar := range c.corrVars {
			idx, sub = idx[:0], sub[:0]
			for i, loc := range b.Locs {
				if v := y.Data[y.Index(loc, jvar)]; !IsMissing(v) {
					idx = append(idx, i)
					sub = append(sub, v)
				}
			}
			if len(idx) == 0 {
				continue
			}
			s, err := b.Sub(idx)
			if err != nil {
				return err
			}
			if err := op(s, sub); err != nil {
				return err
			}
			for i, p := range idx {
				y.Data[y.Index(b.Locs[p], jvar)] = sub[i]
			}
		}
		return nil
	})
}

// Update replaces the obs error standard deviations. The correlations are not rebuilt.
func (c *ObsErrorCrossGroupCov) Update(stddev *ObsVector) error {
	return c.stddev.Update(stddev)
}

// Multiply sets y <- D^{1/2} C D^{1/2} y
func (c *ObsErrorCrossGroupCov) Multiply(y *ObsVector) error {
	return c.stddev.Read(func(sd *ObsVector) error {
		if err := sd.CheckSize(y); err != nil {
			return err
		}
		y.Mul(sd)
		if err := c.applyBlocks(y, func(b *CorrBlock, x []float64) error {
			b.MulVec(x)
			return nil
		}); err != nil {
			return err
		}
		y.Mul(sd)
		return nil
	})
}

// InverseMultiply sets y <- D^{-1/2} C^{-1} D^{-1/2} y
func (c *ObsErrorCrossGroupCov) InverseMultiply(y *ObsVector) error {
	return c.stddev.Read(func(sd *ObsVector) error {
		if err := sd.CheckSize(y); err != nil {
			return err
		}
		y.Div(sd)
		if err := c.applyBlocks(y, func(b *CorrBlock, x []float64) error {
			return b.SolveVec(x)
		}); err != nil {
			return err
		}
		y.Div(sd)
		return nil
	})
}

// Randomize sets y <- D^{1/2} L z with z ~ N(0, I) and C = L L^T
func (c *ObsErrorCrossGroupCov) Randomize(y *ObsVector) error {
	return c.stddev.Read(func(sd *ObsVector) error {
		if err := sd.CheckSize(y); err != nil {
			return err
		}
		c.rngMu.Lock()
		for i := range y.Data {
			y.Data[i] = c.normal.Rand()
		}
		c.rngMu.Unlock()
		if err := c.applyBlocks(y, func(b *CorrBlock, x []float64) error {
			b.SqrtMulVec(x)
			return nil
		}); err != nil {
			return err
		}
		y.Mul(sd)
		return nil
	})
}

// Save writes the obs error standard deviations to the obs space group name
func (c *ObsErrorCrossGroupCov) Save(name string) error {
	return c.stddev.Read(func(sd *ObsVector) error {
		return SaveObsVector(c.space, name, sd)
	})
}

// GetRMSE returns the RMS of the obs error standard deviations
func (c *ObsErrorCrossGroupCov) GetRMSE() float64 {
	return c.stddev.RMS()
}

// GetObsErrors returns a copy of the obs error standard deviations
func (c *ObsErrorCrossGroupCov) GetObsErrors() *ObsVector {
	return c.stddev.Values()
}

// GetInverseVariance returns 1/stddev^2 (the correlations are not taken into account)
func (c *ObsErrorCrossGroupCov) GetInverseVariance() *ObsVector {
	return c.stddev.InverseVariance()
}

// Blocks returns the correlation blocks, one per record in ascending record key order.
// The blocks must not be modified.
func (c *ObsErrorCrossGroupCov) Blocks() []*CorrBlock {
	return c.blocks
}

// CorrelatedVars returns the names of the correlated variables
func (c *ObsErrorCrossGroupCov) CorrelatedVars() []string {
	v := make([]string, len(c.corrVars))
	for i, j := range c.corrVars {
		v[i] = c.vars[j]
	}
	return v
}

func (c *ObsErrorCrossGroupCov) String() string {
	var sb strings.Builder
	nloc, maxn := 0, 0
	for _, b := range c.blocks {
		nloc += b.Size()
		maxn = max(maxn, b.Size())
	}
	fmt.Fprintf(&sb, "ObsErrorCrossGroupCov: correlation variable=%s, lengthscale=%g\n", c.params.CorrVar, c.params.Lscale)
	fmt.Fprintf(&sb, "\tcorrelated variables: %v\n", c.CorrelatedVars())
	fmt.Fprintf(&sb, "\trecords=%d, correlated locations=%d/%d, largest block=%d\n", len(c.blocks), nloc, c.nlocs, maxn)
	fmt.Fprintf(&sb, "\tobs error stddev rms=%g\n", c.GetRMSE())
	return sb.String()
}
