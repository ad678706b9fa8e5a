// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.10.15
//

package goobserr

import (
	"fmt"
	"sync"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

// ObsErrorDiagonal is R = D, i.e. uncorrelated observation errors
type ObsErrorDiagonal struct {
	space  ObsSpace
	stddev *StdDevStore
	rngMu  sync.Mutex
	normal distuv.Normal
}

var _ ObsError = (*ObsErrorDiagonal)(nil)

// NewObsErrorDiagonal reads the standard deviations from the obs space group p.ErrGroup
func NewObsErrorDiagonal(p *Params, space ObsSpace) (*ObsErrorDiagonal, error) {
	sd, err := ReadObsVector(space, p.ErrGroup)
	if err != nil {
		return nil, fmt.Errorf("failed to read obs error stddev: %w", err)
	}
	return &ObsErrorDiagonal{
		space:  space,
		stddev: NewStdDevStore(sd),
		normal: distuv.Normal{Mu: 0, Sigma: 1, Src: rand.NewSource(p.Seed)},
	}, nil
}

func (d *ObsErrorDiagonal) Update(stddev *ObsVector) error {
	return d.stddev.Update(stddev)
}

func (d *ObsErrorDiagonal) Multiply(y *ObsVector) error {
	return d.stddev.Read(func(sd *ObsVector) error {
		if err := sd.CheckSize(y); err != nil {
			return err
		}
		y.Mul(sd)
		y.Mul(sd)
		return nil
	})
}

func (d *ObsErrorDiagonal) InverseMultiply(y *ObsVector) error {
	return d.stddev.Read(func(sd *ObsVector) error {
		if err := sd.CheckSize(y); err != nil {
			return err
		}
		y.Div(sd)
		y.Div(sd)
		return nil
	})
}

func (d *ObsErrorDiagonal) Randomize(y *ObsVector) error {
	return d.stddev.Read(func(sd *ObsVector) error {
		if err := sd.CheckSize(y); err != nil {
			return err
		}
		d.rngMu.Lock()
		for i := range y.Data {
			y.Data[i] = d.normal.Rand()
		}
		d.rngMu.Unlock()
		y.Mul(sd)
		return nil
	})
}

func (d *ObsErrorDiagonal) Save(name string) error {
	return d.stddev.Read(func(sd *ObsVector) error {
		return SaveObsVector(d.space, name, sd)
	})
}

func (d *ObsErrorDiagonal) GetRMSE() float64 {
	return d.stddev.RMS()
}

func (d *ObsErrorDiagonal) GetObsErrors() *ObsVector {
	return d.stddev.Values()
}

func (d *ObsErrorDiagonal) GetInverseVariance() *ObsVector {
	return d.stddev.InverseVariance()
}

func (d *ObsErrorDiagonal) String() string {
	return fmt.Sprintf("ObsErrorDiagonal: obs error stddev rms=%g\n", d.GetRMSE())
}
