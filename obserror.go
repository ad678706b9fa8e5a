// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.10.15
//

// Observation error covariance models R and their common interface.

package goobserr

import (
	"errors"
	"fmt"
)

var (
	ErrConfiguration = errors.New("invalid obs error configuration")
	ErrSizeMismatch  = errors.New("observation vector size mismatch")
	ErrSingularBlock = errors.New("singular correlation block")
)

// ObsError is an observation error covariance matrix R
type ObsError interface {
	// Replace the obs error standard deviations
	Update(stddev *ObsVector) error
	// y <- R y
	Multiply(y *ObsVector) error
	// y <- R^-1 y
	InverseMultiply(y *ObsVector) error
	// Fill y with a random draw from N(0, R)
	Randomize(y *ObsVector) error
	// Write the obs error standard deviations to the obs space group name
	Save(name string) error
	// RMS of the obs error standard deviations
	GetRMSE() float64
	// Copy of the obs error standard deviations
	GetObsErrors() *ObsVector
	// 1/stddev^2 (diagonal only)
	GetInverseVariance() *ObsVector
	fmt.Stringer
}

// Covariance model names accepted in Params.Model
const (
	ModelCrossGroup = "cross group"
	ModelDiagonal   = "diagonal"
)

// NewObsError creates the covariance model selected by p.Model
func NewObsError(p *Params, space ObsSpace) (ObsError, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	switch p.Model {
	case ModelDiagonal:
		return NewObsErrorDiagonal(p, space)
	case ModelCrossGroup, "":
		return NewObsErrorCrossGroupCov(p, space)
	default:
		return nil, fmt.Errorf("%w: unknown covariance model %q", ErrConfiguration, p.Model)
	}
}
