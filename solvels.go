// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.10.15
//

package goobserr

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Solve the observation equation using generalized least squares
// - dx = (G^t R^-1 G)^-1 G^t R^-1 dr
// - R^-1 is applied through R.InverseMultiply, so correlated obs errors are taken into account
// - Return the error covariance matrix (G^t R^-1 G)^-1 as cov
func SolveLS(G mat.Matrix, dr *ObsVector, R ObsError) (dx mat.Vector, cov mat.Matrix, err error) {

	n1, m1 := G.Dims()
	if n1 == 0 || m1 == 0 {
		return nil, nil, fmt.Errorf("invalid matrix size. G(%d x %d)", n1, m1)
	}
	if l1 := dr.Size(); l1 != n1 {
		return nil, nil, fmt.Errorf("%w: invalid matrix size. G(%d x %d), dr(%d x 1)", ErrSizeMismatch, n1, m1, l1)
	}
	if dr.NObs() != n1 {
		return nil, nil, fmt.Errorf("dr has %d missing values", n1-dr.NObs())
	}

	// WG (R^-1 G), one column at a time
	WG := mat.NewDense(n1, m1, nil)
	col := dr.Copy()
	for j := range m1 {
		mat.Col(col.Data, j, G)
		if err = invMul(R, col); err != nil {
			return nil, nil, err
		}
		WG.SetCol(j, col.Data)
	}

	// A (G^t R^-1 G)
	var A mat.Dense
	A.Mul(G.T(), WG)

	// b (G^t R^-1 dr)
	wdr := dr.Copy()
	if err = invMul(R, wdr); err != nil {
		return nil, nil, err
	}
	var b mat.VecDense
	b.MulVec(G.T(), mat.NewVecDense(n1, wdr.Data))

	// Solve for x (x = A^-1 b)
	var x mat.VecDense
	err = x.SolveVec(&A, &b)
	if err != nil {
		return nil, nil, err
	}
	dx = &x

	// Set (G^t R^-1 G)^-1 as the covariance matrix
	var c mat.Dense
	err = c.Inverse(&A)
	if err != nil {
		return nil, nil, err
	}
	cov = &c

	return
}

// invMul applies R^-1 and checks that every observation has an obs error
func invMul(R ObsError, v *ObsVector) error {
	if err := R.InverseMultiply(v); err != nil {
		return err
	}
	if n := v.NObs(); n != v.Size() {
		return fmt.Errorf("%d observations without obs error", v.Size()-n)
	}
	return nil
}
