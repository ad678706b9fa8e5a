// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.10.15
//

package goobserr

import (
	"math"
)

// GC99 returns the Gaspari-Cohn (1999) fifth-order piecewise rational correlation
// for the separation d and the lengthscale L.
// - 1 at d = 0, decays to 0 at |d| = 2L and is exactly 0 beyond
// - L must be positive (checked when parameters are validated)
func GC99(d, L float64) float64 {
	z := math.Abs(d) / L
	var c float64
	switch {
	case z == 0:
		return 1
	case z <= 1:
		c = -0.25*math.Pow(z, 5) + 0.5*math.Pow(z, 4) + 0.625*math.Pow(z, 3) - 5.0/3.0*SQ(z) + 1
	case z < 2:
		c = math.Pow(z, 5)/12.0 - 0.5*math.Pow(z, 4) + 0.625*math.Pow(z, 3) + 5.0/3.0*SQ(z) - 5*z + 4 - 2.0/(3.0*z)
	default:
		return 0
	}
	// Rounding near the ends of the branches
	return math.Min(1, math.Max(0, c))
}
