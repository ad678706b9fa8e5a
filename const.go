// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.10.15
//

package goobserr

const (
	MissingValue   = -3.3687953e38 // Missing value marker in observation vectors (same as the float fill value of obs files)
	MaxBlockCond   = 1e12          // Largest condition number accepted for a correlation block
	DefaultSeed    = 7             // Default seed of the random perturbation generator
	DefaultErrGrp  = "ObsError"    // Obs space group holding the initial obs error standard deviations
	DefaultWorkers = 4             // Default number of goroutines used for per-record work
)
