// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.10.15
//

package main

import (
	"flag"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	m "github.com/mkhts/goobserr"
	"golang.org/x/exp/slices"
)

func main() {

	// Parse command line arguments
	args, err := parseArgs()
	if err != nil {
		flag.Usage()
		os.Exit(1)
	}

	// Run the main application
	if err := runApplication(args); err != nil {
		m.PrintE(err)
		os.Exit(1)
	}
}

// Main application processing
func runApplication(args cmdOpt) (err error) {

	// Load input files
	params, space, err := loadInputFiles(args)
	if err != nil {
		return fmt.Errorf("failed to load input files: %w", err)
	}

	if m.DBG_ >= 2 {
		m.PrintA("--- params (%s)---\n", filepath.Base(args.confFn))
		m.PrintA("%+v\n", *params)
		m.PrintA("--- obs space (%s)---\n", filepath.Base(args.obsFn))
		m.PrintA("locations=%d, variables=%v, groups=%v\n", space.NLocs(), space.ObsVariables(), space.Groups())
	}

	// Build the obs error covariance
	R, err := m.NewObsError(params, space)
	if err != nil {
		return fmt.Errorf("failed to build obs error covariance: %w", err)
	}

	// Prepare output file
	out, err := prepareOutput(args)
	if err != nil {
		return fmt.Errorf("failed to prepare output: %w", err)
	}
	defer func() {
		if cerr := closeOutput(out); err == nil && cerr != nil {
			err = fmt.Errorf("failed to close output: %w", cerr)
		}
	}()

	// Apply the covariance and store the results in the obs space
	if err := processObsError(args, R, space); err != nil {
		return err
	}

	// Print summary and write obs space
	printSummary(os.Stderr, args, R)
	return space.Write(out)
}

// Load input files
func loadInputFiles(args cmdOpt) (*m.Params, *m.MemObsSpace, error) {

	params, err := readParams(args)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read config file: %w", err)
	}

	space, err := readObsSpace(args.obsFn)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read observation file: %w", err)
	}

	return params, space, nil
}

// Update, randomize and save
func processObsError(args cmdOpt, R m.ObsError, space *m.MemObsSpace) error {

	// Inflate obs errors
	if args.inflate != 1 {
		sd := R.GetObsErrors()
		for i, s := range sd.Data {
			if !m.IsMissing(s) {
				sd.Data[i] = s * args.inflate
			}
		}
		if err := R.Update(sd); err != nil {
			return fmt.Errorf("failed to update obs errors: %w", err)
		}
		m.PrintD(1, "obs errors inflated by %g, rms=%g\n", args.inflate, R.GetRMSE())
	}

	// Random perturbation drawn from N(0, R)
	if args.pertGrp != "" {
		pert := m.NewObsVector(space.NLocs(), space.ObsVariables())
		if err := R.Randomize(pert); err != nil {
			return fmt.Errorf("failed to randomize: %w", err)
		}
		if err := m.SaveObsVector(space, args.pertGrp, pert); err != nil {
			return fmt.Errorf("failed to save perturbation: %w", err)
		}
		if m.DBG_ >= 1 {
			checkRoundTrip(R, pert)
		}
	}

	if m.DBG_ >= 3 {
		if maxd, err := blockCorrelationError(R); err != nil {
			m.PrintE(err)
		} else {
			m.PrintA("covariance -> correlation: max abs diff=%.3e\n", maxd)
		}
	}

	// Inverse variance (diagonal only)
	if args.ivarGrp != "" {
		if err := m.SaveObsVector(space, args.ivarGrp, R.GetInverseVariance()); err != nil {
			return fmt.Errorf("failed to save inverse variance: %w", err)
		}
	}

	// Obs error standard deviations
	if args.saveGrp != "" {
		if err := R.Save(args.saveGrp); err != nil {
			return fmt.Errorf("failed to save obs errors: %w", err)
		}
	}

	return nil
}

// Check that R^-1 R y recovers y
func checkRoundTrip(R m.ObsError, y *m.ObsVector) {
	y2 := y.Copy()
	if err := R.Multiply(y2); err != nil {
		m.PrintE(err)
		return
	}
	if err := R.InverseMultiply(y2); err != nil {
		m.PrintE(err)
		return
	}
	maxd := 0.0
	for i := range y.Data {
		if !m.IsMissing(y.Data[i]) {
			maxd = math.Max(maxd, math.Abs(y2.Data[i]-y.Data[i]))
		}
	}
	m.PrintA("R^-1 R y - y: max abs diff=%.3e\n", maxd)
}

// Convert the covariance of every record back to correlations and return the
// largest difference from the correlation blocks
func blockCorrelationError(R m.ObsError) (float64, error) {
	c, ok := R.(*m.ObsErrorCrossGroupCov)
	if !ok {
		return 0, nil
	}
	sd := c.GetObsErrors()
	maxd := 0.0
	for _, name := range c.CorrelatedVars() {
		jvar := slices.Index(sd.Vars, name)
	blocks:
		for _, b := range c.Blocks() {
			if b.Size() == 0 {
				continue
			}
			s := make([]float64, b.Size())
			for i, loc := range b.Locs {
				if s[i] = sd.Data[sd.Index(loc, jvar)]; m.IsMissing(s[i]) {
					continue blocks
				}
			}
			C, err := m.CovarianceToCorrelation(b.Covariance(s))
			if err != nil {
				return 0, fmt.Errorf("record %d, %s: %w", b.Key, name, err)
			}
			n := b.Size()
			for i := range n {
				for j := range n {
					maxd = math.Max(maxd, math.Abs(C.At(i, j)-b.C.At(i, j)))
				}
			}
		}
	}
	return maxd, nil
}

// Prepare output file
func prepareOutput(args cmdOpt) (io.WriteCloser, error) {

	// Use stdout if no output file is specified
	if len(args.outFn) == 0 {
		return &nopCloser{os.Stdout}, nil
	}

	// Create output file
	f, err := os.Create(args.outFn)
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, nil
}

// Close output file
func closeOutput(out io.WriteCloser) error {
	if out == nil {
		return nil
	}
	return out.Close()
}

// nopCloser - WriteCloser that ignores close operations
type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }

// Structure to hold command line argument information
type cmdOpt struct {
	obsFn   string
	confFn  string
	outFn   string
	params  *m.Params // Settings given by flags
	set     map[string]bool
	inflate float64
	pertGrp string
	ivarGrp string
	saveGrp string
}

// Parse command line arguments
func parseArgs() (a cmdOpt, err error) {
	flag.Usage = func() {
		m.PrintA(`
[Usage]
	%s [Options] -c config.yaml        obs.yaml
	%s [Options] -v Group/Name -l lscale obs.yaml

[Options]
`, filepath.Base(os.Args[0]), filepath.Base(os.Args[0]))
		flag.PrintDefaults()
	}
	p := m.NewParams()
	a.params = p
	var vars m.VarList
	flag.StringVar(&a.confFn, "c", "", "Config file (YAML). Options given on the command line override it.")
	flag.StringVar(&p.Model, "r", p.Model, "Covariance model. \"cross group\" or \"diagonal\"")
	flag.StringVar(&p.CorrVar, "v", p.CorrVar, "Correlation variable (Group/Name) like MetaData/air_pressure. Should be the variable the obs are grouped on.")
	flag.Float64Var(&p.Lscale, "l", p.Lscale, "Gaspari-Cohn correlation lengthscale, same units as the correlation variable")
	flag.Var(&vars, "vars", "Correlated variables. Comma-separated without spaces. Default: all obs variables")
	flag.StringVar(&p.ErrGroup, "eg", p.ErrGroup, "Obs space group with the obs error standard deviations")
	flag.Uint64Var(&p.Seed, "seed", p.Seed, "Seed of the random perturbations")
	flag.IntVar(&p.Workers, "w", p.Workers, "Number of goroutines for per-record calculation. 0 for no limit.")
	flag.StringVar(&a.outFn, "o", "", "Output obs file path. If not specified, output to stdout.")
	flag.Float64Var(&a.inflate, "inf", 1, "Inflation factor applied to the obs errors before use")
	flag.StringVar(&a.pertGrp, "pg", "ObsPerturbation", "Obs space group to save a random perturbation to. Empty to skip.")
	flag.StringVar(&a.ivarGrp, "ig", "", "Obs space group to save the inverse obs error variance to. Empty to skip.")
	flag.StringVar(&a.saveGrp, "sg", "EffectiveError", "Obs space group to save the obs errors to. Empty to skip.")
	var dbg int
	flag.IntVar(&dbg, "x", 0, "Debug information display. Specify level value. 0(OFF), 1(display), 2(detailed display), 3(print correlation blocks)")
	flag.Parse()
	if flag.NArg() != 1 {
		return a, fmt.Errorf("too less or many arguments")
	}
	a.obsFn = flag.Arg(0)
	p.Vars = vars
	a.set = map[string]bool{}
	flag.Visit(func(f *flag.Flag) {
		a.set[f.Name] = true
	})
	m.DBG_ = dbg
	return
}

// Read config file and apply the command line options on top of it
func readParams(args cmdOpt) (*m.Params, error) {
	if args.confFn == "" {
		return args.params, args.params.Validate()
	}
	f, err := os.Open(args.confFn)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	p, err := m.LoadParams(f)
	if err != nil {
		return nil, err
	}
	q := args.params
	for name, set := range args.set {
		if !set {
			continue
		}
		switch name {
		case "r":
			p.Model = q.Model
		case "v":
			p.CorrVar = q.CorrVar
		case "l":
			p.Lscale = q.Lscale
		case "vars":
			p.Vars = q.Vars
		case "eg":
			p.ErrGroup = q.ErrGroup
		case "seed":
			p.Seed = q.Seed
		case "w":
			p.Workers = q.Workers
		}
	}
	return p, p.Validate()
}

// Read observation file
func readObsSpace(fn string) (*m.MemObsSpace, error) {
	f, err := os.Open(fn)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	space, err := m.ReadObsSpace(f)
	if err != nil {
		return nil, err
	}
	return space, nil
}

// Print summary
func printSummary(w io.Writer, args cmdOpt, R m.ObsError) {
	fmt.Fprintf(w, "%% program   : %s\n", filepath.Base(os.Args[0]))
	fmt.Fprintf(w, "%% inp file  : %s\n", args.obsFn)
	if args.confFn != "" {
		fmt.Fprintf(w, "%% config    : %s\n", args.confFn)
	}
	fmt.Fprintf(w, "%% %s", R)
	fmt.Fprintf(w, "%% obs error rms : %.6g\n", R.GetRMSE())
}
