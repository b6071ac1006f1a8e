// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package vwargs parses Vowpal Wabbit command lines, and classifies the output shape of the learner
// they describe.
//
// Only the options that affect the learner's output or that the engines in this module act upon are
// recognized, everything else is kept in Args.Unknown and otherwise ignored.
package vwargs

import (
	"io"
	"strings"

	"github.com/gomlx/vwlearners/engines"
	"github.com/gomlx/vwlearners/pkg/support/fsutil"
	"github.com/gomlx/vwlearners/pkg/support/sets"
	"github.com/pkg/errors"
	"github.com/spf13/pflag"
)

const (
	DefaultBits         = 18
	MaxBits             = 30
	DefaultLearningRate = 0.5
	DefaultEpsilon      = 0.05
)

// Loss functions supported.
const (
	LossSquared  = "squared"
	LossLogistic = "logistic"
)

// Link functions supported.
const (
	LinkIdentity = "identity"
	LinkLogistic = "logistic"
)

// Args holds the parsed command line.
type Args struct {
	Command string

	Quiet            bool
	TestOnly         bool
	InitialRegressor string
	FinalRegressor   string
	Bits             int
	LearningRate     float32
	LossFunction     string
	Link             string

	// Multiclass reductions: the value is the number of classes (or actions), 0 if not set.
	OAA           int
	CSOAA         int
	CB            int
	CBExplore     int
	MultilabelOAA int
	Search        int

	Epsilon       float32
	Probabilities bool

	// Positional holds the non-flag arguments (VW takes it as the data file).
	Positional []string

	// changed is the set of flags explicitly given.
	changed sets.Set[string]
}

// reductionFlags are the options that select the type of prediction of a learner.
var reductionFlags = []string{"oaa", "csoaa", "cb", "cb_explore", "multilabel_oaa", "search"}

// Parse the VW command line. Unrecognized options are ignored.
func Parse(command string) (*Args, error) {
	a := &Args{Command: command, changed: sets.Make[string]()}
	fs := pflag.NewFlagSet("vw", pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.ParseErrorsWhitelist.UnknownFlags = true
	fs.BoolVar(&a.Quiet, "quiet", false, "Don't output diagnostics.")
	fs.BoolVarP(&a.TestOnly, "testonly", "t", false, "Ignore label information and just test.")
	fs.StringVarP(&a.InitialRegressor, "initial_regressor", "i", "", "Initial regressor to load.")
	fs.StringVarP(&a.FinalRegressor, "final_regressor", "f", "", "Final regressor to save.")
	fs.IntVarP(&a.Bits, "bit_precision", "b", DefaultBits, "Number of bits in the feature table.")
	fs.Float32VarP(&a.LearningRate, "learning_rate", "l", DefaultLearningRate, "Learning rate.")
	fs.StringVar(&a.LossFunction, "loss_function", LossSquared, "Loss function: squared or logistic.")
	fs.StringVar(&a.Link, "link", LinkIdentity, "Link function: identity or logistic.")
	fs.IntVar(&a.OAA, "oaa", 0, "One-against-all multiclass with <k> labels.")
	fs.IntVar(&a.CSOAA, "csoaa", 0, "Cost-sensitive one-against-all with <k> labels.")
	fs.IntVar(&a.CB, "cb", 0, "Contextual bandit with <k> actions.")
	fs.IntVar(&a.CBExplore, "cb_explore", 0, "Contextual bandit exploration with <k> actions.")
	fs.IntVar(&a.MultilabelOAA, "multilabel_oaa", 0, "One-against-all multilabel with <k> labels.")
	fs.IntVar(&a.Search, "search", 0, "Learning to search, with <k> actions.")
	fs.Float32Var(&a.Epsilon, "epsilon", DefaultEpsilon, "Epsilon-greedy exploration.")
	fs.BoolVar(&a.Probabilities, "probabilities", false, "Predict probabilities of all classes.")

	if err := fs.Parse(strings.Fields(command)); err != nil {
		return nil, errors.Wrapf(err, "failed to parse command %q", command)
	}
	a.Positional = fs.Args()
	fs.Visit(func(f *pflag.Flag) { a.changed.Insert(f.Name) })
	if err := a.validate(); err != nil {
		return nil, errors.WithMessagef(err, "invalid command %q", command)
	}
	return a, nil
}

func (a *Args) validate() error {
	if a.Bits < 1 || a.Bits > MaxBits {
		return errors.Errorf("-b/--bit_precision must be between 1 and %d, got %d", MaxBits, a.Bits)
	}
	if a.LearningRate < 0 {
		return errors.Errorf("-l/--learning_rate must be non-negative, got %g", a.LearningRate)
	}
	switch a.LossFunction {
	case LossSquared, LossLogistic:
	default:
		return errors.Errorf("unsupported --loss_function %q", a.LossFunction)
	}
	switch a.Link {
	case LinkIdentity, LinkLogistic:
	default:
		return errors.Errorf("unsupported --link %q", a.Link)
	}
	for _, k := range []int{a.OAA, a.CSOAA, a.CB, a.CBExplore, a.MultilabelOAA, a.Search} {
		if k < 0 {
			return errors.Errorf("number of classes/actions must be positive, got %d", k)
		}
	}
	if a.Epsilon < 0 || a.Epsilon > 1 {
		return errors.Errorf("--epsilon must be in [0, 1], got %g", a.Epsilon)
	}
	var err error
	if a.InitialRegressor, err = fsutil.ExpandHome(a.InitialRegressor); err != nil {
		return errors.WithMessage(err, "-i/--initial_regressor")
	}
	if a.FinalRegressor, err = fsutil.ExpandHome(a.FinalRegressor); err != nil {
		return errors.WithMessage(err, "-f/--final_regressor")
	}
	return nil
}

// IsSet returns whether the flag (by its long name) was explicitly given in the command.
func (a *Args) IsSet(name string) bool {
	return a.changed.Has(name)
}

// HasReduction returns whether any reduction that changes the type of the prediction was given.
func (a *Args) HasReduction() bool {
	return a.changed.CountIn(reductionFlags...) > 0
}

// Classes returns the number of classes (or actions) of the multiclass reduction in use, or 1 for
// scalar learners.
func (a *Args) Classes() int {
	for _, k := range []int{a.OAA, a.CSOAA, a.CB, a.CBExplore, a.MultilabelOAA} {
		if k > 0 {
			return k
		}
	}
	return 1
}

// Shape classifies the output of the learner described by the command.
//
// Commands combining more than one multiclass reduction, or using reductions whose output is not
// one of the known shapes (like --search), are classified as engines.ShapeUnknown.
func (a *Args) Shape() engines.ShapeTag {
	if a.Search > 0 || a.changed.CountIn(reductionFlags...) > 1 {
		return engines.ShapeUnknown
	}
	switch {
	case a.MultilabelOAA > 0:
		return engines.ShapeIntSequence
	case a.CBExplore > 0:
		return engines.ShapeFloatSequence
	case a.OAA > 0 && a.Probabilities:
		return engines.ShapeFloatSequence
	case a.OAA > 0 || a.CSOAA > 0 || a.CB > 0:
		return engines.ShapeScalarInt
	case a.HasReduction():
		// Reduction given with 0 classes.
		return engines.ShapeUnknown
	}
	return engines.ShapeScalarFloat
}
