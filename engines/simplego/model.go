// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package simplego

import (
	"encoding/gob"
	"math"
	"os"

	"github.com/gomlx/vwlearners/engines"
	"github.com/gomlx/vwlearners/engines/vwargs"
	"github.com/gomlx/vwlearners/pkg/support/fsutil"
	"github.com/pkg/errors"
)

// Reductions, as stored in the model.
const (
	reductionOAA           = "oaa"
	reductionCSOAA         = "csoaa"
	reductionCB            = "cb"
	reductionCBExplore     = "cb_explore"
	reductionMultilabelOAA = "multilabel_oaa"
)

// model is a linear model per class over 2^Bits hashed features.
// Fields are exported for gob serialization.
type model struct {
	Shape         engines.ShapeTag
	Reduction     string
	Bits          int
	Classes       int
	LossFunction  string
	Link          string
	LearningRate  float32
	Epsilon       float32
	Probabilities bool
	Weights       [][]float32

	// Examples is the number of examples learned.
	Examples int64
}

func newModel(args *vwargs.Args) *model {
	m := &model{
		Shape:         args.Shape(),
		Bits:          args.Bits,
		Classes:       args.Classes(),
		LossFunction:  args.LossFunction,
		Link:          args.Link,
		LearningRate:  args.LearningRate,
		Epsilon:       args.Epsilon,
		Probabilities: args.Probabilities,
	}
	switch {
	case args.OAA > 0:
		m.Reduction = reductionOAA
	case args.CSOAA > 0:
		m.Reduction = reductionCSOAA
	case args.CB > 0:
		m.Reduction = reductionCB
	case args.CBExplore > 0:
		m.Reduction = reductionCBExplore
	case args.MultilabelOAA > 0:
		m.Reduction = reductionMultilabelOAA
	}
	m.Weights = make([][]float32, m.Classes)
	for c := range m.Weights {
		m.Weights[c] = make([]float32, 1<<m.Bits)
	}
	return m
}

func sigmoid(x float32) float32 {
	return float32(1 / (1 + math.Exp(-float64(x))))
}

// score returns the linear score of class c, and the squared norm of the example.
func (m *model) score(c int, ex *example) (score, norm float32) {
	w := m.Weights[c]
	for _, f := range ex.features {
		score += w[f.index] * f.value
		norm += f.value * f.value
	}
	return
}

func (m *model) scores(ex *example) []float32 {
	s := make([]float32, m.Classes)
	for c := range s {
		s[c], _ = m.score(c, ex)
	}
	return s
}

// regress updates class c towards target, using a normalized gradient step.
// With the logistic loss, the target is taken as its sign.
func (m *model) regress(c int, ex *example, target, importance float32) {
	p, norm := m.score(c, ex)
	if norm == 0 {
		return
	}
	var gradient float32
	if m.LossFunction == vwargs.LossLogistic {
		y := float32(-1)
		if target > 0 {
			y = 1
		}
		gradient = y * sigmoid(-y*p)
	} else {
		gradient = target - p
	}
	step := m.LearningRate * importance * gradient / norm
	w := m.Weights[c]
	for _, f := range ex.features {
		w[f.index] += step * f.value
	}
}

func argmax(s []float32) int {
	best := 0
	for c, v := range s {
		if v > s[best] {
			best = c
		}
	}
	return best
}

func argmin(s []float32) int {
	best := 0
	for c, v := range s {
		if v < s[best] {
			best = c
		}
	}
	return best
}

// scalar prediction: regression or binary classification.
func (m *model) scalar(ex *example, learn bool) (float32, error) {
	p, _ := m.score(0, ex)
	if m.Link == vwargs.LinkLogistic {
		p = sigmoid(p)
	}
	if learn {
		label, importance, err := ex.scalarLabel()
		if err != nil {
			return 0, err
		}
		m.regress(0, ex, label, importance)
		m.Examples++
	}
	return p, nil
}

// learnOneAgainstAll updates every class: +1 for the labeled class, -1 for the others.
func (m *model) learnOneAgainstAll(ex *example) error {
	k, err := ex.classLabel(m.Classes)
	if err != nil {
		return err
	}
	for c := range m.Classes {
		target := float32(-1)
		if c == k-1 {
			target = 1
		}
		m.regress(c, ex, target, 1)
	}
	m.Examples++
	return nil
}

// learnCosts regresses each labeled class (or action) towards its cost.
func (m *model) learnCosts(ex *example) error {
	costs, err := ex.costs(m.Classes)
	if err != nil {
		return err
	}
	for _, lc := range costs {
		m.regress(lc.class-1, ex, lc.cost, lc.importance)
	}
	m.Examples++
	return nil
}

// multiclass prediction returns the 1-based class (or action).
func (m *model) multiclass(ex *example, learn bool) (int32, error) {
	scores := m.scores(ex)
	var prediction int32
	switch m.Reduction {
	case reductionOAA:
		prediction = int32(argmax(scores) + 1)
		if learn {
			return prediction, m.learnOneAgainstAll(ex)
		}
	case reductionCSOAA, reductionCB:
		prediction = int32(argmin(scores) + 1)
		if learn {
			return prediction, m.learnCosts(ex)
		}
	default:
		return 0, errors.Errorf("reduction %q doesn't have a multiclass output", m.Reduction)
	}
	return prediction, nil
}

// distribution returns one probability per class (or action).
func (m *model) distribution(ex *example, learn bool) ([]float32, error) {
	scores := m.scores(ex)
	probs := make([]float32, m.Classes)
	switch m.Reduction {
	case reductionOAA:
		var total float32
		for c, s := range scores {
			probs[c] = sigmoid(s)
			total += probs[c]
		}
		for c := range probs {
			probs[c] /= total
		}
		if learn {
			return probs, m.learnOneAgainstAll(ex)
		}
	case reductionCBExplore:
		greedy := argmin(scores)
		for c := range probs {
			probs[c] = m.Epsilon / float32(m.Classes)
		}
		probs[greedy] += 1 - m.Epsilon
		if learn {
			return probs, m.learnCosts(ex)
		}
	default:
		return nil, errors.Errorf("reduction %q doesn't have a probability distribution output", m.Reduction)
	}
	return probs, nil
}

// multilabel returns the 0-based labels with a positive score.
func (m *model) multilabel(ex *example, learn bool) ([]int32, error) {
	if m.Reduction != reductionMultilabelOAA {
		return nil, errors.Errorf("reduction %q doesn't have a multilabel output", m.Reduction)
	}
	scores := m.scores(ex)
	labels := []int32{}
	for c, s := range scores {
		if s > 0 {
			labels = append(labels, int32(c))
		}
	}
	if learn {
		positive, err := ex.multilabels(m.Classes)
		if err != nil {
			return nil, err
		}
		targets := make([]float32, m.Classes)
		for c := range targets {
			targets[c] = -1
		}
		for _, k := range positive {
			targets[k] = 1
		}
		for c, target := range targets {
			m.regress(c, ex, target, 1)
		}
		m.Examples++
	}
	return labels, nil
}

func (m *model) save(path string) (err error) {
	if err = fsutil.CreateParentDir(path); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "failed to create model file %q", path)
	}
	defer func() {
		closeErr := f.Close()
		if err == nil && closeErr != nil {
			err = errors.Wrapf(closeErr, "failed to close model file %q", path)
		}
	}()
	if err = gob.NewEncoder(f).Encode(m); err != nil {
		return errors.Wrapf(err, "failed to write model to %q", path)
	}
	return nil
}

func loadModel(path string) (*model, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open model file %q", path)
	}
	defer func() { _ = f.Close() }()
	m := &model{}
	if err = gob.NewDecoder(f).Decode(m); err != nil {
		return nil, errors.Wrapf(err, "failed to read model from %q", path)
	}
	if err = m.validate(); err != nil {
		return nil, errors.WithMessagef(err, "corrupted model in %q", path)
	}
	return m, nil
}

// validate checks that a decoded model is consistent, so predictions never index out of its weights.
func (m *model) validate() error {
	if m.Bits < 1 || m.Bits > vwargs.MaxBits {
		return errors.Errorf("bits must be between 1 and %d, got %d", vwargs.MaxBits, m.Bits)
	}
	if m.Classes < 1 || m.Classes != len(m.Weights) {
		return errors.Errorf("%d classes, but %d weight vectors", m.Classes, len(m.Weights))
	}
	for c, w := range m.Weights {
		if len(w) != 1<<m.Bits {
			return errors.Errorf("weight vector of class %d has %d entries, expected %d for %d bits", c, len(w), 1<<m.Bits, m.Bits)
		}
	}
	if !m.Shape.IsAShapeTag() {
		return errors.Errorf("unknown shape %s", m.Shape)
	}
	var valid bool
	switch m.Reduction {
	case "":
		valid = m.Shape == engines.ShapeScalarFloat && m.Classes == 1
	case reductionOAA:
		valid = m.Shape == engines.ShapeScalarInt || m.Shape == engines.ShapeFloatSequence
	case reductionCSOAA, reductionCB:
		valid = m.Shape == engines.ShapeScalarInt
	case reductionCBExplore:
		valid = m.Shape == engines.ShapeFloatSequence
	case reductionMultilabelOAA:
		valid = m.Shape == engines.ShapeIntSequence
	default:
		return errors.Errorf("unknown reduction %q", m.Reduction)
	}
	if !valid {
		return errors.Errorf("shape %s is not valid for reduction %q with %d classes", m.Shape, m.Reduction, m.Classes)
	}
	return nil
}
