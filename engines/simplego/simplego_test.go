// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package simplego

import (
	"path/filepath"
	"testing"

	"github.com/gomlx/vwlearners/engines"
	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const heightData = "|f height:0.23 weight:0.25 width:0.05"

func TestRegistered(t *testing.T) {
	engine, err := engines.NewWithConfig(EngineName)
	require.NoError(t, err)
	require.Equal(t, EngineName, engine.Name())
}

func TestScalarFloat(t *testing.T) {
	e := NewEngine()
	h := must.M1(e.Create("--quiet"))
	require.NotEqual(t, engines.InvalidHandle, h)
	require.Equal(t, engines.ShapeScalarFloat, must.M1(e.OutputShape(h)))
	require.Equal(t, float32(0), must.M1(e.PredictFloat(h, "| ", false)))

	first := must.M1(e.PredictFloat(h, "0.1 "+heightData, true))
	second := must.M1(e.PredictFloat(h, "0.9 "+heightData, true))
	assert.NotEqual(t, first, second)

	// Predicting doesn't change the model.
	p0 := must.M1(e.PredictFloat(h, heightData, false))
	p1 := must.M1(e.PredictFloat(h, "0.5 "+heightData, false))
	assert.Equal(t, p0, p1)
	require.NoError(t, e.Release(h))
	require.Equal(t, 0, e.NumLearners())
}

func TestTwoModels(t *testing.T) {
	e := NewEngine()
	h1 := must.M1(e.Create("--quiet"))
	h2 := must.M1(e.Create("--quiet"))
	require.NotEqual(t, h1, h2)
	for _, line := range []string{"1 | a b", "0 | b c", "1 2 'tagged | a:0.5 c"} {
		p1 := must.M1(e.PredictFloat(h1, line, true))
		p2 := must.M1(e.PredictFloat(h2, line, true))
		require.Equal(t, p1, p2)
	}
	a := must.M1(e.PredictFloat(h1, "-1 | ", false))
	require.NoError(t, e.Release(h1))
	b := must.M1(e.PredictFloat(h2, "-1 | ", false))
	require.NoError(t, e.Release(h2))
	require.InDelta(t, a, b, 1e-6)
}

func TestTestOnly(t *testing.T) {
	e := NewEngine()
	h := must.M1(e.Create("--quiet -t"))
	defer func() { require.NoError(t, e.Release(h)) }()
	for range 3 {
		require.Equal(t, float32(0), must.M1(e.PredictFloat(h, "1 | a b c", true)))
	}
}

func TestSaveAndLoad(t *testing.T) {
	modelPath := filepath.Join(t.TempDir(), "basic.model")
	e := NewEngine()
	h := must.M1(e.Create("--quiet --loss_function logistic --link logistic -f " + modelPath))
	for range 100 {
		must.M1(e.PredictFloat(h, "-1 | ", true))
		must.M1(e.PredictFloat(h, "1 | ", true))
	}
	want := must.M1(e.PredictFloat(h, "| ", false))
	require.Greater(t, want, float32(0))
	require.Less(t, want, float32(1))
	require.NoError(t, e.Release(h))

	h = must.M1(e.Create("--quiet -t -i " + modelPath))
	require.Equal(t, engines.ShapeScalarFloat, must.M1(e.OutputShape(h)))
	require.InDelta(t, want, must.M1(e.PredictFloat(h, "| ", false)), 1e-6)
	require.NoError(t, e.Release(h))

	// Model is scalar, can't be loaded as a multiclass learner.
	_, err := e.Create("--quiet --oaa 3 -i " + modelPath)
	require.Error(t, err)
	_, err = e.Create("--quiet -i " + filepath.Join(t.TempDir(), "missing.model"))
	require.Error(t, err)
}

func TestLoadCorruptedModel(t *testing.T) {
	dir := t.TempDir()
	modelPath := filepath.Join(dir, "oaa.model")
	e := NewEngine()
	h := must.M1(e.Create("--quiet --oaa 3 -b 4 -f " + modelPath))
	must.M1(e.PredictInt(h, "2 | a b", true))
	require.NoError(t, e.Release(h))
	require.NoError(t, must.M1(loadModel(modelPath)).validate())

	tamper := map[string]func(m *model){
		"truncated weights": func(m *model) { m.Weights[1] = m.Weights[1][:3] },
		"missing class":     func(m *model) { m.Weights = m.Weights[:2] },
		"bits":              func(m *model) { m.Bits = 40 },
		"reduction":         func(m *model) { m.Reduction = "search" },
		"shape":             func(m *model) { m.Shape = engines.ShapeIntSequence },
		"unknown shape":     func(m *model) { m.Shape = engines.ShapeTag(17) },
	}
	for name, fn := range tamper {
		t.Run(name, func(t *testing.T) {
			m := must.M1(loadModel(modelPath))
			fn(m)
			tamperedPath := filepath.Join(dir, name+".model")
			require.NoError(t, m.save(tamperedPath))
			_, err := loadModel(tamperedPath)
			require.ErrorContains(t, err, "corrupted model")
			_, err = e.Create("--quiet -t -i " + tamperedPath)
			require.Error(t, err)
		})
	}
	require.Zero(t, e.NumLearners())
}

func TestContextualBandit(t *testing.T) {
	e := NewEngine()
	h := must.M1(e.Create("--cb 4 --quiet"))
	defer func() { require.NoError(t, e.Release(h)) }()
	require.Equal(t, engines.ShapeScalarInt, must.M1(e.OutputShape(h)))
	require.Equal(t, int32(1), must.M1(e.PredictInt(h, "a b c", false)))
	for range 10 {
		must.M1(e.PredictInt(h, "2:-1:0.5 | a b c", true))
	}
	require.Equal(t, int32(2), must.M1(e.PredictInt(h, "| a b c", false)))

	_, err := e.PredictInt(h, "7:1:0.5 | a", true)
	require.Error(t, err, "action out of range")
	_, err = e.PredictInt(h, "2:1:0 | a", true)
	require.Error(t, err, "zero probability")
}

func TestOneAgainstAll(t *testing.T) {
	e := NewEngine()
	h := must.M1(e.Create("--oaa 3 --quiet"))
	defer func() { require.NoError(t, e.Release(h)) }()
	for range 10 {
		must.M1(e.PredictInt(h, "2 | x y", true))
		must.M1(e.PredictInt(h, "3 | z", true))
	}
	require.Equal(t, int32(2), must.M1(e.PredictInt(h, "| x y", false)))
	require.Equal(t, int32(3), must.M1(e.PredictInt(h, "| z", false)))
	_, err := e.PredictInt(h, "4 | x", true)
	require.Error(t, err)
	_, err = e.PredictInt(h, "two | x", true)
	require.Error(t, err)
}

func TestProbabilities(t *testing.T) {
	e := NewEngine()
	h := must.M1(e.Create("--oaa 3 --probabilities --loss_function logistic --quiet"))
	defer func() { require.NoError(t, e.Release(h)) }()
	require.Equal(t, engines.ShapeFloatSequence, must.M1(e.OutputShape(h)))
	for range 10 {
		must.M1(e.PredictFloats(h, "1 | a", true))
	}
	probs := must.M1(e.PredictFloats(h, "| a", false))
	require.Len(t, probs, 3)
	var total float32
	for _, p := range probs {
		total += p
	}
	require.InDelta(t, 1.0, total, 1e-5)
	require.Greater(t, probs[0], probs[1])
}

func TestExploration(t *testing.T) {
	e := NewEngine()
	h := must.M1(e.Create("--cb_explore 4 --epsilon 0.2 --quiet"))
	defer func() { require.NoError(t, e.Release(h)) }()
	probs := must.M1(e.PredictFloats(h, "| a", false))
	require.InDeltaSlice(t, []float32{0.85, 0.05, 0.05, 0.05}, probs, 1e-6)
}

func TestMultilabel(t *testing.T) {
	e := NewEngine()
	h := must.M1(e.Create("--multilabel_oaa 4 --quiet"))
	defer func() { require.NoError(t, e.Release(h)) }()
	require.Equal(t, engines.ShapeIntSequence, must.M1(e.OutputShape(h)))
	require.Empty(t, must.M1(e.PredictInts(h, "| f", false)))
	for range 10 {
		must.M1(e.PredictInts(h, "0,2 | f", true))
	}
	require.Equal(t, []int32{0, 2}, must.M1(e.PredictInts(h, "| f", false)))
	_, err := e.PredictInts(h, "0,9 | f", true)
	require.Error(t, err)
}

func TestErrors(t *testing.T) {
	e := NewEngine()
	_, err := e.Create("-b 40")
	require.Error(t, err)

	h := must.M1(e.Create("--quiet"))
	_, err = e.PredictInt(h, "| a", false)
	require.ErrorIs(t, err, engines.ErrWrongShape)
	_, err = e.PredictFloat(h, "| a:xyz", false)
	require.Error(t, err)
	_, err = e.PredictFloat(h, "abc | a", true)
	require.Error(t, err)
	require.NoError(t, e.Release(h))
	require.ErrorIs(t, e.Release(h), engines.ErrUnknownHandle)
	_, err = e.PredictFloat(h, "| a", false)
	require.ErrorIs(t, err, engines.ErrUnknownHandle)
	_, err = e.OutputShape(h)
	require.ErrorIs(t, err, engines.ErrUnknownHandle)

	// Learners of unknown shape can be created, but not used.
	h = must.M1(e.Create("--search 4 --quiet"))
	require.Equal(t, engines.ShapeUnknown, must.M1(e.OutputShape(h)))
	_, err = e.PredictFloat(h, "| a", false)
	require.ErrorIs(t, err, engines.ErrWrongShape)
	require.NoError(t, e.Release(h))
}
