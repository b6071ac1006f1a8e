// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package simplego implements a simple, and not very smart, but very portable engine for vwlearners.
//
// It learns linear models over hashed features, with a handful of VW reductions (--oaa, --csoaa, --cb,
// --cb_explore, --multilabel_oaa) layered on top, enough to exercise every output shape. It is
// deterministic: two learners created from the same command, fed the same examples, produce the same predictions.
//
// It's meant for tests and for environments where the native VW library is not available.
package simplego

import (
	"sync"
	"sync/atomic"

	"github.com/gomlx/vwlearners/engines"
	"github.com/gomlx/vwlearners/engines/vwargs"
	"github.com/gomlx/vwlearners/pkg/support/xsync"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// EngineName to be used in VWLEARNERS_ENGINE to specify this engine.
const EngineName = "simplego"

// Registers New() as the default constructor for "simplego" engine.
func init() {
	engines.Register(EngineName, New)
}

// New constructs a new SimpleGo Engine.
// There are no configurations, the string is simply ignored.
func New(_ string) (engines.Engine, error) {
	return NewEngine(), nil
}

// NewEngine returns a new SimpleGo engine. Each engine has its own handle space.
func NewEngine() *Engine {
	return &Engine{}
}

// Engine implements the engines.Engine interface.
type Engine struct {
	lastHandle atomic.Uintptr
	learners   xsync.SyncMap[engines.Handle, *learner]
}

// Compile-time check that simplego.Engine implements engines.Engine.
var _ engines.Engine = &Engine{}

// learner is one instance created by Engine.Create.
type learner struct {
	mu    sync.Mutex
	args  *vwargs.Args
	model *model
}

// Name implements engines.Engine.
func (e *Engine) Name() string { return EngineName }

// Create implements engines.Engine.
func (e *Engine) Create(command string) (engines.Handle, error) {
	args, err := vwargs.Parse(command)
	if err != nil {
		return engines.InvalidHandle, err
	}
	var m *model
	if args.InitialRegressor != "" {
		m, err = loadModel(args.InitialRegressor)
		if err != nil {
			return engines.InvalidHandle, err
		}
		if args.HasReduction() && args.Shape() != m.Shape {
			return engines.InvalidHandle, errors.Errorf(
				"command %q requires a %s learner, but the model in %q is %s",
				command, args.Shape(), args.InitialRegressor, m.Shape)
		}
		if args.IsSet("learning_rate") {
			m.LearningRate = args.LearningRate
		}
	} else {
		m = newModel(args)
	}
	handle := engines.Handle(e.lastHandle.Add(1))
	e.learners.Store(handle, &learner{args: args, model: m})
	if !args.Quiet {
		klog.Infof("simplego: created %s learner #%d: %d bits, %d class(es)", m.Shape, handle, m.Bits, m.Classes)
	}
	return handle, nil
}

func (e *Engine) get(handle engines.Handle) (*learner, error) {
	l, found := e.learners.Load(handle)
	if !found {
		return nil, errors.Wrapf(engines.ErrUnknownHandle, "simplego: handle %d", handle)
	}
	return l, nil
}

// OutputShape implements engines.Engine.
func (e *Engine) OutputShape(handle engines.Handle) (engines.ShapeTag, error) {
	l, err := e.get(handle)
	if err != nil {
		return engines.ShapeUnknown, err
	}
	return l.model.Shape, nil
}

// Release implements engines.Engine.
// If the learner was created with -f (--final_regressor), the model is saved before it is released.
func (e *Engine) Release(handle engines.Handle) error {
	l, found := e.learners.LoadAndDelete(handle)
	if !found {
		return errors.Wrapf(engines.ErrUnknownHandle, "simplego: release of handle %d", handle)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.args.FinalRegressor != "" {
		if err := l.model.save(l.args.FinalRegressor); err != nil {
			return errors.WithMessagef(err, "simplego: released handle %d, but failed to save model", handle)
		}
	}
	return nil
}

// run parses the example and calls fn with the learner locked.
func (e *Engine) run(handle engines.Handle, shape engines.ShapeTag, exampleLine string, learn bool,
	fn func(m *model, ex *example, learn bool) error) error {
	l, err := e.get(handle)
	if err != nil {
		return err
	}
	if l.model.Shape != shape {
		return errors.Wrapf(engines.ErrWrongShape, "simplego: handle %d is a %s learner, %s requested",
			handle, l.model.Shape, shape)
	}
	ex, err := parseExample(exampleLine, l.model.Bits)
	if err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	learn = learn && !l.args.TestOnly && ex.hasLabel
	return fn(l.model, ex, learn)
}

// PredictFloat implements engines.Engine.
func (e *Engine) PredictFloat(handle engines.Handle, line string, learn bool) (prediction float32, err error) {
	err = e.run(handle, engines.ShapeScalarFloat, line, learn, func(m *model, ex *example, learn bool) error {
		prediction, err = m.scalar(ex, learn)
		return err
	})
	return
}

// PredictInt implements engines.Engine.
func (e *Engine) PredictInt(handle engines.Handle, line string, learn bool) (prediction int32, err error) {
	err = e.run(handle, engines.ShapeScalarInt, line, learn, func(m *model, ex *example, learn bool) error {
		prediction, err = m.multiclass(ex, learn)
		return err
	})
	return
}

// PredictFloats implements engines.Engine.
func (e *Engine) PredictFloats(handle engines.Handle, line string, learn bool) (prediction []float32, err error) {
	err = e.run(handle, engines.ShapeFloatSequence, line, learn, func(m *model, ex *example, learn bool) error {
		prediction, err = m.distribution(ex, learn)
		return err
	})
	return
}

// PredictInts implements engines.Engine.
func (e *Engine) PredictInts(handle engines.Handle, line string, learn bool) (prediction []int32, err error) {
	err = e.run(handle, engines.ShapeIntSequence, line, learn, func(m *model, ex *example, learn bool) error {
		prediction, err = m.multilabel(ex, learn)
		return err
	})
	return
}

// NumLearners returns the number of learners created and not yet released.
func (e *Engine) NumLearners() (count int) {
	e.learners.Range(func(engines.Handle, *learner) bool {
		count++
		return true
	})
	return
}
