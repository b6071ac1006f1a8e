// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package learners

import (
	"runtime"
	"sync"

	"github.com/gomlx/vwlearners/engines"
	"github.com/gomlx/vwlearners/pkg/core/handles"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Learner is implemented by the four typed learners: *FloatLearner, *IntLearner, *FloatsLearner and
// *IntsLearner. Use a type switch, As or CreateAs to get to the typed API.
//
// A Learner owns one native handle, released by Close.
type Learner interface {
	// Shape of the learner's output.
	Shape() engines.ShapeTag

	// Handle of the native learner.
	Handle() engines.Handle

	// Command used to create the learner.
	Command() string

	// Close releases the native learner. Closing twice returns an error wrapping handles.ErrNotRegistered.
	Close() error

	// IsClosed returns whether the learner was closed, or released by Factory.Shutdown.
	IsClosed() bool

	base() *owner
}

// owner holds the handle of a learner, and is shared by the typed variants.
type owner struct {
	factory *Factory
	handle  engines.Handle
	command string
	shape   engines.ShapeTag

	// mu serializes the native calls on the handle, Close and the release by Factory.Shutdown.
	mu     sync.Mutex
	closed bool
}

func (o *owner) base() *owner { return o }

// Shape implements Learner.
func (o *owner) Shape() engines.ShapeTag { return o.shape }

// Handle implements Learner.
func (o *owner) Handle() engines.Handle { return o.handle }

// Command implements Learner.
func (o *owner) Command() string { return o.command }

// IsClosed implements Learner.
func (o *owner) IsClosed() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.isClosedLocked()
}

func (o *owner) isClosedLocked() bool {
	if o.closed {
		return true
	}
	_, found := o.factory.registry.Lookup(o.handle)
	return !found
}

// Close implements Learner.
//
// The handle is unregistered before the native learner is released. If it is not registered (the learner was
// already closed, or released by Factory.Shutdown) it returns an error wrapping handles.ErrNotRegistered, and
// nothing else happens.
func (o *owner) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return errors.Wrapf(handles.ErrNotRegistered, "learner with handle %d and command %q already closed",
			o.handle, o.command)
	}
	if _, err := o.factory.registry.Unregister(o.handle); err != nil {
		o.markClosedLocked()
		return errors.WithMessagef(err, "closing learner with command %q", o.command)
	}
	o.factory.owners.Delete(o.handle)
	o.markClosedLocked()
	if err := o.factory.engine.Release(o.handle); err != nil {
		return errors.WithMessagef(err, "releasing learner with handle %d and command %q", o.handle, o.command)
	}
	klog.V(1).Infof("Closed learner with handle %d and command %q", o.handle, o.command)
	return nil
}

func (o *owner) markClosedLocked() {
	o.closed = true
	runtime.SetFinalizer(o, nil)
}

// finalizeOwner releases learners garbage collected without being closed.
func finalizeOwner(o *owner) {
	if o.closed {
		return
	}
	if _, err := o.factory.registry.Unregister(o.handle); err != nil {
		// Released by Factory.Shutdown.
		return
	}
	o.factory.owners.Delete(o.handle)
	klog.Warningf("Learner with handle %d and command %q was garbage collected without being closed, releasing it",
		o.handle, o.command)
	if err := o.factory.engine.Release(o.handle); err != nil {
		klog.Errorf("Failed to release leaked learner with handle %d: %+v", o.handle, err)
	}
}

// run calls fn, one of the engine's shape-specific methods, on the learner's handle, holding the learner's lock.
func run[T any](o *owner, example string, learn bool, fn func(engines.Handle, string, bool) (T, error)) (T, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.isClosedLocked() {
		var zero T
		return zero, errors.Wrapf(ErrClosed, "learner with handle %d and command %q", o.handle, o.command)
	}
	return fn(o.handle, example, learn)
}

// FloatLearner is a learner whose output is a scalar float: regression and binary classification.
type FloatLearner struct{ *owner }

// Learn updates the learner with the labeled example, and returns the prediction made before the update.
func (l *FloatLearner) Learn(example string) (float32, error) {
	return run(l.owner, example, true, l.factory.engine.PredictFloat)
}

// Predict returns the prediction for the example, without updating the learner.
func (l *FloatLearner) Predict(example string) (float32, error) {
	return run(l.owner, example, false, l.factory.engine.PredictFloat)
}

// IntLearner is a learner whose output is a scalar int: multiclass classification, cost-sensitive
// classification and contextual bandits. Classes and actions are 1-based.
type IntLearner struct{ *owner }

// Learn updates the learner with the labeled example, and returns the prediction made before the update.
func (l *IntLearner) Learn(example string) (int32, error) {
	return run(l.owner, example, true, l.factory.engine.PredictInt)
}

// Predict returns the prediction for the example, without updating the learner.
func (l *IntLearner) Predict(example string) (int32, error) {
	return run(l.owner, example, false, l.factory.engine.PredictInt)
}

// FloatsLearner is a learner whose output is a sequence of floats: per-class probabilities, or the
// exploration distribution over actions.
type FloatsLearner struct{ *owner }

// Learn updates the learner with the labeled example, and returns the prediction made before the update.
func (l *FloatsLearner) Learn(example string) ([]float32, error) {
	return run(l.owner, example, true, l.factory.engine.PredictFloats)
}

// Predict returns the prediction for the example, without updating the learner.
func (l *FloatsLearner) Predict(example string) ([]float32, error) {
	return run(l.owner, example, false, l.factory.engine.PredictFloats)
}

// IntsLearner is a learner whose output is a sequence of ints: multilabel classification (0-based labels).
type IntsLearner struct{ *owner }

// Learn updates the learner with the labeled example, and returns the prediction made before the update.
func (l *IntsLearner) Learn(example string) ([]int32, error) {
	return run(l.owner, example, true, l.factory.engine.PredictInts)
}

// Predict returns the prediction for the example, without updating the learner.
func (l *IntsLearner) Predict(example string) ([]int32, error) {
	return run(l.owner, example, false, l.factory.engine.PredictInts)
}

var (
	_ Learner = &FloatLearner{}
	_ Learner = &IntLearner{}
	_ Learner = &FloatsLearner{}
	_ Learner = &IntsLearner{}
)
