// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package learners creates typed learners from VW-style command lines, and makes sure their native
// resources are released exactly once.
//
// A Factory wraps an engines.Engine. Factory.Create instantiates the native learner, asks the engine for its
// output shape and returns the matching typed Learner:
//
//   - ScalarFloat: *FloatLearner
//   - ScalarInt: *IntLearner
//   - FloatSequence: *FloatsLearner
//   - IntSequence: *IntsLearner
//
// Every open learner is tracked in the factory's handles.Registry until it is closed. Learners should be
// closed explicitly, typically with `defer learner.Close()`, or by using With. As a last line of defense,
// learners that are garbage collected without being closed are released by a finalizer, and Factory.Shutdown
// (see also ReapOnSignal) releases everything still open when the program ends.
//
// Example:
//
//	factory := learners.NewFactory(engines.MustNew())
//	defer factory.Shutdown()
//	learner, err := learners.CreateAs[*learners.FloatLearner](factory, "--quiet")
//	if err != nil { ... }
//	defer learner.Close()
//	prediction, err := learner.Learn("0.1 |f height:0.23 weight:0.25 width:0.05")
package learners

import (
	"runtime"
	"sync"
	"weak"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/vwlearners/engines"
	"github.com/gomlx/vwlearners/pkg/core/handles"
	"github.com/gomlx/vwlearners/pkg/support/xsync"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Factory creates learners on one engine, and keeps track of them until they are closed.
//
// It is safe for concurrent use.
type Factory struct {
	engine         engines.Engine
	registry       *handles.Registry
	leakFinalizers bool

	// owners of the open handles, so Shutdown can wait for their in-flight calls. The pointers are
	// weak so the leak finalizers still run.
	owners xsync.SyncMap[engines.Handle, weak.Pointer[owner]]

	// muCreate is held for read during Create, and for write when triggering shutdown, so no
	// learner is registered after the shutdown drain starts.
	muCreate sync.RWMutex
	shutdown *xsync.Latch
}

// Option for NewFactory.
type Option func(f *Factory)

// WithRegistry sets the registry where the open handles are kept. The default is a new handles.Registry
// named after the engine.
func WithRegistry(registry *handles.Registry) Option {
	return func(f *Factory) {
		f.registry = registry
	}
}

// WithLeakFinalizers sets whether learners garbage collected without being closed are released
// (and a warning is logged). Default is true.
func WithLeakFinalizers(enabled bool) Option {
	return func(f *Factory) {
		f.leakFinalizers = enabled
	}
}

// NewFactory returns a Factory creating learners on the given engine.
func NewFactory(engine engines.Engine, opts ...Option) *Factory {
	f := &Factory{
		engine:         engine,
		leakFinalizers: true,
		shutdown:       xsync.NewLatch(),
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.registry == nil {
		f.registry = handles.New(handles.WithName(engine.Name()))
	}
	return f
}

// Engine used by the factory.
func (f *Factory) Engine() engines.Engine { return f.engine }

// Registry of open handles of the factory.
func (f *Factory) Registry() *handles.Registry { return f.registry }

// Snapshot returns a copy of the open handles and the commands that created them.
func (f *Factory) Snapshot() map[engines.Handle]string { return f.registry.Snapshot() }

// Create instantiates a learner from the command line, and returns the typed Learner matching its
// output shape. The learner must be closed when no longer needed.
//
// All errors are fatal for the command (see IsFatal), except ErrShutdown. Nothing is left open
// when an error is returned, except on ErrHandleCollision, where the handle belongs to another learner.
func (f *Factory) Create(command string) (Learner, error) {
	f.muCreate.RLock()
	defer f.muCreate.RUnlock()
	if f.shutdown.Test() {
		return nil, errors.Wrapf(ErrShutdown, "can't create learner with command %q", command)
	}

	handle, err := f.createHandle(command)
	if err != nil {
		return nil, err
	}
	if err := f.registry.Register(handle, command); err != nil {
		klog.Errorf("Engine %q returned handle %d for command %q, but it is already open: %v",
			f.engine.Name(), handle, command, err)
		return nil, errors.Wrapf(ErrHandleCollision, "handle %d, command %q", handle, command)
	}

	shape, err := f.engine.OutputShape(handle)
	if err != nil {
		f.discard(handle, command)
		return nil, errors.Wrapf(ErrShapeQuery, "command %q: %v", command, err)
	}

	o := &owner{factory: f, handle: handle, command: command, shape: shape}
	var learner Learner
	switch shape {
	case engines.ShapeScalarFloat:
		learner = &FloatLearner{o}
	case engines.ShapeScalarInt:
		learner = &IntLearner{o}
	case engines.ShapeFloatSequence:
		learner = &FloatsLearner{o}
	case engines.ShapeIntSequence:
		learner = &IntsLearner{o}
	default:
		f.discard(handle, command)
		return nil, errors.Wrapf(ErrUnknownShape, "command %q (shape %s)", command, shape)
	}
	f.owners.Store(handle, weak.Make(o))
	if f.leakFinalizers {
		runtime.SetFinalizer(o, finalizeOwner)
	}
	klog.V(1).Infof("Created learner with handle %d and command %q", handle, command)
	return learner, nil
}

// createHandle calls the engine to create the learner. If the engine's library is not loaded yet, it loads
// it and retries once.
func (f *Factory) createHandle(command string) (engines.Handle, error) {
	handle, err := f.engine.Create(command)
	if err != nil && errors.Is(err, engines.ErrNotLoaded) {
		if loader, ok := f.engine.(engines.Loader); ok {
			if loadErr := loader.Load(); loadErr != nil {
				return engines.InvalidHandle, errors.Wrapf(ErrEngineLoad, "engine %q: %v", f.engine.Name(), loadErr)
			}
			handle, err = f.engine.Create(command)
		}
	}
	if err != nil {
		return engines.InvalidHandle, errors.Wrapf(ErrEngineCreate, "engine %q, command %q: %v",
			f.engine.Name(), command, err)
	}
	if handle == engines.InvalidHandle {
		return engines.InvalidHandle, errors.Wrapf(ErrEngineCreate, "engine %q returned an invalid handle for command %q",
			f.engine.Name(), command)
	}
	return handle, nil
}

// discard unregisters and releases a handle that won't be handed to the caller.
// Failures are only logged, so they don't hide the error that caused the discard.
func (f *Factory) discard(handle engines.Handle, command string) {
	if _, err := f.registry.Unregister(handle); err != nil {
		klog.Errorf("Failed to unregister discarded handle %d (command %q): %v", handle, command, err)
		return
	}
	if err := f.engine.Release(handle); err != nil {
		klog.Errorf("Failed to release discarded handle %d (command %q): %v", handle, command, err)
	}
}

// MustCreate is like Create, but panics on error.
func (f *Factory) MustCreate(command string) Learner {
	learner, err := f.Create(command)
	if err != nil {
		exceptions.Panicf("failed to create learner with command %q: %+v", command, err)
	}
	return learner
}

// CreateAs creates a learner and converts it to the requested type.
//
// If the learner created is of a different type, it is closed and an error wrapping ErrShapeMismatch is returned.
func CreateAs[T Learner](f *Factory, command string) (T, error) {
	var zero T
	learner, err := f.Create(command)
	if err != nil {
		return zero, err
	}
	typed, err := As[T](learner)
	if err != nil {
		if closeErr := learner.Close(); closeErr != nil {
			klog.Errorf("Failed to close mismatched learner created with command %q: %+v", command, closeErr)
		}
		return zero, err
	}
	return typed, nil
}

// MustCreateAs is like CreateAs, but panics on error.
func MustCreateAs[T Learner](f *Factory, command string) T {
	typed, err := CreateAs[T](f, command)
	if err != nil {
		exceptions.Panicf("failed to create %T learner with command %q: %+v", typed, command, err)
	}
	return typed
}

// As converts the learner to the requested type, or returns an error wrapping ErrShapeMismatch.
func As[T Learner](learner Learner) (T, error) {
	typed, ok := learner.(T)
	if !ok {
		var zero T
		return zero, errors.Wrapf(ErrShapeMismatch, "learner with command %q has output shape %s (%T), not %T",
			learner.Command(), learner.Shape(), learner, zero)
	}
	return typed, nil
}

// With creates a learner, calls fn with it and closes it afterward, even if fn panics.
// If fn succeeds, the error of closing the learner is returned.
func With(f *Factory, command string, fn func(learner Learner) error) (err error) {
	learner, err := f.Create(command)
	if err != nil {
		return err
	}
	defer func() {
		closeErr := learner.Close()
		if closeErr == nil {
			return
		}
		if err == nil {
			err = closeErr
		} else {
			klog.Errorf("Failed to close learner with command %q: %+v", command, closeErr)
		}
	}()
	return fn(learner)
}
