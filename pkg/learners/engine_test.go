// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package learners

import (
	"sync"
	"sync/atomic"

	"github.com/gomlx/vwlearners/engines"
	"github.com/gomlx/vwlearners/engines/vwargs"
	"github.com/pkg/errors"
)

// fakeEngine counts calls, and can be configured to misbehave.
// The shape of the learners is taken from the command, as the real engines do.
type fakeEngine struct {
	mu sync.Mutex

	// Configuration.
	fixedHandle  engines.Handle
	createErr    error
	shapeErr     error
	releaseErr   error
	releasePanic bool
	needsLoad    bool

	// If set, PredictFloat sends to predictStarted and then waits for unblockPredict to be closed.
	predictStarted chan struct{}
	unblockPredict chan struct{}

	inFlight         atomic.Int32
	releasedInFlight atomic.Bool

	lastHandle engines.Handle
	loaded     bool
	creates    int
	live       map[engines.Handle]string
	releases   map[engines.Handle]int
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{
		live:     make(map[engines.Handle]string),
		releases: make(map[engines.Handle]int),
	}
}

func (e *fakeEngine) Name() string { return "fake" }

func (e *fakeEngine) Create(command string) (engines.Handle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.creates++
	if e.needsLoad && !e.loaded {
		return engines.InvalidHandle, errors.Wrap(engines.ErrNotLoaded, "fake")
	}
	if e.createErr != nil {
		return engines.InvalidHandle, e.createErr
	}
	handle := e.fixedHandle
	if handle == engines.InvalidHandle {
		e.lastHandle++
		handle = e.lastHandle
	}
	e.live[handle] = command
	return handle, nil
}

func (e *fakeEngine) OutputShape(handle engines.Handle) (engines.ShapeTag, error) {
	e.mu.Lock()
	command, found := e.live[handle]
	e.mu.Unlock()
	if e.shapeErr != nil {
		return engines.ShapeUnknown, e.shapeErr
	}
	if !found {
		return engines.ShapeUnknown, errors.WithStack(engines.ErrUnknownHandle)
	}
	args, err := vwargs.Parse(command)
	if err != nil {
		return engines.ShapeUnknown, err
	}
	return args.Shape(), nil
}

func (e *fakeEngine) Release(handle engines.Handle) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.inFlight.Load() > 0 {
		e.releasedInFlight.Store(true)
	}
	e.releases[handle]++
	delete(e.live, handle)
	if e.releasePanic {
		panic("fake engine release panic")
	}
	return e.releaseErr
}

func (e *fakeEngine) numReleases(handle engines.Handle) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.releases[handle]
}

func (e *fakeEngine) numCreates() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.creates
}

func (e *fakeEngine) check(handle engines.Handle) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, found := e.live[handle]; !found {
		return errors.Wrapf(engines.ErrUnknownHandle, "fake handle %d", handle)
	}
	return nil
}

func (e *fakeEngine) PredictFloat(handle engines.Handle, example string, _ bool) (float32, error) {
	e.inFlight.Add(1)
	defer e.inFlight.Add(-1)
	if e.predictStarted != nil {
		e.predictStarted <- struct{}{}
		<-e.unblockPredict
	}
	return float32(len(example)), e.check(handle)
}

func (e *fakeEngine) PredictInt(handle engines.Handle, example string, _ bool) (int32, error) {
	return int32(len(example)), e.check(handle)
}

func (e *fakeEngine) PredictFloats(handle engines.Handle, example string, _ bool) ([]float32, error) {
	return []float32{float32(len(example))}, e.check(handle)
}

func (e *fakeEngine) PredictInts(handle engines.Handle, example string, _ bool) ([]int32, error) {
	return []int32{int32(len(example))}, e.check(handle)
}

// loadingEngine is a fakeEngine that needs loading before creating learners.
type loadingEngine struct {
	*fakeEngine
	loader engines.Loader
	loads  int
}

func newLoadingEngine(loadErr error) *loadingEngine {
	e := &loadingEngine{fakeEngine: newFakeEngine()}
	e.needsLoad = true
	e.loader = engines.OnceLoader(func() error {
		e.mu.Lock()
		defer e.mu.Unlock()
		e.loads++
		if loadErr != nil {
			return loadErr
		}
		e.loaded = true
		return nil
	})
	return e
}

func (e *loadingEngine) Load() error { return e.loader.Load() }
