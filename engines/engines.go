// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package engines defines the interface to the native learning engines used by vwlearners, and
// a registry of engine constructors.
//
// An Engine is the foreign-function boundary: it creates native learner instances from a VW-style
// command line, reports the output shape of each instance and releases them. Every call may fail,
// and callers are expected to treat failures as fatal for the operation at hand.
//
// Engines register themselves during initialization, so to make one available simply import it:
//
//	import _ "github.com/gomlx/vwlearners/engines/simplego"
package engines

import (
	"os"
	"slices"
	"strings"
	"sync"

	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"
)

// Handle is an opaque identifier for one live native learner instance.
// It is only produced by Engine.Create, and it is only valid until Engine.Release is called on it.
type Handle uintptr

// InvalidHandle is never returned by a successful Engine.Create.
const InvalidHandle = Handle(0)

// ShapeTag classifies the output type of a native learner instance.
// It is immutable for the lifetime of a Handle.
type ShapeTag int

//go:generate go tool enumer -type=ShapeTag -trimprefix=Shape -output=gen_shapetag_enumer.go engines.go

const (
	// ShapeUnknown is reported when the engine can't tell (or doesn't support) the output of the learner.
	ShapeUnknown ShapeTag = iota
	ShapeScalarFloat
	ShapeScalarInt
	ShapeFloatSequence
	ShapeIntSequence
)

// Engine is the API a native learning engine needs to implement to be used by vwlearners.
//
// Implementations must be safe for concurrent use across different handles. Calls on the same handle are
// serialized by the caller.
type Engine interface {
	// Name returns the short name of the engine. E.g.: "vw" for the native Vowpal Wabbit library.
	Name() string

	// Create instantiates a native learner from the command line. If the engine requires a native library that
	// was not loaded yet, it returns an error wrapping ErrNotLoaded.
	Create(command string) (Handle, error)

	// OutputShape returns the ShapeTag of the learner created with the given handle.
	OutputShape(handle Handle) (ShapeTag, error)

	// Release frees the native learner. The handle must not be used afterward.
	Release(handle Handle) error

	// PredictFloat runs the example through a ShapeScalarFloat learner. If learn is true the learner is also
	// updated, and the prediction returned is the one made before the update.
	PredictFloat(handle Handle, example string, learn bool) (float32, error)

	// PredictInt is like PredictFloat, for ShapeScalarInt learners.
	PredictInt(handle Handle, example string, learn bool) (int32, error)

	// PredictFloats is like PredictFloat, for ShapeFloatSequence learners.
	PredictFloats(handle Handle, example string, learn bool) ([]float32, error)

	// PredictInts is like PredictFloat, for ShapeIntSequence learners.
	PredictInts(handle Handle, example string, learn bool) ([]int32, error)
}

// Loader is implemented by engines that need to load a native library before creating learners.
//
// Load must be idempotent and safe for concurrent use: it is expected to do the actual loading at most once
// per process, and return the same result afterward.
type Loader interface {
	Load() error
}

var (
	// ErrNotLoaded is returned (wrapped) by Engine.Create if the engine's native library has not been loaded yet.
	ErrNotLoaded = errors.New("native library not loaded")

	// ErrUnknownHandle is returned (wrapped) by engines when given a handle they didn't create or already released.
	ErrUnknownHandle = errors.New("unknown handle")

	// ErrWrongShape is returned (wrapped) when a shape-specific call is made on a learner of a different shape.
	ErrWrongShape = errors.New("wrong output shape")
)

type onceLoader struct {
	load func() error
}

func (l onceLoader) Load() error { return l.load() }

// OnceLoader returns a Loader that calls load exactly once, no matter how many goroutines call Load
// concurrently, and returns its result on every call.
func OnceLoader(load func() error) Loader {
	return onceLoader{load: sync.OnceValue(load)}
}

// Constructor takes a config string (optionally empty) and returns an Engine.
type Constructor func(config string) (Engine, error)

var (
	muConstructors         sync.Mutex
	registeredConstructors = make(map[string]Constructor)
	firstRegistered        string
)

// Register engine with the given name, and a default constructor that takes as input a configuration string that is
// passed along to the engine constructor.
//
// To be safe, call Register during initialization of a package.
func Register(name string, constructor Constructor) {
	muConstructors.Lock()
	defer muConstructors.Unlock()
	if len(registeredConstructors) == 0 {
		firstRegistered = name
	}
	registeredConstructors[name] = constructor
}

// List returns the names of the registered engines, sorted.
func List() []string {
	muConstructors.Lock()
	defer muConstructors.Unlock()
	names := make([]string, 0, len(registeredConstructors))
	for name := range registeredConstructors {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// DefaultConfig is the name of the default engine configuration to use if specified.
//
// See NewWithConfig for the format of the configuration string.
var DefaultConfig string

// VWLEARNERS_ENGINE is the environment variable with the default engine configuration to use.
//
// The format of config is "<engine_name>:<engine_configuration>".
// The "<engine_name>" is the name of a registered engine (e.g.: "vw") and
// "<engine_configuration>" is engine specific (e.g.: for the vw engine, the path to the native library).
const VWLEARNERS_ENGINE = "VWLEARNERS_ENGINE"

// New returns a new default Engine.
//
// The default is:
//
// 1. The environment VWLEARNERS_ENGINE is used as a configuration if defined.
// 2. Next the variable DefaultConfig is used as a configuration if defined.
// 3. The first registered engine is used with an empty configuration.
func New() (Engine, error) {
	config, found := os.LookupEnv(VWLEARNERS_ENGINE)
	if found {
		return NewWithConfig(config)
	}
	if DefaultConfig != "" {
		return NewWithConfig(DefaultConfig)
	}
	return NewWithConfig("")
}

// MustNew is like New, but panics with an error in case of failure.
func MustNew() Engine {
	engine, err := New()
	if err != nil {
		exceptions.Panicf("failed to create default engine: %+v", err)
	}
	return engine
}

// NewWithConfig takes a configurations string formated as "<engine_name>:<engine_configuration>".
// If the configuration has no ":", it is taken as the engine name, with an empty engine configuration.
// An empty config selects the first registered engine.
func NewWithConfig(config string) (Engine, error) {
	muConstructors.Lock()
	if len(registeredConstructors) == 0 {
		muConstructors.Unlock()
		return nil, errors.Errorf(`no registered engines for vwlearners -- maybe import the default one with import _ "github.com/gomlx/vwlearners/engines/simplego"?`)
	}
	engineName, engineConfig := firstRegistered, ""
	if config != "" {
		engineName = config
		if idx := strings.Index(config, ":"); idx != -1 {
			engineName = config[:idx]
			engineConfig = config[idx+1:]
		}
	}
	constructor, found := registeredConstructors[engineName]
	muConstructors.Unlock()
	if !found {
		return nil, errors.Errorf("can't find engine %q for configuration %q given, registered engines: %q",
			engineName, config, List())
	}
	engine, err := constructor(engineConfig)
	if err != nil {
		return nil, errors.WithMessagef(err, "engine %q", engineName)
	}
	return engine, nil
}

// MustNewWithConfig is like NewWithConfig, but panics in case of failure.
func MustNewWithConfig(config string) Engine {
	engine, err := NewWithConfig(config)
	if err != nil {
		exceptions.Panicf("failed to create engine with config %q: %+v", config, err)
	}
	return engine
}
