// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package engines

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// configEngine is an Engine that only records its name and configuration.
type configEngine struct {
	name, config string
}

func (e *configEngine) Name() string { return e.name }
func (e *configEngine) Create(string) (Handle, error) {
	return InvalidHandle, errors.New("not implemented")
}
func (e *configEngine) OutputShape(Handle) (ShapeTag, error) { return ShapeUnknown, nil }
func (e *configEngine) Release(Handle) error                 { return nil }
func (e *configEngine) PredictFloat(Handle, string, bool) (float32, error) {
	return 0, nil
}
func (e *configEngine) PredictInt(Handle, string, bool) (int32, error) { return 0, nil }
func (e *configEngine) PredictFloats(Handle, string, bool) ([]float32, error) {
	return nil, nil
}
func (e *configEngine) PredictInts(Handle, string, bool) ([]int32, error) { return nil, nil }

func registerTestEngines() {
	for _, name := range []string{"test_a", "test_b"} {
		Register(name, func(config string) (Engine, error) {
			return &configEngine{name: name, config: config}, nil
		})
	}
	Register("test_failing", func(config string) (Engine, error) {
		return nil, errors.Errorf("can't initialize with %q", config)
	})
}

func TestNewWithConfig(t *testing.T) {
	registerTestEngines()
	assert.Subset(t, List(), []string{"test_a", "test_b", "test_failing"})

	engine, err := NewWithConfig("test_b:/some/path")
	require.NoError(t, err)
	require.Equal(t, "test_b", engine.Name())
	require.Equal(t, "/some/path", engine.(*configEngine).config)

	engine, err = NewWithConfig("test_a")
	require.NoError(t, err)
	require.Equal(t, "test_a", engine.Name())
	require.Equal(t, "", engine.(*configEngine).config)

	_, err = NewWithConfig("missing:xyz")
	require.ErrorContains(t, err, `can't find engine "missing"`)

	_, err = NewWithConfig("test_failing:abc")
	require.ErrorContains(t, err, `engine "test_failing"`)
	require.Panics(t, func() { MustNewWithConfig("test_failing") })
}

func TestNewFromEnvironment(t *testing.T) {
	registerTestEngines()
	t.Setenv(VWLEARNERS_ENGINE, "test_b:from_env")
	engine, err := New()
	require.NoError(t, err)
	require.Equal(t, "test_b", engine.Name())
	require.Equal(t, "from_env", engine.(*configEngine).config)

	t.Setenv(VWLEARNERS_ENGINE, "test_failing:from_env")
	err = exceptions.TryCatch[error](func() { MustNew() })
	require.ErrorContains(t, err, "failed to create default engine")
	require.ErrorContains(t, err, `can't initialize with "from_env"`)
}

func TestOnceLoader(t *testing.T) {
	var calls atomic.Int32
	loadErr := errors.New("library not found")
	loader := OnceLoader(func() error {
		calls.Add(1)
		return loadErr
	})
	var wg sync.WaitGroup
	for range 64 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.ErrorIs(t, loader.Load(), loadErr)
		}()
	}
	wg.Wait()
	require.Equal(t, int32(1), calls.Load())
}

func TestShapeTag(t *testing.T) {
	require.Equal(t, "ScalarFloat", ShapeScalarFloat.String())
	require.Equal(t, "IntSequence", ShapeIntSequence.String())
	require.Equal(t, "ShapeTag(17)", ShapeTag(17).String())
	require.False(t, ShapeTag(17).IsAShapeTag())
	for _, shape := range ShapeTagValues() {
		parsed, err := ShapeTagString(shape.String())
		require.NoError(t, err)
		require.Equal(t, shape, parsed)
	}
	parsed, err := ShapeTagString("floatsequence")
	require.NoError(t, err)
	require.Equal(t, ShapeFloatSequence, parsed)
	_, err = ShapeTagString("tensor")
	require.Error(t, err)
}
