// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package handles

import (
	"fmt"
	"sync"
	"testing"

	"github.com/gomlx/vwlearners/engines"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry(t *testing.T) {
	r := New(WithName("test"))
	require.Equal(t, "test", r.Name())
	require.True(t, r.IsEmpty())

	require.NoError(t, r.Register(1, "--quiet"))
	require.NoError(t, r.Register(2, "--oaa 3"))
	require.Equal(t, 2, r.Len())
	command, found := r.Lookup(2)
	require.True(t, found)
	require.Equal(t, "--oaa 3", command)

	// Duplicates fail without changing the registry.
	err := r.Register(1, "--cb 4")
	require.ErrorIs(t, err, ErrAlreadyRegistered)
	require.Equal(t, map[engines.Handle]string{1: "--quiet", 2: "--oaa 3"}, r.Snapshot())

	command, err = r.Unregister(1)
	require.NoError(t, err)
	require.Equal(t, "--quiet", command)
	_, err = r.Unregister(1)
	require.ErrorIs(t, err, ErrNotRegistered)
	_, found = r.Lookup(1)
	require.False(t, found)
	require.Equal(t, 1, r.Len())

	// Handle values can be reused once unregistered.
	require.NoError(t, r.Register(1, "--cb 4"))
	require.Equal(t, map[engines.Handle]string{1: "--cb 4", 2: "--oaa 3"}, r.Snapshot())
}

func TestSnapshotIsACopy(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(7, "--quiet"))
	snapshot := r.Snapshot()
	delete(snapshot, 7)
	snapshot[8] = "--oaa 2"
	require.Equal(t, map[engines.Handle]string{7: "--quiet"}, r.Snapshot())
}

func TestConcurrentRegistrations(t *testing.T) {
	const numHandles = 200
	r := New()
	var wg sync.WaitGroup
	errs := make(chan error, 2*numHandles)
	for i := range numHandles {
		wg.Add(2)
		h := engines.Handle(i + 1)
		go func() {
			defer wg.Done()
			errs <- r.Register(h, fmt.Sprintf("--quiet --id %d", h))
		}()
		// Every handle registered twice concurrently: exactly one must fail.
		go func() {
			defer wg.Done()
			errs <- r.Register(h, "--duplicate")
		}()
	}
	wg.Wait()
	close(errs)
	var failures int
	for err := range errs {
		if err != nil {
			require.ErrorIs(t, err, ErrAlreadyRegistered)
			failures++
		}
	}
	require.Equal(t, numHandles, failures)
	require.Equal(t, numHandles, r.Len())
	require.Len(t, r.Snapshot(), numHandles)

	// Concurrent unregistration.
	for i := range numHandles {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := r.Unregister(engines.Handle(i + 1))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	require.True(t, r.IsEmpty())
	require.Empty(t, r.Snapshot())
}

func TestDrain(t *testing.T) {
	r := New()
	for i := range 10 {
		require.NoError(t, r.Register(engines.Handle(i+1), fmt.Sprintf("cmd %d", i+1)))
	}
	drained := make(map[engines.Handle]string)
	count := r.Drain(func(entry Entry) {
		drained[entry.Handle] = entry.Command
	})
	require.Equal(t, 10, count)
	require.Len(t, drained, 10)
	require.Equal(t, "cmd 3", drained[3])
	require.True(t, r.IsEmpty())
	require.Equal(t, 0, r.Drain(nil))
}

func TestDrainWithConcurrentUnregister(t *testing.T) {
	const numHandles = 100
	r := New()
	for i := range numHandles {
		require.NoError(t, r.Register(engines.Handle(i+1), "--quiet"))
	}
	var (
		wg           sync.WaitGroup
		mu           sync.Mutex
		unregistered int
	)
	for i := range numHandles {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := r.Unregister(engines.Handle(i + 1)); err == nil {
				mu.Lock()
				unregistered++
				mu.Unlock()
			}
		}()
	}
	drained := r.Drain(nil)
	wg.Wait()
	require.Equal(t, numHandles, drained+unregistered, "each handle must be removed exactly once")
	require.True(t, r.IsEmpty())
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg, "vwlearners")
	r := New(WithName("m"), WithMetrics(metrics))
	require.NoError(t, r.Register(1, "a"))
	require.NoError(t, r.Register(2, "b"))
	require.NoError(t, r.Register(3, "c"))
	require.Error(t, r.Register(3, "c"))
	_, err := r.Unregister(1)
	require.NoError(t, err)
	_, err = r.Unregister(1)
	require.Error(t, err)

	assert.InDelta(t, 2.0, testutil.ToFloat64(metrics.open.WithLabelValues("m")), 1e-9)
	assert.InDelta(t, 3.0, testutil.ToFloat64(metrics.registeredTotal.WithLabelValues("m")), 1e-9)
	assert.InDelta(t, 1.0, testutil.ToFloat64(metrics.unregisteredTotal.WithLabelValues("m")), 1e-9)
	assert.InDelta(t, 1.0, testutil.ToFloat64(metrics.collisionsTotal.WithLabelValues("m")), 1e-9)
	assert.InDelta(t, 1.0, testutil.ToFloat64(metrics.unknownTotal.WithLabelValues("m")), 1e-9)

	r.Drain(nil)
	assert.InDelta(t, 0.0, testutil.ToFloat64(metrics.open.WithLabelValues("m")), 1e-9)
	assert.InDelta(t, 3.0, testutil.ToFloat64(metrics.unregisteredTotal.WithLabelValues("m")), 1e-9)

	count, err := testutil.GatherAndCount(reg, "vwlearners_handles_open_handles")
	require.NoError(t, err)
	require.Equal(t, 1, count)

	// Nil metrics are valid.
	r = New()
	require.NoError(t, r.Register(1, "a"))
}
