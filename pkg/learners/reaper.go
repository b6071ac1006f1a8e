// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package learners

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/vwlearners/pkg/core/handles"
	"github.com/gomlx/vwlearners/pkg/support/xsync"
	"k8s.io/klog/v2"
)

// Shutdown releases every learner still open, and makes any further Create fail with ErrShutdown.
// It returns the number of learners released.
//
// Only the first call does anything, later calls return 0. It never fails: release errors (and panics)
// are logged, and the sweep continues. Learners closed concurrently are skipped. A learner in the middle
// of a Learn or Predict call is released only after the call returns. Learners released
// this way report IsClosed, and their Close returns an error wrapping handles.ErrNotRegistered.
func (f *Factory) Shutdown() int {
	f.muCreate.Lock()
	first := f.shutdown.Trigger()
	f.muCreate.Unlock()
	if !first {
		return 0
	}
	if f.registry.IsEmpty() {
		return 0
	}
	klog.Warningf("Removing dangling handles of engine %q", f.engine.Name())
	count := f.registry.Drain(func(entry handles.Entry) {
		klog.Warningf("Cleaning up dangling handle %d with command %q", entry.Handle, entry.Command)
		// Wait for any call in flight on the handle, and keep the learner from starting new ones.
		// A nil owner was garbage collected: its finalizer will find the handle unregistered.
		if ref, found := f.owners.LoadAndDelete(entry.Handle); found {
			if o := ref.Value(); o != nil {
				o.mu.Lock()
				defer o.mu.Unlock()
				o.markClosedLocked()
			}
		}
		var err error
		exception := exceptions.Try(func() {
			err = f.engine.Release(entry.Handle)
		})
		if exception != nil {
			klog.Errorf("Panic releasing handle %d with command %q: %v", entry.Handle, entry.Command, exception)
		} else if err != nil {
			klog.Errorf("Failed to release handle %d with command %q: %+v", entry.Handle, entry.Command, err)
		}
	})
	klog.V(1).Infof("Released %d dangling handles of engine %q", count, f.engine.Name())
	return count
}

// IsShutdown returns whether Shutdown was called.
func (f *Factory) IsShutdown() bool {
	return f.shutdown.Test()
}

// exit is replaced in tests.
var exit = os.Exit

// ReapOnSignal calls f.Shutdown and exits the program with status 1 when one of the signals is received.
// If no signals are given it uses os.Interrupt and syscall.SIGTERM.
//
// The returned stop function uninstalls the handler. Programs should still call f.Shutdown (usually deferred
// in main) for the normal exit path.
func ReapOnSignal(f *Factory, signals ...os.Signal) (stop func()) {
	if len(signals) == 0 {
		signals = []os.Signal{os.Interrupt, syscall.SIGTERM}
	}
	received := make(chan os.Signal, 1)
	signal.Notify(received, signals...)
	stopped := xsync.NewLatch()
	go func() {
		select {
		case sig := <-received:
			klog.Warningf("Received %s: releasing %d open learners before exiting", sig, f.registry.Len())
			f.Shutdown()
			klog.Flush()
			exit(1)
		case <-stopped.WaitChan():
		}
	}()
	return func() {
		if stopped.Trigger() {
			signal.Stop(received)
		}
	}
}
