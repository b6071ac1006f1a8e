// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package handles keeps track of the native learner handles that are currently open.
//
// A Registry maps each live engines.Handle to the command used to create it. A handle is present if and
// only if it was created and not yet released, and every operation is atomic per handle value: there is
// no global lock, so different handles never contend.
//
// Registries are plain values: create one per engine (or per test) with New.
package handles

import (
	"sync/atomic"

	"github.com/gomlx/vwlearners/engines"
	"github.com/gomlx/vwlearners/pkg/support/xsync"
	"github.com/pkg/errors"
)

var (
	// ErrAlreadyRegistered is returned by Registry.Register if the handle is already present.
	ErrAlreadyRegistered = errors.New("handle already registered")

	// ErrNotRegistered is returned by Registry.Unregister if the handle is not present.
	ErrNotRegistered = errors.New("handle not registered")
)

// Entry is one open handle and the command used to create it.
type Entry struct {
	Handle  engines.Handle
	Command string
}

// Registry of open handles. Create it with New.
type Registry struct {
	name    string
	entries xsync.SyncMap[engines.Handle, string]
	size    atomic.Int64
	metrics *Metrics
}

// Option configures a Registry in New.
type Option func(r *Registry)

// WithName sets the name of the registry, used in logs and as the "registry" label of its metrics.
// The default is "default".
func WithName(name string) Option {
	return func(r *Registry) {
		r.name = name
	}
}

// WithMetrics makes the registry report to the given metrics.
func WithMetrics(metrics *Metrics) Option {
	return func(r *Registry) {
		r.metrics = metrics
	}
}

// New returns an empty Registry.
func New(opts ...Option) *Registry {
	r := &Registry{name: "default"}
	for _, opt := range opts {
		opt(r)
	}
	r.metrics.addOpen(r.name, 0)
	return r
}

// Name of the registry.
func (r *Registry) Name() string { return r.name }

// Register adds the handle with its command.
// If the handle is already present it returns ErrAlreadyRegistered, and the registry is not changed.
func (r *Registry) Register(handle engines.Handle, command string) error {
	previous, loaded := r.entries.LoadOrStore(handle, command)
	if loaded {
		r.metrics.collision(r.name)
		return errors.Wrapf(ErrAlreadyRegistered, "registry %q: handle %d (command %q) already open with command %q",
			r.name, handle, command, previous)
	}
	r.size.Add(1)
	r.metrics.addOpen(r.name, 1)
	r.metrics.registered(r.name)
	return nil
}

// Unregister removes the handle and returns the command it was registered with.
// If the handle is not present it returns ErrNotRegistered.
func (r *Registry) Unregister(handle engines.Handle) (command string, err error) {
	command, loaded := r.entries.LoadAndDelete(handle)
	if !loaded {
		r.metrics.unknownUnregister(r.name)
		return "", errors.Wrapf(ErrNotRegistered, "registry %q: handle %d", r.name, handle)
	}
	r.size.Add(-1)
	r.metrics.addOpen(r.name, -1)
	r.metrics.unregistered(r.name)
	return command, nil
}

// Lookup returns the command of the handle, if it is registered.
func (r *Registry) Lookup(handle engines.Handle) (command string, found bool) {
	return r.entries.Load(handle)
}

// Snapshot returns a copy of the current entries.
//
// Concurrent registrations or removals may or may not be reflected, but every entry returned was
// registered at some point during the call.
func (r *Registry) Snapshot() map[engines.Handle]string {
	snapshot := make(map[engines.Handle]string, r.Len())
	r.entries.Range(func(handle engines.Handle, command string) bool {
		snapshot[handle] = command
		return true
	})
	return snapshot
}

// Len returns the number of handles registered.
func (r *Registry) Len() int {
	return int(r.size.Load())
}

// IsEmpty returns whether there are no handles registered.
func (r *Registry) IsEmpty() bool {
	return r.Len() == 0
}

// Drain removes every entry and calls fn for each one removed, until the registry is observed empty.
// It returns the number of entries removed.
//
// Entries removed concurrently by Unregister while draining are skipped: each entry is passed to either
// Drain's fn or to Unregister's caller, never both.
func (r *Registry) Drain(fn func(entry Entry)) int {
	count := 0
	for {
		var handles []engines.Handle
		r.entries.Range(func(handle engines.Handle, _ string) bool {
			handles = append(handles, handle)
			return true
		})
		if len(handles) == 0 {
			return count
		}
		for _, handle := range handles {
			command, loaded := r.entries.LoadAndDelete(handle)
			if !loaded {
				// Closed concurrently.
				continue
			}
			r.size.Add(-1)
			r.metrics.addOpen(r.name, -1)
			r.metrics.unregistered(r.name)
			count++
			if fn != nil {
				fn(Entry{Handle: handle, Command: command})
			}
		}
	}
}
