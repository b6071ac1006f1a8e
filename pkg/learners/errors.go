// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package learners

import (
	"github.com/gomlx/vwlearners/pkg/core/handles"
	"github.com/pkg/errors"
)

// Fatal errors: the engine or the process is in a state the caller can't fix by changing the call.
var (
	// ErrEngineLoad is returned when the engine's native library fails to load. It is permanent for the process.
	ErrEngineLoad = errors.New("failed to load native engine library")

	// ErrEngineCreate is returned when the engine fails to instantiate a learner from the command.
	ErrEngineCreate = errors.New("engine failed to create learner")

	// ErrHandleCollision is returned when the engine returns a handle that is already open.
	// The handle is left alone: it belongs to whoever registered it first.
	ErrHandleCollision = errors.New("engine returned a handle that is already open")

	// ErrShapeQuery is returned when the engine can't report the output shape of a new learner.
	ErrShapeQuery = errors.New("failed to query learner output shape")

	// ErrUnknownShape is returned when the learner's output shape is not one of the supported ones.
	// The native learner is released before it is returned.
	ErrUnknownShape = errors.New("unrecognized output shape")
)

// Misuse errors: the caller used the API incorrectly.
var (
	// ErrShapeMismatch is returned by CreateAs and As when the learner is not of the requested type.
	ErrShapeMismatch = errors.New("learner type doesn't match the requested type")

	// ErrClosed is returned by any operation on a learner after it has been closed.
	ErrClosed = errors.New("learner is closed")

	// ErrShutdown is returned by Factory.Create after Factory.Shutdown.
	ErrShutdown = errors.New("factory is shut down")
)

// IsFatal returns whether err is one of the fatal errors of learner creation.
func IsFatal(err error) bool {
	for _, target := range []error{ErrEngineLoad, ErrEngineCreate, ErrHandleCollision, ErrShapeQuery, ErrUnknownShape} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// IsMisuse returns whether err is caused by using the API incorrectly: closing a learner twice,
// converting it to the wrong type, using it after closing it or creating learners after shutdown.
func IsMisuse(err error) bool {
	for _, target := range []error{handles.ErrNotRegistered, ErrShapeMismatch, ErrClosed, ErrShutdown} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
