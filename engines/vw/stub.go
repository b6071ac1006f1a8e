// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

//go:build !vw_native || !cgo

package vw

import (
	"github.com/gomlx/vwlearners/engines"
	"github.com/pkg/errors"
)

// Available reports whether the binding was compiled in.
const Available = false

// New fails: the binding requires building with cgo and the tag "vw_native".
func New(config string) (engines.Engine, error) {
	return nil, errors.Errorf("engine %q (config %q) requires building with cgo and -tags vw_native", EngineName, config)
}
