// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package vw implements the "vw" engine: a binding to the Vowpal Wabbit C library, loaded dynamically
// (with `dlopen`) the first time a learner is created.
//
// The binding requires cgo and the build tag `vw_native`:
//
//	go build -tags vw_native ./...
//
// Without it the package only offers the library discovery functions (see FindLibrary), and New returns
// an error. The engine registers itself as "vw" when built with the tag, so to use it import it:
//
//	import _ "github.com/gomlx/vwlearners/engines/vw"
//
// The library is searched in the directory (or ":" separated list of directories, or file) given by
// VW_LIBRARY_PATH, and then in LD_LIBRARY_PATH, "/usr/local/lib" and "/usr/lib", in that order.
// Alternatively, configure the engine with the path: VWLEARNERS_ENGINE="vw:/opt/vw/lib/libvw_c_wrapper.so".
package vw

// EngineName used to register the engine.
const EngineName = "vw"
