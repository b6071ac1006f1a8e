// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package xslices provide missing functionality to the slices package.
package xslices

import (
	"cmp"
	"flag"
	"slices"
	"strings"
)

// Keys returns the keys of a map in the form of a slice.
func Keys[K comparable, V any](m map[K]V) []K {
	s := make([]K, 0, len(m))
	for k := range m {
		s = append(s, k)
	}
	return s
}

// SortedKeys returns the sorted keys of a map in the form of a slice.
func SortedKeys[K cmp.Ordered, V any](m map[K]V) []K {
	s := Keys(m)
	slices.Sort(s)
	return s
}

// RepeatedFlag creates a string flag that can be given multiple times, each occurrence appending
// one value verbatim (commas and spaces included).
//
// If flagSet is nil, flag.CommandLine is used.
func RepeatedFlag(flagSet *flag.FlagSet, name, usage string) *[]string {
	f := &repeatedFlagImpl{}
	if flagSet == nil {
		flagSet = flag.CommandLine
	}
	flagSet.Var(f, name, usage)
	return &f.values
}

type repeatedFlagImpl struct {
	values []string
}

func (f *repeatedFlagImpl) String() string {
	return strings.Join(f.values, "; ")
}

func (f *repeatedFlagImpl) Set(value string) error {
	f.values = append(f.values, value)
	return nil
}
