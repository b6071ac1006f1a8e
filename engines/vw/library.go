// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package vw

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gomlx/vwlearners/pkg/support/fsutil"
	"github.com/gomlx/vwlearners/pkg/support/sets"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// LibraryPathEnv is the environment variable with the path to the VW library, or the ":" separated list
// of directories where to search for it.
const LibraryPathEnv = "VW_LIBRARY_PATH"

var (
	// LibraryNames are the file names of the VW C library, in order of preference.
	LibraryNames = []string{"libvw_c_wrapper.so", "libvw_c_wrapper.dylib", "libvw.so", "libvw.dylib"}

	// DefaultSearchDirs are searched after the directories in VW_LIBRARY_PATH and LD_LIBRARY_PATH.
	DefaultSearchDirs = []string{"/usr/local/lib", "/usr/lib"}

	muAvailable          sync.Mutex
	availableLibraryList []string
)

// ErrLibraryNotFound is returned by FindLibrary if no VW library could be found.
var ErrLibraryNotFound = errors.New("VW library not found")

// searchPaths returns the files and directories to search, in order, without repetition.
func searchPaths() []string {
	var paths []string
	seen := sets.Make[string]()
	for _, env := range []string{LibraryPathEnv, "LD_LIBRARY_PATH"} {
		for _, p := range filepath.SplitList(os.Getenv(env)) {
			p = strings.TrimSpace(p)
			if p == "" || seen.Has(p) {
				continue
			}
			seen.Insert(p)
			paths = append(paths, p)
		}
	}
	for _, p := range DefaultSearchDirs {
		if !seen.Has(p) {
			seen.Insert(p)
			paths = append(paths, p)
		}
	}
	return paths
}

// findLibraries returns the VW libraries found in paths, in order. Paths that are regular files are
// taken as the library itself.
func findLibraries(paths []string) []string {
	var found []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			continue
		}
		if !info.IsDir() {
			found = append(found, p)
			continue
		}
		for _, name := range LibraryNames {
			candidate := filepath.Join(p, name)
			if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
				found = append(found, candidate)
			}
		}
	}
	return found
}

// AvailableLibraries lists the VW libraries found, in order of preference.
// It caches and reuses the result in future calls, once something is found.
func AvailableLibraries() []string {
	muAvailable.Lock()
	defer muAvailable.Unlock()
	if len(availableLibraryList) > 0 {
		// Use cache results.
		return availableLibraryList
	}
	availableLibraryList = findLibraries(searchPaths())
	klog.V(2).Infof("VW libraries available: %q", availableLibraryList)
	return availableLibraryList
}

// FindLibrary returns the path to the preferred VW library.
// If configured is not empty, it is used instead of searching, as long as it exists.
func FindLibrary(configured string) (string, error) {
	if configured != "" {
		configured, err := fsutil.ExpandHome(configured)
		if err != nil {
			return "", err
		}
		if _, err := os.Stat(configured); err != nil {
			return "", errors.Wrapf(err, "configured VW library %q", configured)
		}
		return configured, nil
	}
	libs := AvailableLibraries()
	if len(libs) == 0 {
		return "", errors.Wrapf(ErrLibraryNotFound, "searched for %q in %q (set %s)",
			LibraryNames, searchPaths(), LibraryPathEnv)
	}
	return libs[0], nil
}
