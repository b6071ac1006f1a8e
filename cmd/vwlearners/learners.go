// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"sync/atomic"

	"github.com/gomlx/vwlearners/internal/config"
	"github.com/gomlx/vwlearners/pkg/learners"
	"github.com/pkg/errors"
	"github.com/schollz/progressbar/v3"
	"golang.org/x/sync/errgroup"
	"k8s.io/klog/v2"
)

// namedLearner is a learner created from the configuration.
type namedLearner struct {
	name    string
	learner learners.Learner
}

// createLearners creates all the configured learners concurrently. If any fails, the ones created are closed.
func createLearners(factory *learners.Factory, cfg config.Config) ([]namedLearner, error) {
	named := make([]namedLearner, len(cfg.Learners))
	var g errgroup.Group
	g.SetLimit(cfg.Parallelism)
	for i, l := range cfg.Learners {
		g.Go(func() error {
			learner, err := factory.Create(l.Command)
			if err != nil {
				return errors.WithMessagef(err, "learner %q", l.Name)
			}
			named[i] = namedLearner{name: l.Name, learner: learner}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		for _, nl := range named {
			if nl.learner != nil {
				_ = nl.learner.Close()
			}
		}
		return nil, err
	}
	return named, nil
}

// closeLearners closes all learners, returning the first error.
func closeLearners(named []namedLearner) error {
	var firstErr error
	for _, nl := range named {
		if err := nl.learner.Close(); err != nil {
			klog.Errorf("Failed to close learner %q: %+v", nl.name, err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// readExamples reads one example per non-empty line.
func readExamples(path string) ([]string, error) {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to open examples file")
		}
		defer func() { _ = f.Close() }()
		r = f
	}
	var examples []string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		examples = append(examples, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "failed to read examples from %q", path)
	}
	return examples, nil
}

// result of feeding the examples to one learner.
type result struct {
	name, shape string
	numExamples int64
	last        string
}

// feed runs every example through each learner, learners in parallel.
func feed(named []namedLearner, examples []string, learn bool, parallelism int) ([]result, error) {
	results := make([]result, len(named))
	bar := progressbar.NewOptions(len(named)*len(examples),
		progressbar.OptionSetDescription("examples"),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
		progressbar.OptionUseANSICodes(true),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetTheme(progressbar.ThemeASCII),
	)
	var g errgroup.Group
	g.SetLimit(parallelism)
	var total atomic.Int64
	for i, nl := range named {
		g.Go(func() error {
			results[i] = result{name: nl.name, shape: nl.learner.Shape().String()}
			for lineNum, example := range examples {
				prediction, err := predict(nl.learner, example, learn)
				if err != nil {
					return errors.WithMessagef(err, "learner %q, example #%d %q", nl.name, lineNum+1, example)
				}
				results[i].numExamples++
				results[i].last = prediction
				total.Add(1)
				_ = bar.Add(1)
			}
			return nil
		})
	}
	err := g.Wait()
	_ = bar.Finish()
	fmt.Fprintln(os.Stderr)
	klog.V(1).Infof("Fed %d examples", total.Load())
	return results, err
}

// predict runs the example through the learner, and returns the prediction formatted.
func predict(learner learners.Learner, example string, learn bool) (string, error) {
	switch l := learner.(type) {
	case *learners.FloatLearner:
		return format(l.Learn, l.Predict, example, learn)
	case *learners.IntLearner:
		return format(l.Learn, l.Predict, example, learn)
	case *learners.FloatsLearner:
		return format(l.Learn, l.Predict, example, learn)
	case *learners.IntsLearner:
		return format(l.Learn, l.Predict, example, learn)
	}
	return "", errors.Errorf("unsupported learner type %T", learner)
}

func format[T any](learnFn, predictFn func(string) (T, error), example string, learn bool) (string, error) {
	fn := predictFn
	if learn {
		fn = learnFn
	}
	value, err := fn(example)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%v", value), nil
}
