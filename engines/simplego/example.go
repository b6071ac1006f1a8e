// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package simplego

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/cespare/xxhash/v2"
	"github.com/pkg/errors"
)

// constantHash is the hash of the always present "constant" (bias) feature, same value VW uses.
const constantHash = 11650396

type feature struct {
	index uint32
	value float32
}

// example is a parsed line in VW text format:
//
//	[label [importance]] ['tag] |[namespace] feature[:value] ... [|namespace ...]
//
// A line without any "|" is taken as unlabeled features in the default namespace.
type example struct {
	hasLabel    bool
	labelTokens []string
	tag         string
	features    []feature
}

func parseExample(line string, bits int) (*example, error) {
	mask := uint64(1)<<bits - 1
	ex := &example{}
	head, body, found := strings.Cut(line, "|")
	if !found {
		head, body = "", " "+line
	}
	for _, token := range strings.Fields(head) {
		if strings.HasPrefix(token, "'") {
			ex.tag = token[1:]
			continue
		}
		ex.labelTokens = append(ex.labelTokens, token)
	}
	ex.hasLabel = len(ex.labelTokens) > 0

	for _, segment := range strings.Split(body, "|") {
		tokens := strings.Fields(segment)
		namespace, scale := "", float32(1)
		if len(segment) > 0 && !unicode.IsSpace(rune(segment[0])) && len(tokens) > 0 {
			namespace, tokens = tokens[0], tokens[1:]
			if name, scaleStr, hasScale := strings.Cut(namespace, ":"); hasScale {
				v, err := strconv.ParseFloat(scaleStr, 32)
				if err != nil {
					return nil, errors.Wrapf(err, "invalid namespace scale in %q", namespace)
				}
				namespace, scale = name, float32(v)
			}
		}
		for _, token := range tokens {
			name, valueStr, hasValue := strings.Cut(token, ":")
			value := float32(1)
			if hasValue {
				v, err := strconv.ParseFloat(valueStr, 32)
				if err != nil {
					return nil, errors.Wrapf(err, "invalid value for feature %q in example %q", token, line)
				}
				value = float32(v)
			}
			value *= scale
			if value == 0 {
				continue
			}
			index := xxhash.Sum64String(namespace+"^"+name) & mask
			ex.features = append(ex.features, feature{index: uint32(index), value: value})
		}
	}
	ex.features = append(ex.features, feature{index: uint32(constantHash & mask), value: 1})
	return ex, nil
}

// scalarLabel returns the label and the importance weight of the example.
func (ex *example) scalarLabel() (label, importance float32, err error) {
	v, err := strconv.ParseFloat(ex.labelTokens[0], 32)
	if err != nil {
		return 0, 0, errors.Wrapf(err, "invalid label %q", ex.labelTokens[0])
	}
	label, importance = float32(v), 1
	if len(ex.labelTokens) > 1 {
		v, err = strconv.ParseFloat(ex.labelTokens[1], 32)
		if err != nil {
			return 0, 0, errors.Wrapf(err, "invalid importance weight %q", ex.labelTokens[1])
		}
		importance = float32(v)
	}
	return
}

// classLabel returns the 1-based class of a multiclass example.
func (ex *example) classLabel(classes int) (int, error) {
	k, err := strconv.Atoi(ex.labelTokens[0])
	if err != nil {
		return 0, errors.Wrapf(err, "invalid multiclass label %q", ex.labelTokens[0])
	}
	if k < 1 || k > classes {
		return 0, errors.Errorf("multiclass label %d out of range [1, %d]", k, classes)
	}
	return k, nil
}

type labeledCost struct {
	class      int
	cost       float32
	importance float32
}

// costs parses cost-sensitive labels ("class:cost ...") and contextual bandit labels ("action:cost[:probability]").
// The returned importance is 1/probability for contextual bandits, and 1 otherwise.
func (ex *example) costs(classes int) ([]labeledCost, error) {
	var costs []labeledCost
	for _, token := range ex.labelTokens {
		parts := strings.Split(token, ":")
		if len(parts) < 2 || len(parts) > 3 {
			return nil, errors.Errorf("invalid cost label %q, expected <class>:<cost>[:<probability>]", token)
		}
		class, err := strconv.Atoi(parts[0])
		if err != nil || class < 1 || class > classes {
			return nil, errors.Errorf("invalid class in cost label %q, must be in [1, %d]", token, classes)
		}
		cost, err := strconv.ParseFloat(parts[1], 32)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid cost in label %q", token)
		}
		lc := labeledCost{class: class, cost: float32(cost), importance: 1}
		if len(parts) == 3 {
			prob, err := strconv.ParseFloat(parts[2], 32)
			if err != nil || prob <= 0 || prob > 1 {
				return nil, errors.Errorf("invalid probability in label %q, must be in (0, 1]", token)
			}
			lc.importance = float32(1 / prob)
		}
		costs = append(costs, lc)
	}
	return costs, nil
}

// multilabels parses the comma separated list of 0-based labels.
func (ex *example) multilabels(classes int) ([]int, error) {
	var labels []int
	for _, part := range strings.Split(ex.labelTokens[0], ",") {
		k, err := strconv.Atoi(part)
		if err != nil || k < 0 || k >= classes {
			return nil, errors.Errorf("invalid multilabel %q, labels must be in [0, %d)", ex.labelTokens[0], classes)
		}
		labels = append(labels, k)
	}
	return labels, nil
}
