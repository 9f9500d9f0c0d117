/*
Copyright (c) Facebook, Inc. and its affiliates.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package daemon

import (
	"fmt"
	"math"

	"github.com/Knetic/govaluate"
	"github.com/eclesh/welford"
)

// MathHelp is a help message used by flags in main
const MathHelp = `When composing the score formula, here is what you can do:
supported operations:
  evaluation is done with govaluate, please check https://github.com/Knetic/govaluate/blob/master/MANUAL.md
supported variables:
  offset (list of recent offsets from chronyd, in ns, newest first)
supported functions:
  abs(value) - absolute value of single float64, for example abs(-1) = 1
  mean(values) - mean of a list of values
  variance(values) - variance of a list of values
  stddev(values) - standard deviation of a list of values
  min(values) - smallest of a list of values
  max(values) - largest of a list of values`

const (
	// MathDefaultRingSize is a default number of offset samples to keep
	MathDefaultRingSize = 100
	// MathDefaultScore is a default formula to calculate the sync quality score
	MathDefaultScore = "abs(mean(offset)) + 3.0 * stddev(offset)"
)

// Math stores the quality score expression in two forms: string and parsed
type Math struct {
	Score     string // scalar summary of recent offsets, in ns
	scoreExpr *govaluate.EvaluableExpression
}

// Prepare will prepare the score expression
func (m *Math) Prepare() error {
	var err error
	m.scoreExpr, err = prepareExpression(m.Score)
	if err != nil {
		return fmt.Errorf("evaluating Score: %w", err)
	}
	return nil
}

// Evaluate computes the score over the offset window, in ns.
func (m *Math) Evaluate(offsetsNS []float64) (float64, error) {
	if m.scoreExpr == nil {
		return 0, fmt.Errorf("score expression is not prepared")
	}
	result, err := m.scoreExpr.Evaluate(map[string]interface{}{"offset": offsetsNS})
	if err != nil {
		return 0, err
	}
	val, ok := result.(float64)
	if !ok {
		return 0, fmt.Errorf("score expression produced %T, want float64", result)
	}
	return val, nil
}

func mean(input []float64) float64 {
	s := welford.New()
	for _, v := range input {
		s.Add(v)
	}
	return s.Mean()
}

func variance(input []float64) float64 {
	s := welford.New()
	for _, v := range input {
		s.Add(v)
	}
	return s.Variance()
}

func stddev(input []float64) float64 {
	s := welford.New()
	for _, v := range input {
		s.Add(v)
	}
	return s.Stddev()
}

// percentile picks the nearest-rank value from an ascending-sorted list.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

var supportedVariables = []string{
	"offset",
}

func isSupportedVar(varName string) bool {
	for _, v := range supportedVariables {
		if v == varName {
			return true
		}
	}
	return false
}

func listArg(name string, args []interface{}) ([]float64, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("%s: wrong number of arguments: want 1, got %d", name, len(args))
	}
	vals, ok := args[0].([]float64)
	if !ok {
		return nil, fmt.Errorf("%s: want a list of values, got %T", name, args[0])
	}
	if len(vals) == 0 {
		return nil, fmt.Errorf("%s: empty list of values", name)
	}
	return vals, nil
}

// all the functions we support in expressions
var functions = map[string]govaluate.ExpressionFunction{
	"abs": func(args ...interface{}) (interface{}, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("abs: wrong number of arguments: want 1, got %d", len(args))
		}
		val, ok := args[0].(float64)
		if !ok {
			return nil, fmt.Errorf("abs: want float64, got %T", args[0])
		}
		return math.Abs(val), nil
	},
	"mean": func(args ...interface{}) (interface{}, error) {
		vals, err := listArg("mean", args)
		if err != nil {
			return nil, err
		}
		return mean(vals), nil
	},
	"variance": func(args ...interface{}) (interface{}, error) {
		vals, err := listArg("variance", args)
		if err != nil {
			return nil, err
		}
		return variance(vals), nil
	},
	"stddev": func(args ...interface{}) (interface{}, error) {
		vals, err := listArg("stddev", args)
		if err != nil {
			return nil, err
		}
		return stddev(vals), nil
	},
	"min": func(args ...interface{}) (interface{}, error) {
		vals, err := listArg("min", args)
		if err != nil {
			return nil, err
		}
		lowest := vals[0]
		for _, v := range vals[1:] {
			if v < lowest {
				lowest = v
			}
		}
		return lowest, nil
	},
	"max": func(args ...interface{}) (interface{}, error) {
		vals, err := listArg("max", args)
		if err != nil {
			return nil, err
		}
		highest := vals[0]
		for _, v := range vals[1:] {
			if v > highest {
				highest = v
			}
		}
		return highest, nil
	},
}

func prepareExpression(exprStr string) (*govaluate.EvaluableExpression, error) {
	expr, err := govaluate.NewEvaluableExpressionWithFunctions(exprStr, functions)
	if err != nil {
		return nil, err
	}
	for _, v := range expr.Vars() {
		if !isSupportedVar(v) {
			return nil, fmt.Errorf("unsupported variable %q", v)
		}
	}
	return expr, nil
}
