// Package optim searches stage gains for the lowest run metric.
package optim

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/edaniels/golog"
	"github.com/san-kum/picascade/internal/config"
	"github.com/san-kum/picascade/internal/experiment"
	"github.com/san-kum/picascade/internal/sim"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

var ErrNoCandidate = errors.New("optim: no candidate completed")

// BuildFunc creates a ready-to-run experiment for one parameter set.
type BuildFunc func(params map[string]float64) (*experiment.Experiment, error)

// Candidate is one evaluated point of the grid.
type Candidate struct {
	Params map[string]float64
	Score  float64
	Err    error
}

type GridSearch struct {
	paramNames []string
	ranges     [][]float64
	logger     golog.Logger
}

func NewGridSearch(params []string, ranges [][]float64) *GridSearch {
	return &GridSearch{paramNames: params, ranges: ranges, logger: zap.NewNop().Sugar()}
}

func (g *GridSearch) SetLogger(l golog.Logger) { g.logger = l }

// Candidates enumerates the grid with the first parameter varying slowest.
func (g *GridSearch) Candidates() []map[string]float64 {
	var out []map[string]float64
	g.enumerate(0, make(map[string]float64), &out)
	return out
}

func (g *GridSearch) enumerate(depth int, current map[string]float64, out *[]map[string]float64) {
	if depth == len(g.paramNames) {
		params := make(map[string]float64, len(current))
		for k, v := range current {
			params[k] = v
		}
		*out = append(*out, params)
		return
	}

	paramName := g.paramNames[depth]
	for _, val := range g.ranges[depth] {
		current[paramName] = val
		g.enumerate(depth+1, current, out)
	}
	delete(current, paramName)
}

// Evaluate runs every candidate in parallel and returns them in
// enumeration order.
func (g *GridSearch) Evaluate(ctx context.Context, build BuildFunc, metricName string) []Candidate {
	grid := g.Candidates()
	results := make([]Candidate, len(grid))

	sim.ParallelFor(len(grid), 1, func(start, end int) {
		for i := start; i < end; i++ {
			results[i] = evaluate(ctx, build, grid[i], metricName)
		}
	})

	for _, c := range results {
		if c.Err != nil {
			g.logger.Debugw("candidate failed", "params", c.Params, "error", c.Err)
		} else {
			g.logger.Debugw("candidate", "params", c.Params, metricName, c.Score)
		}
	}
	return results
}

func evaluate(ctx context.Context, build BuildFunc, params map[string]float64, metricName string) Candidate {
	c := Candidate{Params: params, Score: math.Inf(1)}

	exp, err := build(params)
	if err != nil {
		c.Err = err
		return c
	}
	result, err := exp.Run(ctx)
	if err != nil {
		c.Err = err
		return c
	}
	if len(result.Errors) > 0 {
		c.Err = multierr.Combine(result.Errors...)
		return c
	}
	val, ok := result.Metrics[metricName]
	if !ok {
		c.Err = fmt.Errorf("optim: run has no metric %q", metricName)
		return c
	}
	c.Score = val
	return c
}

// Search returns the candidate with the lowest metric. Ties go to the
// earliest candidate in enumeration order.
func (g *GridSearch) Search(ctx context.Context, build BuildFunc, metricName string) (map[string]float64, float64, error) {
	best := math.Inf(1)
	var bestParams map[string]float64
	var errs error

	for _, c := range g.Evaluate(ctx, build, metricName) {
		if c.Err != nil {
			errs = multierr.Append(errs, c.Err)
			continue
		}
		if bestParams == nil || c.Score < best {
			best = c.Score
			bestParams = c.Params
		}
	}

	if bestParams == nil {
		return nil, best, multierr.Append(ErrNoCandidate, errs)
	}
	return bestParams, best, nil
}

// FromConfig builds candidates by applying "<stage>.<param>" keys to a copy
// of base.
func FromConfig(base *config.Config, reg *experiment.Registry) BuildFunc {
	return func(params map[string]float64) (*experiment.Experiment, error) {
		cfg := base.Clone()
		for key, val := range params {
			stage, param, ok := strings.Cut(key, ".")
			if !ok {
				return nil, fmt.Errorf("optim: parameter %q, want <stage>.<param>", key)
			}
			if err := cfg.SetStageParam(stage, param, val); err != nil {
				return nil, err
			}
		}
		return experiment.New(cfg, reg)
	}
}
