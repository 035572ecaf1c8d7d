// calibrate.go log-odds bias calibration of doublet scores against a target prior
package calib

import (
	"math"

	"github.com/scgenomics/doubletect/internal/errors"
)

const (
	// DefaultTolerance is the convergence tolerance on the mean score.
	DefaultTolerance = 0.01
	// DefaultMinIterations is the minimum number of calibration passes,
	// performed even when the initial mean already matches the prior.
	DefaultMinIterations = 5
	// DefaultMaxIterations bounds the calibration loop; the fixed-point
	// iteration has no convergence guarantee on adversarial inputs.
	DefaultMaxIterations = 1000

	// prevalenceEpsilon keeps the observed mean away from 0 and 1 where the
	// log-odds are undefined.
	prevalenceEpsilon = 1e-8
)

// Options controls the calibration loop.
type Options struct {
	Tolerance     float64 // convergence tolerance on the mean score
	MinIterations int     // minimum number of passes
	MaxIterations int     // hard cap on passes
}

// DefaultOptions returns the reference calibration options.
func DefaultOptions() Options {
	return Options{
		Tolerance:     DefaultTolerance,
		MinIterations: DefaultMinIterations,
		MaxIterations: DefaultMaxIterations,
	}
}

// Result carries the calibrated scores together with the loop outcome.
// Converged is false when the loop stopped at MaxIterations with the mean
// score still further than Tolerance from the target prevalence.
type Result struct {
	Scores     []float64 // calibrated per-cell doublet probabilities, in [0,1]
	Bias       float64   // final shared logit shift, reusable for held-out cells
	Converged  bool
	Iterations int
}

// Calibrate shifts every cell's doublet logit by a shared bias term until the
// population mean score matches targetPrevalence, the prior doublet rate.
// Each pass recomputes the bias as the log-odds gap between the observed mean
// and the target, then maps logits back through the sigmoid. The shift is the
// same scalar for every cell, so a single pass never reorders cells.
//
// logitDoublet and initialScore are parallel slices covering the real-cell
// slice of the population only. Inputs are not mutated.
func Calibrate(logitDoublet, initialScore []float64, targetPrevalence float64, opts Options) (Result, error) {
	if len(logitDoublet) == 0 {
		return Result{}, errors.Newf("calibrate: empty input").
			Component("calib").
			Category(errors.CategoryValidation).
			Build()
	}
	if len(logitDoublet) != len(initialScore) {
		return Result{}, errors.Newf("calibrate: mismatched input lengths: %d logits vs %d scores",
			len(logitDoublet), len(initialScore)).
			Component("calib").
			Category(errors.CategoryValidation).
			Build()
	}
	if targetPrevalence <= 0 || targetPrevalence >= 1 {
		return Result{}, errors.Newf("calibrate: target prevalence %g outside (0,1)", targetPrevalence).
			Component("calib").
			Category(errors.CategoryValidation).
			Context("target_prevalence", targetPrevalence).
			Build()
	}
	if opts.Tolerance <= 0 {
		return Result{}, errors.Newf("calibrate: tolerance must be > 0, got %g", opts.Tolerance).
			Component("calib").
			Category(errors.CategoryValidation).
			Build()
	}
	if opts.MinIterations < 1 || opts.MaxIterations < opts.MinIterations {
		return Result{}, errors.Newf("calibrate: iteration bounds invalid: min %d, max %d",
			opts.MinIterations, opts.MaxIterations).
			Component("calib").
			Category(errors.CategoryValidation).
			Build()
	}

	working := make([]float64, len(initialScore))
	copy(working, initialScore)

	targetLogOdds := logOdds(targetPrevalence)

	delta := math.Inf(1)
	bias := 0.0
	iterations := 0
	for (delta > opts.Tolerance || iterations < opts.MinIterations) && iterations < opts.MaxIterations {
		observed := mean(working)
		bias = logOdds(clampPrevalence(observed)) - targetLogOdds

		for i, logit := range logitDoublet {
			working[i] = sigmoid(logit + bias)
		}

		delta = math.Abs(observed - mean(working))
		iterations++
	}

	converged := delta <= opts.Tolerance
	if !converged {
		GetLogger().Warn("calibration did not converge",
			"iterations", iterations,
			"delta", delta,
			"tolerance", opts.Tolerance,
			"target_prevalence", targetPrevalence)
	}

	return Result{Scores: working, Bias: bias, Converged: converged, Iterations: iterations}, nil
}

// ApplyBias shifts held-out logits by a bias found on another population,
// typically the synthetic doublets after calibrating on the real cells.
func ApplyBias(logitDoublet []float64, bias float64) []float64 {
	out := make([]float64, len(logitDoublet))
	for i, logit := range logitDoublet {
		out[i] = sigmoid(logit + bias)
	}
	return out
}

// clampPrevalence keeps p strictly inside (0,1). A degenerate mean of exactly
// 0 or 1 would otherwise produce a non-finite bias that poisons every score.
func clampPrevalence(p float64) float64 {
	return math.Min(1-prevalenceEpsilon, math.Max(prevalenceEpsilon, p))
}

// logOdds maps a probability to the real line, ln(p/(1-p)).
func logOdds(p float64) float64 {
	return math.Log(p / (1 - p))
}

// sigmoid is the inverse of logOdds, mapping a real value into (0,1).
func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

func mean(xs []float64) float64 {
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}
