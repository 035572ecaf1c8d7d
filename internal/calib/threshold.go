// threshold.go decision threshold selection over calibrated scores
package calib

import (
	"github.com/scgenomics/doubletect/internal/errors"
)

// DefaultThreshold is the cutoff used when no expected doublet count is given.
const DefaultThreshold = 0.5

// SelectThreshold converts calibrated scores into boolean doublet calls.
//
// With expectedDoublets <= 0 the cutoff is the fixed DefaultThreshold. With a
// positive count the cutoff is the (n - expectedDoublets)-th order statistic
// of the scores, so that exactly expectedDoublets cells lie strictly above it.
// Ties at the boundary value are excluded by the strict comparison, which can
// push the number of true calls below the requested count; that is the exact
// tie policy, not an approximation.
//
// expectedDoublets >= len(scores) is a precondition violation and fails before
// any calls are produced. Selection is deterministic for identical inputs.
func SelectThreshold(scores []float64, expectedDoublets int) (float64, []bool, error) {
	if len(scores) == 0 {
		return 0, nil, errors.Newf("select threshold: empty scores").
			Component("threshold").
			Category(errors.CategoryValidation).
			Build()
	}

	threshold := DefaultThreshold
	if expectedDoublets > 0 {
		n := len(scores)
		k := n - expectedDoublets
		if float64(expectedDoublets)/float64(n) > 0.5 {
			GetLogger().Warn("expected doublets exceed half the population, check the configured count",
				"expected_doublets", expectedDoublets,
				"population", n)
		}
		if k <= 0 {
			return 0, nil, errors.Newf("select threshold: expected doublets %d >= population %d", expectedDoublets, n).
				Component("threshold").
				Category(errors.CategoryThreshold).
				Context("expected_doublets", expectedDoublets).
				Context("population", n).
				Build()
		}
		threshold = kthSmallest(scores, k)
	}

	calls := make([]bool, len(scores))
	for i, score := range scores {
		calls[i] = score > threshold
	}
	return threshold, calls, nil
}

// kthSmallest returns the k-th order statistic (1-based) via iterative
// quickselect on a scratch copy, linear in the population size on average.
func kthSmallest(scores []float64, k int) float64 {
	scratch := make([]float64, len(scores))
	copy(scratch, scores)

	target := k - 1
	lo, hi := 0, len(scratch)-1
	for lo < hi {
		p := partition(scratch, lo, hi)
		switch {
		case p == target:
			return scratch[p]
		case p < target:
			lo = p + 1
		default:
			hi = p - 1
		}
	}
	return scratch[target]
}

// partition uses a median-of-three pivot to keep the selection deterministic
// and resistant to sorted inputs.
func partition(xs []float64, lo, hi int) int {
	mid := lo + (hi-lo)/2
	if xs[mid] < xs[lo] {
		xs[mid], xs[lo] = xs[lo], xs[mid]
	}
	if xs[hi] < xs[lo] {
		xs[hi], xs[lo] = xs[lo], xs[hi]
	}
	if xs[hi] < xs[mid] {
		xs[hi], xs[mid] = xs[mid], xs[hi]
	}
	pivot := xs[mid]
	xs[mid], xs[hi] = xs[hi], xs[mid]

	i := lo
	for j := lo; j < hi; j++ {
		if xs[j] < pivot {
			xs[i], xs[j] = xs[j], xs[i]
			i++
		}
	}
	xs[i], xs[hi] = xs[hi], xs[i]
	return i
}
