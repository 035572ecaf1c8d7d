// Package metrics evaluates doublet calls and scores against experimentally
// known doublet labels. Results are for reporting only and never feed back
// into calibration.
package metrics

import (
	"sort"

	"github.com/scgenomics/doubletect/internal/errors"
)

// Summary bundles the reported classification metrics.
type Summary struct {
	Accuracy         float64
	ROCAUC           float64
	AveragePrecision float64
}

// Evaluate computes all summary metrics for the given ground truth, scores
// and boolean calls.
func Evaluate(known, calls []bool, scores []float64) (Summary, error) {
	acc, err := Accuracy(known, calls)
	if err != nil {
		return Summary{}, err
	}
	auc, err := ROCAUC(known, scores)
	if err != nil {
		return Summary{}, err
	}
	ap, err := AveragePrecision(known, scores)
	if err != nil {
		return Summary{}, err
	}
	return Summary{Accuracy: acc, ROCAUC: auc, AveragePrecision: ap}, nil
}

// Accuracy is the fraction of calls matching the known labels.
func Accuracy(known, calls []bool) (float64, error) {
	if len(known) == 0 || len(known) != len(calls) {
		return 0, lengthError("accuracy", len(known), len(calls))
	}
	correct := 0
	for i := range known {
		if known[i] == calls[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(known)), nil
}

// ROCAUC computes the area under the ROC curve by the Mann-Whitney rank
// statistic, with tied scores assigned their average rank.
func ROCAUC(known []bool, scores []float64) (float64, error) {
	if len(known) == 0 || len(known) != len(scores) {
		return 0, lengthError("roc auc", len(known), len(scores))
	}
	pos, neg := countClasses(known)
	if pos == 0 || neg == 0 {
		return 0, errors.Newf("roc auc undefined: %d positives, %d negatives", pos, neg).
			Component("metrics").
			Category(errors.CategoryValidation).
			Build()
	}

	order := sortedOrder(scores)

	// Average ranks across tie groups, then sum ranks of positives.
	ranks := make([]float64, len(scores))
	for i := 0; i < len(order); {
		j := i
		for j < len(order) && scores[order[j]] == scores[order[i]] {
			j++
		}
		avgRank := float64(i+j+1) / 2 // 1-based: mean of ranks i+1..j
		for t := i; t < j; t++ {
			ranks[order[t]] = avgRank
		}
		i = j
	}

	rankSum := 0.0
	for i, label := range known {
		if label {
			rankSum += ranks[i]
		}
	}
	p := float64(pos)
	n := float64(neg)
	return (rankSum - p*(p+1)/2) / (p * n), nil
}

// AveragePrecision summarizes the precision-recall curve as the weighted mean
// of precisions at each threshold, weighted by the recall gained.
func AveragePrecision(known []bool, scores []float64) (float64, error) {
	if len(known) == 0 || len(known) != len(scores) {
		return 0, lengthError("average precision", len(known), len(scores))
	}
	pos, _ := countClasses(known)
	if pos == 0 {
		return 0, errors.Newf("average precision undefined: no positive labels").
			Component("metrics").
			Category(errors.CategoryValidation).
			Build()
	}

	order := sortedOrder(scores)

	// Walk thresholds from the highest score down, handling tie groups as a
	// single threshold.
	ap := 0.0
	tp, fp := 0, 0
	prevRecall := 0.0
	for i := len(order) - 1; i >= 0; {
		j := i
		for j >= 0 && scores[order[j]] == scores[order[i]] {
			if known[order[j]] {
				tp++
			} else {
				fp++
			}
			j--
		}
		precision := float64(tp) / float64(tp+fp)
		recall := float64(tp) / float64(pos)
		ap += (recall - prevRecall) * precision
		prevRecall = recall
		i = j
	}
	return ap, nil
}

func countClasses(known []bool) (pos, neg int) {
	for _, label := range known {
		if label {
			pos++
		} else {
			neg++
		}
	}
	return pos, neg
}

// sortedOrder returns index order by ascending score, stable across calls.
func sortedOrder(scores []float64) []int {
	order := make([]int, len(scores))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return scores[order[a]] < scores[order[b]] })
	return order
}

func lengthError(metric string, nKnown, nOther int) error {
	return errors.Newf("%s: mismatched or empty inputs: %d labels vs %d values", metric, nKnown, nOther).
		Component("metrics").
		Category(errors.CategoryValidation).
		Build()
}
