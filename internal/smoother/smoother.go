// Package smoother stabilizes per-cell doublet calls by majority vote over
// nearest neighbors in the latent embedding.
package smoother

import (
	"log/slog"
	"sync"

	"github.com/scgenomics/doubletect/internal/errors"
	"github.com/scgenomics/doubletect/internal/logging"
)

var (
	serviceLogger *slog.Logger
	initOnce      sync.Once
)

// GetLogger returns the smoother package logger.
func GetLogger() *slog.Logger {
	initOnce.Do(func() {
		serviceLogger = logging.ForService("smoother")
	})
	return serviceLogger
}

// Smoother refines a boolean call vector using the latent embedding of the
// same cells. Implementations must not mutate their inputs.
type Smoother interface {
	Smooth(latent [][]float32, calls []bool) ([]bool, error)
}

// KNN is an exact k-nearest-neighbor majority vote smoother using squared
// Euclidean distance. A cell is never its own neighbor; vote ties keep the
// original call.
type KNN struct {
	Neighbors int
}

// NewKNN returns a KNN smoother with the given neighbor count.
func NewKNN(neighbors int) *KNN {
	return &KNN{Neighbors: neighbors}
}

// Smooth returns a fresh call vector where each cell takes the majority call
// of its nearest neighbors.
func (s *KNN) Smooth(latent [][]float32, calls []bool) ([]bool, error) {
	n := len(latent)
	if n != len(calls) {
		return nil, errors.Newf("smooth: %d latent rows vs %d calls", n, len(calls)).
			Component("smoother").
			Category(errors.CategoryValidation).
			Build()
	}
	if s.Neighbors < 1 {
		return nil, errors.Newf("smooth: neighbor count must be >= 1, got %d", s.Neighbors).
			Component("smoother").
			Category(errors.CategoryValidation).
			Build()
	}
	if n < 2 {
		// Nothing to vote over, return the calls unchanged.
		out := make([]bool, n)
		copy(out, calls)
		return out, nil
	}

	dim := len(latent[0])
	for i, row := range latent {
		if len(row) != dim {
			return nil, errors.Newf("smooth: latent row %d has %d dimensions, want %d", i, len(row), dim).
				Component("smoother").
				Category(errors.CategoryValidation).
				Build()
		}
	}

	k := s.Neighbors
	if k > n-1 {
		GetLogger().Warn("neighbor count exceeds population, clamping",
			"neighbors", s.Neighbors,
			"population", n)
		k = n - 1
	}

	smoothed := make([]bool, n)
	for i := range latent {
		neighbors := nearest(latent, i, k)
		votes := 0
		for _, j := range neighbors {
			if calls[j] {
				votes++
			}
		}
		switch {
		case 2*votes > k:
			smoothed[i] = true
		case 2*votes < k:
			smoothed[i] = false
		default:
			smoothed[i] = calls[i]
		}
	}
	return smoothed, nil
}

// nearest returns the indices of the k cells closest to cell i, excluding i
// itself. It keeps a running worst-of-best bound rather than sorting all
// distances.
func nearest(latent [][]float32, i, k int) []int {
	type candidate struct {
		idx  int
		dist float64
	}
	best := make([]candidate, 0, k)
	worst := -1 // index into best of the current farthest neighbor

	for j := range latent {
		if j == i {
			continue
		}
		d := sqDist(latent[i], latent[j])
		if len(best) < k {
			best = append(best, candidate{idx: j, dist: d})
			if worst == -1 || d > best[worst].dist {
				worst = len(best) - 1
			}
			continue
		}
		if d >= best[worst].dist {
			continue
		}
		best[worst] = candidate{idx: j, dist: d}
		worst = 0
		for b := 1; b < len(best); b++ {
			if best[b].dist > best[worst].dist {
				worst = b
			}
		}
	}

	out := make([]int, len(best))
	for b, c := range best {
		out[b] = c.idx
	}
	return out
}

func sqDist(a, b []float32) float64 {
	sum := 0.0
	for d := range a {
		diff := float64(a[d]) - float64(b[d])
		sum += diff * diff
	}
	return sum
}
