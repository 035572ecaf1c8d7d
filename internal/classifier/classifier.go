// Package classifier wraps the trained singlet/doublet model. The model is an
// opaque collaborator: this package runs inference only, no training.
package classifier

import (
	"context"
	"log/slog"
	"math"
	"sync"

	"github.com/scgenomics/doubletect/internal/logging"
)

var (
	serviceLogger *slog.Logger
	initOnce      sync.Once
)

// GetLogger returns the classifier package logger.
func GetLogger() *slog.Logger {
	initOnce.Do(func() {
		serviceLogger = logging.ForService("classifier")
	})
	return serviceLogger
}

// LogitPair is the raw two-class output of the classifier for one cell.
type LogitPair struct {
	Singlet float64
	Doublet float64
}

// SoftmaxDoublet returns the doublet-class softmax probability of the pair.
// The shared max is subtracted first so large logits cannot overflow.
func (p LogitPair) SoftmaxDoublet() float64 {
	m := math.Max(p.Singlet, p.Doublet)
	es := math.Exp(p.Singlet - m)
	ed := math.Exp(p.Doublet - m)
	return ed / (es + ed)
}

// Scorer produces one raw logit pair per input cell. Implementations must be
// safe for sequential reuse; the engine never calls Score concurrently.
type Scorer interface {
	Score(ctx context.Context, inputs [][]float32) ([]LogitPair, error)
}

// SoftmaxDoublets maps logit pairs to their doublet-class softmax scores.
func SoftmaxDoublets(pairs []LogitPair) []float64 {
	out := make([]float64, len(pairs))
	for i, p := range pairs {
		out[i] = p.SoftmaxDoublet()
	}
	return out
}

// DoubletLogits extracts the doublet-class logit from each pair.
func DoubletLogits(pairs []LogitPair) []float64 {
	out := make([]float64, len(pairs))
	for i, p := range pairs {
		out[i] = p.Doublet
	}
	return out
}
