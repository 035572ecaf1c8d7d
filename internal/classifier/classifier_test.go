package classifier

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSoftmaxDoublet(t *testing.T) {
	tests := []struct {
		name string
		pair LogitPair
		want float64
	}{
		{"symmetric", LogitPair{Singlet: 0, Doublet: 0}, 0.5},
		{"doublet favored", LogitPair{Singlet: 0, Doublet: 2}, 1 / (1 + math.Exp(-2))},
		{"singlet favored", LogitPair{Singlet: 3, Doublet: 0}, 1 / (1 + math.Exp(3))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, tt.pair.SoftmaxDoublet(), 1e-12)
		})
	}
}

func TestSoftmaxDoubletExtremeLogits(t *testing.T) {
	// Large logits must not overflow to NaN.
	got := LogitPair{Singlet: 1000, Doublet: 1002}.SoftmaxDoublet()
	assert.False(t, math.IsNaN(got))
	assert.InDelta(t, 1/(1+math.Exp(-2)), got, 1e-12)

	got = LogitPair{Singlet: -1000, Doublet: -1004}.SoftmaxDoublet()
	assert.False(t, math.IsNaN(got))
	assert.Greater(t, got, 0.0)
	assert.Less(t, got, 1.0)
}

func TestSoftmaxDoubletsAndLogits(t *testing.T) {
	pairs := []LogitPair{
		{Singlet: 1, Doublet: -1},
		{Singlet: -0.5, Doublet: 0.5},
	}

	scores := SoftmaxDoublets(pairs)
	require.Len(t, scores, 2)
	assert.InDelta(t, 1/(1+math.Exp(2)), scores[0], 1e-12)
	assert.InDelta(t, 1/(1+math.Exp(-1)), scores[1], 1e-12)

	logits := DoubletLogits(pairs)
	assert.Equal(t, []float64{-1, 0.5}, logits)
}

// fakeScorer returns preset logit pairs, standing in for the trained model.
type fakeScorer struct {
	pairs []LogitPair
}

func (f *fakeScorer) Score(_ context.Context, inputs [][]float32) ([]LogitPair, error) {
	return f.pairs[:len(inputs)], nil
}

func TestScorerInterface(t *testing.T) {
	var s Scorer = &fakeScorer{pairs: []LogitPair{{Singlet: 1, Doublet: 2}}}

	pairs, err := s.Score(context.Background(), [][]float32{{0.1, 0.2}})
	require.NoError(t, err)
	require.Len(t, pairs, 1)
	assert.Equal(t, LogitPair{Singlet: 1, Doublet: 2}, pairs[0])
}
