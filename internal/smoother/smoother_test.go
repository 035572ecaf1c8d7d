package smoother

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSmoothFlipsIsolatedCall(t *testing.T) {
	// Two tight clusters; one cell in the singlet cluster carries a stray
	// doublet call that its neighbors should vote away.
	latent := [][]float32{
		{0, 0}, {0.1, 0}, {0, 0.1}, {0.1, 0.1}, // singlet cluster
		{10, 10}, {10.1, 10}, {10, 10.1}, {10.1, 10.1}, // doublet cluster
	}
	calls := []bool{false, false, true, false, true, true, true, true}

	s := NewKNN(3)
	smoothed, err := s.Smooth(latent, calls)
	require.NoError(t, err)

	want := []bool{false, false, false, false, true, true, true, true}
	assert.Equal(t, want, smoothed)
}

func TestSmoothTieKeepsOriginal(t *testing.T) {
	// Cell 0 sees one true and one false neighbor with k=2; the tied vote
	// must leave its own call untouched, whichever way it started.
	latent := [][]float32{{0}, {-1}, {1}}

	s := NewKNN(2)
	for _, own := range []bool{true, false} {
		calls := []bool{own, false, true}
		smoothed, err := s.Smooth(latent, calls)
		require.NoError(t, err)
		assert.Equal(t, own, smoothed[0], "tied vote changed the original call %v", own)
	}
}

func TestSmoothClampsNeighborCount(t *testing.T) {
	latent := [][]float32{{0, 0}, {0, 1}, {5, 5}}
	calls := []bool{true, true, false}

	s := NewKNN(50)
	smoothed, err := s.Smooth(latent, calls)
	require.NoError(t, err)
	assert.Len(t, smoothed, 3)
}

func TestSmoothDoesNotMutateInput(t *testing.T) {
	latent := [][]float32{{0}, {0.1}, {0.2}, {9}}
	calls := []bool{true, false, false, false}
	orig := append([]bool(nil), calls...)

	s := NewKNN(3)
	_, err := s.Smooth(latent, calls)
	require.NoError(t, err)
	assert.Equal(t, orig, calls)
}

func TestSmoothValidation(t *testing.T) {
	tests := []struct {
		name   string
		latent [][]float32
		calls  []bool
		k      int
	}{
		{"length mismatch", [][]float32{{0}, {1}}, []bool{true}, 1},
		{"ragged latent", [][]float32{{0, 1}, {2}}, []bool{true, false}, 1},
		{"bad neighbor count", [][]float32{{0}, {1}}, []bool{true, false}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewKNN(tt.k)
			_, err := s.Smooth(tt.latent, tt.calls)
			assert.Error(t, err)
		})
	}
}

func TestSmoothSingleCell(t *testing.T) {
	s := NewKNN(5)
	smoothed, err := s.Smooth([][]float32{{1, 2}}, []bool{true})
	require.NoError(t, err)
	assert.Equal(t, []bool{true}, smoothed)
}
