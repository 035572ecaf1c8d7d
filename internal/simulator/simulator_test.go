package simulator

import (
	"context"
	"testing"

	"github.com/scgenomics/doubletect/internal/conf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCounts() [][]float32 {
	return [][]float32{
		{10, 0, 5, 5},
		{0, 20, 0, 0},
		{5, 5, 5, 5},
		{8, 2, 6, 4},
	}
}

func settings(mode string) conf.SimulationSettings {
	return conf.SimulationSettings{
		DoubletDepth: 2.0,
		DoubletType:  mode,
		Seed:         42,
	}
}

func TestSimulateCountAndShape(t *testing.T) {
	s := New(settings("average"))
	doublets, err := s.Simulate(context.Background(), testCounts(), 2.0)
	require.NoError(t, err)

	assert.Len(t, doublets, 8, "ratio 2 over 4 real cells")
	for i, row := range doublets {
		assert.Len(t, row, 4, "doublet %d gene count", i)
	}
}

func TestSimulateReproducibleWithSeed(t *testing.T) {
	a, err := New(settings("multinomial")).Simulate(context.Background(), testCounts(), 1.0)
	require.NoError(t, err)
	b, err := New(settings("multinomial")).Simulate(context.Background(), testCounts(), 1.0)
	require.NoError(t, err)

	assert.Equal(t, a, b, "same seed must reproduce the same doublets")
}

func TestSimulateAverageDepth(t *testing.T) {
	s := New(settings("average"))
	doublets, err := s.Simulate(context.Background(), testCounts(), 1.0)
	require.NoError(t, err)

	// Real depths are all 20, so every average-mode doublet carries
	// depth * 20 total counts.
	for i, row := range doublets {
		total := float64(0)
		for _, v := range row {
			total += float64(v)
		}
		assert.InDelta(t, 40.0, total, 1e-3, "doublet %d total", i)
	}
}

func TestSimulateSumDepth(t *testing.T) {
	s := New(settings("sum"))
	doublets, err := s.Simulate(context.Background(), testCounts(), 1.0)
	require.NoError(t, err)

	// Sum mode keeps the combined mass of both constituents.
	for i, row := range doublets {
		total := float64(0)
		for _, v := range row {
			total += float64(v)
		}
		assert.InDelta(t, 80.0, total, 1e-3, "doublet %d total", i)
	}
}

func TestSimulateMultinomialIntegerCounts(t *testing.T) {
	s := New(settings("multinomial"))
	doublets, err := s.Simulate(context.Background(), testCounts(), 1.0)
	require.NoError(t, err)

	for i, row := range doublets {
		total := float64(0)
		for _, v := range row {
			assert.Equal(t, float32(int(v)), v, "doublet %d has fractional counts", i)
			total += float64(v)
		}
		assert.InDelta(t, 40.0, total, 0.5, "doublet %d total draws", i)
	}
}

func TestSimulateValidation(t *testing.T) {
	tests := []struct {
		name   string
		counts [][]float32
		ratio  float64
	}{
		{"too few cells", [][]float32{{1, 2}}, 2.0},
		{"zero ratio", testCounts(), 0},
		{"ragged counts", [][]float32{{1, 2}, {3}}, 1.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(settings("average")).Simulate(context.Background(), tt.counts, tt.ratio)
			assert.Error(t, err)
		})
	}
}

func TestSimulateRandomizedDepthWithinRange(t *testing.T) {
	cfg := settings("average")
	cfg.RandomizeSize = true
	s := New(cfg)

	doublets, err := s.Simulate(context.Background(), testCounts(), 5.0)
	require.NoError(t, err)

	// Depth multipliers come from Unif(1, 2), so totals lie in [20, 40].
	for i, row := range doublets {
		total := float64(0)
		for _, v := range row {
			total += float64(v)
		}
		assert.GreaterOrEqual(t, total, 20.0-1e-3, "doublet %d", i)
		assert.LessOrEqual(t, total, 40.0+1e-3, "doublet %d", i)
	}
}
