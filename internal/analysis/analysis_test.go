package analysis

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scgenomics/doubletect/internal/classifier"
	"github.com/scgenomics/doubletect/internal/conf"
	"github.com/scgenomics/doubletect/internal/npy"
)

// fakeScorer scores each cell by its total count, no model required.
type fakeScorer struct{}

func (fakeScorer) Score(_ context.Context, inputs [][]float32) ([]classifier.LogitPair, error) {
	pairs := make([]classifier.LogitPair, len(inputs))
	for i, row := range inputs {
		total := float64(0)
		for _, v := range row {
			total += float64(v)
		}
		pairs[i] = classifier.LogitPair{Singlet: 1, Doublet: total / 10}
	}
	return pairs, nil
}

func testSettings(t *testing.T) *conf.Settings {
	t.Helper()
	settings := &conf.Settings{}
	settings.Solo.DoubletRatio = 2.0
	settings.Solo.Calibration.Tolerance = 0.01
	settings.Solo.Calibration.MinIterations = 5
	settings.Solo.Calibration.MaxIterations = 1000
	settings.Solo.Smoothing.Neighbors = 3
	settings.Solo.Simulation.DoubletDepth = 2.0
	settings.Solo.Simulation.DoubletType = "average"
	settings.Solo.Simulation.Seed = 7
	settings.Output.Dir = t.TempDir()
	settings.Output.CSV = true
	return settings
}

// writeLogitsFixture writes 20 cells with strictly increasing doublet logits.
func writeLogitsFixture(t *testing.T, dir string) string {
	t.Helper()
	matrix := make([][]float32, 20)
	for i := range matrix {
		matrix[i] = []float32{0, float32(i)/4 - 2}
	}
	path := filepath.Join(dir, "logits.npy")
	require.NoError(t, npy.WriteMatrix(path, matrix))
	return path
}

func TestRunWithPrecomputedLogits(t *testing.T) {
	settings := testSettings(t)
	settings.Input.LogitsPath = writeLogitsFixture(t, t.TempDir())
	settings.Solo.ExpectedDoublets = 5

	result, err := New(settings, nil, nil).Run(context.Background())
	require.NoError(t, err)

	assert.Len(t, result.Scores, 20)
	assert.Len(t, result.Calls, 20)
	assert.Equal(t, 20, result.RealCells)
	assert.Zero(t, result.Synthetic)

	called := 0
	for _, call := range result.Calls {
		if call {
			called++
		}
	}
	assert.Equal(t, 5, called, "distinct scores make the call count exact")

	// The five highest logits carry the calls.
	for i, call := range result.Calls {
		assert.Equal(t, i >= 15, call, "cell %d", i)
	}
}

func TestRunWritesOutputFiles(t *testing.T) {
	settings := testSettings(t)
	settings.Input.LogitsPath = writeLogitsFixture(t, t.TempDir())

	_, err := New(settings, nil, nil).Run(context.Background())
	require.NoError(t, err)

	scores, err := npy.ReadVector(filepath.Join(settings.Output.Dir, "softmax_scores.npy"))
	require.NoError(t, err)
	assert.Len(t, scores, 20)
	for i, s := range scores {
		assert.GreaterOrEqual(t, s, 0.0, "score %d", i)
		assert.LessOrEqual(t, s, 1.0, "score %d", i)
	}

	calls, err := npy.ReadBoolVector(filepath.Join(settings.Output.Dir, "is_doublet.npy"))
	require.NoError(t, err)
	assert.Len(t, calls, 20)

	for _, name := range []string{
		"no_updates_softmax_scores.npy", "logit_scores.npy", "preds.npy",
		"softmax_scores.csv", "is_doublet.csv", "logit_scores.csv",
	} {
		_, err := os.Stat(filepath.Join(settings.Output.Dir, name))
		assert.NoError(t, err, "missing %s", name)
	}

	// No simulated cells, so no _sim outputs.
	_, err = os.Stat(filepath.Join(settings.Output.Dir, "softmax_scores_sim.npy"))
	assert.True(t, os.IsNotExist(err))
}

func TestRunWithScorerAndSimulation(t *testing.T) {
	settings := testSettings(t)

	counts := make([][]float32, 10)
	for i := range counts {
		counts[i] = []float32{float32(i + 1), float32(10 - i), 2, 3}
	}
	countsPath := filepath.Join(t.TempDir(), "counts.npy")
	require.NoError(t, npy.WriteMatrix(countsPath, counts))
	settings.Input.CountsPath = countsPath

	result, err := New(settings, fakeScorer{}, nil).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 10, result.RealCells)
	assert.Equal(t, 20, result.Synthetic, "ratio 2 over 10 real cells")

	simScores, err := npy.ReadVector(filepath.Join(settings.Output.Dir, "softmax_scores_sim.npy"))
	require.NoError(t, err)
	assert.Len(t, simScores, 20)
}

func TestRunWithSmoothing(t *testing.T) {
	settings := testSettings(t)
	settings.Input.LogitsPath = writeLogitsFixture(t, t.TempDir())
	settings.Solo.Smoothing.Enabled = true

	latent := make([][]float32, 20)
	for i := range latent {
		latent[i] = []float32{float32(i), 0}
	}
	latentPath := filepath.Join(t.TempDir(), "latent.npy")
	require.NoError(t, npy.WriteMatrix(latentPath, latent))
	settings.Input.LatentPath = latentPath

	result, err := New(settings, nil, nil).Run(context.Background())
	require.NoError(t, err)
	require.Len(t, result.Smoothed, 20)

	_, err = os.Stat(filepath.Join(settings.Output.Dir, "smoothed_preds.npy"))
	assert.NoError(t, err)
}

func TestRunSmoothingRequiresLatent(t *testing.T) {
	settings := testSettings(t)
	settings.Input.LogitsPath = writeLogitsFixture(t, t.TempDir())
	settings.Solo.Smoothing.Enabled = true

	_, err := New(settings, nil, nil).Run(context.Background())
	assert.Error(t, err)
}

func TestRunEvaluatesKnownDoublets(t *testing.T) {
	settings := testSettings(t)
	settings.Input.LogitsPath = writeLogitsFixture(t, t.TempDir())
	settings.Solo.ExpectedDoublets = 5

	var labels string
	for i := range 20 {
		labels += fmt.Sprintf("%v\n", i >= 15)
	}
	knownPath := filepath.Join(t.TempDir(), "known.txt")
	require.NoError(t, os.WriteFile(knownPath, []byte(labels), 0o644))
	settings.Input.KnownPath = knownPath

	result, err := New(settings, nil, nil).Run(context.Background())
	require.NoError(t, err)
	require.NotNil(t, result.Metrics)

	assert.InDelta(t, 1.0, result.Metrics.Accuracy, 1e-9)
	assert.InDelta(t, 1.0, result.Metrics.ROCAUC, 1e-9)
}

func TestRunRequiresLogitsOrScorer(t *testing.T) {
	settings := testSettings(t)

	_, err := New(settings, nil, nil).Run(context.Background())
	assert.Error(t, err)
}

func TestRunRealCellsRequiredForSyntheticLogits(t *testing.T) {
	settings := testSettings(t)
	settings.Input.LogitsPath = writeLogitsFixture(t, t.TempDir())
	settings.Input.SyntheticSim = true

	_, err := New(settings, nil, nil).Run(context.Background())
	assert.Error(t, err)
}

func TestLoadLogitPairsCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logits.csv")
	content := "singlet,doublet\n0.5,-1.25\n-0.5,2.0\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	pairs, err := loadLogitPairs(path)
	require.NoError(t, err)
	require.Len(t, pairs, 2)
	assert.Equal(t, classifier.LogitPair{Singlet: 0.5, Doublet: -1.25}, pairs[0])
	assert.Equal(t, classifier.LogitPair{Singlet: -0.5, Doublet: 2.0}, pairs[1])
}

func TestLoadKnownDoubletsText(t *testing.T) {
	path := filepath.Join(t.TempDir(), "known.txt")
	require.NoError(t, os.WriteFile(path, []byte("True\nFalse\n1\n0\n\n"), 0o644))

	known, err := loadKnownDoublets(path)
	require.NoError(t, err)
	assert.Equal(t, []bool{true, false, true, false}, known)
}

func TestLoadKnownDoubletsRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "known.txt")
	require.NoError(t, os.WriteFile(path, []byte("True\nmaybe\n"), 0o644))

	_, err := loadKnownDoublets(path)
	assert.Error(t, err)
}
