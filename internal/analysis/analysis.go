// Package analysis wires the scoring, calibration, thresholding and
// smoothing stages into the end-to-end doublet detection run.
package analysis

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/scgenomics/doubletect/internal/calib"
	"github.com/scgenomics/doubletect/internal/classifier"
	"github.com/scgenomics/doubletect/internal/conf"
	"github.com/scgenomics/doubletect/internal/datastore"
	"github.com/scgenomics/doubletect/internal/errors"
	"github.com/scgenomics/doubletect/internal/metrics"
	"github.com/scgenomics/doubletect/internal/npy"
	"github.com/scgenomics/doubletect/internal/simulator"
	"github.com/scgenomics/doubletect/internal/smoother"
)

// Pipeline runs doublet detection end to end. Scorer may be nil when the
// input already carries precomputed logits, Store may be nil when database
// output is disabled.
type Pipeline struct {
	Settings *conf.Settings
	Scorer   classifier.Scorer
	Store    datastore.Interface
}

// RunResult summarizes one completed pipeline run over the real cells.
type RunResult struct {
	RunID      string
	RealCells  int
	Synthetic  int
	Threshold  float64
	Scores     []float64
	Calls      []bool
	Smoothed   []bool
	Converged  bool
	Iterations int
	Metrics    *metrics.Summary
}

// New creates a Pipeline over the given collaborators.
func New(settings *conf.Settings, scorer classifier.Scorer, store datastore.Interface) *Pipeline {
	return &Pipeline{Settings: settings, Scorer: scorer, Store: store}
}

// Run executes the full sequence: obtain logits, calibrate the real-cell
// scores against the doublet prior, select a threshold, optionally smooth
// the calls over the latent embedding, then persist everything.
func (p *Pipeline) Run(ctx context.Context) (*RunResult, error) {
	log := GetLogger()
	started := time.Now()
	runID := uuid.New().String()

	pairs, realCells, err := p.obtainLogits(ctx)
	if err != nil {
		return nil, err
	}
	if realCells <= 0 || realCells > len(pairs) {
		realCells = len(pairs)
	}

	rawScores := classifier.SoftmaxDoublets(pairs)
	logits := classifier.DoubletLogits(pairs)
	log.Info("scores ready",
		"run_id", runID,
		"real_cells", realCells,
		"synthetic_cells", len(pairs)-realCells)

	solo := &p.Settings.Solo
	result, err := calib.Calibrate(logits[:realCells], rawScores[:realCells], solo.TargetPrevalence(), calib.Options{
		Tolerance:     solo.Calibration.Tolerance,
		MinIterations: solo.Calibration.MinIterations,
		MaxIterations: solo.Calibration.MaxIterations,
	})
	if err != nil {
		return nil, err
	}
	scoresSim := calib.ApplyBias(logits[realCells:], result.Bias)

	threshold, calls, err := p.threshold(result.Scores)
	if err != nil {
		return nil, err
	}
	callsSim := make([]bool, len(scoresSim))
	for i, score := range scoresSim {
		callsSim[i] = score > threshold
	}

	calledDoublets := 0
	for _, call := range calls {
		if call {
			calledDoublets++
		}
	}
	log.Info("threshold selected",
		"run_id", runID,
		"threshold", threshold,
		"called_doublets", calledDoublets,
		"converged", result.Converged,
		"iterations", result.Iterations)

	smoothed, err := p.smooth(calls)
	if err != nil {
		return nil, err
	}

	preds := make([]bool, realCells)
	for i := range realCells {
		preds[i] = pairs[i].Doublet > pairs[i].Singlet
	}

	outputs := &outputSet{
		RawScores:    rawScores[:realCells],
		RawScoresSim: rawScores[realCells:],
		Logits:       logits[:realCells],
		LogitsSim:    logits[realCells:],
		Scores:       result.Scores,
		ScoresSim:    scoresSim,
		Calls:        calls,
		CallsSim:     callsSim,
		Preds:        preds,
		Smoothed:     smoothed,
	}
	if err := outputs.write(p.Settings.Output.Dir, p.Settings.Output.CSV); err != nil {
		return nil, err
	}

	run := &RunResult{
		RunID:      runID,
		RealCells:  realCells,
		Synthetic:  len(pairs) - realCells,
		Threshold:  threshold,
		Scores:     result.Scores,
		Calls:      calls,
		Smoothed:   smoothed,
		Converged:  result.Converged,
		Iterations: result.Iterations,
	}

	if path := p.Settings.Input.KnownPath; path != "" {
		summary, err := p.evaluate(path, calls, result.Scores)
		if err != nil {
			// Metrics are reporting only, a bad labels file must not
			// discard an otherwise finished run.
			log.Warn("skipping metrics", "run_id", runID, "error", err)
		} else {
			run.Metrics = summary
			log.Info("evaluation against known doublets",
				"run_id", runID,
				"accuracy", summary.Accuracy,
				"auroc", summary.ROCAUC,
				"average_precision", summary.AveragePrecision)
		}
	}

	if p.Store != nil {
		if err := p.persist(run, outputs, started); err != nil {
			return nil, err
		}
	}

	log.Info("run complete", "run_id", runID, "elapsed", time.Since(started))
	return run, nil
}

// obtainLogits returns raw classifier logits for all cells, real first, and
// the number of real cells. Precomputed logits win over on-the-fly scoring.
func (p *Pipeline) obtainLogits(ctx context.Context) ([]classifier.LogitPair, int, error) {
	input := &p.Settings.Input

	if input.LogitsPath != "" {
		pairs, err := loadLogitPairs(input.LogitsPath)
		if err != nil {
			return nil, 0, err
		}
		realCells := input.RealCells
		if input.SyntheticSim && realCells == 0 {
			return nil, 0, errors.Newf("input: realcells is required when logits include simulated doublets").
				Component("analysis").
				Category(errors.CategoryValidation).
				Build()
		}
		return pairs, realCells, nil
	}

	if p.Scorer == nil {
		return nil, 0, errors.Newf("input: no logits file configured and no classifier available").
			Component("analysis").
			Category(errors.CategoryValidation).
			Build()
	}
	if input.CountsPath == "" {
		return nil, 0, errors.Newf("input: countspath is required to score cells with the classifier").
			Component("analysis").
			Category(errors.CategoryValidation).
			Build()
	}

	counts, err := npy.ReadMatrix(input.CountsPath)
	if err != nil {
		return nil, 0, err
	}
	realCells := len(counts)

	sim := simulator.New(p.Settings.Solo.Simulation)
	doublets, err := sim.Simulate(ctx, counts, p.Settings.Solo.DoubletRatio)
	if err != nil {
		return nil, 0, err
	}
	counts = append(counts, doublets...)

	pairs, err := p.Scorer.Score(ctx, counts)
	if err != nil {
		return nil, 0, err
	}
	return pairs, realCells, nil
}

// threshold picks the cut point for the calibrated scores. Without an
// expected doublet count the default probability cut applies.
func (p *Pipeline) threshold(scores []float64) (float64, []bool, error) {
	expected := p.Settings.Solo.ExpectedDoublets
	if expected > 0 {
		return calib.SelectThreshold(scores, expected)
	}

	calls := make([]bool, len(scores))
	for i, score := range scores {
		calls[i] = score > calib.DefaultThreshold
	}
	return calib.DefaultThreshold, calls, nil
}

// smooth applies KNN majority voting over the latent embedding when enabled.
func (p *Pipeline) smooth(calls []bool) ([]bool, error) {
	smoothing := p.Settings.Solo.Smoothing
	if !smoothing.Enabled {
		return nil, nil
	}
	if p.Settings.Input.LatentPath == "" {
		return nil, errors.Newf("smoothing enabled but input: latentpath is not set").
			Component("analysis").
			Category(errors.CategoryValidation).
			Build()
	}

	latent, err := npy.ReadMatrix(p.Settings.Input.LatentPath)
	if err != nil {
		return nil, err
	}
	return smoother.NewKNN(smoothing.Neighbors).Smooth(latent, calls)
}

func (p *Pipeline) evaluate(path string, calls []bool, scores []float64) (*metrics.Summary, error) {
	known, err := loadKnownDoublets(path)
	if err != nil {
		return nil, err
	}
	summary, err := metrics.Evaluate(known, calls, scores)
	if err != nil {
		return nil, err
	}
	return &summary, nil
}

func (p *Pipeline) persist(run *RunResult, outputs *outputSet, started time.Time) error {
	record := &datastore.Run{
		RunID:            run.RunID,
		StartedAt:        started,
		CompletedAt:      time.Now(),
		InputPath:        firstNonEmpty(p.Settings.Input.LogitsPath, p.Settings.Input.CountsPath),
		RealCells:        run.RealCells,
		SyntheticCells:   run.Synthetic,
		DoubletRatio:     p.Settings.Solo.DoubletRatio,
		TargetPrevalence: p.Settings.Solo.TargetPrevalence(),
		Threshold:        run.Threshold,
		ExpectedDoublets: p.Settings.Solo.ExpectedDoublets,
		Converged:        run.Converged,
		Iterations:       run.Iterations,
	}
	for _, call := range run.Calls {
		if call {
			record.CalledDoublets++
		}
	}
	for i := range run.RealCells {
		cell := datastore.CellResult{
			CellIndex:    i,
			LogitDoublet: outputs.Logits[i],
			RawScore:     outputs.RawScores[i],
			Score:        outputs.Scores[i],
			IsDoublet:    outputs.Calls[i],
		}
		if outputs.Smoothed != nil {
			smoothed := outputs.Smoothed[i]
			cell.Smoothed = &smoothed
		}
		record.Cells = append(record.Cells, cell)
	}
	if err := p.Store.SaveRun(record); err != nil {
		return errors.New(err).
			Component("analysis").
			Category(errors.CategoryDatabase).
			Context("run_id", run.RunID).
			Build()
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
