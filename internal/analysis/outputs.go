package analysis

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/scgenomics/doubletect/internal/errors"
	"github.com/scgenomics/doubletect/internal/npy"
)

// outputSet holds every per-cell array a finished run writes to disk. Slices
// named *Sim cover the synthetic doublets and may be empty.
type outputSet struct {
	RawScores    []float64 // softmax doublet scores before calibration
	RawScoresSim []float64
	Logits       []float64 // raw doublet logits
	LogitsSim    []float64
	Scores       []float64 // calibrated doublet scores
	ScoresSim    []float64
	Calls        []bool // thresholded doublet calls
	CallsSim     []bool
	Preds        []bool // argmax class predictions, doublet when true
	Smoothed     []bool // nil when smoothing was disabled
}

// write persists the output set under dir, npy always and single column
// delimited text alongside when withCSV is set. File names follow the
// established solo output convention so downstream notebooks keep working.
func (o *outputSet) write(dir string, withCSV bool) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.New(err).
			Component("analysis").
			Category(errors.CategoryFileIO).
			Context("dir", dir).
			Build()
	}

	vectors := []struct {
		name string
		data []float64
		csv  bool
	}{
		{"no_updates_softmax_scores", o.RawScores, true},
		{"no_updates_softmax_scores_sim", o.RawScoresSim, false},
		{"logit_scores", o.Logits, true},
		{"logit_scores_sim", o.LogitsSim, false},
		{"softmax_scores", o.Scores, true},
		{"softmax_scores_sim", o.ScoresSim, false},
	}
	for _, v := range vectors {
		if len(v.data) == 0 {
			continue
		}
		if err := writeVector(dir, v.name, v.data, withCSV && v.csv); err != nil {
			return err
		}
	}

	bools := []struct {
		name string
		data []bool
		csv  bool
	}{
		{"is_doublet", o.Calls, true},
		{"is_doublet_sim", o.CallsSim, false},
		{"preds", o.Preds, true},
		{"smoothed_preds", o.Smoothed, false},
	}
	for _, b := range bools {
		if len(b.data) == 0 {
			continue
		}
		if err := writeBoolVector(dir, b.name, b.data, withCSV && b.csv); err != nil {
			return err
		}
	}
	return nil
}

func writeVector(dir, name string, data []float64, withCSV bool) error {
	if err := npy.WriteVector(filepath.Join(dir, name+".npy"), data); err != nil {
		return err
	}
	if !withCSV {
		return nil
	}
	var sb strings.Builder
	for _, v := range data {
		sb.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
		sb.WriteByte('\n')
	}
	return writeTextFile(filepath.Join(dir, name+".csv"), sb.String())
}

func writeBoolVector(dir, name string, data []bool, withCSV bool) error {
	if err := npy.WriteBoolVector(filepath.Join(dir, name+".npy"), data); err != nil {
		return err
	}
	if !withCSV {
		return nil
	}
	var sb strings.Builder
	for _, v := range data {
		if v {
			sb.WriteString("1\n")
		} else {
			sb.WriteString("0\n")
		}
	}
	return writeTextFile(filepath.Join(dir, name+".csv"), sb.String())
}

func writeTextFile(path, content string) error {
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil { //nolint:gosec // analysis outputs are not sensitive
		return errors.New(err).
			Component("analysis").
			Category(errors.CategoryFileIO).
			Context("path", path).
			Build()
	}
	return nil
}
