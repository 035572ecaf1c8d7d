package analysis

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/scgenomics/doubletect/internal/classifier"
	"github.com/scgenomics/doubletect/internal/errors"
	"github.com/scgenomics/doubletect/internal/npy"
)

// loadLogitPairs reads an N x 2 array of raw classifier logits, from .npy or
// from delimited text with one "singlet,doublet" row per cell.
func loadLogitPairs(path string) ([]classifier.LogitPair, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".npy":
		matrix, err := npy.ReadMatrix(path)
		if err != nil {
			return nil, err
		}
		pairs := make([]classifier.LogitPair, len(matrix))
		for i, row := range matrix {
			if len(row) != 2 {
				return nil, errors.Newf("load logits %s: row %d has %d columns, want 2", path, i, len(row)).
					Component("analysis").
					Category(errors.CategoryFileParsing).
					Context("path", path).
					Build()
			}
			pairs[i] = classifier.LogitPair{Singlet: float64(row[0]), Doublet: float64(row[1])}
		}
		return pairs, nil
	case ".csv", ".tsv", ".txt":
		return loadDelimitedLogits(path)
	default:
		return nil, errors.Newf("load logits %s: unsupported extension", path).
			Component("analysis").
			Category(errors.CategoryFileParsing).
			Context("path", path).
			Build()
	}
}

func loadDelimitedLogits(path string) ([]classifier.LogitPair, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.New(err).
			Component("analysis").
			Category(errors.CategoryFileIO).
			Context("path", path).
			Build()
	}
	defer f.Close()

	reader := csv.NewReader(f)
	if strings.HasSuffix(strings.ToLower(path), ".tsv") {
		reader.Comma = '\t'
	}
	reader.FieldsPerRecord = 2

	records, err := reader.ReadAll()
	if err != nil {
		return nil, errors.New(err).
			Component("analysis").
			Category(errors.CategoryFileParsing).
			Context("path", path).
			Build()
	}

	pairs := make([]classifier.LogitPair, 0, len(records))
	for i, record := range records {
		singlet, err := strconv.ParseFloat(strings.TrimSpace(record[0]), 64)
		if err != nil {
			// A non-numeric first row is a header, anywhere else it is corrupt.
			if i == 0 {
				continue
			}
			return nil, errors.New(err).
				Component("analysis").
				Category(errors.CategoryFileParsing).
				Context("path", path).
				Context("row", i).
				Build()
		}
		doublet, err := strconv.ParseFloat(strings.TrimSpace(record[1]), 64)
		if err != nil {
			return nil, errors.New(err).
				Component("analysis").
				Category(errors.CategoryFileParsing).
				Context("path", path).
				Context("row", i).
				Build()
		}
		pairs = append(pairs, classifier.LogitPair{Singlet: singlet, Doublet: doublet})
	}
	return pairs, nil
}

// loadKnownDoublets reads ground-truth doublet labels, from a boolean .npy
// vector or from text with one True/False (or 1/0) value per line.
func loadKnownDoublets(path string) ([]bool, error) {
	if strings.EqualFold(filepath.Ext(path), ".npy") {
		return npy.ReadBoolVector(path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.New(err).
			Component("analysis").
			Category(errors.CategoryFileIO).
			Context("path", path).
			Build()
	}

	var known []bool
	line := 0
	for raw := range strings.SplitSeq(string(data), "\n") {
		line++
		text := strings.TrimSpace(raw)
		if text == "" {
			continue
		}
		value, err := strconv.ParseBool(text)
		if err != nil {
			return nil, errors.Newf("known doublets %s: line %d: %q is not a boolean", path, line, text).
				Component("analysis").
				Category(errors.CategoryFileParsing).
				Context("path", path).
				Build()
		}
		known = append(known, value)
	}
	return known, nil
}
