// Package calib implements doublet score calibration and decision thresholding.
package calib

import (
	"log/slog"
	"sync"

	"github.com/scgenomics/doubletect/internal/logging"
)

var (
	serviceLogger *slog.Logger
	initOnce      sync.Once
)

// GetLogger returns the calib package logger.
// Uses sync.Once to ensure the logger is only initialized once.
func GetLogger() *slog.Logger {
	initOnce.Do(func() {
		serviceLogger = logging.ForService("calib")
	})
	return serviceLogger
}
