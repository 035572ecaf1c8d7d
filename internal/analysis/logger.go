package analysis

import (
	"log/slog"
	"sync"

	"github.com/scgenomics/doubletect/internal/logging"
)

var (
	logger     *slog.Logger
	loggerOnce sync.Once
)

// GetLogger returns the shared analysis logger.
func GetLogger() *slog.Logger {
	loggerOnce.Do(func() {
		logger = logging.ForService("analysis")
	})
	return logger
}
