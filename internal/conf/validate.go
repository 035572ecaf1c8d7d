// conf/validate.go settings validation
package conf

import (
	"fmt"
	"strings"
)

// validDoubletTypes are the supported count combination modes for simulation.
var validDoubletTypes = map[string]bool{
	"multinomial": true,
	"average":     true,
	"sum":         true,
}

// ValidateSettings checks domain constraints on loaded settings and collects
// every violation instead of stopping at the first one.
func ValidateSettings(settings *Settings) error {
	var problems []string

	if settings.Solo.DoubletRatio <= 0 {
		problems = append(problems, fmt.Sprintf("solo.doubletratio must be > 0, got %g", settings.Solo.DoubletRatio))
	}
	if settings.Solo.ExpectedDoublets < 0 {
		problems = append(problems, fmt.Sprintf("solo.expecteddoublets must be >= 0, got %d", settings.Solo.ExpectedDoublets))
	}

	cal := settings.Solo.Calibration
	if cal.Tolerance <= 0 {
		problems = append(problems, fmt.Sprintf("solo.calibration.tolerance must be > 0, got %g", cal.Tolerance))
	}
	if cal.MinIterations < 1 {
		problems = append(problems, fmt.Sprintf("solo.calibration.miniterations must be >= 1, got %d", cal.MinIterations))
	}
	if cal.MaxIterations < cal.MinIterations {
		problems = append(problems, fmt.Sprintf("solo.calibration.maxiterations (%d) must be >= miniterations (%d)",
			cal.MaxIterations, cal.MinIterations))
	}

	if settings.Solo.Smoothing.Enabled && settings.Solo.Smoothing.Neighbors < 1 {
		problems = append(problems, fmt.Sprintf("solo.smoothing.neighbors must be >= 1, got %d", settings.Solo.Smoothing.Neighbors))
	}

	sim := settings.Solo.Simulation
	if !validDoubletTypes[sim.DoubletType] {
		problems = append(problems, fmt.Sprintf("solo.simulation.doublettype must be one of multinomial, average, sum; got %q", sim.DoubletType))
	}
	if sim.DoubletDepth < 1 {
		problems = append(problems, fmt.Sprintf("solo.simulation.doubletdepth must be >= 1, got %g", sim.DoubletDepth))
	}

	if settings.Input.RealCells < 0 {
		problems = append(problems, fmt.Sprintf("input.realcells must be >= 0, got %d", settings.Input.RealCells))
	}

	if settings.Output.SQLite.Enabled && settings.Output.SQLite.Path == "" {
		problems = append(problems, "output.sqlite.path must be set when sqlite output is enabled")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid settings: %s", strings.Join(problems, "; "))
	}
	return nil
}

// TargetPrevalence derives the prior doublet rate from the configured ratio.
func (s *SoloSettings) TargetPrevalence() float64 {
	return s.DoubletRatio / (s.DoubletRatio + 1)
}
