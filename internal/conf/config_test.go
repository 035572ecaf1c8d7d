package conf

import (
	"strings"
	"testing"
)

func validSettings() *Settings {
	s := &Settings{}
	s.Solo.DoubletRatio = 2.0
	s.Solo.Calibration.Tolerance = 0.01
	s.Solo.Calibration.MinIterations = 5
	s.Solo.Calibration.MaxIterations = 1000
	s.Solo.Smoothing.Neighbors = 15
	s.Solo.Simulation.DoubletType = "multinomial"
	s.Solo.Simulation.DoubletDepth = 2.0
	s.Output.Dir = "out"
	return s
}

func TestValidateSettings(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Settings)
		wantErr string
	}{
		{"valid defaults", func(s *Settings) {}, ""},
		{"zero ratio", func(s *Settings) { s.Solo.DoubletRatio = 0 }, "doubletratio"},
		{"negative ratio", func(s *Settings) { s.Solo.DoubletRatio = -1 }, "doubletratio"},
		{"negative expected doublets", func(s *Settings) { s.Solo.ExpectedDoublets = -3 }, "expecteddoublets"},
		{"zero tolerance", func(s *Settings) { s.Solo.Calibration.Tolerance = 0 }, "tolerance"},
		{"zero min iterations", func(s *Settings) { s.Solo.Calibration.MinIterations = 0 }, "miniterations"},
		{"max below min", func(s *Settings) { s.Solo.Calibration.MaxIterations = 2 }, "maxiterations"},
		{"bad neighbors", func(s *Settings) {
			s.Solo.Smoothing.Enabled = true
			s.Solo.Smoothing.Neighbors = 0
		}, "neighbors"},
		{"bad doublet type", func(s *Settings) { s.Solo.Simulation.DoubletType = "median" }, "doublettype"},
		{"depth below one", func(s *Settings) { s.Solo.Simulation.DoubletDepth = 0.5 }, "doubletdepth"},
		{"sqlite without path", func(s *Settings) {
			s.Output.SQLite.Enabled = true
			s.Output.SQLite.Path = ""
		}, "sqlite"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := validSettings()
			tt.mutate(s)
			err := ValidateSettings(s)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("ValidateSettings() unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("ValidateSettings() expected error mentioning %q, got nil", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("ValidateSettings() error = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidateSettingsCollectsAllProblems(t *testing.T) {
	s := validSettings()
	s.Solo.DoubletRatio = 0
	s.Solo.Calibration.Tolerance = -1

	err := ValidateSettings(s)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "doubletratio") || !strings.Contains(err.Error(), "tolerance") {
		t.Errorf("expected both violations reported, got: %v", err)
	}
}

func TestTargetPrevalence(t *testing.T) {
	tests := []struct {
		ratio float64
		want  float64
	}{
		{2.0, 2.0 / 3.0},
		{1.0, 0.5},
		{0.5, 1.0 / 3.0},
	}
	for _, tt := range tests {
		s := &SoloSettings{DoubletRatio: tt.ratio}
		if got := s.TargetPrevalence(); got != tt.want {
			t.Errorf("TargetPrevalence(ratio=%g) = %g, want %g", tt.ratio, got, tt.want)
		}
	}
}
