// Package calibrate implements recalibration of precomputed classifier logits.
package calibrate

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/scgenomics/doubletect/internal/analysis"
	"github.com/scgenomics/doubletect/internal/conf"
	"github.com/scgenomics/doubletect/internal/datastore"
)

// Command creates the calibrate command. It reruns calibration and
// thresholding on logits from an earlier scoring pass, without touching the
// classifier, so the doublet prior or expected count can be revised cheaply.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "calibrate [logits-file]",
		Short: "Recalibrate precomputed classifier logits",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			settings.Input.LogitsPath = args[0]
			return runCalibrate(cmd, settings)
		},
	}

	setupFlags(cmd, settings)

	return cmd
}

func runCalibrate(cmd *cobra.Command, settings *conf.Settings) error {
	store := datastore.New(settings)
	if store != nil {
		if err := store.Open(); err != nil {
			return err
		}
		defer store.Close() //nolint:errcheck // nothing to do on close failure
	}

	result, err := analysis.New(settings, nil, store).Run(cmd.Context())
	if err != nil {
		return err
	}

	status := "converged"
	if !result.Converged {
		status = "did not converge"
	}
	fmt.Printf("Run %s: calibration %s after %d iterations, threshold %.4f\n",
		result.RunID, status, result.Iterations, result.Threshold)
	return nil
}

// setupFlags configures flags specific to the calibrate command.
func setupFlags(cmd *cobra.Command, settings *conf.Settings) {
	cmd.Flags().IntVar(&settings.Input.RealCells, "real-cells", viper.GetInt("input.realcells"), "Number of real cells, rows beyond are synthetic")
	cmd.Flags().BoolVar(&settings.Input.SyntheticSim, "has-synthetic", viper.GetBool("input.syntheticsim"), "Logits file includes simulated doublets after the real cells")
	cmd.Flags().Float64VarP(&settings.Solo.DoubletRatio, "doublet-ratio", "r", viper.GetFloat64("solo.doubletratio"), "Ratio of simulated doublets to real cells")
	cmd.Flags().IntVarP(&settings.Solo.ExpectedDoublets, "expected-doublets", "e", viper.GetInt("solo.expecteddoublets"), "Experimentally expected number of doublets, 0 if unknown")
	cmd.Flags().Float64Var(&settings.Solo.Calibration.Tolerance, "tolerance", viper.GetFloat64("solo.calibration.tolerance"), "Convergence tolerance on the mean score")
	cmd.Flags().IntVar(&settings.Solo.Calibration.MaxIterations, "max-iterations", viper.GetInt("solo.calibration.maxiterations"), "Hard cap on calibration passes")
	cmd.Flags().StringVar(&settings.Input.KnownPath, "known-doublets", viper.GetString("input.knownpath"), "Path to known doublet labels for evaluation")
}
