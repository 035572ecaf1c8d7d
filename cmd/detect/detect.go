// Package detect implements the full doublet detection pipeline command.
package detect

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/scgenomics/doubletect/internal/analysis"
	"github.com/scgenomics/doubletect/internal/classifier"
	"github.com/scgenomics/doubletect/internal/conf"
	"github.com/scgenomics/doubletect/internal/datastore"
)

// Command creates the detect command, which scores cells with the trained
// classifier, simulating doublets first when the input is raw counts.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "detect",
		Short: "Run doublet detection end to end",
		Long: `Score cells for doublets, calibrate the scores against the doublet
prior and write per cell calls. Input is either a counts matrix scored by the
trained classifier, or precomputed classifier logits.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDetect(cmd, settings)
		},
	}

	setupFlags(cmd, settings)

	return cmd
}

func runDetect(cmd *cobra.Command, settings *conf.Settings) error {
	var scorer classifier.Scorer
	if settings.Input.LogitsPath == "" {
		if settings.Solo.Classifier.ModelPath == "" {
			return fmt.Errorf("either --logits or --model is required")
		}
		tf, err := classifier.NewTFLite(settings.Solo.Classifier)
		if err != nil {
			return err
		}
		defer tf.Delete()
		scorer = tf
	}

	store := datastore.New(settings)
	if store != nil {
		if err := store.Open(); err != nil {
			return err
		}
		defer store.Close() //nolint:errcheck // nothing to do on close failure
	}

	result, err := analysis.New(settings, scorer, store).Run(cmd.Context())
	if err != nil {
		return err
	}

	called := 0
	for _, call := range result.Calls {
		if call {
			called++
		}
	}
	fmt.Printf("Run %s: %d of %d cells called as doublets at threshold %.4f\n",
		result.RunID, called, result.RealCells, result.Threshold)
	return nil
}

// setupFlags configures flags specific to the detect command.
func setupFlags(cmd *cobra.Command, settings *conf.Settings) {
	cmd.Flags().StringVar(&settings.Input.CountsPath, "counts", viper.GetString("input.countspath"), "Path to cell by gene counts (.npy)")
	cmd.Flags().StringVar(&settings.Input.LogitsPath, "logits", viper.GetString("input.logitspath"), "Path to precomputed N x 2 classifier logits (.npy or .csv)")
	cmd.Flags().StringVar(&settings.Input.LatentPath, "latent", viper.GetString("input.latentpath"), "Path to latent embedding (.npy), required for smoothing")
	cmd.Flags().StringVar(&settings.Input.KnownPath, "known-doublets", viper.GetString("input.knownpath"), "Path to known doublet labels for evaluation")
	cmd.Flags().IntVar(&settings.Input.RealCells, "real-cells", viper.GetInt("input.realcells"), "Number of real cells, rows beyond are synthetic")
	cmd.Flags().StringVarP(&settings.Solo.Classifier.ModelPath, "model", "m", viper.GetString("solo.classifier.modelpath"), "Path to trained classifier .tflite model")
	cmd.Flags().Float64VarP(&settings.Solo.DoubletRatio, "doublet-ratio", "r", viper.GetFloat64("solo.doubletratio"), "Ratio of simulated doublets to real cells")
	cmd.Flags().IntVarP(&settings.Solo.ExpectedDoublets, "expected-doublets", "e", viper.GetInt("solo.expecteddoublets"), "Experimentally expected number of doublets, 0 if unknown")
	cmd.Flags().Float64Var(&settings.Solo.Simulation.DoubletDepth, "doublet-depth", viper.GetFloat64("solo.simulation.doubletdepth"), "Depth multiplier for simulated doublets")
	cmd.Flags().StringVarP(&settings.Solo.Simulation.DoubletType, "doublet-type", "t", viper.GetString("solo.simulation.doublettype"), "Doublet synthesis mode: multinomial, average or sum")
	cmd.Flags().BoolVar(&settings.Solo.Simulation.RandomizeSize, "randomize-doublet-size", viper.GetBool("solo.simulation.randomizesize"), "Sample doublet depth multipliers from Unif(1, depth)")
	cmd.Flags().Int64Var(&settings.Solo.Simulation.Seed, "seed", viper.GetInt64("solo.simulation.seed"), "Simulation RNG seed, 0 for time based")
	cmd.Flags().BoolVar(&settings.Solo.Smoothing.Enabled, "smooth", viper.GetBool("solo.smoothing.enabled"), "Smooth calls over the latent embedding with KNN majority vote")
	cmd.Flags().IntVar(&settings.Solo.Smoothing.Neighbors, "neighbors", viper.GetInt("solo.smoothing.neighbors"), "Number of neighbors for the smoothing vote")
}
