package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/scgenomics/doubletect/cmd/calibrate"
	"github.com/scgenomics/doubletect/cmd/detect"
	"github.com/scgenomics/doubletect/internal/conf"
)

// RootCommand creates and returns the root command
func RootCommand(settings *conf.Settings) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "doubletect",
		Short: "Doublet detection for single cell sequencing data",
		Long: `doubletect scores cells for doublet artifacts, calibrates the scores
against the synthetic doublet prior and calls doublets by threshold.`,
	}

	setupFlags(rootCmd, settings)

	subcommands := []*cobra.Command{
		detect.Command(settings),
		calibrate.Command(settings),
	}
	rootCmd.AddCommand(subcommands...)

	return rootCmd
}

// setupFlags defines flags that are global to the command line interface
func setupFlags(rootCmd *cobra.Command, settings *conf.Settings) {
	rootCmd.PersistentFlags().BoolVarP(&settings.Debug, "debug", "d", viper.GetBool("debug"), "Enable debug output")
	rootCmd.PersistentFlags().StringVarP(&settings.Output.Dir, "output", "o", viper.GetString("output.dir"), "Path to output directory")
	rootCmd.PersistentFlags().BoolVar(&settings.Output.CSV, "csv", viper.GetBool("output.csv"), "Also write csv files alongside npy outputs")
}
