// conf/defaults.go default values for settings
package conf

import (
	"github.com/spf13/viper"
)

// Sets default values for the configuration.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	viper.SetDefault("main.name", "doubletect")
	viper.SetDefault("main.log.enabled", true)
	viper.SetDefault("main.log.path", "doubletect.log")

	viper.SetDefault("input.logitspath", "")
	viper.SetDefault("input.latentpath", "")
	viper.SetDefault("input.countspath", "")
	viper.SetDefault("input.knownpath", "")
	viper.SetDefault("input.realcells", 0)
	viper.SetDefault("input.syntheticsim", true)

	viper.SetDefault("solo.doubletratio", 2.0)
	viper.SetDefault("solo.expecteddoublets", 0)

	viper.SetDefault("solo.calibration.tolerance", 0.01)
	viper.SetDefault("solo.calibration.miniterations", 5)
	viper.SetDefault("solo.calibration.maxiterations", 1000)

	viper.SetDefault("solo.smoothing.enabled", false)
	viper.SetDefault("solo.smoothing.neighbors", 15)

	viper.SetDefault("solo.classifier.modelpath", "")
	viper.SetDefault("solo.classifier.threads", 0)
	viper.SetDefault("solo.classifier.batchsize", 128)

	viper.SetDefault("solo.simulation.doubletdepth", 2.0)
	viper.SetDefault("solo.simulation.doublettype", "multinomial")
	viper.SetDefault("solo.simulation.randomizesize", false)
	viper.SetDefault("solo.simulation.seed", 0)

	viper.SetDefault("output.dir", "doubletect_out")
	viper.SetDefault("output.csv", true)
	viper.SetDefault("output.sqlite.enabled", false)
	viper.SetDefault("output.sqlite.path", "doubletect.db")
}
