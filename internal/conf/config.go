// config.go: settings struct and functions to load and save application configuration.
package conf

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

//go:embed config.yaml
var configFiles embed.FS

// LogConfig contains settings for application log files.
type LogConfig struct {
	Enabled bool   // true to enable file logging
	Path    string // path to log file
}

// MainSettings contains application level settings.
type MainSettings struct {
	Name string    // node name, used to identify the run source
	Log  LogConfig // application log settings
}

// InputSettings describes the arrays handed to the pipeline.
type InputSettings struct {
	LogitsPath   string // path to N x 2 raw classifier logits (.npy or .csv)
	LatentPath   string // path to N_real x D latent embedding (.npy), required for smoothing
	CountsPath   string // path to cell by gene counts (.npy), required for simulation
	KnownPath    string // optional single column True/False file of known doublets
	RealCells    int    // number of real cells N_real; rows beyond are synthetic
	SyntheticSim bool   // true when the logits file already includes simulated doublets
}

// CalibrationSettings controls the score calibration loop.
type CalibrationSettings struct {
	Tolerance     float64 // convergence tolerance on the mean score
	MinIterations int     // minimum number of calibration passes
	MaxIterations int     // hard cap on calibration passes
}

// SmoothingSettings controls KNN majority vote smoothing of doublet calls.
type SmoothingSettings struct {
	Enabled   bool // true to smooth calls over the latent embedding
	Neighbors int  // number of nearest neighbors for the majority vote
}

// ClassifierSettings configures the TensorFlow Lite classifier collaborator.
type ClassifierSettings struct {
	ModelPath string // path to trained solo classifier .tflite file
	Threads   int    // number of interpreter threads, 0 for all CPUs
	BatchSize int    // cells scored per progress-reporting batch
}

// SimulationSettings configures synthetic doublet generation.
type SimulationSettings struct {
	DoubletDepth  float64 // depth multiplier for a doublet relative to its constituents
	DoubletType   string  // "multinomial", "average" or "sum"
	RandomizeSize bool    // sample depth multipliers from Unif(1, DoubletDepth)
	Seed          int64   // RNG seed, 0 for time-based
}

// SoloSettings groups the doublet detection knobs.
type SoloSettings struct {
	DoubletRatio     float64             // ratio of synthesized doublets to real cells
	ExpectedDoublets int                 // experimentally expected number of doublets, 0 if unknown
	Calibration      CalibrationSettings // calibration loop settings
	Smoothing        SmoothingSettings   // smoothing settings
	Classifier       ClassifierSettings  // classifier settings
	Simulation       SimulationSettings  // simulation settings
}

// SQLiteSettings contains settings for the SQLite output database.
type SQLiteSettings struct {
	Enabled bool   // true to enable sqlite output
	Path    string // path to sqlite database
}

// OutputSettings describes where scores and calls are persisted.
type OutputSettings struct {
	Dir    string         // output directory for score and call files
	CSV    bool           // also write delimited text alongside npy arrays
	SQLite SQLiteSettings // sqlite output settings
}

// Settings is the root configuration struct mirrored from config.yaml.
type Settings struct {
	Debug  bool           // true to enable debug log output
	Main   MainSettings   // application settings
	Input  InputSettings  // input arrays
	Solo   SoloSettings   // doublet detection settings
	Output OutputSettings // output settings
}

var (
	settingsInstance *Settings
	once             sync.Once
	settingsMutex    sync.RWMutex
)

// Load reads the configuration into a new Settings instance and stores it
// as the package singleton.
func Load() (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	settings := &Settings{}

	if err := initViper(); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	if err := viper.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	settingsInstance = settings
	return settingsInstance, nil
}

// initViper sets defaults, locates a config file and reads it. A missing
// config file is not an error, a default one is written instead.
func initViper() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}
	for _, path := range configPaths {
		viper.AddConfigPath(path)
	}

	setDefaultConfig()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
		return createDefaultConfig(configPaths)
	}
	return nil
}

// createDefaultConfig writes the embedded default config.yaml into the first
// usable config path and loads it.
func createDefaultConfig(configPaths []string) error {
	if len(configPaths) == 0 {
		return fmt.Errorf("no config paths available")
	}
	configPath := filepath.Join(configPaths[0], "config.yaml")

	defaultConfig, err := getDefaultConfig()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return fmt.Errorf("error creating directories for config file: %w", err)
	}
	if err := os.WriteFile(configPath, []byte(defaultConfig), 0o644); err != nil { //nolint:gosec // config file has no secrets
		return fmt.Errorf("error writing default config file: %w", err)
	}

	fmt.Println("Created default config file at:", configPath)
	return viper.ReadInConfig()
}

// getDefaultConfig returns the embedded default configuration.
func getDefaultConfig() (string, error) {
	data, err := fs.ReadFile(configFiles, "config.yaml")
	if err != nil {
		return "", fmt.Errorf("error reading embedded config: %w", err)
	}
	return string(data), nil
}

// GetSettings returns the current settings instance, nil before Load.
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// Setting returns the settings instance, loading it once if needed.
func Setting() *Settings {
	once.Do(func() {
		if settingsInstance == nil {
			if _, err := Load(); err != nil {
				panic(fmt.Sprintf("error loading settings: %v", err))
			}
		}
	})
	return GetSettings()
}

// SaveYAMLConfig writes the given settings to the config path as YAML.
func SaveYAMLConfig(configPath string, settings *Settings) error {
	yamlData, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("error marshaling settings to YAML: %w", err)
	}
	if err := os.WriteFile(configPath, yamlData, 0o644); err != nil { //nolint:gosec // config file has no secrets
		return fmt.Errorf("error writing YAML config: %w", err)
	}
	return nil
}
