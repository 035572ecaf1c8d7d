// conf/utils.go config path discovery helpers
package conf

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

// GetDefaultConfigPaths returns a list of directories to search for a config
// file, most specific first. If a config.yaml is already present in one of
// them, that directory is returned alone so it takes precedence.
func GetDefaultConfigPaths() ([]string, error) {
	var configPaths []string

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("error fetching user directory: %w", err)
	}

	switch runtime.GOOS {
	case "windows":
		appData := os.Getenv("LOCALAPPDATA")
		if appData == "" {
			appData = filepath.Join(homeDir, "AppData", "Local")
		}
		configPaths = []string{
			filepath.Join(appData, "doubletect"),
			".",
		}
	default:
		configPaths = []string{
			filepath.Join(homeDir, ".config", "doubletect"),
			"/etc/doubletect",
			".",
		}
	}

	// Prefer a directory that already holds a config file.
	for _, path := range configPaths {
		configFile := filepath.Join(path, "config.yaml")
		if _, err := os.Stat(configFile); err == nil {
			return []string{path}, nil
		}
	}

	return configPaths, nil
}

// FindConfigFile returns the full path of the first config.yaml found in the
// default config paths.
func FindConfigFile() (string, error) {
	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return "", err
	}
	for _, path := range configPaths {
		configFilePath := filepath.Join(path, "config.yaml")
		if _, err := os.Stat(configFilePath); err == nil {
			return configFilePath, nil
		}
	}
	return "", fmt.Errorf("config file not found in default paths")
}

// GetBasePath ensures the given path exists and returns it, resolving a bare
// directory name relative to the working directory.
func GetBasePath(path string) string {
	if path == "" {
		path = "."
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := os.MkdirAll(path, 0o755); err != nil {
			fmt.Printf("failed to create directory %s: %v\n", path, err)
		}
	}
	return path
}
