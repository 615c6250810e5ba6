package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var DEFAULT []byte

// Process reads the provided configuration files in order, overlaying
// each one onto the built-in defaults. With no files, the defaults are
// used as-is. JSON files work too; JSON is a YAML subset.
func Process(configPaths []string) (*Config, error) {
	var config Config
	if err := yaml.Unmarshal(DEFAULT, &config); err != nil {
		return nil, err
	}

	for _, path := range configPaths {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("%s does not exist", path)
		}

		switch filepath.Ext(path) {
		case ".yaml", ".yml", ".json":
		default:
			return nil, fmt.Errorf("%s is not in a valid format", path)
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}

	return &config, nil
}
