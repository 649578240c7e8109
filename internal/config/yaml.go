package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// loadYAML loads a YAML file into the provided struct.
func loadYAML(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to parse YAML from %s: %w", path, err)
	}
	return nil
}

// saveYAML writes a struct to a YAML file, creating parent directories
// as needed.
func saveYAML(path string, v interface{}) error {
	data, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal YAML: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// loadYAMLOrDefault loads a YAML file, or returns the default value if
// the file doesn't exist yet.
func loadYAMLOrDefault[T any](path string, defaultFn func() *T) (*T, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return defaultFn(), nil
		}
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	var v T
	if err := loadYAML(path, &v); err != nil {
		return nil, err
	}
	return &v, nil
}
