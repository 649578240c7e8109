package config

import (
	"github.com/rivaltray-io/rivaltray/internal/models"
)

// LoadSettings loads settings from the config directory. A missing
// file yields defaults rather than an error.
func LoadSettings() (*models.Settings, error) {
	path, err := SettingsFile()
	if err != nil {
		return nil, err
	}
	return loadYAMLOrDefault(path, models.NewSettings)
}

// SaveSettings persists settings to the config directory.
func SaveSettings(settings *models.Settings) error {
	path, err := SettingsFile()
	if err != nil {
		return err
	}
	return saveYAML(path, settings)
}
