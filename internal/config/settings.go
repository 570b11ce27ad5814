package config

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// AppSettings are the desktop app preferences persisted between sessions
type AppSettings struct {
	StoragePath   string `json:"storagePath"` // directory holding the history database
	OutputDir     string `json:"outputDir"`
	LastInputPath string `json:"lastInputPath"`
}

func GetSettingsPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".patient_arrivals", "settings.json")
}

func LoadAppSettings() (*AppSettings, error) {
	return loadAppSettingsFrom(GetSettingsPath())
}

func SaveAppSettings(settings *AppSettings) error {
	return saveAppSettingsTo(GetSettingsPath(), settings)
}

func loadAppSettingsFrom(path string) (*AppSettings, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return &AppSettings{}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var settings AppSettings
	if err := json.Unmarshal(data, &settings); err != nil {
		return nil, err
	}

	return &settings, nil
}

func saveAppSettingsTo(path string, settings *AppSettings) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// LoadFromSettings overlays the desktop settings on a base configuration.
// The history database lives in StoragePath when one is set.
func LoadFromSettings(base *Config, settings *AppSettings) *Config {
	cfg := *base
	if settings.StoragePath != "" {
		cfg.Database.Type = "sqlite"
		cfg.Database.FilePath = filepath.Join(settings.StoragePath, "analysis_history.db")
	}
	if settings.OutputDir != "" {
		cfg.Output.Dir = settings.OutputDir
	}
	return &cfg
}
