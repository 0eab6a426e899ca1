package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// SettingsFileName is the name of the server settings file
const SettingsFileName = "kobo.json"

// Settings mirrors kobo.json: the API base URL, media host and token.
// It is read once per run and never mutated afterwards.
type Settings struct {
	Token string `json:"token"`
	KFURL string `json:"kf_url"`
	KCURL string `json:"kc_url,omitempty"`
}

// LoadSettings reads the settings file. With an empty path it looks for
// kobo.json in the working directory and next to the executable; finding
// none is not an error and yields nil settings.
func LoadSettings(path string) (*Settings, error) {
	if path == "" {
		path = findSettingsFile()
		if path == "" {
			return nil, nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var s Settings
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	return &s, nil
}

func findSettingsFile() string {
	candidates := []string{SettingsFileName}
	if exe, err := os.Executable(); err == nil {
		candidates = append(candidates, filepath.Join(filepath.Dir(exe), SettingsFileName))
	}

	for _, c := range candidates {
		if info, err := os.Stat(c); err == nil && !info.IsDir() {
			return c
		}
	}
	return ""
}

// ApplySettings copies the non-empty settings values into the config
func (c *Config) ApplySettings(s *Settings) {
	if s == nil {
		return
	}
	if s.Token != "" {
		c.Kobo.Token = s.Token
	}
	if s.KFURL != "" {
		c.Kobo.KFURL = s.KFURL
	}
	if s.KCURL != "" {
		c.Kobo.KCURL = s.KCURL
	}
}

// SaveSettings writes s as kobo.json at path with owner-only permissions
func SaveSettings(path string, s *Settings) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write settings: %w", err)
	}
	return nil
}
