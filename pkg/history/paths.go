package history

import (
	"os"
	"path/filepath"
	"runtime"
)

// FileName is the database file name inside the data directory
const FileName = "history.db"

// DefaultPath returns the platform data directory location of the
// history database.
func DefaultPath() (string, error) {
	dir, err := dataDirectory()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, FileName), nil
}

func dataDirectory() (string, error) {
	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, "Library", "Application Support", "kobomedia"), nil
	case "windows":
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, "kobomedia"), nil
		}
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, "AppData", "Roaming", "kobomedia"), nil
	default:
		// XDG_DATA_HOME, falling back to ~/.local/share
		if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
			return filepath.Join(xdg, "kobomedia"), nil
		}
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, ".local", "share", "kobomedia"), nil
	}
}
