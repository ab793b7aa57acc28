package util

import (
	"fmt"
	"os"
	"path/filepath"
)

const AppConfigDir = ".config/" + Name

// GetConfigDir returns ~/.config/fedsync, creating it when missing.
func GetConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	dir := filepath.Join(home, AppConfigDir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}
	return dir, nil
}

// ResolveFilePath finds filename in the working directory, then in the
// config directory. A file found nowhere resolves into the config directory
// so that it is created there. Absolute paths and ":memory:" are kept.
func ResolveFilePath(filename string) string {
	if filepath.IsAbs(filename) || filename == ":memory:" {
		return filename
	}
	if exists(filename) {
		return filename
	}
	dir, err := GetConfigDir()
	if err != nil {
		return filename
	}
	return filepath.Join(dir, filename)
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
