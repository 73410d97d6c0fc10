// Package storage keeps finished analyses on disk so repeated queries for
// a position can be answered without searching again.
package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

const (
	appName = "chesscore"

	// HomeEnv overrides the data directory entirely.
	HomeEnv = "CHESSCORE_HOME"
)

// platformDataHome is the per-user directory applications keep data in:
// ~/Library/Application Support on macOS, %APPDATA% on Windows and
// $XDG_DATA_HOME (default ~/.local/share) elsewhere.
func platformDataHome() (string, error) {
	if runtime.GOOS == "windows" {
		if dir := os.Getenv("APPDATA"); dir != "" {
			return dir, nil
		}
	} else if runtime.GOOS != "darwin" {
		if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
			return dir, nil
		}
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("locate home directory: %w", err)
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support"), nil
	case "windows":
		return filepath.Join(home, "AppData", "Roaming"), nil
	}
	return filepath.Join(home, ".local", "share"), nil
}

// DataDir returns the application data directory, creating it if needed.
// CHESSCORE_HOME takes precedence over the platform default.
func DataDir() (string, error) {
	dir := os.Getenv(HomeEnv)
	if dir == "" {
		base, err := platformDataHome()
		if err != nil {
			return "", err
		}
		dir = filepath.Join(base, appName)
	}
	return ensureDir(dir)
}

// DefaultAnalysisDir returns the directory of the default analysis store.
func DefaultAnalysisDir() (string, error) {
	dataDir, err := DataDir()
	if err != nil {
		return "", err
	}
	return ensureDir(filepath.Join(dataDir, "analysis"))
}

func ensureDir(dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create %s: %w", dir, err)
	}
	return dir, nil
}
