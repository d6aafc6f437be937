package config

import (
	"os"
	"path/filepath"
)

// IdleHandsPath returns the root directory for IdleHands data.
// It uses $IDLEHANDS_PATH if set, otherwise defaults to ~/.idlehands.
func IdleHandsPath() string {
	if v := os.Getenv("IDLEHANDS_PATH"); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".idlehands")
	}
	return filepath.Join(home, ".idlehands")
}

// ConfigPath returns the path to the IdleHands config file.
func ConfigPath() string {
	return filepath.Join(IdleHandsPath(), "config.jsonc")
}

// DotenvPath returns the path to the IdleHands .env file.
func DotenvPath() string {
	return filepath.Join(IdleHandsPath(), ".env")
}
