// ABOUTME: Standard filesystem paths for posd configuration and data
// ABOUTME: Resolves /etc/posd/ for the station-wide file and ~/.posd/ for per-user overrides

package config

import (
	"os"
	"path/filepath"
)

const (
	globalDirName = "/etc/posd"
	userDirName   = ".posd"
	fileName      = "posd.yaml"
)

// GlobalDir returns the station-wide config directory (/etc/posd/).
func GlobalDir() string {
	return globalDirName
}

// UserDir returns the per-user config directory (~/.posd/).
func UserDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", userDirName)
	}
	return filepath.Join(home, userDirName)
}

// GlobalConfigFile returns the path to the station-wide config file.
func GlobalConfigFile() string {
	return filepath.Join(GlobalDir(), fileName)
}

// UserConfigFile returns the path to the per-user config file.
func UserConfigFile() string {
	return filepath.Join(UserDir(), fileName)
}

// DefaultStorePath returns where the transaction archive lives when the
// configuration names none.
func DefaultStorePath() string {
	return filepath.Join(UserDir(), "posd.db")
}
