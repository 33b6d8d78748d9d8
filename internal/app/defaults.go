package app

import (
	"fmt"
	"os"
	"path/filepath"
)

// Defaults are the resolved default locations: the config file and the
// base directory all other paths derive from. BK_CONFIG_PATH and
// BK_HOME override them; otherwise they fall back to XDG-style paths
// under the user's home directory.
type Defaults struct {
	ConfigPath string
	BaseDir    string
}

// GetDefaults resolves the default paths from the environment.
func GetDefaults() (Defaults, error) {
	d := Defaults{
		ConfigPath: os.Getenv("BK_CONFIG_PATH"),
		BaseDir:    os.Getenv("BK_HOME"),
	}
	if d.ConfigPath != "" && d.BaseDir != "" {
		return d, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return Defaults{}, fmt.Errorf("cannot determine home directory: %w", err)
	}
	if d.ConfigPath == "" {
		d.ConfigPath = filepath.Join(home, ".config", "bk.toml")
	}
	if d.BaseDir == "" {
		d.BaseDir = filepath.Join(home, ".local", "share", "bk")
	}
	return d, nil
}
