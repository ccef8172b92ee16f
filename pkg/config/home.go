package config

import (
	"errors"
	"os"
	"path/filepath"
	"sync"

	"github.com/devicelab-dev/selenium-runner/pkg/core"
)

const envHome = "SELENIUM_RUNNER_HOME"

var (
	homeOnce sync.Once
	homeDir  string
)

// GetHome returns the selenium-runner home directory.
//
// Resolution order:
//  1. $SELENIUM_RUNNER_HOME environment variable
//  2. Parent of the binary's directory (if binary is in <home>/bin/)
//  3. Current working directory
func GetHome() string {
	homeOnce.Do(func() {
		homeDir = resolveHome()
	})
	return homeDir
}

// GetConfigDir returns <home>/config, the fallback location of config files.
func GetConfigDir() string {
	return filepath.Join(GetHome(), "config")
}

// Discover loads the config file from dir, falling back to GetConfigDir when dir has none.
func Discover(dir string) (*Config, error) {
	cfg, err := LoadFromDir(dir)
	if !errors.Is(err, core.ErrMissingRequired) {
		return cfg, err
	}
	if home := GetConfigDir(); filepath.Clean(home) != filepath.Clean(dir) {
		if homeCfg, herr := LoadFromDir(home); herr == nil || !errors.Is(herr, core.ErrMissingRequired) {
			return homeCfg, herr
		}
	}
	return nil, err
}

func resolveHome() string {
	if env := os.Getenv(envHome); env != "" {
		return env
	}

	if execPath, err := os.Executable(); err == nil {
		if resolved, err := filepath.EvalSymlinks(execPath); err == nil {
			execPath = resolved
		}
		binDir := filepath.Dir(execPath)
		if filepath.Base(binDir) == "bin" {
			return filepath.Dir(binDir)
		}
	}

	if cwd, err := os.Getwd(); err == nil {
		return cwd
	}

	return "."
}

// ResetHome resets the cached home directory (for testing).
func ResetHome() {
	homeOnce = sync.Once{}
	homeDir = ""
}
