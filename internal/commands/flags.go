package commands

import (
	"os"
	"path/filepath"

	"github.com/redis/go-redis/v9"

	"github.com/hay-kot/courier/internal/core/config"
	"github.com/hay-kot/courier/internal/core/report"
	"github.com/hay-kot/courier/internal/core/settings"
)

type Flags struct {
	LogLevel   string
	LogFile    string
	ConfigPath string
	DataDir    string

	// Config is loaded in the Before hook and available to all commands
	Config *config.Config

	// Reports stores batch reports in the configured backend
	Reports report.Store

	// Settings keeps resumable client state per identity
	Settings settings.Store

	// Redis is set when results.backend is redis
	Redis *redis.Client
}

// DefaultConfigPath returns the default config file path using XDG_CONFIG_HOME.
func DefaultConfigPath() string {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, _ := os.UserHomeDir()
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, "courier", "config.yaml")
}

// DefaultDataDir returns the default data directory using XDG_DATA_HOME.
func DefaultDataDir() string {
	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, _ := os.UserHomeDir()
		dataHome = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataHome, "courier")
}
