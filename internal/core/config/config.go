// Package config handles configuration loading and validation for courier.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/hay-kot/criterio"
	"gopkg.in/yaml.v3"
)

// Messaging client kinds.
const (
	ClientBridge = "bridge"
	ClientDryRun = "dryrun"
)

// Results backends.
const (
	ResultsFile  = "file"
	ResultsRedis = "redis"
)

// Config holds the application configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Account AccountConfig `yaml:"account"`
	Message MessageConfig `yaml:"message"`
	Files   FilesConfig   `yaml:"files"`
	Client  ClientConfig  `yaml:"client"`
	Results ResultsConfig `yaml:"results"`
	Redis   RedisConfig   `yaml:"redis"`
	DataDir string        `yaml:"-"` // set by caller, not from config file
}

// ServerConfig configures `courier serve`.
type ServerConfig struct {
	Addr          string        `yaml:"addr"`
	SessionTTL    time.Duration `yaml:"session_ttl"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
	CookieName    string        `yaml:"cookie_name"`
	SecureCookie  bool          `yaml:"secure_cookie"`
}

// AccountConfig is the default account used by `courier send`.
type AccountConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MessageConfig holds the default message and the delay between sends.
type MessageConfig struct {
	Text     string        `yaml:"text"`
	DelayMin time.Duration `yaml:"delay_min"`
	DelayMax time.Duration `yaml:"delay_max"`
}

// FilesConfig locates recipient lists and the results file.
type FilesConfig struct {
	// Usernames is a path or doublestar pattern, e.g. "lists/**/*.txt".
	Usernames string `yaml:"usernames"`
	// Upload is where uploaded recipient lists are written.
	Upload string `yaml:"upload"`
	// ResultsFile defaults to <data dir>/results.json.
	ResultsFile string `yaml:"results_file"`
}

// ClientConfig selects and configures the messaging client.
type ClientConfig struct {
	Kind    string        `yaml:"kind"`
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

// ResultsConfig selects where batch reports are kept.
type ResultsConfig struct {
	Backend    string `yaml:"backend"`
	MaxEntries int    `yaml:"max_entries"`
}

// RedisConfig is used when results.backend is "redis".
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Key      string `yaml:"key"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Addr:          ":8000",
			SessionTTL:    time.Hour,
			SweepInterval: 5 * time.Minute,
			CookieName:    "session_id",
		},
		Message: MessageConfig{
			DelayMin: 30 * time.Second,
			DelayMax: 60 * time.Second,
		},
		Files: FilesConfig{
			Usernames: "usernames.txt",
		},
		Client: ClientConfig{
			Kind:    ClientBridge,
			BaseURL: "http://127.0.0.1:8080",
			Timeout: 30 * time.Second,
		},
		Results: ResultsConfig{
			Backend:    ResultsFile,
			MaxEntries: 100,
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
			Key:  "courier:reports",
		},
	}
}

// Load reads configuration from the given path and sets the data directory.
// If configPath is empty or doesn't exist, returns defaults with the provided dataDir.
func Load(configPath, dataDir string) (*Config, error) {
	cfg := DefaultConfig()
	cfg.DataDir = dataDir

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			data, err := os.ReadFile(configPath)
			if err != nil {
				return nil, fmt.Errorf("read config file: %w", err)
			}

			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parse config file: %w", err)
			}

			// Re-set dataDir since Unmarshal may have cleared it
			cfg.DataDir = dataDir
		}
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// applyDefaults sets default values for any unset configuration options.
func (c *Config) applyDefaults() {
	defaults := DefaultConfig()
	if c.Server.Addr == "" {
		c.Server.Addr = defaults.Server.Addr
	}
	if c.Server.SessionTTL == 0 {
		c.Server.SessionTTL = defaults.Server.SessionTTL
	}
	if c.Server.SweepInterval == 0 {
		c.Server.SweepInterval = defaults.Server.SweepInterval
	}
	if c.Server.CookieName == "" {
		c.Server.CookieName = defaults.Server.CookieName
	}
	if c.Files.Usernames == "" {
		c.Files.Usernames = defaults.Files.Usernames
	}
	if c.Client.Kind == "" {
		c.Client.Kind = defaults.Client.Kind
	}
	if c.Client.BaseURL == "" {
		c.Client.BaseURL = defaults.Client.BaseURL
	}
	if c.Client.Timeout == 0 {
		c.Client.Timeout = defaults.Client.Timeout
	}
	if c.Results.Backend == "" {
		c.Results.Backend = defaults.Results.Backend
	}
	if c.Results.MaxEntries == 0 {
		c.Results.MaxEntries = defaults.Results.MaxEntries
	}
	if c.Redis.Addr == "" {
		c.Redis.Addr = defaults.Redis.Addr
	}
	if c.Redis.Key == "" {
		c.Redis.Key = defaults.Redis.Key
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	var errs criterio.FieldErrorsBuilder

	if c.DataDir == "" {
		errs = errs.Append("data_dir", fmt.Errorf("cannot be empty"))
	}

	if c.Server.SessionTTL < 0 {
		errs = errs.Append("server.session_ttl", fmt.Errorf("must be positive"))
	}
	if c.Server.SweepInterval < 0 {
		errs = errs.Append("server.sweep_interval", fmt.Errorf("must be positive"))
	}

	if c.Message.DelayMin < 0 {
		errs = errs.Append("message.delay_min", fmt.Errorf("cannot be negative"))
	}
	if c.Message.DelayMax < c.Message.DelayMin {
		errs = errs.Append("message.delay_max", fmt.Errorf("must be at least delay_min (%s)", c.Message.DelayMin))
	}

	if !doublestar.ValidatePathPattern(c.Files.Usernames) {
		errs = errs.Append("files.usernames", fmt.Errorf("invalid pattern %q", c.Files.Usernames))
	}

	switch c.Client.Kind {
	case ClientBridge, ClientDryRun:
	default:
		errs = errs.Append("client.kind", fmt.Errorf("unknown client %q (use %q or %q)", c.Client.Kind, ClientBridge, ClientDryRun))
	}

	switch c.Results.Backend {
	case ResultsFile, ResultsRedis:
	default:
		errs = errs.Append("results.backend", fmt.Errorf("unknown backend %q (use %q or %q)", c.Results.Backend, ResultsFile, ResultsRedis))
	}
	if c.Results.MaxEntries < 1 {
		errs = errs.Append("results.max_entries", fmt.Errorf("must be at least 1"))
	}

	return errs.ToError()
}

// ResultsPath returns the path to the JSON results history.
func (c *Config) ResultsPath() string {
	if c.Files.ResultsFile != "" {
		return c.Files.ResultsFile
	}
	return filepath.Join(c.DataDir, "results.json")
}

// UploadPath returns where uploaded recipient lists are saved. It falls back
// to files.usernames when that is a plain path, otherwise to the data dir.
func (c *Config) UploadPath() string {
	if c.Files.Upload != "" {
		return c.Files.Upload
	}
	if !hasMeta(c.Files.Usernames) {
		return c.Files.Usernames
	}
	return filepath.Join(c.DataDir, "usernames.txt")
}

// SettingsFile returns the path to the stored client settings.
func (c *Config) SettingsFile() string {
	return filepath.Join(c.DataDir, "client_settings.json")
}

// LogsDir returns the directory for per-batch log files.
func (c *Config) LogsDir() string {
	return filepath.Join(c.DataDir, "logs")
}

func hasMeta(pattern string) bool {
	return strings.ContainsAny(pattern, "*?[{")
}
