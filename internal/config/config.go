// Package config handles application configuration
package config

import (
	_ "embed"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

//go:embed config.sample.yaml
var sampleConfig string

// EnvPrefix is prepended to every environment override, e.g. GAMESHELF_STORE_PATH.
const EnvPrefix = "GAMESHELF_"

// Config represents the application configuration
type Config struct {
	Store        StoreConfig   `yaml:"store" envPrefix:"STORE_"`
	Storage      StorageConfig `yaml:"storage" envPrefix:"STORAGE_"`
	Search       SearchConfig  `yaml:"search" envPrefix:"SEARCH_"`
	Cache        CacheConfig   `yaml:"cache" envPrefix:"CACHE_"`
	Auth         AuthConfig    `yaml:"auth" envPrefix:"AUTH_"`
	Card         CardConfig    `yaml:"card" envPrefix:"CARD_"`
	Server       ServerConfig  `yaml:"server" envPrefix:"SERVER_"`
	Logging      LoggingConfig `yaml:"logging"`
	NoPrompt     bool          `yaml:"no_prompt" env:"NO_PROMPT"`
	OutputFormat string        `yaml:"output_format" env:"OUTPUT_FORMAT"`
}

// StoreConfig holds the collection database settings
type StoreConfig struct {
	Path          string `yaml:"path" env:"PATH"`
	WatchExternal bool   `yaml:"watch_external" env:"WATCH_EXTERNAL"`
}

// StorageConfig holds media upload settings
type StorageConfig struct {
	Driver            string  `yaml:"driver" env:"DRIVER"`       // local or http
	MediaDir          string  `yaml:"media_dir" env:"MEDIA_DIR"` // local driver and server
	BaseURL           string  `yaml:"base_url" env:"BASE_URL"`   // public prefix of stored objects
	UploadURL         string  `yaml:"upload_url" env:"UPLOAD_URL"`
	Timeout           string  `yaml:"timeout" env:"TIMEOUT"`
	RequestsPerSecond float64 `yaml:"requests_per_second" env:"REQUESTS_PER_SECOND"`
}

// SearchConfig holds list filtering settings
type SearchConfig struct {
	MatchMode string `yaml:"match_mode" env:"MATCH_MODE"` // substring or fuzzy
}

// CacheConfig holds offline snapshot cache settings
type CacheConfig struct {
	Persist *bool  `yaml:"persist"`
	Dir     string `yaml:"dir" env:"DIR"`
}

// AuthConfig holds sign-in session settings
type AuthConfig struct {
	KeyringService string `yaml:"keyring_service" env:"KEYRING_SERVICE"`
	SessionTTL     string `yaml:"session_ttl" env:"SESSION_TTL"`
	// Secret signs session tokens. When empty a random secret is kept in the keyring.
	Secret string `yaml:"secret" env:"SECRET"`
}

// CardConfig holds the extra fields printed on the profile card
type CardConfig struct {
	StudentNumber string `yaml:"student_number" env:"STUDENT_NUMBER"`
	Major         string `yaml:"major" env:"MAJOR"`
	University    string `yaml:"university" env:"UNIVERSITY"`
}

// ServerConfig holds media server settings
type ServerConfig struct {
	Listen      string `yaml:"listen" env:"LISTEN"`
	MaxUploadMB int    `yaml:"max_upload_mb" env:"MAX_UPLOAD_MB"`
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	BackgroundEnabled *bool `yaml:"background_enabled"` // log file for serve/watch (default: true)
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Store: StoreConfig{
			Path:          filepath.Join(GetDataDir(), "gameshelf.db"),
			WatchExternal: true,
		},
		Storage: StorageConfig{
			Driver:   "local",
			MediaDir: filepath.Join(GetDataDir(), "media"),
		},
		Search:       SearchConfig{MatchMode: "substring"},
		OutputFormat: "text",
	}
}

// Load loads configuration from the specified path, or the default XDG path if empty.
// If the config file doesn't exist, it creates one from the sample.
// Environment variables prefixed with GAMESHELF_ override file values.
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = filepath.Join(GetConfigDir(), "config.yaml")
	}

	var cfg *Config
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg = DefaultConfig()
		if err := cfg.save(configPath); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
	} else {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		cfg, err = Parse(data)
		if err != nil {
			return nil, err
		}
	}

	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	cfg.expandPaths()
	return cfg, nil
}

// Parse decodes YAML and fills unset fields with defaults
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid YAML in config file: %w", err)
	}

	defaults := DefaultConfig()
	if cfg.Store.Path == "" {
		cfg.Store.Path = defaults.Store.Path
	}
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = defaults.Storage.Driver
	}
	if cfg.Storage.MediaDir == "" {
		cfg.Storage.MediaDir = defaults.Storage.MediaDir
	}
	if cfg.Search.MatchMode == "" {
		cfg.Search.MatchMode = defaults.Search.MatchMode
	}
	if cfg.OutputFormat == "" {
		cfg.OutputFormat = defaults.OutputFormat
	}
	return cfg, nil
}

// ApplyEnv overrides fields from GAMESHELF_* environment variables
func (c *Config) ApplyEnv() error {
	if err := env.ParseWithOptions(c, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

func (c *Config) expandPaths() {
	c.Store.Path = ExpandPath(c.Store.Path)
	c.Storage.MediaDir = ExpandPath(c.Storage.MediaDir)
	c.Cache.Dir = ExpandPath(c.Cache.Dir)
}

// save writes the sample configuration to the specified path
func (c *Config) save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.OutputFormat != "text" && c.OutputFormat != "json" {
		return fmt.Errorf("invalid output_format: %q (must be 'text' or 'json')", c.OutputFormat)
	}

	switch c.GetStorageDriver() {
	case "local":
	case "http":
		if c.Storage.UploadURL == "" {
			return fmt.Errorf("storage.upload_url is required for the http driver")
		}
		if _, err := url.ParseRequestURI(c.Storage.UploadURL); err != nil {
			return fmt.Errorf("invalid storage.upload_url: %q", c.Storage.UploadURL)
		}
	default:
		return fmt.Errorf("unknown storage.driver: %q (must be 'local' or 'http')", c.Storage.Driver)
	}

	switch strings.ToLower(c.Search.MatchMode) {
	case "", "substring", "fuzzy":
	default:
		return fmt.Errorf("unknown search.match_mode: %q (must be 'substring' or 'fuzzy')", c.Search.MatchMode)
	}

	if c.Auth.SessionTTL != "" {
		d, err := time.ParseDuration(c.Auth.SessionTTL)
		if err != nil || d <= 0 {
			return fmt.Errorf("invalid duration for auth.session_ttl: %q", c.Auth.SessionTTL)
		}
	}

	if c.Storage.Timeout != "" {
		if _, err := time.ParseDuration(c.Storage.Timeout); err != nil {
			return fmt.Errorf("invalid duration for storage.timeout: %q", c.Storage.Timeout)
		}
	}

	if c.Server.MaxUploadMB < 0 {
		return fmt.Errorf("server.max_upload_mb cannot be negative")
	}

	return nil
}

// ApplyFlags applies CLI flag overrides to the configuration
func (c *Config) ApplyFlags(noPrompt bool, outputFormat string) {
	if noPrompt {
		c.NoPrompt = true
	}
	if outputFormat != "" {
		c.OutputFormat = outputFormat
	}
}

// GetDatabasePath returns the path to the SQLite database
func (c *Config) GetDatabasePath() string {
	return c.Store.Path
}

// GetStorageDriver returns the upload driver, "local" by default.
func (c *Config) GetStorageDriver() string {
	if c.Storage.Driver == "" {
		return "local"
	}
	return strings.ToLower(c.Storage.Driver)
}

// GetMediaDir returns where the local driver and the server keep objects.
func (c *Config) GetMediaDir() string {
	if c.Storage.MediaDir == "" {
		return filepath.Join(GetDataDir(), "media")
	}
	return c.Storage.MediaDir
}

// GetMediaBaseURL returns the prefix used to build object URLs.
// Defaults to a file:// URL of the media directory.
func (c *Config) GetMediaBaseURL() string {
	if c.Storage.BaseURL != "" {
		return strings.TrimRight(c.Storage.BaseURL, "/")
	}
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(c.GetMediaDir())}
	return u.String()
}

// GetStorageTimeout returns the HTTP upload timeout, 30s by default.
func (c *Config) GetStorageTimeout() time.Duration {
	if d, err := time.ParseDuration(c.Storage.Timeout); err == nil && d > 0 {
		return d
	}
	return 30 * time.Second
}

// GetRequestsPerSecond returns the upload rate limit, 5 by default.
func (c *Config) GetRequestsPerSecond() float64 {
	if c.Storage.RequestsPerSecond <= 0 {
		return 5
	}
	return c.Storage.RequestsPerSecond
}

// GetMatchMode returns the configured search match mode
func (c *Config) GetMatchMode() string {
	if c.Search.MatchMode == "" {
		return "substring"
	}
	return strings.ToLower(c.Search.MatchMode)
}

// IsCachePersistEnabled returns true if snapshots are persisted between runs.
// Returns true (default) if not configured.
func (c *Config) IsCachePersistEnabled() bool {
	if c.Cache.Persist == nil {
		return true
	}
	return *c.Cache.Persist
}

// GetCacheDir returns the snapshot cache directory
func (c *Config) GetCacheDir() string {
	if c.Cache.Dir == "" {
		return GetCacheDir()
	}
	return c.Cache.Dir
}

// GetKeyringService returns the keyring service name sessions are stored under
func (c *Config) GetKeyringService() string {
	if c.Auth.KeyringService == "" {
		return "gameshelf"
	}
	return c.Auth.KeyringService
}

// GetSessionTTL returns how long a sign-in stays valid. Returns 30 days by default.
func (c *Config) GetSessionTTL() time.Duration {
	if d, err := time.ParseDuration(c.Auth.SessionTTL); err == nil && d > 0 {
		return d
	}
	return 30 * 24 * time.Hour
}

// GetServerListen returns the media server listen address
func (c *Config) GetServerListen() string {
	if c.Server.Listen == "" {
		return "127.0.0.1:8090"
	}
	return c.Server.Listen
}

// GetMaxUploadBytes returns the largest accepted upload. Returns 10 MiB by default.
func (c *Config) GetMaxUploadBytes() int64 {
	if c.Server.MaxUploadMB <= 0 {
		return 10 << 20
	}
	return int64(c.Server.MaxUploadMB) << 20
}

// IsBackgroundLoggingEnabled returns true if background logging is enabled.
// Returns true (default) if not configured.
func (c *Config) IsBackgroundLoggingEnabled() bool {
	if c.Logging.BackgroundEnabled == nil {
		return true
	}
	return *c.Logging.BackgroundEnabled
}

// getXDGDir returns a directory path following XDG spec.
func getXDGDir(envVar, fallbackPath string) string {
	if xdgDir := os.Getenv(envVar); xdgDir != "" {
		return filepath.Join(xdgDir, "gameshelf")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", fallbackPath, "gameshelf")
	}
	return filepath.Join(home, fallbackPath, "gameshelf")
}

// GetConfigDir returns the configuration directory following XDG spec
func GetConfigDir() string {
	return getXDGDir("XDG_CONFIG_HOME", ".config")
}

// GetDataDir returns the data directory following XDG spec
func GetDataDir() string {
	return getXDGDir("XDG_DATA_HOME", filepath.Join(".local", "share"))
}

// GetCacheDir returns the cache directory following XDG spec
func GetCacheDir() string {
	return getXDGDir("XDG_CACHE_HOME", ".cache")
}

// ExpandPath expands ~ and environment variables in a path
func ExpandPath(path string) string {
	if path == "" {
		return path
	}
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, path[2:])
		}
	}
	return os.ExpandEnv(path)
}
