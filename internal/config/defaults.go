package config

import (
	"os"
	"path/filepath"
	"time"
)

// Default values
const (
	// Kas defaults
	DefaultKasVersion = 14

	// Path defaults
	DefaultApplyMode = ApplyAlways
	DefaultDedup     = DedupOff

	// Layer defaults
	DefaultLayerMaxDepth = 3

	// Scan defaults
	DefaultWorkers       = 5
	DefaultScanTimeout   = 60 * time.Second
	DefaultMaxRetries    = 3
	DefaultCloneFallback = true
	DefaultGitHubAPI     = "https://api.github.com"

	// Cache defaults
	DefaultCacheEnabled = true
	DefaultCacheTTL     = 24 * time.Hour

	// Logging defaults
	DefaultLogLevel  = "info"
	DefaultLogFormat = "pretty"
)

// DefaultGitLabHosts are always routed to the GitLab lister
var DefaultGitLabHosts = []string{"gitlab.com"}

// ConfigDir returns the config directory path
func ConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".repo2kas"
	}
	return filepath.Join(home, ".repo2kas")
}

// CacheDir returns the cache directory path
func CacheDir() string {
	return filepath.Join(ConfigDir(), "cache")
}

// ConfigFilePath returns the config file path
func ConfigFilePath() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// Default returns the default configuration
func Default() *Config {
	return &Config{
		Kas: KasConfig{
			Version: DefaultKasVersion,
		},
		Paths: PathsConfig{
			ApplyMode: DefaultApplyMode,
			Dedup:     DefaultDedup,
		},
		Layers: LayersConfig{
			MaxDepth: DefaultLayerMaxDepth,
		},
		Scan: ScanConfig{
			Workers:       DefaultWorkers,
			Timeout:       DefaultScanTimeout,
			CloneFallback: DefaultCloneFallback,
			MaxRetries:    DefaultMaxRetries,
			GitHubAPI:     DefaultGitHubAPI,
			GitLabHosts:   DefaultGitLabHosts,
		},
		Cache: CacheConfig{
			Enabled:   DefaultCacheEnabled,
			TTL:       DefaultCacheTTL,
			Directory: CacheDir(),
		},
		Logging: LoggingConfig{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}
