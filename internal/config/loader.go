package config

import (
	"errors"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of every configuration environment variable
const EnvPrefix = "REPO2KAS"

var explicitFile string

// SetFile makes Load read path instead of searching for config.yaml.
// An empty path restores the search.
func SetFile(path string) {
	explicitFile = path
}

// Load loads configuration from file, environment, and defaults.
// Uses the global viper instance to access CLI flag bindings.
func Load() (*Config, error) {
	return load(viper.GetViper())
}

// LoadWithViper loads configuration into a fresh viper instance and
// returns it for callers that merge flags later
func LoadWithViper() (*Config, *viper.Viper, error) {
	v := viper.New()
	cfg, err := load(v)
	if err != nil {
		return nil, nil, err
	}
	return cfg, v, nil
}

func load(v *viper.Viper) (*Config, error) {
	setDefaults(v)

	if explicitFile != "" {
		v.SetConfigFile(explicitFile)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(ConfigDir())
		v.AddConfigPath(".")
	}
	v.SetConfigType("yaml")

	// Read config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	// Environment variables (REPO2KAS_*)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := bindEnvAliases(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// bindEnvAliases lets the conventional kas and forge variables fill keys
// that have no REPO2KAS_* value. The first non-empty variable wins.
func bindEnvAliases(v *viper.Viper) error {
	aliases := map[string][]string{
		"build.machine":     {"KAS_MACHINE"},
		"build.distro":      {"KAS_DISTRO"},
		"build.targets":     {"KAS_TARGETS"},
		"scan.github_token": {"GITHUB_TOKEN", "GIT_TOKEN"},
		"scan.gitlab_token": {"GITLAB_TOKEN", "GIT_TOKEN"},
	}
	for key, names := range aliases {
		envKey := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(append([]string{key, envKey}, names...)...); err != nil {
			return err
		}
	}
	return nil
}

// setDefaults sets default values in viper
func setDefaults(v *viper.Viper) {
	// Kas defaults
	v.SetDefault("kas.version", DefaultKasVersion)
	v.SetDefault("kas.header_includes", []string{})

	// Path defaults
	v.SetDefault("paths.prefix", "")
	v.SetDefault("paths.apply_mode", DefaultApplyMode)
	v.SetDefault("paths.dedup", DefaultDedup)

	// Layer defaults
	v.SetDefault("layers.include", []string{})
	v.SetDefault("layers.exclude", []string{})
	v.SetDefault("layers.include_all", false)
	v.SetDefault("layers.hints", []string{})
	v.SetDefault("layers.strict", false)
	v.SetDefault("layers.max_depth", DefaultLayerMaxDepth)

	// Scan defaults
	v.SetDefault("scan.workers", DefaultWorkers)
	v.SetDefault("scan.timeout", DefaultScanTimeout)
	v.SetDefault("scan.disabled", false)
	v.SetDefault("scan.clone_fallback", DefaultCloneFallback)
	v.SetDefault("scan.max_retries", DefaultMaxRetries)
	v.SetDefault("scan.github_api", DefaultGitHubAPI)
	v.SetDefault("scan.gitlab_hosts", DefaultGitLabHosts)
	v.SetDefault("scan.user_agent", "")
	v.SetDefault("scan.proxy", "")

	// Cache defaults
	v.SetDefault("cache.enabled", DefaultCacheEnabled)
	v.SetDefault("cache.ttl", DefaultCacheTTL)
	v.SetDefault("cache.directory", CacheDir())

	// Logging defaults
	v.SetDefault("logging.level", DefaultLogLevel)
	v.SetDefault("logging.format", DefaultLogFormat)
}
