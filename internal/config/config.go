package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/quantmind-br/repo2kas/internal/domain"
)

// Config represents the application configuration
type Config struct {
	Kas     KasConfig     `mapstructure:"kas" yaml:"kas"`
	Paths   PathsConfig   `mapstructure:"paths" yaml:"paths"`
	Layers  LayersConfig  `mapstructure:"layers" yaml:"layers"`
	Build   BuildConfig   `mapstructure:"build" yaml:"build"`
	Scan    ScanConfig    `mapstructure:"scan" yaml:"scan"`
	Cache   CacheConfig   `mapstructure:"cache" yaml:"cache"`
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
}

// KasConfig selects the output document format
type KasConfig struct {
	Version        int      `mapstructure:"version" yaml:"version"`
	HeaderIncludes []string `mapstructure:"header_includes" yaml:"header_includes"`
}

// PathsConfig controls checkout path assignment
type PathsConfig struct {
	Prefix    string `mapstructure:"prefix" yaml:"prefix"`
	ApplyMode string `mapstructure:"apply_mode" yaml:"apply_mode"` // always | missing-only
	Dedup     string `mapstructure:"dedup" yaml:"dedup"`           // off | suffix
}

// LayersConfig holds layer selection rules
type LayersConfig struct {
	Include    []string `mapstructure:"include" yaml:"include"`
	Exclude    []string `mapstructure:"exclude" yaml:"exclude"`
	IncludeAll bool     `mapstructure:"include_all" yaml:"include_all"`
	Hints      []string `mapstructure:"hints" yaml:"hints"`
	Strict     bool     `mapstructure:"strict" yaml:"strict"`
	MaxDepth   int      `mapstructure:"max_depth" yaml:"max_depth"`
}

// BuildConfig holds the build context copied into the document
type BuildConfig struct {
	Machine            string            `mapstructure:"machine" yaml:"machine"`
	Distro             string            `mapstructure:"distro" yaml:"distro"`
	Targets            []string          `mapstructure:"targets" yaml:"targets"`
	Task               string            `mapstructure:"task" yaml:"task"`
	BuildSystem        string            `mapstructure:"build_system" yaml:"build_system"`
	Env                []string          `mapstructure:"env" yaml:"env"` // KEY or KEY=VALUE
	LocalConfHeader    map[string]string `mapstructure:"local_conf_header" yaml:"local_conf_header"`
	BBLayersConfHeader map[string]string `mapstructure:"bblayers_conf_header" yaml:"bblayers_conf_header"`
	Artifacts          map[string]string `mapstructure:"artifacts" yaml:"artifacts"`
}

// ScanConfig contains layer discovery settings
type ScanConfig struct {
	Workers       int           `mapstructure:"workers" yaml:"workers"`
	Timeout       time.Duration `mapstructure:"timeout" yaml:"timeout"`
	Disabled      bool          `mapstructure:"disabled" yaml:"disabled"`
	CloneFallback bool          `mapstructure:"clone_fallback" yaml:"clone_fallback"`
	MaxRetries    int           `mapstructure:"max_retries" yaml:"max_retries"`
	GitHubAPI     string        `mapstructure:"github_api" yaml:"github_api"`
	GitHubToken   string        `mapstructure:"github_token" yaml:"github_token"`
	GitLabToken   string        `mapstructure:"gitlab_token" yaml:"gitlab_token"`
	GitLabHosts   []string      `mapstructure:"gitlab_hosts" yaml:"gitlab_hosts"`
	CgitBasicAuth string        `mapstructure:"cgit_basic_auth" yaml:"cgit_basic_auth"` // user:password
	UserAgent     string        `mapstructure:"user_agent" yaml:"user_agent"`
	Proxy         string        `mapstructure:"proxy" yaml:"proxy"` // http(s) or socks5 URL for forge APIs
}

// CacheConfig contains cache settings
type CacheConfig struct {
	Enabled   bool          `mapstructure:"enabled" yaml:"enabled"`
	TTL       time.Duration `mapstructure:"ttl" yaml:"ttl"`
	Directory string        `mapstructure:"directory" yaml:"directory"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// Path apply modes
const (
	ApplyAlways      = "always"
	ApplyMissingOnly = "missing-only"
)

// Dedup policies
const (
	DedupOff    = "off"
	DedupSuffix = "suffix"
)

// Build systems accepted in the kas document
const (
	BuildSystemOE   = "openembedded"
	BuildSystemIsar = "isar"
)

// Validate validates the configuration. Out-of-range numbers fall back to
// defaults; unknown enum values are rejected.
func (c *Config) Validate() error {
	if c.Scan.Workers < 1 {
		c.Scan.Workers = DefaultWorkers
	}
	if c.Scan.Timeout < time.Second {
		c.Scan.Timeout = DefaultScanTimeout
	}
	if c.Scan.MaxRetries < 0 {
		c.Scan.MaxRetries = DefaultMaxRetries
	}
	if c.Layers.MaxDepth < 1 {
		c.Layers.MaxDepth = DefaultLayerMaxDepth
	}
	if c.Cache.TTL < time.Minute {
		c.Cache.TTL = DefaultCacheTTL
	}
	if c.Scan.GitHubAPI == "" {
		c.Scan.GitHubAPI = DefaultGitHubAPI
	}

	switch c.Paths.ApplyMode {
	case "":
		c.Paths.ApplyMode = DefaultApplyMode
	case ApplyAlways, ApplyMissingOnly:
	default:
		return domain.NewValidationError("paths.apply_mode",
			fmt.Sprintf("%q is not one of %s, %s", c.Paths.ApplyMode, ApplyAlways, ApplyMissingOnly))
	}

	switch c.Paths.Dedup {
	case "":
		c.Paths.Dedup = DefaultDedup
	case DedupOff, DedupSuffix:
	default:
		return domain.NewValidationError("paths.dedup",
			fmt.Sprintf("%q is not one of %s, %s", c.Paths.Dedup, DedupOff, DedupSuffix))
	}

	bs, err := NormalizeBuildSystem(c.Build.BuildSystem)
	if err != nil {
		return err
	}
	c.Build.BuildSystem = bs
	c.Build.Targets = SplitList(c.Build.Targets)

	return nil
}

// NormalizeBuildSystem maps accepted spellings to the document value
func NormalizeBuildSystem(s string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return "", nil
	case "oe", BuildSystemOE:
		return BuildSystemOE, nil
	case BuildSystemIsar:
		return BuildSystemIsar, nil
	default:
		return "", domain.NewValidationError("build.build_system",
			fmt.Sprintf("%q is not one of %s, oe, %s", s, BuildSystemOE, BuildSystemIsar))
	}
}

// SplitList flattens entries that hold several space or comma separated
// values, as KAS_TARGETS does, dropping empties.
func SplitList(values []string) []string {
	var out []string
	for _, v := range values {
		out = append(out, strings.FieldsFunc(v, func(r rune) bool {
			return r == ',' || r == ' ' || r == '\t' || r == '\n'
		})...)
	}
	return out
}
