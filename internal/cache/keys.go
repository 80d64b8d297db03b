package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"path"
	"strings"
)

// KeyPrefix constants for different cache types
const (
	PrefixScan = "scan"
)

// GenerateKey generates a cache key from a string.
// The key is a SHA256 hash of the input.
func GenerateKey(raw string) string {
	hash := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(hash[:])
}

// ScanKey generates the cache key for a layer scan of url at revision
func ScanKey(rawURL, revision string) string {
	return PrefixScan + ":" + GenerateKey(NormalizeRepoURL(rawURL)+"@"+revision)
}

// NormalizeRepoURL normalizes a repository URL so equivalent spellings
// share a cache entry
func NormalizeRepoURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return strings.TrimSuffix(rawURL, "/")
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)

	// Remove default ports
	if (u.Scheme == "http" && u.Port() == "80") ||
		(u.Scheme == "https" && u.Port() == "443") {
		u.Host = u.Hostname()
	}

	if u.Path != "" {
		u.Path = path.Clean(u.Path)
	}
	u.Path = strings.TrimSuffix(strings.TrimSuffix(u.Path, "/"), ".git")
	u.User = nil
	u.Fragment = ""
	u.RawQuery = ""

	return u.String()
}
