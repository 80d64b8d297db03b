package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestSentinelErrors verifies sentinel errors are defined
func TestSentinelErrors(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		check string
	}{
		{"ErrCacheMiss", ErrCacheMiss, "cache miss"},
		{"ErrRateLimited", ErrRateLimited, "rate limited"},
		{"ErrTimeout", ErrTimeout, "timeout"},
		{"ErrUnsupportedHost", ErrUnsupportedHost, "unsupported repository host"},
		{"ErrManifestNotFound", ErrManifestNotFound, "manifest not found"},
		{"ErrRevisionNotFound", ErrRevisionNotFound, "revision not found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotNil(t, tt.err)
			assert.Contains(t, tt.err.Error(), tt.check)
		})
	}
}

func TestManifestCycleError(t *testing.T) {
	chain := []string{"default.xml", "a.xml", "b.xml", "a.xml"}
	err := NewManifestCycleError(chain)

	assert.Equal(t, "manifest include cycle: default.xml -> a.xml -> b.xml -> a.xml", err.Error())

	// chain is copied
	chain[0] = "changed.xml"
	assert.Equal(t, "default.xml", err.Chain[0])

	wrapped := fmt.Errorf("resolve: %w", err)
	var target *ManifestCycleError
	require.True(t, errors.As(wrapped, &target))
	assert.Len(t, target.Chain, 4)
}

func TestManifestParseError(t *testing.T) {
	t.Run("Full context", func(t *testing.T) {
		base := errors.New("EOF")
		err := NewManifestParseError("extra.xml", "meta-foo", "unknown remote \"gh\"", base)

		assert.Contains(t, err.Error(), "in extra.xml")
		assert.Contains(t, err.Error(), "(project meta-foo)")
		assert.Contains(t, err.Error(), "unknown remote")
		assert.Contains(t, err.Error(), "EOF")
		assert.Equal(t, base, errors.Unwrap(err))
	})

	t.Run("Message only", func(t *testing.T) {
		err := NewManifestParseError("", "", "no projects", nil)
		assert.Equal(t, "manifest error: no projects", err.Error())
		assert.Nil(t, errors.Unwrap(err))
	})
}

func TestScanFailure(t *testing.T) {
	ref := RepoRef{Project: "poky", URL: "https://git.example.com/poky", Revision: "kirkstone"}
	err := NewScanFailure(ref, ErrRateLimited)

	assert.Contains(t, err.Error(), "poky")
	assert.Contains(t, err.Error(), "https://git.example.com/poky@kirkstone")
	assert.True(t, errors.Is(err, ErrRateLimited))
	assert.True(t, IsScanFailure(fmt.Errorf("scan: %w", err)))
	assert.False(t, IsScanFailure(ErrRateLimited))
}

func TestPathCollisionError(t *testing.T) {
	err := NewPathCollisionError("sources/common", "org/common", "other/common")

	assert.Contains(t, err.Error(), `"sources/common"`)
	assert.Contains(t, err.Error(), "org/common and other/common")
	assert.Equal(t, []string{"org/common", "other/common"}, err.Projects)
}

func TestUnsupportedFeatureError(t *testing.T) {
	err := NewUnsupportedFeatureError("env", 6, 4)

	assert.Equal(t, "env", err.Feature)
	assert.Equal(t, 6, err.MinVersion)
	assert.Equal(t, 4, err.Version)
	assert.Contains(t, err.Error(), `"env"`)
	assert.Contains(t, err.Error(), "version 6")
	assert.Contains(t, err.Error(), "is 4")
}

func TestLayerRequestError(t *testing.T) {
	t.Run("Lists available and failed projects", func(t *testing.T) {
		err := &LayerRequestError{
			Missing: []string{"meta-missing", "poky:meta-nope"},
			Available: map[string][]string{
				"poky":  {"meta", "meta-poky"},
				"empty": nil,
			},
			Failed: map[string]string{"private": "rate limited"},
		}

		msg := err.Error()
		assert.Contains(t, msg, "meta-missing, poky:meta-nope")
		assert.Contains(t, msg, "  poky: meta, meta-poky")
		assert.Contains(t, msg, "  empty: (none)")
		assert.Contains(t, msg, "  private: (detection failed: rate limited)")
	})

	t.Run("No layers at all", func(t *testing.T) {
		err := &LayerRequestError{Missing: []string{"meta-x"}}
		assert.Contains(t, err.Error(), "(no layers detected)")
	})
}

// TestFetchError tests FetchError methods
func TestFetchError(t *testing.T) {
	t.Run("Error with status code", func(t *testing.T) {
		err := NewFetchError("https://api.github.com/repos/o/r", 503, errors.New("unavailable"))

		assert.Contains(t, err.Error(), "https://api.github.com/repos/o/r")
		assert.Contains(t, err.Error(), "503")
		assert.Contains(t, err.Error(), "unavailable")
	})

	t.Run("Error without status code", func(t *testing.T) {
		err := NewFetchError("https://example.com", 0, errors.New("connection refused"))

		assert.Contains(t, err.Error(), "connection refused")
		assert.NotContains(t, err.Error(), "status")
	})

	t.Run("Unwrap returns underlying error", func(t *testing.T) {
		base := errors.New("base error")
		err := NewFetchError("https://example.com", 0, base)
		assert.Equal(t, base, errors.Unwrap(err))
	})
}

// TestRetryableError tests RetryableError methods
func TestRetryableError(t *testing.T) {
	t.Run("Error with retry after", func(t *testing.T) {
		err := &RetryableError{Err: errors.New("too many requests"), RetryAfter: 120}
		assert.Contains(t, err.Error(), "retry after 120s")
		assert.Contains(t, err.Error(), "too many requests")
	})

	t.Run("Error without retry after", func(t *testing.T) {
		err := &RetryableError{Err: errors.New("gateway timeout")}
		assert.NotContains(t, err.Error(), "retry after")
	})
}

// TestIsRetryable tests the IsRetryable function
func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"RetryableError", &RetryableError{Err: errors.New("x")}, true},
		{"429", NewFetchError("u", 429, errors.New("x")), true},
		{"502", NewFetchError("u", 502, errors.New("x")), true},
		{"503", NewFetchError("u", 503, errors.New("x")), true},
		{"504", NewFetchError("u", 504, errors.New("x")), true},
		{"524", NewFetchError("u", 524, errors.New("x")), true},
		{"404", NewFetchError("u", 404, errors.New("x")), false},
		{"401", NewFetchError("u", 401, errors.New("x")), false},
		{"ErrRateLimited wrapped", fmt.Errorf("scan: %w", ErrRateLimited), true},
		{"ErrTimeout", ErrTimeout, true},
		{"plain error", errors.New("boom"), false},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsRetryable(tt.err))
		})
	}
}

func TestStatusCode(t *testing.T) {
	assert.Equal(t, 404, StatusCode(fmt.Errorf("list: %w", NewFetchError("u", 404, errors.New("x")))))
	assert.Equal(t, 0, StatusCode(errors.New("x")))
}

func TestValidationError(t *testing.T) {
	err := NewValidationError("paths.dedup", "must be one of off, suffix")
	assert.Equal(t, "validation error for paths.dedup: must be one of off, suffix", err.Error())
}
