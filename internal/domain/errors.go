package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Sentinel errors
var (
	// ErrCacheMiss indicates a cache miss
	ErrCacheMiss = errors.New("cache miss")

	// ErrRateLimited indicates rate limiting was encountered
	ErrRateLimited = errors.New("rate limited")

	// ErrTimeout indicates a timeout occurred
	ErrTimeout = errors.New("timeout")

	// ErrUnsupportedHost indicates no tree lister can handle a repository host
	ErrUnsupportedHost = errors.New("unsupported repository host")

	// ErrManifestNotFound indicates no manifest file could be located
	ErrManifestNotFound = errors.New("manifest not found")

	// ErrRevisionNotFound indicates a revision could not be resolved on a remote
	ErrRevisionNotFound = errors.New("revision not found")
)

// ManifestCycleError reports an include cycle. Chain lists the documents in
// visiting order and ends with the document that closed the cycle.
type ManifestCycleError struct {
	Chain []string
}

func (e *ManifestCycleError) Error() string {
	return fmt.Sprintf("manifest include cycle: %s", strings.Join(e.Chain, " -> "))
}

// NewManifestCycleError creates a new ManifestCycleError
func NewManifestCycleError(chain []string) *ManifestCycleError {
	c := make([]string, len(chain))
	copy(c, chain)
	return &ManifestCycleError{Chain: c}
}

// ManifestParseError reports a manifest that cannot be turned into a
// complete project list
type ManifestParseError struct {
	Document string
	Project  string
	Message  string
	Err      error
}

func (e *ManifestParseError) Error() string {
	var b strings.Builder
	b.WriteString("manifest error")
	if e.Document != "" {
		b.WriteString(" in ")
		b.WriteString(e.Document)
	}
	if e.Project != "" {
		fmt.Fprintf(&b, " (project %s)", e.Project)
	}
	b.WriteString(": ")
	b.WriteString(e.Message)
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *ManifestParseError) Unwrap() error {
	return e.Err
}

// NewManifestParseError creates a new ManifestParseError
func NewManifestParseError(document, project, message string, err error) *ManifestParseError {
	return &ManifestParseError{
		Document: document,
		Project:  project,
		Message:  message,
		Err:      err,
	}
}

// ScanFailure records a layer scan that could not complete. It is never
// fatal to a conversion.
type ScanFailure struct {
	Project  string
	URL      string
	Revision string
	Err      error
}

func (e *ScanFailure) Error() string {
	return fmt.Sprintf("layer scan failed for %s (%s@%s): %v", e.Project, e.URL, e.Revision, e.Err)
}

func (e *ScanFailure) Unwrap() error {
	return e.Err
}

// NewScanFailure creates a new ScanFailure
func NewScanFailure(ref RepoRef, err error) *ScanFailure {
	return &ScanFailure{
		Project:  ref.Project,
		URL:      ref.URL,
		Revision: ref.Revision,
		Err:      err,
	}
}

// IsScanFailure reports whether err is or wraps a ScanFailure
func IsScanFailure(err error) bool {
	var sf *ScanFailure
	return errors.As(err, &sf)
}

// PathCollisionError reports two projects mapping to the same final path
type PathCollisionError struct {
	Path     string
	Projects []string
}

func (e *PathCollisionError) Error() string {
	return fmt.Sprintf("path collision: %q is used by %s (enable suffix dedup to resolve)",
		e.Path, strings.Join(e.Projects, " and "))
}

// NewPathCollisionError creates a new PathCollisionError
func NewPathCollisionError(path string, projects ...string) *PathCollisionError {
	return &PathCollisionError{Path: path, Projects: projects}
}

// UnsupportedFeatureError reports a requested feature the target schema
// version cannot express
type UnsupportedFeatureError struct {
	Feature    string
	MinVersion int
	Version    int
}

func (e *UnsupportedFeatureError) Error() string {
	return fmt.Sprintf("feature %q requires kas format version %d or newer (effective version is %d)",
		e.Feature, e.MinVersion, e.Version)
}

// NewUnsupportedFeatureError creates a new UnsupportedFeatureError
func NewUnsupportedFeatureError(feature string, minVersion, version int) *UnsupportedFeatureError {
	return &UnsupportedFeatureError{
		Feature:    feature,
		MinVersion: minVersion,
		Version:    version,
	}
}

// LayerRequestError reports include rules that matched no layer
type LayerRequestError struct {
	Missing   []string
	Available map[string][]string
	Failed    map[string]string
}

func (e *LayerRequestError) Error() string {
	var b strings.Builder
	b.WriteString("requested layers were not found: ")
	b.WriteString(strings.Join(e.Missing, ", "))
	b.WriteString("\navailable layers:")

	keys := make([]string, 0, len(e.Available)+len(e.Failed))
	for k := range e.Available {
		keys = append(keys, k)
	}
	for k := range e.Failed {
		if _, ok := e.Available[k]; !ok {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	if len(keys) == 0 {
		b.WriteString("\n  (no layers detected)")
	}
	for _, k := range keys {
		if reason, failed := e.Failed[k]; failed {
			fmt.Fprintf(&b, "\n  %s: (detection failed: %s)", k, reason)
			continue
		}
		layers := strings.Join(e.Available[k], ", ")
		if layers == "" {
			layers = "(none)"
		}
		fmt.Fprintf(&b, "\n  %s: %s", k, layers)
	}
	return b.String()
}

// FetchError represents an error during fetching
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("fetch error for %s: status %d: %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch error for %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// NewFetchError creates a new FetchError
func NewFetchError(url string, statusCode int, err error) *FetchError {
	return &FetchError{
		URL:        url,
		StatusCode: statusCode,
		Err:        err,
	}
}

// RetryableError indicates an error that can be retried
type RetryableError struct {
	Err        error
	RetryAfter int // Seconds to wait before retry, 0 if unknown
}

func (e *RetryableError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("retryable error (retry after %ds): %v", e.RetryAfter, e.Err)
	}
	return fmt.Sprintf("retryable error: %v", e.Err)
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// IsRetryable checks if an error should be retried
func IsRetryable(err error) bool {
	var retryable *RetryableError
	if errors.As(err, &retryable) {
		return true
	}

	var fetchErr *FetchError
	if errors.As(err, &fetchErr) {
		switch fetchErr.StatusCode {
		case 429, 503, 502, 504:
			return true
		}
		if fetchErr.StatusCode >= 520 && fetchErr.StatusCode <= 530 {
			return true
		}
	}

	return errors.Is(err, ErrRateLimited) || errors.Is(err, ErrTimeout)
}

// StatusCode extracts the HTTP status from a FetchError chain, 0 if none
func StatusCode(err error) int {
	var fetchErr *FetchError
	if errors.As(err, &fetchErr) {
		return fetchErr.StatusCode
	}
	return 0
}

// ValidationError represents a validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for %s: %s", e.Field, e.Message)
}

// NewValidationError creates a new ValidationError
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}
