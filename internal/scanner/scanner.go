// Package scanner discovers layer directories inside project repositories
// by listing their trees through forge APIs, cgit pages, local checkouts
// or in-memory clones.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/quantmind-br/repo2kas/internal/cache"
	"github.com/quantmind-br/repo2kas/internal/domain"
	"github.com/quantmind-br/repo2kas/internal/utils"
)

// MarkerFile identifies a layer directory
const MarkerFile = "conf/layer.conf"

// DefaultMaxDepth bounds how many path segments a layer directory may have
const DefaultMaxDepth = 3

// NoiseSubstrings mark layer paths that are test fixtures, not real layers
var NoiseSubstrings = []string{
	"bitbake/lib/layerindexlib/tests/testdata",
	"tests/",
}

// Options configures a Scanner
type Options struct {
	MaxDepth int
	// Timeout bounds a single project scan. Zero means no timeout.
	Timeout time.Duration
	// CacheTTL is how long successful scans stay cached
	CacheTTL time.Duration
	// RefreshCache skips cache reads but still stores fresh results
	RefreshCache bool
}

// Scanner discovers layer directories inside project trees
type Scanner struct {
	lister domain.TreeLister
	cache  domain.Cache
	logger *utils.Logger
	opts   Options
}

// NewScanner creates a Scanner. cache may be nil.
func NewScanner(lister domain.TreeLister, c domain.Cache, logger *utils.Logger, opts Options) *Scanner {
	if logger == nil {
		logger = utils.NewNopLogger()
	}
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = DefaultMaxDepth
	}
	return &Scanner{
		lister: lister,
		cache:  c,
		logger: logger.WithComponent("scanner"),
		opts:   opts,
	}
}

// Scan lists the layers of one resolved project. Every failure is returned
// as a *domain.ScanFailure; no layers are ever invented on failure.
func (s *Scanner) Scan(ctx context.Context, p domain.Project) ([]domain.Layer, error) {
	ref := domain.RepoRef{Project: p.Name, URL: p.URL, Revision: p.Revision}
	log := s.logger.WithRepo(p.Name, p.URL, p.Revision)

	if ref.URL == "" {
		return nil, domain.NewScanFailure(ref, errors.New("project has no URL"))
	}

	key := s.cacheKey(ref)
	if paths, ok := s.cached(ctx, key); ok {
		log.Debug().Int("layers", len(paths)).Msg("Layer scan cache hit")
		return toLayers(p.Name, paths), nil
	}

	scanCtx := ctx
	if s.opts.Timeout > 0 {
		var cancel context.CancelFunc
		scanCtx, cancel = context.WithTimeout(ctx, s.opts.Timeout)
		defer cancel()
	}

	start := time.Now()
	// marker files sit two segments below the layer directory
	entries, err := s.lister.ListTree(scanCtx, ref, "", s.opts.MaxDepth+2)
	if err != nil {
		if errors.Is(scanCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			err = fmt.Errorf("%w after %s: %w", domain.ErrTimeout, s.opts.Timeout, err)
		}
		return nil, domain.NewScanFailure(ref, err)
	}

	paths := LayersFromTree(entries, s.opts.MaxDepth)
	log.Debug().
		Int("entries", len(entries)).
		Int("layers", len(paths)).
		Dur("took", time.Since(start)).
		Msg("Layer scan complete")

	s.store(ctx, key, ref, paths)
	return toLayers(p.Name, paths), nil
}

func (s *Scanner) cacheKey(ref domain.RepoRef) string {
	return fmt.Sprintf("%s:%d", cache.ScanKey(ref.URL, ref.Revision), s.opts.MaxDepth)
}

func (s *Scanner) cached(ctx context.Context, key string) ([]string, bool) {
	if s.cache == nil || s.opts.RefreshCache {
		return nil, false
	}
	data, err := s.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, domain.ErrCacheMiss) {
			s.logger.Debug().Err(err).Msg("Cache read failed")
		}
		return nil, false
	}
	entry, err := cache.DecodeScanEntry(data)
	if err != nil || entry.IsExpired() {
		// unreadable or stale: drop it so the fresh scan replaces it
		if err := s.cache.Delete(ctx, key); err != nil {
			s.logger.Debug().Err(err).Msg("Cache delete failed")
		}
		return nil, false
	}
	return entry.Layers, true
}

func (s *Scanner) store(ctx context.Context, key string, ref domain.RepoRef, paths []string) {
	if s.cache == nil {
		return
	}
	now := time.Now().UTC()
	entry := &cache.ScanEntry{
		URL:       ref.URL,
		Revision:  ref.Revision,
		Layers:    paths,
		ScannedAt: now,
	}
	if s.opts.CacheTTL > 0 {
		entry.ExpiresAt = now.Add(s.opts.CacheTTL)
	}
	data, err := entry.Encode()
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, data, s.opts.CacheTTL); err != nil {
		s.logger.Warn().Err(err).Str("url", ref.URL).Msg("Failed to cache layer scan")
	}
}

// LayersFromTree derives layer directories from a tree listing: parents of
// conf/layer.conf blobs, at most maxDepth segments deep, excluding the
// repository root and known test fixtures. The result is sorted and
// free of duplicates.
func LayersFromTree(entries []domain.TreeEntry, maxDepth int) []string {
	seen := make(map[string]bool)
	var out []string
	for _, e := range entries {
		if e.Type != domain.EntryBlob {
			continue
		}
		dir, ok := LayerDir(e.Path)
		if !ok {
			continue
		}
		if maxDepth > 0 && strings.Count(dir, "/")+1 > maxDepth {
			continue
		}
		if IsNoise(dir) || seen[dir] {
			continue
		}
		seen[dir] = true
		out = append(out, dir)
	}
	sort.Strings(out)
	return out
}

// LayerDir returns the layer directory owning a marker file path. The
// repository root is not a layer.
func LayerDir(p string) (string, bool) {
	p = strings.Trim(p, "/")
	if !strings.HasSuffix(p, "/"+MarkerFile) {
		return "", false
	}
	dir := strings.TrimSuffix(p, "/"+MarkerFile)
	return dir, dir != ""
}

// IsNoise reports whether a layer path is a known test fixture
func IsNoise(layerPath string) bool {
	for _, s := range NoiseSubstrings {
		if strings.Contains(layerPath, s) {
			return true
		}
	}
	return false
}

func toLayers(project string, paths []string) []domain.Layer {
	layers := make([]domain.Layer, 0, len(paths))
	for _, p := range paths {
		layers = append(layers, domain.Layer{Project: project, Path: p, Provenance: domain.ProvenanceScanned})
	}
	return layers
}
