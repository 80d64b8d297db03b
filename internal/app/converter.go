// Package app wires manifest loading, layer discovery and document
// assembly into one conversion.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/quantmind-br/repo2kas/internal/cache"
	"github.com/quantmind-br/repo2kas/internal/config"
	"github.com/quantmind-br/repo2kas/internal/domain"
	"github.com/quantmind-br/repo2kas/internal/fetcher"
	"github.com/quantmind-br/repo2kas/internal/git"
	"github.com/quantmind-br/repo2kas/internal/kas"
	"github.com/quantmind-br/repo2kas/internal/layers"
	"github.com/quantmind-br/repo2kas/internal/manifest"
	"github.com/quantmind-br/repo2kas/internal/paths"
	"github.com/quantmind-br/repo2kas/internal/scanner"
	"github.com/quantmind-br/repo2kas/internal/utils"
	"github.com/quantmind-br/repo2kas/pkg/version"
)

// errScanDisabled marks projects that were not scanned on request
var errScanDisabled = errors.New("layer scanning disabled")

// LayerScanner discovers the layers of one project
type LayerScanner interface {
	Scan(ctx context.Context, p domain.Project) ([]domain.Layer, error)
}

// ConverterOptions contains options for creating a Converter
type ConverterOptions struct {
	Config  *config.Config
	Verbose bool
	// Logger overrides the logger built from Config.Logging
	Logger *utils.Logger
	// Scanner overrides the scanner built from Config.Scan
	Scanner LayerScanner
	// Git overrides the git client used for manifest repos and clones
	Git git.Client
	// Progress receives the scan progress bar; nil disables it
	Progress io.Writer
	// RefreshCache ignores cached scans but stores new results
	RefreshCache bool
}

// Request names the manifest to convert. GitURL selects a manifest
// repository; otherwise ManifestPath is a local file or directory.
type Request struct {
	ManifestPath string
	GitURL       string
	Branch       string
	ManifestFile string
}

// Result is a finished conversion
type Result struct {
	Manifest    *domain.ResolvedManifest
	Document    *kas.Document
	Output      []byte
	Diagnostics []domain.Diagnostic
}

// Converter turns a repo manifest into a kas document
type Converter struct {
	config   *config.Config
	logger   *utils.Logger
	loader   *manifest.Loader
	scanner  LayerScanner
	progress io.Writer

	build kas.Build
	rules []layers.Rule
	hints map[string][]string
	apply paths.ApplyMode
	dedup paths.DedupMode

	closers []io.Closer
}

// NewConverter validates the configuration and builds the pipeline
func NewConverter(opts ConverterOptions) (*Converter, error) {
	cfg := opts.Config
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := opts.Logger
	if logger == nil {
		logger = utils.NewLogger(utils.LoggerOptions{
			Level:   cfg.Logging.Level,
			Format:  cfg.Logging.Format,
			Verbose: opts.Verbose,
		})
	}

	c := &Converter{
		config:   cfg,
		logger:   logger,
		progress: opts.Progress,
	}

	var err error
	if c.build, err = buildContext(cfg); err != nil {
		return nil, err
	}
	if c.rules, err = layers.ParseRules(cfg.Layers.Include, cfg.Layers.Exclude); err != nil {
		return nil, err
	}
	if c.hints, err = layers.ParseHints(cfg.Layers.Hints); err != nil {
		return nil, err
	}
	if c.apply, err = paths.ParseApplyMode(cfg.Paths.ApplyMode); err != nil {
		return nil, err
	}
	if c.dedup, err = paths.ParseDedupMode(cfg.Paths.Dedup); err != nil {
		return nil, err
	}

	gitClient := opts.Git
	if gitClient == nil {
		gitClient = git.NewClient(logger)
	}
	c.loader = manifest.NewLoader(manifest.LoaderOptions{
		Git:    gitClient,
		Logger: logger,
		Token:  firstNonEmpty(cfg.Scan.GitHubToken, cfg.Scan.GitLabToken),
	})

	c.scanner = opts.Scanner
	if c.scanner == nil && !cfg.Scan.Disabled {
		if c.scanner, err = c.newScanner(gitClient, opts.RefreshCache); err != nil {
			_ = c.Close()
			return nil, err
		}
	}
	return c, nil
}

// newScanner builds the HTTP client, scan cache, host router and scanner
func (c *Converter) newScanner(gitClient git.Client, refresh bool) (*scanner.Scanner, error) {
	cfg := c.config

	httpOpts := fetcher.DefaultClientOptions()
	httpOpts.Timeout = cfg.Scan.Timeout
	httpOpts.MaxRetries = cfg.Scan.MaxRetries
	httpOpts.UserAgent = cfg.Scan.UserAgent
	httpOpts.ProxyURL = cfg.Scan.Proxy
	httpClient, err := fetcher.NewClient(httpOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP client: %w", err)
	}
	c.closers = append(c.closers, httpClient)

	var scanCache domain.Cache
	if cfg.Cache.Enabled {
		bc, err := cache.NewBadgerCache(cache.Options{
			Directory: utils.ExpandPath(cfg.Cache.Directory),
			Logger:    c.logger,
		})
		if err != nil {
			c.logger.Warn().Err(err).Msg("Scan cache unavailable, continuing without it")
		} else {
			scanCache = bc
			c.closers = append(c.closers, bc)
		}
	}

	router := scanner.NewRouter(scanner.RouterOptions{
		HTTP:          httpClient,
		Git:           gitClient,
		GitHubAPI:     cfg.Scan.GitHubAPI,
		GitHubToken:   cfg.Scan.GitHubToken,
		GitLabToken:   cfg.Scan.GitLabToken,
		GitLabHosts:   cfg.Scan.GitLabHosts,
		CgitBasicAuth: cfg.Scan.CgitBasicAuth,
		CloneFallback: cfg.Scan.CloneFallback,
		Logger:        c.logger,
	})

	return scanner.NewScanner(router, scanCache, c.logger, scanner.Options{
		MaxDepth:     cfg.Layers.MaxDepth,
		Timeout:      cfg.Scan.Timeout,
		CacheTTL:     cfg.Cache.TTL,
		RefreshCache: refresh,
	}), nil
}

// Close releases the HTTP client and the scan cache
func (c *Converter) Close() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}

// Load reads and resolves the requested manifest
func (c *Converter) Load(ctx context.Context, req Request) (*domain.ResolvedManifest, error) {
	if req.GitURL != "" {
		return c.loader.LoadGit(ctx, req.GitURL, req.Branch, req.ManifestFile)
	}
	if req.ManifestPath == "" {
		return nil, domain.NewValidationError("manifest", "a manifest path or --git-url is required")
	}
	return c.loader.LoadFile(req.ManifestPath)
}

// Convert loads the manifest and converts it
func (c *Converter) Convert(ctx context.Context, req Request) (*Result, error) {
	m, err := c.Load(ctx, req)
	if err != nil {
		return nil, err
	}
	return c.ConvertManifest(ctx, m)
}

// ConvertManifest converts an already resolved manifest. Fatal errors
// abort before any output is produced; per-project scan failures become
// diagnostics.
func (c *Converter) ConvertManifest(ctx context.Context, m *domain.ResolvedManifest) (*Result, error) {
	start := time.Now()
	ver := kas.Clamp(c.config.Kas.Version)
	if ver != c.config.Kas.Version {
		c.logger.Debug().Int("requested", c.config.Kas.Version).Int("effective", ver).Msg("kas format version clamped")
	}

	c.logger.Info().
		Int("projects", len(m.Projects)).
		Int("kas_version", ver).
		Int("workers", c.config.Scan.Workers).
		Msg("Starting conversion")

	if err := kas.Check(ver, c.build.RequestedFeatures()); err != nil {
		return nil, err
	}

	finalPaths, err := paths.Resolve(m.Projects, paths.Options{
		Prefix: c.config.Paths.Prefix,
		Apply:  c.apply,
		Dedup:  c.dedup,
		Logger: c.logger,
	})
	if err != nil {
		return nil, err
	}

	inputs, diags, err := c.scan(ctx, m.Projects)
	if err != nil {
		return nil, err
	}

	filter := layers.NewFilter(layers.Options{
		Rules:      c.rules,
		IncludeAll: c.config.Layers.IncludeAll,
		Hints:      c.hints,
		Strict:     c.config.Layers.Strict,
		Logger:     c.logger,
	})
	selections, filterDiags, err := filter.Apply(inputs)
	diags = append(diags, filterDiags...)
	if err != nil {
		return nil, err
	}

	entries := make([]domain.RepoEntry, len(m.Projects))
	for i, p := range m.Projects {
		entries[i] = domain.RepoEntry{
			ID:       p.ID(),
			Name:     p.Name,
			Path:     finalPaths[i],
			URL:      p.URL,
			Revision: p.Revision,
			Upstream: firstNonEmpty(p.Upstream, p.DestBranch),
			Layers:   selections[i].Layers,
		}
	}

	doc, err := kas.Assemble(ver, entries, c.build, m.Default)
	if err != nil {
		return nil, err
	}
	out, err := kas.Render(doc, kas.Meta{
		ToolVersion: version.Short(),
		Source:      m.Source,
		PathPrefix:  paths.NormalizePrefix(c.config.Paths.Prefix),
		PathDedup:   string(c.dedup),
	})
	if err != nil {
		return nil, err
	}

	c.logger.Info().
		Int("repos", len(doc.Repos)).
		Int("diagnostics", len(diags)).
		Dur("duration", time.Since(start)).
		Msg("Conversion completed")

	return &Result{Manifest: m, Document: doc, Output: out, Diagnostics: diags}, nil
}

// scan discovers layers of every project in parallel. Results are joined
// back by project position. Only cancellation of ctx is fatal.
func (c *Converter) scan(ctx context.Context, projects []domain.Project) ([]layers.Input, []domain.Diagnostic, error) {
	inputs := make([]layers.Input, len(projects))
	for i, p := range projects {
		inputs[i] = layers.Input{Project: p}
	}

	if c.scanner == nil {
		for i := range inputs {
			inputs[i].ScanErr = errScanDisabled
		}
		c.logger.Info().Msg("Layer scanning disabled, using hints and project-qualified rules only")
		return inputs, nil, nil
	}

	bar := utils.NewProgressBar(len(projects), utils.DescScanning, c.progress)
	results, errs := utils.ParallelMap(ctx, projects, c.config.Scan.Workers,
		func(ctx context.Context, _ int, p domain.Project) ([]domain.Layer, error) {
			defer func() { _ = bar.Add(1) }()
			return c.scanner.Scan(ctx, p)
		})
	_ = bar.Finish()

	if err := ctx.Err(); err != nil {
		c.logger.Warn().Msg("Conversion cancelled")
		return nil, nil, err
	}

	var diags []domain.Diagnostic
	for i, p := range projects {
		inputs[i].Scanned = results[i]
		if errs[i] == nil {
			continue
		}
		inputs[i].Scanned = nil
		inputs[i].ScanErr = errs[i]
		// ScanFailure already names the project, keep only its cause
		cause := errs[i]
		var sf *domain.ScanFailure
		if errors.As(cause, &sf) && sf.Err != nil {
			cause = sf.Err
		}
		diags = append(diags, domain.Diagnostic{
			Project: p.Name,
			Message: fmt.Sprintf("layer scan failed (%s@%s)", p.URL, p.Revision),
			Err:     cause,
		})
		c.logger.Warn().
			Err(cause).
			Str("project", p.Name).
			Str("url", p.URL).
			Str("revision", p.Revision).
			Msg("Layer scan failed")
	}
	return inputs, diags, nil
}

// buildContext converts the build section of the configuration
func buildContext(cfg *config.Config) (kas.Build, error) {
	env, err := kas.ParseEnv(cfg.Build.Env)
	if err != nil {
		return kas.Build{}, err
	}
	return kas.Build{
		Machine:            cfg.Build.Machine,
		Distro:             cfg.Build.Distro,
		Targets:            cfg.Build.Targets,
		Task:               cfg.Build.Task,
		BuildSystem:        cfg.Build.BuildSystem,
		Env:                env,
		BBLayersConfHeader: kas.SortedPairs(cfg.Build.BBLayersConfHeader),
		LocalConfHeader:    kas.SortedPairs(cfg.Build.LocalConfHeader),
		Artifacts:          kas.SortedPairs(cfg.Build.Artifacts),
		Includes:           kas.ParseIncludes(cfg.Kas.HeaderIncludes),
	}, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
