package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/quantmind-br/repo2kas/internal/app"
	"github.com/quantmind-br/repo2kas/internal/config"
	"github.com/quantmind-br/repo2kas/internal/output"
	"github.com/quantmind-br/repo2kas/internal/utils"
	"github.com/quantmind-br/repo2kas/pkg/version"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	verbose bool
	log     *utils.Logger
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "repo2kas",
	Short: "Convert repo manifests into kas project configuration",
	Long: `repo2kas converts a repo-tool manifest (default.xml and its includes)
into a kas project configuration file.

Layers are discovered by listing each project's tree on GitHub, GitLab,
cgit or a local checkout, falling back to a shallow in-memory clone.`,
	Version:       version.Short(),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

var convertCmd = &cobra.Command{
	Use:   "convert [manifest.xml | directory | manifest-repo-url]",
	Short: "Convert a manifest into a kas file",
	Long: `Convert resolves the manifest include graph, scans every project for
layers, applies the layer rules and writes the kas document to stdout or
to the file given with --output.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runConvert,
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.repo2kas/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")

	f := convertCmd.Flags()

	// Manifest source
	f.String("git-url", "", "Manifest repository URL")
	f.String("branch", "", "Manifest repository branch (default: remote HEAD)")
	f.String("manifest", "", "Manifest file inside the manifest repository")

	// Document
	f.Int("kas-version", config.DefaultKasVersion, "kas format version (1-20)")
	f.StringArray("include", nil, "Header include, file or repo:file (repeatable)")

	// Paths
	f.String("path-prefix", "", "Prefix for repo checkout paths")
	f.String("path-apply-mode", config.DefaultApplyMode, "Where the prefix applies: always or missing-only")
	f.String("path-dedup", config.DefaultDedup, "Duplicate path policy: off or suffix")

	// Layers
	f.StringArray("include-layer", nil, "Layer to keep, [project:]pattern (repeatable)")
	f.StringArray("exclude-layer", nil, "Layer to drop, [project:]pattern (repeatable)")
	f.Bool("include-all-layers", false, "Keep every discovered layer")
	f.StringArray("layer-hint", nil, "Known layer, project:path, used when scans miss it (repeatable)")
	f.Bool("strict-layers", false, "Fail when an include rule matches no layer")
	f.Int("scan-depth", config.DefaultLayerMaxDepth, "Maximum layer directory depth")
	f.Bool("no-scan", false, "Do not scan repositories for layers")

	// Build context
	f.String("machine", "", "kas machine")
	f.String("distro", "", "kas distro")
	f.StringArray("target", nil, "Build target (repeatable)")
	f.String("task", "", "kas task")
	f.String("build-system", "", "Build system: openembedded, oe or isar")
	f.StringArray("env", nil, "Environment entry KEY or KEY=VALUE (repeatable)")

	// Output
	f.StringP("output", "o", "", "Output file (default: stdout)")
	f.Bool("force", false, "Overwrite an existing output file")
	f.Bool("dry-run", false, "Convert without writing the output file")
	f.String("report", "", "Write a JSON conversion report to this file")

	// Scanning
	f.IntP("workers", "j", config.DefaultWorkers, "Number of concurrent scans")
	f.Duration("timeout", config.DefaultScanTimeout, "Timeout per project scan")
	f.Bool("no-clone", false, "Never fall back to cloning repositories")
	f.Bool("no-cache", false, "Disable the scan cache")
	f.Bool("refresh-cache", false, "Ignore cached scans and store fresh results")
	f.Bool("no-progress", false, "Hide the progress bar")

	// Bind flags to viper
	bind := map[string]string{
		"kas.version":           "kas-version",
		"kas.header_includes":   "include",
		"paths.prefix":          "path-prefix",
		"paths.apply_mode":      "path-apply-mode",
		"paths.dedup":           "path-dedup",
		"layers.include":        "include-layer",
		"layers.exclude":        "exclude-layer",
		"layers.include_all":    "include-all-layers",
		"layers.hints":          "layer-hint",
		"layers.strict":         "strict-layers",
		"layers.max_depth":      "scan-depth",
		"scan.disabled":         "no-scan",
		"scan.workers":          "workers",
		"scan.timeout":          "timeout",
		"build.machine":         "machine",
		"build.distro":          "distro",
		"build.targets":         "target",
		"build.task":            "task",
		"build.build_system":    "build-system",
		"build.env":             "env",
	}
	for key, flag := range bind {
		_ = viper.BindPFlag(key, f.Lookup(flag))
	}

	// Add subcommands
	rootCmd.AddCommand(convertCmd)
	rootCmd.AddCommand(doctorCmd)
	rootCmd.AddCommand(versionCmd)
}

func initConfig() {
	config.SetFile(cfgFile)
}

func runConvert(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	f := cmd.Flags()
	if noCache, _ := f.GetBool("no-cache"); noCache {
		cfg.Cache.Enabled = false
	}
	if noClone, _ := f.GetBool("no-clone"); noClone {
		cfg.Scan.CloneFallback = false
	}

	log = utils.NewLogger(utils.LoggerOptions{
		Level:   cfg.Logging.Level,
		Format:  cfg.Logging.Format,
		Output:  cmd.ErrOrStderr(),
		Verbose: verbose,
	})

	req := app.Request{}
	req.GitURL, _ = f.GetString("git-url")
	req.Branch, _ = f.GetString("branch")
	req.ManifestFile, _ = f.GetString("manifest")
	if len(args) == 1 {
		switch app.DetectSource(args[0]) {
		case app.SourceKindGit:
			if req.GitURL != "" && req.GitURL != args[0] {
				return fmt.Errorf("manifest repository given twice: %s and --git-url %s", args[0], req.GitURL)
			}
			req.GitURL = args[0]
		default:
			req.ManifestPath = args[0]
		}
	}
	if req.GitURL == "" && req.ManifestPath == "" {
		req.ManifestPath = "."
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	go func() {
		select {
		case <-sigCh:
			log.Info().Msg("Shutting down gracefully...")
			cancel()
		case <-ctx.Done():
		}
	}()

	var progress io.Writer = cmd.ErrOrStderr()
	if noProgress, _ := f.GetBool("no-progress"); noProgress {
		progress = nil
	}
	refresh, _ := f.GetBool("refresh-cache")

	converter, err := app.NewConverter(app.ConverterOptions{
		Config:       cfg,
		Verbose:      verbose,
		Logger:       log,
		Progress:     progress,
		RefreshCache: refresh,
	})
	if err != nil {
		return err
	}
	defer converter.Close()

	res, err := converter.Convert(ctx, req)
	if err != nil {
		return err
	}
	output.PrintDiagnostics(cmd.ErrOrStderr(), res.Diagnostics)

	if reportPath, _ := f.GetString("report"); reportPath != "" {
		if err := output.NewReport(res.Manifest, res.Document, res.Diagnostics).WriteJSON(reportPath); err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
	}

	outPath, _ := f.GetString("output")
	force, _ := f.GetBool("force")
	dryRun, _ := f.GetBool("dry-run")
	w := output.NewWriter(output.WriterOptions{
		Path:   outPath,
		Force:  force,
		DryRun: dryRun,
		Stdout: cmd.OutOrStdout(),
	})
	if err := w.Write(res.Output); err != nil {
		return err
	}
	if w.Target() != "" && !dryRun {
		log.Info().Str("path", w.Target()).Msg("kas file written")
	}
	return nil
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), version.Full())
	},
}
