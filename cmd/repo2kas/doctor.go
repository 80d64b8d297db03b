package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/quantmind-br/repo2kas/internal/config"
	"github.com/quantmind-br/repo2kas/internal/fetcher"
	"github.com/quantmind-br/repo2kas/internal/utils"
	"github.com/spf13/cobra"
)

// Replaced in tests
var (
	osStat     = os.Stat
	apiTimeout = 5 * time.Second
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check the environment used for layer scanning",
	Long:  "Verifies configuration, forge API reachability, tokens and the cache directory.",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, "Checking environment...")
		allPassed := true

		// Check 1: Config file
		fmt.Fprint(out, "  Config file: ")
		cfg, v, err := config.LoadWithViper()
		switch {
		case err != nil:
			fmt.Fprintf(out, "FAILED (%v)\n", err)
			cfg = config.Default()
			allPassed = false
		case v.ConfigFileUsed() != "":
			fmt.Fprintf(out, "OK (%s)\n", v.ConfigFileUsed())
		default:
			fmt.Fprintf(out, "OK (defaults, no %s)\n", config.ConfigFilePath())
		}

		// Check 2: GitHub API
		fmt.Fprint(out, "  GitHub API: ")
		if checkAPI(cmd.Context(), cfg.Scan.GitHubAPI) {
			fmt.Fprintf(out, "OK (%s)\n", cfg.Scan.GitHubAPI)
		} else {
			fmt.Fprintln(out, "UNREACHABLE (scans fall back to cloning)")
		}

		// Check 3: Tokens
		fmt.Fprint(out, "  GitHub token: ")
		fmt.Fprintln(out, tokenStatus(cfg.Scan.GitHubToken))
		fmt.Fprint(out, "  GitLab token: ")
		fmt.Fprintln(out, tokenStatus(cfg.Scan.GitLabToken))

		// Check 4: Cache directory
		fmt.Fprint(out, "  Cache directory: ")
		cacheDir := utils.ExpandPath(cfg.Cache.Directory)
		switch {
		case !cfg.Cache.Enabled:
			fmt.Fprintln(out, "DISABLED")
		case checkCacheDir(cacheDir):
			fmt.Fprintf(out, "OK (%s)\n", cacheDir)
		default:
			fmt.Fprintln(out, "WARN (will be created on first use)")
		}

		// Check 5: Write permissions for the working directory
		fmt.Fprint(out, "  Write permissions: ")
		if checkWritePermissions(".") {
			fmt.Fprintln(out, "OK")
		} else {
			fmt.Fprintln(out, "FAILED")
			allPassed = false
		}

		fmt.Fprintln(out)
		if allPassed {
			fmt.Fprintln(out, "All critical checks passed!")
		} else {
			fmt.Fprintln(out, "Some checks failed. Please resolve the issues above.")
		}
		return nil
	},
}

// checkAPI reports whether the GitHub API answers its rate limit endpoint
func checkAPI(ctx context.Context, base string) bool {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, apiTimeout)
	defer cancel()

	opts := fetcher.DefaultClientOptions()
	opts.Timeout = apiTimeout
	opts.MaxRetries = 0
	client, err := fetcher.NewClient(opts)
	if err != nil {
		return false
	}
	defer client.Close()

	_, err = client.Get(ctx, strings.TrimSuffix(base, "/")+"/rate_limit", map[string]string{
		"Accept": "application/vnd.github+json",
	})
	return err == nil
}

func tokenStatus(token string) string {
	if token == "" {
		return "not set (anonymous rate limits apply)"
	}
	return "set"
}

// checkWritePermissions checks that a file can be created in dir
func checkWritePermissions(dir string) bool {
	f, err := os.CreateTemp(dir, ".repo2kas_test_write")
	if err != nil {
		return false
	}
	f.Close()
	os.Remove(f.Name())
	return true
}

// checkCacheDir checks if the cache directory exists
func checkCacheDir(path string) bool {
	info, err := osStat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}
