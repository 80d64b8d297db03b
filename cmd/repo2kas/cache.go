package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/quantmind-br/repo2kas/internal/cache"
	"github.com/quantmind-br/repo2kas/internal/config"
	"github.com/quantmind-br/repo2kas/internal/utils"
	"github.com/spf13/cobra"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or clear the layer scan cache",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cached scan count and disk usage",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := openCache()
		if err != nil {
			return err
		}
		defer c.Close()

		st := c.Stats()
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Directory:     %s\n", st.Directory)
		fmt.Fprintf(out, "Cached scans:  %d\n", st.ScanEntries)
		fmt.Fprintf(out, "Index size:    %s\n", humanize.Bytes(uint64(st.LSMBytes)))
		fmt.Fprintf(out, "Value log:     %s\n", humanize.Bytes(uint64(st.VLogBytes)))
		return nil
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every cached layer scan",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := openCache()
		if err != nil {
			return err
		}
		defer c.Close()

		n := c.Stats().ScanEntries
		if err := c.ClearScans(); err != nil {
			return fmt.Errorf("failed to clear cache: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Removed %d cached scans\n", n)
		return nil
	},
}

func init() {
	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cacheClearCmd)
	rootCmd.AddCommand(cacheCmd)
}

func openCache() (*cache.BadgerCache, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cache.NewBadgerCache(cache.Options{Directory: utils.ExpandPath(cfg.Cache.Directory)})
}
