package main

import (
	"context"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cacheInfoCmd)
	cacheCmd.AddCommand(cacheClearCmd)
}

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or clear the lookup cache",
	Long: `Inspect or clear the lookup cache.

Registry lookups are cached by DOI in SQLite. The default cache_path is
":memory:", which lasts for one run only; set cache_path (or
BIBRENAME_CACHE) to a file to keep lookups between runs.`,
}

var cacheInfoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show the cache location and entry count",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := mustLoadConfig()
		store := mustOpenCache(cfg)
		defer store.Close()

		n, err := store.Len(context.Background())
		if err != nil {
			exitWithError(ExitError, "%v", err)
		}

		if humanOutput {
			outputHuman("%s: %d entries\n", cfg.CachePath, n)
		} else {
			outputJSON(StatusResponse{Status: "ok", Path: cfg.CachePath, Count: n})
		}
		return nil
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every cached lookup",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := mustLoadConfig()
		store := mustOpenCache(cfg)
		defer store.Close()

		n, err := store.Purge(context.Background())
		if err != nil {
			exitWithError(ExitError, "%v", err)
		}

		if humanOutput {
			outputHuman("Removed %d entries from %s\n", n, cfg.CachePath)
		} else {
			outputJSON(StatusResponse{Status: "cleared", Path: cfg.CachePath, Count: n})
		}
		return nil
	},
}
