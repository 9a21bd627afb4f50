package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage crateferry's scratch and index caches",
}

var cacheCleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove the scratch directory and index cache",
	Long: `Remove crateferry's download/extract staging area and cached index
responses (version lists and manifests).

This does not touch anything already installed; it only clears the
working state crateferry rebuilds on its next run.`,
	Args: cobra.NoArgs,
	RunE: runCacheClean,
}

func init() {
	cacheCmd.AddCommand(cacheCleanCmd)
	rootCmd.AddCommand(cacheCmd)
}

func runCacheClean(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig()
	if err != nil {
		return err
	}

	for _, dir := range []string{cfg.ScratchDir, cfg.CacheDir} {
		if err := os.RemoveAll(dir); err != nil {
			return fmt.Errorf("cache clean: %w", err)
		}
	}

	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("cache clean: %w", err)
	}

	fmt.Println("scratch and index cache cleared")
	return nil
}
