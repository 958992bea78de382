package main

import (
	"fmt"
	"os"

	"github.com/GhostKellz/zmake/internal/cache"
	"github.com/GhostKellz/zmake/internal/config"
	"github.com/GhostKellz/zmake/internal/log"
	"github.com/spf13/cobra"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or reconcile the build cache",
}

var cacheInfoCmd = &cobra.Command{
	Use:   "info",
	Short: "Print the number of cached entries and their total size",
	RunE:  runCacheInfo,
}

var cacheGCCmd = &cobra.Command{
	Use:   "gc",
	Short: "Reconcile the cache index with what is actually on disk and evict down to the size limit",
	RunE:  runCacheGC,
}

func init() {
	cacheCmd.AddCommand(cacheInfoCmd)
	cacheCmd.AddCommand(cacheGCCmd)
}

func openCache() (*cache.Cache, error) {
	cfg, err := config.DefaultConfig()
	if err != nil {
		return nil, err
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}
	return cache.New(cfg.CacheDir, cache.WithSizeLimit(config.GetCacheSizeLimit()), cache.WithLogger(log.Default()))
}

func runCacheInfo(cmd *cobra.Command, args []string) error {
	c, err := openCache()
	if err != nil {
		return err
	}
	count, totalBytes := c.Size()
	fmt.Fprintf(os.Stdout, "%d entries, %.2f MB\n", count, float64(totalBytes)/(1024*1024))
	return nil
}

func runCacheGC(cmd *cobra.Command, args []string) error {
	c, err := openCache()
	if err != nil {
		return err
	}
	if err := c.GC(); err != nil {
		return fmt.Errorf("cache gc: %w", err)
	}
	count, totalBytes := c.Size()
	fmt.Fprintf(os.Stdout, "gc complete: %d entries remain, %.2f MB\n", count, float64(totalBytes)/(1024*1024))
	return nil
}
