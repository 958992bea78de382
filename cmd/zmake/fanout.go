package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/GhostKellz/zmake/internal/archive"
	"github.com/GhostKellz/zmake/internal/cache"
	"github.com/GhostKellz/zmake/internal/catalog"
	"github.com/GhostKellz/zmake/internal/config"
	"github.com/GhostKellz/zmake/internal/fanout"
	"github.com/GhostKellz/zmake/internal/log"
	"github.com/GhostKellz/zmake/internal/pipeline"
	"github.com/spf13/cobra"
)

var (
	fanoutFormat      string
	fanoutCompress    string
	fanoutArchList    string
	fanoutTargetsFile string
	fanoutConcurrency int
)

var fanoutCmd = &cobra.Command{
	Use:   "fanout [recipe]",
	Short: "Build a recipe across multiple architectures with bounded concurrency",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runFanout,
}

func init() {
	fanoutCmd.Flags().StringVarP(&fanoutFormat, "format", "f", "auto", "Recipe format: auto, shell, declarative")
	fanoutCmd.Flags().StringVarP(&fanoutCompress, "compression", "c", "zstd", "Archive compression: gzip, xz, zstd, lzip, none")
	fanoutCmd.Flags().StringVar(&fanoutArchList, "arch", "", "Comma-separated architectures to build (defaults to the recipe's own list)")
	fanoutCmd.Flags().StringVar(&fanoutTargetsFile, "targets", "", "Path to a file listing one architecture per line (overrides --arch)")
	fanoutCmd.Flags().IntVar(&fanoutConcurrency, "concurrency", 0, "Maximum concurrent builds (defaults to $ZMAKE_FANOUT_CONCURRENCY)")
}

func runFanout(cmd *cobra.Command, args []string) error {
	path := "recipe.zmake"
	if len(args) == 1 {
		path = args[0]
	}

	body, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading recipe %s: %w", path, err)
	}

	parseFn, err := parseFnFor(fanoutFormat, path)
	if err != nil {
		return err
	}

	r, err := parseFn(body)
	if err != nil {
		return err
	}
	if err := r.Validate(); err != nil {
		return err
	}

	architectures := r.Architectures
	if fanoutArchList != "" {
		architectures = strings.Split(fanoutArchList, ",")
	}
	if fanoutTargetsFile != "" {
		lines, err := readTargetsFile(fanoutTargetsFile)
		if err != nil {
			return err
		}
		architectures = lines
	}

	cfg, err := config.DefaultConfig()
	if err != nil {
		return err
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	logger := log.Default()
	buildCache, err := cache.New(cfg.CacheDir, cache.WithSizeLimit(config.GetCacheSizeLimit()), cache.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("opening build cache: %w", err)
	}

	concurrency := fanoutConcurrency
	if concurrency <= 0 {
		concurrency = config.GetFanoutConcurrency()
	}

	targets := make([]fanout.Target, len(architectures))
	for i, arch := range architectures {
		arch = strings.TrimSpace(arch)
		workDir := filepath.Join(cfg.BuildDir, arch)
		targets[i] = fanout.Target{
			Label: arch,
			Body:  body,
			Opts: pipeline.Options{
				WorkDir:     workDir,
				ArtifactDir: cfg.ArtifactDir,
				StartDir:    filepath.Dir(path),
				Packager:    config.GetPackager(),
				Compression: archive.Compression(fanoutCompress),
				HookTimeout: config.GetHookTimeout(),
				Shell:       config.GetShell(),
				Catalog:     catalog.NewDirCatalog(workDir),
				Cache:       buildCache,
				Logger:      logger.With("arch", arch),
			},
		}
	}

	summary := fanout.Run(globalCtx, targets, parseFn, concurrency, logger)

	for _, result := range summary.Results {
		if result.Err != nil {
			fmt.Fprintf(os.Stderr, "%s: FAILED: %v\n", result.Label, result.Err)
			continue
		}
		fmt.Fprintf(os.Stdout, "%s: OK (%s) in %s\n", result.Label, result.Report.ArchivePath, result.Duration.Round(time.Millisecond))
	}

	fmt.Fprintf(os.Stdout, "%d succeeded, %d failed\n", summary.Succeeded, summary.Failed)
	if summary.Failed > 0 {
		return fmt.Errorf("%d of %d targets failed", summary.Failed, len(targets))
	}
	return nil
}

// readTargetsFile reads one architecture label per line, skipping blank
// lines and "#"-prefixed comments.
func readTargetsFile(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading targets file %s: %w", path, err)
	}

	var targets []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		targets = append(targets, line)
	}
	return targets, nil
}
