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
	"github.com/GhostKellz/zmake/internal/log"
	"github.com/GhostKellz/zmake/internal/pipeline"
	"github.com/GhostKellz/zmake/internal/recipe"
	"github.com/spf13/cobra"
)

var (
	buildFormat   string
	buildCompress string
	buildSignKey  string
	buildNoCache  bool
)

var buildCmd = &cobra.Command{
	Use:   "build [recipe]",
	Short: "Build a package from a recipe",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runBuild,
}

func init() {
	buildCmd.Flags().StringVarP(&buildFormat, "format", "f", "auto", "Recipe format: auto, shell, declarative")
	buildCmd.Flags().StringVarP(&buildCompress, "compression", "c", "zstd", "Archive compression: gzip, xz, zstd, lzip, none")
	buildCmd.Flags().StringVar(&buildSignKey, "sign-key", "", "Path to an armored PGP private key used to sign the archive")
	buildCmd.Flags().BoolVar(&buildNoCache, "no-cache", false, "Bypass the build cache for this build")
}

func runBuild(cmd *cobra.Command, args []string) error {
	_, err := buildAndReport(cmd, args)
	return err
}

// buildAndReport runs the build pipeline for the recipe named by args (or
// "recipe.zmake" if none given), prints a summary, and returns the
// resulting archive's path. Shared by the build and package commands.
func buildAndReport(cmd *cobra.Command, args []string) (string, error) {
	path := "recipe.zmake"
	if len(args) == 1 {
		path = args[0]
	}

	body, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading recipe %s: %w", path, err)
	}

	parseFn, err := parseFnFor(buildFormat, path)
	if err != nil {
		return "", err
	}

	cfg, err := config.DefaultConfig()
	if err != nil {
		return "", err
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return "", err
	}

	logger := log.Default()

	var buildCache *cache.Cache
	if !buildNoCache {
		buildCache, err = cache.New(cfg.CacheDir, cache.WithSizeLimit(config.GetCacheSizeLimit()), cache.WithLogger(logger))
		if err != nil {
			return "", fmt.Errorf("opening build cache: %w", err)
		}
	}

	compression := archive.Compression(buildCompress)

	signKey := ""
	if buildSignKey != "" {
		keyBytes, err := os.ReadFile(buildSignKey)
		if err != nil {
			return "", fmt.Errorf("reading signing key %s: %w", buildSignKey, err)
		}
		signKey = string(keyBytes)
	}

	opts := pipeline.Options{
		WorkDir:     cfg.BuildDir,
		ArtifactDir: cfg.ArtifactDir,
		StartDir:    filepath.Dir(path),
		Packager:    config.GetPackager(),
		Compression: compression,
		SigningKey:  signKey,
		HookTimeout: config.GetHookTimeout(),
		Shell:       config.GetShell(),
		Catalog:     catalog.NewDirCatalog(cfg.BuildDir),
		Cache:       buildCache,
		Logger:      logger,
	}

	start := time.Now()
	report, err := pipeline.Run(globalCtx, body, parseFn, opts)
	if err != nil {
		return "", err
	}

	fmt.Fprintf(os.Stdout, "built %s %s-%s in %s\n", report.Recipe.Name, report.Recipe.Version, report.Recipe.Release, time.Since(start).Round(time.Millisecond))
	fmt.Fprintf(os.Stdout, "archive: %s\n", report.ArchivePath)
	if report.SigPath != "" {
		fmt.Fprintf(os.Stdout, "signature: %s\n", report.SigPath)
	}
	return report.ArchivePath, nil
}

// parseFnFor resolves which recipe front-end to use, honoring an explicit
// --format flag and otherwise guessing from the file extension.
func parseFnFor(format, path string) (func([]byte) (*recipe.Recipe, error), error) {
	switch format {
	case "shell":
		return recipe.ParseShell, nil
	case "declarative":
		return recipe.ParseDeclarative, nil
	case "auto", "":
		if strings.HasSuffix(path, ".toml") {
			return recipe.ParseDeclarative, nil
		}
		return recipe.ParseShell, nil
	default:
		return nil, fmt.Errorf("unknown recipe format %q", format)
	}
}
