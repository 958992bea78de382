package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/GhostKellz/zmake/internal/cache"
	"github.com/GhostKellz/zmake/internal/config"
	"github.com/spf13/cobra"
)

var cleanFormat string

var cleanCmd = &cobra.Command{
	Use:   "clean [recipe]",
	Short: "Remove a recipe's staging directories (source and package trees), leaving the build cache untouched",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runClean,
}

func init() {
	cleanCmd.Flags().StringVarP(&cleanFormat, "format", "f", "auto", "Recipe format: auto, shell, declarative")
}

func runClean(cmd *cobra.Command, args []string) error {
	path := "recipe.zmake"
	if len(args) == 1 {
		path = args[0]
	}

	body, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading recipe %s: %w", path, err)
	}

	parseFn, err := parseFnFor(cleanFormat, path)
	if err != nil {
		return err
	}

	r, err := parseFn(body)
	if err != nil {
		return err
	}

	cfg, err := config.DefaultConfig()
	if err != nil {
		return err
	}

	key := cache.Key(body, r.Sources)
	buildRoot := filepath.Join(cfg.BuildDir, key)

	if err := os.RemoveAll(buildRoot); err != nil {
		return fmt.Errorf("removing staging directory %s: %w", buildRoot, err)
	}
	fmt.Fprintf(os.Stdout, "removed %s\n", buildRoot)
	return nil
}
