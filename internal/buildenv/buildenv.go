// Package buildenv constructs the variable environment a hook body executes
// in: the staging directories a recipe's prepare/build/check/package scripts
// read and write, plus the recipe's own identity fields, exposed as shell
// environment variables and available for "${var}" expansion inside hook
// bodies via the shell the hook executor invokes.
package buildenv

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/GhostKellz/zmake/internal/recipe"
)

// Env is the resolved set of variables a hook runs with.
type Env struct {
	// SourceDirectory is where fetched sources are unpacked and where
	// prepare/build/check hooks run with their working directory set.
	SourceDirectory string

	// PackageDirectory is the staging root the package hook installs into;
	// its contents become the archive payload.
	PackageDirectory string

	// StartDirectory is the directory containing the recipe file itself,
	// useful for hooks that reference recipe-adjacent data files.
	StartDirectory string

	Name    string
	Version string
	Release string

	// Packager identifies the builder of record, surfaced in package-info.
	Packager string

	Architecture string
}

// New derives the per-build Env for one recipe build rooted at buildRoot
// (a directory unique to this build, typically named by the cache key).
func New(r *recipe.Recipe, buildRoot, startDirectory, packager string) *Env {
	return &Env{
		SourceDirectory:  filepath.Join(buildRoot, "src"),
		PackageDirectory: filepath.Join(buildRoot, "pkg"),
		StartDirectory:   startDirectory,
		Name:             r.Name,
		Version:          r.Version,
		Release:          r.Release,
		Packager:         packager,
		Architecture:     r.DefaultArchitecture(),
	}
}

// EnsureDirectories creates SourceDirectory and PackageDirectory, per hook
// execution requiring both to pre-exist regardless of which hooks run.
func (e *Env) EnsureDirectories() error {
	for _, dir := range []string{e.SourceDirectory, e.PackageDirectory} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating build directory %s: %w", dir, err)
		}
	}
	return nil
}

// Environ renders the variable set as "KEY=value" pairs suitable for
// exec.Cmd.Env, appended to the inherited process environment by the caller.
func (e *Env) Environ() []string {
	return []string{
		"source_directory=" + e.SourceDirectory,
		"package_directory=" + e.PackageDirectory,
		"start_directory=" + e.StartDirectory,
		"name=" + e.Name,
		"version=" + e.Version,
		"release=" + e.Release,
		"packager=" + e.Packager,
		"architecture=" + e.Architecture,
	}
}
