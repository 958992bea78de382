// Package pipeline orchestrates a single package build end to end: parse,
// validate, probe dependencies/conflicts, fetch sources, run the staged
// hooks, compose the archive, and optionally sign it.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/GhostKellz/zmake/internal/archive"
	"github.com/GhostKellz/zmake/internal/buildenv"
	"github.com/GhostKellz/zmake/internal/cache"
	"github.com/GhostKellz/zmake/internal/catalog"
	"github.com/GhostKellz/zmake/internal/config"
	"github.com/GhostKellz/zmake/internal/fetch"
	"github.com/GhostKellz/zmake/internal/hooks"
	"github.com/GhostKellz/zmake/internal/httputil"
	"github.com/GhostKellz/zmake/internal/log"
	"github.com/GhostKellz/zmake/internal/recipe"
)

// Kind identifies the distinct pipeline failure modes, unifying the error
// taxonomy across recipe parsing, dependency probing, fetching, hook
// execution, and archive composition into one closed enumeration.
type Kind string

const (
	KindInvalidRecipeFormat    Kind = "InvalidRecipeFormat"
	KindMissingRequiredField   Kind = "MissingRequiredField"
	KindMissingDependency      Kind = "MissingDependency"
	KindConflictDetected       Kind = "ConflictDetected"
	KindDownloadFailed         Kind = "DownloadFailed"
	KindChecksumMismatch       Kind = "ChecksumMismatch"
	KindPrepareFailed          Kind = "PrepareFailed"
	KindBuildFailed            Kind = "BuildFailed"
	KindPackageFailed          Kind = "PackageFailed"
	KindCacheCorruption        Kind = "CacheCorruption"
	KindArchiveCreationFailed  Kind = "ArchiveCreationFailed"
	KindArchiveVerifyFailed    Kind = "ArchiveVerificationFailed"
	KindSigningFailed          Kind = "SigningFailed"
)

// exitCodes maps each Kind to the process exit code a CLI command should
// return, grouping related failures onto the same decade: 10s for
// recipe/validation errors, 20s for dependency/conflict errors, 30 for
// fetch, 40s for the build stages, 50 for cache corruption, 60s for
// archive composition/verification, 70 for signing.
var exitCodes = map[Kind]int{
	KindInvalidRecipeFormat:   10,
	KindMissingRequiredField:  10,
	KindMissingDependency:     20,
	KindConflictDetected:      20,
	KindDownloadFailed:        30,
	KindChecksumMismatch:      30,
	KindPrepareFailed:         40,
	KindBuildFailed:           40,
	KindPackageFailed:         40,
	KindCacheCorruption:       50,
	KindArchiveCreationFailed: 60,
	KindArchiveVerifyFailed:   60,
	KindSigningFailed:         70,
}

// ExitCode returns the stable process exit code for a Kind, for callers
// that only have the Kind (not a full *Error) in hand.
func ExitCode(kind Kind) int {
	if code, ok := exitCodes[kind]; ok {
		return code
	}
	return 1
}

// Error is the pipeline's single exported error type, carrying the failure
// Kind, a human-readable Detail, and the CLI ExitCode it maps to.
type Error struct {
	Kind     Kind
	Detail   string
	ExitCode int
}

func (e *Error) Error() string { return fmt.Sprintf("%s: %s", e.Kind, e.Detail) }

func newError(kind Kind, detail string) *Error {
	code, ok := exitCodes[kind]
	if !ok {
		code = 1
	}
	return &Error{Kind: kind, Detail: detail, ExitCode: code}
}

// Step identifies one stage of the pipeline's state machine, in execution order.
type Step string

const (
	StepParse      Step = "parse"
	StepValidate   Step = "validate"
	StepProbe      Step = "probe"
	StepFetch      Step = "fetch"
	StepPrepare    Step = "prepare"
	StepBuild      Step = "build"
	StepCheck      Step = "check"
	StepPackage    Step = "package"
	StepCompose    Step = "compose"
)

var allSteps = []Step{StepParse, StepValidate, StepProbe, StepFetch, StepPrepare, StepBuild, StepCheck, StepPackage, StepCompose}

// Options configures one Pipeline build.
type Options struct {
	WorkDir      string // build root this recipe's isolated source/package dirs live under
	ArtifactDir  string // destination directory for the finished archive
	StartDir     string // directory the recipe file was read from
	Packager     string
	Compression  archive.Compression
	SigningKey   string // armored private key; empty disables signing
	HookTimeout  time.Duration
	Shell        string
	Catalog      catalog.Catalog
	Cache        *cache.Cache
	Logger       log.Logger
}

// Report records the outcome of a completed build.
type Report struct {
	Recipe      *recipe.Recipe
	ArchivePath string
	SigPath     string
	Steps       []Step
	Duration    time.Duration
}

// Run executes the full pipeline against raw recipe text, which may be
// either shell-recipe or declarative-recipe text (front-end chosen by
// parseFn). body is also used, alongside the resolved sources, to derive
// the cache key.
func Run(ctx context.Context, body []byte, parseFn func([]byte) (*recipe.Recipe, error), opts Options) (*Report, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.NewNoop()
	}

	start := time.Now()
	var completed []Step

	r, err := parseFn(body)
	if err != nil {
		return nil, newError(KindInvalidRecipeFormat, err.Error())
	}
	completed = append(completed, StepParse)

	if err := r.Validate(); err != nil {
		return nil, classifyValidationError(err)
	}
	completed = append(completed, StepValidate)

	if err := probeDependenciesAndConflicts(r, opts.Catalog); err != nil {
		return nil, err
	}
	completed = append(completed, StepProbe)

	key := cache.Key(body, r.Sources)
	buildRoot := filepath.Join(opts.WorkDir, key)
	env := buildenv.New(r, buildRoot, opts.StartDir, opts.Packager)
	if err := env.EnsureDirectories(); err != nil {
		return nil, newError(KindBuildFailed, err.Error())
	}

	cacheHit := false
	if opts.Cache != nil {
		if dir, ok, err := opts.Cache.Lookup(key); err != nil {
			return nil, newError(KindCacheCorruption, err.Error())
		} else if ok {
			if err := copyDir(dir, env.SourceDirectory); err != nil {
				return nil, newError(KindCacheCorruption, err.Error())
			}
			cacheHit = true
			logger.Debug("cache hit, skipping fetch", "key", key)
		}
	}

	if !cacheHit {
		clientOpts := httputil.DefaultOptions()
		clientOpts.Timeout = config.GetFetchTimeout()
		fetcher := fetch.New(fetch.WithHTTPClient(httputil.NewSecureClient(clientOpts)), fetch.WithLogger(logger))
		if _, err := fetcher.FetchAll(ctx, r, env.SourceDirectory); err != nil {
			return nil, classifyFetchError(err)
		}
	}
	completed = append(completed, StepFetch)

	hookExec := hooks.New(hooks.WithShell(opts.Shell), hooks.WithTimeout(opts.HookTimeout), hooks.WithLogger(logger))

	for _, step := range []struct {
		hook string
		step Step
		kind Kind
	}{
		{recipe.HookPrepare, StepPrepare, KindPrepareFailed},
		{recipe.HookBuild, StepBuild, KindBuildFailed},
		{recipe.HookCheck, StepCheck, KindBuildFailed},
		{recipe.HookPackage, StepPackage, KindPackageFailed},
	} {
		result, err := hookExec.Run(ctx, r, step.hook, env)
		if err != nil {
			if step.hook == recipe.HookCheck {
				logger.Warn("check hook failed, continuing", "error", err)
				completed = append(completed, step.step)
				continue
			}
			return nil, newError(step.kind, err.Error())
		}
		if !result.Skipped {
			logger.Debug("hook completed", "hook", step.hook, "duration", result.Duration)
		}
		completed = append(completed, step.step)

		if step.hook == recipe.HookBuild && opts.Cache != nil && !cacheHit {
			if err := cacheStoreCopy(opts.Cache, key, env.SourceDirectory); err != nil {
				return nil, newError(KindCacheCorruption, err.Error())
			}
		}
	}

	if err := os.MkdirAll(opts.ArtifactDir, 0o755); err != nil {
		return nil, newError(KindArchiveCreationFailed, err.Error())
	}
	archiveName := fmt.Sprintf("%s-%s-%s-%s%s", r.Name, r.Version, r.Release, r.DefaultArchitecture(), opts.Compression.Extension())
	archivePath := filepath.Join(opts.ArtifactDir, archiveName)

	if _, err := archive.Compose(r, env.PackageDirectory, archivePath, opts.Compression, opts.Packager); err != nil {
		return nil, wrapArchiveError(err)
	}
	completed = append(completed, StepCompose)

	report := &Report{Recipe: r, ArchivePath: archivePath, Steps: completed, Duration: time.Since(start)}

	if opts.SigningKey != "" {
		sigPath, err := archive.Sign(archivePath, opts.SigningKey)
		if err != nil {
			return report, wrapArchiveError(err)
		}
		report.SigPath = sigPath
	}

	return report, nil
}

// cacheStoreCopy snapshots sourceDir into a sibling temp directory and hands
// that copy to the cache, since cache.Store takes ownership of (renames) the
// directory it's given and sourceDir must stay in place for the remaining
// hooks to run in.
func cacheStoreCopy(c *cache.Cache, key, sourceDir string) error {
	tmp, err := os.MkdirTemp(filepath.Dir(sourceDir), "cache-store-*")
	if err != nil {
		return err
	}
	if err := copyDir(sourceDir, tmp); err != nil {
		os.RemoveAll(tmp)
		return err
	}
	if _, err := c.Store(key, tmp); err != nil {
		os.RemoveAll(tmp)
		return err
	}
	return nil
}

// copyDir recursively copies src's contents into dst, which must already
// exist, preserving file modes and symlinks.
func copyDir(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if rel == "." {
			return nil
		}

		if d.Type()&fs.ModeSymlink != 0 {
			link, err := os.Readlink(path)
			if err != nil {
				return err
			}
			return os.Symlink(link, target)
		}
		if d.IsDir() {
			info, err := d.Info()
			if err != nil {
				return err
			}
			return os.MkdirAll(target, info.Mode().Perm())
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		in, err := os.Open(path)
		if err != nil {
			return err
		}
		defer in.Close()

		out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
		if err != nil {
			return err
		}
		defer out.Close()

		_, err = io.Copy(out, in)
		return err
	})
}

func classifyValidationError(err error) *Error {
	if ve, ok := err.(*recipe.ValidationError); ok {
		switch ve.Kind {
		case recipe.ErrMissingField:
			return newError(KindMissingRequiredField, ve.Error())
		default:
			return newError(KindInvalidRecipeFormat, ve.Error())
		}
	}
	return newError(KindInvalidRecipeFormat, err.Error())
}

func classifyFetchError(err error) *Error {
	if fe, ok := err.(*fetch.Error); ok {
		switch fe.Kind {
		case fetch.ErrChecksumMismatch:
			return newError(KindChecksumMismatch, fe.Error())
		default:
			return newError(KindDownloadFailed, fe.Error())
		}
	}
	return newError(KindDownloadFailed, err.Error())
}

func wrapArchiveError(err error) *Error {
	if ae, ok := err.(*archive.Error); ok {
		switch ae.Kind {
		case archive.ErrSigningFailed:
			return newError(KindSigningFailed, ae.Error())
		case archive.ErrVerificationFailed:
			return newError(KindArchiveVerifyFailed, ae.Error())
		default:
			return newError(KindArchiveCreationFailed, ae.Error())
		}
	}
	return newError(KindArchiveCreationFailed, err.Error())
}

// probeDependenciesAndConflicts checks that every runtime and build
// dependency is present in the catalog, and that none of the recipe's
// declared conflicts are installed. A nil catalog skips the probe
// entirely, for callers (like the fan-out coordinator's unit tests) that
// don't need host-state awareness.
func probeDependenciesAndConflicts(r *recipe.Recipe, cat catalog.Catalog) error {
	if cat == nil {
		return nil
	}

	for _, dep := range append(append([]recipe.ConstrainedName{}, r.RuntimeDependencies...), r.BuildDependencies...) {
		entry, ok := cat.Has(dep.Name)
		if !ok {
			return newError(KindMissingDependency, fmt.Sprintf("missing dependency: %s", dep.String()))
		}
		if !dep.Satisfies(entry.Version) {
			return newError(KindMissingDependency, fmt.Sprintf("installed %s@%s does not satisfy %s", dep.Name, entry.Version, dep.String()))
		}
	}

	for _, conflict := range r.Conflicts {
		if _, ok := cat.Has(conflict); ok {
			return newError(KindConflictDetected, fmt.Sprintf("conflicting package installed: %s", conflict))
		}
	}

	return nil
}
